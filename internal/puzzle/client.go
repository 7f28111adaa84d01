package puzzle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/victornm/bananaquiz/internal/errors"
)

const (
	DefaultSourceURL = "https://marcconrad.com/uob/banana/api.php?out=json&base64=no"

	defaultTimeout = 10 * time.Second
	maxBodySize    = 1 << 20
)

// Payload is a puzzle as delivered by the puzzle source, before it gets an id.
type Payload struct {
	Question string `json:"question"`
	Solution int    `json:"solution"`
}

type ClientConfig struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client fetches puzzles from the puzzle source. The response is validated, never trusted.
type Client struct {
	http *http.Client
	url  string
}

func NewClient(c ClientConfig) *Client {
	if c.URL == "" {
		c.URL = DefaultSourceURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}

	return &Client{
		http: c.HTTPClient,
		url:  c.URL,
	}
}

// Fetch returns one puzzle or an error carrying errors.ErrUpstreamFetchFailure.
func (c *Client) Fetch(ctx context.Context) (Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Payload{}, upstreamFailure(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Payload{}, upstreamFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Payload{}, upstreamFailure(fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Payload{}, upstreamFailure(err)
	}

	return ParsePayload(b)
}

// ParsePayload decodes and validates {question, solution}. The solution may be a JSON number or string.
func ParsePayload(b []byte) (Payload, error) {
	var raw struct {
		Question string          `json:"question"`
		Solution json.RawMessage `json:"solution"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return Payload{}, upstreamFailure(fmt.Errorf("decode: %w", err))
	}

	if raw.Question == "" {
		return Payload{}, upstreamFailure(fmt.Errorf("missing question"))
	}

	sol, err := strconv.Atoi(string(bytes.Trim(raw.Solution, `"`)))
	if err != nil {
		return Payload{}, upstreamFailure(fmt.Errorf("invalid solution %q: %w", raw.Solution, err))
	}
	if sol < 1 || sol > 9 {
		return Payload{}, upstreamFailure(fmt.Errorf("solution out of range: %d", sol))
	}

	return Payload{Question: raw.Question, Solution: sol}, nil
}

func upstreamFailure(err error) error {
	return errors.From(errors.ErrUpstreamFetchFailure, errors.WithCause(err))
}
