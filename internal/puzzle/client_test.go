package puzzle_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/victornm/bananaquiz/internal/errors"
	"github.com/victornm/bananaquiz/internal/puzzle"
)

func TestClient_Fetch(t *testing.T) {
	tests := map[string]struct {
		status int
		body   string
		want   puzzle.Payload
		err    bool
	}{
		"numeric solution": {
			status: http.StatusOK,
			body:   `{"question":"https://example.com/q.png","solution":5}`,
			want:   puzzle.Payload{Question: "https://example.com/q.png", Solution: 5},
		},
		"string solution": {
			status: http.StatusOK,
			body:   `{"question":"https://example.com/q.png","solution":"7"}`,
			want:   puzzle.Payload{Question: "https://example.com/q.png", Solution: 7},
		},
		"malformed body": {
			status: http.StatusOK,
			body:   `<html>`,
			err:    true,
		},
		"missing question": {
			status: http.StatusOK,
			body:   `{"solution":3}`,
			err:    true,
		},
		"solution zero": {
			status: http.StatusOK,
			body:   `{"question":"q","solution":0}`,
			err:    true,
		},
		"solution ten": {
			status: http.StatusOK,
			body:   `{"question":"q","solution":10}`,
			err:    true,
		},
		"server error": {
			status: http.StatusInternalServerError,
			body:   `{"question":"q","solution":3}`,
			err:    true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(srv.Close)

			c := puzzle.NewClient(puzzle.ClientConfig{URL: srv.URL})
			got, err := c.Fetch(context.Background())
			if tc.err {
				require.ErrorIs(t, err, errors.ErrUpstreamFetchFailure)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestClient_FetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := puzzle.NewClient(puzzle.ClientConfig{URL: url}).Fetch(context.Background())
	require.ErrorIs(t, err, errors.ErrUpstreamFetchFailure)
}
