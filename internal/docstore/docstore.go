// Package docstore is a small document store: JSON documents addressed by
// collection and id, with field updates, optimistic transactions and change
// notifications.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	CollectionUsers = "users"
	CollectionRooms = "rooms"
)

// Document is a decoded JSON object.
type Document map[string]any

type Store interface {
	// Get returns errors.ErrDocumentNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set replaces the whole document.
	Set(ctx context.Context, collection, id string, doc Document) error
	// Update sets the given fields of an existing document. Keys may be dotted paths, e.g. "stats.bestStreak".
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Transact reads the document, passes it to fn and writes the returned document back,
	// retrying fn when the document changed concurrently. A nil document from fn skips the write.
	Transact(ctx context.Context, collection, id string, fn func(doc Document) (Document, error)) error
	// Subscribe delivers the full document after every write, until the subscription is closed.
	Subscribe(ctx context.Context, collection, id string) (*Subscription, error)
}

// Subscription is a stream of document snapshots.
type Subscription struct {
	C <-chan Document

	once  sync.Once
	close func() error
	err   error
}

// Close cancels the subscription and closes C. It is safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.err = s.close()
	})
	return s.err
}

// Encode converts a value with json tags to a document.
func Encode(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}

	return doc, nil
}

// Decode fills out, a pointer to a struct with json tags, from a document.
// Fields missing from the document keep the value already in out.
func Decode(doc Document, out any) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("docstore: decoder: %w", err)
	}

	if err := d.Decode(map[string]any(doc)); err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}

	return nil
}

// SetPath sets a possibly dotted field path, creating intermediate objects.
func (d Document) SetPath(path string, v any) {
	parts := strings.Split(path, ".")
	m := d
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}
