package docstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/bananaquiz/internal/errors"
)

const defaultMaxRetries = 10

type Config struct {
	Redis      redis.UniversalClient
	Prefix     string
	MaxRetries int
}

// Redis stores each document as a JSON string and publishes the new content on a
// channel named after the key on every write.
type Redis struct {
	redis      redis.UniversalClient
	prefix     string
	maxRetries int
}

var _ Store = (*Redis)(nil)

func NewRedis(c Config) *Redis {
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}

	return &Redis{
		redis:      c.Redis,
		prefix:     c.Prefix,
		maxRetries: c.MaxRetries,
	}
}

func (s *Redis) Get(ctx context.Context, collection, id string) (Document, error) {
	key := s.key(collection, id)

	b, err := s.redis.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get %s: %w", key, err)
	}

	return unmarshal(b)
}

func (s *Redis) Set(ctx context.Context, collection, id string, doc Document) error {
	key := s.key(collection, id)

	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: marshal %s: %w", key, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, b, 0)
		p.Publish(ctx, key, b)
		return nil
	})
	if err != nil {
		return fmt.Errorf("docstore: set %s: %w", key, err)
	}

	return nil
}

func (s *Redis) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.Transact(ctx, collection, id, func(doc Document) (Document, error) {
		for path, v := range fields {
			doc.SetPath(path, v)
		}
		return doc, nil
	})
}

func (s *Redis) Transact(ctx context.Context, collection, id string, fn func(doc Document) (Document, error)) error {
	key := s.key(collection, id)

	txf := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if stderrors.Is(err, redis.Nil) {
			return notFound(key)
		}
		if err != nil {
			return fmt.Errorf("docstore: get %s: %w", key, err)
		}

		doc, err := unmarshal(b)
		if err != nil {
			return err
		}

		next, err := fn(doc)
		if err != nil || next == nil {
			return err
		}

		nb, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("docstore: marshal %s: %w", key, err)
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, nb, 0)
			p.Publish(ctx, key, nb)
			return nil
		})
		return err
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if !stderrors.Is(err, redis.TxFailedErr) {
			return err
		}

		slog.DebugContext(ctx, "docstore: transaction conflict, retrying", "key", key, "attempt", i+1)
	}

	return fmt.Errorf("docstore: transaction on %s: %w", key, redis.TxFailedErr)
}

func (s *Redis) Subscribe(ctx context.Context, collection, id string) (*Subscription, error) {
	key := s.key(collection, id)

	ps := s.redis.Subscribe(ctx, key)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("docstore: subscribe %s: %w", key, err)
	}

	var (
		c    = make(chan Document)
		done = make(chan struct{})
	)

	go func() {
		defer close(c)

		for msg := range ps.Channel() {
			doc, err := unmarshal([]byte(msg.Payload))
			if err != nil {
				slog.WarnContext(ctx, "docstore: drop malformed notification", "key", key, "error", err)
				continue
			}

			select {
			case c <- doc:
			case <-done:
				return
			}
		}
	}()

	return &Subscription{
		C: c,
		close: func() error {
			close(done)
			return ps.Close()
		},
	}, nil
}

func (s *Redis) key(collection, id string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, collection, id)
}

func notFound(key string) error {
	return errors.From(errors.ErrDocumentNotFound, errors.WithMessagef("document not found: %s", key))
}

func unmarshal(b []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("docstore: unmarshal: %w", err)
	}
	if doc == nil {
		doc = make(Document)
	}

	return doc, nil
}
