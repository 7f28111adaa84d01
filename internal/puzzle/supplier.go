package puzzle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/victornm/bananaquiz/internal/domain"
	"github.com/victornm/bananaquiz/internal/telemetry"
)

type Source string

const (
	SourceUpstream Source = "upstream"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

type Fetcher interface {
	Fetch(ctx context.Context) (Payload, error)
}

// OfflineStore keeps puzzles on the local device, keyed by puzzle id.
type OfflineStore interface {
	Put(ctx context.Context, p domain.CachedPuzzle) error
	All(ctx context.Context) ([]domain.CachedPuzzle, error)
	Delete(ctx context.Context, id string) error
}

type Config struct {
	Fetcher Fetcher
	// Store may be nil, then only the fallback pool backs the source.
	Store OfflineStore
	// Interval paces the requests of CachePuzzles. Zero disables pacing.
	Interval time.Duration
	Now      func() time.Time
}

// Supplier hands out puzzles. None of its operations fail: every failure path ends in the fallback pool.
type Supplier struct {
	fetcher  Fetcher
	store    OfflineStore
	interval time.Duration
	now      func() time.Time
}

func NewSupplier(c Config) *Supplier {
	if c.Now == nil {
		c.Now = time.Now
	}

	return &Supplier{
		fetcher:  c.Fetcher,
		store:    c.Store,
		interval: c.Interval,
		now:      c.Now,
	}
}

// FetchPuzzle returns a puzzle from the source, or a random fallback puzzle when the source fails.
func (s *Supplier) FetchPuzzle(ctx context.Context) domain.Puzzle {
	p, err := s.fetch(ctx)
	if err != nil {
		slog.WarnContext(ctx, "puzzle: fetch failed, using fallback", "error", err)
		return s.fallback()
	}

	telemetry.PuzzlesServed.WithLabelValues(string(SourceUpstream)).Inc()
	return p
}

// NextPuzzle prefers the source, then the offline cache, then the fallback pool.
func (s *Supplier) NextPuzzle(ctx context.Context) domain.Puzzle {
	p, err := s.fetch(ctx)
	if err != nil {
		slog.WarnContext(ctx, "puzzle: fetch failed, using offline cache", "error", err)
		return s.GetCachedPuzzle(ctx)
	}

	telemetry.PuzzlesServed.WithLabelValues(string(SourceUpstream)).Inc()
	return p
}

// CachePuzzles fetches up to count puzzles one after the other and stores them for offline play.
// Puzzles that cannot be fetched or stored are skipped. It returns how many were stored.
func (s *Supplier) CachePuzzles(ctx context.Context, count int) int {
	if s.store == nil {
		return 0
	}

	limit := rate.Inf
	if s.interval > 0 {
		limit = rate.Every(s.interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	cached := 0
	for i := 0; i < count; i++ {
		if err := limiter.Wait(ctx); err != nil {
			slog.WarnContext(ctx, "puzzle: caching interrupted", "cached", cached, "error", err)
			break
		}

		p, err := s.fetch(ctx)
		if err != nil {
			slog.WarnContext(ctx, fmt.Sprintf("puzzle: skip puzzle %d", i), "error", err)
			continue
		}

		err = s.store.Put(ctx, domain.CachedPuzzle{
			ID:              p.ID,
			Question:        p.Question,
			EncodedSolution: EncryptSolution(p.Solution),
			CachedAt:        s.now(),
		})
		if err != nil {
			slog.WarnContext(ctx, fmt.Sprintf("puzzle: store puzzle %d", i), "error", err)
			continue
		}

		cached++
		telemetry.PuzzlesCached.Inc()
	}

	slog.InfoContext(ctx, fmt.Sprintf("puzzle: cached %d/%d puzzles for offline play", cached, count))
	return cached
}

// GetCachedPuzzle takes a random puzzle out of the offline store. Each cached puzzle is served once.
// An empty or failing store, or an unreadable solution, yields a fallback puzzle.
func (s *Supplier) GetCachedPuzzle(ctx context.Context) domain.Puzzle {
	if s.store == nil {
		return s.fallback()
	}

	all, err := s.store.All(ctx)
	if err != nil {
		slog.WarnContext(ctx, "puzzle: offline store unavailable", "error", err)
		return s.fallback()
	}
	if len(all) == 0 {
		return s.fallback()
	}

	c := lo.Sample(all)
	if err := s.store.Delete(ctx, c.ID); err != nil {
		slog.WarnContext(ctx, "puzzle: delete cached puzzle", "id", c.ID, "error", err)
	}

	sol, err := DecryptSolution(c.EncodedSolution)
	if err != nil {
		slog.WarnContext(ctx, "puzzle: cached puzzle unreadable", "id", c.ID, "error", err)
		return s.fallback()
	}

	telemetry.PuzzlesServed.WithLabelValues(string(SourceCache)).Inc()
	return domain.Puzzle{
		ID:       c.ID,
		Question: c.Question,
		Solution: sol,
	}
}

func (s *Supplier) fetch(ctx context.Context) (domain.Puzzle, error) {
	if s.fetcher == nil {
		return domain.Puzzle{}, fmt.Errorf("puzzle: no source configured")
	}

	p, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return domain.Puzzle{}, err
	}

	return domain.Puzzle{
		ID:       "puzzle_" + uuid.NewString(),
		Question: p.Question,
		Solution: p.Solution,
	}, nil
}

func (s *Supplier) fallback() domain.Puzzle {
	telemetry.PuzzlesServed.WithLabelValues(string(SourceFallback)).Inc()
	return lo.Sample(fallbackPuzzles)
}
