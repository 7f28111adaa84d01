package profile

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/victornm/bananaquiz/internal/docstore"
	"github.com/victornm/bananaquiz/internal/domain"
	"github.com/victornm/bananaquiz/internal/errors"
	"github.com/victornm/bananaquiz/internal/event"
	"github.com/victornm/bananaquiz/internal/score"
)

type Config struct {
	EventBus *event.Bus
	Store    docstore.Store
	Now      func() time.Time
}

// Service keeps user profiles under users/{id}.
type Service struct {
	store       docstore.Store
	now         func() time.Time
	unsubscribe func()
}

func NewService(c Config) *Service {
	if c.Now == nil {
		c.Now = time.Now
	}

	s := &Service{
		store:       c.Store,
		now:         c.Now,
		unsubscribe: func() {},
	}

	if c.EventBus != nil {
		s.unsubscribe = c.EventBus.Subscribe(domain.EventNameSessionFinished, func(ctx context.Context, e event.Event) error {
			return s.RecordResult(ctx, e.(domain.EventSessionFinished))
		})
	}

	return s
}

// Close stops recording finished sessions.
func (s *Service) Close() {
	s.unsubscribe()
}

// Ensure returns the profile of the user, creating it with the default values on first use.
func (s *Service) Ensure(ctx context.Context, userID string) (domain.User, error) {
	now := s.now()

	doc, err := s.store.Get(ctx, docstore.CollectionUsers, userID)
	if stderrors.Is(err, errors.ErrDocumentNotFound) {
		u := domain.NewUser(userID, "", "", now)
		if err := s.save(ctx, u); err != nil {
			return domain.User{}, err
		}

		slog.InfoContext(ctx, "profile: created", "user", userID)
		return u, nil
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get profile: %w", err)
	}

	u, err := decode(userID, doc)
	if err != nil {
		return domain.User{}, err
	}

	if err := s.store.Update(ctx, docstore.CollectionUsers, userID, map[string]any{"lastActive": now}); err != nil {
		return domain.User{}, fmt.Errorf("touch profile: %w", err)
	}
	u.LastActive = now

	return u, nil
}

func (s *Service) Get(ctx context.Context, userID string) (domain.User, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionUsers, userID)
	if err != nil {
		return domain.User{}, err
	}

	return decode(userID, doc)
}

// ReconcileBestStreak stores max(stored, sessionBest) as the best streak and returns it.
// Nothing is written when the stored streak is already as good.
func (s *Service) ReconcileBestStreak(ctx context.Context, userID string, sessionBest int) (int, error) {
	var best int

	err := s.store.Transact(ctx, docstore.CollectionUsers, userID, func(doc docstore.Document) (docstore.Document, error) {
		u, err := decode(userID, doc)
		if err != nil {
			return nil, err
		}

		best = max(u.Stats.BestStreak, sessionBest)
		if best == u.Stats.BestStreak {
			return nil, nil
		}

		doc.SetPath("stats.bestStreak", best)
		return doc, nil
	})
	if err != nil {
		return 0, fmt.Errorf("reconcile best streak: %w", err)
	}

	return best, nil
}

// RecordResult adds a finished game to the player's statistics and experience.
func (s *Service) RecordResult(ctx context.Context, e domain.EventSessionFinished) error {
	if e.Guest {
		return nil
	}

	rec := e.Record
	err := s.store.Transact(ctx, docstore.CollectionUsers, rec.UserID, func(doc docstore.Document) (docstore.Document, error) {
		u, err := decode(rec.UserID, doc)
		if err != nil {
			return nil, err
		}

		u.GamesPlayed++
		if e.Won {
			u.GamesWon++
		}
		u.TotalScore += rec.Score
		u.XP += score.XPFromScore(rec.Score, rec.Difficulty.Settings().Multiplier)
		u.Level = score.LevelFromXP(u.XP)

		if total := u.Stats.TotalPuzzlesSolved + e.Solved; total > 0 {
			sum := u.Stats.AverageSolveTime*float64(u.Stats.TotalPuzzlesSolved) + e.SolveSeconds
			u.Stats.AverageSolveTime = sum / float64(total)
		}
		u.Stats.TotalPuzzlesSolved += e.Solved
		u.Stats.HintsUsed += rec.HintsUsed
		u.LastActive = s.now()

		return docstore.Encode(u)
	})
	if err != nil {
		return fmt.Errorf("record result: user=%s: %w", rec.UserID, err)
	}

	return nil
}

func (s *Service) save(ctx context.Context, u domain.User) error {
	doc, err := docstore.Encode(u)
	if err != nil {
		return err
	}

	if err := s.store.Set(ctx, docstore.CollectionUsers, u.ID, doc); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	return nil
}

// decode reads a stored profile on top of the defaults of a new user.
func decode(userID string, doc docstore.Document) (domain.User, error) {
	u := domain.NewUser(userID, "", "", time.Time{})
	if err := docstore.Decode(doc, &u); err != nil {
		return domain.User{}, err
	}

	return u, nil
}
