package score

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/bananaquiz/internal/domain"
	"github.com/victornm/bananaquiz/internal/event"
)

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
}

// Service stores one score entry per finished game and announces it to the leaderboards.
type Service struct {
	eb          *event.Bus
	db          *pgxpool.Pool
	unsubscribe func()
}

func NewService(c Config) *Service {
	s := &Service{
		eb: c.EventBus,
		db: c.DB,
	}

	s.unsubscribe = s.eb.Subscribe(domain.EventNameSessionFinished, func(ctx context.Context, e event.Event) error {
		sf := e.(domain.EventSessionFinished)
		if sf.Guest || sf.Record.Score == 0 {
			return nil
		}

		_, err := s.RecordScore(ctx, RecordScoreRequest{
			UserID:     sf.Record.UserID,
			Score:      sf.Record.Score,
			Mode:       sf.Record.Mode,
			CreateTime: sf.Record.EndTime,
		})
		return err
	})

	return s
}

// Close stops recording finished sessions.
func (s *Service) Close() {
	s.unsubscribe()
}

type RecordScoreRequest struct {
	UserID     string
	Score      int
	Mode       domain.Mode
	CreateTime time.Time
}

// RecordScore appends a score entry and publishes score.recorded.
func (s *Service) RecordScore(ctx context.Context, req RecordScoreRequest) (*domain.ScoreEntry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate score ID: %w", err)
	}

	year, week := req.CreateTime.ISOWeek()
	entry := domain.ScoreEntry{
		ID:         id.String(),
		UserID:     req.UserID,
		Score:      req.Score,
		Mode:       req.Mode,
		Year:       year,
		Week:       week,
		CreateTime: req.CreateTime,
	}

	const stmt = `
INSERT INTO scores (score_id, user_id, score, game_mode, year, week, create_time)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	if _, err := s.db.Exec(ctx, stmt, entry.ID, entry.UserID, entry.Score, entry.Mode, entry.Year, entry.Week, entry.CreateTime); err != nil {
		return nil, fmt.Errorf("insert score: %w", err)
	}

	s.eb.Publish(ctx, domain.EventScoreRecorded{
		Entry: entry,
	})

	return &entry, nil
}

type ListScoresRequest struct {
	UserID string
	Limit  int
}

// ListScores returns the latest score entries of a user.
func (s *Service) ListScores(ctx context.Context, req ListScoresRequest) ([]domain.ScoreEntry, error) {
	const stmt = `
SELECT score_id, user_id, score, game_mode, year, week, create_time
FROM scores
WHERE user_id = $1
ORDER BY create_time DESC
LIMIT $2;`

	if req.Limit <= 0 {
		req.Limit = 10
	}

	rows, err := s.db.Query(ctx, stmt, req.UserID, req.Limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.ScoreEntry, error) {
		var sc domain.ScoreEntry
		err := r.Scan(&sc.ID, &sc.UserID, &sc.Score, &sc.Mode, &sc.Year, &sc.Week, &sc.CreateTime)
		return sc, err
	})
}
