package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/bananaquiz/internal/domain"
)

type Config struct {
	DB *pgxpool.Pool
}

// Service keeps the append-only history of finished game sessions.
type Service struct {
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{
		db: c.DB,
	}
}

// SaveSession inserts a finished session. Saving the same session twice is a no-op,
// records are never updated.
func (s *Service) SaveSession(ctx context.Context, r domain.GameSessionRecord) error {
	const stmt = `
INSERT INTO game_sessions (session_id, user_id, game_mode, difficulty, score, streak, hints_used, create_time, end_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (session_id) DO NOTHING;`

	_, err := s.db.Exec(ctx, stmt, r.ID, r.UserID, r.Mode, r.Difficulty, r.Score, r.Streak, r.HintsUsed, r.CreatedAt, r.EndTime)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

type RecentSessionsRequest struct {
	UserID string
	Limit  int
}

// RecentSessions returns the latest sessions of a user, newest first.
func (s *Service) RecentSessions(ctx context.Context, req RecentSessionsRequest) ([]domain.GameSessionRecord, error) {
	const stmt = `
SELECT session_id, user_id, game_mode, difficulty, score, streak, hints_used, create_time, end_time
FROM game_sessions
WHERE user_id = $1
ORDER BY create_time DESC
LIMIT $2;`

	if req.Limit <= 0 {
		req.Limit = 10
	}

	rows, err := s.db.Query(ctx, stmt, req.UserID, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.GameSessionRecord, error) {
		var rec domain.GameSessionRecord
		err := r.Scan(&rec.ID, &rec.UserID, &rec.Mode, &rec.Difficulty, &rec.Score, &rec.Streak, &rec.HintsUsed, &rec.CreatedAt, &rec.EndTime)
		return rec, err
	})
}
