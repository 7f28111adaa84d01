// Package offline is the device-local puzzle store used for offline play.
package offline

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/victornm/bananaquiz/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS puzzles (
	id        TEXT PRIMARY KEY,
	question  TEXT    NOT NULL,
	solution  TEXT    NOT NULL,
	cached_at INTEGER NOT NULL
);`

// SQLite stores cached puzzles in a single table keyed by puzzle id.
type SQLite struct {
	db *sql.DB
}

// Open opens (and creates if missing) the store at path.
func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("offline: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("offline: open %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("offline: create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Put inserts or replaces a puzzle.
func (s *SQLite) Put(ctx context.Context, p domain.CachedPuzzle) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO puzzles (id, question, solution, cached_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Question, p.EncodedSolution, p.CachedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("offline: put %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLite) All(ctx context.Context) ([]domain.CachedPuzzle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, question, solution, cached_at FROM puzzles ORDER BY cached_at`)
	if err != nil {
		return nil, fmt.Errorf("offline: list: %w", err)
	}
	defer rows.Close()

	var out []domain.CachedPuzzle
	for rows.Next() {
		var (
			p  domain.CachedPuzzle
			ms int64
		)
		if err := rows.Scan(&p.ID, &p.Question, &p.EncodedSolution, &ms); err != nil {
			return nil, fmt.Errorf("offline: scan: %w", err)
		}
		p.CachedAt = time.UnixMilli(ms)
		out = append(out, p)
	}

	return out, rows.Err()
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM puzzles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("offline: delete %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
