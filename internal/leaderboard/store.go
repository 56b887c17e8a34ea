package leaderboard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/victornm/quizbattle/internal/domain"
)

// Store is the durable record of every leaderboard entry.
type Store interface {
	InsertEntry(ctx context.Context, e domain.LeaderboardEntry) error
	// TopEntries returns up to n entries by score descending, oldest first on ties.
	TopEntries(ctx context.Context, n int) ([]domain.LeaderboardEntry, error)
}

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InsertEntry(ctx context.Context, e domain.LeaderboardEntry) error {
	const stmt = `INSERT INTO leaderboard (id, username, score, date) VALUES ($1, $2, $3, $4);`

	if _, err := s.db.Exec(ctx, stmt, e.ID, e.Username, e.Score, e.Date); err != nil {
		return fmt.Errorf("insert leaderboard entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) TopEntries(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	const stmt = `
SELECT id, username, score, date
FROM leaderboard
ORDER BY score DESC, date ASC
LIMIT $1;`

	rows, err := s.db.Query(ctx, stmt, n)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.LeaderboardEntry, error) {
		var e domain.LeaderboardEntry
		if err := r.Scan(&e.ID, &e.Username, &e.Score, &e.Date); err != nil {
			return domain.LeaderboardEntry{}, err
		}
		e.Date = e.Date.UTC()
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect leaderboard: %w", err)
	}

	return entries, nil
}
