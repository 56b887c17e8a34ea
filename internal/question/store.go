package question

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/quizbattle/internal/domain"
)

// Store is the durable source of questions.
type Store interface {
	ListQuestions(ctx context.Context, category, difficulty string) ([]domain.Question, error)
	ReplaceQuestions(ctx context.Context, qs []domain.Question) (int64, error)
}

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListQuestions(ctx context.Context, category, difficulty string) ([]domain.Question, error) {
	const stmt = `
SELECT id, category_id, difficulty, question, correct_answer, incorrect_answers
FROM questions
WHERE category_id = $1 AND difficulty = $2
ORDER BY id;`

	rows, err := s.db.Query(ctx, stmt, category, difficulty)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}

	qs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		var (
			q         domain.Question
			incorrect *string
		)
		if err := r.Scan(&q.ID, &q.Category, &q.Difficulty, &q.Text, &q.Correct, &incorrect); err != nil {
			return domain.Question{}, err
		}
		q.Distractors = decodeDistractors(ctx, q.ID, incorrect)
		return q, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect questions: %w", err)
	}

	return qs, nil
}

// decodeDistractors parses the incorrect_answers column. A malformed value is
// logged and treated as no distractors so one bad row does not fail the list.
func decodeDistractors(ctx context.Context, id int64, raw *string) []string {
	if raw == nil || *raw == "" {
		return []string{}
	}

	var ds []string
	if err := json.Unmarshal([]byte(*raw), &ds); err != nil {
		slog.ErrorContext(ctx, "question: malformed incorrect_answers",
			"id", id,
			"value", *raw,
			"error", err,
		)
		return []string{}
	}

	if ds == nil {
		ds = []string{}
	}
	return ds
}

// ReplaceQuestions deletes every stored question and copies qs in, in one transaction.
func (s *PostgresStore) ReplaceQuestions(ctx context.Context, qs []domain.Question) (n int64, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, rollback(ctx, tx))
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM questions;`); err != nil {
		return 0, fmt.Errorf("delete questions: %w", err)
	}

	rows := make([][]any, 0, len(qs))
	for _, q := range qs {
		ds := q.Distractors
		if ds == nil {
			ds = []string{}
		}
		b, err := json.Marshal(ds)
		if err != nil {
			return 0, fmt.Errorf("marshal incorrect answers: %w", err)
		}
		rows = append(rows, []any{q.Category, q.Difficulty, q.Text, q.Correct, string(b)})
	}

	n, err = tx.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"category_id", "difficulty", "question", "correct_answer", "incorrect_answers"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("copy questions: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return n, nil
}

func rollback(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Rollback(ctx); err != nil && !stderrors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
