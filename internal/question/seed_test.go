package question_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/question"
)

func TestDecodeSeed(t *testing.T) {
	const file = `{
  "questions": {
    "9": {
      "medium": [{"question": "Q2", "correct_answer": "A2", "incorrect_answers": ["B2", "C2", "D2"]}],
      "easy": [{"question": "Q1", "correct_answer": "A1", "incorrect_answers": ["B1", "C1", "D1"]}]
    },
    "10": {
      "easy": [{"question": "Q3", "correct_answer": "A3", "incorrect_answers": ["B3"]}]
    }
  }
}`

	qs, err := question.DecodeSeed(strings.NewReader(file))
	require.NoError(t, err)

	want := []domain.Question{
		{Category: "10", Difficulty: "easy", Text: "Q3", Correct: "A3", Distractors: []string{"B3"}},
		{Category: "9", Difficulty: "easy", Text: "Q1", Correct: "A1", Distractors: []string{"B1", "C1", "D1"}},
		{Category: "9", Difficulty: "medium", Text: "Q2", Correct: "A2", Distractors: []string{"B2", "C2", "D2"}},
	}
	assert.Equal(t, want, qs)
}

func TestDecodeSeed_Malformed(t *testing.T) {
	_, err := question.DecodeSeed(strings.NewReader(`{"questions": [`))
	require.Error(t, err)
}

func TestFetchAll(t *testing.T) {
	f := fetcherFunc(func(_ context.Context, req question.FetchRequest) ([]domain.Question, error) {
		if req.Category == "bad" {
			return nil, errors.New("boom")
		}
		return []domain.Question{{Category: req.Category, Difficulty: req.Difficulty}}, nil
	})

	qs, err := question.FetchAll(context.Background(), f, []question.FetchRequest{
		{Category: "9", Difficulty: "easy"},
		{Category: "9", Difficulty: "hard"},
	}, 0)
	require.NoError(t, err)
	assert.Len(t, qs, 2)

	_, err = question.FetchAll(context.Background(), f, []question.FetchRequest{{Category: "bad"}}, 0)
	require.Error(t, err)
}

func TestFetchAll_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := fetcherFunc(func(context.Context, question.FetchRequest) ([]domain.Question, error) {
		cancel()
		return nil, nil
	})

	_, err := question.FetchAll(ctx, f, []question.FetchRequest{{}, {}}, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}

type fetcherFunc func(ctx context.Context, req question.FetchRequest) ([]domain.Question, error)

func (f fetcherFunc) Fetch(ctx context.Context, req question.FetchRequest) ([]domain.Question, error) {
	return f(ctx, req)
}
