package question

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/victornm/quizbattle/internal/domain"
)

// seedFile is the layout of a seed file:
// {"questions": {"<category>": {"<difficulty>": [{question, correct_answer, incorrect_answers}]}}}
type seedFile struct {
	Questions map[string]map[string][]struct {
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"questions"`
}

// DecodeSeed reads a seed file. Questions come out grouped by category then difficulty, both sorted.
func DecodeSeed(r io.Reader) ([]domain.Question, error) {
	var f seedFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	categories := make([]string, 0, len(f.Questions))
	for c := range f.Questions {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var qs []domain.Question
	for _, c := range categories {
		difficulties := make([]string, 0, len(f.Questions[c]))
		for d := range f.Questions[c] {
			difficulties = append(difficulties, d)
		}
		sort.Strings(difficulties)

		for _, d := range difficulties {
			for _, q := range f.Questions[c][d] {
				qs = append(qs, domain.Question{
					Category:    c,
					Difficulty:  d,
					Text:        q.Question,
					Correct:     q.CorrectAnswer,
					Distractors: q.IncorrectAnswers,
				})
			}
		}
	}

	return qs, nil
}

type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) ([]domain.Question, error)
}

// FetchAll runs reqs one after another, waiting interval between calls.
// Open Trivia DB rejects clients that call it more than once every few seconds.
func FetchAll(ctx context.Context, f Fetcher, reqs []FetchRequest, interval time.Duration) ([]domain.Question, error) {
	var qs []domain.Question

	for i, req := range reqs {
		if i > 0 && interval > 0 {
			t := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		got, err := f.Fetch(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("fetch category=%s difficulty=%s: %w", req.Category, req.Difficulty, err)
		}
		qs = append(qs, got...)
	}

	return qs, nil
}
