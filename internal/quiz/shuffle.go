package quiz

import (
	"math/rand"
	"sync"
	"time"

	"github.com/victornm/quizbattle/internal/domain"
)

// Shuffler randomizes the display order of a question's answers.
// It is safe for concurrent use.
type Shuffler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewShuffler returns a Shuffler drawing from src, or from a time-seeded source when src is nil.
func NewShuffler(src rand.Source) *Shuffler {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Shuffler{rnd: rand.New(src)}
}

// Answers returns a uniformly random permutation of the correct answer and the distractors.
// The inputs are never modified.
func (s *Shuffler) Answers(correct string, distractors []string) []string {
	answers := make([]string, 0, len(distractors)+1)
	answers = append(answers, distractors...)
	answers = append(answers, correct)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Fisher-Yates
	for i := len(answers) - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		answers[i], answers[j] = answers[j], answers[i]
	}

	return answers
}

// Present builds the display form of q with a fresh answer order.
func (s *Shuffler) Present(q domain.Question) domain.PresentedQuestion {
	return domain.PresentedQuestion{
		Question: q,
		Answers:  s.Answers(q.Correct, q.Distractors),
	}
}
