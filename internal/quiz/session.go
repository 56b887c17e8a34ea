package quiz

import (
	"github.com/shopspring/decimal"

	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/errors"
)

const (
	// DefaultTimeBudget is the number of ticks a player has for each question.
	DefaultTimeBudget = 15
)

var (
	ErrAlreadyStarted = errors.New(errors.CodeInvalidArgument, errors.WithMessagef("quiz session already started"))
	ErrAbandoned      = errors.New(errors.CodeCanceled, errors.WithMessagef("quiz session abandoned"))
)

type State int

const (
	StateLoading State = iota
	StateInProgress
	StateAnswerRevealed
	StateCompleted
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateInProgress:
		return "in_progress"
	case StateAnswerRevealed:
		return "answer_revealed"
	case StateCompleted:
		return "completed"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAbandoned
}

type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeCorrect
	OutcomeIncorrect
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCorrect:
		return "correct"
	case OutcomeIncorrect:
		return "incorrect"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "pending"
	}
}

type trigger int

const (
	triggerStart trigger = iota
	triggerAnswer
	triggerExpire
	triggerNext
	triggerFinish
	triggerAbandon
)

// transitions is the complete state machine. A trigger missing for the
// current state is ignored, which is what makes late answers, late ticks
// and repeated advances no-ops.
var transitions = map[State]map[trigger]State{
	StateLoading: {
		triggerStart:   StateInProgress,
		triggerAbandon: StateAbandoned,
	},
	StateInProgress: {
		triggerAnswer:  StateAnswerRevealed,
		triggerExpire:  StateAnswerRevealed,
		triggerAbandon: StateAbandoned,
	},
	StateAnswerRevealed: {
		triggerNext:    StateInProgress,
		triggerFinish:  StateCompleted,
		triggerAbandon: StateAbandoned,
	},
}

// Answer records how one question was resolved.
type Answer struct {
	QuestionID int64
	Selected   string
	Outcome    Outcome
}

// Result is the final state of a completed session.
type Result struct {
	Score   int
	Total   int
	Answers []Answer
}

// Accuracy is the share of correct answers as a percentage rounded to two places.
// Timed out questions count as incorrect.
func (r Result) Accuracy() decimal.Decimal {
	if r.Total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(r.Score)).
		Div(decimal.NewFromInt(int64(r.Total))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

// Snapshot is a read-only view of a session for presentation layers.
type Snapshot struct {
	State     State
	Index     int
	Total     int
	Score     int
	Remaining int
	Budget    int
	Question  *domain.PresentedQuestion
	Selected  string
	Correct   string
	Outcome   Outcome
}

type Option func(*Session)

// WithTimeBudget sets the number of ticks allowed per question.
func WithTimeBudget(ticks int) Option {
	return func(s *Session) {
		if ticks > 0 {
			s.budget = ticks
		}
	}
}

func WithShuffler(sh *Shuffler) Option {
	return func(s *Session) {
		if sh != nil {
			s.shuffler = sh
		}
	}
}

// OnComplete registers the action run when the session enters StateCompleted.
func OnComplete(f func(Result)) Option {
	return func(s *Session) {
		s.onComplete = f
	}
}

// Session is the state machine of a single quiz run.
// It is not safe for concurrent use; drive it from one goroutine (see Runner).
type Session struct {
	budget     int
	shuffler   *Shuffler
	onComplete func(Result)

	state     State
	questions []domain.Question
	answers   []Answer
	index     int
	score     int
	remaining int
	selected  string
	presented *domain.PresentedQuestion
	result    *Result
}

// New returns a session in StateLoading.
func New(opts ...Option) *Session {
	s := &Session{
		budget: DefaultTimeBudget,
		state:  StateLoading,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.shuffler == nil {
		s.shuffler = NewShuffler(nil)
	}

	return s
}

// Start begins the session with the first question and a full time budget.
func (s *Session) Start(questions []domain.Question) error {
	if s.state != StateLoading {
		return ErrAlreadyStarted
	}
	if len(questions) == 0 {
		return domain.ErrEmptyQuestionSet
	}

	s.questions = append([]domain.Question(nil), questions...)
	s.answers = make([]Answer, len(questions))
	for i, q := range s.questions {
		s.answers[i] = Answer{QuestionID: q.ID}
	}

	s.index = 0
	s.score = 0
	s.fire(triggerStart)
	return nil
}

// SubmitAnswer resolves the current question with answer. It reports
// whether the answer was accepted; anything but the first resolution of a
// question is ignored.
func (s *Session) SubmitAnswer(answer string) bool {
	if _, ok := transitions[s.state][triggerAnswer]; !ok {
		return false
	}

	outcome := OutcomeIncorrect
	if answer == s.questions[s.index].Correct {
		outcome = OutcomeCorrect
		s.score++
	}

	s.answers[s.index].Selected = answer
	s.answers[s.index].Outcome = outcome
	s.selected = answer
	return s.fire(triggerAnswer)
}

// Advance moves past a revealed question, completing the session after the last one.
func (s *Session) Advance() bool {
	if s.index+1 < len(s.questions) {
		return s.fire(triggerNext)
	}
	return s.fire(triggerFinish)
}

// Tick consumes one unit of the current question's time budget. When the
// budget runs out the question is resolved as timed out and the session
// advances immediately.
func (s *Session) Tick() bool {
	if s.state != StateInProgress {
		return false
	}

	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining == 0 {
		s.answers[s.index].Outcome = OutcomeTimedOut
		s.fire(triggerExpire)
		s.Advance()
	}
	return true
}

// Abandon discards the session. A discarded session never reports a result.
func (s *Session) Abandon() bool {
	return s.fire(triggerAbandon)
}

func (s *Session) fire(t trigger) bool {
	next, ok := transitions[s.state][t]
	if !ok {
		return false
	}

	if t == triggerNext {
		s.index++
	}
	s.state = next

	switch next {
	case StateInProgress:
		s.remaining = s.budget
		s.selected = ""
		s.presented = nil
	case StateCompleted:
		s.complete()
	}

	return true
}

// complete is the entry action of StateCompleted. Completed has no outgoing
// transitions, so it runs at most once per session.
func (s *Session) complete() {
	r := Result{
		Score:   s.score,
		Total:   len(s.questions),
		Answers: append([]Answer(nil), s.answers...),
	}
	s.result = &r

	if s.onComplete != nil {
		s.onComplete(r)
	}
}

func (s *Session) State() State { return s.state }

func (s *Session) Index() int { return s.index }

func (s *Session) Score() int { return s.score }

func (s *Session) Remaining() int { return s.remaining }

func (s *Session) Total() int { return len(s.questions) }

// Result returns the final result once the session is completed.
func (s *Session) Result() (Result, bool) {
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// Current returns the question being displayed. Its answer order is computed
// on first access and reused until the session moves to another question.
func (s *Session) Current() (domain.PresentedQuestion, bool) {
	if s.state != StateInProgress && s.state != StateAnswerRevealed {
		return domain.PresentedQuestion{}, false
	}

	if s.presented == nil {
		p := s.shuffler.Present(s.questions[s.index])
		s.presented = &p
	}
	return *s.presented, true
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:     s.state,
		Index:     s.index,
		Total:     len(s.questions),
		Score:     s.score,
		Remaining: s.remaining,
		Budget:    s.budget,
	}

	if q, ok := s.Current(); ok {
		snap.Question = &q
	}

	if s.state == StateAnswerRevealed {
		snap.Selected = s.selected
		snap.Correct = s.questions[s.index].Correct
		snap.Outcome = s.answers[s.index].Outcome
	}

	return snap
}
