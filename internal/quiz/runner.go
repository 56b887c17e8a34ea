package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/telemetry"
)

const (
	defaultTickInterval  = time.Second
	defaultRevealDelay   = 900 * time.Millisecond
	defaultReportTimeout = 10 * time.Second
	answerBuffer         = 4
)

// Reporter receives the leaderboard entry of a completed session.
type Reporter interface {
	Report(ctx context.Context, e domain.LeaderboardEntry) error
}

type ReporterFunc func(ctx context.Context, e domain.LeaderboardEntry) error

func (f ReporterFunc) Report(ctx context.Context, e domain.LeaderboardEntry) error {
	return f(ctx, e)
}

type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

type RunnerConfig struct {
	Username     string
	TimeBudget   int
	TickInterval time.Duration
	RevealDelay  time.Duration
	Shuffler     *Shuffler
	Reporter     Reporter

	// Observer is called from the run loop after every state change. It must not block.
	Observer func(Snapshot)

	NewTickerFunc func(d time.Duration) Ticker
	NewTimerFunc  func(d time.Duration) Timer
	Now           func() time.Time
}

// Runner drives a Session from a single goroutine: timer ticks, player
// answers and the reveal delay are all serialized through Run.
type Runner struct {
	id           string
	username     string
	tickInterval time.Duration
	revealDelay  time.Duration
	reporter     Reporter
	observer     func(Snapshot)
	newTicker    func(d time.Duration) Ticker
	newTimer     func(d time.Duration) Timer
	now          func() time.Time

	session *Session
	answers chan submission
	running atomic.Bool
	runCtx  context.Context
	reports sync.WaitGroup
}

// NewRunner starts a session over questions. It fails with domain.ErrEmptyQuestionSet
// when there is nothing to play.
func NewRunner(questions []domain.Question, c RunnerConfig) (*Runner, error) {
	r := &Runner{
		id:           uuid.NewString(),
		username:     c.Username,
		tickInterval: c.TickInterval,
		revealDelay:  c.RevealDelay,
		reporter:     c.Reporter,
		observer:     c.Observer,
		newTicker:    c.NewTickerFunc,
		newTimer:     c.NewTimerFunc,
		now:          c.Now,
		answers:      make(chan submission, answerBuffer),
	}

	if r.tickInterval <= 0 {
		r.tickInterval = defaultTickInterval
	}
	if r.revealDelay <= 0 {
		r.revealDelay = defaultRevealDelay
	}
	if r.newTicker == nil {
		r.newTicker = newTimeTicker
	}
	if r.newTimer == nil {
		r.newTimer = newTimeTimer
	}
	if r.now == nil {
		r.now = time.Now
	}

	r.session = New(
		WithTimeBudget(c.TimeBudget),
		WithShuffler(c.Shuffler),
		OnComplete(r.complete),
	)
	if err := r.session.Start(questions); err != nil {
		return nil, err
	}

	telemetry.QuizSessions.WithLabelValues("started").Inc()
	return r, nil
}

func (r *Runner) ID() string { return r.id }

type submission struct {
	index  int
	answer string
}

// Submit forwards an answer for the question at index to the run loop without
// blocking. Answers that arrive faster than the loop consumes them are
// dropped, which is harmless since only the first answer to a question counts.
// An answer for any question but the current one is ignored.
func (r *Runner) Submit(index int, answer string) {
	select {
	case r.answers <- submission{index: index, answer: answer}:
	default:
	}
}

// Run plays the session until it completes or ctx is done. Cancelling ctx
// abandons the session: the ticker stops and nothing is reported.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Result{}, fmt.Errorf("quiz: runner %s already running", r.id)
	}
	r.runCtx = ctx

	ticker := r.newTicker(r.tickInterval)
	defer ticker.Stop()

	var (
		reveal  Timer
		revealC <-chan time.Time
	)
	defer func() {
		if reveal != nil {
			reveal.Stop()
		}
	}()

	r.notify()

	for {
		index := r.session.Index()

		select {
		case <-ctx.Done():
			r.session.Abandon()
			telemetry.QuizSessions.WithLabelValues("abandoned").Inc()
			r.notify()
			return Result{}, ErrAbandoned

		case <-ticker.C():
			if !r.session.Tick() {
				continue
			}

		case a := <-r.answers:
			if a.index != index || !r.session.SubmitAnswer(a.answer) {
				continue
			}
			reveal = r.newTimer(r.revealDelay)
			revealC = reveal.C()

		case <-revealC:
			reveal, revealC = nil, nil
			r.session.Advance()
		}

		if r.session.State() == StateInProgress && r.session.Index() != index {
			ticker.Reset(r.tickInterval)
		}

		r.notify()

		if r.session.State() == StateCompleted {
			res, _ := r.session.Result()
			return res, nil
		}
	}
}

// Wait blocks until background score reports have finished.
func (r *Runner) Wait() {
	r.reports.Wait()
}

func (r *Runner) notify() {
	if r.observer != nil {
		r.observer(r.session.Snapshot())
	}
}

// complete runs once, as the session enters StateCompleted.
func (r *Runner) complete(res Result) {
	telemetry.QuizSessions.WithLabelValues("completed").Inc()
	for _, a := range res.Answers {
		telemetry.QuizAnswers.WithLabelValues(a.Outcome.String()).Inc()
	}

	if r.reporter == nil {
		return
	}

	// The leaderboard assigns the ID.
	entry := domain.LeaderboardEntry{
		Username: r.username,
		Score:    int64(res.Score),
		Date:     r.now().UTC(),
	}

	ctx := context.WithoutCancel(r.runCtx)

	r.reports.Add(1)
	go func() {
		defer r.reports.Done()

		ctx, cancel := context.WithTimeout(ctx, defaultReportTimeout)
		defer cancel()

		if err := r.reporter.Report(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "quiz: report score failed",
				"session", r.id,
				"username", entry.Username,
				"score", entry.Score,
				"error", err,
			)
		}
	}()
}

type timeTicker struct{ *time.Ticker }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

type timeTimer struct{ *time.Timer }

func newTimeTimer(d time.Duration) Timer { return timeTimer{time.NewTimer(d)} }

func (t timeTimer) C() <-chan time.Time { return t.Timer.C }
