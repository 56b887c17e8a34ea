package cli

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/victornm/quizbattle/internal/client"
	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/errors"
	"github.com/victornm/quizbattle/internal/quiz"
)

type playOptions struct {
	category     string
	difficulty   string
	timeBudget   int
	tickInterval time.Duration
	revealDelay  time.Duration
}

func newPlayCmd(o *rootOptions) *cobra.Command {
	po := &playOptions{}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a quiz in the terminal",
		Long: "Play a quiz in the terminal. Answer with the number of a choice or its text.\n" +
			"Your score is posted to the leaderboard when the quiz ends.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cc, err := o.client()
			if err != nil {
				return err
			}

			s, err := client.LoadSession(cc.Client.Session)
			if err != nil {
				return err
			}
			if !s.LoggedIn() {
				return fmt.Errorf("not logged in, run quizbattle login first")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			qs, err := c.Questions(ctx, po.category, po.difficulty)
			if err != nil {
				return userError(err)
			}

			_, err = play(ctx, playConfig{
				session:      s,
				questions:    qs,
				reporter:     scoreReporter(c),
				in:           cmd.InOrStdin(),
				out:          cmd.OutOrStdout(),
				timeBudget:   po.timeBudget,
				tickInterval: po.tickInterval,
				revealDelay:  po.revealDelay,
			})
			if errors.HasCode(err, errors.CodeNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "No questions found for this category/difficulty. Please choose another.")
				return nil
			}
			if stderrors.Is(err, quiz.ErrAbandoned) {
				fmt.Fprintln(cmd.OutOrStdout(), "\nQuiz abandoned, no score was posted.")
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&po.category, "category", domain.DefaultCategory, "Open Trivia DB category ID")
	cmd.Flags().StringVar(&po.difficulty, "difficulty", domain.DefaultDifficulty, "easy, medium or hard")
	cmd.Flags().IntVar(&po.timeBudget, "time", quiz.DefaultTimeBudget, "seconds per question")
	cmd.Flags().DurationVar(&po.tickInterval, "tick", time.Second, "length of one time unit")
	cmd.Flags().DurationVar(&po.revealDelay, "reveal", 900*time.Millisecond, "pause after revealing an answer")

	return cmd
}

func scoreReporter(c *client.Client) quiz.Reporter {
	return quiz.ReporterFunc(func(ctx context.Context, e domain.LeaderboardEntry) error {
		return c.SubmitScore(ctx, e.Username, e.Score)
	})
}

type playConfig struct {
	session   client.Session
	questions []domain.Question
	reporter  quiz.Reporter
	in        io.Reader
	out       io.Writer

	timeBudget   int
	tickInterval time.Duration
	revealDelay  time.Duration
	shuffler     *quiz.Shuffler
}

// play runs one quiz session against the terminal.
func play(ctx context.Context, c playConfig) (quiz.Result, error) {
	if len(c.questions) == 0 {
		return quiz.Result{}, domain.ErrEmptyQuestionSet
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	v := &terminalView{out: c.out}

	runner, err := quiz.NewRunner(c.questions, quiz.RunnerConfig{
		Username:     c.session.Username,
		TimeBudget:   c.timeBudget,
		TickInterval: c.tickInterval,
		RevealDelay:  c.revealDelay,
		Shuffler:     c.shuffler,
		Reporter:     c.reporter,
		Observer:     v.render,
	})
	if err != nil {
		return quiz.Result{}, err
	}

	go readAnswers(ctx, c.in, v, runner)

	res, err := runner.Run(ctx)
	if err != nil {
		return res, err
	}

	v.printResult(res)
	// Let the score submission finish before the process exits.
	runner.Wait()
	return res, nil
}

func readAnswers(ctx context.Context, in io.Reader, v *terminalView, r *quiz.Runner) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		r.Submit(v.resolve(line))
	}
}

// terminalView renders snapshots as plain text. render runs on the session
// loop and resolve on the input goroutine.
type terminalView struct {
	out io.Writer

	mu       sync.Mutex
	answers  []string
	current  domain.Question
	index    int
	shown    bool
	revealed bool
}

func (v *terminalView) render(s quiz.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch s.State {
	case quiz.StateInProgress:
		if s.Question == nil {
			return
		}

		if !v.shown || s.Index != v.index {
			v.timedOut()

			v.shown = true
			v.revealed = false
			v.index = s.Index
			v.current = s.Question.Question
			v.answers = s.Question.Answers

			fmt.Fprintf(v.out, "\nQuestion %d/%d (score %d)\n%s\n", s.Index+1, s.Total, s.Score, s.Question.Text)
			for i, a := range s.Question.Answers {
				fmt.Fprintf(v.out, "  %d) %s\n", i+1, a)
			}
			fmt.Fprintf(v.out, "You have %d seconds.\n", s.Remaining)
			return
		}

		if s.Remaining <= 3 || s.Remaining == 5 {
			fmt.Fprintf(v.out, "  %d...\n", s.Remaining)
		}

	case quiz.StateAnswerRevealed:
		v.revealed = true
		if s.Outcome == quiz.OutcomeCorrect {
			fmt.Fprintln(v.out, "Correct!")
			return
		}
		fmt.Fprintf(v.out, "Wrong! The answer was: %s\n", s.Correct)

	case quiz.StateCompleted:
		v.timedOut()
	}
}

// timedOut announces a question that was left without being revealed.
// A timeout moves the session on in the same step, so it only shows up as
// the next question or the completion.
func (v *terminalView) timedOut() {
	if !v.shown || v.revealed {
		return
	}
	v.revealed = true

	// Bell failures do not matter.
	_, _ = io.WriteString(v.out, "\a")
	fmt.Fprintf(v.out, "Time's up! The answer was: %s\n", v.current.Correct)
}

// resolve returns the index of the question on screen and the answer meant by line:
// a choice number maps to its text, anything else is taken as the answer itself.
func (v *terminalView) resolve(line string) (int, string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(v.answers) {
		return v.index, v.answers[n-1]
	}
	return v.index, line
}

func (v *terminalView) printResult(res quiz.Result) {
	v.mu.Lock()
	defer v.mu.Unlock()

	fmt.Fprintf(v.out, "\nQuiz complete! You scored %d out of %d (%s%%).\n",
		res.Score, res.Total, res.Accuracy().StringFixed(2))
}

// userError keeps only the message meant for the user.
func userError(err error) error {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return err
	}

	if e.Code == errors.CodeInternal || e.Code == errors.CodeUnavailable {
		slog.Debug("cli: request failed", "error", err)
	}
	return stderrors.New(e.Message)
}
