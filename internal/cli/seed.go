package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/victornm/quizbattle/internal/domain"
	"github.com/victornm/quizbattle/internal/question"
	"github.com/victornm/quizbattle/internal/server"
)

type seedOptions struct {
	file         string
	openTDB      bool
	categories   []string
	difficulties []string
	amount       int
	interval     time.Duration
}

func newSeedCmd(o *rootOptions) *cobra.Command {
	so := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the stored questions with a seed file or Open Trivia DB questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (so.file == "") == !so.openTDB {
				return fmt.Errorf("exactly one of --file or --opentdb is required")
			}

			ctx := cmd.Context()

			qs, err := so.load(cmd)
			if err != nil {
				return err
			}

			c, err := o.serverConfig()
			if err != nil {
				return err
			}

			db, err := server.ConnectPostgres(ctx, c.Postgres)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			defer db.Close()

			qc := question.Config{
				Store:  question.NewPostgresStore(db),
				Prefix: c.Redis.Cache.Prefix,
			}

			rc, err := server.ConnectRedis(ctx, c.Redis.Cache)
			if err != nil {
				slog.WarnContext(ctx, "seed: redis unavailable, cached questions will expire on their own", "error", err)
			} else {
				defer rc.Close()
				qc.Redis = rc
			}

			n, err := question.NewService(qc).ReplaceQuestions(ctx, qs)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Seeding complete. Inserted %d questions.\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&so.file, "file", "", "seed file in the db.json layout")
	cmd.Flags().BoolVar(&so.openTDB, "opentdb", false, "fetch questions from Open Trivia DB")
	cmd.Flags().StringSliceVar(&so.categories, "categories", []string{domain.DefaultCategory}, "Open Trivia DB category IDs")
	cmd.Flags().StringSliceVar(&so.difficulties, "difficulties", []string{"easy", "medium", "hard"}, "difficulties to fetch")
	cmd.Flags().IntVar(&so.amount, "amount", 10, "questions per category and difficulty")
	cmd.Flags().DurationVar(&so.interval, "interval", 5*time.Second, "pause between Open Trivia DB calls")

	return cmd
}

func (so *seedOptions) load(cmd *cobra.Command) ([]domain.Question, error) {
	if so.file != "" {
		f, err := os.Open(so.file)
		if err != nil {
			return nil, fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()

		return question.DecodeSeed(f)
	}

	var reqs []question.FetchRequest
	for _, c := range so.categories {
		for _, d := range so.difficulties {
			reqs = append(reqs, question.FetchRequest{Amount: so.amount, Category: c, Difficulty: d})
		}
	}

	return question.FetchAll(cmd.Context(), question.NewOpenTDB(question.OpenTDBConfig{}), reqs, so.interval)
}
