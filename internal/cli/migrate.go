package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/victornm/quizbattle/internal/migrations"
	"github.com/victornm/quizbattle/internal/server"
)

func newMigrateCmd(o *rootOptions) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.serverConfig()
			if err != nil {
				return err
			}

			if !down {
				return server.Migrate(cmd.Context(), c.Postgres)
			}

			db := migrations.Open(c.Postgres.DSN())
			defer db.Close()

			g, err := migrations.Down(cmd.Context(), db)
			if err != nil {
				return err
			}

			if g.IsZero() {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", g)
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back the last migration group")
	return cmd
}
