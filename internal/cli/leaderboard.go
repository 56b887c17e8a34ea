package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLeaderboardCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := o.client()
			if err != nil {
				return err
			}

			entries, err := c.Leaderboard(cmd.Context())
			if err != nil {
				return userError(err)
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scores yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tUSERNAME\tSCORE\tDATE")
			for i, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", i+1, e.Username, e.Score, e.Date.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}
