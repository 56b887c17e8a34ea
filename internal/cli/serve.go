package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/victornm/quizbattle/internal/server"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.serverConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("migrate") {
				c.Migrate = migrate
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := server.Init(ctx, c)
			if err != nil {
				return err
			}

			go s.Start()

			<-ctx.Done()
			s.Shutdown()
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}
