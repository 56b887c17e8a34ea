package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/victornm/quizbattle/internal/client"
	"github.com/victornm/quizbattle/internal/config"
	"github.com/victornm/quizbattle/internal/server"
)

const envPrefix = "QUIZBATTLE"

type rootOptions struct {
	configPath  string
	serverURL   string
	sessionPath string
	logLevel    string
}

// clientConfig is the part of the config file read by the terminal client.
type clientConfig struct {
	Client struct {
		Server  string
		Session string
	}
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

func NewRootCmd() *cobra.Command {
	o := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "quizbattle",
		Short:         "Timed multiple-choice trivia with a shared leaderboard",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(o.logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&o.configPath, "config", os.Getenv("CONFIG_PATH"), "path to YAML config")
	cmd.PersistentFlags().StringVar(&o.serverURL, "server", "", "Quiz Battle API base URL")
	cmd.PersistentFlags().StringVar(&o.sessionPath, "session", "", "path of the saved login session")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newServeCmd(o),
		newMigrateCmd(o),
		newSeedCmd(o),
		newRegisterCmd(o),
		newLoginCmd(o),
		newLogoutCmd(o),
		newLeaderboardCmd(o),
		newPlayCmd(o),
	)

	return cmd
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}

func (o *rootOptions) serverConfig() (server.Config, error) {
	c := server.DefaultConfig()
	if err := config.Load(o.configPath, &c, config.WithEnvPrefix(envPrefix)); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}
	return c, nil
}

func (o *rootOptions) clientConfig() (clientConfig, error) {
	var c clientConfig
	c.Client.Server = "http://localhost:3001"
	c.Client.Session = client.DefaultSessionPath()

	if err := config.Load(o.configPath, &c, config.WithEnvPrefix(envPrefix)); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	if o.serverURL != "" {
		c.Client.Server = o.serverURL
	}
	if o.sessionPath != "" {
		c.Client.Session = o.sessionPath
	}

	return c, nil
}

func (o *rootOptions) client() (*client.Client, clientConfig, error) {
	c, err := o.clientConfig()
	if err != nil {
		return nil, c, err
	}
	return client.New(client.Config{BaseURL: c.Client.Server}), c, nil
}
