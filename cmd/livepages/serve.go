package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eringen/livepages"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll Chartbeat and serve the live top pages",
		Long: `Serve starts the poller and the web server.

Configuration is read from the YAML file, then overridden by environment
variables (CHARTBEAT_API_KEY, CHARTBEAT_HOST, POLL_INTERVAL, ...) and
finally by command line flags.

Examples:
  # Serve with an API key from the environment
  CHARTBEAT_API_KEY=... livepages serve --host example.com

  # Poll every 10 seconds and keep a history database
  livepages serve --interval 10s --history`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().String("addr", "", "listen address (default :3000)")
	cmd.Flags().Int("page-limit", 0, "number of ranks to show (default 10)")
	cmd.Flags().Duration("interval", 0, "delay between polls (default 5s)")
	cmd.Flags().Bool("history", false, "record every successful poll in SQLite")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := livepages.New(cfg)
	defer app.Close()

	if err := app.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// contextOrBackground returns ctx, or context.Background when the command
// was executed without one.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
