package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "livepages",
		Short: "Live top pages from the Chartbeat API",
		Long: `livepages polls the Chartbeat live top-pages API on a fixed interval
and serves the current ranking as a web page with per-page referrer details.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "YAML config file (default $LIVEPAGES_CONFIG or ./livepages.yaml)")
	cmd.PersistentFlags().String("api-key", "", "Chartbeat API key")
	cmd.PersistentFlags().String("host", "", "tracked host, e.g. example.com")
	cmd.PersistentFlags().BoolP("debug", "d", false, "enable debug logging")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewFetchCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
