package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eringen/livepages"
)

// defaultConfigFile is read when --config and $LIVEPAGES_CONFIG are both unset.
const defaultConfigFile = "livepages.yaml"

// loadConfig merges the config file, environment and command line flags,
// in increasing order of precedence. A missing default config file is not an error.
func loadConfig(cmd *cobra.Command) (livepages.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	explicit := path != ""
	if !explicit {
		path = livepages.EnvOr("LIVEPAGES_CONFIG", defaultConfigFile)
		explicit = path != defaultConfigFile
	}

	cfg, err := livepages.LoadConfigFile(path)
	if err != nil {
		if !errors.Is(err, livepages.ErrConfigNotFound) || explicit {
			return livepages.Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = livepages.Config{}
	}

	if err := livepages.ApplyEnv(&cfg); err != nil {
		return livepages.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("api-key") {
		cfg.APIKey, _ = flags.GetString("api-key")
	}
	if flags.Changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if flags.Lookup("addr") != nil && flags.Changed("addr") {
		cfg.Addr, _ = flags.GetString("addr")
	}
	if flags.Lookup("page-limit") != nil && flags.Changed("page-limit") {
		cfg.PageLimit, _ = flags.GetInt("page-limit")
	}
	if flags.Lookup("interval") != nil && flags.Changed("interval") {
		cfg.PollInterval, _ = flags.GetDuration("interval")
	}
	if flags.Lookup("history") != nil && flags.Changed("history") {
		cfg.HistoryEnabled, _ = flags.GetBool("history")
	}
	return cfg, nil
}
