package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pario-ai/faqbot/pkg/config"
)

var version = "dev"

const defaultConfigPath = "faqbot.yaml"

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "faqbot",
		Short:         "FAQ assistant with a semantic cache and generative fallback",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log_level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newFAQCmd(opts),
		newCacheCmd(opts),
		newAuditCmd(opts),
		newBudgetCmd(opts),
		newSessionsCmd(opts),
		newMCPCmd(opts),
	)
	return root
}

// load reads the config and installs the process logger. A missing default
// config file falls back to the built-in defaults.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if errors.Is(err, fs.ErrNotExist) && o.configPath == defaultConfigPath {
		cfg = config.Default()
		err = cfg.Validate()
	}
	if err != nil {
		return nil, nil, err
	}

	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger, err := newLogger(level)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
