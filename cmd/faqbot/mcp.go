package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/faqbot/pkg/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start faqbot as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			a.reloadOnHangup(ctx, logger)

			mopts := mcp.Options{
				Answerer: a.selector,
				Index:    a.cache,
				Sessions: a.history,
				Version:  version,
				Logger:   logger,
			}
			if a.audit != nil {
				mopts.Audit = a.audit
			}
			if a.budget != nil {
				mopts.Budget = a.budget
			}
			return mcp.New(mopts).RunStdio(ctx)
		},
	}
}
