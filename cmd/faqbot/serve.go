package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/faqbot/pkg/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			a.reloadOnHangup(ctx, logger)

			logger.Info("starting faqbot", "config", opts.configPath, "store", cfg.Store.Driver)
			return server.New(cfg.Listen, a.chat, a.cache, logger).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address")
	return cmd
}
