package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pario-ai/faqbot/pkg/audit"
	"github.com/pario-ai/faqbot/pkg/budget"
	"github.com/pario-ai/faqbot/pkg/cache/semantic"
	"github.com/pario-ai/faqbot/pkg/chat"
	"github.com/pario-ai/faqbot/pkg/config"
	"github.com/pario-ai/faqbot/pkg/feedback"
	"github.com/pario-ai/faqbot/pkg/generator"
	"github.com/pario-ai/faqbot/pkg/history"
	"github.com/pario-ai/faqbot/pkg/selector"
	"github.com/pario-ai/faqbot/pkg/store"
)

// app is the fully wired answering engine shared by serve, ask and mcp.
type app struct {
	cfg      *config.Config
	store    store.Store
	cache    *semantic.Cache
	audit    *audit.Logger
	budget   *budget.Enforcer
	selector *selector.Selector
	history  *history.SQLiteHistory
	chat     *chat.Service
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.store, err = store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	a.cache, err = openCache(ctx, a.store, logger)
	if err != nil {
		return nil, err
	}

	var gen generator.Generator
	if cfg.Generator.Enabled {
		chain, err := generator.FromConfig(ctx, cfg.Generator, logger)
		switch {
		case errors.Is(err, generator.ErrNoProviders):
			logger.Warn("no generator providers configured", "error", err)
		case err != nil:
			return nil, err
		default:
			gen = chain
			a.closers = append(a.closers, chain.Close)
		}
	}

	var selOpts []selector.Option
	selOpts = append(selOpts, selector.WithLogger(logger))
	if cfg.Audit.Enabled {
		auditCfg := cfg.Audit
		auditCfg.DBPath = cfg.AuditDBPath()
		a.audit, err = audit.New(auditCfg, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.audit.Close)

		if cfg.Budget.Enabled {
			a.budget = budget.New(cfg.Budget.Policies, a.audit)
			selOpts = append(selOpts, selector.WithGate(a.budget))
		}
	}

	a.selector, err = selector.New(selector.Config{
		CacheEnabled:      cfg.Cache.Enabled,
		GeneratorEnabled:  cfg.Generator.Enabled,
		DistanceThreshold: cfg.Cache.DistanceThreshold,
		GeneratorTimeout:  cfg.Generator.Timeout,
	}, a.cache, gen, selOpts...)
	if err != nil {
		return nil, err
	}

	a.history, err = history.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.history.Close)

	chatOpts := chat.Options{
		Selector:   a.selector,
		History:    a.history,
		Writer:     feedback.New(a.store, logger),
		Cache:      a.cache,
		Loader:     a.store,
		MaxTurns:   cfg.History.MaxTurns,
		GapTimeout: cfg.History.GapTimeout,
		Logger:     logger,
	}
	if a.audit != nil {
		chatOpts.Audit = a.audit
	}
	a.chat = chat.New(chatOpts)
	return a, nil
}

// openCache fits the cache over the store. A store that does not exist yet
// yields an empty cache; malformed data is fatal.
func openCache(ctx context.Context, st store.Store, logger *slog.Logger) (*semantic.Cache, error) {
	c, err := semantic.Open(ctx, st, semantic.WithLogger(logger))
	if errors.Is(err, store.ErrUnreadable) {
		logger.Warn("faq store unreadable, starting with an empty cache", "error", err)
		return semantic.New(semantic.WithLogger(logger)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}
	return c, nil
}

// reloadOnHangup rebuilds the cache from the store on every SIGHUP until ctx
// is done, so records added by faq add or faq import reach a running server.
func (a *app) reloadOnHangup(ctx context.Context, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := a.chat.ReloadCache(ctx); err != nil {
					logger.Error("cache reload failed", "error", err)
					continue
				}
				logger.Info("cache reloaded", "rows", a.cache.Stats().Rows)
			}
		}
	}()
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}
