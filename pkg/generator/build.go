package generator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pario-ai/faqbot/pkg/config"
	"github.com/pario-ai/faqbot/pkg/generator/anthropic"
	"github.com/pario-ai/faqbot/pkg/generator/google"
	"github.com/pario-ai/faqbot/pkg/generator/openai"
	"github.com/pario-ai/faqbot/pkg/router"
)

// Provider types.
const (
	TypeOpenAI    = "openai"
	TypeAnthropic = "anthropic"
	TypeGoogle    = "google"
)

// FromConfig builds the fallback chain described by cfg. Providers that
// cannot be constructed are logged and left out; it fails only when no
// provider remains.
func FromConfig(ctx context.Context, cfg config.GeneratorConfig, logger *slog.Logger) (*Chain, error) {
	if logger == nil {
		logger = slog.Default()
	}

	routes, err := router.New(cfg).Resolve()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoProviders, err)
	}

	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	var generators []Generator
	for _, route := range routes {
		c, err := newCompleter(ctx, route, cfg, httpClient)
		if err != nil {
			logger.Warn("skipping generator provider", "provider", route.Provider.Name, "error", err)
			continue
		}
		generators = append(generators, &Provider{
			Name:      route.Provider.Name,
			Completer: c,
			System:    cfg.SystemPrompt,
		})
	}
	if len(generators) == 0 {
		return nil, ErrNoProviders
	}
	return NewChain(logger, generators...), nil
}

func newCompleter(ctx context.Context, route router.Route, cfg config.GeneratorConfig, httpClient *http.Client) (Completer, error) {
	p := route.Provider
	if p.APIKey == "" && p.Type != TypeOpenAI {
		return nil, fmt.Errorf("provider %q: missing api_key", p.Name)
	}
	if route.Model == "" {
		return nil, fmt.Errorf("provider %q: missing model", p.Name)
	}

	switch p.Type {
	case "", TypeOpenAI:
		return openai.New(openai.Options{
			BaseURL:     p.URL,
			APIKey:      p.APIKey,
			Model:       route.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			HTTPClient:  httpClient,
		}), nil
	case TypeAnthropic:
		return anthropic.New(anthropic.Options{
			BaseURL:     p.URL,
			APIKey:      p.APIKey,
			Model:       route.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			HTTPClient:  httpClient,
		}), nil
	case TypeGoogle:
		return google.New(ctx, google.Options{
			APIKey:      p.APIKey,
			Model:       route.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("provider %q: unknown type %q", p.Name, p.Type)
	}
}
