package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pario-ai/faqbot/pkg/config"
)

// ErrNoProviders is returned when no generation provider is configured.
var ErrNoProviders = errors.New("no providers configured")

// Route represents a resolved provider and model to try.
type Route struct {
	Provider config.ProviderConfig
	Model    string
}

// Router resolves the generator fallback chain to ordered provider+model
// routes.
type Router struct {
	cfg config.GeneratorConfig
}

// New creates a Router from the given generator configuration.
func New(cfg config.GeneratorConfig) *Router {
	return &Router{cfg: cfg}
}

// Resolve returns the routes to try, in order.
//
// Each chain entry is a provider name, optionally followed by "/model" to
// override the provider's default model. Unknown providers are skipped. An
// empty chain uses every provider in configuration order.
func (r *Router) Resolve() ([]Route, error) {
	if len(r.cfg.Providers) == 0 {
		return nil, ErrNoProviders
	}

	if len(r.cfg.Chain) == 0 {
		routes := make([]Route, 0, len(r.cfg.Providers))
		for _, p := range r.cfg.Providers {
			routes = append(routes, Route{Provider: p, Model: p.Model})
		}
		return routes, nil
	}

	providerIndex := make(map[string]config.ProviderConfig, len(r.cfg.Providers))
	for _, p := range r.cfg.Providers {
		providerIndex[p.Name] = p
	}

	var routes []Route
	for _, entry := range r.cfg.Chain {
		name, model, _ := strings.Cut(entry, "/")
		provider, ok := providerIndex[name]
		if !ok {
			continue // skip unknown providers
		}
		if model == "" {
			model = provider.Model
		}
		routes = append(routes, Route{Provider: provider, Model: model})
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("chain %v: all providers unknown", r.cfg.Chain)
	}
	return routes, nil
}
