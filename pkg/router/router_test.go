package router

import (
	"errors"
	"testing"

	"github.com/pario-ai/faqbot/pkg/config"
)

var providers = []config.ProviderConfig{
	{Name: "groq", Type: "openai", URL: "https://api.groq.com/openai/v1", APIKey: "gsk-1", Model: "llama-3.3-70b-versatile"},
	{Name: "claude", Type: "anthropic", APIKey: "sk-2", Model: "claude-haiku-4-5"},
}

func TestResolveEmptyChain(t *testing.T) {
	r := New(config.GeneratorConfig{Providers: providers})
	routes, err := r.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	if routes[0].Provider.Name != "groq" || routes[0].Model != "llama-3.3-70b-versatile" {
		t.Errorf("unexpected first route: %+v", routes[0])
	}
	if routes[1].Provider.Name != "claude" {
		t.Errorf("unexpected second route: %+v", routes[1])
	}
}

func TestResolveChainOrder(t *testing.T) {
	r := New(config.GeneratorConfig{
		Providers: providers,
		Chain:     []string{"claude", "groq/llama-3.1-8b-instant"},
	})
	routes, err := r.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	if routes[0].Provider.Name != "claude" || routes[0].Model != "claude-haiku-4-5" {
		t.Errorf("unexpected first route: %+v", routes[0])
	}
	if routes[1].Provider.Name != "groq" || routes[1].Model != "llama-3.1-8b-instant" {
		t.Errorf("unexpected second route: %+v", routes[1])
	}
}

func TestResolveSkipsUnknown(t *testing.T) {
	r := New(config.GeneratorConfig{
		Providers: providers,
		Chain:     []string{"nonexistent", "groq"},
	})
	routes, err := r.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 1 || routes[0].Provider.Name != "groq" {
		t.Errorf("unexpected routes: %+v", routes)
	}
}

func TestResolveAllUnknown(t *testing.T) {
	r := New(config.GeneratorConfig{
		Providers: providers,
		Chain:     []string{"nonexistent"},
	})
	if _, err := r.Resolve(); err == nil {
		t.Fatal("expected error for all-unknown chain")
	}
}

func TestResolveNoProviders(t *testing.T) {
	r := New(config.GeneratorConfig{})
	if _, err := r.Resolve(); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}
