// Package generator produces answers for questions the semantic cache cannot
// serve, by prompting a chain of remote language-model providers.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

var (
	// ErrGenerator wraps every failure to obtain an answer: connectivity,
	// missing credentials or an empty or malformed response.
	ErrGenerator = errors.New("generator error")
	// ErrNoProviders is returned when a chain has nothing to call.
	ErrNoProviders = errors.New("no generator providers")
)

// Generator answers a question given a flattened conversation transcript.
type Generator interface {
	Generate(ctx context.Context, question, history string) (string, error)
}

// Completer sends one system instruction and one user prompt to a model and
// returns its text output.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Provider adapts a Completer into a Generator by building the FAQ prompt.
type Provider struct {
	Name      string
	Completer Completer
	// System overrides DefaultSystemPrompt when set.
	System string
}

// Generate implements Generator.
func (p *Provider) Generate(ctx context.Context, question, history string) (string, error) {
	system := p.System
	if system == "" {
		system = DefaultSystemPrompt
	}

	out, err := p.Completer.Complete(ctx, system, BuildPrompt(question, history))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrGenerator, p.Name, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: %s: empty response", ErrGenerator, p.Name)
	}
	return out, nil
}

// Chain tries generators in order and returns the first answer.
type Chain struct {
	generators []Generator
	logger     *slog.Logger
}

// NewChain creates a Chain. A nil logger uses slog.Default().
func NewChain(logger *slog.Logger, generators ...Generator) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{generators: generators, logger: logger}
}

// Len returns the number of generators in the chain.
func (c *Chain) Len() int { return len(c.generators) }

// Generate implements Generator. When every generator fails the last error
// is returned, wrapped in ErrGenerator.
func (c *Chain) Generate(ctx context.Context, question, history string) (string, error) {
	if len(c.generators) == 0 {
		return "", fmt.Errorf("%w: %w", ErrGenerator, ErrNoProviders)
	}

	var lastErr error
	for i, g := range c.generators {
		out, err := g.Generate(ctx, question, history)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if i < len(c.generators)-1 {
			c.logger.Warn("generator failed, trying next", "error", err)
		}
	}

	if !errors.Is(lastErr, ErrGenerator) {
		lastErr = fmt.Errorf("%w: %w", ErrGenerator, lastErr)
	}
	return "", lastErr
}

// Close releases providers that hold client resources.
func (c *Chain) Close() error {
	var errs []error
	for _, g := range c.generators {
		p, ok := g.(*Provider)
		if !ok {
			continue
		}
		if closer, ok := p.Completer.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}
