// Package selector routes a question to the semantic cache or the answer
// generator and always produces an answer with a source tag.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pario-ai/faqbot/pkg/cache/semantic"
	"github.com/pario-ai/faqbot/pkg/generator"
	"github.com/pario-ai/faqbot/pkg/models"
)

// Fixed replies.
const (
	ApologyText = "Error al generar respuesta con IA."
	NoInfoText  = "Lo siento, no tengo información sobre eso."
)

// ErrConfig reports an inconsistent selector configuration.
var ErrConfig = errors.New("selector config error")

// Matcher finds the nearest cached answer. *semantic.Cache implements it.
type Matcher interface {
	Query(question string) (semantic.Match, error)
}

// Gate is consulted before every generator call. A non-nil error denies the
// call.
type Gate interface {
	Allow(ctx context.Context) error
}

// Config is the immutable routing configuration.
type Config struct {
	CacheEnabled     bool
	GeneratorEnabled bool
	// DistanceThreshold is the largest cosine distance served from the cache.
	DistanceThreshold float64
	// GeneratorTimeout bounds each generator call. Zero means no limit.
	GeneratorTimeout time.Duration
}

// Selector is safe for concurrent use.
type Selector struct {
	cfg    Config
	cache  Matcher
	gen    generator.Generator
	gate   Gate
	logger *slog.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithGate installs a gate checked before generator calls.
func WithGate(g Gate) Option {
	return func(s *Selector) { s.gate = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Selector) {
		if l != nil {
			s.logger = l
		}
	}
}

// New validates cfg and returns a Selector. An enabled source without a
// handle is logged and disabled rather than rejected; an out-of-range
// threshold or negative timeout is an error.
func New(cfg Config, cache Matcher, gen generator.Generator, opts ...Option) (*Selector, error) {
	if cfg.DistanceThreshold < 0 || cfg.DistanceThreshold > 2 {
		return nil, fmt.Errorf("%w: distance threshold %v outside [0, 2]", ErrConfig, cfg.DistanceThreshold)
	}
	if cfg.GeneratorTimeout < 0 {
		return nil, fmt.Errorf("%w: negative generator timeout", ErrConfig)
	}

	s := &Selector{cfg: cfg, cache: cache, gen: gen, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	if s.cfg.CacheEnabled && cache == nil {
		s.logger.Error("cache enabled without a cache, disabling", "error", ErrConfig)
		s.cfg.CacheEnabled = false
	}
	if s.cfg.GeneratorEnabled && gen == nil {
		s.logger.Error("generator enabled without a generator, disabling", "error", ErrConfig)
		s.cfg.GeneratorEnabled = false
	}
	return s, nil
}

// Config returns the effective configuration after degradation.
func (s *Selector) Config() Config { return s.cfg }

// Answer routes question. With force set the cache is skipped. It never
// fails: every error resolves to an Error or None decision.
func (s *Selector) Answer(ctx context.Context, question, history string, force bool) models.Decision {
	var d models.Decision

	if s.cfg.CacheEnabled && !force {
		m, err := s.cache.Query(question)
		if err != nil {
			s.logger.Error("cache query failed", "error", err)
			m = semantic.Match{Index: -1, Distance: 1}
		}
		d.Distance, d.HasDistance = m.Distance, true
		if m.Found && m.Distance <= s.cfg.DistanceThreshold {
			d.Source, d.Answer = models.SourceCache, m.Answer
			return d
		}
	}

	if s.cfg.GeneratorEnabled {
		if s.gate != nil {
			if err := s.gate.Allow(ctx); err != nil {
				s.logger.Warn("generator call denied", "error", err)
				d.Source, d.Answer = models.SourceNone, NoInfoText
				return d
			}
		}

		out, err := s.generate(ctx, question, history)
		if err != nil {
			s.logger.Warn("generator failed", "error", err)
			d.Source, d.Answer = models.SourceError, ApologyText
			return d
		}
		d.Source, d.Answer = models.SourceGenerator, out
		return d
	}

	d.Source, d.Answer = models.SourceNone, NoInfoText
	return d
}

func (s *Selector) generate(ctx context.Context, question, history string) (out string, err error) {
	if s.cfg.GeneratorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GeneratorTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", generator.ErrGenerator, r)
		}
	}()

	return s.gen.Generate(ctx, question, history)
}
