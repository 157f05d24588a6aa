// Package chat implements the chat request flow: session history, routing
// through the selector, write-back of generated answers and the cache
// rebuild that follows.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pario-ai/faqbot/pkg/cache/semantic"
	"github.com/pario-ai/faqbot/pkg/feedback"
	"github.com/pario-ai/faqbot/pkg/history"
	"github.com/pario-ai/faqbot/pkg/models"
	"github.com/pario-ai/faqbot/pkg/selector"
)

var (
	// ErrEmptyMessage is returned for a normal request without text.
	ErrEmptyMessage = errors.New("mensaje vacío")
	// ErrNoPreviousQuestion is returned when regenerating with nothing to regenerate.
	ErrNoPreviousQuestion = errors.New("no hay pregunta anterior")
	// ErrInvalidMode is returned for an unknown chat mode.
	ErrInvalidMode = errors.New("modo inválido")
)

// Answerer routes a question. *selector.Selector implements it.
type Answerer interface {
	Answer(ctx context.Context, question, history string, force bool) models.Decision
}

// Rebuilder refits the cache from its loader. *semantic.Cache implements it.
type Rebuilder interface {
	Reload(ctx context.Context, l semantic.Loader) error
}

// AuditLogger records decisions. *audit.Logger implements it.
type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditEntry) error
}

// Request is one incoming chat message.
type Request struct {
	SessionID string
	Client    string
	Message   string
	Mode      models.ChatMode
}

// Response is the reply to a Request.
type Response struct {
	SessionID string
	Reply     string
	Decision  models.Decision
	// Outcome is set when the answer was written back to the FAQ store.
	Outcome models.WriteOutcome
}

// Service handles chat requests. It is safe for concurrent use.
type Service struct {
	selector Answerer
	history  history.History
	writer   *feedback.Writer
	cache    Rebuilder
	loader   semantic.Loader
	audit    AuditLogger
	maxTurns int
	gap      time.Duration
	logger   *slog.Logger
}

// Options configures a Service. Writer, Cache and Loader may be nil to
// disable write-back; Audit may be nil.
type Options struct {
	Selector Answerer
	History  history.History
	Writer   *feedback.Writer
	Cache    Rebuilder
	Loader   semantic.Loader
	Audit    AuditLogger
	// MaxTurns is how many recent turns are passed to the generator.
	MaxTurns int
	// GapTimeout is the idle time after which a client without an explicit
	// session starts a new one. Zero always starts a new session.
	GapTimeout time.Duration
	Logger     *slog.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}
	return &Service{
		selector: opts.Selector,
		history:  opts.History,
		writer:   opts.Writer,
		cache:    opts.Cache,
		loader:   opts.Loader,
		audit:    opts.Audit,
		maxTurns: maxTurns,
		gap:      opts.GapTimeout,
		logger:   logger,
	}
}

// Handle answers req.
//
// In normal mode the message becomes the session's last question and the
// user turn is recorded after routing. In regenerate mode the last question
// is asked again with the cache bypassed and the previous assistant turn is
// discarded. A generated answer is written back to the FAQ store, appended
// in normal mode and replacing the previous answer in regenerate mode, and
// the cache is rebuilt. Write-back and rebuild failures are logged and never
// fail the request.
func (s *Service) Handle(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	mode := req.Mode
	if mode == "" {
		mode = models.ModeNormal
	}
	if mode != models.ModeNormal && mode != models.ModeRegenerate {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}
	message := strings.TrimSpace(req.Message)
	if mode == models.ModeNormal && message == "" {
		return nil, ErrEmptyMessage
	}

	sessionID, err := s.history.ResolveSession(ctx, req.Client, req.SessionID, s.gap)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	question := message
	force := false
	if mode == models.ModeRegenerate {
		question, err = s.history.LastQuestion(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load last question: %w", err)
		}
		if question == "" {
			return nil, ErrNoPreviousQuestion
		}
		if _, err := s.history.PopAssistant(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("drop previous answer: %w", err)
		}
		force = true
	} else if err := s.history.SetLastQuestion(ctx, sessionID, question); err != nil {
		return nil, fmt.Errorf("store last question: %w", err)
	}

	turns, err := s.history.Recent(ctx, sessionID, s.maxTurns)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	d := s.selector.Answer(ctx, question, history.Transcript(turns, s.maxTurns), force)

	if mode == models.ModeNormal {
		if err := s.history.AddTurn(ctx, sessionID, models.RoleUser, question); err != nil {
			return nil, fmt.Errorf("record user turn: %w", err)
		}
	}
	if err := s.history.AddTurn(ctx, sessionID, models.RoleAssistant, d.Answer); err != nil {
		return nil, fmt.Errorf("record assistant turn: %w", err)
	}

	outcome := s.writeBack(ctx, mode, question, d)

	if s.audit != nil {
		if err := s.audit.Log(ctx, models.AuditEntry{
			SessionID:   sessionID,
			Mode:        mode,
			Question:    question,
			Source:      d.Source,
			Distance:    d.Distance,
			HasDistance: d.HasDistance,
			Answer:      d.Answer,
			Outcome:     string(outcome),
			LatencyMs:   time.Since(start).Milliseconds(),
		}); err != nil {
			s.logger.Warn("audit log failed", "error", err)
		}
	}

	s.logger.Info("chat answered",
		"session", sessionID,
		"mode", mode,
		"source", d.Source,
		"distance", d.Distance,
		"outcome", outcome,
	)

	return &Response{
		SessionID: sessionID,
		Reply:     d.Answer,
		Decision:  d,
		Outcome:   outcome,
	}, nil
}

// writeBack stores a generated answer and rebuilds the cache. Only answers
// from the generator are written.
func (s *Service) writeBack(ctx context.Context, mode models.ChatMode, question string, d models.Decision) models.WriteOutcome {
	if d.Source != models.SourceGenerator || s.writer == nil {
		return ""
	}

	var outcome models.WriteOutcome
	var err error
	if mode == models.ModeRegenerate {
		outcome, err = s.writer.Replace(ctx, question, d.Answer)
	} else {
		outcome, err = s.writer.Append(ctx, question, d.Answer)
	}
	if err != nil {
		s.logger.Error("feedback write failed", "error", err)
		return ""
	}

	if s.cache != nil && s.loader != nil {
		if err := s.cache.Reload(ctx, s.loader); err != nil {
			s.logger.Error("cache rebuild after feedback failed", "error", err)
		}
	}
	return outcome
}

// ErrReloadDisabled is returned by ReloadCache when the service has no cache
// or loader.
var ErrReloadDisabled = errors.New("cache reload not configured")

// ReloadCache rebuilds the cache from the store. It picks up records written
// by other processes, such as the faq add and import commands.
func (s *Service) ReloadCache(ctx context.Context) error {
	if s.cache == nil || s.loader == nil {
		return ErrReloadDisabled
	}
	if err := s.cache.Reload(ctx, s.loader); err != nil {
		return fmt.Errorf("reload cache: %w", err)
	}
	return nil
}

// Reset clears a session's conversation.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.history.Reset(ctx, sessionID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}

var _ Answerer = (*selector.Selector)(nil)
