// Package mcp exposes the FAQ engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pario-ai/faqbot/pkg/models"
)

// Answerer routes a question. *selector.Selector implements it.
type Answerer interface {
	Answer(ctx context.Context, question, history string, force bool) models.Decision
}

// Index exposes read access to the semantic cache. *semantic.Cache implements it.
type Index interface {
	Lookup(question string, k int) []models.Neighbor
	Stats() models.CacheStats
}

// Auditor searches and appends to the decision log. *audit.Logger implements it.
type Auditor interface {
	Log(ctx context.Context, entry models.AuditEntry) error
	Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error)
}

// BudgetReporter reports generator budget usage.
type BudgetReporter interface {
	Status(ctx context.Context) ([]models.BudgetStatus, error)
}

// SessionLister lists chat sessions.
type SessionLister interface {
	ListSessions(ctx context.Context, client string) ([]models.Session, error)
}

// Options wires the server to its backends. Any of them may be nil; the
// matching tools then report that the feature is not configured.
type Options struct {
	Answerer Answerer
	Index    Index
	Audit    Auditor
	Budget   BudgetReporter
	Sessions SessionLister
	Version  string
	Logger   *slog.Logger
}

// Server serves FAQ tools over MCP.
type Server struct {
	answerer Answerer
	index    Index
	auditor  Auditor
	budget   BudgetReporter
	sessions SessionLister
	logger   *slog.Logger
	srv      *mcp.Server
}

// New creates a Server and registers its tools.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		answerer: opts.Answerer,
		index:    opts.Index,
		auditor:  opts.Audit,
		budget:   opts.Budget,
		sessions: opts.Sessions,
		logger:   opts.Logger,
		srv:      mcp.NewServer(&mcp.Implementation{Name: "faqbot", Version: opts.Version}, nil),
	}
	s.registerTools()
	return s
}

// Connect attaches the server to a single transport and returns the session.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.srv.Connect(ctx, t, nil)
}

// Run serves over t until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	s.logger.Info("mcp server starting")
	return s.srv.Run(ctx, t)
}

// RunStdio serves over stdin/stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}
