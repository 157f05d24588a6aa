package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pario-ai/faqbot/pkg/models"
)

// auditSession tags decision log entries written by faq_answer.
const auditSession = "mcp"

const (
	defaultLookupK    = 3
	maxLookupK        = 20
	defaultAuditLimit = 50
)

type answerArgs struct {
	Question string `json:"question" jsonschema:"the question to answer"`
	History  string `json:"history,omitempty" jsonschema:"recent conversation transcript passed to the generator"`
	Force    bool   `json:"force,omitempty" jsonschema:"skip the cache and ask the generator directly"`
}

type lookupArgs struct {
	Question string `json:"question" jsonschema:"the question to look up"`
	K        int    `json:"k,omitempty" jsonschema:"number of neighbours to return (default 3)"`
}

type auditSearchArgs struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"filter by session ID"`
	Source    string `json:"source,omitempty" jsonschema:"filter by answer source: cache, generator, none or error"`
	Since     string `json:"since,omitempty" jsonschema:"only entries on or after this date (YYYY-MM-DD)"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum entries to return (default 50)"`
}

type sessionsArgs struct {
	Client string `json:"client,omitempty" jsonschema:"filter by client (http or cli)"`
}

type noArgs struct{}

func (s *Server) registerTools() {
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "faq_answer",
		Description: "Answer a question from the FAQ cache, falling back to the generator. Nothing is written back to the FAQ store.",
	}, s.handleAnswer)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "faq_lookup",
		Description: "Show the nearest cached questions and their cosine distances.",
	}, s.handleLookup)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "faq_cache_stats",
		Description: "Show semantic cache size, vocabulary, lookups and rebuilds.",
	}, s.handleCacheStats)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "faq_audit_search",
		Description: "Search the decision log by session, source or date.",
	}, s.handleAuditSearch)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "faq_budget",
		Description: "Show generator budget usage against the configured policies.",
	}, s.handleBudget)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "faq_sessions",
		Description: "List chat sessions, optionally filtered by client.",
	}, s.handleSessions)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func (s *Server) handleAnswer(ctx context.Context, _ *mcp.CallToolRequest, args answerArgs) (*mcp.CallToolResult, any, error) {
	if s.answerer == nil {
		return textResult("Answering is not configured."), nil, nil
	}
	if strings.TrimSpace(args.Question) == "" {
		return errorResult("question is required"), nil, nil
	}
	start := time.Now()
	d := s.answerer.Answer(ctx, args.Question, args.History, args.Force)

	if s.auditor != nil {
		mode := models.ModeNormal
		if args.Force {
			mode = models.ModeRegenerate
		}
		if err := s.auditor.Log(ctx, models.AuditEntry{
			SessionID:   auditSession,
			Mode:        mode,
			Question:    args.Question,
			Source:      d.Source,
			Distance:    d.Distance,
			HasDistance: d.HasDistance,
			Answer:      d.Answer,
			LatencyMs:   time.Since(start).Milliseconds(),
		}); err != nil {
			s.logger.Warn("audit log failed", "error", err)
		}
	}
	return textResult(formatDecision(d)), nil, nil
}

func (s *Server) handleLookup(_ context.Context, _ *mcp.CallToolRequest, args lookupArgs) (*mcp.CallToolResult, any, error) {
	if s.index == nil {
		return textResult("Cache is not configured."), nil, nil
	}
	if strings.TrimSpace(args.Question) == "" {
		return errorResult("question is required"), nil, nil
	}
	k := args.K
	if k <= 0 {
		k = defaultLookupK
	}
	k = min(k, maxLookupK)
	return textResult(formatNeighbors(s.index.Lookup(args.Question, k))), nil, nil
}

func (s *Server) handleCacheStats(_ context.Context, _ *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, any, error) {
	if s.index == nil {
		return textResult("Cache is not configured."), nil, nil
	}
	return textResult(formatCacheStats(s.index.Stats())), nil, nil
}

func (s *Server) handleAuditSearch(ctx context.Context, _ *mcp.CallToolRequest, args auditSearchArgs) (*mcp.CallToolResult, any, error) {
	if s.auditor == nil {
		return textResult("Audit logging is not configured."), nil, nil
	}

	opts := models.AuditQueryOpts{
		SessionID: args.SessionID,
		Source:    models.Source(args.Source),
		Limit:     defaultAuditLimit,
	}
	if args.Limit > 0 {
		opts.Limit = args.Limit
	}
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error()), nil, nil
		}
		opts.Since = t
	}

	entries, err := s.auditor.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching audit log: " + err.Error()), nil, nil
	}
	return textResult(formatAuditEntries(entries)), nil, nil
}

func (s *Server) handleBudget(ctx context.Context, _ *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, any, error) {
	if s.budget == nil {
		return textResult("Budget enforcement is not configured."), nil, nil
	}
	statuses, err := s.budget.Status(ctx)
	if err != nil {
		return errorResult("Error fetching budget status: " + err.Error()), nil, nil
	}
	return textResult(formatBudgetStatus(statuses)), nil, nil
}

func (s *Server) handleSessions(ctx context.Context, _ *mcp.CallToolRequest, args sessionsArgs) (*mcp.CallToolResult, any, error) {
	if s.sessions == nil {
		return textResult("Session history is not configured."), nil, nil
	}
	sessions, err := s.sessions.ListSessions(ctx, args.Client)
	if err != nil {
		return errorResult(fmt.Sprintf("Error fetching sessions: %v", err)), nil, nil
	}
	return textResult(formatSessions(sessions)), nil, nil
}
