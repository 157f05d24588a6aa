// Package server exposes the chat service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pario-ai/faqbot/pkg/chat"
	"github.com/pario-ai/faqbot/pkg/models"
)

// Session transport.
const (
	SessionHeader = "X-Faqbot-Session"
	SessionCookie = "faqbot_session"
)

const (
	maxBodyBytes     = 64 << 10
	maxSessionIDSize = 128
	sessionClient    = "http"
)

// ChatHandler answers chat requests. *chat.Service implements it.
type ChatHandler interface {
	Handle(ctx context.Context, req chat.Request) (*chat.Response, error)
	Reset(ctx context.Context, sessionID string) error
	ReloadCache(ctx context.Context) error
}

// StatsSource reports cache metrics. *semantic.Cache implements it.
type StatsSource interface {
	Stats() models.CacheStats
}

// Server is the faqbot HTTP server.
type Server struct {
	listen string
	chat   ChatHandler
	stats  StatsSource
	router *mux.Router
	logger *slog.Logger
}

type chatRequest struct {
	Message string          `json:"message"`
	Mode    models.ChatMode `json:"mode"`
}

type chatResponse struct {
	Reply     string        `json:"reply"`
	Model     string        `json:"model"`
	Source    models.Source `json:"source"`
	Distance  *float64      `json:"distance,omitempty"`
	SessionID string        `json:"session_id"`
}

// New creates a Server. A nil logger uses slog.Default().
func New(listen string, c ChatHandler, stats StatsSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		listen: listen,
		chat:   c,
		stats:  stats,
		router: mux.NewRouter(),
		logger: logger,
	}

	s.router.HandleFunc("/api/chat", s.handleChat).Methods(http.MethodPost)
	s.router.HandleFunc("/api/chat/reset", s.handleReset).Methods(http.MethodPost)
	s.router.HandleFunc("/api/cache/stats", s.handleCacheStats).Methods(http.MethodGet)
	s.router.HandleFunc("/api/cache/reload", s.handleCacheReload).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.router.Use(s.logRequests)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           otelhttp.NewHandler(s, "faqbot"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("faqbot listening", "addr", s.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := sessionFrom(r)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	resp, err := s.chat.Handle(r.Context(), chat.Request{
		SessionID: sessionID,
		Client:    sessionClient,
		Message:   req.Message,
		Mode:      req.Mode,
	})
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeJSONError(w, http.StatusBadRequest, "Mensaje vacío")
		return
	case errors.Is(err, chat.ErrNoPreviousQuestion):
		writeJSONError(w, http.StatusBadRequest, "No hay pregunta anterior")
		return
	case errors.Is(err, chat.ErrInvalidMode):
		writeJSONError(w, http.StatusBadRequest, "Modo inválido")
		return
	case err != nil:
		s.logger.Error("chat request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := chatResponse{
		Reply:     resp.Reply,
		Model:     resp.Decision.Source.Label(),
		Source:    resp.Decision.Source,
		SessionID: resp.SessionID,
	}
	if resp.Decision.HasDistance {
		d := resp.Decision.Distance
		out.Distance = &d
	}

	setSession(w, resp.SessionID)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionFrom(r)
	if err := s.chat.Reset(r.Context(), sessionID); err != nil {
		s.logger.Error("chat reset failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "session_id": sessionID})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	if s.stats == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "cache disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Stats())
}

func (s *Server) handleCacheReload(w http.ResponseWriter, r *http.Request) {
	err := s.chat.ReloadCache(r.Context())
	switch {
	case errors.Is(err, chat.ErrReloadDisabled):
		writeJSONError(w, http.StatusServiceUnavailable, "cache disabled")
		return
	case err != nil:
		s.logger.Error("cache reload failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "cache reload failed")
		return
	}
	s.logger.Info("cache reloaded")
	if s.stats == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionFrom returns the session ID from the header, then the cookie.
// Oversized IDs are ignored.
func sessionFrom(r *http.Request) string {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}
	}
	if len(id) > maxSessionIDSize {
		return ""
	}
	return id
}

func setSession(w http.ResponseWriter, id string) {
	w.Header().Set(SessionHeader, id)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"faqbot_error","code":%d}}`, message, code)
}
