// Package api exposes the chat pipeline over a JSON HTTP API.
//
// The surface is intentionally thin: handlers decode, delegate to the
// Service, and encode. All pipeline behavior lives behind the Service
// interface so tests can stub it.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/koopa0/ragserve/internal/prompt"
	"github.com/koopa0/ragserve/internal/rag"
)

// Service is the pipeline capability the API needs. *rag.System satisfies it.
type Service interface {
	Query(ctx context.Context, req rag.Request) (*rag.Result, error)
	Reload(ctx context.Context) (int, error)
	History(sessionID string) []prompt.Message
	ClearSession(sessionID string)
	IndexSize() int
}

// Info describes the running application for GET {prefix}/info.
type Info struct {
	AppName         string `json:"app_name"`
	Version         string `json:"version"`
	Model           string `json:"model"`
	EmbeddingModel  string `json:"embedding_model"`
	TopK            int    `json:"top_k"`
	SecurityEnabled bool   `json:"security_enabled"`
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Service     Service  // Required
	Info        Info     // Served on {prefix}/info and /health
	APIPrefix   string   // Route prefix, e.g. "/api/v1"
	CORSOrigins []string // Allowed origins for CORS
	TrustProxy  bool     // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int      // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("service is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prefix := strings.TrimSuffix(cfg.APIPrefix, "/")

	ch := &chatHandler{service: cfg.Service, logger: logger}
	sh := &sessionHandler{service: cfg.Service, logger: logger}
	ah := &adminHandler{service: cfg.Service, info: cfg.Info, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("POST "+prefix+"/chat", ch.send)
	mux.HandleFunc("POST "+prefix+"/session/clear", sh.clear)
	mux.HandleFunc("GET "+prefix+"/session/{id}/history", sh.history)
	mux.HandleFunc("POST "+prefix+"/reload-documents", ah.reload)
	mux.HandleFunc("GET "+prefix+"/info", ah.getInfo)

	// Per-IP token bucket, 1 token/sec refill.
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → Logging → CORS → RateLimit → Routes
	// CORS must be before RateLimit so preflight OPTIONS gets proper headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health and welcome stay outside the middleware stack so probes are
	// never rate limited.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", ah.health)
	topMux.HandleFunc("GET /{$}", ah.welcome)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
