package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shaharia-lab/inquiry-dispatch/internal/service"
)

const (
	errInvalidJSONBody = "invalid JSON body"
	// errDeliveryFailed is the only failure detail returned to storefront clients.
	errDeliveryFailed = "no pudimos enviar tu consulta, intenta de nuevo más tarde"
)

// Server holds all dependencies for the REST API handlers.
type Server struct {
	inquirySvc service.InquiryService
	limiter    *RateLimiter
	logger     *slog.Logger
	env        string
	// operatorToken guards delivery diagnostics. Empty disables those routes.
	operatorToken string
}

// Option customises a Server.
type Option func(*Server)

// WithOperatorToken sets the bearer token required by operator routes.
func WithOperatorToken(token string) Option {
	return func(s *Server) { s.operatorToken = token }
}

// New creates a new API Server backed by the provided services. limiter may
// be nil to disable rate limiting of inquiry submissions.
func New(inquirySvc service.InquiryService, limiter *RateLimiter, logger *slog.Logger, env string, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		inquirySvc: inquirySvc,
		limiter:    limiter,
		logger:     logger,
		env:        env,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	r.Route("/inquiries", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Middleware)
			}
			r.Post("/", s.handleCreateInquiry)
			r.Post("/send-mail", s.handleCreateInquiry)
		})
		r.Get("/smtp-verify", s.handleVerifySMTP)
		r.Get("/debug-env", s.handleDebugEnv)
	})

	// Delivery log entries carry provider responses.
	r.Group(func(r chi.Router) {
		r.Use(s.requireOperator)
		r.Get("/notifications/log", s.handleListNotificationLog)
	})
	r.Get("/version", s.handleVersion)
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
