package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/johnwbyrd/semihost/internal/audit"
	"github.com/johnwbyrd/semihost/pkg/api/auth"
	"github.com/johnwbyrd/semihost/pkg/api/handlers"
	apimiddleware "github.com/johnwbyrd/semihost/pkg/api/middleware"
	"github.com/johnwbyrd/semihost/pkg/policystore"
)

// NewRouter builds the admin/introspection HTTP surface:
//
//   - GET  /health, /health/ready         — unauthenticated
//   - GET  /sessions                      — list live sessions
//   - GET  /sessions/{id}                 — one session's state
//   - GET  /sessions/{id}/handles         — its open handle numbers
//   - GET  /audit                         — recent audit entries
//   - GET  /policy                        — a named policy set
//   - PUT  /policy                        — replace a policy set (admin only)
//
// This API is strictly an operator surface: the semihosting protocol
// itself remains unauthenticated, per its own design.
func NewRouter(sessions *SessionRegistry, auditLog *audit.Log, policy *policystore.Store, jwt *auth.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(sessions)
	sessionHandler := handlers.NewSessionHandler(sessions)
	auditHandler := handlers.NewAuditHandler(newAuditAdapter(auditLog))
	policyHandler := handlers.NewPolicyHandler(newPolicyAdapter(policy))

	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", sessionHandler.List)
		r.Get("/{id}", sessionHandler.Get)
		r.Get("/{id}/handles", sessionHandler.Handles)
	})

	r.Get("/audit", auditHandler.List)

	r.Route("/policy", func(r chi.Router) {
		r.Get("/", policyHandler.Get)
		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.JWTAuth(jwt))
			r.Use(apimiddleware.RequireAdmin())
			r.Put("/", policyHandler.Put)
		})
	})

	return r
}

// requestLogger logs request start (debug) and completion (info) via
// log/slog, the same two-line shape as the teacher's chi request logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		slog.Debug("api request started",
			"request_id", requestID, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		slog.Info("api request completed",
			"request_id", requestID, "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "bytes", ww.BytesWritten(), "duration", time.Since(start).String())
	})
}
