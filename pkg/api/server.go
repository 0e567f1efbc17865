package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/johnwbyrd/semihost/internal/audit"
	"github.com/johnwbyrd/semihost/internal/logger"
	"github.com/johnwbyrd/semihost/pkg/api/auth"
	"github.com/johnwbyrd/semihost/pkg/policystore"
)

// Server provides an HTTP server for the operator-facing REST API:
// session introspection, the audit log, and policy set management.
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	config       APIConfig
	shutdownOnce sync.Once
}

// NewServer creates a new API HTTP server bound to the given session
// registry, audit log, policy store, and JWT service. The server is
// created in a stopped state; call Start to begin serving requests.
func NewServer(config APIConfig, sessions *SessionRegistry, auditLog *audit.Log, policy *policystore.Store, jwtService *auth.Service) *Server {
	config.applyDefaults()

	router := NewRouter(sessions, auditLog, policy, jwtService)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server: server,
		config: config,
	}
}

// Start starts the API HTTP server and blocks until the context is cancelled
// or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)
		logger.Debug("API endpoints available",
			"health", fmt.Sprintf("http://localhost:%d/health", s.config.Port),
			"sessions", fmt.Sprintf("http://localhost:%d/sessions", s.config.Port),
			"audit", fmt.Sprintf("http://localhost:%d/audit", s.config.Port),
			"policy", fmt.Sprintf("http://localhost:%d/policy", s.config.Port),
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the API server. Safe to call
// multiple times and concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", "error", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
