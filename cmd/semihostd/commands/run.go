package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/johnwbyrd/semihost/internal/audit"
	"github.com/johnwbyrd/semihost/internal/host"
	"github.com/johnwbyrd/semihost/internal/logger"
	"github.com/johnwbyrd/semihost/internal/sandbox"
	"github.com/johnwbyrd/semihost/internal/telemetry"
	"github.com/johnwbyrd/semihost/internal/transport"
	"github.com/johnwbyrd/semihost/pkg/api"
	"github.com/johnwbyrd/semihost/pkg/api/auth"
	"github.com/johnwbyrd/semihost/pkg/backend/s3backend"
	"github.com/johnwbyrd/semihost/pkg/bytesize"
	"github.com/johnwbyrd/semihost/pkg/config"
	"github.com/johnwbyrd/semihost/pkg/metrics"
	"github.com/johnwbyrd/semihost/pkg/policystore"

	// Import prometheus metrics to register init() constructors.
	_ "github.com/johnwbyrd/semihost/pkg/metrics/prometheus"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the semihosting bridge daemon",
	Long: `Start semihostd: listen for device connections on the configured
transport address, bridge each connection's semihosting calls to the
configured backend (sandboxed filesystem or S3 bucket), and serve the
admin API and Prometheus metrics alongside it.

Examples:
  # Run with default config location
  semihostd run

  # Run with custom config file
  semihostd run --config /etc/semihostd/config.yaml

  # Override a setting via environment variable
  SEMIHOST_LOGGING_LEVEL=DEBUG semihostd run`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "semihostd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "semihostd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("semihostd starting", "transport", cfg.Transport.ListenAddr, "backend", cfg.Backend.Kind)

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
		metricsSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: metricsMux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics server listening", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics collection disabled")
	}

	auditLog, err := audit.Open(cfg.Audit.Dir)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() {
		if err := auditLog.Close(); err != nil {
			logger.Error("audit log close error", "error", err)
		}
	}()

	policyStore, err := policystore.New(&cfg.Policy)
	if err != nil {
		return fmt.Errorf("failed to initialize policy store: %w", err)
	}
	defer func() {
		if err := policyStore.Close(); err != nil {
			logger.Error("policy store close error", "error", err)
		}
	}()

	sessions := api.NewSessionRegistry()

	authService, err := auth.NewService(auth.Config{
		Secret:        cfg.Auth.Secret,
		Issuer:        cfg.Auth.Issuer,
		TokenDuration: cfg.Auth.TokenDuration,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}

	var apiDone chan error
	if cfg.API.IsEnabled() {
		apiDone = make(chan error, 1)
		apiServer := api.NewServer(cfg.API, sessions, auditLog, policyStore, authService)
		go func() { apiDone <- apiServer.Start(ctx) }()
		logger.Info("admin API listening", "port", apiServer.Port())
	} else {
		logger.Info("admin API disabled")
	}

	if apiDone != nil {
		go func() {
			if err := <-apiDone; err != nil {
				logger.Error("admin API server error", "error", err)
			}
		}()
	}

	sessionFactory := newSessionFactory(cfg, policyStore, auditLog)
	transportSrv := transport.NewServer(sessionFactory,
		func(s *host.Session) { sessions.Register(s) },
		func(id string) { sessions.Unregister(id) },
	)

	serverDone := make(chan error, 1)
	go func() { serverDone <- transportSrv.Serve(ctx, cfg.Transport.ListenAddr) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("semihostd is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("transport shutdown error", "error", err)
			return err
		}
		logger.Info("semihostd stopped gracefully")
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("transport server error", "error", err)
			return err
		}
		logger.Info("semihostd stopped")
	}

	return nil
}

// newSessionFactory returns a transport.SessionFactory that builds a
// fresh host.Backend per connection: internal/sandbox.Backend and
// pkg/backend/s3backend.Backend keep an unsynchronized handle table, so
// sharing one Backend across concurrent device connections would race.
func newSessionFactory(cfg *config.Config, policyStore *policystore.Store, auditLog *audit.Log) transport.SessionFactory {
	return func(id string, mem host.MemoryAccess) (*host.Session, error) {
		sessionMetrics := metrics.NewSessionMetrics()
		backend, err := newBackend(context.Background(), cfg, policyStore, auditLog, sessionMetrics, id)
		if err != nil {
			return nil, err
		}
		scratchSize := cfg.Transport.ScratchSize
		if scratchSize == 0 {
			scratchSize = 64 * bytesize.KiB
		}
		session := host.NewSession(id, mem, backend, make([]byte, scratchSize.Uint64()))
		session.Metrics = sessionMetrics
		return session, nil
	}
}

func newBackend(ctx context.Context, cfg *config.Config, policyStore *policystore.Store, auditLog *audit.Log, sessionMetrics metrics.SessionMetrics, sessionID string) (host.Backend, error) {
	switch cfg.Backend.Kind {
	case config.BackendS3:
		s3cfg := cfg.Backend.S3
		client, err := s3backend.NewClient(context.Background(), s3backend.ClientConfig{
			Endpoint:        s3cfg.Endpoint,
			Region:          s3cfg.Region,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			ForcePathStyle:  s3cfg.ForcePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("build s3 client: %w", err)
		}
		return s3backend.New(s3backend.Config{
			Client:      client,
			Bucket:      s3cfg.Bucket,
			KeyPrefix:   s3cfg.KeyPrefix,
			AllowSystem: s3cfg.AllowSystem,
			AllowExit:   s3cfg.AllowExit,
			Metrics:     metrics.NewS3Metrics(),
			Capacity:    s3cfg.Capacity,
		}), nil

	default:
		sbCfg := cfg.Backend.Sandbox
		policy, err := policystore.NewGORMPolicySource(ctx, policyStore, sbCfg.PolicySetName)
		if err != nil {
			return nil, fmt.Errorf("bind policy set %q: %w", sbCfg.PolicySetName, err)
		}
		return sandbox.New(sandbox.Config{
			Root: sbCfg.Root,
			Flags: sandbox.Flags{
				ReadOnly:    sbCfg.ReadOnly,
				AllowSystem: sbCfg.AllowSystem,
				AllowExit:   sbCfg.AllowExit,
			},
			Policy:    policy,
			SessionID: sessionID,
			OnViolation: func(kind sandbox.ViolationKind, _ string) {
				if sessionMetrics != nil {
					sessionMetrics.ObserveSandboxViolation(string(kind))
				}
			},
			Audit:    auditLog,
			Capacity: sbCfg.Capacity,
		}), nil
	}
}
