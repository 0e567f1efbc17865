package metrics

// SessionMetrics is the metrics surface internal/host.Session reports to:
// identical in shape to internal/host.Metrics, restated here so that
// package never has to import pkg/metrics (it only needs the interface,
// defined locally, structurally satisfied by whatever this package
// returns).
type SessionMetrics interface {
	ObserveRequest(opcodeName string, durationSeconds float64, ok bool)
	ObserveSandboxViolation(kind string)
	SetOpenHandles(n int)
}

// NewSessionMetrics returns a Prometheus-backed SessionMetrics, or nil if
// metrics are not enabled. A nil SessionMetrics is always safe to embed:
// internal/host.Session treats a nil Metrics field as "don't record".
func NewSessionMetrics() SessionMetrics {
	if !IsEnabled() || newPrometheusSessionMetrics == nil {
		return nil
	}
	return newPrometheusSessionMetrics()
}

// newPrometheusSessionMetrics is set by pkg/metrics/prometheus's init(),
// mirroring the teacher's constructor-registration indirection for
// breaking the import cycle between the interface and implementation
// packages.
var newPrometheusSessionMetrics func() SessionMetrics

// RegisterSessionMetricsConstructor is called by
// pkg/metrics/prometheus/session.go's init().
func RegisterSessionMetricsConstructor(constructor func() SessionMetrics) {
	newPrometheusSessionMetrics = constructor
}
