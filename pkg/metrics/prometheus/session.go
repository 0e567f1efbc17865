package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/johnwbyrd/semihost/pkg/metrics"
)

func init() {
	metrics.RegisterSessionMetricsConstructor(func() metrics.SessionMetrics {
		return newSessionMetrics()
	})
}

// sessionMetrics is the Prometheus implementation of metrics.SessionMetrics.
type sessionMetrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	sandboxViolations  *prometheus.CounterVec
	openHandles        prometheus.Gauge
}

func newSessionMetrics() *sessionMetrics {
	reg := metrics.GetRegistry()
	return &sessionMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "semihost_requests_total",
				Help: "Total number of semihosting calls processed, by opcode and outcome.",
			},
			[]string{"opcode", "result"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "semihost_request_duration_seconds",
				Help:    "Time to process one semihosting call, by opcode.",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"opcode"},
		),
		sandboxViolations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "semihost_sandbox_violations_total",
				Help: "Total number of rejected paths or blocked operations, by violation kind.",
			},
			[]string{"kind"},
		),
		openHandles: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "semihost_open_handles",
				Help: "Number of currently open sandbox file handles.",
			},
		),
	}
}

func (m *sessionMetrics) ObserveRequest(opcodeName string, durationSeconds float64, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.requestsTotal.WithLabelValues(opcodeName, result).Inc()
	m.requestDuration.WithLabelValues(opcodeName).Observe(durationSeconds)
}

func (m *sessionMetrics) ObserveSandboxViolation(kind string) {
	if m == nil {
		return
	}
	m.sandboxViolations.WithLabelValues(kind).Inc()
}

func (m *sessionMetrics) SetOpenHandles(n int) {
	if m == nil {
		return
	}
	m.openHandles.Set(float64(n))
}
