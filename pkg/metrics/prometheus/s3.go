package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/johnwbyrd/semihost/pkg/metrics"
)

func init() {
	metrics.RegisterS3MetricsConstructor(func() metrics.S3Metrics {
		return newS3Metrics()
	})
}

type s3Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func newS3Metrics() *s3Metrics {
	reg := metrics.GetRegistry()
	return &s3Metrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "semihost_s3_backend_requests_total",
				Help: "Total number of S3 backend operations, by operation and outcome.",
			},
			[]string{"operation", "result"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "semihost_s3_backend_request_duration_seconds",
				Help:    "Time spent in one S3 backend operation, by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (m *s3Metrics) ObserveRequest(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.requestsTotal.WithLabelValues(operation, result).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
