package metrics

import "time"

// S3Metrics is the metrics surface pkg/backend/s3backend reports to: one
// counter/histogram pair per S3 operation kind, enough to see whether the
// object-store backend is a latency outlier compared to the sandboxed
// local-filesystem backend under the same workload.
type S3Metrics interface {
	ObserveRequest(operation string, duration time.Duration, err error)
}

// NewS3Metrics returns a Prometheus-backed S3Metrics, or nil if metrics
// are not enabled.
func NewS3Metrics() S3Metrics {
	if !IsEnabled() || newPrometheusS3Metrics == nil {
		return nil
	}
	return newPrometheusS3Metrics()
}

var newPrometheusS3Metrics func() S3Metrics

// RegisterS3MetricsConstructor is called by
// pkg/metrics/prometheus/s3.go's init().
func RegisterS3MetricsConstructor(constructor func() S3Metrics) {
	newPrometheusS3Metrics = constructor
}
