// Package metrics defines the metrics interfaces the core packages depend
// on (internal/host.Metrics, pkg/backend/s3backend's backend metrics),
// keeping prometheus/client_golang out of their import graph the same way
// the teacher splits pkg/metrics (interfaces) from pkg/metrics/prometheus
// (implementation): callers construct through this package, the
// prometheus package registers itself into it via an init()-time
// constructor variable. Besides this package's registry and the command
// that serves it, only pkg/metrics/prometheus imports the client library.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registryOnce sync.Once
	registry     *prometheus.Registry
	enabled      bool
)

// InitRegistry enables metrics collection and creates the registry every
// constructor in this package allocates its collectors against. Calling
// it more than once is a no-op; the first call wins.
func InitRegistry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		enabled = true
	})
	return registry
}

// GetRegistry returns the registry created by InitRegistry, or nil if
// metrics have not been enabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return enabled
}
