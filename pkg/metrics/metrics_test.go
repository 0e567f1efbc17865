package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/johnwbyrd/semihost/pkg/metrics"
)

func TestDisabledConstructorsReturnNil(t *testing.T) {
	assert.False(t, metrics.IsEnabled())
	assert.Nil(t, metrics.NewSessionMetrics())
	assert.Nil(t, metrics.NewS3Metrics())
}
