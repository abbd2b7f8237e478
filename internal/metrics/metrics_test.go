package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storyloom/storyloom/internal/metrics"
)

func TestInc(t *testing.T) {
	before := metrics.IngestRuns.Value()
	metrics.Inc(metrics.IngestRuns)
	metrics.Inc(metrics.IngestRuns)
	assert.Equal(t, before+2, metrics.IngestRuns.Value())
}

func TestCountersRegistered(t *testing.T) {
	assert.NotNil(t, metrics.IngestRuns)
	assert.NotNil(t, metrics.FilesClassified)
	assert.NotNil(t, metrics.FilesDegraded)
	assert.NotNil(t, metrics.ProjectsMaterialized)
}
