package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	// Metrics are global, so only check they were created on import
	assert.NotNil(t, QueriesParsed)
	assert.NotNil(t, QueriesValidated)
	assert.NotNil(t, QueriesRejected)
	assert.NotNil(t, SanitizerDuration)
	assert.NotNil(t, RecordsEvaluated)
	assert.NotNil(t, SearchDuration)
	assert.NotNil(t, CorrelationsTotal)
	assert.NotNil(t, CorrelationDuration)
	assert.NotNil(t, CorrelatedResults)
	assert.NotNil(t, PairsCompared)
	assert.NotNil(t, GeoCacheLookups)
	assert.NotNil(t, BatchPanics)
}
