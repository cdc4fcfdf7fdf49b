package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRefreshCycles(t *testing.T) {
	before := testutil.ToFloat64(RefreshCycles.WithLabelValues("published"))
	RefreshCycles.WithLabelValues("published").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RefreshCycles.WithLabelValues("published")))
}

func TestCircuitBreakerState(t *testing.T) {
	CircuitBreakerState.WithLabelValues("test").Set(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test")))
	CircuitBreakerState.WithLabelValues("test").Set(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test")))
}

func TestStaleDropsAndSeq(t *testing.T) {
	before := testutil.ToFloat64(StaleDrops)
	StaleDrops.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(StaleDrops))

	SnapshotSeq.Set(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(SnapshotSeq))
}
