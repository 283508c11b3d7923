package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SquareDone("processed")
	m.SquareDone("processed")
	m.SquareDone("no_origins")
	m.CacheLookup(3, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SquaresTotal.WithLabelValues("processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SquaresTotal.WithLabelValues("no_origins")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NearestCache.WithLabelValues("hit")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SquareDone("processed")
		m.AreaDone("ok")
		m.WorkersRunning(2)
		m.OracleRequest("table", 200, 0.1)
		m.CacheLookup(1, 1)
		m.ObserveOp("x", 1)
	})
}
