package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetrics_AllMethodsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordBlockStored("objectstore", 16384)
		m.RecordBlockDeduped(16384)
		m.RecordBytesUploaded(16384)
		m.RecordRequest("/api/v1/blocks", "ok", time.Millisecond)
		m.RequestStarted()
		m.RequestEnded()
		m.RecordFileArchived("hostA")
		m.RecordBackendError("not_found")
	})
}

func TestRecordBlockStored_IncrementsCounterAndBytes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordBlockStored("objectstore", 100)
	m.RecordBlockStored("objectstore", 50)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.blocksStored.WithLabelValues("objectstore")))
	assert.Equal(t, float64(150), testutil.ToFloat64(m.bytesStored))
}

func TestRequestInFlight_TracksConcurrency(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RequestStarted()
	m.RequestStarted()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.requestsInFlight))

	m.RequestEnded()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requestsInFlight))
}
