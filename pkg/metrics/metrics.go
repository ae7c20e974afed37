// Package metrics exposes the Prometheus counters/histograms the server
// dispatcher and client pipeline record: promauto-registered collectors
// behind a nil-safe struct, so metrics collection is opt-in with zero
// overhead when disabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the server and client record into. A nil
// *Metrics is valid: every method is a no-op on a nil receiver, so callers
// pass nil when metrics are disabled instead of branching at each call site.
type Metrics struct {
	blocksStored      *prometheus.CounterVec
	blocksDeduped     prometheus.Counter
	bytesUploaded     prometheus.Counter
	bytesStored       prometheus.Counter
	requestDuration   *prometheus.HistogramVec
	requestsInFlight  prometheus.Gauge
	filesArchived     *prometheus.CounterVec
	backendErrors     *prometheus.CounterVec
}

// New registers and returns a fresh set of collectors against reg. Pass
// prometheus.NewRegistry() for an isolated test registry, or
// prometheus.DefaultRegisterer for production.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		blocksStored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cdpfgl_blocks_stored_total",
			Help: "Total blocks accepted by StoreBlock, by backend kind.",
		}, []string{"backend"}),
		blocksDeduped: f.NewCounter(prometheus.CounterOpts{
			Name: "cdpfgl_blocks_deduped_total",
			Help: "Total blocks the client skipped uploading because the server already had them.",
		}),
		bytesUploaded: f.NewCounter(prometheus.CounterOpts{
			Name: "cdpfgl_bytes_uploaded_total",
			Help: "Total uncompressed bytes uploaded by the client pipeline.",
		}),
		bytesStored: f.NewCounter(prometheus.CounterOpts{
			Name: "cdpfgl_bytes_stored_total",
			Help: "Total payload bytes accepted by StoreBlock.",
		}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cdpfgl_request_duration_seconds",
			Help:    "Dispatcher request duration by route and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "outcome"}),
		requestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "cdpfgl_requests_in_flight",
			Help: "Number of dispatcher requests currently being served.",
		}),
		filesArchived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cdpfgl_files_archived_total",
			Help: "Total FileMeta records stored, by host.",
		}, []string{"host"}),
		backendErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cdpfgl_backend_errors_total",
			Help: "Backend errors by taxonomy kind.",
		}, []string{"kind"}),
	}
}

// RecordBlockStored records a successful StoreBlock against backendKind.
func (m *Metrics) RecordBlockStored(backendKind string, bytes int) {
	if m == nil {
		return
	}
	m.blocksStored.WithLabelValues(backendKind).Inc()
	m.bytesStored.Add(float64(bytes))
}

// RecordBlockDeduped records a block the client pipeline chose not to
// upload because the server's NeededHashes response excluded it.
func (m *Metrics) RecordBlockDeduped(bytes int) {
	if m == nil {
		return
	}
	m.blocksDeduped.Inc()
	_ = bytes
}

// RecordBytesUploaded records bytes actually sent over StoreBlock RPCs.
func (m *Metrics) RecordBytesUploaded(bytes int) {
	if m == nil {
		return
	}
	m.bytesUploaded.Add(float64(bytes))
}

// RecordRequest records a completed dispatcher request's duration and outcome.
func (m *Metrics) RecordRequest(route, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route, outcome).Observe(d.Seconds())
}

// RequestStarted increments the in-flight gauge; callers defer RequestEnded.
func (m *Metrics) RequestStarted() {
	if m == nil {
		return
	}
	m.requestsInFlight.Inc()
}

// RequestEnded decrements the in-flight gauge.
func (m *Metrics) RequestEnded() {
	if m == nil {
		return
	}
	m.requestsInFlight.Dec()
}

// RecordFileArchived records a StoreFileMeta success for host.
func (m *Metrics) RecordFileArchived(host string) {
	if m == nil {
		return
	}
	m.filesArchived.WithLabelValues(host).Inc()
}

// RecordBackendError records a backend error by its taxonomy kind (e.g.
// "not_found", "transient", "corrupt").
func (m *Metrics) RecordBackendError(kind string) {
	if m == nil {
		return
	}
	m.backendErrors.WithLabelValues(kind).Inc()
}
