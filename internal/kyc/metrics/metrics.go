package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for KYC status resolution.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Cache reads by result: "hit", "miss"
	CacheLookups *prometheus.CounterVec

	// Upstream lookups by outcome: "success", "failure"
	UpstreamLookups *prometheus.CounterVec

	UpstreamLatency prometheus.Histogram

	// Callers that waited on someone else's in-flight lookup
	CoalescedWaits prometheus.Counter

	InFlight prometheus.Gauge

	// Identifiers handed to the batch resolver per batch
	BatchSize prometheus.Histogram

	Notifications prometheus.Counter
}

// New creates the KYC status metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_status_cache_lookups_total",
			Help: "Cache reads by result",
		}, []string{"result"}),

		UpstreamLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_status_upstream_lookups_total",
			Help: "Upstream KYC lookups by outcome",
		}, []string{"outcome"}),

		UpstreamLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kyc_status_upstream_lookup_duration_seconds",
			Help:    "Duration of upstream KYC lookups",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		CoalescedWaits: f.NewCounter(prometheus.CounterOpts{
			Name: "kyc_status_coalesced_waits_total",
			Help: "Requests served by waiting on an in-flight lookup instead of issuing a new one",
		}),

		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "kyc_status_inflight",
			Help: "Client IDs with an outstanding upstream lookup",
		}),

		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kyc_status_batch_size",
			Help:    "Number of client IDs resolved upstream per batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),

		Notifications: f.NewCounter(prometheus.CounterOpts{
			Name: "kyc_status_notifications_total",
			Help: "Snapshot notifications published",
		}),
	}
}

// RecordCacheHit records a fresh cache read.
func (m *Metrics) RecordCacheHit() {
	if m != nil {
		m.CacheLookups.WithLabelValues("hit").Inc()
	}
}

// RecordCacheMiss records a read that found nothing fresh.
func (m *Metrics) RecordCacheMiss() {
	if m != nil {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

// ObserveLookup records one upstream lookup and its duration.
func (m *Metrics) ObserveLookup(success bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.UpstreamLookups.WithLabelValues(outcome).Inc()
	m.UpstreamLatency.Observe(d.Seconds())
}

// IncrementCoalesced records a caller that joined an in-flight lookup.
func (m *Metrics) IncrementCoalesced() {
	if m != nil {
		m.CoalescedWaits.Inc()
	}
}

// SetInFlight reports the current in-flight set size.
func (m *Metrics) SetInFlight(n int) {
	if m != nil {
		m.InFlight.Set(float64(n))
	}
}

// ObserveBatchSize records how many IDs a batch sent upstream.
func (m *Metrics) ObserveBatchSize(n int) {
	if m != nil {
		m.BatchSize.Observe(float64(n))
	}
}

// IncrementNotifications records a published snapshot.
func (m *Metrics) IncrementNotifications() {
	if m != nil {
		m.Notifications.Inc()
	}
}
