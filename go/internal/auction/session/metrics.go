package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector defines the interface for collecting session metrics
type MetricsCollector interface {
	RecordEventApplied(kind string)
	RecordEventDropped(reason string)
	RecordRefetch(trigger string)
	RecordSnapshot(success bool, duration time.Duration)
	RecordBidAttempt(outcome string)
	RecordUnresolvedBidder()
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordEventApplied(kind string)                      {}
func (n *NoOpMetricsCollector) RecordEventDropped(reason string)                    {}
func (n *NoOpMetricsCollector) RecordRefetch(trigger string)                        {}
func (n *NoOpMetricsCollector) RecordSnapshot(success bool, duration time.Duration) {}
func (n *NoOpMetricsCollector) RecordBidAttempt(outcome string)                     {}
func (n *NoOpMetricsCollector) RecordUnresolvedBidder()                             {}

// PrometheusMetrics implements MetricsCollector using Prometheus
type PrometheusMetrics struct {
	eventsApplied     *prometheus.CounterVec
	eventsDropped     *prometheus.CounterVec
	refetches         *prometheus.CounterVec
	snapshotDuration  *prometheus.HistogramVec
	bidAttempts       *prometheus.CounterVec
	unresolvedBidders prometheus.Counter
}

// NewPrometheusMetrics registers the session collectors with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auctionsync",
			Name:      "events_applied_total",
			Help:      "Push events merged into canonical state.",
		}, []string{"kind"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auctionsync",
			Name:      "events_dropped_total",
			Help:      "Push events discarded before or during merge.",
		}, []string{"reason"}),
		refetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auctionsync",
			Name:      "refetches_total",
			Help:      "Full snapshot re-fetches requested.",
		}, []string{"trigger"}),
		snapshotDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "auctionsync",
			Name:      "snapshot_fetch_seconds",
			Help:      "Snapshot fetch latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		bidAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auctionsync",
			Name:      "bid_attempts_total",
			Help:      "Bid submissions by outcome.",
		}, []string{"outcome"}),
		unresolvedBidders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auctionsync",
			Name:      "unresolved_bidder_names_total",
			Help:      "High bidders shown by raw id because no name was known.",
		}),
	}
	reg.MustRegister(
		m.eventsApplied,
		m.eventsDropped,
		m.refetches,
		m.snapshotDuration,
		m.bidAttempts,
		m.unresolvedBidders,
	)
	return m
}

func (m *PrometheusMetrics) RecordEventApplied(kind string) {
	m.eventsApplied.WithLabelValues(kind).Inc()
}

func (m *PrometheusMetrics) RecordEventDropped(reason string) {
	m.eventsDropped.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) RecordRefetch(trigger string) {
	m.refetches.WithLabelValues(trigger).Inc()
}

func (m *PrometheusMetrics) RecordSnapshot(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.snapshotDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordBidAttempt(outcome string) {
	m.bidAttempts.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) RecordUnresolvedBidder() {
	m.unresolvedBidders.Inc()
}
