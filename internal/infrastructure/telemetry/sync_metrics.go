package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "storesync"

// SyncMetrics holds the Prometheus collectors for the ingestion paths.
// All methods are safe on a nil receiver so callers can run without metrics.
type SyncMetrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       *prometheus.HistogramVec
	RunsSkipped       *prometheus.CounterVec
	RecordsSynced     *prometheus.CounterVec
	RecordsFailed     *prometheus.CounterVec
	PagesFetched      *prometheus.CounterVec
	WebhooksTotal     *prometheus.CounterVec
	RateLimitRejected *prometheus.CounterVec
}

// NewSyncMetrics creates the collectors and registers them with reg
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	factory := promauto.With(reg)
	return &SyncMetrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sync_runs_total",
				Help:      "Tenant sync runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "sync_run_duration_seconds",
				Help:      "Duration of tenant sync runs",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"outcome"},
		),
		RunsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sync_runs_skipped_total",
				Help:      "Due tenants skipped by a scheduler pass",
			},
			[]string{"reason"},
		),
		RecordsSynced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sync_records_synced_total",
				Help:      "Records written by delta sync workers",
			},
			[]string{"entity"},
		),
		RecordsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sync_errors_total",
				Help:      "Sync errors recorded by phase",
			},
			[]string{"entity", "phase"},
		),
		PagesFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sync_pages_fetched_total",
				Help:      "Upstream pages fetched",
			},
			[]string{"entity"},
		),
		WebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "webhooks_total",
				Help:      "Webhook deliveries by topic and result",
			},
			[]string{"topic", "result"},
		),
		RateLimitRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rate_limit_rejected_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
	}
}

// ObserveRun records a finished tenant run
func (m *SyncMetrics) ObserveRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RunSkipped records a due tenant that was not run
func (m *SyncMetrics) RunSkipped(reason string) {
	if m == nil {
		return
	}
	m.RunsSkipped.WithLabelValues(reason).Inc()
}

// ObserveWorker records what one worker did
func (m *SyncMetrics) ObserveWorker(entity string, synced, pages int) {
	if m == nil {
		return
	}
	m.RecordsSynced.WithLabelValues(entity).Add(float64(synced))
	m.PagesFetched.WithLabelValues(entity).Add(float64(pages))
}

// SyncError records one SyncError row
func (m *SyncMetrics) SyncError(entity, phase string) {
	if m == nil {
		return
	}
	m.RecordsFailed.WithLabelValues(entity, phase).Inc()
}

// Webhook records one webhook delivery
func (m *SyncMetrics) Webhook(topic, result string) {
	if m == nil {
		return
	}
	m.WebhooksTotal.WithLabelValues(topic, result).Inc()
}

// RateLimited records one rejected request
func (m *SyncMetrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimitRejected.WithLabelValues(route).Inc()
}
