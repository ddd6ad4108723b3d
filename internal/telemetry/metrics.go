package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	rosterHits     prometheus.Counter
	rosterMisses   prometheus.Counter
	rosterFailures prometheus.Counter
	fetchDuration  prometheus.Histogram
	sessions       prometheus.Gauge
	warmJobs       *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rosterHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tahfeez",
			Name:      "roster_cache_hits_total",
			Help:      "Lesson attendance lookups served from a view cache.",
		}),
		rosterMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tahfeez",
			Name:      "roster_cache_misses_total",
			Help:      "Lesson attendance lookups that fetched from the source.",
		}),
		rosterFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tahfeez",
			Name:      "roster_fetch_failures_total",
			Help:      "Lesson attendance fetches that failed and degraded to an empty roster.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tahfeez",
			Name:      "roster_fetch_seconds",
			Help:      "Latency of lesson attendance fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tahfeez",
			Name:      "view_sessions_active",
			Help:      "Open halaqah view sessions.",
		}),
		warmJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tahfeez",
			Name:      "roster_warm_jobs_total",
			Help:      "Roster warm jobs processed by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.rosterHits, m.rosterMisses, m.rosterFailures, m.fetchDuration, m.sessions, m.warmJobs)
	return m
}

func (m *Metrics) RosterHit() {
	if m != nil {
		m.rosterHits.Inc()
	}
}

func (m *Metrics) RosterMiss() {
	if m != nil {
		m.rosterMisses.Inc()
	}
}

func (m *Metrics) RosterFailure() {
	if m != nil {
		m.rosterFailures.Inc()
	}
}

// ObserveFetch records how long a roster fetch took.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m != nil {
		m.fetchDuration.Observe(d.Seconds())
	}
}

// SessionOpened and SessionClosed track the active view session gauge.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}

// WarmJob counts a processed warm job; outcome is "ok", "failed" or "invalid".
func (m *Metrics) WarmJob(outcome string) {
	if m != nil {
		m.warmJobs.WithLabelValues(outcome).Inc()
	}
}
