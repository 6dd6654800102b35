package livematch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector defines the interface for collecting synchronizer metrics
type MetricsCollector interface {
	RecordTrigger(trigger Trigger, outcome string)
	RecordFetch(duration time.Duration, success bool)
	RecordMatchChanged()
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordTrigger(trigger Trigger, outcome string)    {}
func (NoOpMetricsCollector) RecordFetch(duration time.Duration, success bool) {}
func (NoOpMetricsCollector) RecordMatchChanged()                              {}

// PrometheusMetrics implements MetricsCollector using Prometheus
type PrometheusMetrics struct {
	triggers      *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	matchChanges  prometheus.Counter
}

// NewPrometheusMetrics creates the collectors and registers them with reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoreboard",
			Subsystem: "livematch",
			Name:      "triggers_total",
			Help:      "Fetch triggers by source and gate outcome.",
		}, []string{"trigger", "outcome"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoreboard",
			Subsystem: "livematch",
			Name:      "fetches_total",
			Help:      "Completed current-match fetches by result.",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scoreboard",
			Subsystem: "livematch",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent selecting the current match.",
			Buckets:   prometheus.DefBuckets,
		}),
		matchChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scoreboard",
			Subsystem: "livematch",
			Name:      "match_changes_total",
			Help:      "Times the cached current match was replaced.",
		}),
	}
	reg.MustRegister(m.triggers, m.fetches, m.fetchDuration, m.matchChanges)
	return m
}

func (m *PrometheusMetrics) RecordTrigger(trigger Trigger, outcome string) {
	m.triggers.WithLabelValues(string(trigger), outcome).Inc()
}

func (m *PrometheusMetrics) RecordFetch(duration time.Duration, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.fetches.WithLabelValues(result).Inc()
	m.fetchDuration.Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordMatchChanged() {
	m.matchChanges.Inc()
}
