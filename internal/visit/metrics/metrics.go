// Package metrics exposes the visit module's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the visit module collectors.
type Metrics struct {
	VisitsRecorded prometheus.Counter
	RecordDuration prometheus.Histogram
	ScoreObserved  prometheus.Histogram
}

// New registers and returns the visit metrics.
func New() *Metrics {
	return &Metrics{
		VisitsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "patrol_visits_recorded_total",
			Help: "Total number of visit logs recorded.",
		}),
		RecordDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "patrol_visit_record_duration_seconds",
			Help:    "Latency of visit recording including evaluation and persistence.",
			Buckets: prometheus.DefBuckets,
		}),
		ScoreObserved: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "patrol_visit_compliance_score",
			Help:    "Distribution of computed visit compliance scores (0-100).",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
	}
}

// ObserveRecord records one visit recording with its latency and score.
func (m *Metrics) ObserveRecord(start time.Time, score float64) {
	m.VisitsRecorded.Inc()
	m.RecordDuration.Observe(time.Since(start).Seconds())
	m.ScoreObserved.Observe(score)
}
