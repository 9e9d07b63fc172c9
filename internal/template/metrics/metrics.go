package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the template module: lifecycle counters
// and the resolution critical path.
type Metrics struct {
	TemplatesPublished prometheus.Counter
	TemplatesArchived  prometheus.Counter
	ResolveDuration    prometheus.Histogram
	ResolveCacheHits   prometheus.Counter
	ResolveMisses      prometheus.Counter
}

// New creates the template module metrics and registers them with the default
// registry.
func New() *Metrics {
	return &Metrics{
		TemplatesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "patrol_templates_published_total",
			Help: "Total number of template versions published",
		}),
		TemplatesArchived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "patrol_templates_archived_total",
			Help: "Total number of template versions archived (explicitly or by a sibling publish)",
		}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "patrol_template_resolve_duration_seconds",
			Help:    "Duration of active-template resolution (visit logging critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ResolveCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "patrol_template_resolve_cache_hits_total",
			Help: "Active-template resolutions served from the resolver cache",
		}),
		ResolveMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "patrol_template_resolve_not_found_total",
			Help: "Active-template resolutions that matched no published template",
		}),
	}
}

// ObserveResolve records the duration of a ResolveActive call.
func (m *Metrics) ObserveResolve(start time.Time) {
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}
