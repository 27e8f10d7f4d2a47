package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors publishes phase counters to a Prometheus registry. A nil
// *Collectors is a valid no-op publisher.
type Collectors struct {
	objects      *prometheus.CounterVec
	passes       *prometheus.CounterVec
	passDuration prometheus.Histogram
}

// NewCollectors creates and registers the reconciliation collectors.
func NewCollectors(registerer prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		objects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "harborsync",
				Name:      "objects_total",
				Help:      "Objects processed per kind and reconciliation phase",
			},
			[]string{"kind", "phase"},
		),
		passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "harborsync",
				Name:      "passes_total",
				Help:      "Completed reconciliation passes by outcome",
			},
			[]string{"status"},
		),
		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "harborsync",
				Name:      "pass_duration_seconds",
				Help:      "Duration of reconciliation passes in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	for _, collector := range []prometheus.Collector{c.objects, c.passes, c.passDuration} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// add increments the object counter for a kind and phase.
func (c *Collectors) add(kind, phase string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.objects.WithLabelValues(kind, phase).Add(float64(n))
}

// finishPass records a completed pass.
func (c *Collectors) finishPass(duration time.Duration, success bool) {
	if c == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	c.passes.WithLabelValues(status).Inc()
	c.passDuration.Observe(duration.Seconds())
}
