// Package metrics exposes dashboard counters to Prometheus. Counters are
// deliberately boring: each one can be explained by looking at a single
// poll cycle or fetch call.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vlsilab/chipdash/pkg/models"
)

// Collector holds the dashboard's Prometheus instruments.
type Collector struct {
	registry *prometheus.Registry

	PollCycles        prometheus.Counter
	StatusTransitions prometheus.Counter
	FetchErrors       *prometheus.CounterVec
	JobsByStatus      *prometheus.GaugeVec
	Offline           prometheus.Gauge
}

// NewCollector creates and registers the instrument set on a private
// registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		PollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chipdash_poll_cycles_total",
			Help: "Completed poll cycles.",
		}),
		StatusTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chipdash_status_transitions_total",
			Help: "Job status changes observed by the poller.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chipdash_fetch_errors_total",
			Help: "Failed source fetches by source.",
		}, []string{"source"}),
		JobsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chipdash_jobs",
			Help: "Jobs in the merged list by status.",
		}, []string{"status"}),
		Offline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chipdash_api_offline",
			Help: "1 while every upstream source is unreachable.",
		}),
	}

	registry.MustRegister(c.PollCycles, c.StatusTransitions, c.FetchErrors, c.JobsByStatus, c.Offline)
	return c
}

// Handler serves the registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveJobs updates the by-status gauges from a merged list.
func (c *Collector) ObserveJobs(jobs []models.JobRecord) {
	counts := map[models.Status]int{
		models.StatusQueued:    0,
		models.StatusRunning:   0,
		models.StatusCompleted: 0,
		models.StatusFailed:    0,
	}
	for _, job := range jobs {
		counts[job.Status]++
	}
	for status, count := range counts {
		c.JobsByStatus.WithLabelValues(string(status)).Set(float64(count))
	}
}

// ObserveFetch records per-source fetch failures from one cycle.
func (c *Collector) ObserveFetch(genericErr, ldpcErr error) {
	if genericErr != nil {
		c.FetchErrors.WithLabelValues("tests").Inc()
	}
	if ldpcErr != nil {
		c.FetchErrors.WithLabelValues("ldpc").Inc()
	}
	if genericErr != nil && ldpcErr != nil {
		c.Offline.Set(1)
	} else {
		c.Offline.Set(0)
	}
}
