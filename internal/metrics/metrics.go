package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the Prometheus collectors for the BFF.
// A nil *Registry is valid and records nothing.
type Registry struct {
	registry *prometheus.Registry

	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec

	FeedDuration prometheus.Histogram
	FeedDegraded *prometheus.CounterVec

	ComposerSubmits *prometheus.CounterVec
}

// New creates a registry with every collector registered.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memefeed_upstream_requests_total",
				Help: "Requests sent to the meme service by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memefeed_upstream_request_duration_seconds",
				Help:    "Latency of meme service requests",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint"},
		),
		FeedDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "memefeed_feed_aggregation_duration_seconds",
				Help:    "Time to assemble one feed page including every fan-out stage",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		FeedDegraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memefeed_feed_degraded_items_total",
				Help: "Feed items rendered without a part that failed to load",
			},
			[]string{"part"},
		),
		ComposerSubmits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memefeed_composer_submits_total",
				Help: "Meme creation attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.UpstreamRequests,
		r.UpstreamDuration,
		r.FeedDuration,
		r.FeedDegraded,
		r.ComposerSubmits,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveUpstream records one meme service call.
func (r *Registry) ObserveUpstream(endpoint, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	r.UpstreamDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveFeed records the duration of one aggregation cycle.
func (r *Registry) ObserveFeed(d time.Duration) {
	if r == nil {
		return
	}
	r.FeedDuration.Observe(d.Seconds())
}

// Degraded counts a feed item missing part (author, comments, comment_author).
func (r *Registry) Degraded(part string) {
	if r == nil {
		return
	}
	r.FeedDegraded.WithLabelValues(part).Inc()
}

// Submit counts a composer submission outcome (created, rejected, failed).
func (r *Registry) Submit(outcome string) {
	if r == nil {
		return
	}
	r.ComposerSubmits.WithLabelValues(outcome).Inc()
}
