package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "releasefinder",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "releasefinder",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "releasefinder",
		Name:      "provider_requests_total",
		Help:      "Total requests to metadata providers by engine and result status.",
	}, []string{"provider", "status"})

	ProviderRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "releasefinder",
		Name:      "provider_request_duration_seconds",
		Help:      "Metadata provider request duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"provider"})

	ProviderAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "releasefinder",
		Name:      "provider_available",
		Help:      "Whether a provider is available (1) or blocked by circuit breaker (0).",
	}, []string{"provider"})

	ReleasesAggregated = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "releasefinder",
		Name:      "releases_aggregated",
		Help:      "Canonical releases produced per aggregation pass.",
		Buckets:   []float64{0, 1, 3, 5, 10, 25, 50, 100},
	}, []string{"engine"})

	EscalationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "releasefinder",
		Name:      "escalations_total",
		Help:      "Dig-deeper requests by source and target engine.",
	}, []string{"from", "to"})

	SessionsActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "releasefinder",
		Name:      "sessions_active",
		Help:      "Number of live sessions by kind.",
	}, []string{"kind"})

	OptionReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "releasefinder",
		Name:      "option_reports_total",
		Help:      "Analyzed download options by engine and suitability.",
	}, []string{"engine", "suitability"})

	EnrichmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "releasefinder",
		Name:      "enrichments_total",
		Help:      "Tracklist enrichment attempts by result.",
	}, []string{"result"})

	TasksPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "releasefinder",
		Name:      "tasks_published_total",
		Help:      "Task queue messages by kind and publish status.",
	}, []string{"kind", "status"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		ProviderAvailable,
		ReleasesAggregated,
		EscalationsTotal,
		SessionsActive,
		OptionReportsTotal,
		EnrichmentsTotal,
		TasksPublishedTotal,
	)
}
