package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lifecycle metrics
	ComponentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "joyride_component_state",
			Help: "Current component state (1 for the active state, 0 otherwise)",
		},
		[]string{"component", "state"},
	)

	ComponentStartupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "joyride_component_startup_duration_seconds",
			Help:    "Time taken by component start calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"component"},
	)

	ComponentShutdownDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "joyride_component_shutdown_duration_seconds",
			Help:    "Time taken by component stop calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"component"},
	)

	ComponentFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "joyride_component_failures_total",
			Help: "Total number of failed component start/stop calls by operation",
		},
		[]string{"component", "operation"},
	)

	ComponentHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "joyride_component_health",
			Help: "Last health check result (1 for the reported status, 0 otherwise)",
		},
		[]string{"component", "status"},
	)

	HealthChecksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "joyride_health_check_rounds_total",
			Help: "Total number of health monitor rounds",
		},
	)

	// Event bus metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "joyride_events_published_total",
			Help: "Total number of events published by type",
		},
		[]string{"type"},
	)

	EventHandlerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "joyride_event_handler_failures_total",
			Help: "Total number of event handler errors and panics by type",
		},
		[]string{"type"},
	)

	Subscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "joyride_event_subscriptions",
			Help: "Number of active event bus subscriptions",
		},
	)

	// Container metrics
	ProvidersRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "joyride_providers_registered",
			Help: "Number of providers registered in the container",
		},
	)

	ProviderResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "joyride_provider_resolutions_total",
			Help: "Total number of provider resolutions by result",
		},
		[]string{"provider", "result"},
	)

	// DNS metrics
	RecordsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "joyride_dns_records",
			Help: "Number of records in the DNS record table",
		},
	)

	DNSQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "joyride_dns_queries_total",
			Help: "Total number of DNS queries by outcome",
		},
		[]string{"outcome"},
	)

	// API metrics
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "joyride_api_request_duration_seconds",
			Help:    "Status API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(ComponentState)
	prometheus.MustRegister(ComponentStartupDuration)
	prometheus.MustRegister(ComponentShutdownDuration)
	prometheus.MustRegister(ComponentFailures)
	prometheus.MustRegister(ComponentHealth)
	prometheus.MustRegister(HealthChecksTotal)
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(EventHandlerFailures)
	prometheus.MustRegister(Subscriptions)
	prometheus.MustRegister(ProvidersRegistered)
	prometheus.MustRegister(ProviderResolutions)
	prometheus.MustRegister(RecordsTotal)
	prometheus.MustRegister(DNSQueries)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetOneHot sets the label value matching active to 1 and every other value
// in all to 0. Used for enum-style gauges such as component state.
func SetOneHot(g *prometheus.GaugeVec, key, active string, all []string) {
	for _, v := range all {
		if v == active {
			g.WithLabelValues(key, v).Set(1)
		} else {
			g.WithLabelValues(key, v).Set(0)
		}
	}
}
