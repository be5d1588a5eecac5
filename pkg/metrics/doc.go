/*
Package metrics exposes joyride's Prometheus metrics.

All collectors are package-level variables registered with the default
Prometheus registry in init(), so any package can record a value without
plumbing a registry through constructors. The status API serves them on
/metrics through Handler().

# Metric families

Lifecycle:
  - joyride_component_state{component,state}: one-hot gauge, 1 for the current state
  - joyride_component_startup_duration_seconds{component}
  - joyride_component_shutdown_duration_seconds{component}
  - joyride_component_failures_total{component,operation}
  - joyride_component_health{component,status}: one-hot gauge
  - joyride_health_check_rounds_total

Event bus:
  - joyride_events_published_total{type}
  - joyride_event_handler_failures_total{type}
  - joyride_event_subscriptions

Container:
  - joyride_providers_registered
  - joyride_provider_resolutions_total{provider,result}

DNS and API:
  - joyride_dns_records
  - joyride_dns_queries_total{outcome}
  - joyride_api_request_duration_seconds{route}

# Collector

Component states change inside the orchestrator under per-component locks.
Rather than touching gauges on every transition, the Collector samples a
StateSource on a ticker (15s by default) and rewrites the one-hot gauge:

	collector := metrics.NewCollector(orchestrator, lifecycle.StateNames())
	collector.Start()
	defer collector.Stop()

The ticker comes from a clock.Clock so tests can drive it with clock.NewMock().

# Timer

	timer := metrics.NewTimer()
	err := component.Start(ctx)
	timer.ObserveDurationVec(metrics.ComponentStartupDuration, name)
*/
package metrics
