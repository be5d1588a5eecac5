/*
Package runtime assembles a joyride process from its configuration.

A Runtime owns one dependency container, one lifecycle orchestrator, one
event bus and one health monitor. Nothing is global: two runtimes in the
same process share nothing but the Prometheus registry.

# Assembly

	config.Config
	   │
	   ▼
	┌──────────────── providers.Registry ────────────────┐
	│ instances: config, bus, orchestrator, monitor,      │
	│            records-config, dns-config, ...          │
	│ classes:   records ← bus, records-config            │
	│            dns     ← records, dns-config            │
	│            hosts   ← bus, hosts-config              │
	│ singleton: api     ← records, orchestrator, monitor │
	└──────────────────────────┬─────────────────────────┘
	                           │ ProviderComponent
	                           ▼
	┌──────────────── lifecycle.Orchestrator ────────────┐
	│ records ◄── dns, hosts, api   (enabled ones only)   │
	└──────────────────────────┬─────────────────────────┘
	                           │ HealthCheckAll
	                           ▼
	                lifecycle.HealthMonitor ──► listener
	                                              ├─ component.unhealthy / component.recovered
	                                              └─ api.Server.UpdateHealth (gRPC health)

Components are built by the container when the orchestrator starts them
and released back to it when they stop, so a restarted component gets a
fresh instance.

# Events

The runtime publishes system.started once every component is running and
system.stopping before it stops them. Health transitions are published
from each monitor round: component.unhealthy when a component becomes
unhealthy, component.recovered when it stops being unhealthy. With
events.trace set every event on the bus is logged at debug level.

# Usage

	rt, err := runtime.New(cfg, runtime.WithVersion(version))
	if err != nil {
		return err
	}
	if err := rt.Start(ctx); err != nil {
		_ = rt.Stop(context.Background())
		return err
	}
	<-ctx.Done()
	return rt.Stop(shutdownCtx)
*/
package runtime
