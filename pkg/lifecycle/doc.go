/*
Package lifecycle starts, stops and health-checks joyride's components in
dependency order.

A Component wraps any value. The value opts into behavior by implementing
Startable, Stoppable and HealthCheckable; NewComponent checks for them once.

# State machine

	            ┌──────────────────────────────────┐
	            ▼                                  │
	CREATED ─► STARTING ─► STARTED ─► STOPPING ─► STOPPED
	              │           │          │
	              └─────┬─────┴──────────┘
	                    ▼
	                  FAILED ─► STARTING | STOPPING

Every other transition returns InvalidStateTransitionError. The transition
into STARTING or STOPPING is claimed under the component's lock, so only
one of two concurrent Start calls runs the start function.

# Orchestration

	┌──────────────────────── ORCHESTRATOR ────────────────────────┐
	│                                                                │
	│  Registry: components + edges    (one RWMutex)                 │
	│                                                                │
	│  AddDependency(dns, records)  rejects edges that close a cycle │
	│  StartupOrder()   records, dns, api     (three-color DFS)      │
	│  ShutdownOrder()  api, dns, records                            │
	│                                                                │
	│  StartAll   fail-fast    first failure aborts, started stay up │
	│  StopAll    best-effort  every component attempted, errors     │
	│                          returned as one ShutdownFailureError  │
	│  HealthCheckAll          errgroup, HealthCheckConcurrency wide │
	└────────────────────────────────────────────────────────────────┘

Each call into a component runs under its own timeout from Config. A call
that times out releases the caller, marks the component FAILED and its
eventual result is ignored. Panics are recovered into errors.

Health checks never fail. An error, panic or timeout reports
health.StatusUnhealthy; a component without HealthCheckable reports
health.StatusUnknown.

# Health monitor

	monitor := lifecycle.NewHealthMonitor(orchestrator,
		lifecycle.WithInterval(30*time.Second),
		lifecycle.WithListener(func(results map[string]health.Status) {
			...
		}),
	)
	monitor.StartMonitoring()
	defer monitor.StopMonitoring()

StopMonitoring cancels a round in progress and returns once the loop has
exited. Both calls are idempotent and independent of component state.
Listeners run on the monitor goroutine; one that calls StopMonitoring gets
control back at once and the loop exits after the listener returns.

# Container integration

NewProviderComponent runs a dependency-container provider as a component:
start resolves the instance and forwards to its capabilities, stop forwards
and then releases the instance to the container, which runs the
provider's cleanup hook.
*/
package lifecycle
