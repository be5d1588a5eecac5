/*
Package api serves joyride's status API.

The HTTP side is a chi router; the gRPC side is the standard
grpc.health.v1 service. Both read from sources supplied by the runtime and
never change component state.

# Endpoints

	GET /health             liveness, always 200; overall status of the last monitor round
	GET /ready              200 when every component is started and none is unhealthy, else 503
	GET /components         every component's status, sorted by name
	GET /components/{name}  one component, 404 when unknown
	GET /records            the record table
	GET /metrics            Prometheus exposition

Example /ready response while a component is down:

	{
	  "status": "not ready",
	  "timestamp": "2026-01-02T03:04:05Z",
	  "checks": {"dns": "failed", "records": "started"},
	  "message": "components not started"
	}

Every request is timed into joyride_api_request_duration_seconds, labelled
with the chi route pattern so /components/{name} stays a single series.

# gRPC health

UpdateHealth copies a monitor round into the health service. Each component
name is a service; the empty service name is NOT_SERVING when any
component is unhealthy:

	healthy, degraded  SERVING
	unhealthy          NOT_SERVING
	unknown            UNKNOWN

# Lifecycle

Start binds the HTTP and gRPC listeners (api.port and api.grpc_port) and
serves in the background; a grpc_port of 0 leaves the gRPC side off. Stop
shuts HTTP down and drains gRPC, stopping it hard if ctx expires.
HealthCheck probes /health over the bound address, then dials the gRPC
listener when it is enabled; a dead gRPC listener reports degraded.
*/
package api
