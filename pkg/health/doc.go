/*
Package health defines joyride's health status vocabulary and a set of
probe implementations used by components to answer health checks.

# Status

Every health check in joyride resolves to one of four values:

	healthy    component works normally
	degraded   component serves, with reduced capability
	unhealthy  component does not serve, or its check failed or timed out
	unknown    component has no health check capability

The lifecycle orchestrator never propagates a health-check error: failures
and timeouts become StatusUnhealthy, and a component without a health check
reports StatusUnknown. Worst folds several statuses into one, which the
status API uses for its overall verdict.

# Checkers

	┌──────────── Checker ────────────┐
	│  Check(ctx) Result               │
	│  Type() CheckType                │
	└──┬────────────┬───────────────┬──┘
	   │            │               │
	TCPChecker  HTTPChecker    DNSChecker
	 (dial)     (status code)  (miekg/dns query)

Checkers return a Result rather than an error: the probe's own failure is the
information being reported. All of them honour the context passed to Check,
so the orchestrator's per-call timeout bounds them.

	checker := health.NewDNSChecker("127.0.0.1:5353").WithTimeout(time.Second)
	result := checker.Check(ctx)
	if !result.Healthy() {
		logger.Warn().Str("message", result.Message).Msg("dns probe failed")
	}

HTTPChecker treats 503 Service Unavailable as degraded; DNSChecker treats
SERVFAIL as degraded and NXDOMAIN as healthy, since the server answered.
*/
package health
