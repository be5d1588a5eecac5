/*
Package log provides structured logging for joyride using zerolog.

The package owns a single global zerolog.Logger that every other package
derives child loggers from. It is configured once at process start by
log.Init and is safe for concurrent use.

# Architecture

	┌──────────────────── LOGGING ─────────────────────────┐
	│                                                        │
	│   log.Init(Config) ──► Logger (zerolog, global)        │
	│                           │                            │
	│        ┌──────────────────┼───────────────────┐        │
	│        ▼                  ▼                   ▼        │
	│  WithComponent("dns")  WithProvider("bus")  WithEventType │
	│                                                        │
	│   Output: console (RFC3339) or JSON lines              │
	└────────────────────────────────────────────────────────┘

Until Init is called the zero-value Logger discards everything, which keeps
library packages and their tests silent.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("lifecycle")
	logger.Info().Str("name", "dns").Dur("took", d).Msg("component started")

	level, ok := log.ParseLevel(cfg.Log.Level)

# Fields

Loggers use a small, fixed set of field names so output can be filtered
reliably:

  - component: subsystem name (lifecycle, events, providers, dns, hosts, records, api)
  - provider: container provider being resolved
  - event_type: event type being published
  - name: component name inside the orchestrator
*/
package log
