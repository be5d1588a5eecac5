/*
Package events provides joyride's in-process publish/subscribe bus.

Producers (the Docker watcher, the hosts-file watcher, the record store,
the health monitor) publish Events; consumers subscribe with a Filter and
receive matching events synchronously on the publishing goroutine.

# Architecture

	┌─────────────────────────── BUS ────────────────────────────┐
	│                                                              │
	│  subs []*Subscription   (registration order, one mutex)     │
	│                                                              │
	│  Publish(e)                                                  │
	│    1. lock, copy subs, unlock                                │
	│    2. for each sub in the copy:                              │
	│         skip if unsubscribed meanwhile                       │
	│         skip unless Filter matches                           │
	│         Handle(e)  (errors and panics logged, not returned) │
	│    3. return number of successful handlers                   │
	└──────────────────────────────────────────────────────────────┘

# Filters

A Filter needs at least one criterion. All criteria that are set must
match:

	Type       exact event type              events.ByType(events.EventRecordCreated)
	Pattern    shell glob on the event type  events.ByPattern("container.*")
	Source     exact source                  events.BySource("hosts")
	Predicate  arbitrary test on the event

Patterns are case-insensitive and anchored. * also matches dots, so
"dns.*" matches "dns.record.created".

# Re-entrancy

No lock is held while handlers run, so a handler may subscribe,
unsubscribe or publish. A subscription added during a dispatch first
sees the next event; one removed during a dispatch is skipped if it has
not been reached yet.

# Usage

	bus := events.NewBus()
	defer bus.Shutdown()

	sub, err := bus.SubscribeFunc(func(e *events.Event) error {
		logger.Info().Str("hostname", e.String("hostname")).Msg("record added")
		return nil
	}, events.ByPattern("dns.record.*"))

	e, err := events.NewRecordEvent(events.EventRecordCreated, "records", "web", "10.0.0.5", "docker")
	bus.Publish(e)

	bus.Unsubscribe(sub)
*/
package events
