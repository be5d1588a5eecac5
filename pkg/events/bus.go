package events

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cuemby/joyride/pkg/log"
	"github.com/cuemby/joyride/pkg/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrBusInactive is returned when subscribing to a bus that has been shut down
var ErrBusInactive = errors.New("event bus is shut down")

// Stats is a snapshot of bus activity
type Stats struct {
	Active        bool
	Subscriptions int
	Published     uint64
	Delivered     uint64
	Failed        uint64
}

// Bus is a synchronous in-process publish/subscribe bus. Handlers run on the
// publishing goroutine, in subscription order.
//
// Publish copies the subscription list under the lock and releases it before
// calling any handler. Handlers may therefore subscribe, unsubscribe and
// publish themselves. A subscription removed while an event is being
// dispatched does not receive it if its turn has not come yet; one added
// during dispatch only sees later events.
type Bus struct {
	mu     sync.Mutex
	subs   []*Subscription
	active bool

	published atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64

	logger zerolog.Logger
}

// NewBus creates an active bus
func NewBus() *Bus {
	return &Bus{
		active: true,
		logger: log.WithComponent("events"),
	}
}

// Subscribe registers handler for events matching filter
func (b *Bus) Subscribe(handler Handler, filter Filter) (*Subscription, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	m, err := newMatcher(filter)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active {
		return nil, ErrBusInactive
	}

	sub := &Subscription{
		ID:      uuid.NewString(),
		handler: handler,
		matcher: m,
	}
	sub.active.Store(true)
	b.subs = append(b.subs, sub)
	metrics.Subscriptions.Inc()

	b.logger.Debug().
		Str("subscription", sub.ID).
		Str("type", string(filter.Type)).
		Str("pattern", filter.Pattern).
		Str("source", filter.Source).
		Msg("subscribed")
	return sub, nil
}

// SubscribeFunc is Subscribe for a plain function
func (b *Bus) SubscribeFunc(fn func(*Event) error, filter Filter) (*Subscription, error) {
	if fn == nil {
		return nil, errors.New("handler is required")
	}
	return b.Subscribe(HandlerFunc(fn), filter)
}

// Unsubscribe removes sub. It reports whether anything was removed, so a
// second call returns false.
func (b *Bus) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			sub.deactivate()
			metrics.Subscriptions.Dec()
			return true
		}
	}
	return false
}

// Publish delivers event to every matching subscription and returns the
// number of handlers that completed without error. Handler errors and
// panics are logged and never reach the publisher. An inactive bus drops
// the event and returns 0.
func (b *Bus) Publish(event *Event) int {
	if event == nil {
		b.logger.Warn().Msg("ignoring nil event")
		return 0
	}

	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		b.logger.Warn().
			Str("event_type", string(event.Type)).
			Str("event_id", event.ID).
			Msg("event bus is inactive, dropping event")
		return 0
	}
	snapshot := make([]*Subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()

	b.published.Add(1)
	metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()

	delivered := 0
	for _, sub := range snapshot {
		if !sub.Matches(event) {
			continue
		}
		if err := sub.deliver(event); err != nil {
			b.failed.Add(1)
			metrics.EventHandlerFailures.WithLabelValues(string(event.Type)).Inc()
			b.logger.Error().
				Err(err).
				Str("subscription", sub.ID).
				Str("event_type", string(event.Type)).
				Str("event_id", event.ID).
				Msg("event handler failed")
			continue
		}
		delivered++
	}

	b.delivered.Add(uint64(delivered))
	b.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("source", event.Source).
		Int("delivered", delivered).
		Msg("event published")
	return delivered
}

// ClearSubscriptions removes every subscription whose filter names
// eventType, or all subscriptions when eventType is empty. It returns the
// number removed.
func (b *Bus) ClearSubscriptions(eventType EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.subs[:0]
	removed := 0
	for _, s := range b.subs {
		if eventType == "" || s.matcher.filter.Type == eventType {
			s.deactivate()
			removed++
			continue
		}
		kept = append(kept, s)
	}
	for i := len(kept); i < len(b.subs); i++ {
		b.subs[i] = nil
	}
	b.subs = kept
	metrics.Subscriptions.Sub(float64(removed))
	return removed
}

// Shutdown deactivates the bus and drops all subscriptions. Calling it
// again does nothing.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		return
	}
	b.active = false
	for _, s := range b.subs {
		s.deactivate()
	}
	removed := len(b.subs)
	b.subs = nil
	b.mu.Unlock()

	metrics.Subscriptions.Sub(float64(removed))
	b.logger.Info().Int("subscriptions", removed).Msg("event bus shut down")
}

// IsActive reports whether the bus accepts subscriptions and events
func (b *Bus) IsActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Subscriptions returns the current subscriptions in registration order
func (b *Bus) Subscriptions() []*Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Subscription, len(b.subs))
	copy(out, b.subs)
	return out
}

// Stats returns activity counters
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	active, n := b.active, len(b.subs)
	b.mu.Unlock()

	return Stats{
		Active:        active,
		Subscriptions: n,
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		Failed:        b.failed.Load(),
	}
}
