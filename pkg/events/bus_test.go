package events

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEvent(t *testing.T, eventType EventType) *Event {
	t.Helper()
	e, err := NewEvent(eventType, "test", nil)
	require.NoError(t, err)
	return e
}

// TestPublishPatternSubscription tests pattern delivery and unsubscribe
func TestPublishPatternSubscription(t *testing.T) {
	bus := NewBus()

	var calls int
	sub, err := bus.SubscribeFunc(func(*Event) error {
		calls++
		return nil
	}, ByPattern("dns.*"))
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)

	assert.Equal(t, 1, bus.Publish(mustEvent(t, "dns.record.created")))
	assert.Equal(t, 1, calls)

	assert.Equal(t, 0, bus.Publish(mustEvent(t, "container.started")))
	assert.Equal(t, 1, calls)

	assert.True(t, bus.Unsubscribe(sub))
	assert.False(t, bus.Unsubscribe(sub))
	assert.False(t, sub.Active())

	assert.Equal(t, 0, bus.Publish(mustEvent(t, "dns.record.created")))
	assert.Equal(t, 1, calls)
}

// TestPublishOrderAndIsolation tests registration order and handler failures
func TestPublishOrderAndIsolation(t *testing.T) {
	bus := NewBus()

	var order []string
	record := func(name string, err error) func(*Event) error {
		return func(*Event) error {
			order = append(order, name)
			return err
		}
	}

	_, err := bus.SubscribeFunc(record("first", nil), ByPattern("*"))
	require.NoError(t, err)
	_, err = bus.SubscribeFunc(record("failing", errors.New("boom")), ByPattern("*"))
	require.NoError(t, err)
	_, err = bus.SubscribeFunc(func(*Event) error {
		order = append(order, "panicking")
		panic("handler bug")
	}, ByPattern("*"))
	require.NoError(t, err)
	_, err = bus.SubscribeFunc(record("last", nil), ByPattern("*"))
	require.NoError(t, err)

	delivered := bus.Publish(mustEvent(t, EventContainerStart))

	assert.Equal(t, 2, delivered)
	assert.Equal(t, []string{"first", "failing", "panicking", "last"}, order)

	stats := bus.Stats()
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, uint64(2), stats.Delivered)
	assert.Equal(t, uint64(2), stats.Failed)
	assert.Equal(t, 4, stats.Subscriptions)
}

// TestReentrantHandlers tests the snapshot-then-dispatch policy
func TestReentrantHandlers(t *testing.T) {
	bus := NewBus()

	var late, victim, chained int
	var victimSub *Subscription

	_, err := bus.SubscribeFunc(func(e *Event) error {
		// subscribing during dispatch does not see the in-flight event
		_, err := bus.SubscribeFunc(func(*Event) error {
			late++
			return nil
		}, ByType(EventRecordCreated))
		if err != nil {
			return err
		}
		// unsubscribing a later handler prevents its delivery
		bus.Unsubscribe(victimSub)
		// publishing from a handler does not deadlock
		bus.Publish(&Event{Type: EventRecordRemoved, Source: "test"})
		return nil
	}, ByType(EventRecordCreated))
	require.NoError(t, err)

	victimSub, err = bus.SubscribeFunc(func(*Event) error {
		victim++
		return nil
	}, ByType(EventRecordCreated))
	require.NoError(t, err)

	_, err = bus.SubscribeFunc(func(*Event) error {
		chained++
		return nil
	}, ByType(EventRecordRemoved))
	require.NoError(t, err)

	delivered := bus.Publish(mustEvent(t, EventRecordCreated))

	assert.Equal(t, 1, delivered)
	assert.Equal(t, 0, late)
	assert.Equal(t, 0, victim)
	assert.Equal(t, 1, chained)

	// the subscription added during dispatch receives the next event
	bus.Publish(mustEvent(t, EventRecordCreated))
	assert.Equal(t, 1, late)
}

// TestConcurrentPublish tests publishing from many goroutines
func TestConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var received atomic.Int64
	_, err := bus.SubscribeFunc(func(*Event) error {
		received.Add(1)
		return nil
	}, ByPattern("container.*"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(&Event{Type: EventContainerStart, Source: "docker"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), received.Load())
}

// TestClearSubscriptions tests scoped and global clearing
func TestClearSubscriptions(t *testing.T) {
	bus := NewBus()
	noop := func(*Event) error { return nil }

	a, _ := bus.SubscribeFunc(noop, ByType(EventHostsEntryAdded))
	_, _ = bus.SubscribeFunc(noop, ByType(EventHostsEntryAdded))
	_, _ = bus.SubscribeFunc(noop, ByType(EventHostsEntryRemoved))
	_, _ = bus.SubscribeFunc(noop, ByPattern("hosts.*"))

	assert.Equal(t, 2, bus.ClearSubscriptions(EventHostsEntryAdded))
	assert.False(t, a.Active())
	assert.Len(t, bus.Subscriptions(), 2)

	assert.Equal(t, 0, bus.ClearSubscriptions(EventHostsEntryAdded))
	assert.Equal(t, 2, bus.ClearSubscriptions(""))
	assert.Empty(t, bus.Subscriptions())
}

// TestShutdown tests inactive bus behavior
func TestShutdown(t *testing.T) {
	bus := NewBus()

	var calls int
	sub, err := bus.SubscribeFunc(func(*Event) error {
		calls++
		return nil
	}, ByPattern("*"))
	require.NoError(t, err)

	bus.Shutdown()
	bus.Shutdown()

	assert.False(t, bus.IsActive())
	assert.False(t, sub.Active())
	assert.Equal(t, 0, bus.Publish(mustEvent(t, EventSystemStopping)))
	assert.Equal(t, 0, calls)

	_, err = bus.SubscribeFunc(func(*Event) error { return nil }, ByPattern("*"))
	assert.ErrorIs(t, err, ErrBusInactive)
}

// TestSubscribeValidation tests rejected subscriptions
func TestSubscribeValidation(t *testing.T) {
	bus := NewBus()

	_, err := bus.SubscribeFunc(func(*Event) error { return nil }, Filter{})
	assert.ErrorIs(t, err, ErrEmptyFilter)

	_, err = bus.Subscribe(nil, ByPattern("*"))
	assert.Error(t, err)

	assert.Equal(t, 0, bus.Publish(nil))
	assert.False(t, bus.Unsubscribe(nil))
}
