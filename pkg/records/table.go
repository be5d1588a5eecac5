package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/joyride/pkg/config"
	"github.com/cuemby/joyride/pkg/events"
	"github.com/cuemby/joyride/pkg/health"
	"github.com/cuemby/joyride/pkg/log"
	"github.com/cuemby/joyride/pkg/metrics"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// EventSource is the source of events published by the table
const EventSource = "records"

// Table is the DNS record table. It keeps every record in memory,
// optionally mirrors it to a Store, and follows container and hosts-file
// events from the bus.
type Table struct {
	bus    *events.Bus
	config config.RecordsConfig
	logger zerolog.Logger

	mu      sync.RWMutex
	records map[string]*Record
	store   Store
	subs    []*events.Subscription
	running bool
}

// NewTable creates a stopped table. bus may be nil, in which case no
// events are followed or published.
func NewTable(bus *events.Bus, cfg config.RecordsConfig) *Table {
	return &Table{
		bus:     bus,
		config:  cfg,
		logger:  log.WithComponent("records"),
		records: make(map[string]*Record),
	}
}

// WithStore sets the persistence backend used instead of opening
// config.Path on Start
func (t *Table) WithStore(store Store) *Table {
	t.store = store
	return t
}

// Start loads persisted records and subscribes to producer events
func (t *Table) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return errors.New("record table already running")
	}

	if t.store == nil && t.config.Path != "" {
		store, err := NewBoltStore(t.config.Path)
		if err != nil {
			return err
		}
		t.store = store
	}
	if t.store != nil {
		recs, err := t.store.List()
		if err != nil {
			return fmt.Errorf("failed to load records: %w", err)
		}
		for _, rec := range recs {
			t.records[rec.Hostname] = rec
		}
	}
	metrics.RecordsTotal.Set(float64(len(t.records)))

	if t.bus != nil {
		for _, f := range []events.Filter{events.ByPattern("container.*"), events.ByPattern("hosts.entry.*")} {
			sub, err := t.bus.SubscribeFunc(t.handle, f)
			if err != nil {
				t.unsubscribeLocked()
				return fmt.Errorf("failed to subscribe: %w", err)
			}
			t.subs = append(t.subs, sub)
		}
	}

	t.running = true
	t.logger.Info().Int("records", len(t.records)).Msg("record table started")
	return nil
}

// Stop unsubscribes and closes the store. Records stay in memory.
func (t *Table) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	t.running = false
	t.unsubscribeLocked()

	var err error
	if t.store != nil {
		err = t.store.Close()
		t.store = nil
	}
	t.logger.Info().Msg("record table stopped")
	return err
}

func (t *Table) unsubscribeLocked() {
	for _, sub := range t.subs {
		t.bus.Unsubscribe(sub)
	}
	t.subs = nil
}

// HealthCheck reports unhealthy when stopped or when the store is unreadable
func (t *Table) HealthCheck(ctx context.Context) (health.Status, error) {
	t.mu.RLock()
	running, store := t.running, t.store
	t.mu.RUnlock()

	if !running {
		return health.StatusUnhealthy, nil
	}
	if store != nil {
		if err := store.Ping(); err != nil {
			return health.StatusUnhealthy, err
		}
	}
	return health.StatusHealthy, nil
}

// Upsert adds or replaces a record. It reports whether the table changed
// and publishes dns.record.created when it did. When the store rejects the
// write the table is left unchanged.
func (t *Table) Upsert(rec *Record) (bool, error) {
	t.mu.Lock()
	old, exists := t.records[rec.Hostname]
	if exists && old.IP == rec.IP && old.Origin == rec.Origin && old.Source == rec.Source {
		t.mu.Unlock()
		return false, nil
	}
	if t.store != nil {
		if err := t.store.Put(rec); err != nil {
			t.mu.Unlock()
			return false, fmt.Errorf("failed to persist record %s: %w", rec.Hostname, err)
		}
	}
	t.records[rec.Hostname] = rec
	metrics.RecordsTotal.Set(float64(len(t.records)))
	t.mu.Unlock()

	t.logger.Info().
		Str("hostname", rec.Hostname).
		Str("ip", rec.IP).
		Str("origin", string(rec.Origin)).
		Msg("record added")
	t.publish(events.EventRecordCreated, rec)
	return true, nil
}

// Add builds and upserts a record
func (t *Table) Add(hostname, ip string, origin Origin, source string) (*Record, error) {
	rec, err := NewRecord(hostname, ip, origin, source)
	if err != nil {
		return nil, err
	}
	_, err = t.Upsert(rec)
	return rec, err
}

// Remove deletes the record for hostname, publishing dns.record.removed.
// When the store rejects the delete the record stays.
func (t *Table) Remove(hostname string) (bool, error) {
	return t.removeIf(Normalize(hostname), func(*Record) bool { return true })
}

// RemoveBySource deletes every record owned by origin and source, e.g. all
// names of one container. It returns the number removed.
func (t *Table) RemoveBySource(origin Origin, source string) (int, error) {
	t.mu.RLock()
	var names []string
	for name, rec := range t.records {
		if rec.Origin == origin && rec.Source == source {
			names = append(names, name)
		}
	}
	t.mu.RUnlock()

	var errs error
	removed := 0
	for _, name := range names {
		ok, err := t.removeIf(name, func(r *Record) bool {
			return r.Origin == origin && r.Source == source
		})
		errs = multierr.Append(errs, err)
		if ok {
			removed++
		}
	}
	return removed, errs
}

func (t *Table) removeIf(hostname string, match func(*Record) bool) (bool, error) {
	t.mu.Lock()
	rec, ok := t.records[hostname]
	if !ok || !match(rec) {
		t.mu.Unlock()
		return false, nil
	}
	if t.store != nil {
		if err := t.store.Delete(hostname); err != nil {
			t.mu.Unlock()
			return false, fmt.Errorf("failed to delete record %s: %w", hostname, err)
		}
	}
	delete(t.records, hostname)
	metrics.RecordsTotal.Set(float64(len(t.records)))
	t.mu.Unlock()

	t.logger.Info().Str("hostname", hostname).Msg("record removed")
	t.publish(events.EventRecordRemoved, rec)
	return true, nil
}

// Lookup returns the record answering hostname. Exact names win over
// wildcard records such as *.example.com.
func (t *Table) Lookup(hostname string) (*Record, bool) {
	name := Normalize(hostname)

	t.mu.RLock()
	defer t.mu.RUnlock()

	if rec, ok := t.records[name]; ok {
		return rec, true
	}
	var best *Record
	for pattern, rec := range t.records {
		if matchWildcard(pattern, name) && (best == nil || len(pattern) > len(best.Hostname)) {
			best = rec
		}
	}
	return best, best != nil
}

// List returns all records sorted by hostname
func (t *Table) List() []Record {
	t.mu.RLock()
	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, *rec)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out
}

// Len returns the number of records
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

func (t *Table) publish(eventType events.EventType, rec *Record) {
	if t.bus == nil {
		return
	}
	e, err := events.NewRecordEvent(eventType, EventSource, rec.Hostname, rec.IP, string(rec.Origin))
	if err != nil {
		t.logger.Error().Err(err).Str("hostname", rec.Hostname).Msg("failed to build record event")
		return
	}
	t.bus.Publish(e)
}

// handle applies container and hosts-file events
func (t *Table) handle(e *events.Event) error {
	switch e.Type {
	case events.EventContainerStart, events.EventContainerUnpause, events.EventContainerUpdate:
		hostname, ip := e.String("hostname"), e.String("ip")
		if hostname == "" || ip == "" {
			return nil
		}
		_, err := t.Add(hostname, ip, OriginContainer, e.String("container_id"))
		return err

	case events.EventContainerStop, events.EventContainerDie, events.EventContainerKill,
		events.EventContainerDestroy, events.EventContainerPause:
		_, err := t.RemoveBySource(OriginContainer, e.String("container_id"))
		return err

	case events.EventHostsEntryAdded, events.EventHostsEntryModified:
		_, err := t.Add(e.String("hostname"), e.String("ip"), OriginHosts, e.String("file"))
		return err

	case events.EventHostsEntryRemoved:
		_, err := t.removeIf(Normalize(e.String("hostname")), func(r *Record) bool {
			return r.Origin == OriginHosts
		})
		return err
	}
	return nil
}
