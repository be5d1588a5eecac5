package records

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cuemby/joyride/pkg/config"
	"github.com/cuemby/joyride/pkg/events"
	"github.com/cuemby/joyride/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *recorder) handle(e *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func startedTable(t *testing.T, cfg config.RecordsConfig) (*Table, *events.Bus, *recorder) {
	t.Helper()
	bus := events.NewBus()
	rec := &recorder{}
	_, err := bus.SubscribeFunc(rec.handle, events.ByPattern("dns.record.*"))
	require.NoError(t, err)

	table := NewTable(bus, cfg)
	require.NoError(t, table.Start(context.Background()))
	t.Cleanup(func() { _ = table.Stop(context.Background()) })
	return table, bus, rec
}

func publish(t *testing.T, bus *events.Bus, e *events.Event, err error) {
	t.Helper()
	require.NoError(t, err)
	bus.Publish(e)
}

// TestNewRecord tests normalization and validation
func TestNewRecord(t *testing.T) {
	tests := []struct {
		name     string
		hostname string
		ip       string
		wantName string
		wantErr  bool
	}{
		{"plain", "web", "10.0.0.5", "web", false},
		{"fqdn upper", "Web.Local.", "10.0.0.5", "web.local", false},
		{"ipv6", "v6", "::1", "v6", false},
		{"empty name", " ", "10.0.0.5", "", true},
		{"bad ip", "web", "10.0.0", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewRecord(tt.hostname, tt.ip, OriginStatic, "")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, rec.Hostname)
		})
	}
}

// TestTableFollowsContainerEvents tests re-entrant record publishing
func TestTableFollowsContainerEvents(t *testing.T) {
	table, bus, rec := startedTable(t, config.RecordsConfig{})

	e, err := events.NewContainerEvent(events.EventContainerStart, "docker", "abc123", "web", "web", "172.17.0.2")
	publish(t, bus, e, err)

	got, ok := table.Lookup("web.")
	require.True(t, ok)
	assert.Equal(t, "172.17.0.2", got.IP)
	assert.Equal(t, OriginContainer, got.Origin)
	assert.Equal(t, "abc123", got.Source)

	// same content again is not a change
	publish(t, bus, e, err)

	e, err = events.NewContainerEvent(events.EventContainerDie, "docker", "abc123", "web", "", "")
	publish(t, bus, e, err)

	_, ok = table.Lookup("web")
	assert.False(t, ok)
	assert.Equal(t, []events.EventType{events.EventRecordCreated, events.EventRecordRemoved}, rec.types())
}

// TestTableFollowsHostsEvents tests hosts-file entries
func TestTableFollowsHostsEvents(t *testing.T) {
	table, bus, _ := startedTable(t, config.RecordsConfig{})

	e, err := events.NewHostsEntryEvent(events.EventHostsEntryAdded, "hosts", "db.lan", "10.1.0.9", "/etc/joyride/hosts/lan")
	publish(t, bus, e, err)
	e, err = events.NewHostsEntryEvent(events.EventHostsEntryModified, "hosts", "db.lan", "10.1.0.10", "/etc/joyride/hosts/lan")
	publish(t, bus, e, err)

	got, ok := table.Lookup("db.lan")
	require.True(t, ok)
	assert.Equal(t, "10.1.0.10", got.IP)

	// hosts removals never drop container records
	_, err = table.Add("app", "172.17.0.3", OriginContainer, "c1")
	require.NoError(t, err)
	e, err = events.NewHostsEntryEvent(events.EventHostsEntryRemoved, "hosts", "app", "172.17.0.3", "/etc/joyride/hosts/lan")
	publish(t, bus, e, err)
	_, ok = table.Lookup("app")
	assert.True(t, ok)

	e, err = events.NewHostsEntryEvent(events.EventHostsEntryRemoved, "hosts", "db.lan", "10.1.0.10", "/etc/joyride/hosts/lan")
	publish(t, bus, e, err)
	_, ok = table.Lookup("db.lan")
	assert.False(t, ok)
}

// TestTableLookupWildcard tests wildcard records
func TestTableLookupWildcard(t *testing.T) {
	table := NewTable(nil, config.RecordsConfig{})
	_, err := table.Add("*.svc.lan", "10.0.0.1", OriginStatic, "")
	require.NoError(t, err)
	_, err = table.Add("*.db.svc.lan", "10.0.0.2", OriginStatic, "")
	require.NoError(t, err)
	_, err = table.Add("primary.db.svc.lan", "10.0.0.3", OriginStatic, "")
	require.NoError(t, err)

	tests := []struct {
		query  string
		wantIP string
	}{
		{"api.svc.lan", "10.0.0.1"},
		{"replica.db.svc.lan", "10.0.0.2"},
		{"primary.db.svc.lan", "10.0.0.3"},
		{"svc.lan", ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec, ok := table.Lookup(tt.query)
			if tt.wantIP == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantIP, rec.IP)
		})
	}
}

// TestTablePersistence tests reload from bbolt
func TestTablePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")

	first := NewTable(nil, config.RecordsConfig{Path: path})
	require.NoError(t, first.Start(context.Background()))
	_, err := first.Add("web", "10.0.0.5", OriginStatic, "")
	require.NoError(t, err)
	_, err = first.Add("gone", "10.0.0.6", OriginStatic, "")
	require.NoError(t, err)
	_, err = first.Remove("gone")
	require.NoError(t, err)
	require.NoError(t, first.Stop(context.Background()))

	second := NewTable(nil, config.RecordsConfig{Path: path})
	require.NoError(t, second.Start(context.Background()))
	defer second.Stop(context.Background())

	assert.Equal(t, 1, second.Len())
	rec, ok := second.Lookup("web")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.5", rec.IP)
}

type failingStore struct {
	fail bool
}

func (s *failingStore) Put(*Record) error {
	if s.fail {
		return errors.New("disk full")
	}
	return nil
}

func (s *failingStore) Delete(string) error {
	if s.fail {
		return errors.New("disk full")
	}
	return nil
}

func (s *failingStore) List() ([]*Record, error) { return nil, nil }
func (s *failingStore) Ping() error              { return nil }
func (s *failingStore) Close() error             { return nil }

// TestTableStoreErrors tests that memory and store never diverge
func TestTableStoreErrors(t *testing.T) {
	bus := events.NewBus()
	rec := &recorder{}
	_, err := bus.SubscribeFunc(rec.handle, events.ByPattern("dns.record.*"))
	require.NoError(t, err)

	store := &failingStore{}
	table := NewTable(bus, config.RecordsConfig{}).WithStore(store)
	require.NoError(t, table.Start(context.Background()))
	defer table.Stop(context.Background())

	_, err = table.Add("web", "10.0.0.5", OriginStatic, "")
	require.NoError(t, err)

	store.fail = true

	_, err = table.Add("db", "10.0.0.6", OriginStatic, "")
	assert.Error(t, err)
	_, ok := table.Lookup("db")
	assert.False(t, ok)

	removed, err := table.Remove("web")
	assert.Error(t, err)
	assert.False(t, removed)
	_, ok = table.Lookup("web")
	assert.True(t, ok)

	assert.Equal(t, []events.EventType{events.EventRecordCreated}, rec.types())
}

// TestTableHealth tests health reporting across start and stop
func TestTableHealth(t *testing.T) {
	table := NewTable(nil, config.RecordsConfig{Path: filepath.Join(t.TempDir(), "records.db")})

	status, err := table.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, health.StatusUnhealthy, status)

	require.NoError(t, table.Start(context.Background()))
	assert.Error(t, table.Start(context.Background()))

	status, err = table.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, health.StatusHealthy, status)

	require.NoError(t, table.Stop(context.Background()))
	require.NoError(t, table.Stop(context.Background()))
}

// TestTableStopUnsubscribes tests that a stopped table ignores events
func TestTableStopUnsubscribes(t *testing.T) {
	bus := events.NewBus()
	table := NewTable(bus, config.RecordsConfig{})
	require.NoError(t, table.Start(context.Background()))
	assert.Len(t, bus.Subscriptions(), 2)

	require.NoError(t, table.Stop(context.Background()))
	assert.Empty(t, bus.Subscriptions())

	e, err := events.NewContainerEvent(events.EventContainerStart, "docker", "abc", "web", "web", "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, 0, bus.Publish(e))
	assert.Equal(t, 0, table.Len())
}

// TestRemoveBySource tests removing every name of one container
func TestRemoveBySource(t *testing.T) {
	table := NewTable(nil, config.RecordsConfig{})
	_, _ = table.Add("web", "10.0.0.5", OriginContainer, "c1")
	_, _ = table.Add("www", "10.0.0.5", OriginContainer, "c1")
	_, _ = table.Add("db", "10.0.0.6", OriginContainer, "c2")

	n, err := table.RemoveBySource(OriginContainer, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list := table.List()
	require.Len(t, list, 1)
	assert.Equal(t, "db", list[0].Hostname)
}
