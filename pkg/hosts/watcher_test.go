package hosts

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/joyride/pkg/config"
	"github.com/cuemby/joyride/pkg/events"
	"github.com/cuemby/joyride/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	Type     events.EventType
	Hostname string
	IP       string
}

type collector struct {
	mu     sync.Mutex
	events []published
}

func (c *collector) handle(e *events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, published{Type: e.Type, Hostname: e.String("hostname"), IP: e.String("ip")})
	return nil
}

func (c *collector) take() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.events
	c.events = nil
	return out
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTestWatcher(t *testing.T, dirs ...string) (*Watcher, *collector) {
	t.Helper()
	bus := events.NewBus()
	c := &collector{}
	_, err := bus.SubscribeFunc(c.handle, events.ByPattern("hosts.entry.*"))
	require.NoError(t, err)

	w := NewWatcher(bus, config.HostsConfig{Enabled: true, Directories: dirs, Debounce: 20 * time.Millisecond})
	return w, c
}

// TestWatcherInitialScan tests that existing entries are published on start
func TestWatcherInitialScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), "10.0.0.5 web\n10.0.0.6 db\n")
	writeFile(t, filepath.Join(dir, "b"), "10.0.0.9 web\n")
	writeFile(t, filepath.Join(dir, ".hidden"), "10.0.0.10 secret\n")

	w, c := newTestWatcher(t, dir)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	assert.Equal(t, []published{
		{Type: events.EventHostsEntryAdded, Hostname: "db", IP: "10.0.0.6"},
		{Type: events.EventHostsEntryAdded, Hostname: "web", IP: "10.0.0.5"},
	}, c.take())

	snap := w.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, filepath.Join(dir, "a"), snap["web"].File)
	assert.False(t, w.LastScan().IsZero())
}

// TestWatcherRescan tests change detection between scans
func TestWatcherRescan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lab")
	writeFile(t, path, "10.0.0.5 web\n10.0.0.6 db\n")

	w, c := newTestWatcher(t, dir)
	require.NoError(t, w.Rescan())
	c.take()

	writeFile(t, path, "10.0.0.50 web\n10.0.0.7 cache\n")
	require.NoError(t, w.Rescan())

	assert.Equal(t, []published{
		{Type: events.EventHostsEntryRemoved, Hostname: "db", IP: "10.0.0.6"},
		{Type: events.EventHostsEntryModified, Hostname: "web", IP: "10.0.0.50"},
		{Type: events.EventHostsEntryAdded, Hostname: "cache", IP: "10.0.0.7"},
	}, c.take())

	require.NoError(t, w.Rescan())
	assert.Empty(t, c.take(), "unchanged files publish nothing")
}

// TestWatcherFollowsFiles tests the fsnotify-driven rescan
func TestWatcherFollowsFiles(t *testing.T) {
	dir := t.TempDir()
	w, c := newTestWatcher(t, dir)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop(context.Background()) })
	assert.Empty(t, c.take())

	path := filepath.Join(dir, "lab")
	writeFile(t, path, "10.0.0.5 web\n")
	require.Eventually(t, func() bool { return c.len() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []published{{Type: events.EventHostsEntryAdded, Hostname: "web", IP: "10.0.0.5"}}, c.take())

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool { return c.len() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []published{{Type: events.EventHostsEntryRemoved, Hostname: "web", IP: "10.0.0.5"}}, c.take())
}

// TestWatcherLifecycle tests start, stop and health reporting
func TestWatcherLifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "created")
	w, _ := newTestWatcher(t, dir)
	ctx := context.Background()

	status, err := w.HealthCheck(ctx)
	assert.Error(t, err)
	assert.Equal(t, health.StatusUnhealthy, status)

	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx), "start is idempotent")
	assert.DirExists(t, dir)

	status, err = w.HealthCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, health.StatusHealthy, status)

	require.NoError(t, w.Stop(ctx))
	require.NoError(t, w.Stop(ctx), "stop is idempotent")

	status, _ = w.HealthCheck(ctx)
	assert.Equal(t, health.StatusUnhealthy, status)

	require.NoError(t, w.Start(ctx), "restart after stop")
	require.NoError(t, w.Stop(ctx))
}

// TestWatcherUnreadableDirectory tests the degraded state after a failed scan
func TestWatcherUnreadableDirectory(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWatcher(t, dir)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	require.NoError(t, os.RemoveAll(dir))
	assert.Error(t, w.Rescan())

	status, err := w.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, health.StatusDegraded, status)
}
