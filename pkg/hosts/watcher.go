package hosts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/joyride/pkg/config"
	"github.com/cuemby/joyride/pkg/events"
	"github.com/cuemby/joyride/pkg/health"
	"github.com/cuemby/joyride/pkg/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// EventSource is the source of events published by the watcher
const EventSource = "hosts"

// DefaultDebounce is used when the configured debounce is zero
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches hosts files and publishes the entries that change
type Watcher struct {
	bus      *events.Bus
	dirs     []string
	debounce time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	timer    *time.Timer
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	lastScan time.Time
	lastErr  error

	// scanMu serializes rescans and guards snapshot
	scanMu   sync.Mutex
	snapshot Snapshot
}

// NewWatcher creates a watcher over the configured directories
func NewWatcher(bus *events.Bus, cfg config.HostsConfig) *Watcher {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		bus:      bus,
		dirs:     append([]string(nil), cfg.Directories...),
		debounce: debounce,
		logger:   log.WithComponent("hosts"),
		snapshot: Snapshot{},
	}
}

// Start watches the directories and publishes every entry found in them.
// The watch loop outlives ctx and runs until Stop.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, dir := range w.dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			_ = watcher.Close()
			w.mu.Unlock()
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			w.mu.Unlock()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.logger.Debug().Str("directory", dir).Msg("watching directory")
	}

	w.watcher = watcher
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	w.mu.Unlock()

	go w.processEvents(watcher, w.stopCh, w.doneCh)

	if err := w.Rescan(); err != nil {
		w.logger.Warn().Err(err).Msg("initial hosts scan incomplete")
	}

	w.logger.Info().
		Strs("directories", w.dirs).
		Dur("debounce", w.debounce).
		Msg("hosts watcher started")
	return nil
}

// Stop ends the watch loop. Published entries are left in place.
func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	close(w.stopCh)
	done := w.doneCh
	err := w.watcher.Close()
	w.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.logger.Info().Msg("hosts watcher stopped")
	return err
}

// HealthCheck reports degraded when the last scan could not read every file
func (w *Watcher) HealthCheck(ctx context.Context) (health.Status, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return health.StatusUnhealthy, fmt.Errorf("hosts watcher not running")
	}
	if w.lastErr != nil {
		return health.StatusDegraded, nil
	}
	return health.StatusHealthy, nil
}

// Snapshot returns a copy of the current entries
func (w *Watcher) Snapshot() Snapshot {
	w.scanMu.Lock()
	defer w.scanMu.Unlock()

	out := make(Snapshot, len(w.snapshot))
	for k, v := range w.snapshot {
		out[k] = v
	}
	return out
}

// LastScan returns the time of the last completed scan
func (w *Watcher) LastScan() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastScan
}

// Rescan reads every hosts file, diffs the result against the previous
// scan and publishes one event per changed hostname. Unreadable files are
// skipped and reported in the returned error.
func (w *Watcher) Rescan() error {
	w.scanMu.Lock()
	defer w.scanMu.Unlock()

	cur, err := w.scan()

	added, removed, modified := Diff(w.snapshot, cur)
	w.snapshot = cur

	w.mu.Lock()
	w.lastScan = time.Now()
	w.lastErr = err
	w.mu.Unlock()

	for _, e := range removed {
		w.publish(events.EventHostsEntryRemoved, e)
	}
	for _, e := range modified {
		w.publish(events.EventHostsEntryModified, e)
	}
	for _, e := range added {
		w.publish(events.EventHostsEntryAdded, e)
	}

	if len(added)+len(removed)+len(modified) > 0 {
		w.logger.Info().
			Int("added", len(added)).
			Int("removed", len(removed)).
			Int("modified", len(modified)).
			Int("entries", len(cur)).
			Msg("hosts entries changed")
	}
	return err
}

// scan parses the files of every directory in name order
func (w *Watcher) scan() (Snapshot, error) {
	snap := Snapshot{}
	var errs error

	for _, dir := range w.dirs {
		files, err := hostsFiles(dir)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, path := range files {
			entries, skipped, err := ParseFile(path)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if skipped > 0 {
				w.logger.Warn().Str("file", path).Int("lines", skipped).Msg("skipped invalid hosts lines")
			}
			snap.Add(entries...)
		}
	}

	return snap, errs
}

func (w *Watcher) publish(eventType events.EventType, e Entry) {
	event, err := events.NewHostsEntryEvent(eventType, EventSource, e.Hostname, e.IP, e.File)
	if err != nil {
		w.logger.Error().Err(err).Str("hostname", e.Hostname).Msg("failed to build hosts event")
		return
	}
	w.bus.Publish(event)
}

// processEvents turns filesystem events into debounced rescans
func (w *Watcher) processEvents(watcher *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ignored(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("hosts file changed")
			w.schedule()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("hosts watcher error")
		}
	}
}

// schedule arms or re-arms the debounce timer
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.timer != nil {
		w.timer.Reset(w.debounce)
		return
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		running := w.running
		w.mu.Unlock()
		if !running {
			return
		}
		if err := w.Rescan(); err != nil {
			w.logger.Warn().Err(err).Msg("hosts rescan incomplete")
		}
	})
}

// hostsFiles lists the regular files of dir, sorted by name
func hostsFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || ignored(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ignored filters editor swap files and dotfiles
func ignored(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp")
}
