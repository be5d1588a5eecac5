package lifecycle

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cuemby/joyride/pkg/health"
	"github.com/cuemby/joyride/pkg/log"
	"github.com/cuemby/joyride/pkg/metrics"
	"github.com/rs/zerolog"
)

// DefaultMonitorInterval is the default time between health rounds
const DefaultMonitorInterval = 30 * time.Second

// HealthChecker produces one health round. *Orchestrator implements it.
type HealthChecker interface {
	HealthCheckAll(ctx context.Context) map[string]health.Status
}

// HealthListener is called after every completed round with its results
type HealthListener func(results map[string]health.Status)

// MonitorOption configures a HealthMonitor
type MonitorOption func(*HealthMonitor)

// WithInterval sets the time between rounds
func WithInterval(d time.Duration) MonitorOption {
	return func(m *HealthMonitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithClock replaces the clock driving the round ticker
func WithClock(clk clock.Clock) MonitorOption {
	return func(m *HealthMonitor) {
		m.clock = clk
	}
}

// WithListener adds a listener for round results. Listeners of monitored
// rounds run on the monitor goroutine and may call StopMonitoring.
func WithListener(l HealthListener) MonitorOption {
	return func(m *HealthMonitor) {
		m.listeners = append(m.listeners, l)
	}
}

// HealthMonitor runs health rounds on a fixed interval, independently of
// component start and stop.
type HealthMonitor struct {
	checker   HealthChecker
	clock     clock.Clock
	interval  time.Duration
	listeners []HealthListener
	logger    zerolog.Logger

	mu      sync.Mutex
	running bool
	run     *monitorRun

	resultsMu sync.RWMutex
	last      map[string]health.Status
	lastRound time.Time
}

// monitorRun is the state of one StartMonitoring..StopMonitoring span
type monitorRun struct {
	cancel    context.CancelFunc
	done      chan struct{}
	notifying atomic.Bool
}

// NewHealthMonitor creates a stopped monitor
func NewHealthMonitor(checker HealthChecker, opts ...MonitorOption) *HealthMonitor {
	m := &HealthMonitor{
		checker:  checker,
		clock:    clock.New(),
		interval: DefaultMonitorInterval,
		logger:   log.WithComponent("health-monitor"),
		last:     make(map[string]health.Status),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartMonitoring starts the round loop. Calling it while running does
// nothing.
func (m *HealthMonitor) StartMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &monitorRun{cancel: cancel, done: make(chan struct{})}
	m.running = true
	m.run = run

	ticker := m.clock.Ticker(m.interval)
	go m.loop(ctx, ticker, run)

	m.logger.Info().Dur("interval", m.interval).Msg("health monitoring started")
}

// StopMonitoring stops the loop, cancelling an in-flight round, and waits
// for it to exit. Calling it while stopped does nothing.
//
// While the listeners of a round are running it does not wait: the loop
// exits as soon as they return. A listener can therefore stop its own
// monitor.
func (m *HealthMonitor) StopMonitoring() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	run := m.run
	m.run = nil
	run.cancel()
	m.mu.Unlock()

	if run.notifying.Load() {
		m.logger.Info().Msg("health monitoring stopping")
		return
	}
	<-run.done
	m.logger.Info().Msg("health monitoring stopped")
}

// IsMonitoring reports whether the loop is running
func (m *HealthMonitor) IsMonitoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *HealthMonitor) loop(ctx context.Context, ticker *clock.Ticker, run *monitorRun) {
	defer close(run.done)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.round(ctx, run)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll runs one round now and returns its results. A round cut short
// by ctx is returned but not recorded or reported to listeners.
func (m *HealthMonitor) CheckAll(ctx context.Context) map[string]health.Status {
	return m.round(ctx, nil)
}

// round runs one health round. run is set for rounds driven by the loop.
func (m *HealthMonitor) round(ctx context.Context, run *monitorRun) map[string]health.Status {
	results := m.checker.HealthCheckAll(ctx)
	if ctx.Err() != nil {
		return results
	}

	metrics.HealthChecksTotal.Inc()

	m.resultsMu.Lock()
	m.last = make(map[string]health.Status, len(results))
	for name, status := range results {
		m.last[name] = status
	}
	m.lastRound = m.clock.Now()
	m.resultsMu.Unlock()

	if unhealthy := unhealthyNames(results); len(unhealthy) > 0 {
		m.logger.Warn().Strs("components", unhealthy).Msg("unhealthy components")
	}
	if run != nil {
		run.notifying.Store(true)
		defer run.notifying.Store(false)
	}
	for _, l := range m.listeners {
		l(copyResults(results))
	}
	return results
}

// LastResults returns the results of the last recorded round
func (m *HealthMonitor) LastResults() map[string]health.Status {
	m.resultsMu.RLock()
	defer m.resultsMu.RUnlock()
	return copyResults(m.last)
}

// LastRound returns when the last round was recorded
func (m *HealthMonitor) LastRound() time.Time {
	m.resultsMu.RLock()
	defer m.resultsMu.RUnlock()
	return m.lastRound
}

// Unhealthy returns the unhealthy components of the last round, sorted
func (m *HealthMonitor) Unhealthy() []string {
	return unhealthyNames(m.LastResults())
}

func unhealthyNames(results map[string]health.Status) []string {
	var out []string
	for name, status := range results {
		if status == health.StatusUnhealthy {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func copyResults(in map[string]health.Status) map[string]health.Status {
	out := make(map[string]health.Status, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
