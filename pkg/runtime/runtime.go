package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/joyride/pkg/api"
	"github.com/cuemby/joyride/pkg/config"
	"github.com/cuemby/joyride/pkg/dns"
	"github.com/cuemby/joyride/pkg/events"
	"github.com/cuemby/joyride/pkg/health"
	"github.com/cuemby/joyride/pkg/hosts"
	"github.com/cuemby/joyride/pkg/lifecycle"
	"github.com/cuemby/joyride/pkg/log"
	"github.com/cuemby/joyride/pkg/metrics"
	"github.com/cuemby/joyride/pkg/providers"
	"github.com/cuemby/joyride/pkg/records"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// EventSource is the source of events published by the runtime
const EventSource = "runtime"

// Component and provider names
const (
	ComponentRecords = "records"
	ComponentDNS     = "dns"
	ComponentHosts   = "hosts"
	ComponentAPI     = "api"
)

// Runtime owns the container, the orchestrator, the event bus and the
// health monitor of one joyride process
type Runtime struct {
	cfg          *config.Config
	version      string
	container    *providers.Registry
	orchestrator *lifecycle.Orchestrator
	bus          *events.Bus
	monitor      *lifecycle.HealthMonitor
	collector    *metrics.Collector
	logger       zerolog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	trace   *events.Subscription

	// healthMu guards previous, the statuses of the last monitor round
	healthMu sync.Mutex
	previous map[string]health.Status
}

// Option configures a Runtime
type Option func(*Runtime)

// WithVersion sets the version reported by the status API
func WithVersion(version string) Option {
	return func(r *Runtime) {
		r.version = version
	}
}

// WithMonitorOptions passes options to the health monitor
func WithMonitorOptions(opts ...lifecycle.MonitorOption) Option {
	return func(r *Runtime) {
		r.monitor = lifecycle.NewHealthMonitor(r.orchestrator, append(r.monitorDefaults(), opts...)...)
	}
}

// New assembles a runtime from cfg. Nothing is started.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	r := &Runtime{
		cfg:       cfg,
		container: providers.NewRegistry(),
		bus:       events.NewBus(),
		logger:    log.WithComponent("runtime"),
		previous:  make(map[string]health.Status),
	}
	r.orchestrator = lifecycle.NewOrchestrator(lifecycle.Config{
		StartupTimeout:         cfg.Lifecycle.StartupTimeout,
		ShutdownTimeout:        cfg.Lifecycle.ShutdownTimeout,
		HealthCheckTimeout:     cfg.Lifecycle.HealthCheckTimeout,
		HealthCheckConcurrency: cfg.Lifecycle.HealthCheckConcurrency,
	})
	r.monitor = lifecycle.NewHealthMonitor(r.orchestrator, r.monitorDefaults()...)
	r.collector = metrics.NewCollector(r.orchestrator, lifecycle.StateNames()).
		WithInterval(cfg.Lifecycle.MetricsInterval)

	for _, opt := range opts {
		opt(r)
	}

	if err := r.registerProviders(); err != nil {
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}
	if err := r.registerComponents(); err != nil {
		return nil, fmt.Errorf("failed to register components: %w", err)
	}
	return r, nil
}

func (r *Runtime) monitorDefaults() []lifecycle.MonitorOption {
	opts := []lifecycle.MonitorOption{lifecycle.WithListener(r.onHealth)}
	if r.cfg.Lifecycle.HealthCheckInterval > 0 {
		opts = append(opts, lifecycle.WithInterval(r.cfg.Lifecycle.HealthCheckInterval))
	}
	return opts
}

// registerProviders declares every service in the container. Components
// are built lazily when the orchestrator starts them.
func (r *Runtime) registerProviders() error {
	instances := []struct {
		name     string
		instance any
	}{
		{"config", r.cfg},
		{"bus", r.bus},
		{"orchestrator", r.orchestrator},
		{"monitor", r.monitor},
		{"records-config", r.cfg.Records},
		{"dns-config", r.cfg.DNS},
		{"hosts-config", r.cfg.Hosts},
		{"api-config", r.cfg.API},
	}
	for _, i := range instances {
		if err := r.container.RegisterInstance(i.name, i.instance); err != nil {
			return err
		}
	}

	if _, err := r.container.RegisterClass(ComponentRecords, records.NewTable, providers.LifecycleSingleton,
		providers.Require("bus"),
		providers.Optional("records-config", config.RecordsConfig{}),
	); err != nil {
		return err
	}
	if _, err := r.container.RegisterClass(ComponentDNS, dns.NewServer, providers.LifecycleSingleton,
		providers.Require(ComponentRecords),
		providers.Require("dns-config"),
	); err != nil {
		return err
	}
	if _, err := r.container.RegisterClass(ComponentHosts, hosts.NewWatcher, providers.LifecycleSingleton,
		providers.Require("bus"),
		providers.Require("hosts-config"),
	); err != nil {
		return err
	}
	_, err := r.container.RegisterSingleton(ComponentAPI, func(args providers.Args) (any, error) {
		cfg, _ := providers.Arg[config.APIConfig](args, "api-config")
		table, _ := providers.Arg[*records.Table](args, ComponentRecords)
		orchestrator, _ := providers.Arg[*lifecycle.Orchestrator](args, "orchestrator")
		monitor, _ := providers.Arg[*lifecycle.HealthMonitor](args, "monitor")

		return api.NewServer(cfg, api.Sources{
			Components: orchestrator,
			Health:     monitor,
			Records:    table,
			Version:    r.version,
		}), nil
	},
		providers.RequireType[config.APIConfig]("api-config"),
		providers.RequireType[*records.Table](ComponentRecords),
		providers.RequireType[*lifecycle.Orchestrator]("orchestrator"),
		providers.RequireType[*lifecycle.HealthMonitor]("monitor"),
	)
	return err
}

// registerComponents adds the enabled components to the orchestrator. The
// record table always runs; everything else depends on it.
func (r *Runtime) registerComponents() error {
	enabled := []struct {
		name string
		on   bool
	}{
		{ComponentRecords, true},
		{ComponentDNS, r.cfg.DNS.Enabled},
		{ComponentHosts, r.cfg.Hosts.Enabled},
		{ComponentAPI, r.cfg.API.Enabled},
	}

	for _, c := range enabled {
		if !c.on {
			r.logger.Debug().Str("name", c.name).Msg("component disabled")
			continue
		}
		if err := r.orchestrator.Register(lifecycle.NewProviderComponent(c.name, r.container, c.name)); err != nil {
			return err
		}
		if c.name != ComponentRecords {
			if err := r.orchestrator.AddDependency(c.name, ComponentRecords); err != nil {
				return err
			}
		}
	}
	return nil
}

// Start starts every component in dependency order, then runs a first
// health round and starts the monitor and the metrics collector. A failed
// start leaves the started components running; call Stop to unwind them.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return fmt.Errorf("runtime already stopped")
	}
	if r.started {
		return nil
	}

	if r.cfg.Events.Trace && r.trace == nil {
		sub, err := r.bus.SubscribeFunc(r.traceEvent, events.ByPattern("*"))
		if err != nil {
			return fmt.Errorf("failed to subscribe event trace: %w", err)
		}
		r.trace = sub
	}

	order, err := r.orchestrator.StartupOrder()
	if err != nil {
		return err
	}
	if err := r.orchestrator.StartAll(ctx); err != nil {
		return err
	}
	r.started = true

	r.monitor.CheckAll(ctx)
	r.monitor.StartMonitoring()
	r.collector.Start()

	r.publish(events.EventSystemStarted, map[string]any{"components": order})
	r.logger.Info().Int("components", len(order)).Msg("runtime started")
	return nil
}

// Stop stops the monitor and every component in reverse dependency order,
// then disposes the container and shuts the bus down. A stopped runtime
// cannot be started again.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return nil
	}
	r.stopped = true

	r.publish(events.EventSystemStopping, nil)

	r.monitor.StopMonitoring()
	r.collector.Stop()

	err := r.orchestrator.StopAll(ctx)
	r.started = false

	r.container.Clear()
	r.bus.Shutdown()
	r.trace = nil

	if err != nil {
		r.logger.Error().Err(err).Msg("runtime stopped with errors")
		return err
	}
	r.logger.Info().Msg("runtime stopped")
	return nil
}

// Serve starts the runtime, blocks until ctx is done and stops it. The
// stop is bounded by the configured shutdown timeout.
func (r *Runtime) Serve(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), r.cfg.Lifecycle.ShutdownTimeout)
		defer cancel()
		return multierr.Append(err, r.Stop(stopCtx))
	}

	<-ctx.Done()
	r.logger.Info().Msg("shutdown requested")

	stopCtx, cancel := context.WithTimeout(context.Background(), r.cfg.Lifecycle.ShutdownTimeout)
	defer cancel()
	return r.Stop(stopCtx)
}

// Config returns the configuration the runtime was built from
func (r *Runtime) Config() *config.Config {
	return r.cfg
}

// Container returns the dependency container
func (r *Runtime) Container() *providers.Registry {
	return r.container
}

// Orchestrator returns the lifecycle orchestrator
func (r *Runtime) Orchestrator() *lifecycle.Orchestrator {
	return r.orchestrator
}

// Bus returns the event bus
func (r *Runtime) Bus() *events.Bus {
	return r.bus
}

// Monitor returns the health monitor
func (r *Runtime) Monitor() *lifecycle.HealthMonitor {
	return r.monitor
}

// Records returns the running record table, or nil when it is stopped
func (r *Runtime) Records() *records.Table {
	table, _ := r.instance(ComponentRecords).(*records.Table)
	return table
}

// instance returns the live instance behind a provider component
func (r *Runtime) instance(name string) any {
	c, err := r.orchestrator.Registry().Get(name)
	if err != nil {
		return nil
	}
	adapter, ok := c.Impl().(*lifecycle.ProviderAdapter)
	if !ok {
		return nil
	}
	return adapter.Instance()
}

// onHealth publishes health transitions and mirrors the round into the
// gRPC health service
func (r *Runtime) onHealth(results map[string]health.Status) {
	r.healthMu.Lock()
	var unhealthy, recovered []string
	for name, status := range results {
		prev, seen := r.previous[name]
		switch {
		case status == health.StatusUnhealthy && prev != health.StatusUnhealthy:
			unhealthy = append(unhealthy, name)
		case seen && prev == health.StatusUnhealthy && status != health.StatusUnhealthy:
			recovered = append(recovered, name)
		}
	}
	r.previous = results
	r.healthMu.Unlock()

	for _, name := range unhealthy {
		r.publishHealth(events.EventComponentUnhealthy, name, results[name])
	}
	for _, name := range recovered {
		r.publishHealth(events.EventComponentRecovered, name, results[name])
	}

	if server, ok := r.instance(ComponentAPI).(*api.Server); ok {
		server.UpdateHealth(results)
	}
}

func (r *Runtime) publishHealth(eventType events.EventType, name string, status health.Status) {
	event, err := events.NewHealthEvent(eventType, EventSource, name, string(status))
	if err != nil {
		r.logger.Error().Err(err).Str("name", name).Msg("failed to build health event")
		return
	}
	r.bus.Publish(event)
}

func (r *Runtime) publish(eventType events.EventType, data map[string]any) {
	event, err := events.NewEvent(eventType, EventSource, data)
	if err != nil {
		r.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	r.bus.Publish(event)
}

func (r *Runtime) traceEvent(e *events.Event) error {
	logger := log.WithEventType(string(e.Type))
	logger.Debug().
		Str("id", e.ID).
		Str("source", e.Source).
		Interface("data", e.Data).
		Msg("event published")
	return nil
}
