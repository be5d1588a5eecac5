package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cuemby/joyride/pkg/health"
	"github.com/cuemby/joyride/pkg/log"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config bounds every call the orchestrator makes into a component
type Config struct {
	StartupTimeout         time.Duration
	ShutdownTimeout        time.Duration
	HealthCheckTimeout     time.Duration
	HealthCheckConcurrency int
}

// DefaultConfig returns the default timeouts
func DefaultConfig() Config {
	return Config{
		StartupTimeout:         30 * time.Second,
		ShutdownTimeout:        30 * time.Second,
		HealthCheckTimeout:     5 * time.Second,
		HealthCheckConcurrency: 8,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = def.StartupTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.HealthCheckTimeout <= 0 {
		c.HealthCheckTimeout = def.HealthCheckTimeout
	}
	if c.HealthCheckConcurrency <= 0 {
		c.HealthCheckConcurrency = def.HealthCheckConcurrency
	}
	return c
}

// Orchestrator starts and stops components in dependency order and runs
// their health checks.
type Orchestrator struct {
	registry *Registry
	config   Config
	logger   zerolog.Logger
}

// NewOrchestrator creates an orchestrator with an empty registry. Zero
// fields in cfg take their defaults.
func NewOrchestrator(cfg Config) *Orchestrator {
	return &Orchestrator{
		registry: NewRegistry(),
		config:   cfg.withDefaults(),
		logger:   log.WithComponent("lifecycle"),
	}
}

// Registry returns the component registry
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Config returns the effective configuration
func (o *Orchestrator) Config() Config {
	return o.config
}

// Register adds a component
func (o *Orchestrator) Register(c *Component) error {
	return o.registry.Register(c)
}

// Unregister removes a component that is not running
func (o *Orchestrator) Unregister(name string) error {
	_, err := o.registry.Unregister(name)
	return err
}

// AddDependency records that component depends on dependency
func (o *Orchestrator) AddDependency(component, dependency string) error {
	if err := o.registry.AddDependency(component, dependency); err != nil {
		return err
	}
	o.logger.Debug().
		Str("name", component).
		Str("dependency", dependency).
		Msg("dependency added")
	return nil
}

// StartupOrder returns every component with dependencies before dependents.
// Ties follow registration order.
func (o *Orchestrator) StartupOrder() ([]string, error) {
	return o.registry.Graph().TopologicalSort()
}

// ShutdownOrder is the reverse of StartupOrder
func (o *Orchestrator) ShutdownOrder() ([]string, error) {
	order, err := o.StartupOrder()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// StartAll starts every CREATED or STOPPED component in startup order. It
// stops at the first failure and leaves already started components running.
func (o *Orchestrator) StartAll(ctx context.Context) error {
	order, err := o.StartupOrder()
	if err != nil {
		return err
	}

	o.logger.Info().Strs("order", order).Msg("starting components")
	return o.startSequence(ctx, order, State.startable)
}

// StopAll stops every STARTED or FAILED component in shutdown order. Every
// component is attempted; failures are returned together as a
// ShutdownFailureError.
func (o *Orchestrator) StopAll(ctx context.Context) error {
	order, err := o.ShutdownOrder()
	if err != nil {
		return err
	}

	o.logger.Info().Strs("order", order).Msg("stopping components")
	return o.stopSequence(ctx, order)
}

// StartComponent starts name after any of its transitive dependencies that
// are not running. FAILED members are restarted too.
func (o *Orchestrator) StartComponent(ctx context.Context, name string) error {
	if _, err := o.registry.Get(name); err != nil {
		return err
	}
	order, err := o.StartupOrder()
	if err != nil {
		return err
	}

	closure := o.registry.Graph().TransitiveDependencies(name)
	return o.startSequence(ctx, filter(order, closure), func(s State) bool {
		return s.startable() || s == StateFailed
	})
}

// StopComponent stops name after every running component that depends on
// it, directly or not.
func (o *Orchestrator) StopComponent(ctx context.Context, name string) error {
	if _, err := o.registry.Get(name); err != nil {
		return err
	}
	order, err := o.ShutdownOrder()
	if err != nil {
		return err
	}

	closure := o.registry.Graph().TransitiveDependents(name)
	return o.stopSequence(ctx, filter(order, closure))
}

func (o *Orchestrator) startSequence(ctx context.Context, names []string, eligible func(State) bool) error {
	for _, name := range names {
		c, err := o.registry.Get(name)
		if err != nil {
			// unregistered concurrently
			continue
		}
		if state := c.State(); !eligible(state) {
			o.logger.Debug().Str("name", name).Str("state", string(state)).Msg("skipping start")
			continue
		}
		if err := o.start(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) stopSequence(ctx context.Context, names []string) error {
	failure := &ShutdownFailureError{}
	for _, name := range names {
		c, err := o.registry.Get(name)
		if err != nil {
			continue
		}
		if state := c.State(); !state.stoppable() {
			o.logger.Debug().Str("name", name).Str("state", string(state)).Msg("skipping stop")
			continue
		}
		if err := o.stop(ctx, c); err != nil {
			failure.add(name, err)
		}
	}
	if len(failure.Components) > 0 {
		return failure
	}
	return nil
}

func (o *Orchestrator) start(ctx context.Context, c *Component) error {
	cctx, cancel := context.WithTimeout(ctx, o.config.StartupTimeout)
	defer cancel()

	o.logger.Info().Str("name", c.name).Msg("starting component")
	err := c.Start(cctx)
	if err == nil {
		o.logger.Info().
			Str("name", c.name).
			Dur("took", c.Status().StartupDuration).
			Msg("component started")
		return nil
	}

	o.logger.Error().Err(err).Str("name", c.name).Msg("component failed to start")
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return &StartupTimeoutError{Component: c.name, Timeout: o.config.StartupTimeout}
	}
	return &StartupFailureError{Component: c.name, Err: err}
}

func (o *Orchestrator) stop(ctx context.Context, c *Component) error {
	cctx, cancel := context.WithTimeout(ctx, o.config.ShutdownTimeout)
	defer cancel()

	o.logger.Info().Str("name", c.name).Msg("stopping component")
	err := c.Stop(cctx)
	if err == nil {
		o.logger.Info().
			Str("name", c.name).
			Dur("took", c.Status().ShutdownDuration).
			Msg("component stopped")
		return nil
	}

	o.logger.Error().Err(err).Str("name", c.name).Msg("component failed to stop")
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return &ShutdownTimeoutError{Component: c.name, Timeout: o.config.ShutdownTimeout}
	}
	return &stopError{component: c.name, err: err}
}

// HealthCheckAll checks every component, at most HealthCheckConcurrency at
// a time. It never fails; see Component.HealthCheck.
func (o *Orchestrator) HealthCheckAll(ctx context.Context) map[string]health.Status {
	components := o.registry.Components()
	results := make(map[string]health.Status, len(components))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(o.config.HealthCheckConcurrency)

	for _, c := range components {
		c := c
		g.Go(func() error {
			status := o.check(ctx, c)
			mu.Lock()
			results[c.name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// HealthCheck checks one component
func (o *Orchestrator) HealthCheck(ctx context.Context, name string) (health.Status, error) {
	c, err := o.registry.Get(name)
	if err != nil {
		return health.StatusUnknown, err
	}
	return o.check(ctx, c), nil
}

func (o *Orchestrator) check(ctx context.Context, c *Component) health.Status {
	cctx, cancel := context.WithTimeout(ctx, o.config.HealthCheckTimeout)
	defer cancel()

	status := c.HealthCheck(cctx)
	if status == health.StatusUnhealthy {
		o.logger.Warn().Str("name", c.name).Msg("component unhealthy")
	}
	return status
}

// Status returns a snapshot of every component
func (o *Orchestrator) Status() map[string]ComponentStatus {
	components := o.registry.Components()
	out := make(map[string]ComponentStatus, len(components))
	for _, c := range components {
		out[c.name] = c.Status()
	}
	return out
}

// ComponentStates returns each component's state name
func (o *Orchestrator) ComponentStates() map[string]string {
	components := o.registry.Components()
	out := make(map[string]string, len(components))
	for _, c := range components {
		out[c.name] = string(c.State())
	}
	return out
}

func filter(order []string, keep map[string]bool) []string {
	out := make([]string, 0, len(keep))
	for _, n := range order {
		if keep[n] {
			out = append(out, n)
		}
	}
	return out
}
