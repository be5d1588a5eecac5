package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/joyride/pkg/health"
	"github.com/cuemby/joyride/pkg/metrics"
)

// Startable is implemented by components with startup work
type Startable interface {
	Start(ctx context.Context) error
}

// Stoppable is implemented by components with shutdown work
type Stoppable interface {
	Stop(ctx context.Context) error
}

// HealthCheckable is implemented by components that can report their health.
// An error counts as unhealthy.
type HealthCheckable interface {
	HealthCheck(ctx context.Context) (health.Status, error)
}

// Component is a named unit managed by the orchestrator. It wraps an
// implementation value and tracks its state, its dependency edges and
// timing information.
type Component struct {
	name string
	impl any

	startable Startable
	stoppable Stoppable
	checker   HealthCheckable

	mu               sync.Mutex
	state            State
	dependencies     map[string]struct{}
	dependents       map[string]struct{}
	metadata         map[string]any
	startupDuration  time.Duration
	shutdownDuration time.Duration
	lastHealthCheck  time.Time
	lastHealth       health.Status
}

// NewComponent wraps impl. Capabilities are detected here, once: impl may
// implement any subset of Startable, Stoppable and HealthCheckable, or none.
func NewComponent(name string, impl any) *Component {
	c := &Component{
		name:         name,
		impl:         impl,
		state:        StateCreated,
		dependencies: make(map[string]struct{}),
		dependents:   make(map[string]struct{}),
		metadata:     make(map[string]any),
		lastHealth:   health.StatusUnknown,
	}
	c.startable, _ = impl.(Startable)
	c.stoppable, _ = impl.(Stoppable)
	c.checker, _ = impl.(HealthCheckable)
	return c
}

// Name returns the component name
func (c *Component) Name() string {
	return c.name
}

// Impl returns the wrapped implementation
func (c *Component) Impl() any {
	return c.impl
}

// State returns the current state
func (c *Component) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Dependencies returns the names this component depends on, sorted
func (c *Component) Dependencies() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedKeys(c.dependencies)
}

// Dependents returns the names depending on this component, sorted
func (c *Component) Dependents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedKeys(c.dependents)
}

// SetMetadata stores a metadata value
func (c *Component) SetMetadata(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

// Metadata returns a metadata value
func (c *Component) Metadata(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.metadata[key]
	return v, ok
}

// Start moves the component to STARTING, runs its Startable capability and
// ends in STARTED or FAILED. The transition is claimed under the component
// lock, so of two concurrent calls only one runs the start function.
//
// If ctx ends first Start returns ctx.Err() and marks the component FAILED;
// the start function keeps running and its result is discarded.
func (c *Component) Start(ctx context.Context) error {
	if err := c.transition(StateStarting); err != nil {
		return err
	}

	start := time.Now()
	_, err := invoke(ctx, func(ctx context.Context) (struct{}, error) {
		if c.startable == nil {
			return struct{}{}, nil
		}
		return struct{}{}, c.startable.Start(ctx)
	})
	took := time.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateFailed
		metrics.ComponentFailures.WithLabelValues(c.name, "start").Inc()
		return err
	}
	c.state = StateStarted
	c.startupDuration = took
	metrics.ComponentStartupDuration.WithLabelValues(c.name).Observe(took.Seconds())
	return nil
}

// Stop moves the component to STOPPING, runs its Stoppable capability and
// ends in STOPPED or FAILED. Timeouts behave as in Start.
func (c *Component) Stop(ctx context.Context) error {
	if err := c.transition(StateStopping); err != nil {
		return err
	}

	start := time.Now()
	_, err := invoke(ctx, func(ctx context.Context) (struct{}, error) {
		if c.stoppable == nil {
			return struct{}{}, nil
		}
		return struct{}{}, c.stoppable.Stop(ctx)
	})
	took := time.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateFailed
		metrics.ComponentFailures.WithLabelValues(c.name, "stop").Inc()
		return err
	}
	c.state = StateStopped
	c.shutdownDuration = took
	metrics.ComponentShutdownDuration.WithLabelValues(c.name).Observe(took.Seconds())
	return nil
}

// HealthCheck runs the HealthCheckable capability. It never fails: errors,
// panics and an expired ctx report unhealthy, and a component without the
// capability reports unknown.
func (c *Component) HealthCheck(ctx context.Context) health.Status {
	status := health.StatusUnknown
	if c.checker != nil {
		s, err := invoke(ctx, c.checker.HealthCheck)
		switch {
		case err != nil:
			status = health.StatusUnhealthy
		case s == "":
			status = health.StatusUnknown
		default:
			status = s
		}
	}

	c.mu.Lock()
	c.lastHealthCheck = time.Now()
	c.lastHealth = status
	c.mu.Unlock()

	metrics.SetOneHot(metrics.ComponentHealth, c.name, string(status), health.Statuses())
	return status
}

func (c *Component) transition(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.CanTransitionTo(to) {
		return &InvalidStateTransitionError{Component: c.name, From: c.state, To: to}
	}
	c.state = to
	return nil
}

func (c *Component) addDependency(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dependencies[name] = struct{}{}
}

func (c *Component) addDependent(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dependents[name] = struct{}{}
}

func (c *Component) removeEdges(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.dependencies, name)
	delete(c.dependents, name)
}

// ComponentStatus is a point-in-time view of a component
type ComponentStatus struct {
	Name             string         `json:"name"`
	State            State          `json:"state"`
	Dependencies     []string       `json:"dependencies"`
	Dependents       []string       `json:"dependents"`
	StartupDuration  time.Duration  `json:"startup_duration"`
	ShutdownDuration time.Duration  `json:"shutdown_duration"`
	LastHealthCheck  time.Time      `json:"last_health_check,omitzero"`
	Health           health.Status  `json:"health"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Status returns a snapshot of the component
func (c *Component) Status() ComponentStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	md := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		md[k] = v
	}
	return ComponentStatus{
		Name:             c.name,
		State:            c.state,
		Dependencies:     sortedKeys(c.dependencies),
		Dependents:       sortedKeys(c.dependents),
		StartupDuration:  c.startupDuration,
		ShutdownDuration: c.shutdownDuration,
		LastHealthCheck:  c.lastHealthCheck,
		Health:           c.lastHealth,
		Metadata:         md,
	}
}

func (c *Component) String() string {
	return fmt.Sprintf("Component(%s, %s)", c.name, c.State())
}

// invoke runs fn on its own goroutine and waits for it or for ctx. A panic
// in fn becomes an error. When ctx ends first the result is dropped; the
// channel is buffered so fn's goroutine still exits.
func invoke[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		var o outcome
		defer func() {
			if r := recover(); r != nil {
				o.err = fmt.Errorf("panic: %v", r)
			}
			done <- o
		}()
		o.val, o.err = fn(ctx)
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
