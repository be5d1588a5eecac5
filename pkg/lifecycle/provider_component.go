package lifecycle

import (
	"context"
	"sync"

	"github.com/cuemby/joyride/pkg/health"
	"go.uber.org/multierr"
)

// Container is the part of the dependency container a ProviderAdapter uses.
// *providers.Registry implements it.
type Container interface {
	Get(name string) (any, error)
	Release(name string, instance any) error
}

// ProviderAdapter runs a container-provided instance as a component. Start
// resolves the provider and forwards to the instance's capabilities; Stop
// forwards, then releases the instance back to the container.
type ProviderAdapter struct {
	container Container
	provider  string

	mu       sync.Mutex
	instance any
}

// NewProviderAdapter creates an adapter for provider
func NewProviderAdapter(container Container, provider string) *ProviderAdapter {
	return &ProviderAdapter{container: container, provider: provider}
}

// NewProviderComponent wraps provider as a component named name
func NewProviderComponent(name string, container Container, provider string) *Component {
	c := NewComponent(name, NewProviderAdapter(container, provider))
	c.SetMetadata("provider", provider)
	return c
}

// Instance returns the live instance, or nil when stopped
func (a *ProviderAdapter) Instance() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.instance
}

// Start resolves the instance and starts it if it is Startable. A failed
// start keeps the instance so a later Stop can release it.
func (a *ProviderAdapter) Start(ctx context.Context) error {
	inst, err := a.container.Get(a.provider)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.instance = inst
	a.mu.Unlock()

	if s, ok := inst.(Startable); ok {
		return s.Start(ctx)
	}
	return nil
}

// Stop stops the instance if it is Stoppable, releases it and drops the
// reference. Release runs even when stopping fails.
func (a *ProviderAdapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	inst := a.instance
	a.instance = nil
	a.mu.Unlock()

	if inst == nil {
		return nil
	}

	var err error
	if s, ok := inst.(Stoppable); ok {
		err = s.Stop(ctx)
	}
	return multierr.Append(err, a.container.Release(a.provider, inst))
}

// HealthCheck reports unhealthy without an instance, forwards to a
// HealthCheckable instance, and reports healthy otherwise.
func (a *ProviderAdapter) HealthCheck(ctx context.Context) (health.Status, error) {
	inst := a.Instance()
	if inst == nil {
		return health.StatusUnhealthy, nil
	}
	if h, ok := inst.(HealthCheckable); ok {
		return h.HealthCheck(ctx)
	}
	return health.StatusHealthy, nil
}
