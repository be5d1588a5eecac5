package providers

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/cuemby/joyride/pkg/log"
	"github.com/cuemby/joyride/pkg/metrics"
	"github.com/rs/zerolog"
)

type providerInfo struct {
	provider  Provider
	lifecycle Lifecycle

	// instances holds factory/prototype instances awaiting cleanup. Only
	// populated for providers with a cleanup hook.
	instances []any
}

// ProviderInfo is a snapshot of one registration
type ProviderInfo struct {
	Name         string
	Lifecycle    Lifecycle
	Dependencies []Dependency

	// Tracked is the number of created instances held for cleanup
	Tracked int
}

// Registry is the dependency container. It maps names to providers and
// resolves names to instances, resolving each provider's own dependencies
// first.
//
// A single mutex guards the registry. Get holds it for the whole
// resolution, including every nested dependency and factory call; nested
// lookups go through the Resolver passed to Provider.Create, which runs
// under the lock already held. Factories must therefore not block, and
// must not call the Registry directly.
type Registry struct {
	mu        sync.Mutex
	providers map[string]*providerInfo
	order     []string
	stack     []string
	logger    zerolog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*providerInfo),
		logger:    log.WithComponent("providers"),
	}
}

// Register adds a provider under its own name
func (r *Registry) Register(p Provider, lifecycle Lifecycle) error {
	if p == nil || p.Name() == "" {
		return errors.New("provider must have a name")
	}
	if !lifecycle.valid() {
		return fmt.Errorf("provider %s: unknown lifecycle %q", p.Name(), lifecycle)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.providers[name]; exists {
		return &DuplicateProviderError{Name: name}
	}

	r.providers[name] = &providerInfo{provider: p, lifecycle: lifecycle}
	r.order = append(r.order, name)
	metrics.ProvidersRegistered.Set(float64(len(r.providers)))

	r.logger.Debug().
		Str("provider", name).
		Str("lifecycle", string(lifecycle)).
		Int("dependencies", len(p.Dependencies())).
		Msg("provider registered")
	return nil
}

// RegisterSingleton registers a lazily-built singleton
func (r *Registry) RegisterSingleton(name string, factory FactoryFunc, deps ...Dependency) (*SingletonProvider, error) {
	p := NewSingletonProvider(name, factory, deps...)
	if err := r.Register(p, LifecycleSingleton); err != nil {
		return nil, err
	}
	return p, nil
}

// RegisterFactory registers a provider that builds a new instance per resolution
func (r *Registry) RegisterFactory(name string, factory FactoryFunc, deps ...Dependency) (*FactoryProvider, error) {
	p := NewFactoryProvider(name, factory, deps...)
	if err := r.Register(p, LifecycleFactory); err != nil {
		return nil, err
	}
	return p, nil
}

// RegisterPrototype registers a provider cloning template on every resolution
func (r *Registry) RegisterPrototype(name string, template any, opts ...PrototypeOption) (*PrototypeProvider, error) {
	p, err := NewPrototypeProvider(name, template, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Register(p, LifecyclePrototype); err != nil {
		return nil, err
	}
	return p, nil
}

// RegisterClass registers a constructor with explicitly declared parameters
func (r *Registry) RegisterClass(name string, constructor any, lifecycle Lifecycle, params ...Dependency) (*ClassProvider, error) {
	p, err := NewClassProvider(name, constructor, lifecycle, params...)
	if err != nil {
		return nil, err
	}
	if err := r.Register(p, lifecycle); err != nil {
		return nil, err
	}
	return p, nil
}

// RegisterInstance registers an already-built value as a singleton
func (r *Registry) RegisterInstance(name string, instance any) error {
	_, err := r.RegisterSingleton(name, func(Args) (any, error) {
		return instance, nil
	})
	return err
}

// Get resolves name to an instance
func (r *Registry) Get(name string) (any, error) {
	return r.GetWith(name, nil)
}

// GetWith resolves name, using overrides in place of the named dependencies
// of the requested provider. Nested dependencies are resolved without
// overrides.
func (r *Registry) GetWith(name string, overrides Args) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(name, overrides)
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.providers[name]
	return ok
}

// resolve must be called with r.mu held
func (r *Registry) resolve(name string, overrides Args) (any, error) {
	info, ok := r.providers[name]
	if !ok {
		metrics.ProviderResolutions.WithLabelValues(name, "not_registered").Inc()
		return nil, &DependencyResolutionError{Provider: name, Err: &NotRegisteredError{Name: name}}
	}

	for i, n := range r.stack {
		if n == name {
			cycle := make([]string, 0, len(r.stack)-i+1)
			cycle = append(cycle, r.stack[i:]...)
			cycle = append(cycle, name)
			metrics.ProviderResolutions.WithLabelValues(name, "cycle").Inc()
			return nil, &CircularDependencyError{Cycle: cycle}
		}
	}

	r.stack = append(r.stack, name)
	defer func() {
		r.stack = r.stack[:len(r.stack)-1]
	}()

	instance, err := info.provider.Create(scope{r}, overrides)
	if err != nil {
		metrics.ProviderResolutions.WithLabelValues(name, "error").Inc()
		var cycle *CircularDependencyError
		var resolution *DependencyResolutionError
		if errors.As(err, &cycle) || errors.As(err, &resolution) {
			return nil, err
		}
		return nil, &DependencyResolutionError{Provider: name, Err: err}
	}

	if info.lifecycle != LifecycleSingleton && tracksInstances(info.provider) {
		info.instances = append(info.instances, instance)
	}
	metrics.ProviderResolutions.WithLabelValues(name, "ok").Inc()
	return instance, nil
}

// Unregister removes a provider, disposing of every instance still tracked
// for it and resetting any cached singleton.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	info, ok := r.providers[name]
	if !ok {
		r.mu.Unlock()
		return &NotRegisteredError{Name: name}
	}
	delete(r.providers, name)
	r.order = remove(r.order, name)
	instances := info.instances
	info.instances = nil
	metrics.ProvidersRegistered.Set(float64(len(r.providers)))
	r.mu.Unlock()

	r.dispose(name, info.provider, instances)
	r.logger.Debug().Str("provider", name).Int("disposed", len(instances)).Msg("provider unregistered")
	return nil
}

// Release disposes of one instance obtained from the named provider. For
// singleton providers the cache is reset, so the next Get builds a fresh
// instance.
func (r *Registry) Release(name string, instance any) error {
	r.mu.Lock()
	info, ok := r.providers[name]
	if !ok {
		r.mu.Unlock()
		return &NotRegisteredError{Name: name}
	}
	if i := trackedIndex(info.instances, instance); i >= 0 {
		info.instances = append(info.instances[:i], info.instances[i+1:]...)
	}
	r.mu.Unlock()

	if info.lifecycle == LifecycleSingleton {
		if rs, ok := info.provider.(Resetter); ok {
			rs.Reset()
			return nil
		}
	}
	info.provider.Cleanup(instance)
	return nil
}

// Clear disposes of every tracked instance and empties the registry.
// Providers are disposed in reverse registration order.
func (r *Registry) Clear() {
	r.mu.Lock()
	infos := make([]*providerInfo, 0, len(r.order))
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.providers[name])
		names = append(names, name)
	}
	r.providers = make(map[string]*providerInfo)
	r.order = nil
	metrics.ProvidersRegistered.Set(0)
	r.mu.Unlock()

	for i := len(infos) - 1; i >= 0; i-- {
		instances := infos[i].instances
		infos[i].instances = nil
		r.dispose(names[i], infos[i].provider, instances)
	}
}

func (r *Registry) dispose(name string, p Provider, instances []any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("provider", name).Interface("panic", rec).Msg("cleanup hook panicked")
		}
	}()

	for _, instance := range instances {
		p.Cleanup(instance)
	}
	if rs, ok := p.(Resetter); ok {
		rs.Reset()
	}
}

// ValidateDependencies reports, without failing, every required dependency
// that is not registered. One message per missing dependency.
func (r *Registry) ValidateDependencies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var problems []string
	for _, name := range r.order {
		for _, d := range r.providers[name].provider.Dependencies() {
			if !d.Required {
				continue
			}
			if _, ok := r.providers[d.Name]; !ok {
				problems = append(problems, fmt.Sprintf("provider %s: required dependency %s is not registered", name, d.Name))
			}
		}
	}
	return problems
}

// DependencyGraph returns each provider's registered dependencies.
// Unregistered dependencies are left out.
func (r *Registry) DependencyGraph() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string][]string, len(r.providers))
	for _, name := range r.order {
		deps := []string{}
		for _, d := range r.providers[name].provider.Dependencies() {
			if _, ok := r.providers[d.Name]; ok {
				deps = append(deps, d.Name)
			}
		}
		out[name] = deps
	}
	return out
}

// CanCreate reports whether the named provider has all required
// dependencies registered
func (r *Registry) CanCreate(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.providers[name]
	if !ok {
		return false
	}
	return info.provider.CanCreate(scope{r})
}

// Info returns a snapshot of one registration
func (r *Registry) Info(name string) (ProviderInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.providers[name]
	if !ok {
		return ProviderInfo{}, false
	}
	return ProviderInfo{
		Name:         name,
		Lifecycle:    info.lifecycle,
		Dependencies: info.provider.Dependencies(),
		Tracked:      len(info.instances),
	}, true
}

// Names returns registered names in registration order
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered providers
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.providers)
}

// scope is the Resolver handed to providers during a resolution. It runs
// with the registry lock already held.
type scope struct {
	r *Registry
}

func (s scope) Get(name string) (any, error) {
	return s.r.resolve(name, nil)
}

func (s scope) GetWith(name string, overrides Args) (any, error) {
	return s.r.resolve(name, overrides)
}

func (s scope) Has(name string) bool {
	_, ok := s.r.providers[name]
	return ok
}

// Resolve resolves name and asserts the instance to T
func Resolve[T any](res Resolver, name string) (T, error) {
	var zero T
	v, err := res.Get(name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &DependencyResolutionError{
			Provider: name,
			Err:      fmt.Errorf("instance is %T, not %s", v, reflect.TypeOf((*T)(nil)).Elem()),
		}
	}
	return t, nil
}

// MustResolve is Resolve that panics on error. Intended for wiring code
// where a missing provider is a programming error.
func MustResolve[T any](res Resolver, name string) T {
	v, err := Resolve[T](res, name)
	if err != nil {
		panic(err)
	}
	return v
}

// trackedIndex finds instance among tracked instances. Identity wins; values
// that cannot be compared with == (structs holding slices or maps) fall back
// to deep equality.
func trackedIndex(tracked []any, instance any) int {
	for i, t := range tracked {
		if sameInstance(t, instance) {
			return i
		}
	}
	for i, t := range tracked {
		if reflect.DeepEqual(t, instance) {
			return i
		}
	}
	return -1
}

func remove(list []string, name string) []string {
	for i, n := range list {
		if n == name {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
