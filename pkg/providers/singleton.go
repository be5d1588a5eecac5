package providers

import "sync"

// SingletonProvider creates its instance on first use and returns the cached
// instance afterwards. Overrides only affect the first creation.
type SingletonProvider struct {
	base
	factory FactoryFunc

	mu       sync.Mutex
	instance any
	created  bool
}

// NewSingletonProvider creates a lazily-initialized singleton provider
func NewSingletonProvider(name string, factory FactoryFunc, deps ...Dependency) *SingletonProvider {
	return &SingletonProvider{
		base:    base{name: name, deps: deps},
		factory: factory,
	}
}

// WithCleanup sets the hook run on the cached instance by Reset
func (p *SingletonProvider) WithCleanup(fn func(any)) *SingletonProvider {
	p.cleanup = fn
	return p
}

// Create returns the cached instance, building it on first call
func (p *SingletonProvider) Create(res Resolver, overrides Args) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.created {
		return p.instance, nil
	}
	if p.factory == nil {
		return nil, errNoFactory(p.name)
	}

	args, err := resolveArgs(p.name, p.deps, res, overrides)
	if err != nil {
		return nil, err
	}
	instance, err := p.factory(args)
	if err != nil {
		return nil, err
	}

	p.instance = instance
	p.created = true
	return instance, nil
}

// Created reports whether the instance has been built
func (p *SingletonProvider) Created() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// Reset drops the cached instance, running the cleanup hook on it. The next
// Create builds a fresh instance.
func (p *SingletonProvider) Reset() {
	p.mu.Lock()
	instance, created := p.instance, p.created
	p.instance, p.created = nil, false
	p.mu.Unlock()

	if created {
		p.Cleanup(instance)
	}
}
