package providers

// FactoryProvider builds a new instance on every resolution
type FactoryProvider struct {
	base
	factory FactoryFunc
}

// NewFactoryProvider creates a factory provider
func NewFactoryProvider(name string, factory FactoryFunc, deps ...Dependency) *FactoryProvider {
	return &FactoryProvider{
		base:    base{name: name, deps: deps},
		factory: factory,
	}
}

// WithCleanup sets the dispose hook. Without one, the registry does not keep
// references to created instances.
func (p *FactoryProvider) WithCleanup(fn func(any)) *FactoryProvider {
	p.cleanup = fn
	return p
}

// Create resolves dependencies and calls the factory
func (p *FactoryProvider) Create(res Resolver, overrides Args) (any, error) {
	if p.factory == nil {
		return nil, errNoFactory(p.name)
	}
	args, err := resolveArgs(p.name, p.deps, res, overrides)
	if err != nil {
		return nil, err
	}
	return p.factory(args)
}
