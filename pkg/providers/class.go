package providers

import (
	"fmt"
	"reflect"
	"sync"
)

// ClassProvider calls a constructor function with arguments bound from
// explicitly declared dependencies. params[i] supplies the constructor's
// i-th parameter. Nothing is inferred from the constructor: declarations
// are checked against its signature when the provider is built.
type ClassProvider struct {
	base
	ctor      reflect.Value
	ctorType  reflect.Type
	lifecycle Lifecycle

	mu       sync.Mutex
	instance any
	created  bool
}

// NewClassProvider creates a class provider. constructor must be a
// non-variadic function returning (T) or (T, error) with exactly
// len(params) parameters. lifecycle is LifecycleSingleton or LifecycleFactory.
func NewClassProvider(name string, constructor any, lifecycle Lifecycle, params ...Dependency) (*ClassProvider, error) {
	if lifecycle != LifecycleSingleton && lifecycle != LifecycleFactory {
		return nil, fmt.Errorf("class %s: unsupported lifecycle %q", name, lifecycle)
	}

	v := reflect.ValueOf(constructor)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, fmt.Errorf("class %s: constructor is %T, not a function", name, constructor)
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("class %s: variadic constructors are not supported", name)
	}
	if t.NumIn() != len(params) {
		return nil, fmt.Errorf("class %s: constructor takes %d parameters, %d declared", name, t.NumIn(), len(params))
	}
	switch {
	case t.NumOut() == 1:
	case t.NumOut() == 2 && t.Out(1) == errorType:
	default:
		return nil, fmt.Errorf("class %s: constructor must return (T) or (T, error)", name)
	}

	deps := make([]Dependency, len(params))
	for i, p := range params {
		in := t.In(i)
		if p.Type == nil {
			p.Type = in
		} else if !p.Type.AssignableTo(in) {
			return nil, fmt.Errorf("class %s: parameter %d declared as %s, constructor takes %s", name, i, p.Type, in)
		}
		if p.Default != nil && !reflect.TypeOf(p.Default).AssignableTo(in) {
			return nil, fmt.Errorf("class %s: default for %s is %T, constructor takes %s", name, p.Name, p.Default, in)
		}
		deps[i] = p
	}

	return &ClassProvider{
		base:      base{name: name, deps: deps},
		ctor:      v,
		ctorType:  t,
		lifecycle: lifecycle,
	}, nil
}

// WithCleanup sets the dispose hook for constructed instances
func (p *ClassProvider) WithCleanup(fn func(any)) *ClassProvider {
	p.cleanup = fn
	return p
}

// Lifecycle returns the lifecycle the provider was built for
func (p *ClassProvider) Lifecycle() Lifecycle {
	return p.lifecycle
}

// Create constructs an instance. Singleton class providers cache it.
func (p *ClassProvider) Create(res Resolver, overrides Args) (any, error) {
	if p.lifecycle == LifecycleSingleton {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.created {
			return p.instance, nil
		}
	}

	args, err := resolveArgs(p.name, p.deps, res, overrides)
	if err != nil {
		return nil, err
	}

	in := make([]reflect.Value, len(p.deps))
	for i, d := range p.deps {
		v, ok := args[d.Name]
		if !ok || v == nil {
			in[i] = reflect.Zero(p.ctorType.In(i))
			continue
		}
		in[i] = reflect.ValueOf(v)
	}

	out := p.ctor.Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	instance := out[0].Interface()

	if p.lifecycle == LifecycleSingleton {
		p.instance = instance
		p.created = true
	}
	return instance, nil
}

// Reset drops a cached singleton instance and runs the cleanup hook on it
func (p *ClassProvider) Reset() {
	p.mu.Lock()
	instance, created := p.instance, p.created
	p.instance, p.created = nil, false
	p.mu.Unlock()

	if created {
		p.Cleanup(instance)
	}
}
