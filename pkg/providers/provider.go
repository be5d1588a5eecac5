package providers

import (
	"fmt"
	"reflect"
)

// Lifecycle is the lifetime policy a provider is registered under
type Lifecycle string

const (
	// LifecycleSingleton providers create one instance per registration
	LifecycleSingleton Lifecycle = "singleton"

	// LifecycleFactory providers create a new instance on every resolution
	LifecycleFactory Lifecycle = "factory"

	// LifecyclePrototype providers clone a template on every resolution
	LifecyclePrototype Lifecycle = "prototype"
)

func (l Lifecycle) valid() bool {
	switch l {
	case LifecycleSingleton, LifecycleFactory, LifecyclePrototype:
		return true
	}
	return false
}

// Args carries resolved dependencies and overrides into a factory, keyed by
// dependency name.
type Args map[string]any

// Arg returns the named argument converted to T
func Arg[T any](args Args, name string) (T, bool) {
	v, ok := args[name].(T)
	return v, ok
}

// Resolver resolves names to instances. Providers receive one in Create and
// must resolve their own dependencies through it.
type Resolver interface {
	Get(name string) (any, error)
	GetWith(name string, overrides Args) (any, error)
	Has(name string) bool
}

// Provider knows how to produce instances for one registered name
type Provider interface {
	Name() string
	Create(res Resolver, overrides Args) (any, error)
	CanCreate(res Resolver) bool
	Dependencies() []Dependency

	// Cleanup disposes of an instance this provider created
	Cleanup(instance any)
}

// Resetter is implemented by providers that cache instances
type Resetter interface {
	Reset()
}

// FactoryFunc builds an instance from its resolved arguments
type FactoryFunc func(args Args) (any, error)

type cleanupAware interface {
	HasCleanup() bool
}

// tracksInstances reports whether the registry should keep created
// instances for later cleanup. Providers built in this package are only
// tracked when a cleanup hook is set.
func tracksInstances(p Provider) bool {
	if ca, ok := p.(cleanupAware); ok {
		return ca.HasCleanup()
	}
	return true
}

type base struct {
	name    string
	deps    []Dependency
	cleanup func(any)
}

func (b *base) Name() string {
	return b.name
}

func (b *base) Dependencies() []Dependency {
	out := make([]Dependency, len(b.deps))
	copy(out, b.deps)
	return out
}

// CanCreate reports whether every required dependency is registered
func (b *base) CanCreate(res Resolver) bool {
	for _, d := range b.deps {
		if d.Required && !res.Has(d.Name) {
			return false
		}
	}
	return true
}

func (b *base) Cleanup(instance any) {
	if b.cleanup != nil && instance != nil {
		b.cleanup(instance)
	}
}

func (b *base) HasCleanup() bool {
	return b.cleanup != nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// sameReference reports whether two values share the same underlying
// reference. Values without reference semantics are never the same.
func sameReference(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	return false
}

// sameInstance is sameReference extended with equality for comparable values
func sameInstance(a, b any) bool {
	if sameReference(a, b) {
		return true
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return false
	}
	return a == b
}

func errNoFactory(name string) error {
	return fmt.Errorf("provider %s has no factory", name)
}
