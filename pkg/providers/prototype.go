package providers

import (
	"fmt"
	"reflect"
)

// DefaultCloneMethod is the method a prototype template must expose
const DefaultCloneMethod = "Copy"

// PrototypeProvider clones a template instance on every resolution
type PrototypeProvider struct {
	base
	template any
	method   string
	clone    reflect.Value
}

// PrototypeOption configures a PrototypeProvider
type PrototypeOption func(*PrototypeProvider)

// WithCloneMethod sets the name of the template's clone method
func WithCloneMethod(method string) PrototypeOption {
	return func(p *PrototypeProvider) {
		p.method = method
	}
}

// WithPrototypeCleanup sets the dispose hook for clones
func WithPrototypeCleanup(fn func(any)) PrototypeOption {
	return func(p *PrototypeProvider) {
		p.cleanup = fn
	}
}

// NewPrototypeProvider creates a prototype provider. The template must have
// an exported clone method taking no arguments and returning the clone,
// optionally followed by an error.
func NewPrototypeProvider(name string, template any, opts ...PrototypeOption) (*PrototypeProvider, error) {
	p := &PrototypeProvider{
		base:     base{name: name},
		template: template,
		method:   DefaultCloneMethod,
	}
	for _, opt := range opts {
		opt(p)
	}

	if template == nil {
		return nil, fmt.Errorf("prototype %s: template is nil", name)
	}
	m := reflect.ValueOf(template).MethodByName(p.method)
	if !m.IsValid() {
		return nil, fmt.Errorf("prototype %s: template %T has no %s method", name, template, p.method)
	}
	mt := m.Type()
	if mt.NumIn() != 0 {
		return nil, fmt.Errorf("prototype %s: %T.%s must take no arguments", name, template, p.method)
	}
	switch {
	case mt.NumOut() == 1:
	case mt.NumOut() == 2 && mt.Out(1) == errorType:
	default:
		return nil, fmt.Errorf("prototype %s: %T.%s must return (T) or (T, error)", name, template, p.method)
	}

	p.clone = m
	return p, nil
}

// Template returns the wrapped template
func (p *PrototypeProvider) Template() any {
	return p.template
}

// Create returns a fresh clone of the template
func (p *PrototypeProvider) Create(_ Resolver, _ Args) (any, error) {
	out := p.clone.Call(nil)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, fmt.Errorf("prototype %s: clone failed: %w", p.name, out[1].Interface().(error))
	}

	instance := out[0].Interface()
	if sameReference(instance, p.template) {
		return nil, fmt.Errorf("prototype %s: %s returned the template itself", p.name, p.method)
	}
	return instance, nil
}
