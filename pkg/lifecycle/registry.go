package lifecycle

import (
	"errors"
	"sync"

	"github.com/cuemby/joyride/pkg/graph"
	"github.com/cuemby/joyride/pkg/log"
	"github.com/rs/zerolog"
)

// Registry holds components by name in registration order, together with
// the dependency edges between them.
type Registry struct {
	mu         sync.RWMutex
	components map[string]*Component
	order      []string
	logger     zerolog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		components: make(map[string]*Component),
		logger:     log.WithComponent("lifecycle"),
	}
}

// Register adds c. Names are unique.
func (r *Registry) Register(c *Component) error {
	if c == nil || c.name == "" {
		return errors.New("component name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[c.name]; exists {
		return &DuplicateComponentError{Name: c.name}
	}
	r.components[c.name] = c
	r.order = append(r.order, c.name)

	r.logger.Debug().Str("name", c.name).Msg("component registered")
	return nil
}

// Unregister removes the named component and every dependency edge that
// touches it. Components that are starting, started or stopping are
// rejected with ComponentBusyError.
func (r *Registry) Unregister(name string) (*Component, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.components[name]
	if !ok {
		return nil, &NotRegisteredError{Name: name}
	}
	if state := c.State(); !state.Removable() {
		return nil, &ComponentBusyError{Name: name, State: state}
	}

	delete(r.components, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	for _, other := range r.components {
		other.removeEdges(name)
	}
	c.mu.Lock()
	c.dependencies = make(map[string]struct{})
	c.dependents = make(map[string]struct{})
	c.mu.Unlock()

	r.logger.Debug().Str("name", name).Msg("component unregistered")
	return c, nil
}

// Get returns the named component
func (r *Registry) Get(name string) (*Component, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.components[name]
	if !ok {
		return nil, &NotRegisteredError{Name: name}
	}
	return c, nil
}

// Names returns component names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Components returns the components in registration order
func (r *Registry) Components() []*Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Component, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.components[n])
	}
	return out
}

// Len returns the number of registered components
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.components)
}

// AddDependency records that component depends on dependency. The edge is
// rejected if dependency can already reach component.
func (r *Registry) AddDependency(component, dependency string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.components[component]
	if !ok {
		return &NotRegisteredError{Name: component}
	}
	d, ok := r.components[dependency]
	if !ok {
		return &NotRegisteredError{Name: dependency}
	}
	if err := r.graphLocked().CheckEdge(component, dependency); err != nil {
		return err
	}

	c.addDependency(dependency)
	d.addDependent(component)
	return nil
}

// Graph returns the current dependency graph
func (r *Registry) Graph() *graph.Graph {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graphLocked()
}

func (r *Registry) graphLocked() *graph.Graph {
	g := graph.New()
	for _, n := range r.order {
		g.AddNode(n)
	}
	for _, n := range r.order {
		for _, d := range r.components[n].Dependencies() {
			g.AddEdge(n, d)
		}
	}
	return g
}
