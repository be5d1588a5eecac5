package providers

import (
	"fmt"

	"github.com/cuemby/joyride/pkg/graph"
)

// CircularDependencyError is returned when a provider depends on itself,
// directly or through other providers. Cycle lists the full loop.
type CircularDependencyError = graph.CircularDependencyError

// DuplicateProviderError is returned when registering a name twice
type DuplicateProviderError struct {
	Name string
}

func (e *DuplicateProviderError) Error() string {
	return fmt.Sprintf("provider %s already registered", e.Name)
}

// NotRegisteredError is returned for operations on unknown provider names
type NotRegisteredError struct {
	Name string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("provider %s is not registered", e.Name)
}

// DependencyResolutionError is returned when a provider, or one of its
// dependencies, cannot produce an instance.
type DependencyResolutionError struct {
	Provider   string
	Dependency string
	Err        error
}

func (e *DependencyResolutionError) Error() string {
	if e.Dependency == "" {
		return fmt.Sprintf("cannot resolve provider %s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("cannot resolve dependency %s of provider %s: %v", e.Dependency, e.Provider, e.Err)
}

func (e *DependencyResolutionError) Unwrap() error {
	return e.Err
}
