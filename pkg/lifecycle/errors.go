package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/joyride/pkg/graph"
	"go.uber.org/multierr"
)

// CircularDependencyError is returned when a dependency edge would close a
// cycle, or when the startup order cannot be computed.
type CircularDependencyError = graph.CircularDependencyError

// InvalidStateTransitionError is returned for a transition outside the
// lifecycle table
type InvalidStateTransitionError struct {
	Component string
	From      State
	To        State
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("component %s: invalid state transition %s -> %s", e.Component, e.From, e.To)
}

// DuplicateComponentError is returned when registering a name twice
type DuplicateComponentError struct {
	Name string
}

func (e *DuplicateComponentError) Error() string {
	return fmt.Sprintf("component %s already registered", e.Name)
}

// NotRegisteredError is returned for operations on unknown component names
type NotRegisteredError struct {
	Name string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("component %s is not registered", e.Name)
}

// ComponentBusyError is returned when unregistering a component that is
// starting, running or stopping
type ComponentBusyError struct {
	Name  string
	State State
}

func (e *ComponentBusyError) Error() string {
	return fmt.Sprintf("component %s cannot be unregistered in state %s", e.Name, e.State)
}

// StartupTimeoutError is returned when a start call exceeds its timeout
type StartupTimeoutError struct {
	Component string
	Timeout   time.Duration
}

func (e *StartupTimeoutError) Error() string {
	return fmt.Sprintf("component %s did not start within %s", e.Component, e.Timeout)
}

// ShutdownTimeoutError is returned when a stop call exceeds its timeout
type ShutdownTimeoutError struct {
	Component string
	Timeout   time.Duration
}

func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("component %s did not stop within %s", e.Component, e.Timeout)
}

// StartupFailureError wraps the first component that failed to start.
// Startup stops at that component.
type StartupFailureError struct {
	Component string
	Err       error
}

func (e *StartupFailureError) Error() string {
	return fmt.Sprintf("failed to start component %s: %v", e.Component, e.Err)
}

func (e *StartupFailureError) Unwrap() error {
	return e.Err
}

// ShutdownFailureError aggregates every component that failed to stop.
// Components are listed in the order they were stopped.
type ShutdownFailureError struct {
	Components []string
	err        error
}

func (e *ShutdownFailureError) add(name string, err error) {
	e.Components = append(e.Components, name)
	e.err = multierr.Append(e.err, err)
}

// Failures returns one error per failed component, in Components order
func (e *ShutdownFailureError) Failures() map[string]error {
	errs := multierr.Errors(e.err)
	out := make(map[string]error, len(errs))
	for i, name := range e.Components {
		if i < len(errs) {
			out[name] = errs[i]
		}
	}
	return out
}

func (e *ShutdownFailureError) Error() string {
	msgs := make([]string, 0, len(e.Components))
	for _, err := range multierr.Errors(e.err) {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("failed to stop %d component(s): %s", len(e.Components), strings.Join(msgs, "; "))
}

func (e *ShutdownFailureError) Unwrap() []error {
	return multierr.Errors(e.err)
}

// stopError ties a stop failure to its component
type stopError struct {
	component string
	err       error
}

func (e *stopError) Error() string {
	return fmt.Sprintf("component %s: %v", e.component, e.err)
}

func (e *stopError) Unwrap() error {
	return e.err
}
