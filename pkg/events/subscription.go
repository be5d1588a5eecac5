package events

import (
	"fmt"
	"sync/atomic"
)

// Handler receives events delivered by the bus
type Handler interface {
	Handle(event *Event) error
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(event *Event) error

// Handle calls f(event)
func (f HandlerFunc) Handle(event *Event) error {
	return f(event)
}

// Subscription binds a handler to a filter. It stays active until it is
// unsubscribed, cleared or the bus shuts down.
type Subscription struct {
	ID string

	handler Handler
	matcher *matcher
	active  atomic.Bool
}

// Filter returns the subscription's filter
func (s *Subscription) Filter() Filter {
	return s.matcher.filter
}

// Active reports whether the subscription still receives events
func (s *Subscription) Active() bool {
	return s.active.Load()
}

// Matches reports whether an active subscription would receive event
func (s *Subscription) Matches(event *Event) bool {
	return s.Active() && s.matcher.matches(event)
}

func (s *Subscription) deactivate() {
	s.active.Store(false)
}

// deliver runs the handler, turning a panic into an error
func (s *Subscription) deliver(event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler.Handle(event)
}
