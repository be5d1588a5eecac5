package events

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// EventType is a dotted event name such as "container.start"
type EventType string

const (
	// Docker container events
	EventContainerCreate  EventType = "container.create"
	EventContainerStart   EventType = "container.start"
	EventContainerStop    EventType = "container.stop"
	EventContainerRestart EventType = "container.restart"
	EventContainerKill    EventType = "container.kill"
	EventContainerPause   EventType = "container.pause"
	EventContainerUnpause EventType = "container.unpause"
	EventContainerDie     EventType = "container.die"
	EventContainerDestroy EventType = "container.destroy"
	EventContainerUpdate  EventType = "container.update"

	// Hosts file events
	EventHostsEntryAdded    EventType = "hosts.entry.added"
	EventHostsEntryRemoved  EventType = "hosts.entry.removed"
	EventHostsEntryModified EventType = "hosts.entry.modified"

	// DNS record table events
	EventRecordCreated EventType = "dns.record.created"
	EventRecordRemoved EventType = "dns.record.removed"

	// Cluster membership events
	EventNodeJoined EventType = "node.joined"
	EventNodeLeft   EventType = "node.left"
	EventNodeFailed EventType = "node.failed"

	// Runtime events
	EventComponentUnhealthy EventType = "component.unhealthy"
	EventComponentRecovered EventType = "component.recovered"
	EventSystemStarted      EventType = "system.started"
	EventSystemStopping     EventType = "system.stopping"
)

// Event is a notification published on the bus
type Event struct {
	ID        string
	Type      EventType
	Source    string
	Data      map[string]any
	Metadata  map[string]any
	Timestamp time.Time
}

// Validator checks an event at construction time
type Validator func(*Event) error

type options struct {
	id         string
	timestamp  time.Time
	metadata   map[string]any
	validators []Validator
}

// Option configures an event in NewEvent
type Option func(*options)

// WithMetadata adds a metadata entry
func WithMetadata(key string, value any) Option {
	return func(o *options) {
		if o.metadata == nil {
			o.metadata = make(map[string]any)
		}
		o.metadata[key] = value
	}
}

// WithTimestamp overrides the creation timestamp
func WithTimestamp(ts time.Time) Option {
	return func(o *options) {
		o.timestamp = ts
	}
}

// WithID overrides the generated event ID
func WithID(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

// WithValidators adds checks run once the event is built
func WithValidators(validators ...Validator) Option {
	return func(o *options) {
		o.validators = append(o.validators, validators...)
	}
}

// NewEvent builds an event with a fresh ID and a UTC timestamp. Type and
// source are required.
func NewEvent(eventType EventType, source string, data map[string]any, opts ...Option) (*Event, error) {
	if eventType == "" {
		return nil, errors.New("event type is required")
	}
	if source == "" {
		return nil, errors.New("event source is required")
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Event{
		ID:        o.id,
		Type:      eventType,
		Source:    source,
		Data:      make(map[string]any, len(data)),
		Metadata:  make(map[string]any, len(o.metadata)),
		Timestamp: o.timestamp.UTC(),
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if o.timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	for k, v := range data {
		e.Data[k] = v
	}
	for k, v := range o.metadata {
		e.Metadata[k] = v
	}

	for _, validate := range o.validators {
		if err := validate(e); err != nil {
			return nil, fmt.Errorf("invalid %s event: %w", eventType, err)
		}
	}
	return e, nil
}

// Copy returns a copy of the event with its own Data and Metadata maps
func (e *Event) Copy() *Event {
	c := *e
	c.Data = make(map[string]any, len(e.Data))
	for k, v := range e.Data {
		c.Data[k] = v
	}
	c.Metadata = make(map[string]any, len(e.Metadata))
	for k, v := range e.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

// String returns the data value for key, or "" if absent or not a string
func (e *Event) String(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// RequireData fails when any of keys is missing from Data
func RequireData(keys ...string) Validator {
	return func(e *Event) error {
		for _, k := range keys {
			if _, ok := e.Data[k]; !ok {
				return fmt.Errorf("missing data field %q", k)
			}
		}
		return nil
	}
}

// StringData fails when key is present but not a non-empty string
func StringData(key string) Validator {
	return func(e *Event) error {
		v, ok := e.Data[key]
		if !ok {
			return nil
		}
		if s, isString := v.(string); !isString || s == "" {
			return fmt.Errorf("data field %q must be a non-empty string", key)
		}
		return nil
	}
}

// IPData fails when key is present but not a parseable IP address
func IPData(key string) Validator {
	return func(e *Event) error {
		v, ok := e.Data[key]
		if !ok {
			return nil
		}
		s, _ := v.(string)
		if net.ParseIP(s) == nil {
			return fmt.Errorf("data field %q is not an IP address: %v", key, v)
		}
		return nil
	}
}

// NewContainerEvent builds a Docker container event. hostname and ip may be
// empty for events that carry neither (e.g. container.create).
func NewContainerEvent(eventType EventType, source, containerID, name, hostname, ip string) (*Event, error) {
	data := map[string]any{
		"container_id":   containerID,
		"container_name": name,
	}
	if hostname != "" {
		data["hostname"] = hostname
	}
	if ip != "" {
		data["ip"] = ip
	}
	return NewEvent(eventType, source, data, WithValidators(
		RequireData("container_id"),
		StringData("container_id"),
		StringData("hostname"),
		IPData("ip"),
	))
}

// NewHostsEntryEvent builds a hosts-file entry event
func NewHostsEntryEvent(eventType EventType, source, hostname, ip, file string) (*Event, error) {
	return NewEvent(eventType, source, map[string]any{
		"hostname": hostname,
		"ip":       ip,
		"file":     file,
	}, WithValidators(RequireData("hostname", "ip"), StringData("hostname"), IPData("ip")))
}

// NewRecordEvent builds a DNS record table event
func NewRecordEvent(eventType EventType, source, hostname, ip, origin string) (*Event, error) {
	return NewEvent(eventType, source, map[string]any{
		"hostname": hostname,
		"ip":       ip,
		"origin":   origin,
	}, WithValidators(RequireData("hostname", "ip"), StringData("hostname"), IPData("ip")))
}

// NewNodeEvent builds a cluster membership event
func NewNodeEvent(eventType EventType, source, nodeID, address string) (*Event, error) {
	return NewEvent(eventType, source, map[string]any{
		"node_id": nodeID,
		"address": address,
	}, WithValidators(RequireData("node_id"), StringData("node_id")))
}

// NewHealthEvent builds a component health event
func NewHealthEvent(eventType EventType, source, component, status string) (*Event, error) {
	return NewEvent(eventType, source, map[string]any{
		"component": component,
		"status":    status,
	}, WithValidators(RequireData("component", "status"), StringData("component")))
}
