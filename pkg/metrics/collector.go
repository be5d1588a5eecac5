package metrics

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultCollectInterval is how often the collector samples component states
const DefaultCollectInterval = 15 * time.Second

// StateSource reports the current state of every registered component
type StateSource interface {
	ComponentStates() map[string]string
}

// Collector periodically copies component states into the
// joyride_component_state gauge
type Collector struct {
	source   StateSource
	states   []string
	clock    clock.Clock
	interval time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewCollector creates a new metrics collector. states lists every state
// name so inactive states can be reset to zero.
func NewCollector(source StateSource, states []string) *Collector {
	return &Collector{
		source:   source,
		states:   states,
		clock:    clock.New(),
		interval: DefaultCollectInterval,
	}
}

// WithClock replaces the clock driving the collection ticker
func (c *Collector) WithClock(clk clock.Clock) *Collector {
	c.clock = clk
	return c
}

// WithInterval sets the sampling interval
func (c *Collector) WithInterval(interval time.Duration) *Collector {
	if interval > 0 {
		c.interval = interval
	}
	return c
}

// Start begins collecting metrics. Calling Start on a running collector is a no-op.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})

	ticker := c.clock.Ticker(c.interval)
	go func(stopCh, doneCh chan struct{}) {
		defer close(doneCh)
		defer ticker.Stop()

		// Collect immediately on start
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-stopCh:
				return
			}
		}
	}(c.stopCh, c.doneCh)
}

// Stop stops the collector and waits for the loop to exit
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	doneCh := c.doneCh
	c.mu.Unlock()

	<-doneCh
}

// Collect samples the source once
func (c *Collector) Collect() {
	for name, state := range c.source.ComponentStates() {
		SetOneHot(ComponentState, name, state, c.states)
	}
}
