package lifecycle

import (
	"context"
	"errors"
	"sync"

	"github.com/cuemby/joyride/pkg/health"
)

// callLog records start/stop calls across components
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

type fakeService struct {
	name string
	log  *callLog

	startErr   error
	stopErr    error
	startPanic bool
	block      chan struct{}

	status    health.Status
	healthErr error
}

func (f *fakeService) Start(ctx context.Context) error {
	if f.log != nil {
		f.log.add("start:" + f.name)
	}
	if f.startPanic {
		panic("start exploded")
	}
	if f.block != nil {
		<-f.block
	}
	return f.startErr
}

func (f *fakeService) Stop(ctx context.Context) error {
	if f.log != nil {
		f.log.add("stop:" + f.name)
	}
	return f.stopErr
}

func (f *fakeService) HealthCheck(ctx context.Context) (health.Status, error) {
	if f.healthErr != nil {
		return health.StatusUnknown, f.healthErr
	}
	if f.status == "" {
		return health.StatusHealthy, nil
	}
	return f.status, nil
}

// slowStopper blocks in Stop until released
type slowStopper struct {
	release chan struct{}
}

func (s *slowStopper) Stop(ctx context.Context) error {
	<-s.release
	return nil
}

// slowChecker blocks in HealthCheck until its context ends
type slowChecker struct{}

func (slowChecker) HealthCheck(ctx context.Context) (health.Status, error) {
	<-ctx.Done()
	return health.StatusHealthy, nil
}

type panickingChecker struct{}

func (panickingChecker) HealthCheck(ctx context.Context) (health.Status, error) {
	panic("health check exploded")
}

var errBoom = errors.New("boom")

// newTestOrchestrator registers one fakeService per name
func newTestOrchestrator(log *callLog, names ...string) (*Orchestrator, map[string]*fakeService) {
	o := NewOrchestrator(DefaultConfig())
	services := make(map[string]*fakeService, len(names))
	for _, n := range names {
		svc := &fakeService{name: n, log: log}
		services[n] = svc
		if err := o.Register(NewComponent(n, svc)); err != nil {
			panic(err)
		}
	}
	return o, services
}

func mustGet(o *Orchestrator, name string) *Component {
	c, err := o.Registry().Get(name)
	if err != nil {
		panic(err)
	}
	return c
}
