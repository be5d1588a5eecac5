package providers

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type service struct {
	name string
	deps Args
}

func newService(name string) FactoryFunc {
	return func(args Args) (any, error) {
		return &service{name: name, deps: args}, nil
	}
}

// TestSingletonConcurrentIdentity tests that concurrent callers share one instance
func TestSingletonConcurrentIdentity(t *testing.T) {
	r := NewRegistry()

	var calls atomic.Int32
	_, err := r.RegisterSingleton("svc", func(Args) (any, error) {
		calls.Add(1)
		return &service{name: "svc"}, nil
	})
	require.NoError(t, err)

	const n = 64
	results := make([]any, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := r.Get("svc")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Same(t, results[0], v)
	}
}

// TestSingletonReset tests that Reset rebuilds and cleans up
func TestSingletonReset(t *testing.T) {
	r := NewRegistry()

	var cleaned []any
	p, err := r.RegisterSingleton("svc", newService("svc"))
	require.NoError(t, err)
	p.WithCleanup(func(v any) { cleaned = append(cleaned, v) })

	first, err := r.Get("svc")
	require.NoError(t, err)
	assert.True(t, p.Created())

	p.Reset()
	assert.False(t, p.Created())
	assert.Equal(t, []any{first}, cleaned)

	second, err := r.Get("svc")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

// TestGetUnregistered tests resolution of unknown names
func TestGetUnregistered(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("missing")
	require.Error(t, err)

	var resolution *DependencyResolutionError
	assert.True(t, errors.As(err, &resolution))
	var notRegistered *NotRegisteredError
	assert.True(t, errors.As(err, &notRegistered))
	assert.Equal(t, "missing", notRegistered.Name)
}

// TestRegisterDuplicate tests duplicate registration
func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()

	_, err := r.RegisterSingleton("svc", newService("svc"))
	require.NoError(t, err)

	_, err = r.RegisterFactory("svc", newService("svc"))
	var dup *DuplicateProviderError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "svc", dup.Name)
	assert.Equal(t, 1, r.Len())
}

// TestRegisterInvalid tests rejected registrations
func TestRegisterInvalid(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(NewFactoryProvider("", newService("x")), LifecycleFactory))
	assert.Error(t, r.Register(NewFactoryProvider("x", newService("x")), Lifecycle("scoped")))
	assert.Error(t, r.Register(nil, LifecycleFactory))
	assert.Equal(t, 0, r.Len())
}

// TestCircularDependency tests cycle detection through the resolution stack
func TestCircularDependency(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *Registry)
		get   string
		want  string
	}{
		{
			name: "two providers",
			setup: func(r *Registry) {
				_, _ = r.RegisterFactory("a", newService("a"), Require("b"))
				_, _ = r.RegisterFactory("b", newService("b"), Require("a"))
			},
			get:  "a",
			want: "circular dependency detected: a -> b -> a",
		},
		{
			name: "three singletons",
			setup: func(r *Registry) {
				_, _ = r.RegisterSingleton("a", newService("a"), Require("b"))
				_, _ = r.RegisterSingleton("b", newService("b"), Require("c"))
				_, _ = r.RegisterSingleton("c", newService("c"), Require("a"))
			},
			get:  "b",
			want: "circular dependency detected: b -> c -> a -> b",
		},
		{
			name: "optional dependency still reports cycle",
			setup: func(r *Registry) {
				_, _ = r.RegisterFactory("a", newService("a"), Optional("a", "fallback"))
			},
			get:  "a",
			want: "circular dependency detected: a -> a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			tt.setup(r)

			_, err := r.Get(tt.get)
			require.Error(t, err)

			var cycle *CircularDependencyError
			require.True(t, errors.As(err, &cycle))
			assert.Equal(t, tt.want, err.Error())

			// the stack unwinds even on failure
			assert.Empty(t, r.stack)
		})
	}
}

// TestFactoryResolutionOrder tests overrides, registry lookup and defaults
func TestFactoryResolutionOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterInstance("ttl", 300))
	_, err := r.RegisterFactory("svc", newService("svc"),
		Require("ttl"),
		Optional("domain", "joyride.local"),
		Optional("upstream", nil),
	)
	require.NoError(t, err)

	v, err := r.Get("svc")
	require.NoError(t, err)
	svc := v.(*service)
	assert.Equal(t, 300, svc.deps["ttl"])
	assert.Equal(t, "joyride.local", svc.deps["domain"])
	_, hasUpstream := svc.deps["upstream"]
	assert.False(t, hasUpstream)

	v, err = r.GetWith("svc", Args{"ttl": 60, "domain": "lan", "extra": true})
	require.NoError(t, err)
	svc = v.(*service)
	assert.Equal(t, 60, svc.deps["ttl"])
	assert.Equal(t, "lan", svc.deps["domain"])
	assert.Equal(t, true, svc.deps["extra"])

	other, err := r.Get("svc")
	require.NoError(t, err)
	assert.NotSame(t, v, other)
}

// TestRequiredDependencyFailure tests propagation of required failures
func TestRequiredDependencyFailure(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterFactory("svc", newService("svc"), Require("db"))
	require.NoError(t, err)
	_, err = r.RegisterFactory("broken", func(Args) (any, error) {
		return nil, fmt.Errorf("boom")
	})
	require.NoError(t, err)
	_, err = r.RegisterFactory("uses-broken", newService("x"), Require("broken"))
	require.NoError(t, err)
	_, err = r.RegisterFactory("tolerant", newService("y"), Optional("broken", "fallback"))
	require.NoError(t, err)

	_, err = r.Get("svc")
	var resolution *DependencyResolutionError
	require.True(t, errors.As(err, &resolution))
	assert.Equal(t, "svc", resolution.Provider)
	assert.Equal(t, "db", resolution.Dependency)

	_, err = r.Get("uses-broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	v, err := r.Get("tolerant")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v.(*service).deps["broken"])
}

// TestTypedDependencies tests type checking of resolved values
func TestTypedDependencies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterInstance("port", "53"))
	_, err := r.RegisterFactory("svc", newService("svc"), RequireType[int]("port"))
	require.NoError(t, err)

	_, err = r.Get("svc")
	var resolution *DependencyResolutionError
	require.True(t, errors.As(err, &resolution))
	assert.Equal(t, "port", resolution.Dependency)

	v, err := r.GetWith("svc", Args{"port": 5353})
	require.NoError(t, err)
	assert.Equal(t, 5353, v.(*service).deps["port"])

	_, err = r.GetWith("svc", Args{"port": "5353"})
	assert.Error(t, err)
}

// TestResolveGeneric tests the typed resolution helper
func TestResolveGeneric(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterSingleton("svc", newService("svc"))
	require.NoError(t, err)

	svc, err := Resolve[*service](r, "svc")
	require.NoError(t, err)
	assert.Equal(t, "svc", svc.name)

	_, err = Resolve[string](r, "svc")
	assert.Error(t, err)

	assert.Panics(t, func() { MustResolve[*service](r, "missing") })
}

// TestNestedResolutionThroughResolver tests that providers re-enter the
// registry through the resolver without deadlocking
func TestNestedResolutionThroughResolver(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterInstance("domain", "joyride"))
	_, err := r.RegisterSingleton("records", newService("records"), Require("domain"))
	require.NoError(t, err)
	_, err = r.RegisterSingleton("dns", func(args Args) (any, error) {
		records, _ := Arg[*service](args, "records")
		return &service{name: "dns", deps: Args{"records": records}}, nil
	}, Require("records"))
	require.NoError(t, err)

	require.NoError(t, r.Register(&lookupProvider{base: base{name: "api"}}, LifecycleFactory))

	v, err := r.Get("api")
	require.NoError(t, err)
	records, err := r.Get("records")
	require.NoError(t, err)
	assert.Same(t, records, v.(*service).deps["dns"].(*service).deps["records"])
}

// lookupProvider resolves its dependency lazily inside Create
type lookupProvider struct {
	base
}

func (p *lookupProvider) Create(res Resolver, _ Args) (any, error) {
	dns, err := res.Get("dns")
	if err != nil {
		return nil, err
	}
	return &service{name: p.name, deps: Args{"dns": dns}}, nil
}

// TestUnregisterCleanup tests disposal of tracked instances
func TestUnregisterCleanup(t *testing.T) {
	r := NewRegistry()

	var cleaned []string
	p := NewFactoryProvider("worker", newService("worker")).WithCleanup(func(v any) {
		cleaned = append(cleaned, v.(*service).name)
	})
	require.NoError(t, r.Register(p, LifecycleFactory))

	for i := 0; i < 3; i++ {
		_, err := r.Get("worker")
		require.NoError(t, err)
	}
	info, ok := r.Info("worker")
	require.True(t, ok)
	assert.Equal(t, 3, info.Tracked)

	require.NoError(t, r.Unregister("worker"))
	assert.Equal(t, []string{"worker", "worker", "worker"}, cleaned)
	assert.False(t, r.Has("worker"))

	var notRegistered *NotRegisteredError
	assert.True(t, errors.As(r.Unregister("worker"), &notRegistered))
}

// TestFactoryWithoutCleanupIsNotTracked tests that no references are kept
// when there is nothing to dispose
func TestFactoryWithoutCleanupIsNotTracked(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterFactory("worker", newService("worker"))
	require.NoError(t, err)

	_, err = r.Get("worker")
	require.NoError(t, err)

	info, _ := r.Info("worker")
	assert.Equal(t, 0, info.Tracked)
}

// TestRelease tests explicit disposal of single instances
func TestRelease(t *testing.T) {
	r := NewRegistry()

	var cleaned int
	p := NewFactoryProvider("worker", newService("worker")).WithCleanup(func(any) { cleaned++ })
	require.NoError(t, r.Register(p, LifecycleFactory))

	a, _ := r.Get("worker")
	_, _ = r.Get("worker")

	require.NoError(t, r.Release("worker", a))
	assert.Equal(t, 1, cleaned)
	info, _ := r.Info("worker")
	assert.Equal(t, 1, info.Tracked)

	s, err := r.RegisterSingleton("single", newService("single"))
	require.NoError(t, err)
	first, _ := r.Get("single")
	require.NoError(t, r.Release("single", first))
	assert.False(t, s.Created())
	second, _ := r.Get("single")
	assert.NotSame(t, first, second)

	assert.Error(t, r.Release("missing", a))
}

type conn struct {
	tags []string
}

// TestReleaseNonComparableInstance tests that a released value instance is
// untracked and never cleaned up twice
func TestReleaseNonComparableInstance(t *testing.T) {
	r := NewRegistry()

	var cleaned int
	p := NewFactoryProvider("conn", func(Args) (any, error) {
		return conn{tags: []string{"x"}}, nil
	}).WithCleanup(func(any) { cleaned++ })
	require.NoError(t, r.Register(p, LifecycleFactory))

	c, err := r.Get("conn")
	require.NoError(t, err)
	require.NoError(t, r.Release("conn", c))

	info, _ := r.Info("conn")
	assert.Equal(t, 0, info.Tracked)

	require.NoError(t, r.Unregister("conn"))
	assert.Equal(t, 1, cleaned)
}

// TestReregisterLeavesNoResidue tests register, unregister, register
func TestReregisterLeavesNoResidue(t *testing.T) {
	r := NewRegistry()

	p := NewSingletonProvider("x", newService("x"))
	require.NoError(t, r.Register(p, LifecycleSingleton))
	first, err := r.Get("x")
	require.NoError(t, err)

	require.NoError(t, r.Unregister("x"))
	require.NoError(t, r.Register(p, LifecycleSingleton))

	second, err := r.Get("x")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, []string{"x"}, r.Names())
}

// TestValidateDependencies tests the non-failing pre-flight scan
func TestValidateDependencies(t *testing.T) {
	r := NewRegistry()
	_, _ = r.RegisterFactory("api", newService("api"), Require("records"), Require("dns"), Optional("metrics", nil))
	_, _ = r.RegisterFactory("records", newService("records"), Require("store"))

	problems := r.ValidateDependencies()
	assert.Equal(t, []string{
		"provider api: required dependency dns is not registered",
		"provider records: required dependency store is not registered",
	}, problems)

	assert.True(t, r.CanCreate("records") == false)
	_, _ = r.RegisterFactory("store", newService("store"))
	assert.True(t, r.CanCreate("records"))
	assert.False(t, r.CanCreate("missing"))
}

// TestDependencyGraph tests the registered-only adjacency view
func TestDependencyGraph(t *testing.T) {
	r := NewRegistry()
	_, _ = r.RegisterFactory("api", newService("api"), Require("records"), Require("dns"))
	_, _ = r.RegisterFactory("records", newService("records"))

	assert.Equal(t, map[string][]string{
		"api":     {"records"},
		"records": {},
	}, r.DependencyGraph())
}

// TestClear tests that Clear disposes everything and empties the registry
func TestClear(t *testing.T) {
	r := NewRegistry()

	var order []string
	cleanup := func(v any) { order = append(order, v.(*service).name) }

	s, _ := r.RegisterSingleton("first", newService("first"))
	s.WithCleanup(cleanup)
	f := NewFactoryProvider("second", newService("second")).WithCleanup(cleanup)
	require.NoError(t, r.Register(f, LifecycleFactory))

	_, _ = r.Get("first")
	_, _ = r.Get("second")

	r.Clear()
	assert.Equal(t, []string{"second", "first"}, order)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Names())
}
