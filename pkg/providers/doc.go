/*
Package providers implements joyride's dependency container.

A Registry maps names to providers. Resolving a name asks its provider for an
instance; before building, the provider resolves its own declared
dependencies through the same registry, so wiring a whole process is a
matter of registering providers and calling Get on the top-level name.

# Architecture

	┌──────────────────────── REGISTRY ──────────────────────────┐
	│                                                              │
	│  providers map[name]*providerInfo    (one sync.Mutex)        │
	│  resolution stack  [api dns records] (cycle detection)       │
	│                                                              │
	│  Get("api")                                                  │
	│    └─► push api ─► SingletonProvider.Create(scope, overrides)│
	│                      └─► scope.Get("dns")                    │
	│                            └─► push dns ─► ...               │
	│                                                              │
	│  Provider kinds:                                             │
	│    SingletonProvider   lazy, cached until Reset              │
	│    FactoryProvider     new instance per resolution           │
	│    PrototypeProvider   clones a template (Copy by default)   │
	│    ClassProvider       constructor + declared parameters     │
	└──────────────────────────────────────────────────────────────┘

# Resolution

For every declared Dependency the value comes from, in order:

 1. the overrides passed to GetWith (top-level provider only)
 2. the registry
 3. for optional dependencies only, the declared default

A required dependency that cannot be resolved fails the whole resolution
with a DependencyResolutionError. A name already on the resolution stack
fails with a CircularDependencyError listing the loop:

	circular dependency detected: api -> dns -> api

# Locking

The registry lock is held for the entire top-level Get, including factory
calls. Nested lookups go through the Resolver passed to Provider.Create,
which runs under the already-held lock; this is what lets one call chain
recurse while other goroutines wait. Two consequences for factory authors:

  - factories must not block: they stall every other registry user
  - factories must resolve through the Resolver (or their Args), never
    through the *Registry captured in a closure, which would deadlock

# Disposal

The registry keeps no references to factory or prototype instances unless
the provider has a cleanup hook (WithCleanup / WithPrototypeCleanup).
Tracked instances are disposed by Release, Unregister and Clear. Singleton
and singleton class providers dispose their cached instance on Reset, which
Release, Unregister and Clear also trigger.

# Class providers

ClassProvider does not inspect constructor parameter names. Each parameter
is bound to an explicitly declared Dependency, by position, and the
declarations are checked against the constructor's signature when the
provider is built:

	_, err := registry.RegisterClass("records", records.NewStore, providers.LifecycleSingleton,
		providers.Require("bus"),
		providers.Optional("records-config", records.Config{}),
	)

A parameter count or type mismatch is a construction error, not a
resolution-time surprise.
*/
package providers
