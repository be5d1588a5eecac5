package providers

import (
	"errors"
	"fmt"
	"reflect"
)

// Dependency describes one named input a provider needs
type Dependency struct {
	// Name of the provider supplying the value
	Name string

	// Type, when set, is checked against the resolved value
	Type reflect.Type

	// Required dependencies fail resolution when missing. Optional ones
	// fall back to Default.
	Required bool

	Default any
}

// Require declares a required dependency
func Require(name string) Dependency {
	return Dependency{Name: name, Required: true}
}

// Optional declares an optional dependency with a fallback value
func Optional(name string, def any) Dependency {
	return Dependency{Name: name, Default: def}
}

// RequireType declares a required dependency whose value must be assignable to T
func RequireType[T any](name string) Dependency {
	return Dependency{Name: name, Type: reflect.TypeOf((*T)(nil)).Elem(), Required: true}
}

// OptionalType declares a typed optional dependency
func OptionalType[T any](name string, def T) Dependency {
	return Dependency{Name: name, Type: reflect.TypeOf((*T)(nil)).Elem(), Default: def}
}

func (d Dependency) String() string {
	kind := "optional"
	if d.Required {
		kind = "required"
	}
	if d.Type != nil {
		return fmt.Sprintf("%s (%s, %s)", d.Name, d.Type, kind)
	}
	return fmt.Sprintf("%s (%s)", d.Name, kind)
}

func (d Dependency) accepts(v any) bool {
	if d.Type == nil {
		return true
	}
	if v == nil {
		switch d.Type.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return true
		}
		return false
	}
	return reflect.TypeOf(v).AssignableTo(d.Type)
}

// resolveArgs builds the argument set for a provider. Each dependency comes
// from overrides first, then from the resolver. Overrides that do not name
// a declared dependency are passed through unchanged.
func resolveArgs(provider string, deps []Dependency, res Resolver, overrides Args) (Args, error) {
	args := make(Args, len(deps)+len(overrides))
	for k, v := range overrides {
		args[k] = v
	}

	for _, d := range deps {
		if v, ok := overrides[d.Name]; ok {
			if !d.accepts(v) {
				return nil, &DependencyResolutionError{
					Provider:   provider,
					Dependency: d.Name,
					Err:        fmt.Errorf("override is %T, want %s", v, d.Type),
				}
			}
			continue
		}

		v, err := res.Get(d.Name)
		if err != nil {
			var cycle *CircularDependencyError
			if errors.As(err, &cycle) {
				return nil, err
			}
			if d.Required {
				return nil, &DependencyResolutionError{Provider: provider, Dependency: d.Name, Err: err}
			}
			if d.Default != nil {
				args[d.Name] = d.Default
			}
			continue
		}

		if !d.accepts(v) {
			return nil, &DependencyResolutionError{
				Provider:   provider,
				Dependency: d.Name,
				Err:        fmt.Errorf("instance is %T, want %s", v, d.Type),
			}
		}
		args[d.Name] = v
	}

	return args, nil
}
