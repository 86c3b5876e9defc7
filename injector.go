package digraph

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// BuiltUpService reports what BuildUp injected, in field order.
type BuiltUpService struct {
	target       any
	dependencies []*ServiceDependency
}

// Target returns the injected instance.
func (s *BuiltUpService) Target() any {
	return s.target
}

// Dependencies returns one edge per injected field.
func (s *BuiltUpService) Dependencies() []*ServiceDependency {
	return s.dependencies
}

// BuildUp injects resolved services into the inject-tagged fields of an
// existing instance. The target itself never enters the singleton cache; its
// dependencies resolve (and cache) as usual.
//
//	type Handler struct {
//		DB    Database `inject:""`
//		Cache Cache    `inject:"optional"`
//	}
func (c *Container) BuildUp(target any, contracts ...string) (*BuiltUpService, error) {
	if c.disposed.Load() {
		return nil, &ContainerDisposedError{Operation: "build up"}
	}
	rv := reflect.ValueOf(target)
	if !rv.IsValid() || rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, &InjectionError{
			Target: fmt.Sprintf("%T", target),
			Err:    errors.New("target must be a non-nil pointer to a struct"),
		}
	}
	ev := rv.Elem()
	et := ev.Type()
	targetName := typeName(et)
	built := &BuiltUpService{target: target}

	for i := 0; i < et.NumField(); i++ {
		f := et.Field(i)
		tag, tagged := f.Tag.Lookup("inject")
		if !tagged || tag == "-" || !f.IsExported() {
			continue
		}
		optional := tag == "optional" || f.Tag.Get("optional") == "true"

		fieldContracts := contracts
		if ct := f.Tag.Get("contract"); ct != "" {
			fieldContracts = append(append([]string{}, contracts...), strings.Split(ct, ",")...)
		}

		resolved := c.Resolve(f.Type, fieldContracts...)
		value, err := c.injectedValue(resolved, f.Type)
		if err != nil {
			if optional {
				built.dependencies = append(built.dependencies, dependencyNotResolved(f.Name, "optional, not resolved"))
				continue
			}
			return nil, &InjectionError{Target: targetName, Field: f.Name, Err: err}
		}
		rvValue, err := coerce(value, f.Type)
		if err != nil {
			return nil, &InjectionError{Target: targetName, Field: f.Name, Err: err}
		}
		ev.Field(i).Set(rvValue)
		built.dependencies = append(built.dependencies, dependencyService(f.Name, resolved.Service(), value))
	}
	return built, nil
}

// injectedValue extracts a single instance, or a typed slice for enumerable
// fields.
func (c *Container) injectedValue(resolved *ResolvedService, fieldType reflect.Type) (any, error) {
	if _, enumerable := c.introspector.UnwrapEnumerable(fieldType); !enumerable {
		return resolved.Single()
	}
	values, err := resolved.All()
	if err != nil {
		return nil, err
	}
	slice := reflect.MakeSlice(fieldType, 0, len(values))
	for _, v := range values {
		slice = reflect.Append(slice, reflect.ValueOf(v))
	}
	return slice.Interface(), nil
}
