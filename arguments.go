package digraph

import (
	"reflect"
	"strings"
)

// argumentsSource feeds per-call constructor arguments into one resolution.
// Named entries come from a Create call's argument map; typed entries come
// from nested factory parameters, matched by assignability and consumed at
// most once.
type typedArgument struct {
	value    reflect.Value
	consumed bool
}

type argumentsSource struct {
	named map[string]any
	typed []*typedArgument
}

func newNamedArguments(named map[string]any) *argumentsSource {
	if named == nil {
		return nil
	}
	return &argumentsSource{named: named}
}

func newTypedArguments(values []reflect.Value) *argumentsSource {
	src := &argumentsSource{}
	for _, v := range values {
		src.typed = append(src.typed, &typedArgument{value: v})
	}
	return src
}

// takeNamed looks a parameter up by name, case-insensitive.
func (a *argumentsSource) takeNamed(name string) (any, bool) {
	if a == nil || a.named == nil {
		return nil, false
	}
	if v, ok := a.named[name]; ok {
		return v, true
	}
	for k, v := range a.named {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// takeTyped consumes the first unconsumed argument assignable to t.
func (a *argumentsSource) takeTyped(t reflect.Type) (any, bool) {
	if a == nil {
		return nil, false
	}
	for _, arg := range a.typed {
		if !arg.consumed && arg.value.Type().AssignableTo(t) {
			arg.consumed = true
			return arg.value.Interface(), true
		}
	}
	return nil, false
}

// hasNamed reports whether a named argument covers the key, used by the
// unused-configuration check.
func (a *argumentsSource) hasNamed(key string) bool {
	if a == nil || a.named == nil {
		return false
	}
	for k := range a.named {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}
