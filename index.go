package digraph

import (
	"reflect"
	"sync"
)

// InheritanceIndex answers "which registered concrete types satisfy this
// interface". Go has no assembly scanning, so the index is fed explicitly via
// ConfigurationBuilder.Register; answers are memoized and returned in
// registration order, which makes candidate order reproducible.
type InheritanceIndex struct {
	mu         sync.RWMutex
	registered []reflect.Type
	seen       map[reflect.Type]bool
	memo       map[reflect.Type][]reflect.Type
}

func NewInheritanceIndex() *InheritanceIndex {
	return &InheritanceIndex{
		seen: make(map[reflect.Type]bool),
		memo: make(map[reflect.Type][]reflect.Type),
	}
}

// Add registers a concrete type. Duplicates are ignored.
func (x *InheritanceIndex) Add(t reflect.Type) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.seen[t] {
		return
	}
	x.seen[t] = true
	x.registered = append(x.registered, t)
	// Any cached answer may now be stale.
	x.memo = make(map[reflect.Type][]reflect.Type)
}

// InheritorsOf returns the registered types satisfying t: implementors for an
// interface, assignable types for a concrete type.
func (x *InheritanceIndex) InheritorsOf(t reflect.Type) []reflect.Type {
	x.mu.RLock()
	if cached, ok := x.memo[t]; ok {
		x.mu.RUnlock()
		return cached
	}
	x.mu.RUnlock()

	x.mu.Lock()
	defer x.mu.Unlock()
	if cached, ok := x.memo[t]; ok {
		return cached
	}
	var out []reflect.Type
	for _, r := range x.registered {
		if t.Kind() == reflect.Interface {
			if r.Implements(t) {
				out = append(out, r)
			}
		} else if r.AssignableTo(t) {
			out = append(out, r)
		}
	}
	x.memo[t] = out
	return out
}
