package digraph

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Lazy defers a singleton resolution until Value is called. Declared as a
// dependency field of type *digraph.Lazy[T], the container installs the
// Resolve closure; the result is memoized.
type Lazy[T any] struct {
	// Resolve is installed by the container. User code calls Value.
	Resolve func() (any, error)

	once  sync.Once
	value T
	err   error
}

// Value resolves the underlying service on first call and returns the
// memoized result afterwards.
func (l *Lazy[T]) Value() (T, error) {
	l.once.Do(func() {
		v, err := l.Resolve()
		if err != nil {
			l.err = err
			return
		}
		typed, ok := v.(T)
		if !ok {
			l.err = fmt.Errorf("lazy value of type %T is not %s", v, typeName(TypeOf[T]()))
			return
		}
		l.value = typed
	})
	return l.value, l.err
}

// instantiationPlugins intercept concrete types with special shapes before
// constructor synthesis: factory funcs, factory funcs with arguments and
// lazy wrappers. Each returns true when it handled the builder.
func instantiationPlugins() []func(c *Container, b *ServiceBuilder) bool {
	return []func(c *Container, b *ServiceBuilder) bool{
		resolveLazyService,
		resolveFactoryService,
		resolveArgumentFactoryService,
	}
}

// factoryShape splits func(...) (T) / func(...) (T, error) into its result
// type. Anything else is not a factory the container understands.
func factoryShape(t reflect.Type) (result reflect.Type, withError bool, ok bool) {
	if t.IsVariadic() {
		return nil, false, false
	}
	switch t.NumOut() {
	case 1:
		if t.Out(0) == errorType {
			return nil, false, false
		}
		return t.Out(0), false, true
	case 2:
		if t.Out(1) != errorType || t.Out(0) == errorType {
			return nil, false, false
		}
		return t.Out(0), true, true
	}
	return nil, false, false
}

// resolveFactoryService turns a zero-argument func type into a closure over
// Create: every invocation produces a fresh instance under the contracts
// active when the func was resolved.
func resolveFactoryService(c *Container, b *ServiceBuilder) bool {
	t := b.name.Type
	if t.Kind() != reflect.Func || t.NumIn() != 0 {
		return false
	}
	result, withError, ok := factoryShape(t)
	if !ok {
		return false
	}
	contracts := snapshotContracts(b.declaredContracts)
	fn := reflect.MakeFunc(t, func([]reflect.Value) []reflect.Value {
		v, err := c.createValue(result, contracts, nil)
		return factoryResults(result, v, err, withError)
	})
	if b.ctx.analyzeDependenciesOnly {
		b.markResolvedWithoutInstance()
		return true
	}
	b.AddInstance(fn.Interface(), false)
	return true
}

// resolveArgumentFactoryService handles func(args...) T where T's
// constructor can consume every argument type: the arguments are passed
// through to the per-call creation, matched by assignability.
func resolveArgumentFactoryService(c *Container, b *ServiceBuilder) bool {
	t := b.name.Type
	if t.Kind() != reflect.Func || t.NumIn() == 0 {
		return false
	}
	result, withError, ok := factoryShape(t)
	if !ok {
		return false
	}
	ctor, err := c.introspector.GetConstructor(result)
	if err != nil {
		return false
	}
	for i := 0; i < t.NumIn(); i++ {
		if !constructorTakes(ctor, t.In(i)) {
			return false
		}
	}
	contracts := snapshotContracts(b.declaredContracts)
	fn := reflect.MakeFunc(t, func(args []reflect.Value) []reflect.Value {
		v, err := c.createValue(result, contracts, newTypedArguments(args))
		return factoryResults(result, v, err, withError)
	})
	if b.ctx.analyzeDependenciesOnly {
		b.markResolvedWithoutInstance()
		return true
	}
	b.AddInstance(fn.Interface(), false)
	return true
}

func constructorTakes(ctor *ConstructorInfo, arg reflect.Type) bool {
	for _, p := range ctor.Parameters {
		if arg.AssignableTo(p.Type) {
			return true
		}
	}
	return false
}

func factoryResults(result reflect.Type, v any, err error, withError bool) []reflect.Value {
	value := reflect.Zero(result)
	if err == nil && v != nil {
		value = reflect.ValueOf(v)
	}
	if withError {
		errValue := reflect.Zero(errorType)
		if err != nil {
			errValue = reflect.ValueOf(err)
		}
		return []reflect.Value{value, errValue}
	}
	if err != nil {
		panic(err)
	}
	return []reflect.Value{value}
}

// resolveLazyService builds a *Lazy[T] with the deferred resolve closure
// installed.
func resolveLazyService(c *Container, b *ServiceBuilder) bool {
	t := b.name.Type
	elem, ok := lazyElement(t)
	if !ok {
		return false
	}
	if b.ctx.analyzeDependenciesOnly {
		b.markResolvedWithoutInstance()
		return true
	}
	contracts := snapshotContracts(b.declaredContracts)
	fetch := func() (any, error) {
		return c.resolveValue(elem, contracts)
	}
	lv := reflect.New(t.Elem())
	lv.Elem().FieldByName("Resolve").Set(reflect.ValueOf(fetch))
	b.AddInstance(lv.Interface(), false)
	return true
}

var lazyPkgPath = reflect.TypeOf(Lazy[int]{}).PkgPath()

// lazyElement recognizes *Lazy[T] and extracts T.
func lazyElement(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Ptr {
		return nil, false
	}
	e := t.Elem()
	if e.Kind() != reflect.Struct || e.PkgPath() != lazyPkgPath || !strings.HasPrefix(e.Name(), "Lazy[") {
		return nil, false
	}
	f, ok := e.FieldByName("value")
	if !ok {
		return nil, false
	}
	return f.Type, true
}

func snapshotContracts(contracts []string) []string {
	if len(contracts) == 0 {
		return nil
	}
	out := make([]string, len(contracts))
	copy(out, contracts)
	return out
}
