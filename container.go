// Package digraph is a reflective dependency-injection container. Types are
// requested by reflect.Type plus an ordered list of string contracts; the
// container selects implementations, resolves constructor dependencies
// recursively, caches every node under the contracts it was requested with,
// shares constructed instances under their final contract identity and keeps
// concurrent resolvers down to one instantiation per cache key.
package digraph

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Container is the resolution engine plus its frozen configuration. Safe for
// concurrent use: the shared mutable state is the service cache, the
// compiled-factory map, the top-sort counter and the disposed flag.
type Container struct {
	registry     *ConfigurationRegistry
	index        *InheritanceIndex
	introspector TypeIntrospector
	cache        *ServiceCache
	selectors    []ImplementationSelector
	ctx          *ContainerContext
	logger       *logrus.Logger

	topSort   atomic.Int64
	factories sync.Map // string -> func() any
	disposed  atomic.Bool
}

// New builds a container from zero or more configuration passes. The
// configuration is frozen once New returns.
func New(configure ...func(*ConfigurationBuilder)) *Container {
	registry := newConfigurationRegistry()
	index := NewInheritanceIndex()
	b := newConfigurationBuilder(registry, index)
	for _, fn := range configure {
		if fn != nil {
			fn(b)
		}
	}
	registry.frozen = true
	ctx := b.ctx
	if ctx == nil {
		ctx = NewContainerContext(nil)
	}
	return &Container{
		registry:     registry,
		index:        index,
		introspector: newReflectIntrospector(b.resources),
		cache:        &ServiceCache{},
		selectors:    b.selectors,
		ctx:          ctx,
		logger:       b.logger,
	}
}

// Context returns the ambient value bag factories can read.
func (c *Container) Context() *ContainerContext {
	return c.ctx
}

// Resolve performs a singleton-style lookup of t under the given contracts.
// The call itself never fails; inspect the returned service or access its
// value to observe errors together with the construction log.
func (c *Container) Resolve(t reflect.Type, contracts ...string) *ResolvedService {
	if c.disposed.Load() {
		return &ResolvedService{err: &ContainerDisposedError{Operation: "resolve"}}
	}
	elem, enumerable := c.introspector.UnwrapEnumerable(t)
	name, err := NewServiceName(elem, contracts)
	if err != nil {
		bad := ServiceName{Type: elem, Contracts: nil}
		return &ResolvedService{container: c, service: newErrorService(bad, err.Error()), enumerable: enumerable}
	}
	ctx := newResolutionContext(c, false)
	svc := c.resolveCore(name, false, nil, ctx)
	return &ResolvedService{container: c, service: svc, enumerable: enumerable}
}

// AnalyzeDependencies visits the whole dependency graph of t without
// invoking any constructor or factory, for diagnostics.
func (c *Container) AnalyzeDependencies(t reflect.Type, contracts ...string) *ResolvedService {
	if c.disposed.Load() {
		return &ResolvedService{err: &ContainerDisposedError{Operation: "analyze"}}
	}
	elem, enumerable := c.introspector.UnwrapEnumerable(t)
	name, err := NewServiceName(elem, contracts)
	if err != nil {
		bad := ServiceName{Type: elem, Contracts: nil}
		return &ResolvedService{container: c, service: newErrorService(bad, err.Error()), enumerable: enumerable}
	}
	ctx := newResolutionContext(c, true)
	svc := c.resolveCore(name, false, nil, ctx)
	return &ResolvedService{container: c, service: svc, enumerable: enumerable}
}

// Create builds a fresh instance of t, bypassing the singleton cache for the
// root. Dependencies still resolve as singletons. When t is a slice type the
// result is every implementation. A nil arguments map enables the compiled
// factory fast path for repeat calls.
func (c *Container) Create(t reflect.Type, contracts []string, arguments map[string]any) (any, error) {
	if c.disposed.Load() {
		return nil, &ContainerDisposedError{Operation: "create"}
	}
	elem, enumerable := c.introspector.UnwrapEnumerable(t)
	key := createKey(elem, contracts)
	if arguments == nil && !enumerable {
		if cached, ok := c.factories.Load(key); ok {
			return cached.(func() any)(), nil
		}
	}
	name, err := NewServiceName(elem, contracts)
	if err != nil {
		return nil, err
	}
	ctx := newResolutionContext(c, false)
	svc := c.resolveCore(name, true, newNamedArguments(arguments), ctx)
	if err := svc.CheckOk(); err != nil {
		return nil, err
	}
	if enumerable {
		return svc.AllValues(), nil
	}
	v, err := svc.SingleValue()
	if err != nil {
		return nil, err
	}
	if arguments == nil && svc.factory != nil {
		c.factories.Store(key, svc.factory)
	}
	return v, nil
}

func createKey(t reflect.Type, contracts []string) string {
	name := ServiceName{Type: t, Contracts: contracts}
	return name.key()
}

// createValue backs factory parameters: a per-call creation replayed under
// the contracts captured when the factory was resolved.
func (c *Container) createValue(t reflect.Type, contracts []string, args *argumentsSource) (any, error) {
	if c.disposed.Load() {
		return nil, &ContainerDisposedError{Operation: "create"}
	}
	elem, enumerable := c.introspector.UnwrapEnumerable(t)
	name := ServiceName{Type: elem, Contracts: contracts}
	ctx := newResolutionContext(c, false)
	svc := c.resolveCore(name, true, args, ctx)
	if err := svc.CheckOk(); err != nil {
		return nil, err
	}
	if enumerable {
		return svc.AllValues(), nil
	}
	return svc.SingleValue()
}

// resolveValue backs lazy parameters: a deferred singleton lookup.
func (c *Container) resolveValue(t reflect.Type, contracts []string) (any, error) {
	if c.disposed.Load() {
		return nil, &ContainerDisposedError{Operation: "resolve"}
	}
	name := ServiceName{Type: t, Contracts: contracts}
	ctx := newResolutionContext(c, false)
	svc := c.resolveCore(name, false, nil, ctx)
	return svc.SingleValue()
}

// GetImplementationsOf returns the implementation candidates the container
// would consider for an abstract type.
func (c *Container) GetImplementationsOf(t reflect.Type, contracts ...string) []reflect.Type {
	var stack ContractsList
	stack.Push(contracts)
	cfg, _, err := c.registry.Get(t, &stack)
	if err != nil || cfg == nil {
		cfg = emptyConfiguration
	}
	var out []reflect.Type
	add := func(impl reflect.Type) {
		for _, existing := range out {
			if existing == impl {
				return
			}
		}
		out = append(out, impl)
	}
	for _, impl := range cfg.implementationTypes {
		add(impl)
	}
	if cfg.implementationTypes == nil || cfg.useAutosearch {
		for _, impl := range c.index.InheritorsOf(t) {
			if !c.registry.isIgnoredImplementation(impl) {
				add(impl)
			}
		}
	}
	return out
}

// Clone produces a sibling container sharing the inheritance index, with the
// given configuration overlaid on a copy of this container's registry. The
// sibling has its own cache and lifecycle.
func (c *Container) Clone(configure func(*ConfigurationBuilder)) *Container {
	registry := c.registry.clone()
	b := newConfigurationBuilder(registry, c.index)
	if configure != nil {
		configure(b)
	}
	registry.frozen = true
	introspector := c.introspector
	if b.resources != nil {
		introspector = newReflectIntrospector(b.resources)
	}
	ctx := c.ctx.mergeWith(b.ctx)
	logger := c.logger
	if b.logger != nil {
		logger = b.logger
	}
	selectors := make([]ImplementationSelector, 0, len(c.selectors)+len(b.selectors))
	selectors = append(selectors, c.selectors...)
	selectors = append(selectors, b.selectors...)
	return &Container{
		registry:     registry,
		index:        c.index,
		introspector: introspector,
		cache:        &ServiceCache{},
		selectors:    selectors,
		ctx:          ctx,
		logger:       logger,
	}
}

// ResolvedService is the public handle over a sealed resolution node. Value
// accessors surface failures as errors carrying the construction log.
type ResolvedService struct {
	container  *Container
	service    *ContainerService
	enumerable bool
	err        error
}

// Service exposes the underlying sealed node.
func (r *ResolvedService) Service() *ContainerService {
	return r.service
}

// CheckOk reports whether the resolution succeeded.
func (r *ResolvedService) CheckOk() error {
	if r.err != nil {
		return r.err
	}
	return r.service.CheckOk()
}

// Single returns the only instance of the service.
func (r *ResolvedService) Single() (any, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.service.SingleValue()
}

// All returns every instance of the service.
func (r *ResolvedService) All() ([]any, error) {
	if r.err != nil {
		return nil, r.err
	}
	if err := r.service.CheckOk(); err != nil {
		return nil, err
	}
	return r.service.AllValues(), nil
}

// ConstructionLog renders the resolution tree.
func (r *ResolvedService) ConstructionLog() string {
	if r.service == nil {
		return ""
	}
	return r.service.ConstructionLog()
}

// Run initializes every Runnable in the graph below this service,
// dependencies first, each exactly once.
func (r *ResolvedService) Run() error {
	if err := r.CheckOk(); err != nil {
		return err
	}
	return r.container.ensureRunCalled(r.service)
}

// ResolveAs resolves a singleton and asserts its type.
func ResolveAs[T any](c *Container, contracts ...string) (T, error) {
	var zero T
	v, err := c.Resolve(TypeOf[T](), contracts...).Single()
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// ResolveAllOf resolves every implementation of T.
func ResolveAllOf[T any](c *Container, contracts ...string) ([]T, error) {
	values, err := c.Resolve(TypeOf[T](), contracts...).All()
	if err != nil {
		return nil, err
	}
	out := make([]T, len(values))
	for i, v := range values {
		out[i] = v.(T)
	}
	return out, nil
}

// CreateAs builds a fresh instance of T.
func CreateAs[T any](c *Container, contracts ...string) (T, error) {
	var zero T
	v, err := c.Create(TypeOf[T](), contracts, nil)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// CreateWith builds a fresh instance of T with per-call constructor
// arguments keyed by parameter name.
func CreateWith[T any](c *Container, arguments map[string]any, contracts ...string) (T, error) {
	var zero T
	v, err := c.Create(TypeOf[T](), contracts, arguments)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// CreateAllOf builds every implementation of T afresh.
func CreateAllOf[T any](c *Container, contracts ...string) ([]T, error) {
	v, err := c.Create(reflect.SliceOf(TypeOf[T]()), contracts, nil)
	if err != nil {
		return nil, err
	}
	values := v.([]any)
	out := make([]T, len(values))
	for i, item := range values {
		out[i] = item.(T)
	}
	return out, nil
}
