package digraph

import "reflect"

// Runnable marks components that need a one-time initialization step after
// the whole graph around them has been constructed. Run is invoked by
// ResolvedService.Run, dependencies first, each component exactly once.
type Runnable interface {
	Run() error
}

// Disposable marks instances that hold resources. Container-owned disposables
// are disposed in reverse construction order when the container is disposed.
type Disposable interface {
	Dispose() error
}

// PerRequest marks a type as per-request: embedding it refuses singleton
// resolution, the type has to go through Create or a factory parameter.
//
//	type Session struct {
//		digraph.PerRequest
//		DB Database
//	}
type PerRequest struct{}

// ParameterSource supplies constant values for constructor parameters by name
// before the container attempts to resolve them as services.
type ParameterSource interface {
	TryGet(name string, t reflect.Type) (any, bool)
}

// ImplementationCandidate is one entry of the candidate set considered for an
// interface. Selectors may exclude a candidate and leave a comment that shows
// up in the construction log.
type ImplementationCandidate struct {
	Type     reflect.Type
	Excluded bool
	Comment  string
}

// ImplementationSelector adjusts the candidate set computed for an interface.
// Selectors run in registration order after configured and scanned candidates
// are collected.
type ImplementationSelector func(iface reflect.Type, candidates []*ImplementationCandidate)

// FactoryFunc builds an instance directly, with access to the container for
// resolving whatever it needs.
type FactoryFunc func(c *Container) (any, error)

// TargetedFactoryFunc additionally receives the type that requested the
// instance, nil at the top level. Services produced this way get a distinct
// cache identity per requesting type.
type TargetedFactoryFunc func(c *Container, target reflect.Type) (any, error)

// InstanceFilter drops unwanted instances after construction.
type InstanceFilter func(instance any) bool

// TypeOf returns the reflect.Type for T, working for interfaces as well as
// concrete types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
