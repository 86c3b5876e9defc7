package digraph

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ServiceStatus is the per-node state machine. Transitions are monotonic: a
// builder never returns to Ok once it entered an error state, though more
// dependencies may still be appended for the construction log.
type ServiceStatus int

const (
	StatusNotResolved ServiceStatus = iota
	StatusOk
	StatusError
	StatusDependencyError
)

func (s ServiceStatus) String() string {
	switch s {
	case StatusNotResolved:
		return "NotResolved"
	case StatusOk:
		return "Ok"
	case StatusError:
		return "Error"
	case StatusDependencyError:
		return "DependencyError"
	}
	return fmt.Sprintf("ServiceStatus(%d)", int(s))
}

// isBad reports a state that aborts dependency resolution in the parent.
func (s ServiceStatus) isBad() bool {
	return s == StatusError || s == StatusDependencyError
}

// ServiceDependency is one edge of the resolution DAG: a constant, a child
// service, or a recorded refusal, together with the comment shown in the
// construction log.
type ServiceDependency struct {
	name     string
	service  *ContainerService
	value    any
	hasValue bool
	comment  string
	status   ServiceStatus
}

func dependencyConstant(name string, value any) *ServiceDependency {
	return &ServiceDependency{name: name, value: value, hasValue: true, status: StatusOk}
}

func dependencyService(name string, svc *ContainerService, value any) *ServiceDependency {
	return &ServiceDependency{name: name, service: svc, value: value, hasValue: true, status: StatusOk}
}

func dependencyFromChild(name string, svc *ContainerService) *ServiceDependency {
	return &ServiceDependency{name: name, service: svc, status: svc.status}
}

func dependencyFailure(name, message string) *ServiceDependency {
	return &ServiceDependency{name: name, comment: message, status: StatusError}
}

func dependencyNotResolved(name, comment string) *ServiceDependency {
	return &ServiceDependency{name: name, comment: comment, status: StatusNotResolved}
}

// errorText is the most specific message this edge can contribute upward.
func (d *ServiceDependency) errorText() string {
	if d.service != nil && d.service.errMessage != "" {
		return d.service.errMessage
	}
	return d.comment
}

// Value returns the injected value of this edge.
func (d *ServiceDependency) Value() any {
	return d.value
}

// instanceEntry pairs an instance with ownership flags. owned drives
// disposal; added marks the node that actually introduced the instance, so
// Run hooks fire once even though linked parents share the value. Linked
// children keep both; the parent only references.
type instanceEntry struct {
	value any
	owned bool
	added bool
}

// ServiceBuilder is the mutable node under construction. It is created after
// slot acquisition, filled by the instantiator and sealed into an immutable
// ContainerService on release.
type ServiceBuilder struct {
	container *Container
	ctx       *ResolutionContext

	name              ServiceName
	declaredContracts []string
	configuration     *ServiceConfiguration
	arguments         *argumentsSource
	createNew         bool

	dependencies []*ServiceDependency
	usedSet      map[string]bool
	status       ServiceStatus
	errMessage   string
	comment      string
	instances    []instanceEntry

	usedOverrideKeys map[string]bool
	compiledFactory  func() any
}

func newServiceBuilder(c *Container, ctx *ResolutionContext, name ServiceName, cfg *ServiceConfiguration) *ServiceBuilder {
	return &ServiceBuilder{
		container:         c,
		ctx:               ctx,
		name:              name,
		declaredContracts: name.Contracts,
		configuration:     cfg,
		usedSet:           make(map[string]bool),
		usedOverrideKeys:  make(map[string]bool),
	}
}

// UseContracts marks declared contracts as consulted. Names outside the
// declared stack are ignored, which keeps used ⊆ declared.
func (b *ServiceBuilder) UseContracts(names []string) {
	for _, n := range names {
		if containsContract(b.declaredContracts, n) {
			b.usedSet[strings.ToLower(n)] = true
		}
	}
}

// usedContracts returns the consulted subset in declared order.
func (b *ServiceBuilder) usedContracts() []string {
	var out []string
	for _, c := range b.declaredContracts {
		if b.usedSet[strings.ToLower(c)] {
			out = append(out, c)
		}
	}
	return out
}

// AddInstance appends a constructed or assigned instance and moves the node
// to Ok unless it already failed.
func (b *ServiceBuilder) AddInstance(v any, owned bool) {
	b.instances = append(b.instances, instanceEntry{value: v, owned: owned, added: true})
	if b.status == StatusNotResolved {
		b.status = StatusOk
	}
}

// AddDependency records an edge and degrades the node on a failed child.
func (b *ServiceBuilder) AddDependency(dep *ServiceDependency) {
	b.dependencies = append(b.dependencies, dep)
	if dep.service != nil {
		b.UseContracts(dep.service.usedContracts)
	}
	if dep.status.isBad() && b.status != StatusError {
		b.status = StatusDependencyError
		if b.errMessage == "" {
			b.errMessage = dep.errorText()
		}
	}
}

// SetError moves the node to Error. The first error message wins.
func (b *ServiceBuilder) SetError(message string) {
	if b.status != StatusError {
		b.status = StatusError
		b.errMessage = message
	}
}

func (b *ServiceBuilder) SetErrorf(format string, args ...any) {
	b.SetError(fmt.Sprintf(format, args...))
}

// LinkChild unions a resolved child into this node: its instances, status and
// used contracts. Returns false when the child failed and the caller should
// short-circuit.
func (b *ServiceBuilder) LinkChild(displayName string, child *ContainerService) bool {
	b.AddDependency(dependencyFromChild(displayName, child))
	if child.status.isBad() {
		return false
	}
	if child.status == StatusOk {
		for _, e := range child.instances {
			b.instances = append(b.instances, instanceEntry{value: e.value})
		}
		if b.status == StatusNotResolved {
			b.status = StatusOk
		}
	}
	return true
}

// Reuse adopts an already-cached service instead of constructing: same
// instances, no ownership.
func (b *ServiceBuilder) Reuse(existing *ContainerService) {
	b.comment = "reused"
	for _, e := range existing.instances {
		b.instances = append(b.instances, instanceEntry{value: e.value})
	}
	b.UseContracts(existing.usedContracts)
	if b.status == StatusNotResolved {
		b.status = StatusOk
	}
}

// EndResolveDependencies is the barrier after which the used-contract set is
// final for cache-identity purposes.
func (b *ServiceBuilder) EndResolveDependencies() {
	// The set is maintained incrementally; nothing to recompute. The hook
	// stays because the final-name collapse below it depends on this point.
}

// markResolvedWithoutInstance moves the node to Ok without adding an
// instance: analysis mode and deferred factories end here.
func (b *ServiceBuilder) markResolvedWithoutInstance() {
	if b.status == StatusNotResolved {
		b.status = StatusOk
	}
}

// unusedConfigurationKeys returns parameter overrides that no constructor
// parameter consulted, sorted for reproducible messages. Keys covered by
// per-call arguments are intentional shadowing, not mistakes.
func (b *ServiceBuilder) unusedConfigurationKeys() []string {
	cfg := b.configuration
	if len(cfg.parameterOverrides) == 0 {
		return nil
	}
	var out []string
	for key := range cfg.parameterOverrides {
		if b.usedOverrideKeys[strings.ToLower(key)] {
			continue
		}
		if b.arguments.hasNamed(key) {
			continue
		}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// finalName is the cache identity after resolution: the type plus only the
// contracts that mattered.
func (b *ServiceBuilder) finalName() ServiceName {
	return ServiceName{Type: b.name.Type, Contracts: b.usedContracts()}
}

// Seal freezes the builder into an immutable ContainerService and stamps the
// top-sort index.
func (b *ServiceBuilder) Seal() *ContainerService {
	svc := &ContainerService{
		name:              b.name,
		declaredContracts: b.declaredContracts,
		usedContracts:     b.usedContracts(),
		status:            b.status,
		errMessage:        b.errMessage,
		comment:           b.comment,
		dependencies:      b.dependencies,
		instances:         b.instances,
		factory:           b.compiledFactory,
	}
	svc.finalName = ServiceName{Type: b.name.Type, Contracts: svc.usedContracts}
	svc.topSortIndex = b.container.topSort.Add(1)
	return svc
}

// sealAs seals a snapshot of the builder under a different identity: the
// final-name collapse installs the constructed service in the cache under
// (type, used contracts) while the declared-name seal happens later.
func (b *ServiceBuilder) sealAs(name ServiceName) *ContainerService {
	svc := &ContainerService{
		name:              name,
		finalName:         name,
		declaredContracts: name.Contracts,
		usedContracts:     name.Contracts,
		status:            b.status,
		errMessage:        b.errMessage,
		dependencies:      b.dependencies,
		instances:         b.instances,
	}
	svc.topSortIndex = b.container.topSort.Add(1)
	return svc
}

// ContainerService is a sealed resolution node. Everything is frozen,
// including the final used contracts that define its cache identity.
type ContainerService struct {
	name              ServiceName
	finalName         ServiceName
	declaredContracts []string
	usedContracts     []string
	status            ServiceStatus
	errMessage        string
	comment           string
	dependencies      []*ServiceDependency
	instances         []instanceEntry
	topSortIndex      int64
	factory           func() any

	runOnce sync.Once
	runErr  error
}

// Status returns the terminal state of the node.
func (s *ContainerService) Status() ServiceStatus {
	return s.status
}

// Name returns the declared identity the node was resolved under.
func (s *ContainerService) Name() ServiceName {
	return s.name
}

// FinalName returns the cache identity: the type plus the contracts that were
// actually consulted.
func (s *ContainerService) FinalName() ServiceName {
	return s.finalName
}

// UsedContracts returns the consulted subset of the declared contract stack.
func (s *ContainerService) UsedContracts() []string {
	return s.usedContracts
}

// Dependencies returns the resolution edges in the order they were created.
func (s *ContainerService) Dependencies() []*ServiceDependency {
	return s.dependencies
}

// AllValues returns every instance of the node.
func (s *ContainerService) AllValues() []any {
	out := make([]any, len(s.instances))
	for i, e := range s.instances {
		out[i] = e.value
	}
	return out
}

// SingleValue returns the only instance, or an error carrying the
// construction log when the node holds zero or several.
func (s *ContainerService) SingleValue() (any, error) {
	if err := s.CheckOk(); err != nil {
		return nil, err
	}
	switch len(s.instances) {
	case 1:
		return s.instances[0].value, nil
	case 0:
		return nil, &ResolutionError{
			Reason: "no implementations for " + typeName(s.name.Type),
			Log:    s.ConstructionLog(),
		}
	default:
		var lines []string
		for _, e := range s.instances {
			lines = append(lines, "\t"+fmt.Sprintf("%T", e.value))
		}
		return nil, &ResolutionError{
			Reason: fmt.Sprintf("many implementations for [%s]\n%s", typeName(s.name.Type), strings.Join(lines, "\n")),
			Log:    s.ConstructionLog(),
		}
	}
}

// CheckOk returns nil for an Ok node and a ResolutionError with the
// construction log otherwise.
func (s *ContainerService) CheckOk() error {
	switch s.status {
	case StatusOk:
		return nil
	case StatusNotResolved:
		return &ResolutionError{
			Reason: "no implementations for " + typeName(s.name.Type),
			Log:    s.ConstructionLog(),
		}
	default:
		reason := s.errMessage
		if reason == "" {
			reason = fmt.Sprintf("can't resolve %s: %s", s.name, s.status)
		}
		return &ResolutionError{Reason: reason, Log: s.ConstructionLog()}
	}
}
