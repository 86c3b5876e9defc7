package digraph

import (
	"io/fs"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ConfigurationBuilder is the fluent surface used inside New and Clone to
// populate the registry, the inheritance index and the container's ambient
// collaborators. Once the container is built the registry is frozen.
type ConfigurationBuilder struct {
	registry  *ConfigurationRegistry
	index     *InheritanceIndex
	resources fs.FS
	logger    *logrus.Logger
	selectors []ImplementationSelector
	ctx       *ContainerContext
}

func newConfigurationBuilder(registry *ConfigurationRegistry, index *InheritanceIndex) *ConfigurationBuilder {
	return &ConfigurationBuilder{registry: registry, index: index}
}

// Register feeds concrete types into the inheritance index. Samples are zero
// instances, typically pointers: b.Register(&PostgresStore{}, &RedisCache{}).
func (b *ConfigurationBuilder) Register(samples ...any) *ConfigurationBuilder {
	for _, s := range samples {
		b.index.Add(reflect.TypeOf(s))
	}
	return b
}

// RegisterTypes is Register for callers that already hold reflect.Types.
func (b *ConfigurationBuilder) RegisterTypes(types ...reflect.Type) *ConfigurationBuilder {
	for _, t := range types {
		b.index.Add(t)
	}
	return b
}

// ForType starts configuring a type. Each call opens a fresh registration
// entry; contract scoping is applied with InContracts on the returned
// configurator.
func (b *ConfigurationBuilder) ForType(t reflect.Type) *ServiceConfigurator {
	if b.registry.frozen {
		panic("digraph: configuration is frozen, use Clone to overlay")
	}
	e := &configurationEntry{
		config: &ServiceConfiguration{},
		order:  b.registry.nextOrd,
	}
	b.registry.nextOrd++
	b.registry.entries[t] = append(b.registry.entries[t], e)
	return &ServiceConfigurator{builder: b, forType: t, entry: e}
}

// For is generic sugar over ForType.
func For[T any](b *ConfigurationBuilder) *ServiceConfigurator {
	return b.ForType(TypeOf[T]())
}

// DeclareUnion registers a union contract: resolving under name produces one
// instance per member and unions the results.
func (b *ConfigurationBuilder) DeclareUnion(name string, members ...string) *ConfigurationBuilder {
	b.registry.unions[strings.ToLower(name)] = members
	return b
}

// WithResources registers the filesystem that resource-tagged parameters are
// opened from, typically an embed.FS.
func (b *ConfigurationBuilder) WithResources(fsys fs.FS) *ConfigurationBuilder {
	b.resources = fsys
	return b
}

// WithLogger enables resolution tracing on the given logger.
func (b *ConfigurationBuilder) WithLogger(l *logrus.Logger) *ConfigurationBuilder {
	b.logger = l
	return b
}

// WithSelector appends an implementation selector consulted whenever
// interface candidates are collected.
func (b *ConfigurationBuilder) WithSelector(s ImplementationSelector) *ConfigurationBuilder {
	b.selectors = append(b.selectors, s)
	return b
}

// WithContext sets the ambient value bag that factories can read via
// Container.Context.
func (b *ConfigurationBuilder) WithContext(ctx *ContainerContext) *ConfigurationBuilder {
	b.ctx = ctx
	return b
}

// ServiceConfigurator accumulates options for one registration entry.
// Conflicting options are recorded as a deferred configuration error rather
// than failing the builder call.
type ServiceConfigurator struct {
	builder *ConfigurationBuilder
	forType reflect.Type
	entry   *configurationEntry
}

func (s *ServiceConfigurator) fail(err error) *ServiceConfigurator {
	if s.entry.err == nil {
		s.entry.err = err
	}
	return s
}

// InContracts scopes this registration to resolutions whose contract stack
// contains every given contract.
func (s *ServiceConfigurator) InContracts(contracts ...string) *ServiceConfigurator {
	if _, err := NewServiceName(s.forType, contracts); err != nil {
		return s.fail(err)
	}
	s.entry.required = contracts
	return s
}

// UseInstance reuses a pre-built instance. Mutually exclusive with the
// factory options.
func (s *ServiceConfigurator) UseInstance(v any) *ServiceConfigurator {
	if s.entry.config.factory != nil || s.entry.config.factoryWithTarget != nil {
		return s.fail(errors.New("instance and factory are mutually exclusive"))
	}
	s.entry.config.instanceAssigned = true
	s.entry.config.instance = v
	return s
}

// UseFactory builds the instance through the given factory.
func (s *ServiceConfigurator) UseFactory(f FactoryFunc) *ServiceConfigurator {
	if s.entry.config.instanceAssigned {
		return s.fail(errors.New("instance and factory are mutually exclusive"))
	}
	s.entry.config.factory = f
	return s
}

// UseTargetedFactory builds the instance through a factory that receives the
// requesting type; every distinct requester gets its own instance.
func (s *ServiceConfigurator) UseTargetedFactory(f TargetedFactoryFunc) *ServiceConfigurator {
	if s.entry.config.instanceAssigned {
		return s.fail(errors.New("instance and factory are mutually exclusive"))
	}
	s.entry.config.factoryWithTarget = f
	return s
}

// UseType pins the implementation candidate list, overriding the automatic
// inheritance scan.
func (s *ServiceConfigurator) UseType(types ...reflect.Type) *ServiceConfigurator {
	s.entry.config.implementationTypes = append(s.entry.config.implementationTypes, types...)
	return s
}

// UseAutosearch unions the explicit candidate list with scanned inheritors.
func (s *ServiceConfigurator) UseAutosearch() *ServiceConfigurator {
	s.entry.config.useAutosearch = true
	return s
}

// DontUse keeps the type resolvable only through explicit configuration
// elsewhere; direct instantiation is annotated and skipped.
func (s *ServiceConfigurator) DontUse() *ServiceConfigurator {
	s.entry.config.dontUse = true
	return s
}

// IgnoreImplementation excludes the type from automatic candidate scans.
func (s *ServiceConfigurator) IgnoreImplementation() *ServiceConfigurator {
	s.entry.config.ignoredImplementation = true
	return s
}

// OwnedByContainer decides whether the container disposes the instance.
func (s *ServiceConfigurator) OwnedByContainer(owned bool) *ServiceConfigurator {
	s.entry.config.ownsInstance = &owned
	return s
}

// WithInstanceFilter drops unwanted instances after construction.
func (s *ServiceConfigurator) WithInstanceFilter(f InstanceFilter) *ServiceConfigurator {
	s.entry.config.instanceFilter = f
	return s
}

// WithImplicitDependency resolves an extra dependency alongside the
// constructor parameters.
func (s *ServiceConfigurator) WithImplicitDependency(t reflect.Type, contracts ...string) *ServiceConfigurator {
	name, err := NewServiceName(t, contracts)
	if err != nil {
		return s.fail(err)
	}
	s.entry.config.implicitDependencies = append(s.entry.config.implicitDependencies, name)
	return s
}

// BindValue overrides a constructor parameter with a constant.
func (s *ServiceConfigurator) BindValue(param string, v any) *ServiceConfigurator {
	ov := s.override(param)
	ov.valueAssigned = true
	ov.value = v
	return s
}

// BindFactory overrides a constructor parameter with a sub-factory.
func (s *ServiceConfigurator) BindFactory(param string, f FactoryFunc) *ServiceConfigurator {
	s.override(param).factory = f
	return s
}

// BindType overrides the type a constructor parameter resolves to.
func (s *ServiceConfigurator) BindType(param string, t reflect.Type) *ServiceConfigurator {
	s.override(param).implementationType = t
	return s
}

// WithParameterSource supplies parameter constants by name before resolution
// is attempted.
func (s *ServiceConfigurator) WithParameterSource(src ParameterSource) *ServiceConfigurator {
	s.entry.config.parameterSource = src
	return s
}

func (s *ServiceConfigurator) override(param string) *parameterOverride {
	cfg := s.entry.config
	if cfg.parameterOverrides == nil {
		cfg.parameterOverrides = make(map[string]*parameterOverride)
	}
	ov, ok := cfg.parameterOverrides[param]
	if !ok {
		ov = &parameterOverride{}
		cfg.parameterOverrides[param] = ov
	}
	return ov
}
