package digraph

import (
	"reflect"
	"sort"
	"strings"
)

// parameterOverride is a per-parameter-name configuration: a constant, a
// sub-factory, or a replacement implementation type.
type parameterOverride struct {
	valueAssigned      bool
	value              any
	factory            FactoryFunc
	implementationType reflect.Type
}

// ServiceConfiguration is the merged view of everything configured for a type
// under the active contract stack. All options are optional and independent
// unless validated otherwise by the configurator.
type ServiceConfiguration struct {
	instanceAssigned      bool
	instance              any
	factory               FactoryFunc
	factoryWithTarget     TargetedFactoryFunc
	implementationTypes   []reflect.Type
	ignoredImplementation bool
	dontUse               bool
	ownsInstance          *bool
	instanceFilter        InstanceFilter
	implicitDependencies  []ServiceName
	parameterOverrides    map[string]*parameterOverride
	parameterSource       ParameterSource
	useAutosearch         bool
}

var emptyConfiguration = &ServiceConfiguration{}

// overrideFor finds a parameter override by name, case-insensitive.
func (c *ServiceConfiguration) overrideFor(name string) (string, *parameterOverride, bool) {
	for key, ov := range c.parameterOverrides {
		if strings.EqualFold(key, name) {
			return key, ov, true
		}
	}
	return "", nil, false
}

// ownedByDefault reports whether an instance produced the given way should be
// disposed by the container when no explicit ownership was configured.
// Assigned instances belong to whoever created them; everything the container
// builds itself is container-owned.
func (c *ServiceConfiguration) ownedByDefault(assigned bool) bool {
	if c.ownsInstance != nil {
		return *c.ownsInstance
	}
	return !assigned
}

// merge overlays other on top of c. Set fields win; parameter overrides merge
// per key.
func (c *ServiceConfiguration) merge(other *ServiceConfiguration) {
	if other.instanceAssigned {
		c.instanceAssigned = true
		c.instance = other.instance
	}
	if other.factory != nil {
		c.factory = other.factory
	}
	if other.factoryWithTarget != nil {
		c.factoryWithTarget = other.factoryWithTarget
	}
	if other.implementationTypes != nil {
		c.implementationTypes = other.implementationTypes
	}
	if other.ignoredImplementation {
		c.ignoredImplementation = true
	}
	if other.dontUse {
		c.dontUse = true
	}
	if other.ownsInstance != nil {
		c.ownsInstance = other.ownsInstance
	}
	if other.instanceFilter != nil {
		c.instanceFilter = other.instanceFilter
	}
	if other.implicitDependencies != nil {
		c.implicitDependencies = append(c.implicitDependencies, other.implicitDependencies...)
	}
	if other.parameterSource != nil {
		c.parameterSource = other.parameterSource
	}
	if other.useAutosearch {
		c.useAutosearch = true
	}
	for key, ov := range other.parameterOverrides {
		if c.parameterOverrides == nil {
			c.parameterOverrides = make(map[string]*parameterOverride)
		}
		c.parameterOverrides[key] = ov
	}
}

// configurationEntry is one registration: a configuration scoped to a set of
// required contracts. err carries a deferred configuration mistake surfaced
// when the type is requested.
type configurationEntry struct {
	required []string
	config   *ServiceConfiguration
	err      error
	order    int
}

// ConfigurationRegistry is the immutable lookup the resolver consults:
// (type, contract stack) to merged configuration. It also owns the union
// contract table.
type ConfigurationRegistry struct {
	entries map[reflect.Type][]*configurationEntry
	unions  map[string][]string
	frozen  bool
	nextOrd int
}

func newConfigurationRegistry() *ConfigurationRegistry {
	return &ConfigurationRegistry{
		entries: make(map[reflect.Type][]*configurationEntry),
		unions:  make(map[string][]string),
	}
}

// Union returns the member list of a union contract.
func (r *ConfigurationRegistry) Union(name string) ([]string, bool) {
	members, ok := r.unions[strings.ToLower(name)]
	return members, ok
}

// Get merges every entry for t whose required contracts are all present on
// the stack, least specific first, and reports which stack contracts were
// consulted. When nothing applies it returns the shared empty configuration;
// the configuration is nil only together with an error.
func (r *ConfigurationRegistry) Get(t reflect.Type, stack *ContractsList) (*ServiceConfiguration, []string, error) {
	list := r.entries[t]
	if len(list) == 0 {
		return emptyConfiguration, nil, nil
	}
	items := stack.items
	matched := make([]*configurationEntry, 0, len(list))
	for _, e := range list {
		applies := true
		for _, req := range e.required {
			if !containsContract(items, req) {
				applies = false
				break
			}
		}
		if applies {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		return emptyConfiguration, nil, nil
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if len(matched[i].required) != len(matched[j].required) {
			return len(matched[i].required) < len(matched[j].required)
		}
		return matched[i].order < matched[j].order
	})
	merged := &ServiceConfiguration{}
	consulted := map[string]bool{}
	for _, e := range matched {
		if e.err != nil {
			return nil, nil, &ConfigurationError{Type: typeName(t), Err: e.err}
		}
		merged.merge(e.config)
		for _, req := range e.required {
			consulted[strings.ToLower(req)] = true
		}
	}
	var used []string
	for _, c := range items {
		if consulted[strings.ToLower(c)] {
			used = append(used, c)
		}
	}
	return merged, used, nil
}

// isIgnoredImplementation reports whether t was flagged as never usable as an
// automatic implementation, regardless of contract scope.
func (r *ConfigurationRegistry) isIgnoredImplementation(t reflect.Type) bool {
	for _, e := range r.entries[t] {
		if e.err == nil && e.config.ignoredImplementation {
			return true
		}
	}
	return false
}

// clone copies the registry so a sibling container can overlay more
// configuration without touching the original.
func (r *ConfigurationRegistry) clone() *ConfigurationRegistry {
	next := newConfigurationRegistry()
	next.nextOrd = r.nextOrd
	for t, list := range r.entries {
		copied := make([]*configurationEntry, len(list))
		copy(copied, list)
		next.entries[t] = copied
	}
	for name, members := range r.unions {
		next.unions[name] = members
	}
	return next
}
