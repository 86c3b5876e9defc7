package digraph

import (
	"fmt"
	"reflect"
	"strings"
)

// instantiate fills a builder with instances for its type, dispatching on
// the type shape and the merged configuration. Precondition checks run in
// priority order; the first match wins.
func (c *Container) instantiate(b *ServiceBuilder) {
	t := b.name.Type
	cfg := b.configuration
	switch {
	case c.introspector.IsSimpleType(t):
		b.SetErrorf("can't create simple type %s", typeName(t))
	case t == containerType:
		b.AddInstance(c, false)
	case cfg.instanceAssigned:
		b.AddInstance(cfg.instance, cfg.ownedByDefault(true))
	case cfg.factory != nil:
		c.instantiateFromFactory(b, func() (any, error) {
			return cfg.factory(c)
		})
	case cfg.factoryWithTarget != nil:
		var target reflect.Type
		if requester := b.ctx.requesterOf(b); requester != nil {
			target = requester.name.Type
		}
		c.instantiateFromFactory(b, func() (any, error) {
			return cfg.factoryWithTarget(c, target)
		})
	case c.introspector.IsPerRequest(t) && !b.createNew:
		b.SetErrorf("%s is per-request and can't be resolved as a singleton, use Create or a factory parameter instead", typeName(t))
	case t.Kind() == reflect.Interface:
		c.instantiateInterface(b)
	default:
		c.instantiateImplementation(b)
	}
	c.applyInstanceFilter(b)
}

func (c *Container) instantiateFromFactory(b *ServiceBuilder, fn func() (any, error)) {
	if b.ctx.analyzeDependenciesOnly {
		b.markResolvedWithoutInstance()
		return
	}
	v, err := fn()
	if err != nil {
		b.SetErrorf("factory of %s failed: %v", typeName(b.name.Type), err)
		return
	}
	b.AddInstance(v, b.configuration.ownedByDefault(false))
}

func (c *Container) applyInstanceFilter(b *ServiceBuilder) {
	filter := b.configuration.instanceFilter
	if filter == nil || len(b.instances) == 0 {
		return
	}
	kept := b.instances[:0:0]
	for _, e := range b.instances {
		if filter(e.value) {
			kept = append(kept, e)
		}
	}
	if dropped := len(b.instances) - len(kept); dropped > 0 {
		b.instances = kept
		b.comment = fmt.Sprintf("instance filter dropped %d instance(s)", dropped)
	}
}

// instantiateInterface collects implementation candidates for an abstract
// type and links one resolved child per accepted candidate. Rejected
// candidates stay in the log with the exclusion comment.
func (c *Container) instantiateInterface(b *ServiceBuilder) {
	t := b.name.Type
	cfg := b.configuration

	var candidates []*ImplementationCandidate
	addCandidate := func(impl reflect.Type, excluded bool, comment string) {
		for _, existing := range candidates {
			if existing.Type == impl {
				return
			}
		}
		candidates = append(candidates, &ImplementationCandidate{Type: impl, Excluded: excluded, Comment: comment})
	}
	for _, impl := range cfg.implementationTypes {
		addCandidate(impl, false, "")
	}
	if cfg.implementationTypes == nil || cfg.useAutosearch {
		for _, impl := range c.index.InheritorsOf(t) {
			if c.registry.isIgnoredImplementation(impl) {
				addCandidate(impl, true, "ignored implementation")
			} else {
				addCandidate(impl, false, "")
			}
		}
	}
	for _, selector := range c.selectors {
		selector(t, candidates)
	}

	for _, candidate := range candidates {
		if candidate.Excluded {
			b.AddDependency(dependencyNotResolved(typeName(candidate.Type), candidate.Comment))
			continue
		}
		childName := ServiceName{Type: candidate.Type}
		child := c.resolveCore(childName, b.createNew, b.arguments, b.ctx)
		if !b.LinkChild(typeName(candidate.Type), child) {
			break
		}
	}
	b.EndResolveDependencies()

	// When a single implementation already compiled a construction closure,
	// repeat Create calls for the interface can reuse it directly.
	if b.createNew && b.arguments == nil && b.status == StatusOk {
		var linked []*ContainerService
		for _, dep := range b.dependencies {
			if dep.service != nil && dep.service.status == StatusOk {
				linked = append(linked, dep.service)
			}
		}
		if len(linked) == 1 && linked[0].factory != nil {
			b.compiledFactory = linked[0].factory
		}
	}
}

// instantiateImplementation builds a concrete type: plugins first, then the
// synthesized constructor with one resolved dependency per parameter.
func (c *Container) instantiateImplementation(b *ServiceBuilder) {
	t := b.name.Type
	cfg := b.configuration
	if cfg.dontUse {
		b.comment = "ignored - DontUse"
		return
	}
	for _, plugin := range instantiationPlugins() {
		if plugin(c, b) {
			return
		}
	}
	if c.introspector.IsDelegate(t) {
		b.SetErrorf("can't create delegate %s", typeName(t))
		return
	}
	ctor, err := c.introspector.GetConstructor(t)
	if err != nil {
		b.SetError(err.Error())
		return
	}

	values := make([]reflect.Value, len(ctor.Parameters))
	var nameSlots []int
	for i, p := range ctor.Parameters {
		if p.Type == serviceNameType {
			// Filled with the final name once the used contracts are known.
			nameSlots = append(nameSlots, i)
			continue
		}
		dep, value := c.instantiateDependency(p, b)
		b.AddDependency(dep)
		if dep.status.isBad() {
			if !b.ctx.analyzeDependenciesOnly {
				return
			}
			continue
		}
		if dep.status == StatusNotResolved {
			// A required dependency stayed unresolved; the node stays
			// NotResolved so optional parents can still cope.
			if !b.ctx.analyzeDependenciesOnly {
				return
			}
			continue
		}
		values[i] = value
	}
	for _, depName := range cfg.implicitDependencies {
		child := c.resolveCore(depName, false, nil, b.ctx)
		dep := dependencyFromChild(depName.String(), child)
		dep.comment = "implicit"
		b.AddDependency(dep)
		if dep.status.isBad() && !b.ctx.analyzeDependenciesOnly {
			return
		}
	}
	b.EndResolveDependencies()

	if unused := b.unusedConfigurationKeys(); len(unused) > 0 {
		b.SetErrorf("unused dependency configurations [%s]", strings.Join(unused, ","))
		return
	}
	if b.ctx.analyzeDependenciesOnly {
		b.markResolvedWithoutInstance()
		return
	}

	finalName := b.finalName()
	for _, i := range nameSlots {
		values[i] = reflect.ValueOf(finalName)
	}
	construct := func() any { return ctor.New(values) }
	owned := cfg.ownedByDefault(false)

	if b.createNew || len(b.declaredContracts) == len(b.usedContracts()) {
		b.AddInstance(construct(), owned)
		if b.createNew && b.arguments == nil {
			b.compiledFactory = construct
		}
		return
	}

	// The node used strictly fewer contracts than declared: the instance
	// lives under the final name so equivalent requests share it.
	slot := c.cache.GetOrCreate(finalName)
	if cached, acquired := slot.AcquireInstantiateLock(); acquired {
		b.AddInstance(construct(), owned)
		slot.ReleaseInstantiateLock(b.sealAs(finalName))
	} else {
		b.Reuse(cached)
	}
}

// instantiateDependency produces the value for one constructor parameter,
// trying per-call arguments, configured constants and overrides before
// recursing into the resolver.
func (c *Container) instantiateDependency(p ParameterInfo, b *ServiceBuilder) (*ServiceDependency, reflect.Value) {
	cfg := b.configuration

	if v, ok := b.arguments.takeNamed(p.Name); ok {
		return c.constantDependency(p, v)
	}
	if v, ok := b.arguments.takeTyped(p.Type); ok {
		return c.constantDependency(p, v)
	}
	if cfg.parameterSource != nil {
		if v, ok := cfg.parameterSource.TryGet(p.Name, p.Type); ok {
			return c.constantDependency(p, v)
		}
	}

	depType := p.Type
	if key, override, ok := cfg.overrideFor(p.Name); ok {
		b.usedOverrideKeys[strings.ToLower(key)] = true
		switch {
		case override.valueAssigned:
			return c.constantDependency(p, override.value)
		case override.factory != nil:
			if b.ctx.analyzeDependenciesOnly {
				return &ServiceDependency{name: p.Name, comment: "factory", status: StatusOk}, reflect.Value{}
			}
			v, err := override.factory(c)
			if err != nil {
				return dependencyFailure(p.Name, fmt.Sprintf("factory of parameter [%s] failed: %v", p.Name, err)), reflect.Value{}
			}
			return c.constantDependency(p, v)
		case override.implementationType != nil:
			depType = override.implementationType
		}
	}

	if p.Resource != "" {
		r, err := c.introspector.OpenResource(p.Resource)
		if err != nil {
			return dependencyFailure(p.Name, fmt.Sprintf("can't find resource [%s]", p.Resource)), reflect.Value{}
		}
		return c.constantDependency(p, r)
	}

	if c.introspector.IsSimpleType(depType) {
		if p.HasDefault {
			v, err := parseDefault(p)
			if err != nil {
				return dependencyFailure(p.Name, fmt.Sprintf("bad default for parameter [%s]: %v", p.Name, err)), reflect.Value{}
			}
			return c.constantDependency(p, v)
		}
		return dependencyFailure(p.Name, fmt.Sprintf(
			"parameter [%s] of service [%s] is not configured", p.Name, typeName(b.name.Type))), reflect.Value{}
	}

	elemType, enumerable := c.introspector.UnwrapEnumerable(depType)
	depName := ServiceName{Type: elemType, Contracts: p.Contracts}
	child := c.resolveCore(depName, false, nil, b.ctx)

	switch {
	case child.status.isBad():
		return dependencyFromChild(p.Name, child), reflect.Value{}

	case enumerable:
		values := child.AllValues()
		slice := reflect.MakeSlice(depType, 0, len(values))
		for _, v := range values {
			slice = reflect.Append(slice, reflect.ValueOf(v))
		}
		return dependencyService(p.Name, child, slice.Interface()), slice

	case child.status == StatusNotResolved || len(child.instances) == 0:
		if p.HasDefault {
			v, err := parseDefault(p)
			if err != nil {
				return dependencyFailure(p.Name, fmt.Sprintf("bad default for parameter [%s]: %v", p.Name, err)), reflect.Value{}
			}
			return c.constantDependency(p, v)
		}
		if p.Optional {
			dep := dependencyService(p.Name, child, nil)
			dep.comment = "optional, not resolved"
			return dep, reflect.Zero(p.Type)
		}
		dep := dependencyFromChild(p.Name, child)
		dep.status = StatusNotResolved
		return dep, reflect.Value{}

	case len(child.instances) > 1:
		var lines []string
		for _, e := range child.instances {
			lines = append(lines, "\t"+fmt.Sprintf("%T", e.value))
		}
		return dependencyFailure(p.Name, fmt.Sprintf(
			"many implementations for [%s]\n%s", typeName(elemType), strings.Join(lines, "\n"))), reflect.Value{}

	default:
		value := child.instances[0].value
		rv, err := coerce(value, p.Type)
		if err != nil {
			return dependencyFailure(p.Name, err.Error()), reflect.Value{}
		}
		return dependencyService(p.Name, child, value), rv
	}
}

// constantDependency wraps a configured or per-call constant, converting it
// to the parameter type.
func (c *Container) constantDependency(p ParameterInfo, v any) (*ServiceDependency, reflect.Value) {
	rv, err := coerce(v, p.Type)
	if err != nil {
		return dependencyFailure(p.Name, err.Error()), reflect.Value{}
	}
	return dependencyConstant(p.Name, v), rv
}

// coerce converts v to the target type, accepting assignable and convertible
// values.
func coerce(v any, target reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(target), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(target) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(target) {
		return rv.Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("can't cast value of type %s to %s", typeName(rv.Type()), typeName(target))
}
