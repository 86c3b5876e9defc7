package digraph

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// resolveCore is the recursive heart of the container. For one service name
// it detects cycles, maintains the contract stack, consults configuration,
// synchronizes on the singleton cache slot and dispatches to the
// instantiator, returning a sealed node.
func (c *Container) resolveCore(name ServiceName, createNew bool, args *argumentsSource, ctx *ResolutionContext) *ContainerService {
	if !ctx.beginConstructing(name) {
		// Cyclic re-entry: synthesize a one-off error node, never cached.
		return newErrorService(name, ctx.cycleMessage(name))
	}
	svc := c.resolveScoped(name, createNew, args, ctx)
	ctx.endConstructing(name)
	return svc
}

// resolveScoped pushes the name's contracts for the duration of the
// resolution and guarantees the stack returns to its entry state.
func (c *Container) resolveScoped(name ServiceName, createNew bool, args *argumentsSource, ctx *ResolutionContext) *ContainerService {
	pushed, duplicate, ok := ctx.contracts.Push(name.Contracts)
	if !ok {
		return newErrorService(name, fmt.Sprintf(
			"contract [%s] already declared, stack [%s]", duplicate, ctx.contracts.String()))
	}
	svc := c.resolveLocked(name, createNew, args, ctx)
	ctx.contracts.Pop(pushed)
	return svc
}

func (c *Container) resolveLocked(name ServiceName, createNew bool, args *argumentsSource, ctx *ResolutionContext) *ContainerService {
	config, usedByConfig, configErr := c.registry.Get(name.Type, &ctx.contracts)

	declared := ServiceName{Type: name.Type, Contracts: ctx.contracts.Snapshot()}
	if config != nil && config.factoryWithTarget != nil && len(ctx.stack) > 0 {
		// Targeted factories get one cache identity per requesting type.
		requester := ctx.stack[len(ctx.stack)-1]
		declared.Contracts = append(declared.Contracts, "->"+typeName(requester.name.Type))
	}

	var slot *CacheSlot
	if !createNew {
		slot = c.cache.GetOrCreate(declared)
		if cached, acquired := slot.AcquireInstantiateLock(); !acquired {
			c.trace("cache hit", declared)
			return cached
		}
		c.trace("instantiate lock acquired", declared)
	}

	if config == nil {
		config = emptyConfiguration
	}
	b := newServiceBuilder(c, ctx, declared, config)
	b.UseContracts(usedByConfig)
	ctx.stack = append(ctx.stack, b)

	if configErr != nil {
		b.SetError(configErr.Error())
	} else if alternatives, suffix := ctx.contracts.TryExpandUnions(c.registry); alternatives != nil {
		c.resolveUnion(b, name, alternatives, suffix, createNew, args, ctx)
	} else {
		b.createNew = createNew
		b.arguments = args
		c.instantiate(b)
	}

	ctx.stack = ctx.stack[:len(ctx.stack)-1]
	svc := b.Seal()
	if slot != nil {
		if ctx.analyzeDependenciesOnly {
			slot.ReleaseInstantiateLock(nil)
		} else {
			slot.ReleaseInstantiateLock(svc)
		}
	}
	c.trace("resolved "+svc.status.String(), declared)
	return svc
}

// resolveUnion resolves the type once per alternative contract list produced
// by union expansion and links every result into the parent builder.
func (c *Container) resolveUnion(b *ServiceBuilder, name ServiceName, alternatives [][]string, suffix int, createNew bool, args *argumentsSource, ctx *ResolutionContext) {
	popped := ctx.contracts.Pop(suffix)
	for _, alt := range alternatives {
		childName := ServiceName{Type: name.Type, Contracts: alt}
		child := c.resolveCore(childName, createNew, args, ctx)
		if !b.LinkChild(childName.String(), child) {
			break
		}
	}
	ctx.contracts.restore(popped)
	// Expanding a union consults every contract of the popped suffix.
	b.UseContracts(popped)
}

// trace emits a structured debug entry when a logger is configured.
func (c *Container) trace(msg string, name ServiceName) {
	if c.logger == nil {
		return
	}
	c.logger.WithFields(logrus.Fields{
		"type":      typeName(name.Type),
		"contracts": name.Contracts,
		"goroutine": goid(),
	}).Debug(msg)
}
