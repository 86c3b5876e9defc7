package digraph

import "strings"

// ResolutionContext is the per-request scratch state of one resolve or create
// call. It is owned by a single goroutine and never shared: the constructing
// set is the cycle detector, the builder stack provides the requesting type
// for targeted factories, and the contracts list is the active scope.
type ResolutionContext struct {
	container *Container

	constructing map[string]bool
	order        []ServiceName
	stack        []*ServiceBuilder
	contracts    ContractsList

	analyzeDependenciesOnly bool
}

func newResolutionContext(c *Container, analyzeOnly bool) *ResolutionContext {
	return &ResolutionContext{
		container:               c,
		constructing:            make(map[string]bool, 8),
		analyzeDependenciesOnly: analyzeOnly,
	}
}

// beginConstructing inserts name into the constructing set, reporting false
// when it is already there (a cycle).
func (ctx *ResolutionContext) beginConstructing(name ServiceName) bool {
	key := name.key()
	if ctx.constructing[key] {
		return false
	}
	ctx.constructing[key] = true
	ctx.order = append(ctx.order, name)
	return true
}

func (ctx *ResolutionContext) endConstructing(name ServiceName) {
	delete(ctx.constructing, name.key())
	ctx.order = ctx.order[:len(ctx.order)-1]
}

// cycleMessage renders the chain from the first occurrence of name back to
// name: "cyclic dependency A -> B -> A".
func (ctx *ResolutionContext) cycleMessage(name ServiceName) string {
	start := 0
	key := name.key()
	for i, n := range ctx.order {
		if n.key() == key {
			start = i
			break
		}
	}
	var parts []string
	for _, n := range ctx.order[start:] {
		parts = append(parts, typeName(n.Type))
	}
	parts = append(parts, typeName(name.Type))
	return "cyclic dependency " + strings.Join(parts, " -> ")
}

// requesterOf returns the builder that asked for the node currently being set
// up: the stack top before the node's own builder is pushed, or the one below
// it after.
func (ctx *ResolutionContext) requesterOf(b *ServiceBuilder) *ServiceBuilder {
	for i := len(ctx.stack) - 1; i >= 0; i-- {
		if ctx.stack[i] == b {
			if i > 0 {
				return ctx.stack[i-1]
			}
			return nil
		}
	}
	if len(ctx.stack) > 0 {
		return ctx.stack[len(ctx.stack)-1]
	}
	return nil
}
