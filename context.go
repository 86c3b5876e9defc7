package digraph

import "context"

// ContainerContext carries ambient key/value state that factories and
// lifecycle hooks can read through the container. Values are copied on write,
// so a ContainerContext handed to a container is safe to share.
type ContainerContext struct {
	context.Context
	values map[any]any
}

// NewContainerContext wraps a standard context.Context.
func NewContainerContext(parent context.Context) *ContainerContext {
	if parent == nil {
		parent = context.Background()
	}
	return &ContainerContext{Context: parent}
}

// WithValue returns a new ContainerContext with the key/value pair added.
// The receiver is not modified.
func (c *ContainerContext) WithValue(key, val any) *ContainerContext {
	next := &ContainerContext{
		Context: c.Context,
		values:  make(map[any]any, len(c.values)+1),
	}
	for k, v := range c.values {
		next.values[k] = v
	}
	next.values[key] = val
	return next
}

// Value looks up key in the container values first, then in the wrapped
// context.
func (c *ContainerContext) Value(key any) any {
	if c == nil {
		return nil
	}
	if v, ok := c.values[key]; ok {
		return v
	}
	if c.Context != nil {
		return c.Context.Value(key)
	}
	return nil
}

// mergeWith overlays the other context's values on top of this one's and
// returns the result. Used when cloning containers.
func (c *ContainerContext) mergeWith(other *ContainerContext) *ContainerContext {
	next := &ContainerContext{
		Context: c.Context,
		values:  make(map[any]any, len(c.values)),
	}
	for k, v := range c.values {
		next.values[k] = v
	}
	if other != nil {
		for k, v := range other.values {
			next.values[k] = v
		}
	}
	return next
}
