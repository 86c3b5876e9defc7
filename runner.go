package digraph

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// ensureRunCalled initializes every Runnable below root exactly once,
// dependencies before their parents. Ordering is by top-sort index, which was
// stamped when each node left its cache slot.
func (c *Container) ensureRunCalled(root *ContainerService) error {
	var ordered []*ContainerService
	seen := make(map[*ContainerService]bool)
	var visit func(s *ContainerService)
	visit = func(s *ContainerService) {
		if seen[s] {
			return
		}
		seen[s] = true
		for _, dep := range s.dependencies {
			if dep.service != nil {
				visit(dep.service)
			}
		}
		ordered = append(ordered, s)
	}
	visit(root)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].topSortIndex < ordered[j].topSortIndex
	})
	for _, svc := range ordered {
		if err := svc.ensureRun(); err != nil {
			return err
		}
	}
	return nil
}

// ensureRun runs this node's own instances once. Instances linked in from
// children are skipped; their owning node runs them.
func (s *ContainerService) ensureRun() error {
	s.runOnce.Do(func() {
		for _, e := range s.instances {
			if !e.added {
				continue
			}
			r, ok := e.value.(Runnable)
			if !ok {
				continue
			}
			if err := r.Run(); err != nil {
				s.runErr = &RunError{Type: fmt.Sprintf("%T", e.value), Err: err}
				return
			}
		}
	})
	return s.runErr
}

// Dispose tears the container down: every container-owned Disposable is
// disposed in reverse construction order, failures are collected into one
// aggregate, and context cancellations are swallowed. Dispose is idempotent;
// public operations fail after the first call.
func (c *Container) Dispose() error {
	if !c.disposed.CompareAndSwap(false, true) {
		return nil
	}
	var services []*ContainerService
	c.cache.each(func(slot *CacheSlot) {
		if svc, ok := slot.Service(); ok {
			services = append(services, svc)
		}
	})
	sort.Slice(services, func(i, j int) bool {
		return services[i].topSortIndex > services[j].topSortIndex
	})
	seen := make(map[any]bool)
	var errs []error
	for _, svc := range services {
		for i := len(svc.instances) - 1; i >= 0; i-- {
			e := svc.instances[i]
			if !e.owned || e.value == nil || seen[e.value] {
				continue
			}
			seen[e.value] = true
			d, ok := e.value.(Disposable)
			if !ok {
				continue
			}
			if err := d.Dispose(); err != nil {
				if stderrors.Is(err, context.Canceled) {
					continue
				}
				errs = append(errs, errors.Wrapf(err, "dispose %T", e.value))
			}
		}
	}
	if len(errs) > 0 {
		return &DisposalError{Errors: errs}
	}
	return nil
}
