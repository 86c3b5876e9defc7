package digraph

import "sync"

// ServiceCache is the container-wide singleton store: a concurrent map from
// canonical service names to cache slots. A slot is created at most once per
// key and lives for the container's lifetime.
type ServiceCache struct {
	slots sync.Map // string -> *CacheSlot
}

// GetOrCreate returns the slot for name, creating it atomically if absent.
func (c *ServiceCache) GetOrCreate(name ServiceName) *CacheSlot {
	key := name.key()
	if existing, ok := c.slots.Load(key); ok {
		return existing.(*CacheSlot)
	}
	slot := newCacheSlot(name)
	if raced, loaded := c.slots.LoadOrStore(key, slot); loaded {
		return raced.(*CacheSlot)
	}
	return slot
}

// Lookup returns the slot for name without creating one.
func (c *ServiceCache) Lookup(name ServiceName) (*CacheSlot, bool) {
	v, ok := c.slots.Load(name.key())
	if !ok {
		return nil, false
	}
	return v.(*CacheSlot), true
}

// each calls fn for every slot currently in the cache.
func (c *ServiceCache) each(fn func(slot *CacheSlot)) {
	c.slots.Range(func(_, v any) bool {
		fn(v.(*CacheSlot))
		return true
	})
}

// CacheSlot guards the instantiation of one service name. Exactly one
// resolver at a time may instantiate a given key; everyone else either waits
// on the slot or observes the already-sealed result.
type CacheSlot struct {
	name ServiceName

	mu           sync.Mutex
	cond         *sync.Cond
	instantiated bool
	service      *ContainerService
}

func newCacheSlot(name ServiceName) *CacheSlot {
	s := &CacheSlot{name: name}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// AcquireInstantiateLock either hands the caller exclusive instantiation
// rights (acquired=true: the slot mutex is now held and the caller MUST call
// ReleaseInstantiateLock on every exit path), or reports that the slot is
// already populated and returns the sealed service without acquiring
// anything.
func (s *CacheSlot) AcquireInstantiateLock() (service *ContainerService, acquired bool) {
	s.mu.Lock()
	if s.instantiated {
		service = s.service
		s.mu.Unlock()
		return service, false
	}
	return nil, true
}

// ReleaseInstantiateLock installs the sealed service, marks the slot
// instantiated, wakes every waiter and releases the mutex taken by
// AcquireInstantiateLock. A nil service (dependency-analysis mode) releases
// the lock without populating the slot, so a later real resolution still
// instantiates.
func (s *CacheSlot) ReleaseInstantiateLock(service *ContainerService) {
	if service != nil {
		s.service = service
		s.instantiated = true
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

// WaitForResolve blocks until the slot is instantiated and reports whether
// the stored service resolved Ok.
func (s *CacheSlot) WaitForResolve() bool {
	s.mu.Lock()
	for !s.instantiated {
		s.cond.Wait()
	}
	ok := s.service != nil && s.service.Status() == StatusOk
	s.mu.Unlock()
	return ok
}

// Service returns the sealed service if the slot is populated.
func (s *CacheSlot) Service() (*ContainerService, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.instantiated || s.service == nil {
		return nil, false
	}
	return s.service, true
}
