// Package mock holds the shared service types used by the container tests.
package mock

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/centraunit/digraph"
)

// Core interfaces
type Database interface {
	Ping() string
}

type Cache interface {
	Get(key string) string
}

// Database implementations. The blank fields give each fixture a non-zero
// size, so separately created instances have distinct addresses.
type MemoryDB struct{ _ byte }

func (m *MemoryDB) Ping() string { return "memory" }

type DiskDB struct{ _ byte }

func (d *DiskDB) Ping() string { return "disk" }

// LocalCache depends on whichever database is in scope.
type LocalCache struct {
	DB Database
}

func (c *LocalCache) Get(key string) string { return "local:" + c.DB.Ping() }

// App is a two-level root over the cache.
type App struct {
	Cache Cache
}

// Circular dependency pair
type Chicken struct {
	Egg *Egg
}

type Egg struct {
	Chicken *Chicken
}

// Heavy is constructed through a slow factory in the concurrency tests.
type Heavy struct {
	Payload string
}

// Session is per-request: only reachable through Create or factories.
type Session struct {
	digraph.PerRequest
	_ byte
}

// Spawner gets a session factory injected.
type Spawner struct {
	NewSession func() *Session
}

// Greeting is created through an argument factory.
type Greeting struct {
	Message string
}

type Greeter struct {
	Build func(string) *Greeting
}

// Deferred resolves its database only when asked.
type Deferred struct {
	DB *digraph.Lazy[Database]
}

// Tunable exercises defaults and optional dependencies.
type Tunable struct {
	Limit int    `default:"42"`
	Name  string `default:"fallback"`
	Extra Cache  `optional:"true"`
}

// Router picks its database through a field contract.
type Router struct {
	Primary Database `contract:"primary"`
}

// SelfAware receives its own resolved identity.
type SelfAware struct {
	Who digraph.ServiceName
}

// Banner reads an embedded resource.
type Banner struct {
	Motd io.Reader `resource:"motd.txt"`
}

// Handler is a build-up target; only tagged fields are injected.
type Handler struct {
	DB       Database `inject:""`
	Fallback Cache    `inject:"optional"`
	Untagged string
}

// Introspective receives the container itself.
type Introspective struct {
	C *digraph.Container
}

// Audit is produced by a targeted factory, one per requesting type.
type Audit struct {
	Owner string
}

type ReportA struct {
	Audit *Audit
}

type ReportB struct {
	Audit *Audit
}

// Plain has an unconfigurable leaf parameter.
type Plain struct {
	Addr string
}

// BrokenError is a sentinel failure for factory tests.
type BrokenError struct{}

func (e *BrokenError) Error() string { return "backend unavailable" }

// FlakyResource fails to release.
type FlakyResource struct{}

func (f *FlakyResource) Dispose() error { return errors.New("resource is stuck") }

// CancelingResource reports a cancellation on release, which disposal
// swallows.
type CancelingResource struct{}

func (c *CancelingResource) Dispose() error { return context.Canceled }

// Journal records lifecycle events in order.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *Journal) Record(event string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, event)
}

func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.entries))
	copy(out, j.entries)
	return out
}

// Worker runs after construction and releases on dispose.
type Worker struct {
	Journal *Journal
}

func (w *Worker) Run() error {
	w.Journal.Record("worker.run")
	return nil
}

func (w *Worker) Dispose() error {
	w.Journal.Record("worker.dispose")
	return nil
}

// Coordinator depends on Worker; its hooks must fire after the worker's Run
// and before the worker's Dispose.
type Coordinator struct {
	Worker  *Worker
	Journal *Journal
}

func (c *Coordinator) Run() error {
	c.Journal.Record("coordinator.run")
	return nil
}

func (c *Coordinator) Dispose() error {
	c.Journal.Record("coordinator.dispose")
	return nil
}
