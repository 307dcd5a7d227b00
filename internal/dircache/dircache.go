// Package dircache implements the directory cache (spec §4.3): a
// digest-keyed weak index backed by Go's weak pointers, plus a small
// ring of strong references that keeps the most recently touched
// directories alive for a retention window regardless of GC pressure.
//
// Go has no destructors, so spec §9's "weak indexing with destructor
// cleanup" design is realized with runtime.AddCleanup: when a cached
// Directory becomes unreachable and is collected, its cleanup callback
// removes the now-dangling weak-index entry. Get also prunes lazily, so
// correctness never depends on the cleanup having already run.
package dircache

import (
	"sync"
	"weak"

	"runtime"

	"github.com/intellitree/casbak/internal/dirmodel"
)

// DefaultCapacity is the ring's default retention window.
const DefaultCapacity = 32

// Cache is a single-threaded-owner directory cache; concurrent access
// must be serialized by the caller (the kernel), mirroring spec §4.3 and
// §5's concurrency model. The internal mutex only guards against the
// asynchronous cleanup callbacks racing with Get/Put, not against
// multiple owner goroutines.
type Cache struct {
	mu   sync.Mutex
	weak map[string]weak.Pointer[dirmodel.Directory]

	ring     []*dirmodel.Directory
	ringNext int
}

// New creates a cache whose strong-reference ring holds capacity
// entries. capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		weak: make(map[string]weak.Pointer[dirmodel.Directory]),
		ring: make([]*dirmodel.Directory, capacity),
	}
}

// Get returns the live Directory cached under digest, or nil if none is
// present — either because it was never put, or because it was weakly
// held and has since been reclaimed.
func (c *Cache) Get(digest string) *dirmodel.Directory {
	c.mu.Lock()
	defer c.mu.Unlock()
	wp, ok := c.weak[digest]
	if !ok {
		return nil
	}
	dir := wp.Value()
	if dir == nil {
		delete(c.weak, digest)
		return nil
	}
	return dir
}

// Put inserts dir so that it is retrievable by dir.Digest and protected
// from reclamation for at least the next capacity-1 Put calls.
func (c *Cache) Put(dir *dirmodel.Directory) {
	if dir == nil || dir.Digest == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.weak[dir.Digest] = weak.Make(dir)
	runtime.AddCleanup(dir, c.reclaimed, dir.Digest)

	c.ring[c.ringNext] = dir
	c.ringNext = (c.ringNext + 1) % len(c.ring)
}

// reclaimed runs (possibly on another goroutine, asynchronously to any
// Put/Get) once the Directory last stored under digest has been
// collected. It only removes the index entry if it still points at a
// reclaimed value, so it cannot race-delete a newer Put under the same
// digest.
func (c *Cache) reclaimed(digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wp, ok := c.weak[digest]; ok && wp.Value() == nil {
		delete(c.weak, digest)
	}
}

// Len returns the number of live weak-index entries, pruning dead ones
// first. Intended for tests and diagnostics, not the hot path.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for digest, wp := range c.weak {
		if wp.Value() == nil {
			delete(c.weak, digest)
		}
	}
	return len(c.weak)
}
