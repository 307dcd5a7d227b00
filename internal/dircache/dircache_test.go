package dircache

import (
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/intellitree/casbak/internal/dirmodel"
)

func TestGetMiss(t *testing.T) {
	c := New(4)
	if got := c.Get("nonexistent"); got != nil {
		t.Errorf("Get on empty cache = %v, want nil", got)
	}
}

func TestPutGetSameDigest(t *testing.T) {
	c := New(4)
	dir := &dirmodel.Directory{Digest: "abc", Entries: nil}
	c.Put(dir)

	got := c.Get("abc")
	if got != dir {
		t.Fatalf("Get returned %v, want the exact Put'd *Directory", got)
	}
	if got.Digest != "abc" {
		t.Errorf("returned directory has digest %q, want %q", got.Digest, "abc")
	}
}

func TestRetentionWindow(t *testing.T) {
	const capacity = 4
	c := New(capacity)
	first := &dirmodel.Directory{Digest: "first"}
	c.Put(first)

	// Filling the ring with capacity-1 more entries must not evict
	// "first" yet: it is still referenced by the ring.
	for i := 0; i < capacity-1; i++ {
		c.Put(&dirmodel.Directory{Digest: fmt.Sprintf("filler-%d", i)})
	}
	if got := c.Get("first"); got != first {
		t.Error("entry evicted from the strong ring before its retention window elapsed")
	}

	// One more Put wraps the ring and drops the strong reference to
	// "first"; it may still be reachable via the weak index until GC
	// runs, so this only checks the strong path did its job above.
	c.Put(&dirmodel.Directory{Digest: "one-too-many"})
}

func TestReclaimPrunesWeakIndex(t *testing.T) {
	const capacity = 2
	c := New(capacity)

	digest := "transient"
	func() {
		dir := &dirmodel.Directory{Digest: digest}
		c.Put(dir)
		// Evict from the strong ring without leaving a local reference.
		for i := 0; i < capacity; i++ {
			c.Put(&dirmodel.Directory{Digest: fmt.Sprintf("filler-%d", i)})
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		runtime.GC()
		if c.Get(digest) == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("expected %q to be reclaimed and pruned from the weak index", digest)
}

func TestCacheNeverReturnsWrongDigest(t *testing.T) {
	c := New(8)
	for i := 0; i < 20; i++ {
		digest := fmt.Sprintf("digest-%d", i)
		c.Put(&dirmodel.Directory{Digest: digest})
		if got := c.Get(digest); got != nil && got.Digest != digest {
			t.Fatalf("Get(%q) returned directory with digest %q", digest, got.Digest)
		}
	}
}
