package repostore

import (
	"path/filepath"
	"testing"
	"time"
)

func TestAppendAndLatest(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "snapshots.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, found, err := s.Latest(); err != nil || found {
		t.Fatalf("Latest on empty store: found=%v err=%v", found, err)
	}

	now := time.Unix(1700000000, 0).UTC()
	snap, err := s.Append("digest-1", "/src", "first backup", now)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if snap.ID != 1 {
		t.Errorf("first snapshot ID = %d, want 1", snap.ID)
	}

	second, err := s.Append("digest-2", "/src", "second backup", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if second.ID != 2 {
		t.Errorf("second snapshot ID = %d, want 2", second.ID)
	}

	latest, found, err := s.Latest()
	if err != nil || !found {
		t.Fatalf("Latest: found=%v err=%v", found, err)
	}
	if latest.RootRef != "digest-2" {
		t.Errorf("latest.RootRef = %q, want digest-2", latest.RootRef)
	}

	got, found, err := s.Get(1)
	if err != nil || !found {
		t.Fatalf("Get(1): found=%v err=%v", found, err)
	}
	if got.RootRef != "digest-1" {
		t.Errorf("Get(1).RootRef = %q, want digest-1", got.RootRef)
	}

	all, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List returned %d snapshots, want 2", len(all))
	}
}

func TestSharedStoreRefCounting(t *testing.T) {
	dir := t.TempDir()
	// GetShared keys its singleton by exact backup directory path.
	a, err := GetShared(dir)
	if err != nil {
		t.Fatalf("GetShared: %v", err)
	}
	b, err := GetShared(dir)
	if err != nil {
		t.Fatalf("GetShared: %v", err)
	}
	if a.Store != b.Store {
		t.Error("two GetShared calls for the same directory returned different stores")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close a: %v", err)
	}
	if _, _, err := b.Latest(); err != nil {
		t.Errorf("store should still be open after one of two refs closed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close b: %v", err)
	}
}
