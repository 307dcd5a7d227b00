package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/intellitree/casbak/internal/cas"
	"github.com/intellitree/casbak/internal/dircodec"
)

func TestScanBuildsNestedTree(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("world"), 0644); err != nil {
		t.Fatal(err)
	}

	store := cas.NewMemoryStore()
	codec, _ := dircodec.Default.Lookup(dircodec.DefaultFormat)
	s := New(store, codec, nil)

	digest, err := s.Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	handle, ok, err := store.Get(digest)
	if err != nil || !ok {
		t.Fatalf("root blob not stored: ok=%v err=%v", ok, err)
	}
	blob := make([]byte, mustLen(t, handle))
	if _, err := handle.Read(blob); err != nil {
		t.Fatalf("read root blob: %v", err)
	}
	dir, err := dircodec.DecodeBlob(dircodec.Default, blob, false)
	if err != nil {
		t.Fatalf("decode root blob: %v", err)
	}
	if len(dir.Entries) != 2 {
		t.Fatalf("root has %d entries, want 2", len(dir.Entries))
	}
}

func mustLen(t *testing.T, h cas.FileHandle) int64 {
	t.Helper()
	n, err := h.Len()
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	return n
}

func TestScanReusesUnchangedHint(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	store := cas.NewMemoryStore()
	codec, _ := dircodec.Default.Lookup(dircodec.DefaultFormat)
	s := New(store, codec, nil)

	firstDigest, err := s.Scan(root, nil)
	if err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	before := store.Len()

	handle, _, _ := store.Get(firstDigest)
	blob := make([]byte, mustLen(t, handle))
	handle.Read(blob)
	hint, err := dircodec.DecodeBlob(dircodec.Default, blob, false)
	if err != nil {
		t.Fatalf("decode hint: %v", err)
	}

	secondDigest, err := s.Scan(root, hint)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if secondDigest != firstDigest {
		t.Errorf("unchanged tree produced a different digest: %q vs %q", secondDigest, firstDigest)
	}
	if store.Len() != before {
		t.Errorf("rescanning an unchanged tree stored %d new blobs, want 0", store.Len()-before)
	}
}
