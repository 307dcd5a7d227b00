package cas

import (
	"bytes"
	"io"
	"testing"
)

func TestSum(t *testing.T) {
	data := []byte("hello world")
	d1 := Sum(data)
	d2 := Sum(data)
	if d1 != d2 {
		t.Error("same data should produce same digest")
	}
	if d1 == Sum([]byte("hello world!")) {
		t.Error("different data should produce different digests")
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	data := []byte("test data")

	digest, err := s.PutScalar(data)
	if err != nil {
		t.Fatalf("PutScalar: %v", err)
	}

	ok, err := s.Validate(digest)
	if err != nil || !ok {
		t.Fatalf("Validate: ok=%v err=%v", ok, err)
	}

	handle, ok, err := s.Get(digest)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected blob to be present")
	}
	if handle.Digest() != digest {
		t.Errorf("handle digest mismatch: got %s want %s", handle.Digest(), digest)
	}
	n, err := handle.Len()
	if err != nil || n != int64(len(data)) {
		t.Errorf("Len() = %d, %v; want %d, nil", n, err, len(data))
	}
	got, err := io.ReadAll(handle)
	if err != nil {
		t.Fatalf("read handle: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("retrieved data should match original")
	}
}

func TestMemoryStoreMiss(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.Get(Sum([]byte("never stored")))
	if err != nil {
		t.Fatalf("Get on miss returned error: %v", err)
	}
	if ok {
		t.Error("Get should report ok=false for an absent digest")
	}
}

func TestMemoryStoreHashOfNull(t *testing.T) {
	s := NewMemoryStore()
	want := Sum(nil)
	if got := s.HashOfNull(); got != want {
		t.Errorf("HashOfNull() = %s, want %s", got, want)
	}
}

func TestMemoryStorePutHandleDeduplicates(t *testing.T) {
	s := NewMemoryStore()
	data := []byte("dedup me")
	d1, err := s.PutHandle(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("PutHandle: %v", err)
	}
	d2, err := s.PutScalar(data)
	if err != nil {
		t.Fatalf("PutScalar: %v", err)
	}
	if d1 != d2 {
		t.Errorf("identical content should yield identical digests: %s != %s", d1, d2)
	}
	if s.Len() != 1 {
		t.Errorf("expected a single stored blob, got %d", s.Len())
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	data := []byte("file-backed content, compressed at rest")
	digest, err := s.PutScalar(data)
	if err != nil {
		t.Fatalf("PutScalar: %v", err)
	}

	handle, ok, err := s.Get(digest)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	got, err := io.ReadAll(handle)
	if err != nil {
		t.Fatalf("read handle: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("round-tripped content should match original")
	}

	// Re-putting identical content must be a no-op, not an error.
	if _, err := s.PutScalar(data); err != nil {
		t.Errorf("re-putting existing content failed: %v", err)
	}
}

func TestFileStoreMiss(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	_, ok, err := s.Get(Sum([]byte("absent")))
	if err != nil {
		t.Fatalf("Get on miss returned error: %v", err)
	}
	if ok {
		t.Error("Get should report ok=false for an absent digest")
	}
}
