// Package cas implements the content-addressable store the filesystem
// kernel is built on: opaque binary blobs keyed by a BLAKE3 digest.
package cas

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"lukechampine.com/blake3"
)

// Digest is the hexadecimal BLAKE3-256 digest of a blob, the opaque
// string callers persist to name a snapshot.
type Digest string

// String implements fmt.Stringer.
func (d Digest) String() string { return string(d) }

// Empty reports whether d is the zero value (no digest).
func (d Digest) Empty() bool { return d == "" }

// Sum computes the digest of data.
func Sum(data []byte) Digest {
	h := blake3.Sum256(data)
	return Digest(hex.EncodeToString(h[:]))
}

// ErrNotFound names a missing digest for callers that need an error
// value. No Store method in this package returns it: Get reports absence
// via its bool return per the kernel's "file-handle | none" contract, and
// Validate via false.
var ErrNotFound = errors.New("cas: digest not found")

// ErrCorrupt is returned when a blob's content does not hash to the
// digest under which it was stored.
var ErrCorrupt = errors.New("cas: corrupted blob")

// FileHandle is a seekable, re-readable view of one stored blob.
type FileHandle interface {
	io.ReadSeeker
	// Len returns the total size of the blob in bytes.
	Len() (int64, error)
	// Digest returns the digest the handle was opened with.
	Digest() Digest
}

// Store is the CAS contract the filesystem kernel depends on (spec §6):
// blob insertion, retrieval, and digest computation. It is the sole
// external collaborator of this module's core.
type Store interface {
	// Get returns a handle for digest, or ok=false if no such blob exists.
	Get(digest Digest) (handle FileHandle, ok bool, err error)
	// PutScalar stores data verbatim and returns its digest.
	PutScalar(data []byte) (Digest, error)
	// PutFile stores the contents of the file at path and returns its digest.
	PutFile(path string) (Digest, error)
	// PutHandle streams r into the store and returns the resulting digest.
	PutHandle(r io.Reader) (Digest, error)
	// Validate reports whether digest names a blob actually present and
	// uncorrupted in the store.
	Validate(digest Digest) (bool, error)
	// HashOfNull returns the digest of the empty byte string.
	HashOfNull() Digest
}

var nullDigest = Sum(nil)

// memHandle is a FileHandle over an in-memory byte slice.
type memHandle struct {
	*bytes.Reader
	digest Digest
	size   int64
}

func (h *memHandle) Len() (int64, error) { return h.size, nil }
func (h *memHandle) Digest() Digest      { return h.digest }

func newMemHandle(digest Digest, data []byte) *memHandle {
	return &memHandle{Reader: bytes.NewReader(data), digest: digest, size: int64(len(data))}
}

// MemoryStore is an in-memory Store, suitable for tests and for any
// caller that does not need the blobs to outlive the process.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[Digest][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[Digest][]byte)}
}

// Get implements Store.
func (m *MemoryStore) Get(digest Digest) (FileHandle, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[digest]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return newMemHandle(digest, cp), true, nil
}

// PutScalar implements Store.
func (m *MemoryStore) PutScalar(data []byte) (Digest, error) {
	digest := Sum(data)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[digest]; !exists {
		cp := make([]byte, len(data))
		copy(cp, data)
		m.data[digest] = cp
	}
	return digest, nil
}

// PutFile implements Store.
func (m *MemoryStore) PutFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cas: put file %s: %w", path, err)
	}
	defer f.Close()
	return m.PutHandle(f)
}

// PutHandle implements Store.
func (m *MemoryStore) PutHandle(r io.Reader) (Digest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("cas: put handle: %w", err)
	}
	return m.PutScalar(data)
}

// Validate implements Store.
func (m *MemoryStore) Validate(digest Digest) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[digest]
	if !ok {
		return false, nil
	}
	return Sum(data) == digest, nil
}

// HashOfNull implements Store.
func (m *MemoryStore) HashOfNull() Digest { return nullDigest }

// Len returns the number of distinct blobs held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
