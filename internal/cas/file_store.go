package cas

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// FileStore implements Store on top of a local directory, using a
// two-level fan-out (first two hex digits as a subdirectory) to keep any
// one directory from growing too large. Blobs are stored zstd-compressed
// on disk; compression is transparent to callers, who always see the
// original bytes back out of Get/PutHandle.
type FileStore struct {
	root string
}

// NewFileStore creates (if necessary) and opens a file-backed store
// rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cas: create store root: %w", err)
	}
	return &FileStore{root: dir}, nil
}

func (f *FileStore) path(digest Digest) string {
	s := string(digest)
	if len(s) < 3 {
		return filepath.Join(f.root, "short", s)
	}
	return filepath.Join(f.root, s[:2], s[2:])
}

// Get implements Store.
func (f *FileStore) Get(digest Digest) (FileHandle, bool, error) {
	p := f.path(digest)
	raw, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cas: read %s: %w", digest, err)
	}
	data, err := decompress(raw)
	if err != nil {
		return nil, false, fmt.Errorf("cas: decompress %s: %w", digest, err)
	}
	if Sum(data) != digest {
		return nil, false, fmt.Errorf("%w: %s", ErrCorrupt, digest)
	}
	return newMemHandle(digest, data), true, nil
}

// PutScalar implements Store.
func (f *FileStore) PutScalar(data []byte) (Digest, error) {
	digest := Sum(data)
	p := f.path(digest)
	if _, err := os.Stat(p); err == nil {
		return digest, nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("cas: create blob dir: %w", err)
	}
	compressed, err := compress(data)
	if err != nil {
		return "", fmt.Errorf("cas: compress %s: %w", digest, err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return "", fmt.Errorf("cas: write blob: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("cas: rename blob into place: %w", err)
	}
	return digest, nil
}

// PutFile implements Store.
func (f *FileStore) PutFile(path string) (Digest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cas: put file %s: %w", path, err)
	}
	return f.PutScalar(data)
}

// PutHandle implements Store.
func (f *FileStore) PutHandle(r io.Reader) (Digest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("cas: put handle: %w", err)
	}
	return f.PutScalar(data)
}

// Validate implements Store.
func (f *FileStore) Validate(digest Digest) (bool, error) {
	_, ok, err := f.Get(digest)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// HashOfNull implements Store.
func (f *FileStore) HashOfNull() Digest { return nullDigest }

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
