package extractor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/intellitree/casbak/internal/cas"
	"github.com/intellitree/casbak/internal/casfs"
	"github.com/intellitree/casbak/internal/dirmodel"
)

func TestExtractRoundTrip(t *testing.T) {
	store := cas.NewMemoryStore()
	fs, err := casfs.New(store)
	if err != nil {
		t.Fatalf("casfs.New: %v", err)
	}

	fileDigest, err := store.PutScalar([]byte("contents"))
	if err != nil {
		t.Fatalf("PutScalar: %v", err)
	}
	if err := fs.SetPath([]string{"", "dir", "file.txt"}, casfs.Set(dirmodel.DirEntry{Type: dirmodel.TypeFile, Ref: string(fileDigest)}), casfs.Flags{FollowSymlinks: true, Mkdir: 1}); err != nil {
		t.Fatalf("SetPath: %v", err)
	}
	if err := fs.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	dest := t.TempDir()
	x := New(fs)
	if err := x.Extract(cas.Digest(fs.RootEntry().Ref), dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "dir", "file.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "contents" {
		t.Errorf("extracted content = %q, want %q", data, "contents")
	}
}

func TestExtractEmptyDirectory(t *testing.T) {
	store := cas.NewMemoryStore()
	fs, err := casfs.New(store)
	if err != nil {
		t.Fatalf("casfs.New: %v", err)
	}
	dest := t.TempDir()
	x := New(fs)
	if err := x.Extract(fs.EmptyDigest(), filepath.Join(dest, "out")); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if info, err := os.Stat(filepath.Join(dest, "out")); err != nil || !info.IsDir() {
		t.Fatalf("expected an empty directory to be created: err=%v", err)
	}
}
