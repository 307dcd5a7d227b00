package casfs

import (
	"errors"
	"testing"

	"github.com/intellitree/casbak/internal/cas"
	"github.com/intellitree/casbak/internal/cferrors"
	"github.com/intellitree/casbak/internal/dirmodel"
)

func newFS(t *testing.T) (*Filesystem, cas.Store) {
	t.Helper()
	store := cas.NewMemoryStore()
	fs, err := New(store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return fs, store
}

func TestEmptyFilesystemDigestShortcut(t *testing.T) {
	fs, _ := newFS(t)
	if fs.EmptyDigest().Empty() {
		t.Fatal("EmptyDigest is empty")
	}
	if fs.RootEntry().Ref != string(fs.EmptyDigest()) {
		t.Errorf("fresh filesystem root ref = %q, want the empty digest %q", fs.RootEntry().Ref, fs.EmptyDigest())
	}
}

func TestCommitCreatesAFile(t *testing.T) {
	fs, store := newFS(t)
	digest, err := store.PutScalar([]byte("hello"))
	if err != nil {
		t.Fatalf("PutScalar: %v", err)
	}
	if err := fs.SetPath([]string{"", "greeting.txt"}, Set(dirmodel.DirEntry{Type: dirmodel.TypeFile, Ref: string(digest)}), DefaultFlags()); err != nil {
		t.Fatalf("SetPath: %v", err)
	}
	if err := fs.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if fs.HasPendingEdits() {
		t.Error("overlay should be cleared after commit")
	}

	stack, err := fs.ResolvePath([]string{"", "greeting.txt"}, DefaultFlags())
	if err != nil {
		t.Fatalf("ResolvePath after commit: %v", err)
	}
	if len(stack) != 2 || stack[1].Ref != string(digest) {
		t.Fatalf("resolved stack = %+v, want [root, greeting.txt]", stack)
	}
}

func TestSymlinkResolution(t *testing.T) {
	fs, store := newFS(t)
	targetDigest, _ := store.PutScalar([]byte("target contents"))
	if err := fs.SetPath([]string{"", "target"}, Set(dirmodel.DirEntry{Type: dirmodel.TypeFile, Ref: string(targetDigest)}), DefaultFlags()); err != nil {
		t.Fatalf("set target: %v", err)
	}
	if err := fs.SetPath([]string{"", "link"}, Set(dirmodel.DirEntry{Type: dirmodel.TypeSymlink, Ref: "/target"}), DefaultFlags()); err != nil {
		t.Fatalf("set link: %v", err)
	}
	if err := fs.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	stack, err := fs.ResolvePath([]string{"", "link"}, DefaultFlags())
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if len(stack) != 2 || stack[1].Ref != string(targetDigest) {
		t.Fatalf("resolving a symlink gave %+v, want the target entry", stack)
	}
}

func TestDotDotThroughASymlink(t *testing.T) {
	fs, _ := newFS(t)
	if err := fs.Mkdir([]string{"", "b", "c"}); err != nil {
		t.Fatalf("Mkdir b/c: %v", err)
	}
	if err := fs.SetPath([]string{"", "a"}, Set(dirmodel.DirEntry{Type: dirmodel.TypeSymlink, Ref: "/b/c"}), DefaultFlags()); err != nil {
		t.Fatalf("set symlink a: %v", err)
	}
	if err := fs.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	stack, err := fs.ResolvePath([]string{"", "a", ".."}, DefaultFlags())
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if len(stack) != 2 {
		t.Fatalf("resolving a/.. through a symlink to /b/c gave %d entries, want 2 (root, b)", len(stack))
	}
	bEntry, err := fs.ResolvePath([]string{"", "b"}, DefaultFlags())
	if err != nil {
		t.Fatalf("ResolvePath b: %v", err)
	}
	if stack[1].Ref != bEntry[1].Ref {
		t.Errorf("a/.. resolved to %+v, want the directory named \"b\"", stack[1])
	}
}

func TestUnlinkToEmptyDirectoryShortcut(t *testing.T) {
	fs, _ := newFS(t)
	if err := fs.Touch([]string{"", "only.txt"}); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if err := fs.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if fs.RootEntry().Ref == string(fs.EmptyDigest()) {
		t.Fatal("root should not be the empty digest once it has a child")
	}

	if err := fs.Unlink([]string{"", "only.txt"}); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if err := fs.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if fs.RootEntry().Ref != string(fs.EmptyDigest()) {
		t.Errorf("root ref after unlinking the only child = %q, want the empty digest %q", fs.RootEntry().Ref, fs.EmptyDigest())
	}
}

func TestCaseInsensitiveLookupPreservesStoredCase(t *testing.T) {
	store := cas.NewMemoryStore()
	fs, err := New(store, WithCaseInsensitive(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := fs.Touch([]string{"", "README.md"}); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if err := fs.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	stack, err := fs.ResolvePath([]string{"", "readme.md"}, DefaultFlags())
	if err != nil {
		t.Fatalf("case-insensitive lookup failed: %v", err)
	}
	if stack[1].Name != "README.md" {
		t.Errorf("lookup returned name %q, want the stored case %q", stack[1].Name, "README.md")
	}
}

func TestResolveMissingEntryFails(t *testing.T) {
	fs, _ := newFS(t)
	_, err := fs.ResolvePath([]string{"", "nope"}, DefaultFlags())
	if !errors.Is(err, cferrors.ErrNoSuchEntry) {
		t.Errorf("err = %v, want ErrNoSuchEntry", err)
	}
}

func TestResolveEscapesRoot(t *testing.T) {
	fs, _ := newFS(t)
	_, err := fs.ResolvePath([]string{"", ".."}, DefaultFlags())
	if !errors.Is(err, cferrors.ErrEscapesRoot) {
		t.Errorf("err = %v, want ErrEscapesRoot", err)
	}
}

func TestRollbackDiscardsPendingEdits(t *testing.T) {
	fs, _ := newFS(t)
	if err := fs.Touch([]string{"", "scratch.txt"}); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	fs.Rollback()
	if fs.HasPendingEdits() {
		t.Error("overlay should be nil after Rollback")
	}
	if _, err := fs.ResolvePath([]string{"", "scratch.txt"}, DefaultFlags()); !errors.Is(err, cferrors.ErrNoSuchEntry) {
		t.Errorf("rolled-back entry should not resolve, got err = %v", err)
	}
}

func TestMkdirFabricatesIntermediateDirectories(t *testing.T) {
	fs, _ := newFS(t)
	if err := fs.Touch([]string{"", "a", "b", "c.txt"}); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	stack, err := fs.ResolvePath([]string{"", "a", "b", "c.txt"}, DefaultFlags())
	if err != nil {
		t.Fatalf("ResolvePath before commit: %v", err)
	}
	if len(stack) != 4 {
		t.Fatalf("stack = %+v, want 4 entries", stack)
	}
	if err := fs.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := fs.ResolvePath([]string{"", "a", "b", "c.txt"}, DefaultFlags()); err != nil {
		t.Fatalf("ResolvePath after commit: %v", err)
	}
}

func TestPathFacade(t *testing.T) {
	fs, store := newFS(t)
	digest, _ := store.PutScalar([]byte("data"))
	p := fs.At("", "file.txt")
	if err := p.Set(Set(dirmodel.DirEntry{Type: dirmodel.TypeFile, Ref: string(digest)}), DefaultFlags()); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !p.Exists() {
		t.Error("Exists() = false after Set")
	}
	typ, err := p.Type()
	if err != nil {
		t.Fatalf("Type: %v", err)
	}
	if typ != dirmodel.TypeFile {
		t.Errorf("Type() = %q, want file", typ)
	}
	handle, ok, err := p.Open()
	if err != nil || !ok {
		t.Fatalf("Open: ok=%v err=%v", ok, err)
	}
	if d := handle.Digest(); d != digest {
		t.Errorf("handle digest = %q, want %q", d, digest)
	}
}
