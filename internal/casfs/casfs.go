// Package casfs implements the virtual filesystem layer over a content
// addressable store (spec §4.4-§4.6): the kernel that owns the CAS
// handle, the directory cache, and an in-memory overlay of pending
// edits, plus path resolution and commit/rollback of that overlay.
package casfs

import (
	"fmt"
	"io"

	"github.com/intellitree/casbak/internal/cas"
	"github.com/intellitree/casbak/internal/cferrors"
	"github.com/intellitree/casbak/internal/dircache"
	"github.com/intellitree/casbak/internal/dircodec"
	"github.com/intellitree/casbak/internal/dirmodel"
)

// Filesystem is the CAS-FS kernel. Like the directory cache it wraps, it
// is designed for a single-threaded owner (spec §5); concurrent access
// from multiple goroutines must be serialized by the embedder.
type Filesystem struct {
	store           cas.Store
	registry        *dircodec.Registry
	codec           dircodec.Codec
	cache           *dircache.Cache
	caseInsensitive bool

	emptyDigest cas.Digest
	rootEntry   dirmodel.DirEntry
	overlay     *overlayNode
}

// Option configures a Filesystem at construction time.
type Option func(*options)

type options struct {
	registry        *dircodec.Registry
	codec           dircodec.Codec
	cacheCapacity   int
	caseInsensitive bool
	rootEntry       *dirmodel.DirEntry
}

// WithRegistry overrides the codec registry used to decode directory
// blobs (default dircodec.Default).
func WithRegistry(r *dircodec.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithCodec selects the codec used to encode newly-written directories
// that have no underlying committed directory to inherit a format from
// (default the registry's DefaultFormat codec).
func WithCodec(codec dircodec.Codec) Option {
	return func(o *options) { o.codec = codec }
}

// WithCacheCapacity sets the directory cache's strong-reference ring
// size (default dircache.DefaultCapacity).
func WithCacheCapacity(n int) Option {
	return func(o *options) { o.cacheCapacity = n }
}

// WithCaseInsensitive enables case-folded name lookups (default false).
func WithCaseInsensitive(v bool) Option {
	return func(o *options) { o.caseInsensitive = v }
}

// WithRootEntry reopens an existing snapshot by root entry instead of
// starting from an empty tree.
func WithRootEntry(e dirmodel.DirEntry) Option {
	return func(o *options) { o.rootEntry = &e }
}

// New constructs a Filesystem backed by store. With no WithRootEntry
// option it starts out as an empty directory tree.
func New(store cas.Store, opts ...Option) (*Filesystem, error) {
	o := options{
		registry:      dircodec.Default,
		cacheCapacity: dircache.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.codec == nil {
		codec, ok := o.registry.Lookup(dircodec.DefaultFormat)
		if !ok {
			return nil, fmt.Errorf("casfs: registry has no codec for the default format")
		}
		o.codec = codec
	}

	emptyBlob, err := dircodec.EncodeBlob(o.codec, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("casfs: encode empty directory: %w", err)
	}
	emptyDigest, err := store.PutScalar(emptyBlob)
	if err != nil {
		return nil, fmt.Errorf("%w: storing empty directory: %v", cferrors.ErrCasIO, err)
	}

	root := dirmodel.DirEntry{Name: "", Type: dirmodel.TypeDir, Ref: string(emptyDigest)}
	if o.rootEntry != nil {
		root = *o.rootEntry
	}

	return &Filesystem{
		store:           store,
		registry:        o.registry,
		codec:           o.codec,
		cache:           dircache.New(o.cacheCapacity),
		caseInsensitive: o.caseInsensitive,
		emptyDigest:     emptyDigest,
		rootEntry:       root,
	}, nil
}

// EmptyDigest returns the cached digest of an empty directory under this
// filesystem's codec (spec §4.1's "empty-directory shortcut").
func (fs *Filesystem) EmptyDigest() cas.Digest { return fs.emptyDigest }

// RootEntry returns the current root entry. This is what a caller
// persists externally to name a snapshot.
func (fs *Filesystem) RootEntry() dirmodel.DirEntry { return fs.rootEntry }

// HasPendingEdits reports whether an overlay exists (set_path/update_path
// have been called since the last commit or rollback).
func (fs *Filesystem) HasPendingEdits() bool { return fs.overlay != nil }

// Get is a passthrough to the CAS.
func (fs *Filesystem) Get(digest cas.Digest) (cas.FileHandle, bool, error) {
	return fs.store.Get(digest)
}

// PutScalar is a passthrough to the CAS.
func (fs *Filesystem) PutScalar(data []byte) (cas.Digest, error) {
	return fs.store.PutScalar(data)
}

// PutFile is a passthrough to the CAS.
func (fs *Filesystem) PutFile(path string) (cas.Digest, error) {
	return fs.store.PutFile(path)
}

// PutHandle is a passthrough to the CAS.
func (fs *Filesystem) PutHandle(r io.Reader) (cas.Digest, error) {
	return fs.store.PutHandle(r)
}

// GetDir is the cache-aware decode: a cached Directory is returned when
// present, else the blob is fetched from the CAS, decoded, cached, and
// returned. It returns (nil, nil) if the CAS has no such blob, and fails
// with ErrBadDirectoryBlob if the blob exists but does not decode.
func (fs *Filesystem) GetDir(digest cas.Digest) (*dirmodel.Directory, error) {
	if dir := fs.cache.Get(string(digest)); dir != nil {
		return dir, nil
	}

	handle, ok, err := fs.store.Get(digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cferrors.ErrCasIO, err)
	}
	if !ok {
		return nil, nil
	}
	blob, err := io.ReadAll(handle)
	if err != nil {
		return nil, fmt.Errorf("%w: reading blob %s: %v", cferrors.ErrCasIO, digest, err)
	}

	dir, err := dircodec.DecodeBlob(fs.registry, blob, fs.caseInsensitive)
	if err != nil {
		return nil, err
	}
	dir.Digest = string(digest)
	fs.cache.Put(dir)
	return dir, nil
}

// decodeRef resolves a DirEntry.Ref (a CAS digest, possibly empty) to
// its Directory. An empty ref yields (nil, nil): spec treats "dir with
// no ref" as a directory elided at scan time, not an error by itself.
func (fs *Filesystem) decodeRef(ref string) (*dirmodel.Directory, error) {
	if ref == "" {
		return nil, nil
	}
	dir, err := fs.GetDir(cas.Digest(ref))
	if err != nil {
		return nil, err
	}
	if dir == nil {
		return nil, fmt.Errorf("%w: ref %s not present in store", cferrors.ErrCasIO, ref)
	}
	return dir, nil
}

// Mkdir installs a pending empty directory at names, referencing the
// cached empty-directory digest, fabricating any missing intermediate
// directories.
func (fs *Filesystem) Mkdir(names []string) error {
	leaf := names[len(names)-1]
	return fs.SetPath(names, Set(dirmodel.DirEntry{Name: leaf, Type: dirmodel.TypeDir, Ref: string(fs.emptyDigest)}), Flags{FollowSymlinks: true, Mkdir: 1})
}

// Touch installs a pending empty file at names, fabricating any missing
// intermediate directories.
func (fs *Filesystem) Touch(names []string) error {
	digest, err := fs.store.PutScalar(nil)
	if err != nil {
		return fmt.Errorf("%w: %v", cferrors.ErrCasIO, err)
	}
	leaf := names[len(names)-1]
	entry := dirmodel.DirEntry{Name: leaf, Type: dirmodel.TypeFile, Ref: string(digest)}
	return fs.SetPath(names, Set(entry), Flags{FollowSymlinks: true, Mkdir: 1})
}

// Unlink installs a DELETED override at names.
func (fs *Filesystem) Unlink(names []string) error {
	return fs.SetPath(names, Delete(), Flags{FollowSymlinks: true})
}
