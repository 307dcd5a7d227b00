package clicmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/intellitree/casbak/internal/cas"
	"github.com/intellitree/casbak/internal/casfs"
	"github.com/intellitree/casbak/internal/config"
	"github.com/intellitree/casbak/internal/dircodec"
	"github.com/intellitree/casbak/internal/dirmodel"
	"github.com/intellitree/casbak/internal/repostore"
)

// objectsDirName is the CAS blob store's subdirectory within a backup
// directory, the casbak analogue of the teacher's ".ivaldi" layout.
const objectsDirName = "objects"

// openedRepo bundles the handles a command needs against an existing
// backup directory, closed together via Close.
type openedRepo struct {
	cfg   *config.Config
	store *cas.FileStore
	hist  *repostore.SharedStore
	codec dircodec.Codec
}

func (r *openedRepo) Close() error {
	if r.hist != nil {
		return r.hist.Close()
	}
	return nil
}

// openRepo opens the CAS store, snapshot history, and config for an
// already-initialized backup directory.
func openRepo(dir string) (*openedRepo, error) {
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store, err := cas.NewFileStore(filepath.Join(dir, objectsDirName))
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}
	hist, err := repostore.GetShared(dir)
	if err != nil {
		return nil, fmt.Errorf("open snapshot history: %w", err)
	}
	codec, ok := dircodec.Default.Lookup(cfg.Backup.Format)
	if !ok {
		hist.Close()
		return nil, usageErrorf("unknown directory format %q", cfg.Backup.Format)
	}
	return &openedRepo{cfg: cfg, store: store, hist: hist, codec: codec}, nil
}

// filesystemAt builds a casfs.Filesystem reopened at rootRef ("" for an
// empty tree), per the repo's configured case policy and cache size.
func (r *openedRepo) filesystemAt(rootRef string) (*casfs.Filesystem, error) {
	opts := []casfs.Option{
		casfs.WithCodec(r.codec),
		casfs.WithCaseInsensitive(r.cfg.Backup.CaseInsensitive),
		casfs.WithCacheCapacity(r.cfg.Core.CacheCapacity),
	}
	if rootRef != "" {
		opts = append(opts, casfs.WithRootEntry(dirmodel.DirEntry{Type: dirmodel.TypeDir, Ref: rootRef}))
	}
	fs, err := casfs.New(r.store, opts...)
	if err != nil {
		return nil, fmt.Errorf("build filesystem: %w", err)
	}
	return fs, nil
}

// decodeDir decodes the directory blob named by ref directly from the
// object store, for callers (like import's dir_hint lookup) that need a
// one-off decode without standing up a Filesystem.
func (r *openedRepo) decodeDir(ref string) (*dirmodel.Directory, error) {
	if ref == "" {
		return nil, nil
	}
	handle, ok, err := r.store.Get(cas.Digest(ref))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	if !ok {
		return nil, fmt.Errorf("ref %s not present in object store", ref)
	}
	blob, err := io.ReadAll(handle)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	return dircodec.DecodeBlob(dircodec.Default, blob, r.cfg.Backup.CaseInsensitive)
}
