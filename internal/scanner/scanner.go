// Package scanner walks a real directory tree and builds the
// content-addressable Directory blobs that describe it, storing file
// contents and encoded directories through a cas.Store as it goes. It is
// the "external collaborator" spec §6 describes as feeding the kernel:
// scanner never touches casfs's overlay, it only produces refs a caller
// then installs with SetPath/commit.
package scanner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/intellitree/casbak/internal/cas"
	"github.com/intellitree/casbak/internal/dircodec"
	"github.com/intellitree/casbak/internal/dirmodel"
)

// Scanner builds directory blobs from the real filesystem.
type Scanner struct {
	store    cas.Store
	codec    dircodec.Codec
	registry *dircodec.Registry
}

// New creates a Scanner that stores through store, encoding directories
// with codec. Decoding a dir_hint's children uses registry (dircodec.Default
// if registry is nil).
func New(store cas.Store, codec dircodec.Codec, registry *dircodec.Registry) *Scanner {
	if registry == nil {
		registry = dircodec.Default
	}
	return &Scanner{store: store, codec: codec, registry: registry}
}

// Scan walks the real directory at root and returns the digest of its
// encoded Directory blob. hint, if non-nil, is the Directory previously
// recorded for this same path: a child whose name, size, and mtime still
// match is assumed unchanged and its stored ref and access time are
// reused rather than re-hashing the file's content (spec §6's dir_hint optimization). For a
// subdirectory child that still looks unchanged by the same test, its
// own previously recorded Directory is decoded and passed down as the
// hint for that recursive Scan call.
func (s *Scanner) Scan(root string, hint *dirmodel.Directory) (cas.Digest, error) {
	infos, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("scanner: read %s: %w", root, err)
	}

	entries := make([]dirmodel.DirEntry, 0, len(infos))
	for _, de := range infos {
		path := filepath.Join(root, de.Name())
		info, err := os.Lstat(path)
		if err != nil {
			return "", fmt.Errorf("scanner: lstat %s: %w", path, err)
		}
		entry, err := s.scanEntry(path, de.Name(), info, hintFor(hint, de.Name()))
		if err != nil {
			return "", err
		}
		entries = append(entries, entry)
	}
	dirmodel.SortEntries(entries)

	blob, err := dircodec.EncodeBlob(s.codec, entries, nil)
	if err != nil {
		return "", fmt.Errorf("scanner: encode %s: %w", root, err)
	}
	return s.store.PutScalar(blob)
}

func hintFor(hint *dirmodel.Directory, name string) *dirmodel.DirEntry {
	if hint == nil {
		return nil
	}
	if e, ok := hint.Find(name, false); ok {
		return &e
	}
	return nil
}

func (s *Scanner) scanEntry(path, name string, info os.FileInfo, hint *dirmodel.DirEntry) (dirmodel.DirEntry, error) {
	size := info.Size()
	mtime := info.ModTime()
	mode := uint32(info.Mode().Perm())
	entry := dirmodel.DirEntry{
		Name:     name,
		Size:     &size,
		ModifyTS: &mtime,
		Mode:     &mode,
	}
	applyStat(&entry, info)

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return dirmodel.DirEntry{}, fmt.Errorf("scanner: readlink %s: %w", path, err)
		}
		entry.Type = dirmodel.TypeSymlink
		entry.Ref = target
		entry.Size = nil

	case info.IsDir():
		entry.Type = dirmodel.TypeDir
		var childHint *dirmodel.Directory
		if hint != nil && hint.Type == dirmodel.TypeDir && hint.Ref != "" {
			if decoded, err := s.decodeDir(hint.Ref); err == nil {
				childHint = decoded
			}
		}
		digest, err := s.Scan(path, childHint)
		if err != nil {
			return dirmodel.DirEntry{}, err
		}
		entry.Ref = string(digest)
		entry.Size = nil

	case info.Mode()&os.ModeDevice != 0:
		if info.Mode()&os.ModeCharDevice != 0 {
			entry.Type = dirmodel.TypeCharDev
		} else {
			entry.Type = dirmodel.TypeBlockDev
		}
		if entry.Dev != nil {
			entry.Ref = fmt.Sprintf("%d", *entry.Dev)
		}
		entry.Size = nil

	case info.Mode()&os.ModeNamedPipe != 0:
		entry.Type = dirmodel.TypePipe
		entry.Size = nil

	case info.Mode()&os.ModeSocket != 0:
		entry.Type = dirmodel.TypeSocket
		entry.Size = nil

	default:
		entry.Type = dirmodel.TypeFile
		if hint != nil && hint.Type == dirmodel.TypeFile && hint.Size != nil && *hint.Size == size &&
			hint.ModifyTS != nil && hint.ModifyTS.Equal(mtime) {
			entry.Ref = hint.Ref
			// The previous scan's own read of the file may have moved its
			// atime; keep the recorded one so an unchanged file encodes
			// identically.
			entry.Atime = hint.Atime
		} else {
			digest, err := s.store.PutFile(path)
			if err != nil {
				return dirmodel.DirEntry{}, fmt.Errorf("scanner: put file %s: %w", path, err)
			}
			entry.Ref = string(digest)
		}
	}

	return entry, nil
}

func (s *Scanner) decodeDir(ref string) (*dirmodel.Directory, error) {
	handle, ok, err := s.store.Get(cas.Digest(ref))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("scanner: hint ref %s not in store", ref)
	}
	blob, err := io.ReadAll(handle)
	if err != nil {
		return nil, err
	}
	// A dir_hint blob is the scanner's own prior output, already valid
	// under whatever case policy produced it; no policy is threaded
	// through here to re-check it.
	return dircodec.DecodeBlob(s.registry, blob, false)
}

// applyStat fills in the platform-specific metadata fields available via
// syscall.Stat_t on unix-like systems. info.Sys() not asserting is
// treated as "nothing more to record", not an error.
func applyStat(entry *dirmodel.DirEntry, info os.FileInfo) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	uid := int64(st.Uid)
	gid := int64(st.Gid)
	inode := int64(st.Ino)
	nlink := int64(st.Nlink)
	dev := int64(st.Rdev)
	blocks := st.Blocks
	blocksize := int64(st.Blksize)
	ctime := time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	atime := time.Unix(st.Atim.Sec, st.Atim.Nsec)

	entry.UID = &uid
	entry.GID = &gid
	entry.Inode = &inode
	entry.Nlink = &nlink
	entry.Dev = &dev
	entry.Blocks = &blocks
	entry.Blocksize = &blocksize
	entry.Ctime = &ctime
	entry.Atime = &atime
}
