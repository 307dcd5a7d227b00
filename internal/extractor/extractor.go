// Package extractor walks a resolved Directory tree back onto the real
// filesystem: the inverse of scanner. It is the other external
// collaborator spec §6 anticipates, built only against casfs's public
// GetDir/Get API, never its overlay internals.
package extractor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/intellitree/casbak/internal/cas"
	"github.com/intellitree/casbak/internal/casfs"
	"github.com/intellitree/casbak/internal/dirmodel"
)

// Extractor materializes a committed snapshot under a destination
// directory on the real filesystem.
type Extractor struct {
	fs *casfs.Filesystem
}

// New creates an Extractor reading blobs and directories through fs.
func New(fs *casfs.Filesystem) *Extractor {
	return &Extractor{fs: fs}
}

// Extract writes the directory named by rootRef into destDir, which is
// created if it does not already exist.
func (x *Extractor) Extract(rootRef cas.Digest, destDir string) error {
	dir, err := x.fs.GetDir(rootRef)
	if err != nil {
		return fmt.Errorf("extractor: decode root %s: %w", rootRef, err)
	}
	return x.extractDir(dir, destDir)
}

func (x *Extractor) extractDir(dir *dirmodel.Directory, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("extractor: mkdir %s: %w", destDir, err)
	}
	if dir == nil {
		return nil
	}
	for _, e := range dir.Entries {
		target := filepath.Join(destDir, e.Name)
		if err := x.extractEntry(e, target); err != nil {
			return err
		}
	}
	return nil
}

func (x *Extractor) extractEntry(e dirmodel.DirEntry, target string) error {
	switch e.Type {
	case dirmodel.TypeDir:
		var child *dirmodel.Directory
		if e.Ref != "" {
			c, err := x.fs.GetDir(cas.Digest(e.Ref))
			if err != nil {
				return fmt.Errorf("extractor: decode %s: %w", target, err)
			}
			child = c
		}
		if err := x.extractDir(child, target); err != nil {
			return err
		}

	case dirmodel.TypeFile:
		if err := x.extractFile(e, target); err != nil {
			return err
		}

	case dirmodel.TypeSymlink:
		if err := os.Symlink(e.Ref, target); err != nil {
			return fmt.Errorf("extractor: symlink %s: %w", target, err)
		}
		return nil // symlinks carry no restorable mode/times of their own

	case dirmodel.TypeBlockDev, dirmodel.TypeCharDev:
		if err := extractDevice(e, target); err != nil {
			return err
		}

	case dirmodel.TypePipe:
		if err := syscall.Mkfifo(target, 0644); err != nil {
			return fmt.Errorf("extractor: mkfifo %s: %w", target, err)
		}

	case dirmodel.TypeSocket:
		return fmt.Errorf("extractor: cannot recreate a bound socket at %s", target)

	default:
		return fmt.Errorf("extractor: unknown entry type %q for %s", e.Type, target)
	}

	return restoreMetadata(e, target)
}

func (x *Extractor) extractFile(e dirmodel.DirEntry, target string) error {
	handle, ok, err := x.fs.Get(cas.Digest(e.Ref))
	if err != nil {
		return fmt.Errorf("extractor: get %s: %w", target, err)
	}
	if !ok {
		return fmt.Errorf("extractor: blob %s missing for %s", e.Ref, target)
	}
	mode := os.FileMode(0644)
	if e.Mode != nil {
		mode = os.FileMode(*e.Mode)
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("extractor: create %s: %w", target, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, handle); err != nil {
		return fmt.Errorf("extractor: write %s: %w", target, err)
	}
	return nil
}

func extractDevice(e dirmodel.DirEntry, target string) error {
	modeBits := uint32(0600)
	if e.Type == dirmodel.TypeCharDev {
		modeBits |= syscall.S_IFCHR
	} else {
		modeBits |= syscall.S_IFBLK
	}
	var dev int64
	if e.Dev != nil {
		dev = *e.Dev
	}
	if err := syscall.Mknod(target, modeBits, int(dev)); err != nil {
		return fmt.Errorf("extractor: mknod %s: %w", target, err)
	}
	return nil
}

func restoreMetadata(e dirmodel.DirEntry, target string) error {
	if e.Mode != nil {
		if err := os.Chmod(target, os.FileMode(*e.Mode)); err != nil {
			return fmt.Errorf("extractor: chmod %s: %w", target, err)
		}
	}
	if e.ModifyTS != nil {
		atime := *e.ModifyTS
		if e.Atime != nil {
			atime = *e.Atime
		}
		if err := os.Chtimes(target, atime, *e.ModifyTS); err != nil {
			return fmt.Errorf("extractor: chtimes %s: %w", target, err)
		}
	}
	return nil
}
