package casfs

import (
	"github.com/intellitree/casbak/internal/cas"
	"github.com/intellitree/casbak/internal/dirmodel"
)

// Path is a curried (filesystem, names) handle, the spec §4.6 facade:
// a convenience wrapper so callers needn't thread the full name slice
// through every operation by hand.
type Path struct {
	fs    *Filesystem
	names []string
}

// At returns a Path naming names under fs. names[0] is the volume name.
func (fs *Filesystem) At(names ...string) Path {
	return Path{fs: fs, names: append([]string(nil), names...)}
}

// Child returns a Path one component below p.
func (p Path) Child(name string) Path {
	return Path{fs: p.fs, names: append(append([]string(nil), p.names...), name)}
}

// Names returns the path's raw component slice.
func (p Path) Names() []string { return p.names }

// Resolve walks the full path and returns the stack of entries visited.
func (p Path) Resolve(flags Flags) ([]dirmodel.DirEntry, error) {
	return p.fs.ResolvePath(p.names, flags)
}

// Entry resolves the path and returns only its final entry.
func (p Path) Entry(flags Flags) (dirmodel.DirEntry, error) {
	stack, err := p.fs.ResolvePath(p.names, flags)
	if err != nil {
		return dirmodel.DirEntry{}, err
	}
	if len(stack) == 0 {
		return dirmodel.DirEntry{}, nil
	}
	return stack[len(stack)-1], nil
}

// Type resolves the path and returns its entry type. Symlinks along the
// way are followed; a symlink that is the path's final component is
// reported as TypeSymlink.
func (p Path) Type() (dirmodel.EntryType, error) {
	e, err := p.Entry(DefaultFlags())
	if err != nil {
		return "", err
	}
	return e.Type, nil
}

// Exists reports whether the path resolves to anything.
func (p Path) Exists() bool {
	// NoDie turns a failed resolution into an empty stack, not an error.
	stack, err := p.fs.ResolvePath(p.names, Flags{FollowSymlinks: true, NoDie: true})
	return err == nil && len(stack) > 0
}

// Dir resolves the path and decodes it as a directory.
func (p Path) Dir() (*dirmodel.Directory, error) {
	e, err := p.Entry(DefaultFlags())
	if err != nil {
		return nil, err
	}
	return p.fs.decodeRef(e.Ref)
}

// Open resolves the path and opens its backing blob as a file.
func (p Path) Open() (cas.FileHandle, bool, error) {
	e, err := p.Entry(DefaultFlags())
	if err != nil {
		return nil, false, err
	}
	return p.fs.Get(cas.Digest(e.Ref))
}

// Set installs value at the path.
func (p Path) Set(value PathValue, flags Flags) error {
	return p.fs.SetPath(p.names, value, flags)
}

// Update applies a patch to the entry currently at the path.
func (p Path) Update(changes dirmodel.DirEntryPatch, flags Flags) error {
	return p.fs.UpdatePath(p.names, changes, flags)
}
