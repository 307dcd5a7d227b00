package casfs

import (
	"fmt"
	"strings"

	"github.com/intellitree/casbak/internal/cferrors"
	"github.com/intellitree/casbak/internal/dirmodel"
)

// Flags controls path resolution (spec §4.5).
type Flags struct {
	// FollowSymlinks enables symlink expansion during resolution.
	FollowSymlinks bool
	// Partial fabricates a transient placeholder entry for a missing
	// component instead of failing, without touching the overlay.
	Partial bool
	// Mkdir fabricates missing components and installs them into the
	// overlay as it descends. Mkdir >= 2 additionally replaces a
	// non-directory entry found mid-path with a fabricated directory.
	Mkdir int
	// MkdirDefaults is applied as a Clone patch to any fabricated entry.
	MkdirDefaults dirmodel.DirEntryPatch
	// NoDie turns a resolution failure into a (nil, nil) result instead
	// of an error, for callers that only want to probe existence.
	NoDie bool
}

// DefaultFlags returns the common case: follow symlinks, fail on a
// missing component.
func DefaultFlags() Flags { return Flags{FollowSymlinks: true} }

// pathNode is one element of a resolution in progress: the effective
// entry at this position, and the overlay node backing it if one has
// been materialized (nil until an edit needs to be recorded here).
type pathNode struct {
	entry   dirmodel.DirEntry
	overlay *overlayNode
}

// rootNode returns the resolution starting point: the overlay root if
// pending edits exist, else a synthetic node over the committed root.
func (fs *Filesystem) rootNode() *pathNode {
	if fs.overlay != nil {
		return &pathNode{entry: fs.overlay.entry, overlay: fs.overlay}
	}
	return &pathNode{entry: fs.rootEntry}
}

// ResolvePath walks names (volume name first, then path components) and
// returns the stack of entries visited, root first.
func (fs *Filesystem) ResolvePath(names []string, flags Flags) ([]dirmodel.DirEntry, error) {
	stack, err := fs.resolveInternal(names, flags)
	if err != nil {
		if flags.NoDie {
			return nil, nil
		}
		return nil, err
	}
	out := make([]dirmodel.DirEntry, len(stack))
	for i, n := range stack {
		out[i] = n.entry
	}
	return out, nil
}

func (fs *Filesystem) resolveInternal(names []string, flags Flags) ([]*pathNode, error) {
	return fs.resolveNames(names, flags, false)
}

// resolveNames is resolveInternal's full form. forceDirAtEnd is set by
// SetPath/UpdatePath, which resolve only a path's parent: the final
// component consumed in that call is always a container for something
// else, even though nothing remains in this call's own queue, so it
// must be fabricated as a directory rather than a file.
func (fs *Filesystem) resolveNames(names []string, flags Flags, forceDirAtEnd bool) ([]*pathNode, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("casfs: resolve_path requires at least a volume name")
	}

	stack := []*pathNode{fs.rootNode()}
	remaining := append([]string(nil), names[1:]...)

	for len(remaining) > 0 {
		top := stack[len(stack)-1]

		for top.entry.Type == dirmodel.TypeSymlink && flags.FollowSymlinks {
			target := top.entry.Ref
			if target == "" {
				return nil, cferrors.WrapPath("resolve_path", names, cferrors.ErrInvalidSymlink)
			}
			remaining = append(strings.Split(target, "/"), remaining...)
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return nil, cferrors.WrapPath("resolve_path", names, cferrors.ErrEscapesRoot)
			}
			if strings.HasPrefix(target, "/") {
				stack = []*pathNode{fs.rootNode()}
			}
			top = stack[len(stack)-1]
		}

		if !top.entry.Type.IsDir() {
			if flags.Mkdir < 2 {
				return nil, cferrors.WrapPath("resolve_path", names, cferrors.ErrNotADirectory)
			}
			fs.ensureOverlayChain(stack)
			dirType := dirmodel.TypeDir
			emptyRef := ""
			fabricated := top.entry.Clone(dirmodel.DirEntryPatch{Type: &dirType, Ref: &emptyRef})
			top.overlay.entry = fabricated
			top.entry = fabricated
		}

		name := remaining[0]
		remaining = remaining[1:]

		if name == "" || name == "." {
			continue
		}
		if name == ".." {
			if len(stack) <= 1 {
				return nil, cferrors.WrapPath("resolve_path", names, cferrors.ErrEscapesRoot)
			}
			stack = stack[:len(stack)-1]
			continue
		}

		needsDir := len(remaining) > 0 || forceDirAtEnd
		child, err := fs.lookupChild(stack, name, needsDir, flags, names)
		if err != nil {
			return nil, err
		}
		stack = append(stack, child)
	}

	return stack, nil
}

// lookupChild resolves one path component under stack's top element,
// consulting the overlay before the committed directory, and fabricates
// or fails on a miss per flags.
func (fs *Filesystem) lookupChild(stack []*pathNode, name string, moreRemain bool, flags Flags, allNames []string) (*pathNode, error) {
	top := stack[len(stack)-1]
	key := dirmodel.FoldName(name, fs.caseInsensitive)

	if top.overlay != nil {
		if child, ok := top.overlay.subtree[key]; ok {
			if child.deleted {
				return fs.fabricateOrFail(stack, name, moreRemain, flags, allNames, true)
			}
			return &pathNode{entry: child.entry, overlay: child}, nil
		}
	}

	dir, err := fs.materializeDir(top)
	if err != nil {
		return nil, cferrors.WrapPath("resolve_path", allNames, err)
	}
	parentHadRef := top.entry.Ref != ""
	if dir != nil {
		if e, ok := dir.Find(name, fs.caseInsensitive); ok {
			return &pathNode{entry: e}, nil
		}
	}
	return fs.fabricateOrFail(stack, name, moreRemain, flags, allNames, parentHadRef)
}

// materializeDir decodes top's underlying directory, caching it on the
// overlay node if one exists so repeated lookups under the same node
// don't re-decode.
func (fs *Filesystem) materializeDir(top *pathNode) (*dirmodel.Directory, error) {
	if top.overlay != nil && top.overlay.dir != nil {
		return top.overlay.dir, nil
	}
	dir, err := fs.decodeRef(top.entry.Ref)
	if err != nil {
		return nil, err
	}
	if top.overlay != nil {
		top.overlay.dir = dir
	}
	return dir, nil
}

func (fs *Filesystem) fabricateOrFail(stack []*pathNode, name string, moreRemain bool, flags Flags, allNames []string, parentHadRef bool) (*pathNode, error) {
	if !flags.Partial && flags.Mkdir == 0 {
		if !parentHadRef {
			return nil, cferrors.WrapPath("resolve_path", allNames, cferrors.ErrDirectoryNotInStorage)
		}
		return nil, cferrors.WrapPath("resolve_path", allNames, cferrors.ErrNoSuchEntry)
	}

	typ := dirmodel.TypeFile
	if moreRemain {
		typ = dirmodel.TypeDir
	}
	entry := dirmodel.DirEntry{Name: name, Type: typ}.Clone(flags.MkdirDefaults)
	entry.Name = name

	if flags.Mkdir == 0 {
		return &pathNode{entry: entry}, nil
	}

	fs.ensureOverlayChain(stack)
	parentOverlay := stack[len(stack)-1].overlay
	key := dirmodel.FoldName(name, fs.caseInsensitive)
	child := &overlayNode{entry: entry, subtree: map[string]*overlayNode{}}
	parentOverlay.subtree[key] = child
	return &pathNode{entry: entry, overlay: child}, nil
}

// ensureOverlayChain materializes an overlay node for every element of
// stack that lacks one, linking each into its parent's subtree and
// installing the chain's root as fs.overlay if no overlay existed yet.
func (fs *Filesystem) ensureOverlayChain(stack []*pathNode) {
	for i, node := range stack {
		if node.overlay != nil {
			if i == 0 && fs.overlay == nil {
				fs.overlay = node.overlay
			}
			continue
		}
		newNode := &overlayNode{entry: node.entry, subtree: map[string]*overlayNode{}}
		node.overlay = newNode
		if i == 0 {
			fs.overlay = newNode
			continue
		}
		parent := stack[i-1].overlay
		key := dirmodel.FoldName(node.entry.Name, fs.caseInsensitive)
		parent.subtree[key] = newNode
	}
}

// SetPath installs value as an override for the entry at names, creating
// overlay nodes for any ancestor that lacks one.
func (fs *Filesystem) SetPath(names []string, value PathValue, flags Flags) error {
	if len(names) < 2 {
		return fmt.Errorf("casfs: set_path requires a volume plus at least one path component")
	}
	parent := names[:len(names)-1]
	leaf := names[len(names)-1]

	stack, err := fs.resolveNames(parent, flags, true)
	if err != nil {
		return err
	}
	fs.ensureOverlayChain(stack)
	parentOverlay := stack[len(stack)-1].overlay
	key := dirmodel.FoldName(leaf, fs.caseInsensitive)

	if value.deleted {
		parentOverlay.subtree[key] = &overlayNode{deleted: true}
		return nil
	}
	entry := value.entry
	entry.Name = leaf
	parentOverlay.subtree[key] = &overlayNode{entry: entry, subtree: map[string]*overlayNode{}}
	return nil
}

// UpdatePath applies changes as a Clone patch to the entry currently at
// names, leaving its name untouched.
func (fs *Filesystem) UpdatePath(names []string, changes dirmodel.DirEntryPatch, flags Flags) error {
	stack, err := fs.resolveInternal(names, flags)
	if err != nil {
		return err
	}
	current := stack[len(stack)-1].entry
	name := current.Name
	updated := current.Clone(changes)
	updated.Name = name
	return fs.SetPath(names, Set(updated), flags)
}
