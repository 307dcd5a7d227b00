package casfs

import "github.com/intellitree/casbak/internal/dirmodel"

// overlayNode is one node of the pending-edit tree superimposed on the
// committed directory graph (spec §4.4). A node with an empty subtree and
// a populated entry is a leaf override; deleted marks an unlinked child
// (the DELETED sentinel of spec §4.4/§4.6); dir caches the decoded
// underlying directory once materialized, so commit and resolution never
// decode the same ref twice.
type overlayNode struct {
	entry   dirmodel.DirEntry
	deleted bool
	dir     *dirmodel.Directory
	subtree map[string]*overlayNode
}

// PathValue is what SetPath installs at a path: either a concrete entry
// or the DELETED sentinel.
type PathValue struct {
	entry   dirmodel.DirEntry
	deleted bool
}

// Set wraps entry as a PathValue naming a live override.
func Set(entry dirmodel.DirEntry) PathValue { return PathValue{entry: entry} }

// Delete returns the DELETED sentinel PathValue.
func Delete() PathValue { return PathValue{deleted: true} }
