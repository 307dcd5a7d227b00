package casfs

import (
	"fmt"
	"sort"

	"github.com/intellitree/casbak/internal/cferrors"
	"github.com/intellitree/casbak/internal/dircodec"
	"github.com/intellitree/casbak/internal/dirmodel"
)

// Commit folds the pending overlay into a new committed tree, rewriting
// the RootEntry, and discards the overlay. It leaves the overlay and
// RootEntry untouched on error, so a failed commit can be retried or
// rolled back.
func (fs *Filesystem) Commit() error {
	if fs.overlay == nil {
		return nil
	}
	newRef, err := fs.commitNode(fs.overlay)
	if err != nil {
		return err
	}
	ref := newRef
	fs.rootEntry = fs.rootEntry.Clone(dirmodel.DirEntryPatch{Ref: &ref})
	fs.overlay = nil
	return nil
}

// Rollback discards the pending overlay without touching RootEntry.
func (fs *Filesystem) Rollback() {
	fs.overlay = nil
}

// commitNode returns the digest node's directory should have once its
// overlay edits are folded in, writing a fresh blob only when something
// under node actually changed.
func (fs *Filesystem) commitNode(node *overlayNode) (string, error) {
	if len(node.subtree) == 0 {
		return node.entry.Ref, nil
	}

	dir, err := fs.materializeOverlayDir(node)
	if err != nil {
		return "", err
	}

	var result []dirmodel.DirEntry
	if dir != nil {
		for _, e := range dir.Entries {
			key := dirmodel.FoldName(e.Name, fs.caseInsensitive)
			if _, overridden := node.subtree[key]; overridden {
				continue
			}
			result = append(result, e)
		}
	}

	keys := make([]string, 0, len(node.subtree))
	for k := range node.subtree {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		child := node.subtree[k]
		if child.deleted {
			continue
		}
		entry := child.entry
		if entry.Type.IsDir() && len(child.subtree) > 0 {
			childRef, err := fs.commitNode(child)
			if err != nil {
				return "", err
			}
			entry = entry.Clone(dirmodel.DirEntryPatch{Ref: &childRef})
		}
		result = append(result, entry)
	}

	if len(result) == 0 {
		return string(fs.emptyDigest), nil
	}

	codec := fs.codec
	var metadata map[string]string
	if dir != nil {
		metadata = dir.Metadata
		if c, ok := fs.registry.Lookup(dir.Format); ok {
			codec = c
		}
	}

	blob, err := dircodec.EncodeBlob(codec, result, metadata)
	if err != nil {
		return "", err
	}
	digest, err := fs.store.PutScalar(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %v", cferrors.ErrCasIO, err)
	}
	return string(digest), nil
}

func (fs *Filesystem) materializeOverlayDir(node *overlayNode) (*dirmodel.Directory, error) {
	if node.dir != nil {
		return node.dir, nil
	}
	dir, err := fs.decodeRef(node.entry.Ref)
	if err != nil {
		return nil, err
	}
	node.dir = dir
	return dir, nil
}
