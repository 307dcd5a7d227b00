// Package dirmodel defines the immutable directory-entry and directory
// value types the codec and kernel packages build on.
package dirmodel

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// EntryType is the kind of filesystem object a DirEntry names.
type EntryType string

const (
	TypeFile     EntryType = "file"
	TypeDir      EntryType = "dir"
	TypeSymlink  EntryType = "symlink"
	TypeBlockDev EntryType = "blockdev"
	TypeCharDev  EntryType = "chardev"
	TypePipe     EntryType = "pipe"
	TypeSocket   EntryType = "socket"
)

// IsDir reports whether t names a directory.
func (t EntryType) IsDir() bool { return t == TypeDir }

// MaxCompactNameLen and MaxCompactValLen are the length limits the
// compact codec can represent (a single length byte each).
const (
	MaxCompactNameLen = 255
	MaxCompactValLen  = 255
)

// DirEntry is an immutable record describing one child of a directory.
// Name and Ref are byte strings at this layer: Go strings are byte
// sequences and neither field is required to be valid UTF-8.
//
// Ref's meaning depends on Type: for file/dir it is a CAS digest string;
// for symlink it is the link target; for blockdev/chardev it is a device
// identifier; for pipe/socket it is always empty.
//
// Optional metadata fields are pointers so that "absent" is distinguishable
// from the zero value, per spec.
type DirEntry struct {
	Name string
	Type EntryType
	Ref  string

	Size     *int64
	CreateTS *time.Time
	ModifyTS *time.Time

	UID       *int64
	GID       *int64
	User      *string
	Group     *string
	Mode      *uint32
	Atime     *time.Time
	Ctime     *time.Time
	Dev       *int64
	Inode     *int64
	Nlink     *int64
	Blocksize *int64
	Blocks    *int64
}

// ValidateName reports whether name is usable as a directory entry name:
// non-empty, containing neither '/' nor NUL.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("dirmodel: empty entry name")
	}
	if strings.ContainsRune(name, '/') {
		return fmt.Errorf("dirmodel: entry name %q contains '/'", name)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("dirmodel: entry name %q contains NUL", name)
	}
	return nil
}

// DirEntryPatch carries field overrides for Clone; a nil field means
// "leave as-is", which is why Name/Type/Ref are pointers here alongside
// the optional-metadata pointer-to-pointers - "unset Ref" and "leave Ref"
// would otherwise be indistinguishable for a string field.
type DirEntryPatch struct {
	Name *string
	Type *EntryType
	Ref  *string

	Size     **int64
	CreateTS **time.Time
	ModifyTS **time.Time
	UID      **int64
	GID      **int64
	User     **string
	Group    **string
	Mode     **uint32
	Atime    **time.Time
	Ctime    **time.Time
	Dev      **int64
	Inode    **int64
	Nlink    **int64
	Blocksize **int64
	Blocks    **int64
}

// Clone returns a new DirEntry with the fields named in overrides
// replaced and all others inherited from e.
func (e DirEntry) Clone(overrides DirEntryPatch) DirEntry {
	out := e
	if overrides.Name != nil {
		out.Name = *overrides.Name
	}
	if overrides.Type != nil {
		out.Type = *overrides.Type
	}
	if overrides.Ref != nil {
		out.Ref = *overrides.Ref
	}
	if overrides.Size != nil {
		out.Size = *overrides.Size
	}
	if overrides.CreateTS != nil {
		out.CreateTS = *overrides.CreateTS
	}
	if overrides.ModifyTS != nil {
		out.ModifyTS = *overrides.ModifyTS
	}
	if overrides.UID != nil {
		out.UID = *overrides.UID
	}
	if overrides.GID != nil {
		out.GID = *overrides.GID
	}
	if overrides.User != nil {
		out.User = *overrides.User
	}
	if overrides.Group != nil {
		out.Group = *overrides.Group
	}
	if overrides.Mode != nil {
		out.Mode = *overrides.Mode
	}
	if overrides.Atime != nil {
		out.Atime = *overrides.Atime
	}
	if overrides.Ctime != nil {
		out.Ctime = *overrides.Ctime
	}
	if overrides.Dev != nil {
		out.Dev = *overrides.Dev
	}
	if overrides.Inode != nil {
		out.Inode = *overrides.Inode
	}
	if overrides.Nlink != nil {
		out.Nlink = *overrides.Nlink
	}
	if overrides.Blocksize != nil {
		out.Blocksize = *overrides.Blocksize
	}
	if overrides.Blocks != nil {
		out.Blocks = *overrides.Blocks
	}
	return out
}

// AsMap returns the entry's field/value pairs, the canonical input to
// codec serialization. Absent optional fields are omitted from the map
// entirely (never present with a zero value), so codecs can tell
// "absent" from "zero".
func (e DirEntry) AsMap() map[string]any {
	m := map[string]any{
		"name": e.Name,
		"type": string(e.Type),
		"ref":  e.Ref,
	}
	putInt64 := func(key string, v *int64) {
		if v != nil {
			m[key] = *v
		}
	}
	putTime := func(key string, v *time.Time) {
		if v != nil {
			m[key] = v.UTC().Format(time.RFC3339Nano)
		}
	}
	putStr := func(key string, v *string) {
		if v != nil {
			m[key] = *v
		}
	}
	putInt64("size", e.Size)
	putTime("create_ts", e.CreateTS)
	putTime("modify_ts", e.ModifyTS)
	putInt64("uid", e.UID)
	putInt64("gid", e.GID)
	putStr("user", e.User)
	putStr("group", e.Group)
	if e.Mode != nil {
		m["mode"] = *e.Mode
	}
	putTime("atime", e.Atime)
	putTime("ctime", e.Ctime)
	putInt64("dev", e.Dev)
	putInt64("inode", e.Inode)
	putInt64("nlink", e.Nlink)
	putInt64("blocksize", e.Blocksize)
	putInt64("blocks", e.Blocks)
	return m
}

// SortEntries sorts entries by Name as byte sequences, the ordering the
// codec's serialization contract requires.
func SortEntries(entries []DirEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
}

// FoldName applies a directory's case policy to a lookup key. Stored
// entry names are never folded; only lookup keys are.
func FoldName(name string, caseInsensitive bool) string {
	if caseInsensitive {
		return strings.ToLower(name)
	}
	return name
}

// Directory is an immutable, decoded directory blob: a format tag, an
// open-ended metadata map, and an ordered, duplicate-free list of
// entries. Two structurally identical directories produce byte-identical
// serializations and therefore identical digests (Invariant 1).
type Directory struct {
	Format   string
	Metadata map[string]string
	Entries  []DirEntry

	// Digest is the digest this Directory was decoded from, or the
	// digest it will hash to once serialized for a freshly-built
	// Directory. The cache relies on this matching the requested key.
	Digest string
}

// Find looks up name among d's entries under the given case policy, the
// stored name is returned (not the folded lookup key).
func (d *Directory) Find(name string, caseInsensitive bool) (DirEntry, bool) {
	key := FoldName(name, caseInsensitive)
	for _, e := range d.Entries {
		if FoldName(e.Name, caseInsensitive) == key {
			return e, true
		}
	}
	return DirEntry{}, false
}

// Validate checks the directory invariant that no two entries share a
// name under the given case policy.
func (d *Directory) Validate(caseInsensitive bool) error {
	seen := make(map[string]string, len(d.Entries))
	for _, e := range d.Entries {
		if err := ValidateName(e.Name); err != nil {
			return err
		}
		key := FoldName(e.Name, caseInsensitive)
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("dirmodel: duplicate entry name %q (conflicts with %q)", e.Name, prev)
		}
		seen[key] = e.Name
	}
	return nil
}
