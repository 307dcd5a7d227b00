// Package cferrors defines the error taxonomy shared by the directory
// codec, cache, and filesystem kernel (spec §7). It has no dependencies
// on the packages that raise these errors so every layer can import it
// without creating a cycle.
package cferrors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers distinguish them with errors.Is; each is
// wrapped with path/digest context via fmt.Errorf("...: %w", ...) at the
// point of failure.
var (
	// ErrBadDirectoryBlob covers bad magic, a bad length header, a
	// truncated payload, an unknown format tag, or an invalid payload
	// for the declared format.
	ErrBadDirectoryBlob = errors.New("bad directory blob")

	// ErrNoSuchEntry is a path component missing from an otherwise
	// valid directory.
	ErrNoSuchEntry = errors.New("no such entry")

	// ErrDirectoryNotInStorage is a path traversing a dir entry whose
	// ref is empty (the directory was elided at scan time).
	ErrDirectoryNotInStorage = errors.New("directory not in storage")

	// ErrNotADirectory is an attempt to descend into a non-directory.
	ErrNotADirectory = errors.New("not a directory")

	// ErrEscapesRoot is ".." applied at the root.
	ErrEscapesRoot = errors.New("path escapes root")

	// ErrInvalidSymlink is a symlink entry with an empty or absent ref.
	ErrInvalidSymlink = errors.New("invalid symlink")

	// ErrUnsupportedFormat is an encoder asked to represent a field it
	// cannot (name or value too long for the target codec).
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrCasIO wraps an error propagated from the CAS backend.
	ErrCasIO = errors.New("CAS I/O error")
)

// PathError attaches the path components being resolved to a sentinel
// error, the way os.PathError attaches a path to a syscall error.
type PathError struct {
	Op   string
	Path []string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, JoinNames(e.Path), e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// WrapPath returns nil if err is nil, else a *PathError naming op and path.
func WrapPath(op string, path []string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: path, Err: err}
}

// JoinNames renders a path-component slice for error messages.
func JoinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += "/"
		}
		out += n
	}
	return out
}
