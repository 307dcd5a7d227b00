package dircodec

import (
	"fmt"
	"sync"

	"github.com/intellitree/casbak/internal/cferrors"
	"github.com/intellitree/casbak/internal/dirmodel"
)

// Codec serializes and deserializes one directory-blob payload format.
// Implementations register under their format tag; the empty tag names
// the default codec.
type Codec interface {
	// Tag is the format-tag string this codec registers under.
	Tag() string
	// Serialize must be total, deterministic, and reject entries whose
	// name or value exceeds the codec's limits with ErrUnsupportedFormat.
	Serialize(entries []dirmodel.DirEntry, metadata map[string]string) ([]byte, error)
	// Deserialize must be total on any payload this codec's Serialize
	// may produce; malformed input fails with ErrBadDirectoryBlob.
	Deserialize(payload []byte) (*dirmodel.Directory, error)
}

// Registry maps format tags to codecs. Lookups never interpret a tag as
// a module to dynamically load (spec §7, §9): a tag either names a
// codec registered at program start, or decoding fails.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// Register adds codec under its own Tag(), replacing any codec
// previously registered for that tag.
func (r *Registry) Register(codec Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[codec.Tag()] = codec
}

// Lookup returns the codec registered for tag, if any.
func (r *Registry) Lookup(tag string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[tag]
	return c, ok
}

// Default is the process-wide registry pre-populated with the two
// standardized codecs (DefaultFormat and CompactFormat).
var Default = NewRegistry()

func init() {
	Default.Register(jsonCodec{})
	Default.Register(minimalCodec{})
}

// DefaultFormat is the empty format tag, naming the default JSON codec.
const DefaultFormat = ""

// CompactFormat is the Minimal codec's tag, kept for backward
// compatibility and treated as an opaque identifier only.
const CompactFormat = "File::CAS::Dir::Minimal"

// EncodeBlob serializes entries/metadata with codec and wraps the result
// in the common header.
func EncodeBlob(codec Codec, entries []dirmodel.DirEntry, metadata map[string]string) ([]byte, error) {
	payload, err := codec.Serialize(entries, metadata)
	if err != nil {
		return nil, err
	}
	header, err := EncodeHeader(codec.Tag())
	if err != nil {
		return nil, err
	}
	return append(header, payload...), nil
}

// DecodeBlob splits blob's header, looks the named format up in
// registry, dispatches to that codec's Deserialize, and checks the
// decoded Directory against the no-duplicate-names invariant under
// caseInsensitive, failing with ErrBadDirectoryBlob if it doesn't hold.
func DecodeBlob(registry *Registry, blob []byte, caseInsensitive bool) (*dirmodel.Directory, error) {
	tag, payload, err := DecodeHeader(blob)
	if err != nil {
		return nil, err
	}
	codec, ok := registry.Lookup(tag)
	if !ok {
		return nil, fmt.Errorf("%w: unknown format tag %q", cferrors.ErrBadDirectoryBlob, tag)
	}
	dir, err := codec.Deserialize(payload)
	if err != nil {
		return nil, err
	}
	if err := dir.Validate(caseInsensitive); err != nil {
		return nil, fmt.Errorf("%w: %v", cferrors.ErrBadDirectoryBlob, err)
	}
	dir.Format = tag
	return dir, nil
}
