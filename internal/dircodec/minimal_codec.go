package dircodec

import (
	"bytes"
	"fmt"

	"github.com/intellitree/casbak/internal/cferrors"
	"github.com/intellitree/casbak/internal/dirmodel"
)

// minimalCodec is the compact binary codec: one byte nameLen, one byte
// valLen, one byte typeCode, then name bytes, NUL, value bytes, NUL,
// per entry, sorted by name. It carries no directory-level metadata and
// no optional DirEntry fields.
type minimalCodec struct{}

// Tag implements Codec.
func (minimalCodec) Tag() string { return CompactFormat }

var typeToCode = map[dirmodel.EntryType]byte{
	dirmodel.TypeFile:     'f',
	dirmodel.TypeDir:      'd',
	dirmodel.TypeSymlink:  'l',
	dirmodel.TypeCharDev:  'c',
	dirmodel.TypeBlockDev: 'b',
	dirmodel.TypePipe:     'p',
	dirmodel.TypeSocket:   's',
}

var codeToType = func() map[byte]dirmodel.EntryType {
	m := make(map[byte]dirmodel.EntryType, len(typeToCode))
	for t, c := range typeToCode {
		m[c] = t
	}
	return m
}()

// Serialize implements Codec. metadata is ignored: the Minimal codec
// documents that it stores no directory-level metadata.
func (minimalCodec) Serialize(entries []dirmodel.DirEntry, _ map[string]string) ([]byte, error) {
	sorted := make([]dirmodel.DirEntry, len(entries))
	copy(sorted, entries)
	dirmodel.SortEntries(sorted)

	var buf bytes.Buffer
	for _, e := range sorted {
		code, ok := typeToCode[e.Type]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported entry type %q for compact codec", cferrors.ErrUnsupportedFormat, e.Type)
		}
		if len(e.Name) > dirmodel.MaxCompactNameLen {
			return nil, fmt.Errorf("%w: name %q exceeds %d bytes", cferrors.ErrUnsupportedFormat, e.Name, dirmodel.MaxCompactNameLen)
		}
		val := compactVal(e)
		if len(val) > dirmodel.MaxCompactValLen {
			return nil, fmt.Errorf("%w: value for %q exceeds %d bytes", cferrors.ErrUnsupportedFormat, e.Name, dirmodel.MaxCompactValLen)
		}
		buf.WriteByte(byte(len(e.Name)))
		buf.WriteByte(byte(len(val)))
		buf.WriteByte(code)
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.WriteString(val)
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

// compactVal is the per-type value the compact codec stores: the CAS
// digest for file/dir, the link target for symlink, the device
// identifier for blockdev/chardev, empty for pipe/socket.
func compactVal(e dirmodel.DirEntry) string {
	switch e.Type {
	case dirmodel.TypePipe, dirmodel.TypeSocket:
		return ""
	default:
		return e.Ref
	}
}

// Deserialize implements Codec.
func (minimalCodec) Deserialize(payload []byte) (*dirmodel.Directory, error) {
	var entries []dirmodel.DirEntry
	pos := 0
	for pos < len(payload) {
		if pos+3 > len(payload) {
			return nil, fmt.Errorf("%w: truncated entry header", cferrors.ErrBadDirectoryBlob)
		}
		nameLen := int(payload[pos])
		valLen := int(payload[pos+1])
		typeCode := payload[pos+2]
		pos += 3

		typ, ok := codeToType[typeCode]
		if !ok {
			return nil, fmt.Errorf("%w: unknown type code %q", cferrors.ErrBadDirectoryBlob, typeCode)
		}

		if pos+nameLen+1 > len(payload) {
			return nil, fmt.Errorf("%w: truncated name", cferrors.ErrBadDirectoryBlob)
		}
		name := string(payload[pos : pos+nameLen])
		pos += nameLen
		if payload[pos] != 0 {
			return nil, fmt.Errorf("%w: missing NUL after name", cferrors.ErrBadDirectoryBlob)
		}
		pos++

		if pos+valLen+1 > len(payload) {
			return nil, fmt.Errorf("%w: truncated value", cferrors.ErrBadDirectoryBlob)
		}
		val := string(payload[pos : pos+valLen])
		pos += valLen
		if payload[pos] != 0 {
			return nil, fmt.Errorf("%w: missing NUL after value", cferrors.ErrBadDirectoryBlob)
		}
		pos++

		entries = append(entries, dirmodel.DirEntry{Name: name, Type: typ, Ref: val})
	}
	return &dirmodel.Directory{Metadata: map[string]string{}, Entries: entries}, nil
}
