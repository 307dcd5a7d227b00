// Package dircodec implements the directory-blob wire format: a common
// header naming a format tag, dispatch to a registered codec, and the
// two standardized codecs (default JSON, compact Minimal).
package dircodec

import (
	"fmt"

	"github.com/intellitree/casbak/internal/cferrors"
)

// Magic is the fixed 8-byte prefix of every directory blob, trailing
// space included.
const Magic = "CAS_Dir "

// maxTagLen is the largest format tag the 2-hex-digit length field can
// represent.
const maxTagLen = 255

// EncodeHeader returns the common header for a directory blob carrying
// format tag.
func EncodeHeader(tag string) ([]byte, error) {
	if len(tag) > maxTagLen {
		return nil, fmt.Errorf("%w: format tag %q exceeds %d bytes", cferrors.ErrUnsupportedFormat, tag, maxTagLen)
	}
	out := make([]byte, 0, len(Magic)+2+1+len(tag)+1)
	out = append(out, Magic...)
	out = append(out, fmt.Sprintf("%02X", len(tag))...)
	out = append(out, ' ')
	out = append(out, tag...)
	out = append(out, '\n')
	return out, nil
}

// DecodeHeader splits blob into its format tag and payload. It fails
// with ErrBadDirectoryBlob on bad magic, a malformed length field, a tag
// that runs past the end of the blob, or a missing newline terminator.
func DecodeHeader(blob []byte) (tag string, payload []byte, err error) {
	if len(blob) < len(Magic)+3 {
		return "", nil, fmt.Errorf("%w: blob shorter than header", cferrors.ErrBadDirectoryBlob)
	}
	if string(blob[:len(Magic)]) != Magic {
		return "", nil, fmt.Errorf("%w: bad magic", cferrors.ErrBadDirectoryBlob)
	}
	rest := blob[len(Magic):]
	if len(rest) < 2 {
		return "", nil, fmt.Errorf("%w: truncated length field", cferrors.ErrBadDirectoryBlob)
	}
	var tagLen int
	if _, err := fmt.Sscanf(string(rest[:2]), "%02X", &tagLen); err != nil {
		return "", nil, fmt.Errorf("%w: malformed length field: %v", cferrors.ErrBadDirectoryBlob, err)
	}
	rest = rest[2:]
	if len(rest) < 1 || rest[0] != ' ' {
		return "", nil, fmt.Errorf("%w: missing separator after length", cferrors.ErrBadDirectoryBlob)
	}
	rest = rest[1:]
	if len(rest) < tagLen+1 {
		return "", nil, fmt.Errorf("%w: truncated format tag", cferrors.ErrBadDirectoryBlob)
	}
	tag = string(rest[:tagLen])
	rest = rest[tagLen:]
	if rest[0] != '\n' {
		return "", nil, fmt.Errorf("%w: missing newline after format tag", cferrors.ErrBadDirectoryBlob)
	}
	return tag, rest[1:], nil
}

// HeaderLen returns the byte length of the header for a format tag of
// the given length, per spec: 8 + 2 + 1 + len(format) + 1.
func HeaderLen(tagLen int) int {
	return len(Magic) + 2 + 1 + tagLen + 1
}
