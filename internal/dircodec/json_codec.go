package dircodec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/intellitree/casbak/internal/cferrors"
	"github.com/intellitree/casbak/internal/dirmodel"
)

// jsonCodec is the default directory codec: a UTF-8 JSON object
// {"metadata": {...}, "entries": [...]}. encoding/json sorts map keys
// when marshaling a map value, which is what gives this codec its
// canonical (sorted-key) output; entries are additionally pre-sorted by
// name so that identical entry sets always serialize identically
// (Invariant 1).
type jsonCodec struct{}

// Tag implements Codec.
func (jsonCodec) Tag() string { return DefaultFormat }

// Serialize implements Codec.
func (jsonCodec) Serialize(entries []dirmodel.DirEntry, metadata map[string]string) ([]byte, error) {
	sorted := make([]dirmodel.DirEntry, len(entries))
	copy(sorted, entries)
	dirmodel.SortEntries(sorted)

	entryMaps := make([]map[string]any, 0, len(sorted))
	for _, e := range sorted {
		m := e.AsMap()
		m["name"] = encodeBytesField(e.Name)
		m["ref"] = encodeBytesField(e.Ref)
		entryMaps = append(entryMaps, m)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	payload := map[string]any{
		"metadata": metadata,
		"entries":  entryMaps,
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cferrors.ErrUnsupportedFormat, err)
	}
	return out, nil
}

// Deserialize implements Codec.
func (jsonCodec) Deserialize(payload []byte) (*dirmodel.Directory, error) {
	var raw struct {
		Metadata map[string]string `json:"metadata"`
		Entries  []map[string]any  `json:"entries"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", cferrors.ErrBadDirectoryBlob, err)
	}

	entries := make([]dirmodel.DirEntry, 0, len(raw.Entries))
	for i, em := range raw.Entries {
		e, err := decodeEntryMap(em)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", cferrors.ErrBadDirectoryBlob, i, err)
		}
		entries = append(entries, e)
	}

	metadata := raw.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	return &dirmodel.Directory{Metadata: metadata, Entries: entries}, nil
}

// encodeBytesField renders a name/ref byte string as plain JSON text
// when it is valid UTF-8, else as {"bytes": <base64>} so that
// non-UTF-8 byte strings still round-trip losslessly.
func encodeBytesField(s string) any {
	if utf8.ValidString(s) {
		return s
	}
	return map[string]any{"bytes": base64.StdEncoding.EncodeToString([]byte(s))}
}

func decodeBytesField(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case map[string]any:
		b64, ok := t["bytes"].(string)
		if !ok {
			return "", fmt.Errorf("object field missing \"bytes\"")
		}
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return "", fmt.Errorf("invalid base64 in \"bytes\": %w", err)
		}
		return string(raw), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unexpected JSON type for name/ref field")
	}
}

func decodeEntryMap(m map[string]any) (dirmodel.DirEntry, error) {
	name, err := decodeBytesField(m["name"])
	if err != nil {
		return dirmodel.DirEntry{}, fmt.Errorf("name: %w", err)
	}
	typStr, _ := m["type"].(string)
	if typStr == "" {
		return dirmodel.DirEntry{}, fmt.Errorf("missing type")
	}
	ref, err := decodeBytesField(m["ref"])
	if err != nil {
		return dirmodel.DirEntry{}, fmt.Errorf("ref: %w", err)
	}

	e := dirmodel.DirEntry{Name: name, Type: dirmodel.EntryType(typStr), Ref: ref}

	var ferr error
	getInt64 := func(key string) *int64 {
		v, ok := m[key]
		if !ok || ferr != nil {
			return nil
		}
		f, ok := v.(float64)
		if !ok {
			ferr = fmt.Errorf("%s: expected number", key)
			return nil
		}
		i := int64(f)
		return &i
	}
	getUint32 := func(key string) *uint32 {
		v, ok := m[key]
		if !ok || ferr != nil {
			return nil
		}
		f, ok := v.(float64)
		if !ok {
			ferr = fmt.Errorf("%s: expected number", key)
			return nil
		}
		u := uint32(f)
		return &u
	}
	getString := func(key string) *string {
		v, ok := m[key]
		if !ok || ferr != nil {
			return nil
		}
		s, ok := v.(string)
		if !ok {
			ferr = fmt.Errorf("%s: expected string", key)
			return nil
		}
		return &s
	}
	getTime := func(key string) *time.Time {
		v, ok := m[key]
		if !ok || ferr != nil {
			return nil
		}
		s, ok := v.(string)
		if !ok {
			ferr = fmt.Errorf("%s: expected string timestamp", key)
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			ferr = fmt.Errorf("%s: %w", key, err)
			return nil
		}
		return &t
	}

	e.Size = getInt64("size")
	e.CreateTS = getTime("create_ts")
	e.ModifyTS = getTime("modify_ts")
	e.UID = getInt64("uid")
	e.GID = getInt64("gid")
	e.User = getString("user")
	e.Group = getString("group")
	e.Mode = getUint32("mode")
	e.Atime = getTime("atime")
	e.Ctime = getTime("ctime")
	e.Dev = getInt64("dev")
	e.Inode = getInt64("inode")
	e.Nlink = getInt64("nlink")
	e.Blocksize = getInt64("blocksize")
	e.Blocks = getInt64("blocks")
	if ferr != nil {
		return dirmodel.DirEntry{}, ferr
	}

	return e, nil
}
