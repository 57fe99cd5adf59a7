// Package codec maps file extensions to decode/encode pairs for the payload
// formats the transfer engine understands. Unrecognized extensions fall back
// to an identity codec that treats payloads as opaque byte blobs; the
// identity codec has no encoder, so uploads of structured payloads with an
// unrecognized extension fail.
package codec

import (
	"fmt"
	"sort"

	transfererrors "github.com/colpal/dataeng-container-tools/transfer/errors"
	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// Options is the opaque option bag passed through verbatim from the caller.
// Each codec reads the keys it understands; malformed values surface as
// decode/encode errors, never earlier.
type Options = map[string]any

// Codec converts between raw bytes and structured payloads for one format.
type Codec interface {
	// Decode parses raw bytes into a payload
	Decode(data []byte, opts Options) (*transfertypes.Payload, error)

	// Encode serializes a structured table into raw bytes
	Encode(table *transfertypes.Table, opts Options) ([]byte, error)
}

// ForExtension returns the codec bound to a file extension (with leading
// dot, lowercased). Always returns a usable codec: unrecognized extensions
// map to the identity codec.
func ForExtension(ext string) Codec {
	switch ext {
	case ".parquet":
		return parquetCodec{}
	case ".csv":
		return csvCodec{}
	case ".xlsx":
		return xlsxCodec{}
	case ".json":
		return jsonCodec{}
	case ".jsonl", ".ndjson":
		return jsonLinesCodec{}
	default:
		return identityCodec{}
	}
}

// CanEncode reports whether an extension has a defined encoder.
func CanEncode(ext string) bool {
	_, identity := ForExtension(ext).(identityCodec)
	return !identity
}

// identityCodec passes bytes through untouched. Encode is undefined.
type identityCodec struct{}

func (identityCodec) Decode(data []byte, _ Options) (*transfertypes.Payload, error) {
	return &transfertypes.Payload{Raw: data}, nil
}

func (identityCodec) Encode(_ *transfertypes.Table, _ Options) ([]byte, error) {
	return nil, transfererrors.ErrUnsupportedUploadFormat
}

// columnsOf returns the table's declared columns, or the sorted union of row
// keys when the table does not declare any.
func columnsOf(t *transfertypes.Table) []string {
	if len(t.Columns) > 0 {
		return t.Columns
	}
	seen := make(map[string]struct{})
	for _, row := range t.Rows {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// formatCell renders a cell value for text-based formats.
func formatCell(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// optString reads a string option, erroring on a value of the wrong type.
func optString(opts Options, key string) (string, error) {
	v, ok := opts[key]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("codec: option %q must be a string, got %T", key, v)
	}
	return s, nil
}

// optBool reads a bool option with a default, erroring on the wrong type.
func optBool(opts Options, key string, def bool) (bool, error) {
	v, ok := opts[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return def, fmt.Errorf("codec: option %q must be a bool, got %T", key, v)
	}
	return b, nil
}
