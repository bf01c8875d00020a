package zarr

import (
	"compress/gzip"
	"compress/zlib"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Store keys holding metadata documents.
const (
	// KeyGroup marks a logical path as a group.
	KeyGroup = ".zgroup"
	// KeyArray holds array metadata.
	KeyArray = ".zarray"
	// KeyAttrs holds userland attributes.
	KeyAttrs = ".zattrs"
)

// GroupMeta is the content of a .zgroup document.
type GroupMeta struct {
	ZarrFormat int `json:"zarr_format"`
}

// Attributes is the content of a .zattrs document.
type Attributes map[string]interface{}

// ArrayMeta is the content of a .zarray document, the essential
// configuration needed to interpret stored chunks.
type ArrayMeta struct {
	ZarrFormat int   `json:"zarr_format"`
	Shape      []int `json:"shape"`
	// Chunks defines the nominal length of each dimension of a chunk; all
	// chunks of an array share this shape, edge chunks included (padded).
	Chunks     []int            `json:"chunks"`
	Dtype      Dtype            `json:"dtype"`
	Compressor *CompressionMeta `json:"compressor"`
	FillValue  interface{}      `json:"fill_value"`
	// Order is "C" (row-major) or "F" (column-major).
	Order   string        `json:"order"`
	Filters []interface{} `json:"filters"`
	// DimensionSeparator is "." (default) or "/".
	DimensionSeparator string `json:"dimension_separator,omitempty"`
}

func (m *ArrayMeta) separator() string {
	if m.DimensionSeparator == "" {
		return "."
	}
	return m.DimensionSeparator
}

// CompressionMeta identifies the primary compression codec of an array.
type CompressionMeta struct {
	ID      string `json:"id"`
	CName   string `json:"cname,omitempty"`
	CLevel  int    `json:"clevel,omitempty"`
	Level   int    `json:"level,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
}

// Decompressor wraps r with the codec named by m. A nil CompressionMeta
// means uncompressed chunks.
func (m *CompressionMeta) Decompressor(r io.ReadCloser) (io.ReadCloser, error) {
	if m == nil {
		return r, nil
	}
	switch m.ID {
	case "", "null", "none":
		return r, nil
	case "zlib":
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "opening zlib chunk")
		}
		return zr, nil
	case "gzip":
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "opening gzip chunk")
		}
		return gr, nil
	default:
		return nil, errors.Errorf("unsupported compressor %q", m.ID)
	}
}

// decodeJSON reads one metadata document from the store.
func decodeJSON(s Store, key string, dst interface{}) error {
	f, err := s.Get(key)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(dst); err != nil {
		return errors.Wrapf(err, "decoding %s", key)
	}
	return nil
}
