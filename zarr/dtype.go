package zarr

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ByteOrder is the first character of a NumPy typestr.
type ByteOrder rune

const (
	BOLittleEndian ByteOrder = '<'
	BOBigEndian    ByteOrder = '>'
	BONotRelevant  ByteOrder = '|'
)

// BasicType is the second character of a NumPy typestr.
type BasicType rune

const (
	BTBoolean       BasicType = 'b'
	BTInteger       BasicType = 'i'
	BTUnsigned      BasicType = 'u'
	BTFloatingPoint BasicType = 'f'
)

// Dtype is a parsed NumPy array-protocol type string ("<f8", "|u1", ...):
// one byte-order character, one basic-type character, and the element size
// in bytes.
type Dtype struct {
	ByteOrder ByteOrder
	BasicType BasicType
	ByteSize  int
}

var (
	_ json.Unmarshaler = (*Dtype)(nil)
	_ json.Marshaler   = (*Dtype)(nil)
)

// ParseDtype parses a typestr such as "<f8".
func ParseDtype(s string) (Dtype, error) {
	// some producers HTML-escape the angle brackets
	s = strings.Replace(s, "&lt;", "<", 1)
	s = strings.Replace(s, "&gt;", ">", 1)

	var dt Dtype
	if len(s) < 3 {
		return dt, errors.Errorf("invalid dtype string %q: too short", s)
	}

	switch ByteOrder(s[0]) {
	case BOLittleEndian, BOBigEndian, BONotRelevant:
		dt.ByteOrder = ByteOrder(s[0])
	default:
		return dt, errors.Errorf("invalid byte order %q in dtype %q", s[0], s)
	}

	switch BasicType(s[1]) {
	case BTBoolean, BTInteger, BTUnsigned, BTFloatingPoint:
		dt.BasicType = BasicType(s[1])
	default:
		return dt, errors.Errorf("unsupported basic type %q in dtype %q", s[1], s)
	}

	size, err := strconv.Atoi(s[2:])
	if err != nil {
		return dt, errors.Wrapf(err, "invalid byte size in dtype %q", s)
	}
	switch size {
	case 1, 2, 4, 8:
	default:
		return dt, errors.Errorf("unsupported byte size %d in dtype %q", size, s)
	}
	dt.ByteSize = size

	return dt, nil
}

func (dt Dtype) String() string {
	return fmt.Sprintf("%c%c%d", dt.ByteOrder, dt.BasicType, dt.ByteSize)
}

// GoTypeName returns the Go element type the dtype decodes to.
func (dt Dtype) GoTypeName() string {
	switch dt.BasicType {
	case BTBoolean:
		return "bool"
	case BTInteger:
		return fmt.Sprintf("int%d", dt.ByteSize*8)
	case BTUnsigned:
		return fmt.Sprintf("uint%d", dt.ByteSize*8)
	case BTFloatingPoint:
		return fmt.Sprintf("float%d", dt.ByteSize*8)
	}
	return "unknown"
}

func (dt Dtype) MarshalJSON() ([]byte, error) {
	return []byte(`"` + dt.String() + `"`), nil
}

func (dt *Dtype) UnmarshalJSON(d []byte) error {
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		return err
	}
	t, err := ParseDtype(s)
	if err != nil {
		return err
	}
	*dt = t
	return nil
}

func (dt Dtype) order() binary.ByteOrder {
	if dt.ByteOrder == BOBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Decode converts n raw elements into a typed flat slice.
func (dt Dtype) Decode(raw []byte, n int) (interface{}, error) {
	if len(raw) < n*dt.ByteSize {
		return nil, errors.Errorf("short chunk data: have %d bytes, need %d", len(raw), n*dt.ByteSize)
	}
	bo := dt.order()

	switch dt.BasicType {
	case BTBoolean:
		out := make([]bool, n)
		for i := range out {
			out[i] = raw[i] != 0
		}
		return out, nil
	case BTInteger:
		switch dt.ByteSize {
		case 1:
			out := make([]int8, n)
			for i := range out {
				out[i] = int8(raw[i])
			}
			return out, nil
		case 2:
			out := make([]int16, n)
			for i := range out {
				out[i] = int16(bo.Uint16(raw[i*2:]))
			}
			return out, nil
		case 4:
			out := make([]int32, n)
			for i := range out {
				out[i] = int32(bo.Uint32(raw[i*4:]))
			}
			return out, nil
		case 8:
			out := make([]int64, n)
			for i := range out {
				out[i] = int64(bo.Uint64(raw[i*8:]))
			}
			return out, nil
		}
	case BTUnsigned:
		switch dt.ByteSize {
		case 1:
			out := make([]uint8, n)
			copy(out, raw[:n])
			return out, nil
		case 2:
			out := make([]uint16, n)
			for i := range out {
				out[i] = bo.Uint16(raw[i*2:])
			}
			return out, nil
		case 4:
			out := make([]uint32, n)
			for i := range out {
				out[i] = bo.Uint32(raw[i*4:])
			}
			return out, nil
		case 8:
			out := make([]uint64, n)
			for i := range out {
				out[i] = bo.Uint64(raw[i*8:])
			}
			return out, nil
		}
	case BTFloatingPoint:
		switch dt.ByteSize {
		case 4:
			out := make([]float32, n)
			for i := range out {
				out[i] = math.Float32frombits(bo.Uint32(raw[i*4:]))
			}
			return out, nil
		case 8:
			out := make([]float64, n)
			for i := range out {
				out[i] = math.Float64frombits(bo.Uint64(raw[i*8:]))
			}
			return out, nil
		}
	}
	return nil, errors.Errorf("unsupported dtype %s", dt)
}
