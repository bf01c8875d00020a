// Package lazy provides named, chunked, lazily evaluated arrays.
//
// An Array is a deferred view over rows of some backing storage: nothing is
// read until a block is evaluated. Arrays are identified by a stable name so
// that evaluators can deduplicate work across repeated loads of the same
// data; two arrays with the same name are expected to be interchangeable.
package lazy

import (
	"github.com/pkg/errors"
)

// ReadFunc reads count rows starting at row start and returns them as a
// flat slice (row-major) of the array's element type.
type ReadFunc func(start, count uint64) (interface{}, error)

// Array is a named, chunked, deferred-computation array. Chunking is along
// axis 0 (the row axis) only.
type Array struct {
	name   string
	shape  []uint64
	chunks []uint64 // rows per block; sums to shape[0]
	read   ReadFunc
}

// New creates a lazy array. chunks holds the row count of each block along
// axis 0 and must sum to shape[0].
func New(name string, shape []uint64, chunks []uint64, read ReadFunc) (*Array, error) {
	if name == "" {
		return nil, errors.New("lazy: array name cannot be empty")
	}
	if len(shape) == 0 {
		return nil, errors.New("lazy: array shape cannot be empty")
	}
	var total uint64
	for _, c := range chunks {
		if c == 0 {
			return nil, errors.New("lazy: zero-row block in chunk plan")
		}
		total += c
	}
	if total != shape[0] {
		return nil, errors.Errorf("lazy: chunk plan covers %d rows, shape has %d", total, shape[0])
	}
	return &Array{name: name, shape: shape, chunks: chunks, read: read}, nil
}

// Name returns the array's stable identity.
func (a *Array) Name() string { return a.name }

// Shape returns the array dimensions.
func (a *Array) Shape() []uint64 { return a.shape }

// Rows returns the extent along axis 0.
func (a *Array) Rows() uint64 { return a.shape[0] }

// Chunks returns the row count of each block along axis 0.
func (a *Array) Chunks() []uint64 { return a.chunks }

// NumBlocks returns the number of blocks in the chunk plan.
func (a *Array) NumBlocks() int { return len(a.chunks) }

// BlockRange returns the row offset and row count of block i.
func (a *Array) BlockRange(i int) (start, count uint64) {
	for j := 0; j < i; j++ {
		start += a.chunks[j]
	}
	return start, a.chunks[i]
}

// ReadBlock evaluates a single block and returns its rows as a flat slice.
func (a *Array) ReadBlock(i int) (interface{}, error) {
	if i < 0 || i >= len(a.chunks) {
		return nil, errors.Errorf("lazy: block %d out of range for %q", i, a.name)
	}
	start, count := a.BlockRange(i)
	out, err := a.read(start, count)
	return out, errors.Wrapf(err, "evaluating block %d of %q", i, a.name)
}

// Arange returns a lazy array of consecutive int64 values 0..n-1 with the
// given chunk plan. It is used to synthesize per-row unique identifiers.
func Arange(name string, n uint64, chunks []uint64) (*Array, error) {
	read := func(start, count uint64) (interface{}, error) {
		out := make([]int64, count)
		for i := range out {
			out[i] = int64(start) + int64(i)
		}
		return out, nil
	}
	return New(name, []uint64{n}, chunks, read)
}

// PlanChunks splits rows into blocks of at most chunkRows rows each.
func PlanChunks(rows, chunkRows uint64) []uint64 {
	if rows == 0 {
		return nil
	}
	if chunkRows == 0 || chunkRows > rows {
		chunkRows = rows
	}
	var plan []uint64
	for remaining := rows; remaining > 0; {
		c := chunkRows
		if c > remaining {
			c = remaining
		}
		plan = append(plan, c)
		remaining -= c
	}
	return plan
}

// DefaultBlockBytes is the byte budget per block used by AutoChunkRows.
const DefaultBlockBytes = 64 << 20

// AutoChunkRows picks a row count per block targeting DefaultBlockBytes
// given the byte width of one row.
func AutoChunkRows(rows, rowBytes uint64) uint64 {
	if rowBytes == 0 {
		return rows
	}
	c := uint64(DefaultBlockBytes) / rowBytes
	if c == 0 {
		c = 1
	}
	if c > rows && rows > 0 {
		c = rows
	}
	return c
}
