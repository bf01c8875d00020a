// Package zarr implements read support for Zarr v2 stores: hierarchies of
// groups and chunked n-dimensional arrays described by JSON metadata
// documents and stored as flat key-value entries.
//
// Only the features needed to load simulation outputs are implemented:
// local directory stores, C-order chunks, zlib/gzip/raw codecs, and reads
// of whole arrays or row ranges along axis 0.
package zarr

import (
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Group is a Zarr group: a logical path holding a .zgroup document.
type Group struct {
	store Store
	path  string
	meta  GroupMeta
}

// Open opens the root group of a store. The store must carry a .zgroup
// marker at its root.
func Open(store Store) (*Group, error) {
	return openGroup(store, "")
}

// OpenDir opens a Zarr store backed by a local directory.
func OpenDir(dir string) (*Group, error) {
	store, err := NewLocalStore(dir)
	if err != nil {
		return nil, err
	}
	return Open(store)
}

func openGroup(store Store, path string) (*Group, error) {
	g := &Group{store: store, path: path}
	if err := decodeJSON(store, joinKey(path, KeyGroup), &g.meta); err != nil {
		return nil, errors.Wrapf(err, "opening group %q", path)
	}
	return g, nil
}

// Path returns the group's logical path within the store ("" for root).
func (g *Group) Path() string { return g.path }

// Attrs returns the group's .zattrs document, or an empty mapping if the
// group has none.
func (g *Group) Attrs() (Attributes, error) {
	return readAttrs(g.store, g.path)
}

// Member describes one entry of a group.
type Member struct {
	Name    string
	IsArray bool
}

// Members lists the subgroups and arrays directly inside this group.
// Entries that are neither (stray files, chunk data) are skipped.
func (g *Group) Members() ([]Member, error) {
	names, err := g.store.Children(g.path)
	if err != nil {
		return nil, errors.Wrapf(err, "listing group %q", g.path)
	}

	var members []Member
	for _, name := range names {
		if strings.HasPrefix(name, ".") {
			continue
		}
		child := joinKey(g.path, name)
		if exists(g.store, joinKey(child, KeyArray)) {
			members = append(members, Member{Name: name, IsArray: true})
		} else if exists(g.store, joinKey(child, KeyGroup)) {
			members = append(members, Member{Name: name})
		}
	}
	return members, nil
}

// OpenGroup opens a direct subgroup by name.
func (g *Group) OpenGroup(name string) (*Group, error) {
	return openGroup(g.store, joinKey(g.path, name))
}

// OpenArray opens a direct child array by name.
func (g *Group) OpenArray(name string) (*Array, error) {
	path := joinKey(g.path, name)
	a := &Array{store: g.store, path: path}
	if err := decodeJSON(g.store, joinKey(path, KeyArray), &a.meta); err != nil {
		return nil, errors.Wrapf(err, "opening array %q", path)
	}
	if len(a.meta.Shape) == 0 {
		return nil, errors.Errorf("array %q has no shape", path)
	}
	if len(a.meta.Chunks) != len(a.meta.Shape) {
		return nil, errors.Errorf("array %q: chunk rank %d does not match shape rank %d",
			path, len(a.meta.Chunks), len(a.meta.Shape))
	}
	if a.meta.Order == "F" {
		return nil, errors.Errorf("array %q: column-major order not supported", path)
	}
	return a, nil
}

func exists(s Store, key string) bool {
	f, err := s.Get(key)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

func readAttrs(s Store, path string) (Attributes, error) {
	attrs := Attributes{}
	err := decodeJSON(s, joinKey(path, KeyAttrs), &attrs)
	if err != nil && errors.Is(err, ErrNotFound) {
		return attrs, nil
	}
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

// Array is a chunked n-dimensional Zarr array.
type Array struct {
	store Store
	path  string
	meta  ArrayMeta
}

// Path returns the array's logical path within the store.
func (a *Array) Path() string { return a.path }

// Meta returns the array's parsed .zarray metadata.
func (a *Array) Meta() ArrayMeta { return a.meta }

// Shape returns the array dimensions.
func (a *Array) Shape() []uint64 {
	out := make([]uint64, len(a.meta.Shape))
	for i, d := range a.meta.Shape {
		out[i] = uint64(d)
	}
	return out
}

// Dtype returns the array's element type.
func (a *Array) Dtype() Dtype { return a.meta.Dtype }

// Attrs returns the array's .zattrs document, or an empty mapping.
func (a *Array) Attrs() (Attributes, error) {
	return readAttrs(a.store, a.path)
}

// Rows returns the extent along axis 0.
func (a *Array) Rows() uint64 {
	return uint64(a.meta.Shape[0])
}

// rowElems returns the number of elements in one row (all trailing axes).
func (a *Array) rowElems() int {
	n := 1
	for _, d := range a.meta.Shape[1:] {
		n *= d
	}
	return n
}

// chunkKey builds the store key of the chunk with the given grid coordinates.
func (a *Array) chunkKey(coords []int) string {
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = strconv.Itoa(c)
	}
	return joinKey(a.path, strings.Join(parts, a.meta.separator()))
}

// readChunk reads and decompresses one chunk. Chunks always have the full
// nominal chunk shape; edge chunks are padded. Missing chunks decode as
// zero-filled (fill-value handling beyond zero is not implemented).
func (a *Array) readChunk(coords []int) ([]byte, error) {
	nominal := a.meta.Dtype.ByteSize
	for _, c := range a.meta.Chunks {
		nominal *= c
	}

	f, err := a.store.Get(a.chunkKey(coords))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return make([]byte, nominal), nil
		}
		return nil, errors.Wrapf(err, "reading chunk of %q", a.path)
	}
	defer f.Close()

	r, err := a.meta.Compressor.Decompressor(f)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "decompressing chunk of %q", a.path)
	}
	if len(raw) != nominal {
		return nil, errors.Errorf("chunk of %q has %d bytes, expected %d", a.path, len(raw), nominal)
	}
	return raw, nil
}

// ReadRowsRaw reads count rows starting at row start, returning raw bytes
// in row-major order with the array's on-disk byte order.
func (a *Array) ReadRowsRaw(start, count uint64) ([]byte, error) {
	shape := a.meta.Shape
	chunks := a.meta.Chunks
	bs := a.meta.Dtype.ByteSize

	if start+count > uint64(shape[0]) {
		return nil, errors.Errorf("row range [%d,%d) out of bounds for %q with %d rows",
			start, start+count, a.path, shape[0])
	}

	out := make([]byte, int(count)*a.rowElems()*bs)
	if len(out) == 0 {
		return out, nil
	}

	// Row-major strides (in elements) of the output and of a chunk.
	rank := len(shape)
	outDims := make([]int, rank)
	outDims[0] = int(count)
	copy(outDims[1:], shape[1:])
	outStride := rowMajorStrides(outDims)
	chunkStride := rowMajorStrides(chunks)

	// Visit every chunk intersecting the requested rows; trailing axes are
	// always requested in full.
	grid := make([]int, rank)
	for i := range grid {
		grid[i] = (shape[i] + chunks[i] - 1) / chunks[i]
	}
	coords := make([]int, rank)
	coords[0] = int(start) / chunks[0]
	lastRowChunk := int(start+count-1) / chunks[0]

	for ; coords[0] <= lastRowChunk; coords[0]++ {
		for i := 1; i < rank; i++ {
			coords[i] = 0
		}
		for {
			raw, err := a.readChunk(coords)
			if err != nil {
				return nil, err
			}
			a.copyOverlap(raw, out, coords, int(start), int(count), outStride, chunkStride)

			// advance the odometer over the trailing axes
			i := rank - 1
			for ; i >= 1; i-- {
				coords[i]++
				if coords[i] < grid[i] {
					break
				}
				coords[i] = 0
			}
			if i < 1 {
				break
			}
		}
	}
	return out, nil
}

// copyOverlap copies the part of one chunk that falls inside the requested
// row range into the output buffer.
func (a *Array) copyOverlap(chunk, out []byte, coords []int, start, count int, outStride, chunkStride []int) {
	shape := a.meta.Shape
	chunks := a.meta.Chunks
	bs := a.meta.Dtype.ByteSize
	rank := len(shape)

	// Overlap of this chunk with the request, per dimension (global coords).
	lo := make([]int, rank)
	hi := make([]int, rank)
	for i := 0; i < rank; i++ {
		lo[i] = coords[i] * chunks[i]
		hi[i] = lo[i] + chunks[i]
		if hi[i] > shape[i] {
			hi[i] = shape[i]
		}
	}
	if lo[0] < start {
		lo[0] = start
	}
	if hi[0] > start+count {
		hi[0] = start + count
	}
	if lo[0] >= hi[0] {
		return
	}

	// Iterate all positions of the overlap except the innermost axis, which
	// is contiguous in both buffers and copied as one run.
	last := rank - 1
	runLen := (hi[last] - lo[last]) * bs
	pos := make([]int, rank)
	copy(pos, lo)

	for {
		chunkOff := 0
		outOff := 0
		for i := 0; i < rank; i++ {
			chunkOff += (pos[i] - coords[i]*chunks[i]) * chunkStride[i]
			g := pos[i]
			if i == 0 {
				g -= start
			}
			outOff += g * outStride[i]
		}
		copy(out[outOff*bs:outOff*bs+runLen], chunk[chunkOff*bs:chunkOff*bs+runLen])

		i := last - 1
		for ; i >= 0; i-- {
			pos[i]++
			if pos[i] < hi[i] {
				break
			}
			pos[i] = lo[i]
		}
		if i < 0 {
			break
		}
	}
}

// ReadRows reads count rows starting at row start as a typed flat slice.
func (a *Array) ReadRows(start, count uint64) (interface{}, error) {
	raw, err := a.ReadRowsRaw(start, count)
	if err != nil {
		return nil, err
	}
	return a.meta.Dtype.Decode(raw, int(count)*a.rowElems())
}

// Read reads the whole array as a typed flat slice.
func (a *Array) Read() (interface{}, error) {
	return a.ReadRows(0, a.Rows())
}

// rowMajorStrides returns element strides for row-major traversal of dims.
func rowMajorStrides(dims []int) []int {
	strides := make([]int, len(dims))
	s := 1
	for i := len(dims) - 1; i >= 0; i-- {
		strides[i] = s
		s *= dims[i]
	}
	return strides
}
