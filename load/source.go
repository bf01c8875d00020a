package load

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/simdata/snapload/hdf5"
	"github.com/simdata/snapload/zarr"
)

// Source is an open storage back-end. The loader owns it; lazy arrays hold
// only the ReadRows closure, so a source must stay open for as long as any
// array derived from it may be evaluated.
type Source interface {
	// Root returns the traversal entry point.
	Root() (Node, error)
	// ReadRows reads count rows of the dataset at path starting at row
	// start, as a flat typed slice in row-major order.
	ReadRows(path string, start, count uint64) (interface{}, error)
	// Names returns the canonical-name registry keyed by stripped dataset
	// path, or nil when the file carries none.
	Names() map[string]string
	// Close releases the underlying handle.
	Close() error
}

// hdf5Source adapts an open HDF5 file.

type hdf5Source struct {
	file *hdf5.File
}

var _ Source = (*hdf5Source)(nil)

func newHDF5Source(f *hdf5.File) *hdf5Source {
	return &hdf5Source{file: f}
}

func (s *hdf5Source) Root() (Node, error) {
	return &hdf5GroupNode{group: s.file.Root()}, nil
}

func (s *hdf5Source) ReadRows(path string, start, count uint64) (interface{}, error) {
	ds, err := s.file.OpenDataset(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening dataset %s", path)
	}
	elem, err := ds.GoType()
	if err != nil {
		return nil, errors.Wrapf(err, "resolving element type of %s", path)
	}
	dest := reflect.New(reflect.SliceOf(elem))
	if err := ds.ReadRows(start, count, dest.Interface()); err != nil {
		return nil, err
	}
	return dest.Elem().Interface(), nil
}

func (s *hdf5Source) Names() map[string]string {
	return readNameRegistry(s.file)
}

func (s *hdf5Source) Close() error {
	return s.file.Close()
}

// readNameRegistry reads the reserved registry group, if present.
func readNameRegistry(f *hdf5.File) map[string]string {
	g, err := f.OpenGroup(nameRegistryGroup)
	if err != nil {
		return nil
	}
	names := map[string]string{}
	for _, attrName := range g.Attrs() {
		attr := g.Attr(attrName)
		if attr == nil {
			continue
		}
		if v, err := attr.ReadScalarString(); err == nil {
			names[attrName] = v
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

type hdf5GroupNode struct {
	group *hdf5.Group
}

func (n *hdf5GroupNode) Path() string {
	return n.group.Path()
}

func (n *hdf5GroupNode) IsArray() bool { return false }
func (n *hdf5GroupNode) Shape() []uint64 { return nil }
func (n *hdf5GroupNode) Dtype() string { return "" }
func (n *hdf5GroupNode) RowBytes() uint64 { return 0 }

func (n *hdf5GroupNode) Children() ([]Node, error) {
	members, err := n.group.Members()
	if err != nil {
		return nil, err
	}
	var children []Node
	for _, name := range members {
		if sub, err := n.group.OpenGroup(name); err == nil {
			children = append(children, &hdf5GroupNode{group: sub})
			continue
		}
		ds, err := n.group.OpenDataset(name)
		if err != nil {
			return nil, errors.Wrapf(err, "opening member %s of %s", name, n.group.Path())
		}
		children = append(children, &hdf5DatasetNode{ds: ds})
	}
	return children, nil
}

func (n *hdf5GroupNode) Attrs() (map[string]interface{}, error) {
	return readHDF5Attrs(n.group.Attrs(), func(name string) *hdf5.Attribute {
		return n.group.Attr(name)
	})
}

type hdf5DatasetNode struct {
	ds *hdf5.Dataset
}

func (n *hdf5DatasetNode) Path() string { return n.ds.Path() }
func (n *hdf5DatasetNode) IsArray() bool { return true }
func (n *hdf5DatasetNode) Children() ([]Node, error) { return nil, nil }
func (n *hdf5DatasetNode) Shape() []uint64 { return n.ds.Shape() }
func (n *hdf5DatasetNode) RowBytes() uint64 { return n.ds.RowBytes() }

func (n *hdf5DatasetNode) Dtype() string {
	if t, err := n.ds.GoType(); err == nil {
		return t.String()
	}
	return "unknown"
}

func (n *hdf5DatasetNode) Attrs() (map[string]interface{}, error) {
	return readHDF5Attrs(n.ds.Attrs(), func(name string) *hdf5.Attribute {
		return n.ds.Attr(name)
	})
}

func readHDF5Attrs(names []string, get func(string) *hdf5.Attribute) (map[string]interface{}, error) {
	attrs := map[string]interface{}{}
	for _, name := range names {
		attr := get(name)
		if attr == nil {
			continue
		}
		v, err := attr.Value()
		if err != nil {
			// attribute types the codec cannot decode are skipped, not fatal
			continue
		}
		attrs[name] = v
	}
	return attrs, nil
}

// zarrSource adapts an open Zarr store.

type zarrSource struct {
	root *zarr.Group
}

var _ Source = (*zarrSource)(nil)

func newZarrSource(root *zarr.Group) *zarrSource {
	return &zarrSource{root: root}
}

func (s *zarrSource) Root() (Node, error) {
	return &zarrGroupNode{group: s.root, path: "/"}, nil
}

func (s *zarrSource) ReadRows(path string, start, count uint64) (interface{}, error) {
	arr, err := s.openArray(path)
	if err != nil {
		return nil, err
	}
	return arr.ReadRows(start, count)
}

func (s *zarrSource) openArray(path string) (*zarr.Array, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	g := s.root
	for _, name := range parts[:len(parts)-1] {
		sub, err := g.OpenGroup(name)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving %s", path)
		}
		g = sub
	}
	return g.OpenArray(parts[len(parts)-1])
}

// Names always returns nil: Zarr stores are never merged, so they carry no
// canonical-name registry.
func (s *zarrSource) Names() map[string]string { return nil }

// Close is a no-op; directory stores hold no persistent handle.
func (s *zarrSource) Close() error { return nil }

type zarrGroupNode struct {
	group *zarr.Group
	path  string
}

func (n *zarrGroupNode) Path() string { return n.path }
func (n *zarrGroupNode) IsArray() bool { return false }
func (n *zarrGroupNode) Shape() []uint64 { return nil }
func (n *zarrGroupNode) Dtype() string { return "" }
func (n *zarrGroupNode) RowBytes() uint64 { return 0 }

func (n *zarrGroupNode) Children() ([]Node, error) {
	members, err := n.group.Members()
	if err != nil {
		return nil, err
	}
	var children []Node
	for _, m := range members {
		childPath := joinAbs(n.path, m.Name)
		if m.IsArray {
			arr, err := n.group.OpenArray(m.Name)
			if err != nil {
				return nil, err
			}
			children = append(children, &zarrArrayNode{arr: arr, path: childPath})
			continue
		}
		sub, err := n.group.OpenGroup(m.Name)
		if err != nil {
			return nil, err
		}
		children = append(children, &zarrGroupNode{group: sub, path: childPath})
	}
	return children, nil
}

func (n *zarrGroupNode) Attrs() (map[string]interface{}, error) {
	attrs, err := n.group.Attrs()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}(attrs), nil
}

type zarrArrayNode struct {
	arr  *zarr.Array
	path string
}

func (n *zarrArrayNode) Path() string { return n.path }
func (n *zarrArrayNode) IsArray() bool { return true }
func (n *zarrArrayNode) Children() ([]Node, error) { return nil, nil }
func (n *zarrArrayNode) Shape() []uint64 { return n.arr.Shape() }
func (n *zarrArrayNode) Dtype() string { return n.arr.Dtype().GoTypeName() }

func (n *zarrArrayNode) RowBytes() uint64 {
	shape := n.arr.Shape()
	b := uint64(n.arr.Dtype().ByteSize)
	for _, d := range shape[1:] {
		b *= d
	}
	return b
}

func (n *zarrArrayNode) Attrs() (map[string]interface{}, error) {
	attrs, err := n.arr.Attrs()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}(attrs), nil
}

func joinAbs(base, name string) string {
	if base == "/" {
		return "/" + name
	}
	return base + "/" + name
}
