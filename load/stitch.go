package load

import (
	"encoding/json"
	"reflect"
	"sync"

	"github.com/pkg/errors"

	"github.com/simdata/snapload/hdf5"
)

const stitchManifestVersion = 1

// stitchManifest is the descriptor written by a virtual merge. It records
// everything needed to present the chunk files as one logical file: the
// tree, the attributes, and the rows each chunk file contributes to each
// dataset along axis 0.
type stitchManifest struct {
	Version  int                               `json:"version"`
	Source   string                            `json:"source"`
	Files    []string                          `json:"files"`
	Groups   []string                          `json:"groups"`
	Datasets []stitchDataset                   `json:"datasets"`
	Attrs    map[string]map[string]interface{} `json:"attrs"`
}

type stitchDataset struct {
	Path     string   `json:"path"`
	Shape    []uint64 `json:"shape"`
	Dtype    string   `json:"dtype"`
	RowBytes uint64   `json:"row_bytes"`
	// Rows holds the extent along axis 0 contributed by each file, in
	// manifest file order; the offsets follow from the running sum.
	Rows []uint64 `json:"rows"`
}

// readStitchManifest extracts the manifest from an open merged file, or
// returns nil when the file is a physical merge.
func readStitchManifest(f *hdf5.File) (*stitchManifest, error) {
	ds, err := f.OpenDataset(virtualLayoutDataset)
	if err != nil {
		return nil, nil
	}
	blob, err := ds.ReadUint8()
	if err != nil {
		return nil, errors.Wrap(err, "reading stitch manifest")
	}
	m := &stitchManifest{}
	if err := json.Unmarshal(blob, m); err != nil {
		return nil, errors.Wrap(err, "decoding stitch manifest")
	}
	if m.Version != stitchManifestVersion {
		return nil, errors.Errorf("unsupported stitch manifest version %d", m.Version)
	}
	return m, nil
}

// stitchSource serves a virtually merged dataset: the tree comes from the
// manifest, reads are routed to the original chunk files, which are opened
// lazily and kept open until Close.
type stitchSource struct {
	manifest *stitchManifest
	names    map[string]string
	datasets map[string]*stitchDataset

	mu   sync.Mutex
	open map[int]*hdf5.File
}

var _ Source = (*stitchSource)(nil)

func newStitchSource(m *stitchManifest, names map[string]string) *stitchSource {
	s := &stitchSource{
		manifest: m,
		names:    names,
		datasets: map[string]*stitchDataset{},
		open:     map[int]*hdf5.File{},
	}
	for i := range m.Datasets {
		d := &m.Datasets[i]
		s.datasets[d.Path] = d
	}
	return s
}

func (s *stitchSource) Root() (Node, error) {
	return &stitchNode{src: s, path: "/"}, nil
}

func (s *stitchSource) Names() map[string]string { return s.names }

func (s *stitchSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range s.open {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.open = map[int]*hdf5.File{}
	return firstErr
}

// file opens the i-th chunk file on first use.
func (s *stitchSource) file(i int) (*hdf5.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.open[i]; ok {
		return f, nil
	}
	f, err := hdf5.Open(s.manifest.Files[i])
	if err != nil {
		return nil, errors.Wrapf(err, "opening stitched chunk file %s", s.manifest.Files[i])
	}
	s.open[i] = f
	return f, nil
}

// ReadRows reads a row range of a stitched dataset, splitting the request
// across the chunk files whose extents it overlaps.
func (s *stitchSource) ReadRows(path string, start, count uint64) (interface{}, error) {
	sd, ok := s.datasets[path]
	if !ok {
		return nil, errors.Errorf("no stitched dataset %s", path)
	}
	end := start + count
	if end > sd.Shape[0] {
		return nil, errors.Errorf("row range [%d,%d) out of bounds for %s with %d rows",
			start, end, path, sd.Shape[0])
	}
	if count == 0 {
		// Nothing overlaps an empty range; still return a typed slice.
		f, err := s.file(0)
		if err != nil {
			return nil, err
		}
		ds, err := f.OpenDataset(path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s in %s", path, s.manifest.Files[0])
		}
		t, err := ds.GoType()
		if err != nil {
			return nil, errors.Wrapf(err, "resolving element type of %s", path)
		}
		return reflect.MakeSlice(reflect.SliceOf(t), 0, 0).Interface(), nil
	}

	var (
		out  reflect.Value
		elem reflect.Type
		off  uint64
	)
	for i, rows := range sd.Rows {
		lo, hi := off, off+rows
		off = hi
		if hi <= start {
			continue
		}
		if lo >= end {
			break
		}
		if lo < start {
			lo = start
		}
		if hi > end {
			hi = end
		}

		f, err := s.file(i)
		if err != nil {
			return nil, err
		}
		ds, err := f.OpenDataset(path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s in %s", path, s.manifest.Files[i])
		}
		if elem == nil {
			t, err := ds.GoType()
			if err != nil {
				return nil, errors.Wrapf(err, "resolving element type of %s", path)
			}
			elem = t
			out = reflect.MakeSlice(reflect.SliceOf(elem), 0, 0)
		}

		fileOff := lo - (off - rows) // row offset of lo within this file
		part := reflect.New(reflect.SliceOf(elem))
		if err := ds.ReadRows(fileOff, hi-lo, part.Interface()); err != nil {
			return nil, err
		}
		out = reflect.AppendSlice(out, part.Elem())
	}
	if elem == nil {
		return nil, errors.Errorf("row range [%d,%d) matched no chunk file for %s", start, end, path)
	}
	return out.Interface(), nil
}

// stitchNode exposes the manifest tree through the walker's Node contract.
type stitchNode struct {
	src  *stitchSource
	path string
	ds   *stitchDataset // nil for groups
}

func (n *stitchNode) Path() string { return n.path }
func (n *stitchNode) IsArray() bool { return n.ds != nil }

func (n *stitchNode) Shape() []uint64 {
	if n.ds == nil {
		return nil
	}
	return n.ds.Shape
}

func (n *stitchNode) Dtype() string {
	if n.ds == nil {
		return ""
	}
	return n.ds.Dtype
}

func (n *stitchNode) RowBytes() uint64 {
	if n.ds == nil {
		return 0
	}
	return n.ds.RowBytes
}

func (n *stitchNode) Children() ([]Node, error) {
	if n.ds != nil {
		return nil, nil
	}
	var children []Node
	for _, g := range n.src.manifest.Groups {
		if parentPath(g) == n.path {
			children = append(children, &stitchNode{src: n.src, path: g})
		}
	}
	for i := range n.src.manifest.Datasets {
		d := &n.src.manifest.Datasets[i]
		if parentPath(d.Path) == n.path {
			children = append(children, &stitchNode{src: n.src, path: d.Path, ds: d})
		}
	}
	return children, nil
}

func (n *stitchNode) Attrs() (map[string]interface{}, error) {
	key := n.path
	if key == "" {
		key = RootAttrKey
	}
	return n.src.manifest.Attrs[key], nil
}
