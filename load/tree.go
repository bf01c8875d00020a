package load

import (
	"strings"

	"github.com/pkg/errors"
)

// RootAttrKey is the Attrs key holding the file-scope (root) attributes.
const RootAttrKey = "/"

// Node is the uniform traversal contract over storage back-ends. Both the
// HDF5 and Zarr adapters (and the virtual stitch source) implement it, so
// the walker never has to know which kind of handle it is looking at.
type Node interface {
	// Path returns the absolute object path ("/" for the root).
	Path() string
	// IsArray reports whether the node carries array data (a dataset)
	// rather than sub-items (a group).
	IsArray() bool
	// Children enumerates the direct members of a group node.
	Children() ([]Node, error)
	// Attrs returns the node's attributes.
	Attrs() (map[string]interface{}, error)
	// Shape returns the array dimensions; nil for groups.
	Shape() []uint64
	// Dtype returns the element type name; empty for groups.
	Dtype() string
	// RowBytes returns the byte width of one row along axis 0; 0 for groups.
	RowBytes() uint64
}

// DatasetInfo describes one dataset found during a walk.
type DatasetInfo struct {
	Path     string
	Shape    []uint64
	Dtype    string
	RowBytes uint64
}

// FileTree is the flat description of all groups, datasets and attributes
// of one open file or store. Every dataset's parent path appears in Groups.
type FileTree struct {
	Groups   []string
	Datasets []DatasetInfo
	Attrs    map[string]map[string]interface{}
}

// WalkTree recursively visits every node reachable from root and records
// groups, datasets (with shape and dtype) and per-node attributes. Pure
// read; the tree holds no references into the underlying handle.
func WalkTree(root Node) (*FileTree, error) {
	tree := &FileTree{
		Attrs: map[string]map[string]interface{}{},
	}
	if err := walkNode(root, tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func walkNode(n Node, tree *FileTree) error {
	attrs, err := n.Attrs()
	if err != nil {
		return errors.Wrapf(err, "reading attributes of %s", n.Path())
	}
	key := n.Path()
	if key == "" {
		key = RootAttrKey
	}
	if len(attrs) > 0 || key == RootAttrKey {
		tree.Attrs[key] = attrs
	}

	if n.IsArray() {
		tree.Datasets = append(tree.Datasets, DatasetInfo{
			Path:     n.Path(),
			Shape:    n.Shape(),
			Dtype:    n.Dtype(),
			RowBytes: n.RowBytes(),
		})
		return nil
	}

	if n.Path() != RootAttrKey {
		tree.Groups = append(tree.Groups, n.Path())
	}
	children, err := n.Children()
	if err != nil {
		return errors.Wrapf(err, "listing %s", n.Path())
	}
	for _, child := range children {
		if err := walkNode(child, tree); err != nil {
			return err
		}
	}
	return nil
}

// topComponent returns the first path component of an absolute path.
func topComponent(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	return parts[0]
}

// leafName returns the last path component.
func leafName(path string) string {
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}
