package load

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/simdata/snapload/hdf5"
)

// Reserved object names inside a merged file. Objects with the reserved
// prefix never surface as user data.
const (
	reservedPrefix       = "__"
	nameRegistryGroup    = "__array_names__"
	virtualLayoutDataset = "__virtual_layout__"
)

// isReserved reports whether a top-level object name is loader-internal.
func isReserved(name string) bool {
	return strings.HasPrefix(name, reservedPrefix)
}

// canonicalName derives the stable array name recorded in the registry of
// a merged file. It depends only on the source path and the dataset path,
// so reopening the same merged file yields the same names across process
// restarts.
func canonicalName(source, dsPath string) string {
	return fmt.Sprintf("Dataset%016x%s", xxhash.Sum64String(source), strings.ReplaceAll(dsPath, "/", "_"))
}

// Merge merges the chunk files of a directory into a single HDF5 file at
// dst, honoring the FilePrefix and VirtualCache options. It is the explicit
// form of the merge a chunked-directory Load performs into the cache.
func Merge(dir, dst string, opts Options) error {
	files, err := discoverChunks(dir, opts.FilePrefix)
	if err != nil {
		return err
	}
	if !opts.Overwrite {
		if _, err := os.Stat(dst); err == nil {
			return errors.Errorf("%s already exists", dst)
		}
	}
	return createMerged(dst, files, opts.VirtualCache, dir)
}

// createMerged merges the ordered chunk files into one logical HDF5 file at
// dst. With virtual true only a stitch descriptor referencing the originals
// is written; otherwise the data is physically concatenated along axis 0.
// The merge goes to a temporary name and is renamed into place on success,
// so dst is either complete or absent.
func createMerged(dst string, files []string, virtual bool, source string) error {
	if len(files) == 0 {
		return errors.Wrap(ErrNoChunkFiles, "merging")
	}

	tmp := fmt.Sprintf("%s.merge-%d", dst, os.Getpid())
	var err error
	if virtual {
		err = writeVirtual(tmp, files, source)
	} else {
		err = writePhysical(tmp, files, source)
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "placing merged file at %s", dst)
	}
	log.WithFields(log.Fields{"dst": dst, "files": len(files), "virtual": virtual}).
		Debug("merged chunk files")
	return nil
}

// openSources opens every chunk file and returns them with a closer.
func openSources(files []string) ([]*hdf5.File, func(), error) {
	srcs := make([]*hdf5.File, 0, len(files))
	closeAll := func() {
		for _, f := range srcs {
			f.Close()
		}
	}
	for _, p := range files {
		f, err := hdf5.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, errors.Wrapf(err, "opening chunk file %s", p)
		}
		srcs = append(srcs, f)
	}
	return srcs, closeAll, nil
}

// datasetShapes walks one chunk file and returns the shape of every dataset
// in it, keyed by absolute path.
func datasetShapes(src *hdf5.File) (map[string][]uint64, error) {
	shapes := map[string][]uint64{}
	err := hdf5.Walk(src.Root(), func(path string, obj interface{}, err error) error {
		if err != nil {
			return err
		}
		if ds, ok := obj.(*hdf5.Dataset); ok {
			shapes[path] = ds.Shape()
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking chunk file %s", src.Path())
	}
	return shapes, nil
}

// writePhysical concatenates every dataset across all chunk files into a
// fully materialized HDF5 file. The internal schema is taken from the first
// chunk file and assumed identical across all of them; mismatches surface
// later as shape errors.
func writePhysical(dst string, files []string, source string) error {
	srcs, closeAll, err := openSources(files)
	if err != nil {
		return err
	}
	defer closeAll()

	root, err := newHDF5Source(srcs[0]).Root()
	if err != nil {
		return err
	}
	tree, err := WalkTree(root)
	if err != nil {
		return errors.Wrap(err, "walking first chunk file")
	}

	out, err := hdf5.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "creating merged file %s", dst)
	}
	defer out.Close()

	groups := map[string]*hdf5.Group{"/": out.Root()}
	applyAttrs(out.Root(), tree.Attrs[RootAttrKey])
	for _, gpath := range tree.Groups {
		parent, ok := groups[parentPath(gpath)]
		if !ok {
			continue
		}
		g, err := parent.CreateGroup(leafName(gpath))
		if err != nil {
			return errors.Wrapf(err, "creating group %s", gpath)
		}
		applyAttrs(g, tree.Attrs[gpath])
		groups[gpath] = g
	}

	for _, info := range tree.Datasets {
		parent, ok := groups[parentPath(info.Path)]
		if !ok {
			continue
		}
		if err := concatDataset(parent, info, srcs, tree.Attrs[info.Path]); err != nil {
			return err
		}
	}

	if err := writeNameRegistry(out, tree, source); err != nil {
		return err
	}
	return out.Close()
}

// concatDataset reads one dataset from every chunk file and writes the
// concatenation (along axis 0) into parent, preserving the on-disk datatype.
func concatDataset(parent *hdf5.Group, info DatasetInfo, srcs []*hdf5.File, attrs map[string]interface{}) error {
	var (
		raw       []byte
		totalRows uint64
	)
	first, err := srcs[0].OpenDataset(info.Path)
	if err != nil {
		return errors.Wrapf(err, "opening dataset %s in first chunk file", info.Path)
	}
	for _, src := range srcs {
		ds, err := src.OpenDataset(info.Path)
		if err != nil {
			return errors.Wrapf(err, "opening dataset %s in %s", info.Path, src.Path())
		}
		part, err := ds.ReadRaw()
		if err != nil {
			return errors.Wrapf(err, "reading dataset %s from %s", info.Path, src.Path())
		}
		raw = append(raw, part...)
		shape := ds.Shape()
		if len(shape) > 0 {
			totalRows += shape[0]
		}
	}

	dims := make([]uint64, len(info.Shape))
	copy(dims, info.Shape)
	if len(dims) > 0 {
		dims[0] = totalRows
	}

	opts := make([]hdf5.DatasetOption, 0, len(attrs))
	for name, value := range attrs {
		opts = append(opts, hdf5.WithAttribute(name, value))
	}
	outDs, err := parent.CreateDatasetWithType(leafName(info.Path), dims, first.Datatype(), opts...)
	if err != nil {
		return errors.Wrapf(err, "creating merged dataset %s", info.Path)
	}
	if err := outDs.WriteRaw(raw); err != nil {
		return errors.Wrapf(err, "writing merged dataset %s", info.Path)
	}
	return nil
}

// writeVirtual writes a stitch descriptor instead of copying data: a
// manifest recording, per dataset, the chunk files and the rows each one
// contributes along axis 0. The chunk files must remain present and
// unmoved for the life of the merged file.
func writeVirtual(dst string, files []string, source string) error {
	srcs, closeAll, err := openSources(files)
	if err != nil {
		return err
	}
	defer closeAll()

	root, err := newHDF5Source(srcs[0]).Root()
	if err != nil {
		return err
	}
	tree, err := WalkTree(root)
	if err != nil {
		return errors.Wrap(err, "walking first chunk file")
	}

	// one walk per chunk file instead of one open per (file, dataset) pair
	shapes := make([]map[string][]uint64, len(srcs))
	for i, src := range srcs {
		if shapes[i], err = datasetShapes(src); err != nil {
			return err
		}
	}

	// The merged file may be opened from any working directory, so the
	// manifest must not record relative chunk-file paths.
	absFiles := make([]string, len(files))
	for i, f := range files {
		if absFiles[i], err = filepath.Abs(f); err != nil {
			return errors.Wrapf(err, "resolving chunk file path %s", f)
		}
	}

	manifest := &stitchManifest{
		Version: stitchManifestVersion,
		Source:  source,
		Files:   absFiles,
		Groups:  tree.Groups,
		Attrs:   tree.Attrs,
	}
	for _, info := range tree.Datasets {
		sd := stitchDataset{
			Path:     info.Path,
			Dtype:    info.Dtype,
			RowBytes: info.RowBytes,
		}
		var totalRows uint64
		for i, src := range srcs {
			shape, ok := shapes[i][info.Path]
			if !ok {
				return errors.Errorf("dataset %s missing from %s", info.Path, src.Path())
			}
			if len(shape) == 0 {
				return errors.Errorf("cannot stitch scalar dataset %s", info.Path)
			}
			sd.Rows = append(sd.Rows, shape[0])
			totalRows += shape[0]
		}
		sd.Shape = append([]uint64{totalRows}, info.Shape[1:]...)
		manifest.Datasets = append(manifest.Datasets, sd)
	}

	blob, err := json.Marshal(manifest)
	if err != nil {
		return errors.Wrap(err, "encoding stitch manifest")
	}

	out, err := hdf5.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "creating merged file %s", dst)
	}
	defer out.Close()

	if _, err := out.Root().CreateDataset(virtualLayoutDataset, []uint8(blob)); err != nil {
		return errors.Wrap(err, "writing stitch manifest")
	}
	if err := writeNameRegistry(out, tree, source); err != nil {
		return err
	}
	return out.Close()
}

// writeNameRegistry records the canonical array name of every dataset as an
// attribute of the reserved registry group, keyed by stripped dataset path.
func writeNameRegistry(out *hdf5.File, tree *FileTree, source string) error {
	reg, err := out.Root().CreateGroup(nameRegistryGroup)
	if err != nil {
		return errors.Wrap(err, "creating name registry")
	}
	for _, info := range tree.Datasets {
		key := strings.Trim(info.Path, "/")
		if err := reg.SetAttr(key, canonicalName(source, info.Path)); err != nil {
			return errors.Wrapf(err, "registering name for %s", info.Path)
		}
	}
	return nil
}

// applyAttrs copies attributes onto a destination group, skipping values
// the writer cannot encode.
func applyAttrs(g *hdf5.Group, attrs map[string]interface{}) {
	for name, value := range attrs {
		if err := g.SetAttr(name, value); err != nil {
			log.WithFields(log.Fields{"attr": name, "group": g.Path()}).
				WithError(err).Debug("skipping attribute during merge")
		}
	}
}

func parentPath(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "" {
		return "/"
	}
	return dir
}
