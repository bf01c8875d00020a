package load

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/simdata/snapload/config"
	"github.com/simdata/snapload/hdf5"
	"github.com/simdata/snapload/zarr"
)

// Options control one Load call.
type Options struct {
	// Overwrite forces a re-merge even when a cached merged file exists.
	Overwrite bool
	// FilePrefix disambiguates a chunked directory holding files from more
	// than one prefix.
	FilePrefix string
	// Token is mixed into derived array names; loads with equal tokens of
	// the same data produce cache-compatible array handles.
	Token string
	// Chunksize is the row count per lazy block; 0 picks one automatically
	// from the row byte width.
	Chunksize uint64
	// VirtualCache merges chunked directories as a stitch descriptor
	// instead of copying the data.
	VirtualCache bool
	// GroupsLoad restricts binding to objects whose path starts with one
	// of the given prefixes. When nil, every group directly containing a
	// dataset is bound.
	GroupsLoad []string
}

// BaseLoader classifies a dataset path and loads it with the matching
// strategy. It owns the open handle afterwards: lazy arrays produced by
// Load are only evaluable while the loader remains open.
type BaseLoader struct {
	path string
	cfg  config.Config

	kind     Kind
	src      Source
	location string
	tempfile string
}

// New creates a loader for a dataset path. cfg supplies the optional
// "cachedir" used for merged chunked datasets.
func New(path string, cfg config.Config) *BaseLoader {
	if cfg == nil {
		cfg = config.Config{}
	}
	return &BaseLoader{path: path, cfg: cfg}
}

// Kind returns the classification of the last Load ("unclassified" before).
func (l *BaseLoader) Kind() Kind { return l.kind }

// Location returns the path of the file actually opened: the source itself,
// or the merged file for chunked directories.
func (l *BaseLoader) Location() string { return l.location }

// Load resolves the dataset behind the loader's path and binds its contents.
// The returned Data maps group name to named lazy arrays (plus "uid");
// Metadata carries the attribute mapping keyed by object path.
func (l *BaseLoader) Load(opts Options) (Data, Metadata, error) {
	tree, err := l.openTree(opts)
	if err != nil {
		return nil, nil, err
	}

	data, err := bind(tree, l.src, opts)
	if err != nil {
		return nil, nil, err
	}

	log.WithFields(log.Fields{
		"path":   l.path,
		"kind":   l.kind.String(),
		"groups": len(data),
	}).Debug("loaded dataset")
	return data, filterMetadata(tree), nil
}

// Inspect opens the dataset and walks its object tree without binding any
// arrays. The loader stays open afterwards, exactly as after Load.
func (l *BaseLoader) Inspect(opts Options) (*FileTree, error) {
	return l.openTree(opts)
}

// openTree classifies the path, opens the matching source and walks it.
func (l *BaseLoader) openTree(opts Options) (*FileTree, error) {
	if l.src != nil {
		if err := l.Close(); err != nil {
			return nil, err
		}
	}

	kind, err := Classify(l.path)
	if err != nil {
		return nil, err
	}
	l.kind = kind

	var src Source
	switch kind {
	case SingleFile:
		f, err := hdf5.Open(l.path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", l.path)
		}
		src = newHDF5Source(f)
		l.location = l.path

	case ZarrStore:
		root, err := zarr.OpenDir(l.path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening zarr store %s", l.path)
		}
		src = newZarrSource(root)
		l.location = l.path

	case ChunkedDirectory:
		src, err = l.openChunked(opts)
		if err != nil {
			return nil, err
		}

	default:
		return nil, errors.Errorf("cannot load %s", l.path)
	}
	l.src = src

	root, err := src.Root()
	if err != nil {
		return nil, err
	}
	tree, err := WalkTree(root)
	if err != nil {
		return nil, errors.Wrapf(err, "walking %s", l.location)
	}
	return tree, nil
}

// openChunked merges (or reuses the cached merge of) a chunked directory
// and opens the result, switching to the stitch source for virtual merges.
func (l *BaseLoader) openChunked(opts Options) (Source, error) {
	files, err := discoverChunks(l.path, opts.FilePrefix)
	if err != nil {
		return nil, err
	}

	loc, err := resolveCache(l.path, l.cfg, opts.Overwrite)
	if err != nil {
		return nil, err
	}
	if loc.merge {
		if err := createMerged(loc.path, files, opts.VirtualCache, l.path); err != nil {
			if loc.tempfile {
				os.Remove(loc.path)
			}
			return nil, err
		}
	}
	l.location = loc.path
	if loc.tempfile {
		l.tempfile = loc.path
	}

	f, err := hdf5.Open(loc.path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening merged file %s", loc.path)
	}

	manifest, err := readStitchManifest(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if manifest == nil {
		return newHDF5Source(f), nil
	}

	// virtual merge: the small descriptor file is only needed to recover
	// the manifest and the name registry
	names := readNameRegistry(f)
	if err := f.Close(); err != nil {
		return nil, err
	}
	return newStitchSource(manifest, names), nil
}

// Close releases the open handle and removes a temporary merged file.
// Lazy arrays from the previous Load become unusable.
func (l *BaseLoader) Close() error {
	var err error
	if l.src != nil {
		err = l.src.Close()
		l.src = nil
	}
	if l.tempfile != "" {
		os.Remove(l.tempfile)
		l.tempfile = ""
	}
	return err
}
