// Package load resolves what files back a simulation dataset and presents
// them as one coherent set of named lazy arrays.
//
// A dataset path is classified as a single HDF5 file, a Zarr store, or a
// directory of numbered HDF5 chunk files. Chunked directories are merged
// into one logical HDF5 file, physically or as a virtual stitch, cached by
// source-path hash. The merged or opened file is walked and every dataset
// is bound to a lazily evaluated chunked array with a deterministic name,
// plus a synthesized uid array per group.
package load

import "github.com/pkg/errors"

var (
	// ErrAmbiguousPrefix is returned when a chunked directory holds files
	// from more than one prefix and no FilePrefix filter was supplied.
	ErrAmbiguousPrefix = errors.New("more than one file prefix in directory, specify FilePrefix")

	// ErrNoChunkFiles is returned when a chunked directory holds no usable
	// chunk files.
	ErrNoChunkFiles = errors.New("no chunk files found")
)
