package load

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Kind is the loading strategy for a dataset path.
type Kind int

const (
	// Unclassified is the zero value before classification.
	Unclassified Kind = iota
	// SingleFile is a single HDF5 file.
	SingleFile
	// ZarrStore is a directory carrying a Zarr group marker.
	ZarrStore
	// ChunkedDirectory is a directory of numbered HDF5 chunk files.
	ChunkedDirectory
)

func (k Kind) String() string {
	switch k {
	case SingleFile:
		return "single-file"
	case ZarrStore:
		return "zarr-store"
	case ChunkedDirectory:
		return "chunked-directory"
	default:
		return "unclassified"
	}
}

// zarrGroupMarker identifies a directory as a Zarr store when present
// directly inside it.
const zarrGroupMarker = ".zgroup"

// Classify decides which loading strategy applies to path. Only existence
// checks are performed; a missing path surfaces the filesystem error.
func Classify(path string) (Kind, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Unclassified, errors.Wrapf(err, "classifying %s", path)
	}
	if !info.IsDir() {
		return SingleFile, nil
	}
	if mi, err := os.Stat(filepath.Join(path, zarrGroupMarker)); err == nil && !mi.IsDir() {
		return ZarrStore, nil
	}
	return ChunkedDirectory, nil
}
