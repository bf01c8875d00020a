package load

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/simdata/snapload/config"
)

// cacheFileName is the merged artifact inside a per-dataset cache directory.
const cacheFileName = "data.hdf5"

// hashPath returns the stable, path-based (not content-based) cache key of
// a source path.
func hashPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(abs))
}

// cacheLocation is the outcome of resolving where a merged file lives.
type cacheLocation struct {
	path     string
	merge    bool // the merger must run before the location is usable
	tempfile bool // location is process-local and removed on Close
}

// resolveCache decides whether a previously merged file can be reused for
// source. With a cache directory configured the location is
// <cachedir>/<hash(source)>/data.hdf5 and the merge is skipped when that
// file already exists and no overwrite was requested. Without one, a
// process-local temporary file is used and every load pays the merge cost.
//
// Cache entries persist until removed manually; concurrent merges into the
// same cache path are not locked against each other.
func resolveCache(source string, cfg config.Config, overwrite bool) (cacheLocation, error) {
	if cachedir, ok := cfg.CacheDir(); ok {
		dir := filepath.Join(cachedir, hashPath(source))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return cacheLocation{}, errors.Wrapf(err, "creating cache directory %s", dir)
		}
		loc := filepath.Join(dir, cacheFileName)
		if info, err := os.Stat(loc); err == nil && !info.IsDir() && !overwrite {
			log.WithField("cache", loc).Debug("reusing cached merged file")
			return cacheLocation{path: loc}, nil
		}
		return cacheLocation{path: loc, merge: true}, nil
	}

	f, err := os.CreateTemp("", "snapload-*.hdf5")
	if err != nil {
		return cacheLocation{}, errors.Wrap(err, "allocating temporary merge file")
	}
	f.Close()
	log.Warn("no caching directory configured; the merged file is temporary and every load re-pays the merge cost")
	return cacheLocation{path: f.Name(), merge: true, tempfile: true}, nil
}
