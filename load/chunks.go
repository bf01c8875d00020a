package load

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// chunkFile is one fragment of a logical dataset.
type chunkFile struct {
	path  string
	index int
}

// discoverChunks finds the chunk files of dir and returns them ordered by
// their embedded integer chunk index (the second-to-last dot-delimited
// filename field), never by lexical filename order. All files must share a
// single filename prefix (the part before the first dot) unless filePrefix
// narrows the candidates down.
func discoverChunks(dir, filePrefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading chunk directory %s", dir)
	}

	var files []chunkFile
	prefixes := map[string]struct{}{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, filePrefix) {
			continue
		}
		prefixes[strings.SplitN(name, ".", 2)[0]] = struct{}{}

		fields := strings.Split(name, ".")
		if len(fields) < 3 {
			return nil, errors.Errorf("chunk file %s has no numeric index field", name)
		}
		idx, err := strconv.Atoi(fields[len(fields)-2])
		if err != nil {
			return nil, errors.Wrapf(err, "parsing chunk index of %s", name)
		}
		files = append(files, chunkFile{path: filepath.Join(dir, name), index: idx})
	}

	if len(prefixes) > 1 {
		avail := make([]string, 0, len(prefixes))
		for p := range prefixes {
			avail = append(avail, p)
		}
		sort.Strings(avail)
		return nil, errors.Wrapf(ErrAmbiguousPrefix, "available prefixes: %s", strings.Join(avail, ", "))
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(ErrNoChunkFiles, "in %s", dir)
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].index < files[j].index })

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}
