package load

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/simdata/snapload/lazy"
)

// Data maps top-level group name to leaf dataset name to the bound lazy
// array. Each group additionally carries a synthesized "uid" array of
// consecutive integers identifying its rows.
type Data map[string]map[string]*lazy.Array

// Metadata maps absolute object path to that object's attributes, the root
// attributes under "/".
type Metadata map[string]map[string]interface{}

// UIDField is the name of the synthesized per-row identifier array.
const UIDField = "uid"

// deriveName builds a lazy array's identity for one dataset: the registry
// name when the file carries one for the stripped dataset path, else
// "Dataset" + token + the path with slashes replaced by underscores.
func deriveName(names map[string]string, token, dsPath string) string {
	if name, ok := names[strings.Trim(dsPath, "/")]; ok {
		return name
	}
	return "Dataset" + token + strings.ReplaceAll(dsPath, "/", "_")
}

// bind walks the tree and attaches every included dataset to a lazily
// evaluated chunked array view served by src. Only one level of group
// nesting is materialized: a dataset lands in the container named after the
// first component of its path.
func bind(tree *FileTree, src Source, opts Options) (Data, error) {
	names := src.Names()
	data := Data{}

	// ordered per-group dataset names, for deterministic uid synthesis
	order := map[string][]string{}

	var groupsWithDatasets []string
	if opts.GroupsLoad == nil {
		seen := map[string]struct{}{}
		for _, ds := range tree.Datasets {
			top := topComponent(ds.Path)
			if isReserved(top) {
				continue
			}
			// a group qualifies only when it directly contains a dataset;
			// groups that merely nest other groups are skipped
			if parentPath(ds.Path) != "/"+top {
				continue
			}
			seen[top] = struct{}{}
		}
		for g := range seen {
			groupsWithDatasets = append(groupsWithDatasets, g)
		}
		sort.Strings(groupsWithDatasets)
	}

	for _, group := range tree.Groups {
		var toload bool
		if opts.GroupsLoad != nil {
			toload = hasAnyPrefix(group, opts.GroupsLoad)
		} else {
			for _, g := range groupsWithDatasets {
				if group == "/"+g {
					toload = true
					break
				}
			}
		}
		if toload {
			data[topComponent(group)] = map[string]*lazy.Array{}
		}
	}

	for _, ds := range tree.Datasets {
		var toload bool
		if opts.GroupsLoad != nil {
			toload = hasAnyPrefix(ds.Path, opts.GroupsLoad)
		} else {
			for _, g := range groupsWithDatasets {
				if strings.HasPrefix(ds.Path, "/"+g+"/") {
					toload = true
					break
				}
			}
		}
		if !toload {
			continue
		}

		group := topComponent(ds.Path)
		if isReserved(group) {
			continue
		}
		if _, ok := data[group]; !ok {
			data[group] = map[string]*lazy.Array{}
		}

		arr, err := bindDataset(ds, src, names, opts)
		if err != nil {
			return nil, err
		}
		leaf := leafName(ds.Path)
		data[group][leaf] = arr
		order[group] = append(order[group], leaf)
	}

	for group, fields := range data {
		uid, err := synthesizeUID(group, fields, order[group], opts)
		if err != nil {
			return nil, err
		}
		if uid != nil {
			fields[UIDField] = uid
		}
	}

	return data, nil
}

// bindDataset builds one lazy chunked array view over a dataset.
func bindDataset(ds DatasetInfo, src Source, names map[string]string, opts Options) (*lazy.Array, error) {
	name := deriveName(names, opts.Token, ds.Path)

	chunkRows := opts.Chunksize
	if chunkRows == 0 {
		chunkRows = lazy.AutoChunkRows(ds.Shape[0], ds.RowBytes)
	}
	plan := lazy.PlanChunks(ds.Shape[0], chunkRows)

	path := ds.Path
	read := func(start, count uint64) (interface{}, error) {
		return src.ReadRows(path, start, count)
	}
	arr, err := lazy.New(name, ds.Shape, plan, read)
	return arr, errors.Wrapf(err, "binding %s", ds.Path)
}

// synthesizeUID builds the per-row identifier array for one group: a dense
// integer range sized to the group's row count, with chunk boundaries taken
// from a representative dataset. A 1-D dataset is preferred; failing that,
// the leading-axis chunking of the first multi-dimensional dataset
// encountered is used.
func synthesizeUID(group string, fields map[string]*lazy.Array, order []string, opts Options) (*lazy.Array, error) {
	var (
		rows  uint64
		plan  []uint64
		found bool
	)
	for _, leaf := range order {
		arr := fields[leaf]
		if !found {
			rows, plan, found = arr.Rows(), arr.Chunks(), true
		}
		if len(arr.Shape()) == 1 {
			rows, plan = arr.Rows(), arr.Chunks()
			break
		}
	}
	if !found {
		return nil, nil
	}

	name := fmt.Sprintf("Dataset%s_%s_%s", opts.Token, group, UIDField)
	uid, err := lazy.Arange(name, rows, plan)
	return uid, errors.Wrapf(err, "synthesizing uid for group %s", group)
}

// hasAnyPrefix matches an absolute object path against caller-supplied
// prefixes, which are usually written without the leading slash.
func hasAnyPrefix(path string, prefixes []string) bool {
	trimmed := strings.TrimPrefix(path, "/")
	for _, p := range prefixes {
		if strings.HasPrefix(trimmed, strings.TrimPrefix(p, "/")) {
			return true
		}
	}
	return false
}

// filterMetadata passes the walked attributes through, dropping the
// loader's reserved objects.
func filterMetadata(tree *FileTree) Metadata {
	md := Metadata{}
	for path, attrs := range tree.Attrs {
		if path != RootAttrKey && isReserved(topComponent(path)) {
			continue
		}
		md[path] = attrs
	}
	return md
}
