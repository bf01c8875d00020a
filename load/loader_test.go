package load

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simdata/snapload/config"
	"github.com/simdata/snapload/hdf5"
	"github.com/simdata/snapload/lazy"
)

// writeSnapshotFile writes one HDF5 file holding rows particles starting at
// global index start: PartType0/Coordinates (rows,3), PartType0/Masses
// (rows), plus header attributes.
func writeSnapshotFile(t *testing.T, path string, start, rows int) {
	t.Helper()
	f, err := hdf5.Create(path)
	require.NoError(t, err)

	require.NoError(t, f.Root().SetAttr("Simulation", "testbox"))

	hdr, err := f.Root().CreateGroup("Header")
	require.NoError(t, err)
	require.NoError(t, hdr.SetAttr("BoxSize", float64(25)))

	pt0, err := f.Root().CreateGroup("PartType0")
	require.NoError(t, err)

	coords := make([][]float64, rows)
	for i := range coords {
		g := float64(start + i)
		coords[i] = []float64{g, g + 0.25, g + 0.5}
	}
	_, err = pt0.CreateDataset("Coordinates", coords)
	require.NoError(t, err)

	masses := make([]float64, rows)
	for i := range masses {
		masses[i] = float64(start+i) * 2
	}
	_, err = pt0.CreateDataset("Masses", masses)
	require.NoError(t, err)

	require.NoError(t, f.Close())
}

// writeChunkDir writes a chunked directory of nchunks files of rowsPer rows
// each and returns its path.
func writeChunkDir(t *testing.T, nchunks, rowsPer int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < nchunks; i++ {
		name := fmt.Sprintf("snap.%d.hdf5", i)
		writeSnapshotFile(t, filepath.Join(dir, name), i*rowsPer, rowsPer)
	}
	return dir
}

func cacheConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{"cachedir": t.TempDir()}
}

// wantCoords returns the flat row-major coordinate values of n particles.
func wantCoords(n int) []float64 {
	out := make([]float64, 0, n*3)
	for i := 0; i < n; i++ {
		g := float64(i)
		out = append(out, g, g+0.25, g+0.5)
	}
	return out
}

func wantUID(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i)
	}
	return out
}

func checkSnapshotData(t *testing.T, data Data) {
	t.Helper()
	require.Contains(t, data, "PartType0")
	fields := data["PartType0"]
	require.Contains(t, fields, "Coordinates")
	require.Contains(t, fields, "Masses")
	require.Contains(t, fields, UIDField)

	coords := fields["Coordinates"]
	assert.Equal(t, []uint64{100, 3}, coords.Shape())

	ev := lazy.NewEvaluator()
	v, err := ev.Compute(context.Background(), coords)
	require.NoError(t, err)
	assert.Equal(t, wantCoords(100), v)

	uid, err := ev.Compute(context.Background(), fields[UIDField])
	require.NoError(t, err)
	assert.Equal(t, wantUID(100), uid)
}

func TestLoadSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.hdf5")
	writeSnapshotFile(t, path, 0, 100)

	l := New(path, nil)
	defer l.Close()
	data, meta, err := l.Load(Options{Token: "abc"})
	require.NoError(t, err)
	assert.Equal(t, SingleFile, l.Kind())

	checkSnapshotData(t, data)
	assert.Equal(t, "Datasetabc_PartType0_Coordinates", data["PartType0"]["Coordinates"].Name())
	assert.Equal(t, "Datasetabc_PartType0_uid", data["PartType0"][UIDField].Name())

	// Header holds no datasets, so it is not bound as a group
	assert.NotContains(t, data, "Header")
	// but its attributes survive in the metadata
	require.Contains(t, meta, "/Header")
	assert.Equal(t, float64(25), meta["/Header"]["BoxSize"])
	assert.Equal(t, "testbox", meta[RootAttrKey]["Simulation"])
}

func TestLoadChunkedPhysical(t *testing.T) {
	dir := writeChunkDir(t, 2, 50)

	l := New(dir, cacheConfig(t))
	defer l.Close()
	data, meta, err := l.Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, ChunkedDirectory, l.Kind())
	assert.NotEqual(t, dir, l.Location())

	checkSnapshotData(t, data)
	require.Contains(t, meta, "/Header")
	assert.Equal(t, float64(25), meta["/Header"]["BoxSize"])

	// the reserved registry never surfaces as data or metadata
	assert.NotContains(t, data, nameRegistryGroup)
	assert.NotContains(t, meta, "/"+nameRegistryGroup)

	// merged names come from the registry, not from the token
	name := data["PartType0"]["Coordinates"].Name()
	assert.True(t, strings.HasPrefix(name, "Dataset"), name)
	assert.True(t, strings.HasSuffix(name, "_PartType0_Coordinates"), name)
}

func TestLoadChunkedVirtual(t *testing.T) {
	dir := writeChunkDir(t, 2, 50)

	l := New(dir, cacheConfig(t))
	defer l.Close()
	data, _, err := l.Load(Options{VirtualCache: true})
	require.NoError(t, err)

	checkSnapshotData(t, data)
}

func TestVirtualMatchesPhysical(t *testing.T) {
	dir := writeChunkDir(t, 3, 20)

	phys := New(dir, cacheConfig(t))
	defer phys.Close()
	physData, _, err := phys.Load(Options{})
	require.NoError(t, err)

	virt := New(dir, cacheConfig(t))
	defer virt.Close()
	virtData, _, err := virt.Load(Options{VirtualCache: true})
	require.NoError(t, err)

	ev := lazy.NewEvaluator()
	for _, field := range []string{"Coordinates", "Masses"} {
		pv, err := ev.Compute(context.Background(), physData["PartType0"][field])
		require.NoError(t, err)
		// separate evaluator: the arrays share names, which would
		// otherwise short-circuit the comparison
		vv, err := lazy.NewEvaluator().Compute(context.Background(), virtData["PartType0"][field])
		require.NoError(t, err)
		assert.Equal(t, pv, vv, field)
	}
}

func TestCacheIdempotence(t *testing.T) {
	dir := writeChunkDir(t, 2, 50)
	cfg := cacheConfig(t)

	first := New(dir, cfg)
	firstData, _, err := first.Load(Options{})
	require.NoError(t, err)
	merged := first.Location()
	info1, err := os.Stat(merged)
	require.NoError(t, err)
	name1 := firstData["PartType0"]["Coordinates"].Name()
	require.NoError(t, first.Close())

	second := New(dir, cfg)
	defer second.Close()
	data, _, err := second.Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, merged, second.Location())
	info2, err := os.Stat(merged)
	require.NoError(t, err)
	assert.Equal(t, info1.ModTime(), info2.ModTime(), "cached merge must be reused, not rebuilt")
	assert.Equal(t, name1, data["PartType0"]["Coordinates"].Name(), "derived names must be stable across loads")
}

func TestOverwriteRemerges(t *testing.T) {
	dir := writeChunkDir(t, 2, 50)
	cfg := cacheConfig(t)

	first := New(dir, cfg)
	_, _, err := first.Load(Options{})
	require.NoError(t, err)
	merged := first.Location()
	require.NoError(t, first.Close())

	// corrupt the cached file; overwrite must rebuild it
	require.NoError(t, os.WriteFile(merged, []byte("junk"), 0o644))

	second := New(dir, cfg)
	defer second.Close()
	data, _, err := second.Load(Options{Overwrite: true})
	require.NoError(t, err)
	checkSnapshotData(t, data)
}

func TestLoadChunkedWithoutCacheDir(t *testing.T) {
	dir := writeChunkDir(t, 2, 50)

	l := New(dir, nil)
	data, _, err := l.Load(Options{})
	require.NoError(t, err)
	checkSnapshotData(t, data)

	tmp := l.Location()
	_, err = os.Stat(tmp)
	require.NoError(t, err)

	// the temporary merged file is removed on Close
	require.NoError(t, l.Close())
	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))
}

func TestGroupsLoadFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.hdf5")
	writeSnapshotFile(t, path, 0, 100)

	l := New(path, nil)
	defer l.Close()
	data, _, err := l.Load(Options{GroupsLoad: []string{"PartType0/Masses"}})
	require.NoError(t, err)

	require.Contains(t, data, "PartType0")
	assert.Contains(t, data["PartType0"], "Masses")
	assert.NotContains(t, data["PartType0"], "Coordinates")
}

func TestTokenNameStability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.hdf5")
	writeSnapshotFile(t, path, 0, 100)

	names := func() map[string]string {
		l := New(path, nil)
		defer l.Close()
		data, _, err := l.Load(Options{Token: "tok"})
		require.NoError(t, err)
		out := map[string]string{}
		for field, arr := range data["PartType0"] {
			out[field] = arr.Name()
		}
		return out
	}

	assert.Equal(t, names(), names())
}

func TestChunksizeOption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.hdf5")
	writeSnapshotFile(t, path, 0, 100)

	l := New(path, nil)
	defer l.Close()
	data, _, err := l.Load(Options{Chunksize: 30})
	require.NoError(t, err)

	coords := data["PartType0"]["Coordinates"]
	assert.Equal(t, []uint64{30, 30, 30, 10}, coords.Chunks())
	// uid follows the representative 1-D dataset's plan
	assert.Equal(t, []uint64{30, 30, 30, 10}, data["PartType0"][UIDField].Chunks())
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.hdf5")
	writeSnapshotFile(t, path, 0, 10)

	l := New(path, nil)
	defer l.Close()
	tree, err := l.Inspect(Options{})
	require.NoError(t, err)

	assert.Contains(t, tree.Groups, "/PartType0")
	assert.Contains(t, tree.Groups, "/Header")
	paths := make([]string, 0, len(tree.Datasets))
	for _, ds := range tree.Datasets {
		paths = append(paths, ds.Path)
	}
	assert.Contains(t, paths, "/PartType0/Coordinates")
	assert.Contains(t, paths, "/PartType0/Masses")
}
