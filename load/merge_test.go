package load

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simdata/snapload/hdf5"
)

func TestMergePhysical(t *testing.T) {
	dir := writeChunkDir(t, 2, 50)
	dst := filepath.Join(t.TempDir(), "merged.hdf5")

	require.NoError(t, Merge(dir, dst, Options{}))

	f, err := hdf5.Open(dst)
	require.NoError(t, err)
	defer f.Close()

	ds, err := f.OpenDataset("/PartType0/Coordinates")
	require.NoError(t, err)
	assert.Equal(t, []uint64{100, 3}, ds.Shape())

	masses, err := f.OpenDataset("/PartType0/Masses")
	require.NoError(t, err)
	vals, err := masses.ReadFloat64()
	require.NoError(t, err)
	require.Len(t, vals, 100)
	// rows from the second chunk file follow those of the first
	assert.Equal(t, float64(0), vals[0])
	assert.Equal(t, float64(99*2), vals[99])

	// physical merges carry no stitch manifest
	m, err := readStitchManifest(f)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestMergeRefusesExistingDestination(t *testing.T) {
	dir := writeChunkDir(t, 2, 10)
	dst := filepath.Join(t.TempDir(), "merged.hdf5")

	require.NoError(t, Merge(dir, dst, Options{}))
	err := Merge(dir, dst, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, Merge(dir, dst, Options{Overwrite: true}))
}

func TestMergeVirtualMissingDataset(t *testing.T) {
	dir := t.TempDir()
	writeSnapshotFile(t, filepath.Join(dir, "snap.0.hdf5"), 0, 10)

	// second chunk lacks Coordinates entirely
	f, err := hdf5.Create(filepath.Join(dir, "snap.1.hdf5"))
	require.NoError(t, err)
	pt0, err := f.Root().CreateGroup("PartType0")
	require.NoError(t, err)
	_, err = pt0.CreateDataset("Masses", []float64{1, 2})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	dst := filepath.Join(t.TempDir(), "merged.hdf5")
	err = Merge(dir, dst, Options{VirtualCache: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing from")

	// a failed merge leaves nothing behind
	assert.NoFileExists(t, dst)
}

func TestMergeWritesNameRegistry(t *testing.T) {
	dir := writeChunkDir(t, 2, 10)
	dst := filepath.Join(t.TempDir(), "merged.hdf5")
	require.NoError(t, Merge(dir, dst, Options{}))

	f, err := hdf5.Open(dst)
	require.NoError(t, err)
	defer f.Close()

	names := readNameRegistry(f)
	require.NotNil(t, names)
	require.Contains(t, names, "PartType0/Coordinates")
	require.Contains(t, names, "PartType0/Masses")

	name := names["PartType0/Coordinates"]
	assert.True(t, strings.HasPrefix(name, "Dataset"), name)
	assert.True(t, strings.HasSuffix(name, "_PartType0_Coordinates"), name)
	// the hash is over the source path, so both datasets share it
	assert.Equal(t,
		strings.TrimSuffix(name, "_PartType0_Coordinates"),
		strings.TrimSuffix(names["PartType0/Masses"], "_PartType0_Masses"))
}

func TestMergeVirtualManifest(t *testing.T) {
	dir := writeChunkDir(t, 3, 20)
	dst := filepath.Join(t.TempDir(), "merged.hdf5")
	require.NoError(t, Merge(dir, dst, Options{VirtualCache: true}))

	f, err := hdf5.Open(dst)
	require.NoError(t, err)
	m, err := readStitchManifest(f)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.NoError(t, f.Close())

	assert.Equal(t, dir, m.Source)
	assert.Len(t, m.Files, 3)
	assert.Contains(t, m.Groups, "/PartType0")

	var coords *stitchDataset
	for i := range m.Datasets {
		if m.Datasets[i].Path == "/PartType0/Coordinates" {
			coords = &m.Datasets[i]
		}
	}
	require.NotNil(t, coords)
	assert.Equal(t, []uint64{60, 3}, coords.Shape)
	assert.Equal(t, []uint64{20, 20, 20}, coords.Rows)
}

// chdir is t.Chdir (Go 1.24+) for toolchains that predate it.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Errorf("restoring working directory: %v", err)
		}
	})
}

func TestMergeVirtualFromRelativePath(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "snapdir")
	require.NoError(t, os.Mkdir(dir, 0o755))
	for i := 0; i < 2; i++ {
		writeSnapshotFile(t, filepath.Join(dir, fmt.Sprintf("snap.%d.hdf5", i)), i*10, 10)
	}
	dst := filepath.Join(t.TempDir(), "merged.hdf5")

	chdir(t, parent)
	require.NoError(t, Merge("snapdir", dst, Options{VirtualCache: true}))

	// reading back must not depend on the merge-time working directory
	chdir(t, t.TempDir())

	f, err := hdf5.Open(dst)
	require.NoError(t, err)
	m, err := readStitchManifest(f)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.NoError(t, f.Close())

	for _, p := range m.Files {
		assert.True(t, filepath.IsAbs(p), p)
	}

	src := newStitchSource(m, nil)
	defer src.Close()
	v, err := src.ReadRows("/PartType0/Masses", 5, 10)
	require.NoError(t, err)
	vals := v.([]float64)
	require.Len(t, vals, 10)
	for i, got := range vals {
		assert.Equal(t, float64(5+i)*2, got)
	}
}

func TestStitchSourceReadAcrossFiles(t *testing.T) {
	dir := writeChunkDir(t, 3, 20)
	dst := filepath.Join(t.TempDir(), "merged.hdf5")
	require.NoError(t, Merge(dir, dst, Options{VirtualCache: true}))

	f, err := hdf5.Open(dst)
	require.NoError(t, err)
	m, err := readStitchManifest(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	src := newStitchSource(m, nil)
	defer src.Close()

	// [15,25) spans the boundary between the first two chunk files
	v, err := src.ReadRows("/PartType0/Masses", 15, 10)
	require.NoError(t, err)
	vals, ok := v.([]float64)
	require.True(t, ok)
	require.Len(t, vals, 10)
	for i, got := range vals {
		assert.Equal(t, float64(15+i)*2, got)
	}

	// full read of a 2-D dataset
	v, err = src.ReadRows("/PartType0/Coordinates", 0, 60)
	require.NoError(t, err)
	assert.Len(t, v.([]float64), 60*3)

	_, err = src.ReadRows("/PartType0/Masses", 55, 10)
	assert.Error(t, err, "out of bounds")
	_, err = src.ReadRows("/NoSuch", 0, 1)
	assert.Error(t, err)

	// zero-count reads still land on a typed slice
	v, err = src.ReadRows("/PartType0/Masses", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, v.([]float64))
	v, err = src.ReadRows("/PartType0/Masses", 60, 0)
	require.NoError(t, err)
	assert.Empty(t, v.([]float64))
}

func TestCanonicalNameDeterministic(t *testing.T) {
	a := canonicalName("/sim/output/snapdir_000", "/PartType0/Coordinates")
	b := canonicalName("/sim/output/snapdir_000", "/PartType0/Coordinates")
	c := canonicalName("/sim/output/snapdir_001", "/PartType0/Coordinates")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasSuffix(a, "_PartType0_Coordinates"))
}

func TestIsReserved(t *testing.T) {
	assert.True(t, isReserved(nameRegistryGroup))
	assert.True(t, isReserved(virtualLayoutDataset))
	assert.False(t, isReserved("PartType0"))
}
