package load

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	dir := t.TempDir()

	file := filepath.Join(dir, "snap.hdf5")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	k, err := Classify(file)
	require.NoError(t, err)
	assert.Equal(t, SingleFile, k)

	zarrDir := filepath.Join(dir, "store")
	require.NoError(t, os.MkdirAll(zarrDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(zarrDir, ".zgroup"), []byte("{}"), 0o644))
	k, err = Classify(zarrDir)
	require.NoError(t, err)
	assert.Equal(t, ZarrStore, k)

	chunkDir := filepath.Join(dir, "chunks")
	require.NoError(t, os.MkdirAll(chunkDir, 0o755))
	k, err = Classify(chunkDir)
	require.NoError(t, err)
	assert.Equal(t, ChunkedDirectory, k)

	_, err = Classify(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "unclassified", Unclassified.String())
	assert.Equal(t, "single-file", SingleFile.String())
	assert.Equal(t, "zarr-store", ZarrStore.String())
	assert.Equal(t, "chunked-directory", ChunkedDirectory.String())
}
