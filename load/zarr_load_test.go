package load

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simdata/snapload/lazy"
	"github.com/simdata/snapload/zarr"
)

// writeZarrStore builds a local Zarr store mirroring the HDF5 snapshot
// fixture: PartType0/Coordinates (n,3) and PartType0/Masses (n).
func writeZarrStore(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	s, err := zarr.NewLocalStore(dir)
	require.NoError(t, err)

	putDoc := func(key, doc string) {
		require.NoError(t, s.Put(key, bytes.NewReader([]byte(doc))))
	}
	putChunk := func(key string, vals []float64) {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, vals))
		require.NoError(t, s.Put(key, &buf))
	}

	putDoc(".zgroup", `{"zarr_format": 2}`)
	putDoc(".zattrs", `{"Simulation": "testbox"}`)
	putDoc("PartType0/.zgroup", `{"zarr_format": 2}`)

	coords := make([]float64, 0, n*3)
	masses := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		g := float64(i)
		coords = append(coords, g, g+0.25, g+0.5)
		masses = append(masses, g*2)
	}

	putDoc("PartType0/Coordinates/.zarray", fmt.Sprintf(
		`{"zarr_format": 2, "shape": [%d, 3], "chunks": [%d, 3], "dtype": "<f8", "order": "C"}`, n, n))
	putChunk("PartType0/Coordinates/0.0", coords)
	putDoc("PartType0/Masses/.zarray", fmt.Sprintf(
		`{"zarr_format": 2, "shape": [%d], "chunks": [%d], "dtype": "<f8", "order": "C"}`, n, n))
	putChunk("PartType0/Masses/0", masses)

	return dir
}

func TestLoadZarrStore(t *testing.T) {
	dir := writeZarrStore(t, 100)

	l := New(dir, nil)
	defer l.Close()
	data, meta, err := l.Load(Options{Token: "z"})
	require.NoError(t, err)
	assert.Equal(t, ZarrStore, l.Kind())

	checkSnapshotData(t, data)
	assert.Equal(t, "Datasetz_PartType0_Coordinates", data["PartType0"]["Coordinates"].Name())
	assert.Equal(t, "testbox", meta[RootAttrKey]["Simulation"])

	ev := lazy.NewEvaluator()
	masses, err := ev.Compute(context.Background(), data["PartType0"]["Masses"])
	require.NoError(t, err)
	require.Len(t, masses, 100)
	assert.Equal(t, float64(42*2), masses.([]float64)[42])
}
