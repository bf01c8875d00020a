package load

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveName(t *testing.T) {
	// no registry: token + path with slashes replaced
	assert.Equal(t, "Datasettok_PartType0_Coordinates",
		deriveName(nil, "tok", "/PartType0/Coordinates"))
	assert.Equal(t, "Dataset_PartType0_Coordinates",
		deriveName(nil, "", "/PartType0/Coordinates"))

	// a registry entry for the stripped path wins over the token
	names := map[string]string{"PartType0/Coordinates": "Datasetcafe_PartType0_Coordinates"}
	assert.Equal(t, "Datasetcafe_PartType0_Coordinates",
		deriveName(names, "tok", "/PartType0/Coordinates"))
	// other paths still fall back to the token
	assert.Equal(t, "Datasettok_PartType0_Masses",
		deriveName(names, "tok", "/PartType0/Masses"))
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "PartType0", topComponent("/PartType0/Coordinates"))
	assert.Equal(t, "Coordinates", leafName("/PartType0/Coordinates"))
	assert.Equal(t, "/PartType0", parentPath("/PartType0/Coordinates"))
	assert.Equal(t, "/", parentPath("/Header"))
}

// fakeSource serves rows computed on the fly, for binder tests that need no
// real storage.
type fakeSource struct {
	names map[string]string
}

func (s *fakeSource) Root() (Node, error) { return nil, nil }
func (s *fakeSource) Names() map[string]string { return s.names }
func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) ReadRows(path string, start, count uint64) (interface{}, error) {
	out := make([]float64, count)
	for i := range out {
		out[i] = float64(start) + float64(i)
	}
	return out, nil
}

func snapshotTree() *FileTree {
	return &FileTree{
		Groups: []string{"/Header", "/PartType0", "/PartType1"},
		Datasets: []DatasetInfo{
			{Path: "/PartType0/Coordinates", Shape: []uint64{100, 3}, Dtype: "float64", RowBytes: 24},
			{Path: "/PartType0/Masses", Shape: []uint64{100}, Dtype: "float64", RowBytes: 8},
			{Path: "/PartType1/Ids", Shape: []uint64{40}, Dtype: "int64", RowBytes: 8},
		},
		Attrs: map[string]map[string]interface{}{
			RootAttrKey: {"Simulation": "testbox"},
			"/Header":   {"BoxSize": 25.0},
		},
	}
}

func TestBindGroupInclusion(t *testing.T) {
	data, err := bind(snapshotTree(), &fakeSource{}, Options{})
	require.NoError(t, err)

	// only groups directly containing datasets are bound
	assert.Contains(t, data, "PartType0")
	assert.Contains(t, data, "PartType1")
	assert.NotContains(t, data, "Header")

	assert.Len(t, data["PartType0"], 3) // Coordinates, Masses, uid
	assert.Len(t, data["PartType1"], 2) // Ids, uid
}

func TestBindNestedGroupSkipped(t *testing.T) {
	tree := &FileTree{
		Groups: []string{"/Outer", "/Outer/Inner"},
		Datasets: []DatasetInfo{
			{Path: "/Outer/Inner/Values", Shape: []uint64{10}, Dtype: "float64", RowBytes: 8},
		},
		Attrs: map[string]map[string]interface{}{RootAttrKey: {}},
	}

	data, err := bind(tree, &fakeSource{}, Options{})
	require.NoError(t, err)
	// Outer holds no dataset directly, so nothing is bound by default
	assert.Empty(t, data)

	// an explicit prefix brings the nested dataset in
	data, err = bind(tree, &fakeSource{}, Options{GroupsLoad: []string{"Outer"}})
	require.NoError(t, err)
	require.Contains(t, data, "Outer")
	assert.Contains(t, data["Outer"], "Values")
}

func TestBindUIDRepresentative(t *testing.T) {
	data, err := bind(snapshotTree(), &fakeSource{}, Options{Token: "t"})
	require.NoError(t, err)

	// uid is sized and chunked like the group's 1-D representative
	uid := data["PartType0"][UIDField]
	require.NotNil(t, uid)
	assert.Equal(t, uint64(100), uid.Rows())
	assert.Equal(t, data["PartType0"]["Masses"].Chunks(), uid.Chunks())
	assert.Equal(t, "Datasett_PartType0_uid", uid.Name())

	uid1 := data["PartType1"][UIDField]
	require.NotNil(t, uid1)
	assert.Equal(t, uint64(40), uid1.Rows())
}

func TestBindRegistryNames(t *testing.T) {
	src := &fakeSource{names: map[string]string{
		"PartType0/Coordinates": "Datasetdeadbeef_PartType0_Coordinates",
	}}
	data, err := bind(snapshotTree(), src, Options{Token: "tok"})
	require.NoError(t, err)

	assert.Equal(t, "Datasetdeadbeef_PartType0_Coordinates",
		data["PartType0"]["Coordinates"].Name())
	assert.Equal(t, "Datasettok_PartType0_Masses",
		data["PartType0"]["Masses"].Name())
}

func TestBindReservedSkipped(t *testing.T) {
	tree := snapshotTree()
	tree.Groups = append(tree.Groups, "/"+nameRegistryGroup)
	tree.Datasets = append(tree.Datasets, DatasetInfo{
		Path: "/" + virtualLayoutDataset, Shape: []uint64{128}, Dtype: "uint8", RowBytes: 1,
	})
	tree.Attrs["/"+nameRegistryGroup] = map[string]interface{}{"PartType0/Masses": "x"}

	data, err := bind(tree, &fakeSource{}, Options{})
	require.NoError(t, err)
	assert.NotContains(t, data, nameRegistryGroup)
	assert.NotContains(t, data, virtualLayoutDataset)

	md := filterMetadata(tree)
	assert.NotContains(t, md, "/"+nameRegistryGroup)
	assert.Contains(t, md, RootAttrKey)
	assert.Contains(t, md, "/Header")
}

func TestBindChunkPlan(t *testing.T) {
	data, err := bind(snapshotTree(), &fakeSource{}, Options{Chunksize: 32})
	require.NoError(t, err)

	coords := data["PartType0"]["Coordinates"]
	assert.Equal(t, []uint64{32, 32, 32, 4}, coords.Chunks())

	// blocks read through the source closure
	v, err := coords.ReadBlock(1)
	require.NoError(t, err)
	assert.Equal(t, float64(32), v.([]float64)[0])
}
