package h5store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-exp/spectra_go/pkg/calibration"
	"github.com/next-exp/spectra_go/pkg/dataspace"
	"github.com/next-exp/spectra_go/pkg/persist"
)

func TestGroupRoundTrip(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "store.h5")
	f, err := Create(fname)
	require.NoError(t, err)

	root := f.Root()
	require.NoError(t, root.WriteString("type", "Histogram1D"))
	require.NoError(t, root.WriteFloat("count", 3))
	sub, err := root.CreateGroup("data")
	require.NoError(t, err)
	require.NoError(t, sub.WriteDataset("values", []float64{1, 2.5, 4}))
	require.NoError(t, sub.WriteDataset("empty", nil))
	require.NoError(t, sub.Close())
	require.NoError(t, f.Close())

	f, err = Open(fname)
	require.NoError(t, err)
	defer f.Close()
	root = f.Root()

	typ, err := root.ReadString("type")
	require.NoError(t, err)
	assert.Equal(t, "Histogram1D", typ)
	count, err := persist.ReadInt(root, "count")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	sub, err = root.OpenGroup("data")
	require.NoError(t, err)
	defer sub.Close()
	values, err := sub.ReadDataset("values")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, 4}, values)
	empty, err := sub.ReadDataset("empty")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = sub.ReadDataset("missing")
	assert.ErrorIs(t, err, persist.ErrNotFound)
	_, err = root.OpenGroup("missing")
	assert.ErrorIs(t, err, persist.ErrNotFound)
	_, err = root.ReadFloat("missing")
	assert.ErrorIs(t, err, persist.ErrNotFound)
}

func TestDataspaceInHDF5(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "dataspace.h5")
	d := dataspace.NewDense1D()
	d.SetAxis(0, dataspace.NewAxis(calibration.New("channel", "keV", calibration.NewPolynomial(0, 2)), 0))
	d.AddOne([]int{3})
	d.Add([]int{5}, 2)

	f, err := Create(fname)
	require.NoError(t, err)
	require.NoError(t, d.Save(f.Root()))
	require.NoError(t, f.Close())

	f, err = Open(fname)
	require.NoError(t, err)
	defer f.Close()
	loaded, err := dataspace.Load(f.Root(), calibration.DefaultRegistry())
	require.NoError(t, err)
	assert.Equal(t, 3.0, loaded.TotalCount())
	assert.Equal(t, 2.0, loaded.Get([]int{5}))
	assert.Equal(t, "keV", loaded.Axis(0).Label())
}
