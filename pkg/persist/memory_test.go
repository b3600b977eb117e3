package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemGroup(t *testing.T) {
	root := NewMemGroup("/")
	child, err := root.CreateGroup("spectrum0")
	require.NoError(t, err)
	require.NoError(t, child.WriteString("type", "Histogram1D"))
	require.NoError(t, child.WriteFloat("dimensions", 1))

	data := []float64{1, 2, 3}
	require.NoError(t, child.WriteDataset("counts", data))
	data[0] = 99

	opened, err := root.OpenGroup("spectrum0")
	require.NoError(t, err)
	typ, err := opened.ReadString("type")
	require.NoError(t, err)
	assert.Equal(t, "Histogram1D", typ)
	dims, err := ReadInt(opened, "dimensions")
	require.NoError(t, err)
	assert.Equal(t, 1, dims)
	counts, err := opened.ReadDataset("counts")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, counts)
}

func TestMemGroupMissing(t *testing.T) {
	g := NewMemGroup("g")
	_, err := g.ReadString("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = g.ReadFloat("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = g.ReadDataset("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = g.OpenGroup("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateGroupReplaces(t *testing.T) {
	g := NewMemGroup("g")
	c, _ := g.CreateGroup("c")
	require.NoError(t, c.WriteString("a", "1"))
	_, _ = g.CreateGroup("c")
	c, err := g.OpenGroup("c")
	require.NoError(t, err)
	_, err = c.ReadString("a")
	assert.ErrorIs(t, err, ErrNotFound)
}
