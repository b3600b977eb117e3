package dataspace

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-exp/spectra_go/pkg/calibration"
	"github.com/next-exp/spectra_go/pkg/daq"
	"github.com/next-exp/spectra_go/pkg/persist"
)

func fill(d Dataspace, coords ...[]int) {
	for _, c := range coords {
		d.AddOne(c)
	}
}

func TestDense1D(t *testing.T) {
	d := NewDense1D()
	fill(d, []int{5}, []int{5}, []int{9})
	d.Add(Entry{Coords: []int{2}, Value: 0.5})

	assert.Equal(t, 2.0, d.Get([]int{5}))
	assert.Equal(t, 1.0, d.Get([]int{9}))
	assert.Zero(t, d.Get([]int{100}))
	assert.Equal(t, 3.5, d.TotalCount())
	assert.Equal(t, 10, d.Bins())

	var bins []int
	for e := range d.Range([]Bound{{Lo: 4, Hi: 6}}) {
		bins = append(bins, e.Coords[0])
	}
	assert.Equal(t, []int{4, 5, 6}, bins)
}

func TestMalformedCoordsAreDropped(t *testing.T) {
	for _, d := range []Dataspace{NewDense1D(), NewSparseMatrix2D(), NewSparseMap3D(), NewScalar()} {
		d.AddOne([]int{1, 2, 3, 4})
		if d.Dimensions() > 0 {
			d.AddOne([]int{-1, -1, -1}[:d.Dimensions()])
		}
		assert.True(t, d.Empty(), d.Kind().String())

		err := CheckCoords(d, []int{1, 2, 3, 4})
		var shape *daq.ErrShape
		require.True(t, errors.As(err, &shape))
		assert.Equal(t, d.Dimensions(), shape.Expected)
		assert.NoError(t, CheckCoords(d, make([]int, d.Dimensions())))
	}
}

func TestClearIsIdempotentAndKeepsAxes(t *testing.T) {
	cal := calibration.New("channel", "keV", calibration.NewPolynomial(0, 2))
	for _, d := range []Dataspace{NewDense1D(), NewSparseMatrix2D(), NewSparseMap3D(), NewScalar()} {
		for i := 0; i < d.Dimensions(); i++ {
			d.SetAxis(i, NewAxis(cal, 0))
		}
		fill(d, make([]int, d.Dimensions()), make([]int, d.Dimensions()))
		require.False(t, d.Empty())

		d.Clear()
		assert.True(t, d.Empty())
		d.Clear()
		assert.True(t, d.Empty())
		assert.Zero(t, d.TotalCount())
		for i := 0; i < d.Dimensions(); i++ {
			assert.Equal(t, "keV", d.Axis(i).Label())
		}
	}
}

func TestSparseMatrix2D(t *testing.T) {
	m := NewSparseMatrix2D()
	fill(m, []int{3, 1}, []int{0, 7}, []int{3, 0}, []int{3, 1})
	assert.Equal(t, 2.0, m.Get([]int{3, 1}))
	assert.Equal(t, 3, m.MaxRow())
	assert.Equal(t, 7, m.MaxCol())

	var got [][]int
	for e := range m.All() {
		got = append(got, e.Coords)
	}
	assert.Equal(t, [][]int{{0, 7}, {3, 0}, {3, 1}}, got)

	got = nil
	for e := range m.Range([]Bound{{Lo: 1, Hi: 5}, {Lo: 1, Hi: 1}}) {
		got = append(got, e.Coords)
	}
	assert.Equal(t, [][]int{{3, 1}}, got)

	m.RecalcAxes()
	assert.Len(t, m.Axis(0).Domain, 4)
	assert.Len(t, m.Axis(1).Domain, 8)
}

func TestSparseMatrix2DGrowsRows(t *testing.T) {
	m := NewSparseMatrix2D()
	m.AddOne([]int{1000, 2})
	m.AddOne([]int{3, 2})
	assert.Equal(t, 1.0, m.Get([]int{1000, 2}))
	assert.Equal(t, 1.0, m.Get([]int{3, 2}))
}

func TestSparseMap3D(t *testing.T) {
	m := NewSparseMap3D()
	fill(m, []int{1, 2, 3}, []int{0, 0, 9}, []int{1, 2, 3})
	assert.Equal(t, 2.0, m.Get([]int{1, 2, 3}))
	assert.Equal(t, 2, m.Cells())

	var got [][]int
	for e := range m.All() {
		got = append(got, e.Coords)
	}
	assert.Equal(t, [][]int{{0, 0, 9}, {1, 2, 3}}, got)

	got = nil
	for e := range m.Range([]Bound{{Lo: 1, Hi: 1}}) {
		got = append(got, e.Coords)
	}
	assert.Equal(t, [][]int{{1, 2, 3}}, got)
}

func TestSparseMap3DKeyIndexStaysSorted(t *testing.T) {
	m := NewSparseMap3D()
	fill(m, []int{5, 0, 0}, []int{0, 7, 1}, []int{0, 7, 0}, []int{2, 1, 1}, []int{0, 7, 1})

	var got [][]int
	for e := range m.All() {
		got = append(got, e.Coords)
	}
	assert.Equal(t, [][]int{{0, 7, 0}, {0, 7, 1}, {2, 1, 1}, {5, 0, 0}}, got)
	assert.Len(t, m.keys, 4)

	c := m.Clone().(*SparseMap3D)
	c.AddOne([]int{1, 0, 0})
	assert.Len(t, m.keys, 4)
	assert.Equal(t, key3{1, 0, 0}, c.keys[2])

	m.Clear()
	assert.Empty(t, m.keys)
}

func TestScalar(t *testing.T) {
	s := NewScalar()
	assert.Empty(t, slices.Collect(s.All()))

	s.Add(Entry{Value: 5})
	s.Add(Entry{Value: -2})
	s.AddOne(nil)
	assert.Equal(t, -1.0, s.Value())
	assert.Equal(t, -2.0, s.Min())
	assert.Equal(t, 5.0, s.Max())
	assert.Equal(t, 3.0, s.TotalCount())
	assert.Len(t, slices.Collect(s.All()), 1)
}

func TestDense1DDropFront(t *testing.T) {
	d := NewDense1D()
	d.SetAxis(0, NewExplicitAxis(calibration.Calibration{}))
	for i := 0; i < 6; i++ {
		d.Add(Entry{Coords: []int{i}, Value: float64(i)})
		d.MutableAxis(0).Append(float64(10 * i))
	}
	d.DropFront(2)
	assert.Equal(t, 4, d.Bins())
	assert.Equal(t, 2.0, d.Get([]int{0}))
	assert.Equal(t, 2.0+3+4+5, d.TotalCount())
	assert.Equal(t, []float64{20, 30, 40, 50}, d.Axis(0).Domain)

	d.RecalcAxes()
	assert.Equal(t, []float64{20, 30, 40, 50}, d.Axis(0).Domain, "explicit domains are not recomputed")
}

func TestAxis(t *testing.T) {
	a := NewAxis(calibration.New("channel", "keV", calibration.NewPolynomial(1, 2)), 1)
	a.Expand(4)
	assert.Equal(t, []float64{1, 5, 9, 13}, a.Domain)
	lo, hi := a.Bounds()
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 13.0, hi)
	assert.Equal(t, 2, a.FindIndex(8))
	assert.Equal(t, 0, a.FindIndex(-50))
	assert.Equal(t, 3, a.FindIndex(50))
	assert.Equal(t, -1, Axis{}.FindIndex(1))
	assert.Equal(t, "bin", Axis{}.Label())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cal := calibration.New("channel", "keV", calibration.NewPolynomial(0.5, 2))
	dense := NewDense1D()
	fill(dense, []int{1}, []int{4}, []int{4})
	dense.SetAxis(0, NewAxis(cal, 2))

	matrix := NewSparseMatrix2D()
	fill(matrix, []int{2, 5}, []int{0, 1}, []int{2, 5})
	matrix.SetAxis(1, NewExplicitAxis(calibration.Calibration{From: "ns", To: "ns"}))
	matrix.MutableAxis(1).Append(0, 10, 20)

	cube := NewSparseMap3D()
	fill(cube, []int{1, 2, 3}, []int{4, 5, 6})

	scalar := NewScalar()
	scalar.Add(Entry{Value: 3})
	scalar.Add(Entry{Value: 7})

	for _, d := range []Dataspace{dense, matrix, cube, scalar} {
		d.RecalcAxes()
		g := persist.NewMemGroup(d.Kind().String())
		require.NoError(t, d.Save(g))

		loaded, err := Load(g, calibration.DefaultRegistry())
		require.NoError(t, err, d.Kind().String())
		assert.Equal(t, d.Kind(), loaded.Kind())
		assert.True(t, Equal(d, loaded), d.Kind().String())
	}

	loaded, err := Load(mustSave(t, scalar), calibration.DefaultRegistry())
	require.NoError(t, err)
	sc := loaded.(*Scalar)
	assert.Equal(t, 3.0, sc.Min())
	assert.Equal(t, 7.0, sc.Max())
}

func mustSave(t *testing.T, d Dataspace) persist.Group {
	g := persist.NewMemGroup("g")
	require.NoError(t, d.Save(g))
	return g
}

func TestLoadKindMismatch(t *testing.T) {
	g := mustSave(t, NewDense1D())
	err := NewSparseMatrix2D().Load(g, calibration.DefaultRegistry())
	require.Error(t, err)
	assert.Equal(t, daq.KindPersistence, daq.KindOf(err))

	_, err = Load(persist.NewMemGroup("empty"), calibration.DefaultRegistry())
	assert.ErrorIs(t, err, persist.ErrNotFound)
}

func TestCloneIsDeep(t *testing.T) {
	for _, d := range []Dataspace{NewDense1D(), NewSparseMatrix2D(), NewSparseMap3D(), NewScalar()} {
		coords := make([]int, d.Dimensions())
		d.AddOne(coords)
		c := d.Clone()
		c.AddOne(coords)
		assert.Equal(t, 1.0, d.TotalCount(), d.Kind().String())
		assert.Equal(t, 2.0, c.TotalCount(), d.Kind().String())
		assert.False(t, Equal(d, c))
	}
}

func TestKindNames(t *testing.T) {
	for _, k := range []Kind{KindScalar, KindDense1D, KindSparseMatrix2D, KindSparseMap3D} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("Ragged")
	assert.Error(t, err)
}
