// Package dataspace holds the N-dimensional accumulators spectra bin into.
//
// The set of backends is closed: Dense1D, SparseMatrix2D, SparseMap3D and
// Scalar. Callers that need backend-specific behaviour switch on the
// concrete type or on Kind.
package dataspace

import (
	"fmt"
	"iter"
	"strings"

	"github.com/next-exp/spectra_go/pkg/calibration"
	"github.com/next-exp/spectra_go/pkg/daq"
	"github.com/next-exp/spectra_go/pkg/persist"
)

type Kind int

const (
	KindScalar Kind = iota
	KindDense1D
	KindSparseMatrix2D
	KindSparseMap3D
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "Scalar"
	case KindDense1D:
		return "Dense1D"
	case KindSparseMatrix2D:
		return "SparseMatrix2D"
	case KindSparseMap3D:
		return "SparseMap3D"
	}
	return "Unknown"
}

func ParseKind(s string) (Kind, error) {
	for k := KindScalar; k <= KindSparseMap3D; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, &daq.ErrUnknownType{Registry: "dataspace", Name: s}
}

// Entry is one cell: bin coordinates and the accumulated value.
type Entry struct {
	Coords []int
	Value  float64
}

// Bound is an inclusive bin range of one dimension.
type Bound struct {
	Lo int
	Hi int
}

// Dataspace is an accumulator with a fixed number of dimensions. Add and
// AddOne silently drop coordinate vectors of the wrong length or with
// negative bins.
type Dataspace interface {
	Kind() Kind
	Dimensions() int

	Add(e Entry)
	AddOne(coords []int)
	Get(coords []int) float64

	// Range yields cells in the cartesian product of bounds in ascending
	// coordinate order. Dimensions without a bound span everything stored.
	// Sparse backends skip empty cells.
	Range(bounds []Bound) iter.Seq[Entry]
	All() iter.Seq[Entry]

	TotalCount() float64
	Empty() bool
	// Clear drops all data but keeps the axes.
	Clear()

	Axis(dim int) Axis
	SetAxis(dim int, a Axis)
	// MutableAxis gives owners of explicit domains in-place access.
	MutableAxis(dim int) *Axis
	RecalcAxes()

	Clone() Dataspace
	Save(g persist.Group) error
	Load(g persist.Group, reg *calibration.Registry) error
	Debug(prefix string) string

	sealed()
}

// New returns an empty dataspace of kind k.
func New(k Kind) Dataspace {
	switch k {
	case KindDense1D:
		return NewDense1D()
	case KindSparseMatrix2D:
		return NewSparseMatrix2D()
	case KindSparseMap3D:
		return NewSparseMap3D()
	default:
		return NewScalar()
	}
}

// CheckCoords reports a shape error for coords that do not fit d.
func CheckCoords(d Dataspace, coords []int) error {
	if len(coords) != d.Dimensions() {
		return &daq.ErrShape{Expected: d.Dimensions(), Got: len(coords)}
	}
	return nil
}

// Equal compares kind, total count, every stored cell and every axis.
func Equal(a Dataspace, b Dataspace) bool {
	if a.Kind() != b.Kind() || a.Dimensions() != b.Dimensions() || a.TotalCount() != b.TotalCount() {
		return false
	}
	for i := 0; i < a.Dimensions(); i++ {
		if !a.Axis(i).Equal(b.Axis(i)) {
			return false
		}
	}
	var ea, eb []Entry
	for e := range a.All() {
		if e.Value != 0 {
			ea = append(ea, e)
		}
	}
	for e := range b.All() {
		if e.Value != 0 {
			eb = append(eb, e)
		}
	}
	if len(ea) != len(eb) {
		return false
	}
	for i := range ea {
		if ea[i].Value != eb[i].Value || !sameCoords(ea[i].Coords, eb[i].Coords) {
			return false
		}
	}
	return true
}

func sameCoords(a []int, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// base carries what every backend shares.
type base struct {
	axes       []Axis
	totalCount float64
}

func newBase(dims int) base {
	return base{axes: make([]Axis, dims)}
}

func (b *base) Dimensions() int     { return len(b.axes) }
func (b *base) TotalCount() float64 { return b.totalCount }
func (b *base) Empty() bool         { return b.totalCount == 0 }
func (b *base) sealed()             {}

// Axis returns a copy; out of range dimensions yield an empty axis.
func (b *base) Axis(dim int) Axis {
	if dim < 0 || dim >= len(b.axes) {
		return Axis{}
	}
	return b.axes[dim].Clone()
}

func (b *base) SetAxis(dim int, a Axis) {
	if dim < 0 || dim >= len(b.axes) {
		return
	}
	b.axes[dim] = a.Clone()
}

func (b *base) MutableAxis(dim int) *Axis {
	if dim < 0 || dim >= len(b.axes) {
		return nil
	}
	return &b.axes[dim]
}

func (b *base) cloneBase() base {
	n := base{axes: make([]Axis, len(b.axes)), totalCount: b.totalCount}
	for i, a := range b.axes {
		n.axes[i] = a.Clone()
	}
	return n
}

func (b *base) debugAxes(prefix string) string {
	var sb strings.Builder
	for i, a := range b.axes {
		sb.WriteString(a.Debug(fmt.Sprintf("%s[%d] ", prefix, i)))
	}
	return sb.String()
}

// saveCommon writes the layout shared by all backends: kind, one axis group
// per dimension and a data group that the backend fills in.
func (b *base) saveCommon(g persist.Group, k Kind, data func(persist.Group) error) error {
	if err := g.WriteString("kind", k.String()); err != nil {
		return &daq.ErrPersistence{Op: "saving", Name: g.Name(), Err: err}
	}
	if err := g.WriteFloat("dimensions", float64(len(b.axes))); err != nil {
		return &daq.ErrPersistence{Op: "saving", Name: g.Name(), Err: err}
	}
	axes, err := g.CreateGroup("axes")
	if err != nil {
		return &daq.ErrPersistence{Op: "saving", Name: g.Name(), Err: err}
	}
	defer axes.Close()
	for i, a := range b.axes {
		name := axisGroupName(i)
		ag, err := axes.CreateGroup(name)
		if err != nil {
			return &daq.ErrPersistence{Op: "saving axis", Name: name, Err: err}
		}
		err = a.save(ag)
		ag.Close()
		if err != nil {
			return &daq.ErrPersistence{Op: "saving axis", Name: name, Err: err}
		}
	}
	dg, err := g.CreateGroup("data")
	if err != nil {
		return &daq.ErrPersistence{Op: "saving", Name: g.Name(), Err: err}
	}
	defer dg.Close()
	if err := dg.WriteFloat("total_count", b.totalCount); err != nil {
		return &daq.ErrPersistence{Op: "saving data", Name: g.Name(), Err: err}
	}
	if err := data(dg); err != nil {
		return &daq.ErrPersistence{Op: "saving data", Name: g.Name(), Err: err}
	}
	return nil
}

func (b *base) loadCommon(g persist.Group, k Kind, reg *calibration.Registry, data func(persist.Group) error) error {
	kind, err := g.ReadString("kind")
	if err != nil {
		return &daq.ErrPersistence{Op: "loading", Name: g.Name(), Err: err}
	}
	if kind != k.String() {
		return &daq.ErrPersistence{Op: "loading", Name: g.Name(),
			Err: fmt.Errorf("stored kind %s does not match %s", kind, k)}
	}
	dims, err := persist.ReadInt(g, "dimensions")
	if err != nil {
		return &daq.ErrPersistence{Op: "loading", Name: g.Name(), Err: err}
	}
	if dims != len(b.axes) {
		return &daq.ErrPersistence{Op: "loading", Name: g.Name(),
			Err: &daq.ErrShape{Expected: len(b.axes), Got: dims}}
	}
	axes, err := g.OpenGroup("axes")
	if err != nil {
		return &daq.ErrPersistence{Op: "loading", Name: g.Name(), Err: err}
	}
	defer axes.Close()
	loaded := make([]Axis, len(b.axes))
	for i := range loaded {
		name := axisGroupName(i)
		ag, err := axes.OpenGroup(name)
		if err != nil {
			return &daq.ErrPersistence{Op: "loading axis", Name: name, Err: err}
		}
		loaded[i], err = loadAxis(ag, reg)
		ag.Close()
		if err != nil {
			return &daq.ErrPersistence{Op: "loading axis", Name: name, Err: err}
		}
	}
	dg, err := g.OpenGroup("data")
	if err != nil {
		return &daq.ErrPersistence{Op: "loading", Name: g.Name(), Err: err}
	}
	defer dg.Close()
	total, err := dg.ReadFloat("total_count")
	if err != nil {
		return &daq.ErrPersistence{Op: "loading data", Name: g.Name(), Err: err}
	}
	if err := data(dg); err != nil {
		return &daq.ErrPersistence{Op: "loading data", Name: g.Name(), Err: err}
	}
	b.axes = loaded
	b.totalCount = total
	return nil
}

func axisGroupName(i int) string {
	return fmt.Sprintf("axis%d", i)
}

// Load reads a dataspace of whatever kind g holds.
func Load(g persist.Group, reg *calibration.Registry) (Dataspace, error) {
	kind, err := g.ReadString("kind")
	if err != nil {
		return nil, &daq.ErrPersistence{Op: "loading", Name: g.Name(), Err: err}
	}
	k, err := ParseKind(kind)
	if err != nil {
		return nil, &daq.ErrPersistence{Op: "loading", Name: g.Name(), Err: err}
	}
	d := New(k)
	if err := d.Load(g, reg); err != nil {
		return nil, err
	}
	return d, nil
}

// clip intersects a requested bound with [0, max].
func clip(bounds []Bound, dim int, max int) (int, int) {
	lo, hi := 0, max
	if dim < len(bounds) {
		if bounds[dim].Lo > lo {
			lo = bounds[dim].Lo
		}
		if bounds[dim].Hi < hi {
			hi = bounds[dim].Hi
		}
	}
	return lo, hi
}

func inBound(bounds []Bound, dim int, v int) bool {
	if dim >= len(bounds) {
		return true
	}
	return v >= bounds[dim].Lo && v <= bounds[dim].Hi
}

func validCoords(coords []int, dims int) bool {
	if len(coords) != dims {
		return false
	}
	for _, c := range coords {
		if c < 0 {
			return false
		}
	}
	return true
}

func floatsToInts(fs []float64) []int {
	out := make([]int, len(fs))
	for i, f := range fs {
		out[i] = int(f)
	}
	return out
}
