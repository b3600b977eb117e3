package dataspace

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/next-exp/spectra_go/pkg/calibration"
	"github.com/next-exp/spectra_go/pkg/persist"
	"golang.org/x/exp/slices"
)

type key3 [3]int

func (a key3) compare(b key3) int {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// SparseMap3D keys cells by their three bin indices. Nothing is
// pre-allocated: 3D occupancy is usually a small fraction of the bounding
// box. Updates of an occupied cell are a map lookup; a new cell is also
// inserted into the sorted key index, so iteration needs no sort.
type SparseMap3D struct {
	base
	cells map[key3]float64
	keys  []key3
	max   key3
}

func NewSparseMap3D() *SparseMap3D {
	return &SparseMap3D{base: newBase(3), cells: make(map[key3]float64), max: key3{-1, -1, -1}}
}

func (m *SparseMap3D) Kind() Kind { return KindSparseMap3D }

// Cells is the number of occupied cells.
func (m *SparseMap3D) Cells() int { return len(m.cells) }

func (m *SparseMap3D) Add(e Entry) {
	if !validCoords(e.Coords, 3) {
		return
	}
	m.add(key3{e.Coords[0], e.Coords[1], e.Coords[2]}, e.Value)
}

func (m *SparseMap3D) AddOne(coords []int) {
	if !validCoords(coords, 3) {
		return
	}
	m.add(key3{coords[0], coords[1], coords[2]}, 1)
}

func (m *SparseMap3D) add(k key3, v float64) {
	if _, ok := m.cells[k]; !ok {
		i, _ := slices.BinarySearchFunc(m.keys, k, key3.compare)
		m.keys = slices.Insert(m.keys, i, k)
	}
	m.cells[k] += v
	m.totalCount += v
	for i := range k {
		if k[i] > m.max[i] {
			m.max[i] = k[i]
		}
	}
}

func (m *SparseMap3D) Get(coords []int) float64 {
	if !validCoords(coords, 3) {
		return 0
	}
	return m.cells[key3{coords[0], coords[1], coords[2]}]
}

func (m *SparseMap3D) Range(bounds []Bound) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, k := range m.keys {
			v := m.cells[k]
			if v == 0 || !inBound(bounds, 0, k[0]) || !inBound(bounds, 1, k[1]) || !inBound(bounds, 2, k[2]) {
				continue
			}
			if !yield(Entry{Coords: []int{k[0], k[1], k[2]}, Value: v}) {
				return
			}
		}
	}
}

func (m *SparseMap3D) All() iter.Seq[Entry] { return m.Range(nil) }

func (m *SparseMap3D) Clear() {
	m.cells = make(map[key3]float64)
	m.keys = nil
	m.max = key3{-1, -1, -1}
	m.totalCount = 0
}

func (m *SparseMap3D) RecalcAxes() {
	for i := range m.axes {
		m.axes[i].Expand(m.max[i] + 1)
	}
}

func (m *SparseMap3D) Clone() Dataspace {
	n := &SparseMap3D{base: m.cloneBase(), cells: make(map[key3]float64, len(m.cells)), keys: slices.Clone(m.keys), max: m.max}
	for k, v := range m.cells {
		n.cells[k] = v
	}
	return n
}

func (m *SparseMap3D) Save(g persist.Group) error {
	return m.saveCommon(g, KindSparseMap3D, func(dg persist.Group) error {
		var xs, ys, zs, counts []float64
		for e := range m.All() {
			xs = append(xs, float64(e.Coords[0]))
			ys = append(ys, float64(e.Coords[1]))
			zs = append(zs, float64(e.Coords[2]))
			counts = append(counts, e.Value)
		}
		return errors.Join(
			dg.WriteDataset("x", xs),
			dg.WriteDataset("y", ys),
			dg.WriteDataset("z", zs),
			dg.WriteDataset("counts", counts))
	})
}

func (m *SparseMap3D) Load(g persist.Group, reg *calibration.Registry) error {
	var coords [3][]float64
	var counts []float64
	err := m.loadCommon(g, KindSparseMap3D, reg, func(dg persist.Group) error {
		var err error
		for i, name := range []string{"x", "y", "z"} {
			if coords[i], err = dg.ReadDataset(name); err != nil {
				return err
			}
		}
		if counts, err = dg.ReadDataset("counts"); err != nil {
			return err
		}
		for i := range coords {
			if len(coords[i]) != len(counts) {
				return fmt.Errorf("coordinate datasets do not match %d counts", len(counts))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	total := m.totalCount
	m.cells = make(map[key3]float64, len(counts))
	m.keys = nil
	m.max = key3{-1, -1, -1}
	for i := range counts {
		k := key3{int(coords[0][i]), int(coords[1][i]), int(coords[2][i])}
		if k[0] < 0 || k[1] < 0 || k[2] < 0 {
			continue
		}
		m.add(k, counts[i])
	}
	m.totalCount = total
	return nil
}

func (m *SparseMap3D) Debug(prefix string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%sSparseMap3D cells=%d extent=%dx%dx%d total=%g\n",
		prefix, len(m.cells), m.max[0]+1, m.max[1]+1, m.max[2]+1, m.totalCount)
	sb.WriteString(m.debugAxes(prefix + "  "))
	shown := 0
	for e := range m.All() {
		if shown == 16 {
			fmt.Fprintf(&sb, "%s  ...\n", prefix)
			break
		}
		fmt.Fprintf(&sb, "%s  %v: %g\n", prefix, e.Coords, e.Value)
		shown++
	}
	return sb.String()
}
