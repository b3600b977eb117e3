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

const minReservedRows = 16

// SparseMatrix2D stores (row, col) cells row by row. The row table is
// reserved in doubling steps when a new maximum row shows up; each row only
// holds the columns that were hit.
type SparseMatrix2D struct {
	base
	rows   []map[int]float64
	maxRow int
	maxCol int
}

func NewSparseMatrix2D() *SparseMatrix2D {
	return &SparseMatrix2D{base: newBase(2), maxRow: -1, maxCol: -1}
}

func (m *SparseMatrix2D) Kind() Kind { return KindSparseMatrix2D }

// MaxRow and MaxCol are -1 while the matrix is empty.
func (m *SparseMatrix2D) MaxRow() int { return m.maxRow }
func (m *SparseMatrix2D) MaxCol() int { return m.maxCol }

func (m *SparseMatrix2D) Add(e Entry) {
	if !validCoords(e.Coords, 2) {
		return
	}
	m.add(e.Coords[0], e.Coords[1], e.Value)
}

func (m *SparseMatrix2D) AddOne(coords []int) {
	if !validCoords(coords, 2) {
		return
	}
	m.add(coords[0], coords[1], 1)
}

func (m *SparseMatrix2D) add(r int, c int, v float64) {
	if r > m.maxRow {
		m.reserve(r)
		m.maxRow = r
	}
	if c > m.maxCol {
		m.maxCol = c
	}
	row := m.rows[r]
	if row == nil {
		row = make(map[int]float64)
		m.rows[r] = row
	}
	row[c] += v
	m.totalCount += v
}

func (m *SparseMatrix2D) reserve(r int) {
	if r < len(m.rows) {
		return
	}
	n := 2 * len(m.rows)
	if n < minReservedRows {
		n = minReservedRows
	}
	for n <= r {
		n *= 2
	}
	rows := make([]map[int]float64, n)
	copy(rows, m.rows)
	m.rows = rows
}

func (m *SparseMatrix2D) Get(coords []int) float64 {
	if !validCoords(coords, 2) || coords[0] > m.maxRow {
		return 0
	}
	return m.rows[coords[0]][coords[1]]
}

func (m *SparseMatrix2D) Range(bounds []Bound) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		lo, hi := clip(bounds, 0, m.maxRow)
		for r := lo; r <= hi; r++ {
			row := m.rows[r]
			if len(row) == 0 {
				continue
			}
			cols := make([]int, 0, len(row))
			for c, v := range row {
				if v != 0 && inBound(bounds, 1, c) {
					cols = append(cols, c)
				}
			}
			slices.Sort(cols)
			for _, c := range cols {
				if !yield(Entry{Coords: []int{r, c}, Value: row[c]}) {
					return
				}
			}
		}
	}
}

func (m *SparseMatrix2D) All() iter.Seq[Entry] { return m.Range(nil) }

func (m *SparseMatrix2D) Clear() {
	m.rows = nil
	m.maxRow, m.maxCol = -1, -1
	m.totalCount = 0
}

func (m *SparseMatrix2D) RecalcAxes() {
	m.axes[0].Expand(m.maxRow + 1)
	m.axes[1].Expand(m.maxCol + 1)
}

func (m *SparseMatrix2D) Clone() Dataspace {
	n := &SparseMatrix2D{base: m.cloneBase(), maxRow: m.maxRow, maxCol: m.maxCol}
	if m.rows != nil {
		n.rows = make([]map[int]float64, len(m.rows))
		for i, row := range m.rows {
			if row == nil {
				continue
			}
			c := make(map[int]float64, len(row))
			for k, v := range row {
				c[k] = v
			}
			n.rows[i] = c
		}
	}
	return n
}

func (m *SparseMatrix2D) Save(g persist.Group) error {
	return m.saveCommon(g, KindSparseMatrix2D, func(dg persist.Group) error {
		var rows, cols, counts []float64
		for e := range m.All() {
			rows = append(rows, float64(e.Coords[0]))
			cols = append(cols, float64(e.Coords[1]))
			counts = append(counts, e.Value)
		}
		return errors.Join(
			dg.WriteDataset("rows", rows),
			dg.WriteDataset("cols", cols),
			dg.WriteDataset("counts", counts))
	})
}

func (m *SparseMatrix2D) Load(g persist.Group, reg *calibration.Registry) error {
	var rows, cols []int
	var counts []float64
	err := m.loadCommon(g, KindSparseMatrix2D, reg, func(dg persist.Group) error {
		r, err := dg.ReadDataset("rows")
		if err != nil {
			return err
		}
		c, err := dg.ReadDataset("cols")
		if err != nil {
			return err
		}
		if counts, err = dg.ReadDataset("counts"); err != nil {
			return err
		}
		if len(r) != len(counts) || len(c) != len(counts) {
			return fmt.Errorf("coordinate datasets do not match %d counts", len(counts))
		}
		rows, cols = floatsToInts(r), floatsToInts(c)
		return nil
	})
	if err != nil {
		return err
	}
	total := m.totalCount
	m.rows = nil
	m.maxRow, m.maxCol = -1, -1
	for i := range counts {
		if rows[i] < 0 || cols[i] < 0 {
			continue
		}
		m.add(rows[i], cols[i], counts[i])
	}
	m.totalCount = total
	return nil
}

func (m *SparseMatrix2D) Debug(prefix string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%sSparseMatrix2D rows=%d cols=%d reserved=%d total=%g\n",
		prefix, m.maxRow+1, m.maxCol+1, len(m.rows), m.totalCount)
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
