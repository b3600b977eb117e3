package dataspace

import (
	"fmt"
	"iter"
	"strings"

	"github.com/next-exp/spectra_go/pkg/calibration"
	"github.com/next-exp/spectra_go/pkg/persist"
)

// Dense1D is a contiguous histogram indexed by bin. It grows to hold the
// largest bin seen and never shrinks except through DropFront.
type Dense1D struct {
	base
	spectrum []float64
}

func NewDense1D() *Dense1D {
	return &Dense1D{base: newBase(1)}
}

func (d *Dense1D) Kind() Kind { return KindDense1D }

// Bins is the number of bins currently allocated.
func (d *Dense1D) Bins() int { return len(d.spectrum) }

func (d *Dense1D) Add(e Entry) {
	if !validCoords(e.Coords, 1) {
		return
	}
	bin := e.Coords[0]
	d.grow(bin)
	d.spectrum[bin] += e.Value
	d.totalCount += e.Value
}

func (d *Dense1D) AddOne(coords []int) {
	if !validCoords(coords, 1) {
		return
	}
	bin := coords[0]
	d.grow(bin)
	d.spectrum[bin]++
	d.totalCount++
}

func (d *Dense1D) grow(bin int) {
	if bin < len(d.spectrum) {
		return
	}
	if bin < cap(d.spectrum) {
		d.spectrum = d.spectrum[:bin+1]
		return
	}
	n := 2 * cap(d.spectrum)
	if n < bin+1 {
		n = bin + 1
	}
	s := make([]float64, bin+1, n)
	copy(s, d.spectrum)
	d.spectrum = s
}

func (d *Dense1D) Get(coords []int) float64 {
	if !validCoords(coords, 1) || coords[0] >= len(d.spectrum) {
		return 0
	}
	return d.spectrum[coords[0]]
}

func (d *Dense1D) Range(bounds []Bound) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		lo, hi := clip(bounds, 0, len(d.spectrum)-1)
		for i := lo; i <= hi; i++ {
			if !yield(Entry{Coords: []int{i}, Value: d.spectrum[i]}) {
				return
			}
		}
	}
}

func (d *Dense1D) All() iter.Seq[Entry] { return d.Range(nil) }

// DropFront discards the first n bins, shifting the rest down, and trims
// the axis domain to match.
func (d *Dense1D) DropFront(n int) {
	if n <= 0 {
		return
	}
	if n > len(d.spectrum) {
		n = len(d.spectrum)
	}
	for _, v := range d.spectrum[:n] {
		d.totalCount -= v
	}
	d.spectrum = append(d.spectrum[:0], d.spectrum[n:]...)
	d.axes[0].DropFront(n)
}

func (d *Dense1D) Clear() {
	d.spectrum = nil
	d.totalCount = 0
}

func (d *Dense1D) RecalcAxes() {
	d.axes[0].Expand(len(d.spectrum))
}

func (d *Dense1D) Clone() Dataspace {
	return &Dense1D{base: d.cloneBase(), spectrum: append([]float64(nil), d.spectrum...)}
}

func (d *Dense1D) Save(g persist.Group) error {
	return d.saveCommon(g, KindDense1D, func(dg persist.Group) error {
		return dg.WriteDataset("counts", d.spectrum)
	})
}

func (d *Dense1D) Load(g persist.Group, reg *calibration.Registry) error {
	var counts []float64
	err := d.loadCommon(g, KindDense1D, reg, func(dg persist.Group) error {
		var err error
		counts, err = dg.ReadDataset("counts")
		return err
	})
	if err != nil {
		return err
	}
	d.spectrum = counts
	return nil
}

func (d *Dense1D) Debug(prefix string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%sDense1D bins=%d total=%g\n", prefix, len(d.spectrum), d.totalCount)
	sb.WriteString(d.debugAxes(prefix + "  "))
	shown := 0
	for i, v := range d.spectrum {
		if v == 0 {
			continue
		}
		if shown == 16 {
			fmt.Fprintf(&sb, "%s  ...\n", prefix)
			break
		}
		fmt.Fprintf(&sb, "%s  %d: %g\n", prefix, i, v)
		shown++
	}
	return sb.String()
}
