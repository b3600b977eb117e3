package spectra

import (
	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/daq"
	"github.com/next-exp/spectra_go/pkg/dataspace"
)

// histogram bins one to three latched values into a dense or sparse
// dataspace, one count per event.
type histogram struct {
	noHooks
	kind    dataspace.Kind
	latches latchSet
	coords  []int
}

// Histogram1D counts a single value per event.
func newHistogram1D() binner {
	return &histogram{kind: dataspace.KindDense1D, latches: newLatchSet("value"), coords: make([]int, 1)}
}

// Histogram3D counts the (x, y, z) triple of each event.
func newHistogram3D() binner {
	return &histogram{kind: dataspace.KindSparseMap3D, latches: newLatchSet("x", "y", "z"), coords: make([]int, 3)}
}

func (h *histogram) newDataspace() dataspace.Dataspace {
	d := dataspace.New(h.kind)
	h.configureAxes(d)
	return d
}

func (h *histogram) configureAxes(d dataspace.Dataspace) { h.latches.shiftAxes(d, 0) }
func (h *histogram) attributes() attrs.Set               { return h.latches.attributes() }
func (h *histogram) apply(set attrs.Set) error           { return h.latches.apply(set) }
func (h *histogram) valueNames() []string                { return h.latches.names() }

func (h *histogram) acceptSpill(_ *Spectrum, spill *daq.Spill) bool {
	return declares(&spill.EventModel, h.latches.names()...)
}

func (h *histogram) acceptEvents(*Spectrum, *daq.Spill) bool { return h.latches.valid() }

func (h *histogram) statsPre(_ *Spectrum, spill *daq.Spill) { h.latches.configure(spill) }

func (h *histogram) pushEvent(s *Spectrum, e *daq.Event) {
	if h.latches.extract(e, h.coords, 0) {
		s.bin(h.coords)
	}
}

func (h *histogram) clone() binner {
	c := *h
	c.latches = h.latches.clone()
	c.coords = make([]int, len(h.coords))
	return &c
}

// image2D bins (x, y) pairs. With an intensity field configured each event
// adds its intensity instead of one count.
type image2D struct {
	noHooks
	latches   latchSet
	intensity latched
	coords    []int
}

func newImage2D() binner {
	return &image2D{latches: newLatchSet("x", "y"), intensity: latched{key: "intensity"}, coords: make([]int, 2)}
}

func (m *image2D) newDataspace() dataspace.Dataspace {
	d := dataspace.NewSparseMatrix2D()
	m.configureAxes(d)
	return d
}

func (m *image2D) configureAxes(d dataspace.Dataspace) { m.latches.shiftAxes(d, 0) }

func (m *image2D) attributes() attrs.Set {
	set := m.latches.attributes()
	set.Merge(m.intensity.latch.Attributes(m.intensity.key))
	return set
}

func (m *image2D) apply(set attrs.Set) error {
	if err := m.latches.apply(set); err != nil {
		return err
	}
	return m.intensity.latch.Apply(set, m.intensity.key)
}

func (m *image2D) valueNames() []string { return m.latches.names() }

func (m *image2D) acceptSpill(_ *Spectrum, spill *daq.Spill) bool {
	return declares(&spill.EventModel, append(m.latches.names(), m.intensity.latch.Name)...)
}

func (m *image2D) acceptEvents(*Spectrum, *daq.Spill) bool {
	return m.latches.valid() && (m.intensity.latch.Name == "" || m.intensity.latch.Valid())
}

func (m *image2D) statsPre(_ *Spectrum, spill *daq.Spill) {
	m.latches.configure(spill)
	m.intensity.latch.Configure(spill)
}

func (m *image2D) pushEvent(s *Spectrum, e *daq.Event) {
	if !m.latches.extract(e, m.coords, 0) {
		return
	}
	if m.intensity.latch.Name == "" {
		s.bin(m.coords)
		return
	}
	// Intensity is read at full resolution.
	if i, ok := m.intensity.latch.Index(); ok && i < e.ValueCount() {
		s.binValue(m.coords, float64(e.Value(i)))
	}
}

func (m *image2D) clone() binner {
	c := *m
	c.latches = m.latches.clone()
	c.coords = make([]int, 2)
	return &c
}
