package spectra

import (
	"math"

	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/daq"
	"github.com/next-exp/spectra_go/pkg/dataspace"
)

// timeSpectrum bins (time since stream start, value) pairs.
type timeSpectrum struct {
	noHooks
	time    timeAxis
	origin  timeOrigin
	latches latchSet
	coords  []int
}

func newTimeSpectrum() binner {
	return &timeSpectrum{time: newTimeAxis(), latches: newLatchSet("value"), coords: make([]int, 2)}
}

func (t *timeSpectrum) newDataspace() dataspace.Dataspace {
	d := dataspace.NewSparseMatrix2D()
	d.SetAxis(0, t.time.axis())
	t.configureAxes(d)
	return d
}

func (t *timeSpectrum) configureAxes(d dataspace.Dataspace) {
	t.time.configure(d, 0)
	t.latches.shiftAxes(d, 1)
}

func (t *timeSpectrum) attributes() attrs.Set {
	set := t.time.attributes("time")
	set.Merge(t.latches.attributes())
	return set
}

func (t *timeSpectrum) apply(set attrs.Set) error {
	if err := t.time.apply(set, "time"); err != nil {
		return err
	}
	return t.latches.apply(set)
}

func (t *timeSpectrum) valueNames() []string { return append([]string{""}, t.latches.names()...) }

func (t *timeSpectrum) acceptSpill(_ *Spectrum, spill *daq.Spill) bool {
	return declares(&spill.EventModel, t.latches.names()...)
}

func (t *timeSpectrum) acceptEvents(*Spectrum, *daq.Spill) bool { return t.latches.valid() }

func (t *timeSpectrum) statsPre(_ *Spectrum, spill *daq.Spill) {
	t.origin.configure(spill)
	t.latches.configure(spill)
}

func (t *timeSpectrum) pushEvent(s *Spectrum, e *daq.Event) {
	ns, err := t.origin.since(e.Timestamp, s.streamID)
	if err != nil {
		s.warn("%v", err)
		return
	}
	if !t.latches.extract(e, t.coords, 1) {
		return
	}
	b, ok := t.time.record(s.data, 0, ns, 0)
	if !ok {
		s.warn("time offset %.0f ns out of range", ns)
		return
	}
	t.coords[0] = b
	s.bin(t.coords)
}

func (t *timeSpectrum) cleared(s *Spectrum) {
	t.origin.reset()
	s.data.MutableAxis(0).Domain = nil
}

func (t *timeSpectrum) clone() binner {
	c := *t
	c.latches = t.latches.clone()
	c.coords = make([]int, 2)
	return &c
}

// timeDomain counts events per time bin. With a window set only the most
// recent window of bins is kept; older bins are dropped from the front.
type timeDomain struct {
	time   timeAxis
	window float64
	origin timeOrigin
	// first is the absolute index of the leftmost kept bin.
	first  int
	latest int
	coords []int
}

func newTimeDomain() binner {
	return &timeDomain{time: newTimeAxis(), coords: make([]int, 1)}
}

func (t *timeDomain) newDataspace() dataspace.Dataspace {
	d := dataspace.NewDense1D()
	d.SetAxis(0, t.time.axis())
	return d
}

func (t *timeDomain) configureAxes(d dataspace.Dataspace) { t.time.configure(d, 0) }

func (t *timeDomain) attributes() attrs.Set {
	set := t.time.attributes("time")
	set["window"] = t.window
	return set
}

func (t *timeDomain) apply(set attrs.Set) error {
	if err := t.time.apply(set, "time"); err != nil {
		return err
	}
	w, err := set.Float("window", t.window)
	if err != nil {
		return err
	}
	if w < 0 {
		w = 0
	}
	t.window = w
	return nil
}

func (t *timeDomain) valueNames() []string { return []string{""} }

func (t *timeDomain) acceptSpill(*Spectrum, *daq.Spill) bool  { return true }
func (t *timeDomain) acceptEvents(*Spectrum, *daq.Spill) bool { return true }

func (t *timeDomain) statsPre(_ *Spectrum, spill *daq.Spill) { t.origin.configure(spill) }

func (t *timeDomain) pushEvent(s *Spectrum, e *daq.Event) {
	ns, err := t.origin.since(e.Timestamp, s.streamID)
	if err != nil {
		s.warn("%v", err)
		return
	}
	b, ok := t.time.index(ns)
	if !ok {
		s.warn("time offset %.0f ns out of range", ns)
		return
	}
	if b > t.latest {
		t.latest = b
		t.slide(s)
	}
	if b < t.first {
		return
	}
	rel := b - t.first
	if rel >= maxTimeBins {
		s.warn("time offset %.0f ns out of range", ns)
		return
	}
	if a := s.data.MutableAxis(0); a != nil {
		t.time.extend(a, rel, t.first)
	}
	t.coords[0] = rel
	s.bin(t.coords)
}

func (t *timeDomain) statsPost(s *Spectrum, _ *daq.Spill) { t.slide(s) }
func (t *timeDomain) flush(s *Spectrum)                   { t.slide(s) }

// slide drops the bins that fell out of [latest-window, latest].
func (t *timeDomain) slide(s *Spectrum) {
	if t.window <= 0 {
		return
	}
	keep := int(math.Ceil(t.window / t.time.Resolution))
	if keep < 1 {
		keep = 1
	}
	n := t.latest - keep + 1 - t.first
	if n <= 0 {
		return
	}
	if d, ok := s.data.(*dataspace.Dense1D); ok {
		d.DropFront(n)
	}
	t.first += n
}

func (t *timeDomain) cleared(s *Spectrum) {
	t.origin.reset()
	t.first, t.latest = 0, 0
	s.data.MutableAxis(0).Domain = nil
}

func (t *timeDomain) clone() binner {
	c := *t
	c.coords = make([]int, 1)
	return &c
}

// timeDelta1D histograms the time between consecutive events.
type timeDelta1D struct {
	noHooks
	time    timeAxis
	tb      daq.TimeBase
	prev    uint64
	hasPrev bool
	coords  []int
}

func newTimeDelta1D() binner {
	return &timeDelta1D{time: newTimeAxis(), tb: daq.DefaultTimeBase, coords: make([]int, 1)}
}

func (t *timeDelta1D) newDataspace() dataspace.Dataspace {
	d := dataspace.NewDense1D()
	d.SetAxis(0, t.time.axis())
	return d
}

func (t *timeDelta1D) configureAxes(d dataspace.Dataspace) { t.time.configure(d, 0) }
func (t *timeDelta1D) attributes() attrs.Set               { return t.time.attributes("time") }
func (t *timeDelta1D) apply(set attrs.Set) error           { return t.time.apply(set, "time") }
func (t *timeDelta1D) valueNames() []string                { return []string{""} }

func (t *timeDelta1D) acceptSpill(*Spectrum, *daq.Spill) bool  { return true }
func (t *timeDelta1D) acceptEvents(*Spectrum, *daq.Spill) bool { return true }

func (t *timeDelta1D) statsPre(_ *Spectrum, spill *daq.Spill) {
	if spill.EventModel.Timebase.Valid() {
		t.tb = spill.EventModel.Timebase
	}
	if spill.Type == daq.SpillStart {
		t.hasPrev = false
	}
}

func (t *timeDelta1D) pushEvent(s *Spectrum, e *daq.Event) {
	ts := e.Timestamp
	if !t.hasPrev {
		t.prev, t.hasPrev = ts, true
		return
	}
	if ts < t.prev {
		s.warn("%v", &daq.ErrTimeRegression{StreamID: s.streamID, Previous: t.prev, Current: ts})
		t.prev = ts
		return
	}
	ns := t.tb.ToNanosec(ts - t.prev)
	t.prev = ts
	b, ok := t.time.record(s.data, 0, ns, 0)
	if !ok {
		return
	}
	t.coords[0] = b
	s.bin(t.coords)
}

func (t *timeDelta1D) cleared(s *Spectrum) {
	t.hasPrev = false
	s.data.MutableAxis(0).Domain = nil
}

func (t *timeDelta1D) clone() binner {
	c := *t
	c.coords = make([]int, 1)
	return &c
}
