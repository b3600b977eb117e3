package spectra

import (
	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/daq"
	"github.com/next-exp/spectra_go/pkg/dataspace"
)

// tof bins the time of flight of each event relative to the pulse_time
// statistic of its spill, optionally paired with a latched value. Spills
// without a pulse time are not binned and events before the pulse are
// dropped.
type tof struct {
	noHooks
	kind     dataspace.Kind
	time     timeAxis
	tb       daq.TimeBase
	pulse    float64
	hasPulse bool
	latches  latchSet
	coords   []int
}

// TOF1D histograms the time of flight alone.
func newTOF1D() binner {
	return &tof{kind: dataspace.KindDense1D, time: newTimeAxis(), tb: daq.DefaultTimeBase, coords: make([]int, 1)}
}

// TOFVal2D bins (time of flight, value) pairs.
func newTOFVal2D() binner {
	return &tof{kind: dataspace.KindSparseMatrix2D, time: newTimeAxis(), tb: daq.DefaultTimeBase,
		latches: newLatchSet("value"), coords: make([]int, 2)}
}

func (t *tof) newDataspace() dataspace.Dataspace {
	d := dataspace.New(t.kind)
	d.SetAxis(0, t.time.axis())
	t.configureAxes(d)
	return d
}

func (t *tof) configureAxes(d dataspace.Dataspace) {
	t.time.configure(d, 0)
	t.latches.shiftAxes(d, 1)
}

func (t *tof) attributes() attrs.Set {
	set := t.time.attributes("time")
	set.Merge(t.latches.attributes())
	return set
}

func (t *tof) apply(set attrs.Set) error {
	if err := t.time.apply(set, "time"); err != nil {
		return err
	}
	return t.latches.apply(set)
}

func (t *tof) valueNames() []string { return append([]string{""}, t.latches.names()...) }

func (t *tof) acceptSpill(_ *Spectrum, spill *daq.Spill) bool {
	return declares(&spill.EventModel, t.latches.names()...)
}

func (t *tof) acceptEvents(*Spectrum, *daq.Spill) bool {
	return t.hasPulse && t.latches.valid()
}

func (t *tof) statsPre(_ *Spectrum, spill *daq.Spill) {
	if spill.EventModel.Timebase.Valid() {
		t.tb = spill.EventModel.Timebase
	}
	t.latches.configure(spill)
	v, ok := spill.Stat(daq.StatPulseTime)
	t.pulse, t.hasPulse = t.tb.ToNanosecFloat(v), ok
}

func (t *tof) pushEvent(s *Spectrum, e *daq.Event) {
	ns := t.tb.ToNanosec(e.Timestamp)
	if ns < t.pulse {
		return
	}
	if !t.latches.extract(e, t.coords, 1) {
		return
	}
	b, ok := t.time.record(s.data, 0, ns-t.pulse, 0)
	if !ok {
		s.warn("time of flight %.0f ns out of range", ns-t.pulse)
		return
	}
	t.coords[0] = b
	s.bin(t.coords)
}

func (t *tof) cleared(s *Spectrum) {
	s.data.MutableAxis(0).Domain = nil
}

func (t *tof) clone() binner {
	c := *t
	c.latches = t.latches.clone()
	c.coords = make([]int, len(t.coords))
	return &c
}
