package spectra

import (
	"fmt"

	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/daq"
	"github.com/next-exp/spectra_go/pkg/dataspace"
)

// DefaultMaxBufferedEvents bounds the primary events a correlated spectrum
// holds while waiting for markers.
const DefaultMaxBufferedEvents = 1 << 20

// DefaultMaxBufferedMarkers bounds the chopper markers held while the
// primary stream lags behind.
const DefaultMaxBufferedMarkers = 1 << 16

const (
	primarySide = iota
	chopperSide
)

// pending is a buffered primary event: its time in ns and latched values.
type pending struct {
	ns     float64
	values [2]int
}

// correlate bins primary events by their time since the preceding marker
// of a second stream, the chopper. Both streams are buffered; an interval
// between two markers is binned only once an event past its closing marker
// has arrived, so late marker spills never leave events misassigned.
type correlate struct {
	kind          dataspace.Kind
	time          timeAxis
	chopperStream string
	maxBuffered   int
	maxMarkers    int
	latches       latchSet

	onChopper   bool
	primaryTB   daq.TimeBase
	chopperTB   daq.TimeBase
	events      deque[pending]
	chopper     deque[float64]
	lastPrimary float64
	hasPrimary  bool
	lastChopper float64
	hasChopper  bool
	// horizon is the latest primary time paired with the buffered markers.
	horizon    float64
	hasHorizon bool
	// runs counts the restarts of each side: start spills and regressions.
	runs           [2]int
	dropped        int
	droppedMarkers int
	coords         []int
}

func newCorrelate(kind dataspace.Kind, keys ...string) *correlate {
	return &correlate{
		kind:          kind,
		time:          newTimeAxis(),
		chopperStream: "chopper",
		maxBuffered:   DefaultMaxBufferedEvents,
		maxMarkers:    DefaultMaxBufferedMarkers,
		latches:       newLatchSet(keys...),
		primaryTB:     daq.DefaultTimeBase,
		chopperTB:     daq.DefaultTimeBase,
		coords:        make([]int, 1+len(keys)),
	}
}

// TOF1DCorrelate histograms time since the last chopper marker.
func newTOF1DCorrelate() binner { return newCorrelate(dataspace.KindDense1D) }

// TOFVal2DCorrelate bins (time since marker, value).
func newTOFVal2DCorrelate() binner { return newCorrelate(dataspace.KindSparseMatrix2D, "value") }

// TOFVal3DCorrelate bins (time since marker, x, y).
func newTOFVal3DCorrelate() binner { return newCorrelate(dataspace.KindSparseMap3D, "x", "y") }

func (c *correlate) newDataspace() dataspace.Dataspace {
	d := dataspace.New(c.kind)
	d.SetAxis(0, c.time.axis())
	c.configureAxes(d)
	return d
}

func (c *correlate) configureAxes(d dataspace.Dataspace) {
	c.time.configure(d, 0)
	c.latches.shiftAxes(d, 1)
}

func (c *correlate) attributes() attrs.Set {
	set := c.time.attributes("time")
	set.Merge(c.latches.attributes())
	set["chopper_stream"] = c.chopperStream
	set["max_buffered_events"] = c.maxBuffered
	set["max_buffered_markers"] = c.maxMarkers
	return set
}

func (c *correlate) apply(set attrs.Set) error {
	if err := c.time.apply(set, "time"); err != nil {
		return err
	}
	if err := c.latches.apply(set); err != nil {
		return err
	}
	stream, err := set.String("chopper_stream", c.chopperStream)
	if err != nil {
		return err
	}
	if stream == "" {
		return fmt.Errorf("chopper_stream must not be empty")
	}
	max, err := set.Int("max_buffered_events", c.maxBuffered)
	if err != nil {
		return err
	}
	if max < 0 {
		return fmt.Errorf("max_buffered_events must not be negative, got %d", max)
	}
	markers, err := set.Int("max_buffered_markers", c.maxMarkers)
	if err != nil {
		return err
	}
	if markers < 0 {
		return fmt.Errorf("max_buffered_markers must not be negative, got %d", markers)
	}
	c.chopperStream, c.maxBuffered, c.maxMarkers = stream, max, markers
	return nil
}

func (c *correlate) valueNames() []string { return append([]string{""}, c.latches.names()...) }

// auxiliary routes marker spills to the chopper path regardless of the
// spectrum's own stream.
func (c *correlate) auxiliary(spill *daq.Spill) bool {
	return spill.StreamID == c.chopperStream
}

func (c *correlate) acceptSpill(_ *Spectrum, spill *daq.Spill) bool {
	return declares(&spill.EventModel, c.latches.names()...)
}

func (c *correlate) acceptEvents(*Spectrum, *daq.Spill) bool {
	return c.onChopper || c.latches.valid()
}

func (c *correlate) statsPre(s *Spectrum, spill *daq.Spill) {
	c.onChopper = !s.ownSpill
	tb := spill.EventModel.Timebase
	if c.onChopper {
		if tb.Valid() {
			c.chopperTB = tb
		}
		if spill.Type == daq.SpillStart {
			c.restart(chopperSide)
		}
		return
	}
	if tb.Valid() {
		c.primaryTB = tb
	}
	if spill.Type == daq.SpillStart {
		c.restart(primarySide)
	}
	c.latches.configure(spill)
}

// restart begins a new run on one side after a start spill or a timestamp
// regression. Its buffer and last time are dropped. The other side's
// buffer is dropped too while that side is still in an earlier run.
func (c *correlate) restart(side int) {
	c.runs[side]++
	c.resetSide(side)
	other := 1 - side
	if c.runs[other] < c.runs[side] {
		c.clearSide(other)
	}
}

func (c *correlate) resetSide(side int) {
	c.clearSide(side)
	if side == chopperSide {
		c.hasChopper = false
	} else {
		c.hasPrimary = false
	}
}

func (c *correlate) clearSide(side int) {
	if side == chopperSide {
		c.chopper.Clear()
	} else {
		c.events.Clear()
	}
	c.hasHorizon = false
}

func (c *correlate) pushEvent(s *Spectrum, e *daq.Event) {
	if c.onChopper {
		ns := c.chopperTB.ToNanosec(e.Timestamp)
		if c.hasChopper && ns < c.lastChopper {
			s.warn("%v", &daq.ErrTimeRegression{StreamID: c.chopperStream, Previous: c.chopperTB.ToNative(c.lastChopper), Current: e.Timestamp})
			c.restart(chopperSide)
			c.lastChopper, c.hasChopper = ns, true
			return
		}
		c.lastChopper, c.hasChopper = ns, true
		if c.maxMarkers > 0 && c.chopper.Len() >= c.maxMarkers {
			c.chopper.PopFront()
			c.droppedMarkers++
		}
		c.chopper.Push(ns)
		return
	}

	ns := c.primaryTB.ToNanosec(e.Timestamp)
	if c.hasPrimary && ns < c.lastPrimary {
		s.warn("%v", &daq.ErrTimeRegression{StreamID: s.streamID, Previous: c.primaryTB.ToNative(c.lastPrimary), Current: e.Timestamp})
		c.restart(primarySide)
		c.lastPrimary, c.hasPrimary = ns, true
		return
	}
	p := pending{ns: ns}
	if !c.latches.extract(e, p.values[:], 0) {
		return
	}
	c.lastPrimary, c.hasPrimary = ns, true
	c.horizon, c.hasHorizon = ns, true
	if c.maxBuffered > 0 && c.events.Len() >= c.maxBuffered {
		c.events.PopFront()
		c.dropped++
	}
	c.events.Push(p)
}

func (c *correlate) statsPost(s *Spectrum, spill *daq.Spill) {
	for c.canBin() && c.binEvents(s) {
	}
	if !c.onChopper && spill.Type == daq.SpillStop {
		c.drain(s)
	}
	c.prune()
	if c.dropped > 0 {
		s.warn("correlation buffer full, dropped %d oldest events", c.dropped)
		c.dropped = 0
	}
	if c.droppedMarkers > 0 {
		s.warn("correlation buffer full, dropped %d oldest markers", c.droppedMarkers)
		c.droppedMarkers = 0
	}
}

func (c *correlate) flush(s *Spectrum) {
	c.drain(s)
	c.prune()
}

// canBin reports whether the interval opened by the front marker is
// closed: its end marker is buffered and an event past it has arrived.
func (c *correlate) canBin() bool {
	return c.chopper.Len() >= 2 && c.events.Len() > 0 && c.events.Back().ns > c.chopper.At(1)
}

// binEvents consumes the front marker and bins the events of its interval.
// It returns true when it stopped at an event past the interval and false
// when the event buffer ran dry.
func (c *correlate) binEvents(s *Spectrum) bool {
	offset := c.chopper.PopFront()
	limit := c.chopper.Front()
	for c.events.Len() > 0 {
		p := c.events.Front()
		if p.ns >= limit {
			return true
		}
		c.events.PopFront()
		if p.ns < offset {
			continue
		}
		c.emit(s, p.ns-offset, p)
	}
	return false
}

// drain bins every interval whose two markers are buffered, without
// waiting for an event past the closing marker.
func (c *correlate) drain(s *Spectrum) {
	for c.chopper.Len() >= 2 && c.events.Len() > 0 && c.binEvents(s) {
	}
}

// prune drops events that precede every buffered marker and markers that
// can no longer open an interval containing an event.
func (c *correlate) prune() {
	for c.chopper.Len() > 0 && c.events.Len() > 0 && c.events.Front().ns < c.chopper.Front() {
		c.events.PopFront()
	}
	for c.chopper.Len() >= 2 {
		next := c.chopper.At(1)
		if c.events.Len() > 0 {
			if c.events.Front().ns < next {
				break
			}
		} else if !c.hasHorizon || c.horizon < next {
			break
		}
		c.chopper.PopFront()
	}
}

func (c *correlate) emit(s *Spectrum, tof float64, p pending) {
	b, ok := c.time.record(s.data, 0, tof, 0)
	if !ok {
		s.warn("time of flight %.0f ns out of range", tof)
		return
	}
	c.coords[0] = b
	copy(c.coords[1:], p.values[:len(c.coords)-1])
	s.bin(c.coords)
}

func (c *correlate) cleared(s *Spectrum) {
	s.data.MutableAxis(0).Domain = nil
}

func (c *correlate) clone() binner {
	cp := *c
	cp.latches = c.latches.clone()
	cp.events = c.events.clone()
	cp.chopper = c.chopper.clone()
	cp.coords = make([]int, len(c.coords))
	return &cp
}
