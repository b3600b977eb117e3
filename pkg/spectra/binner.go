package spectra

import (
	"fmt"
	"math"

	"github.com/next-exp/spectra_go/pkg/addons"
	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/calibration"
	"github.com/next-exp/spectra_go/pkg/daq"
	"github.com/next-exp/spectra_go/pkg/dataspace"
)

// binner is the closed set of spectrum kinds. The hooks run inside the
// Spectrum lifecycle with the spectrum lock held.
type binner interface {
	newDataspace() dataspace.Dataspace
	configureAxes(d dataspace.Dataspace)
	attributes() attrs.Set
	apply(set attrs.Set) error
	valueNames() []string

	acceptSpill(s *Spectrum, spill *daq.Spill) bool
	acceptEvents(s *Spectrum, spill *daq.Spill) bool
	statsPre(s *Spectrum, spill *daq.Spill)
	pushEvent(s *Spectrum, e *daq.Event)
	statsPost(s *Spectrum, spill *daq.Spill)
	flush(s *Spectrum)

	clone() binner
}

// router is implemented by kinds that also consume a second stream.
type router interface {
	auxiliary(spill *daq.Spill) bool
}

// clearer is implemented by kinds that keep partial state about the data.
type clearer interface {
	cleared(s *Spectrum)
}

// noHooks supplies the lifecycle hooks most kinds leave empty.
type noHooks struct{}

func (noHooks) statsPost(*Spectrum, *daq.Spill) {}
func (noHooks) flush(*Spectrum)                 {}

// declares reports whether model declares every name. Spills carrying an
// empty model (bare stop spills, for instance) are not held against a kind.
func declares(model *daq.EventModel, names ...string) bool {
	if len(model.Values) == 0 {
		return true
	}
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := model.ValueIndex(n); !ok {
			return false
		}
	}
	return true
}

// latched is a ValueLatch bound to an attribute prefix.
type latched struct {
	key   string
	latch addons.ValueLatch
}

type latchSet []latched

func newLatchSet(keys ...string) latchSet {
	ls := make(latchSet, len(keys))
	for i, k := range keys {
		ls[i] = latched{key: k}
	}
	return ls
}

func (ls latchSet) configure(spill *daq.Spill) {
	for i := range ls {
		ls[i].latch.Configure(spill)
	}
}

func (ls latchSet) valid() bool {
	for _, l := range ls {
		if !l.latch.Valid() {
			return false
		}
	}
	return true
}

func (ls latchSet) names() []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.latch.Name
	}
	return out
}

// extract fills coords[offset:] with the latched values of e.
func (ls latchSet) extract(e *daq.Event, coords []int, offset int) bool {
	for i, l := range ls {
		v, ok := l.latch.Extract(e)
		if !ok {
			return false
		}
		coords[offset+i] = v
	}
	return true
}

func (ls latchSet) attributes() attrs.Set {
	set := attrs.Set{}
	for _, l := range ls {
		set.Merge(l.latch.Attributes(l.key))
	}
	return set
}

func (ls latchSet) apply(set attrs.Set) error {
	for i := range ls {
		if err := ls[i].latch.Apply(set, ls[i].key); err != nil {
			return err
		}
	}
	return nil
}

func (ls latchSet) clone() latchSet {
	return append(latchSet(nil), ls...)
}

// shiftAxes sets the resample shift of dimensions offset.. from the latch
// downsampling.
func (ls latchSet) shiftAxes(d dataspace.Dataspace, offset int) {
	for i, l := range ls {
		if a := d.MutableAxis(offset + i); a != nil {
			a.ResampleShift = l.latch.Downsample
		}
	}
}

var timeUnits = map[string]float64{
	"ns": 1,
	"us": 1e3,
	"ms": 1e6,
	"s":  1e9,
}

// maxTimeBins caps how far a single event can grow a time axis.
const maxTimeBins = 1 << 24

// timeAxis bins nanosecond offsets into bins of Resolution Units.
type timeAxis struct {
	Resolution float64
	Units      string
}

func newTimeAxis() timeAxis {
	return timeAxis{Resolution: 1, Units: "ns"}
}

func (t timeAxis) width() float64 {
	return t.Resolution * timeUnits[t.Units]
}

func (t timeAxis) bin(ns float64) (int, bool) {
	b, ok := t.index(ns)
	if !ok || b >= maxTimeBins {
		return 0, false
	}
	return b, true
}

// index is the absolute bin of ns without the growth cap.
func (t timeAxis) index(ns float64) (int, bool) {
	b := ns / t.width()
	if b < 0 || b >= math.MaxInt64 || math.IsNaN(b) {
		return 0, false
	}
	return int(b), true
}

func (t timeAxis) axis() dataspace.Axis {
	return dataspace.NewExplicitAxis(calibration.Calibration{From: t.Units, To: t.Units})
}

// extend appends domain values until bin is covered. first is the
// absolute bin index of Domain[0].
func (t timeAxis) extend(a *dataspace.Axis, bin int, first int) {
	for len(a.Domain) <= bin {
		a.Append(float64(first+len(a.Domain)) * t.Resolution)
	}
}

func (t timeAxis) attributes(prefix string) attrs.Set {
	return attrs.Set{
		prefix + ".resolution": t.Resolution,
		prefix + ".units":      t.Units,
	}
}

func (t *timeAxis) apply(set attrs.Set, prefix string) error {
	res, err := set.Float(prefix+".resolution", t.Resolution)
	if err != nil {
		return err
	}
	if res <= 0 {
		return fmt.Errorf("%s.resolution must be positive, got %g", prefix, res)
	}
	units, err := set.String(prefix+".units", t.Units)
	if err != nil {
		return err
	}
	if _, ok := timeUnits[units]; !ok {
		return fmt.Errorf("%s.units: unknown unit %q", prefix, units)
	}
	t.Resolution, t.Units = res, units
	return nil
}

// configure relabels a time axis after its units changed. Domains already
// built keep their values.
func (t timeAxis) configure(d dataspace.Dataspace, dim int) {
	if a := d.MutableAxis(dim); a != nil {
		a.Calibration.From, a.Calibration.To = t.Units, t.Units
	}
}

// record bins a time offset along dimension dim of d, growing the
// explicit domain. It returns false when the offset is out of range.
func (t timeAxis) record(d dataspace.Dataspace, dim int, ns float64, first int) (int, bool) {
	b, ok := t.bin(ns)
	if !ok {
		return 0, false
	}
	if a := d.MutableAxis(dim); a != nil {
		t.extend(a, b, first)
	}
	return b, true
}

// timeOrigin tracks the first timestamp of a stream and rejects events
// that go back in time.
type timeOrigin struct {
	tb     daq.TimeBase
	origin uint64
	last   uint64
	set    bool
}

func (o *timeOrigin) reset() { o.set = false }

func (o *timeOrigin) configure(spill *daq.Spill) {
	if spill.EventModel.Timebase.Valid() {
		o.tb = spill.EventModel.Timebase
	}
	if spill.Type == daq.SpillStart {
		o.reset()
	}
}

// since returns the nanoseconds from the origin to ts. A regression rebases
// the stream at ts and reports the error; that event is not binned.
func (o *timeOrigin) since(ts uint64, stream string) (float64, error) {
	if !o.set {
		o.origin, o.last, o.set = ts, ts, true
	}
	if ts < o.last {
		err := &daq.ErrTimeRegression{StreamID: stream, Previous: o.last, Current: ts}
		o.origin, o.last = ts, ts
		return 0, err
	}
	o.last = ts
	return o.timebase().ToNanosec(ts - o.origin), nil
}

func (o timeOrigin) timebase() daq.TimeBase {
	if o.tb.Valid() {
		return o.tb
	}
	return daq.DefaultTimeBase
}
