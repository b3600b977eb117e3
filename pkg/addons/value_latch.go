// Package addons holds the reusable per-spectrum policies: field latches,
// event filters, the periodic clear trigger and the recent-rate tracker.
// Add-ons only keep indices into an EventModel, never the model itself.
package addons

import (
	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/daq"
)

// ValueLatch binds a declared field name to its index in the current
// stream's EventModel. The binding is refreshed on every start spill and
// stays unresolved until a model declaring the field is seen.
type ValueLatch struct {
	Name string
	// Downsample right-shifts extracted values by this many bits.
	Downsample int

	index    int
	resolved bool
}

func NewValueLatch(name string) ValueLatch {
	return ValueLatch{Name: name}
}

// Configure resolves the field against spill's model when the spill starts
// the stream or the latch is still unresolved.
func (l *ValueLatch) Configure(spill *daq.Spill) {
	if l.resolved && spill.Type != daq.SpillStart {
		return
	}
	l.Resolve(&spill.EventModel)
}

// Resolve binds against model unconditionally.
func (l *ValueLatch) Resolve(model *daq.EventModel) {
	l.index, l.resolved = 0, false
	if l.Name == "" {
		return
	}
	l.index, l.resolved = model.ValueIndex(l.Name)
}

func (l *ValueLatch) Reset() {
	l.index, l.resolved = 0, false
}

func (l ValueLatch) Valid() bool { return l.resolved }

func (l ValueLatch) Index() (int, bool) { return l.index, l.resolved }

// Extract reads the latched field from e, downsampled.
func (l ValueLatch) Extract(e *daq.Event) (int, bool) {
	if !l.resolved || l.index >= e.ValueCount() {
		return 0, false
	}
	return int(e.Value(l.index) >> uint(l.Downsample)), true
}

// Bins is the number of bins the latched field spans in model after
// downsampling, or 0 when the field is not declared.
func (l ValueLatch) Bins(model *daq.EventModel) int {
	i, ok := model.ValueIndex(l.Name)
	if !ok {
		return 0
	}
	return int(model.Values[i].Max>>uint(l.Downsample)) + 1
}

// Attributes reports the latch configuration under prefix.
func (l ValueLatch) Attributes(prefix string) attrs.Set {
	return attrs.Set{
		prefix + ".value":      l.Name,
		prefix + ".downsample": l.Downsample,
	}
}

// Apply reads the configuration under prefix. A changed name drops the
// current binding.
func (l *ValueLatch) Apply(set attrs.Set, prefix string) error {
	name, err := set.String(prefix+".value", l.Name)
	if err != nil {
		return err
	}
	ds, err := set.Int(prefix+".downsample", l.Downsample)
	if err != nil {
		return err
	}
	if ds < 0 || ds > 31 {
		return &attrRangeError{Name: prefix + ".downsample", Value: float64(ds)}
	}
	if name != l.Name {
		l.Reset()
	}
	l.Name, l.Downsample = name, ds
	return nil
}
