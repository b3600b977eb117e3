package addons

import (
	"fmt"

	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/daq"
)

// ValueFilter accepts events whose named field lies in [Min, Max].
type ValueFilter struct {
	Name    string
	Min     uint32
	Max     uint32
	Enabled bool

	index    int
	resolved bool
}

func (f *ValueFilter) Configure(spill *daq.Spill) {
	if f.resolved && spill.Type != daq.SpillStart {
		return
	}
	f.index, f.resolved = 0, false
	if f.Name != "" {
		f.index, f.resolved = spill.EventModel.ValueIndex(f.Name)
	}
}

// Valid is true when the filter is enabled and bound to a field.
func (f ValueFilter) Valid() bool {
	return f.Enabled && f.resolved
}

// Accept lets everything through unless the filter is valid.
func (f ValueFilter) Accept(e *daq.Event) bool {
	if !f.Valid() || f.index >= e.ValueCount() {
		return true
	}
	v := e.Value(f.index)
	return v >= f.Min && v <= f.Max
}

// FilterBlock is a fixed set of filters combined with AND.
type FilterBlock struct {
	Filters []ValueFilter
}

// NewFilterBlock creates n disabled filter slots.
func NewFilterBlock(n int) FilterBlock {
	return FilterBlock{Filters: make([]ValueFilter, n)}
}

func (b *FilterBlock) Configure(spill *daq.Spill) {
	for i := range b.Filters {
		b.Filters[i].Configure(spill)
	}
}

// Valid is true when at least one filter is enabled and bound.
func (b *FilterBlock) Valid() bool {
	for _, f := range b.Filters {
		if f.Valid() {
			return true
		}
	}
	return false
}

func (b *FilterBlock) Accept(e *daq.Event) bool {
	for _, f := range b.Filters {
		if !f.Accept(e) {
			return false
		}
	}
	return true
}

func (b *FilterBlock) Attributes(prefix string) attrs.Set {
	set := attrs.Set{}
	for i, f := range b.Filters {
		p := fmt.Sprintf("%s.%d", prefix, i)
		set[p+".value"] = f.Name
		set[p+".min"] = f.Min
		set[p+".max"] = f.Max
		set[p+".enabled"] = f.Enabled
	}
	return set
}

func (b *FilterBlock) Apply(set attrs.Set, prefix string) error {
	for i := range b.Filters {
		f := &b.Filters[i]
		p := fmt.Sprintf("%s.%d", prefix, i)
		name, err := set.String(p+".value", f.Name)
		if err != nil {
			return err
		}
		min, err := set.Float(p+".min", float64(f.Min))
		if err != nil {
			return err
		}
		max, err := set.Float(p+".max", float64(f.Max))
		if err != nil {
			return err
		}
		enabled, err := set.Bool(p+".enabled", f.Enabled)
		if err != nil {
			return err
		}
		if min < 0 || min > max {
			return &attrRangeError{Name: p + ".min", Value: min}
		}
		if name != f.Name {
			f.resolved = false
		}
		f.Name, f.Min, f.Max, f.Enabled = name, uint32(min), uint32(max), enabled
	}
	return nil
}
