package daq

import (
	"fmt"
	"strings"
)

// ValueDefinition declares one scalar field of an event.
type ValueDefinition struct {
	Name string
	Max  uint32
}

// TraceDefinition declares one fixed-size trace array of an event.
type TraceDefinition struct {
	Name string
	Dims []int
}

// Size is the number of samples a trace with these dimensions holds.
func (t TraceDefinition) Size() int {
	if len(t.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Dims {
		n *= d
	}
	return n
}

// EventModel is the per-stream event schema. It is built once per stream
// start and treated as immutable afterwards.
type EventModel struct {
	Timebase TimeBase
	Values   []ValueDefinition
	Traces   []TraceDefinition

	valueIdx map[string]int
	traceIdx map[string]int
}

func NewEventModel(tb TimeBase) EventModel {
	return EventModel{
		Timebase: tb,
		valueIdx: make(map[string]int),
		traceIdx: make(map[string]int),
	}
}

// AddValue appends a scalar field. Redeclaring a name updates its maximum.
func (m *EventModel) AddValue(name string, max uint32) {
	if m.valueIdx == nil {
		m.reindex()
	}
	if i, ok := m.valueIdx[name]; ok {
		m.Values[i].Max = max
		return
	}
	m.valueIdx[name] = len(m.Values)
	m.Values = append(m.Values, ValueDefinition{Name: name, Max: max})
}

func (m *EventModel) AddTrace(name string, dims []int) {
	if m.traceIdx == nil {
		m.reindex()
	}
	d := append([]int(nil), dims...)
	if i, ok := m.traceIdx[name]; ok {
		m.Traces[i].Dims = d
		return
	}
	m.traceIdx[name] = len(m.Traces)
	m.Traces = append(m.Traces, TraceDefinition{Name: name, Dims: d})
}

// ValueIndex resolves a scalar field name.
func (m *EventModel) ValueIndex(name string) (int, bool) {
	if m.valueIdx == nil {
		m.reindex()
	}
	i, ok := m.valueIdx[name]
	return i, ok
}

func (m *EventModel) TraceIndex(name string) (int, bool) {
	if m.traceIdx == nil {
		m.reindex()
	}
	i, ok := m.traceIdx[name]
	return i, ok
}

// reindex rebuilds the lookup maps for models assembled by struct literal.
func (m *EventModel) reindex() {
	m.valueIdx = make(map[string]int, len(m.Values))
	for i, v := range m.Values {
		m.valueIdx[v.Name] = i
	}
	m.traceIdx = make(map[string]int, len(m.Traces))
	for i, t := range m.Traces {
		m.traceIdx[t.Name] = i
	}
}

// Clone returns a copy that shares nothing with m.
func (m *EventModel) Clone() EventModel {
	c := NewEventModel(m.Timebase)
	for _, v := range m.Values {
		c.AddValue(v.Name, v.Max)
	}
	for _, t := range m.Traces {
		c.AddTrace(t.Name, t.Dims)
	}
	return c
}

func (m *EventModel) Equal(o *EventModel) bool {
	if m.Timebase != o.Timebase || len(m.Values) != len(o.Values) || len(m.Traces) != len(o.Traces) {
		return false
	}
	for i := range m.Values {
		if m.Values[i] != o.Values[i] {
			return false
		}
	}
	for i := range m.Traces {
		a, b := m.Traces[i], o.Traces[i]
		if a.Name != b.Name || len(a.Dims) != len(b.Dims) {
			return false
		}
		for j := range a.Dims {
			if a.Dims[j] != b.Dims[j] {
				return false
			}
		}
	}
	return true
}

func (m *EventModel) Debug(prefix string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%sEventModel timebase=%s\n", prefix, m.Timebase)
	for i, v := range m.Values {
		fmt.Fprintf(&sb, "%s  value[%d] %s max=%d\n", prefix, i, v.Name, v.Max)
	}
	for i, t := range m.Traces {
		fmt.Fprintf(&sb, "%s  trace[%d] %s dims=%v\n", prefix, i, t.Name, t.Dims)
	}
	return sb.String()
}
