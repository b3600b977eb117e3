package daq

import (
	"fmt"
	"strings"
)

// Event is one detector hit: a timestamp in native ticks, a fixed-width
// vector of scalar values and zero or more fixed-size traces, shaped by the
// EventModel it was built against.
type Event struct {
	Timestamp uint64
	values    []uint32
	traces    [][]uint32
}

func NewEvent(model *EventModel) Event {
	e := Event{values: make([]uint32, len(model.Values))}
	if len(model.Traces) > 0 {
		e.traces = make([][]uint32, len(model.Traces))
		for i, t := range model.Traces {
			e.traces[i] = make([]uint32, t.Size())
		}
	}
	return e
}

func (e *Event) ValueCount() int { return len(e.values) }
func (e *Event) TraceCount() int { return len(e.traces) }

func (e *Event) Value(i int) uint32 {
	return e.values[i]
}

func (e *Event) SetValue(i int, v uint32) {
	e.values[i] = v
}

func (e *Event) Trace(i int) []uint32 {
	return e.traces[i]
}

// Matches reports whether e has the shape model declares.
func (e *Event) Matches(model *EventModel) bool {
	if len(e.values) != len(model.Values) || len(e.traces) != len(model.Traces) {
		return false
	}
	for i, t := range model.Traces {
		if len(e.traces[i]) != t.Size() {
			return false
		}
	}
	return true
}

func (e *Event) Clone() Event {
	c := Event{Timestamp: e.Timestamp, values: append([]uint32(nil), e.values...)}
	if e.traces != nil {
		c.traces = make([][]uint32, len(e.traces))
		for i, t := range e.traces {
			c.traces[i] = append([]uint32(nil), t...)
		}
	}
	return c
}

func (e *Event) Debug() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[t=%d values=%v", e.Timestamp, e.values)
	for i, t := range e.traces {
		fmt.Fprintf(&sb, " trace%d(%d)", i, len(t))
	}
	sb.WriteString("]")
	return sb.String()
}
