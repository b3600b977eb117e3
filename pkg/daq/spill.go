package daq

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// SpillType tags where a spill sits in the life of its stream.
type SpillType int

const (
	SpillRunning SpillType = iota
	SpillStart
	SpillStop
	SpillStatus
)

func (t SpillType) String() string {
	switch t {
	case SpillStart:
		return "start"
	case SpillRunning:
		return "running"
	case SpillStop:
		return "stop"
	case SpillStatus:
		return "status"
	default:
		return "unknown"
	}
}

func ParseSpillType(s string) (SpillType, error) {
	switch s {
	case "start":
		return SpillStart, nil
	case "running":
		return SpillRunning, nil
	case "stop":
		return SpillStop, nil
	case "status":
		return SpillStatus, nil
	}
	return SpillRunning, fmt.Errorf("unknown spill type %q", s)
}

// Well-known keys of Spill.State.
const (
	StatNativeTime = "native_time"
	StatLiveTime   = "live_time"
	StatPulseTime  = "pulse_time"
)

// Spill is one delivery unit of a stream: a batch of events plus the
// stream statistics at the time it was cut. A start spill carries the
// authoritative EventModel for every running spill that follows on the same
// stream.
type Spill struct {
	StreamID   string
	Type       SpillType
	Time       time.Time
	EventModel EventModel
	Events     []Event
	State      map[string]float64
}

func NewSpill(streamID string, t SpillType) *Spill {
	return &Spill{
		StreamID: streamID,
		Type:     t,
		Time:     time.Now(),
		State:    make(map[string]float64),
	}
}

// Stat returns a stream statistic from State.
func (s *Spill) Stat(name string) (float64, bool) {
	if s.State == nil {
		return 0, false
	}
	v, ok := s.State[name]
	return v, ok
}

func (s *Spill) SetStat(name string, v float64) {
	if s.State == nil {
		s.State = make(map[string]float64)
	}
	s.State[name] = v
}

// AddEvent builds an event against the spill's model and appends it.
func (s *Spill) AddEvent(timestamp uint64, values ...uint32) *Event {
	e := NewEvent(&s.EventModel)
	e.Timestamp = timestamp
	for i, v := range values {
		if i < e.ValueCount() {
			e.SetValue(i, v)
		}
	}
	s.Events = append(s.Events, e)
	return &s.Events[len(s.Events)-1]
}

func (s *Spill) Debug(prefix string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%sSpill stream=%q type=%s time=%s events=%d\n",
		prefix, s.StreamID, s.Type, s.Time.Format(time.RFC3339Nano), len(s.Events))
	keys := make([]string, 0, len(s.State))
	for k := range s.State {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s  %s=%g\n", prefix, k, s.State[k])
	}
	sb.WriteString(s.EventModel.Debug(prefix + "  "))
	return sb.String()
}
