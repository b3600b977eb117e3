package daq

import (
	"fmt"
	"time"
)

// Clock names accepted by CalcDiff. Any other name is looked up in the
// stream statistics and converted with the stream time base.
const (
	ClockProducerWall = "producer_wall_time"
	ClockConsumerWall = "consumer_wall_time"
)

// Status is a point-in-time snapshot of a spill used to measure elapsed
// time between spills.
type Status struct {
	StreamID     string
	Type         SpillType
	ProducerTime time.Time
	ConsumerTime time.Time
	Timebase     TimeBase
	Stats        map[string]float64
}

// ExtractStatus snapshots spill; now is the consumer wall-clock reading.
func ExtractStatus(s *Spill, now time.Time) Status {
	st := Status{
		StreamID:     s.StreamID,
		Type:         s.Type,
		ProducerTime: s.Time,
		ConsumerTime: now,
		Timebase:     s.EventModel.Timebase,
		Stats:        make(map[string]float64, len(s.State)),
	}
	for k, v := range s.State {
		st.Stats[k] = v
	}
	return st
}

func (s Status) Stat(name string) (float64, bool) {
	v, ok := s.Stats[name]
	return v, ok
}

// CalcDiff returns the time elapsed between two snapshots on the named
// clock. Native clocks count ticks of the later snapshot's time base.
// Missing statistics yield zero.
func CalcDiff(from Status, to Status, clock string) time.Duration {
	switch clock {
	case ClockProducerWall:
		return to.ProducerTime.Sub(from.ProducerTime)
	case ClockConsumerWall:
		return to.ConsumerTime.Sub(from.ConsumerTime)
	}
	a, okA := from.Stats[clock]
	b, okB := to.Stats[clock]
	if !okA || !okB {
		return 0
	}
	return time.Duration(to.Timebase.ToNanosecFloat(b - a))
}

// TotalElapsed sums the elapsed time on clock across a status history.
// Every start snapshot opens a new segment, so the gap between a stop and
// the following start is not counted.
func TotalElapsed(history []Status, clock string) time.Duration {
	var total time.Duration
	for i := 1; i < len(history); i++ {
		if history[i].Type == SpillStart {
			continue
		}
		total += CalcDiff(history[i-1], history[i], clock)
	}
	return total
}

func (s Status) String() string {
	return fmt.Sprintf("status{stream=%q type=%s producer=%s}", s.StreamID, s.Type,
		s.ProducerTime.Format(time.RFC3339Nano))
}
