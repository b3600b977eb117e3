package addons

import (
	"fmt"
	"time"

	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/daq"
)

type ClockType int

const (
	ClockNative ClockType = iota
	ClockProducer
	ClockConsumer
)

func (c ClockType) String() string {
	switch c {
	case ClockProducer:
		return "producer"
	case ClockConsumer:
		return "consumer"
	default:
		return "native"
	}
}

func ParseClockType(s string) (ClockType, error) {
	switch s {
	case "native", "":
		return ClockNative, nil
	case "producer":
		return ClockProducer, nil
	case "consumer":
		return ClockConsumer, nil
	}
	return ClockNative, fmt.Errorf("unknown clock %q", s)
}

// PeriodicTrigger accumulates elapsed time between statuses and fires once
// per Timeout. The owner checks Triggered, reacts, and calls Reset.
type PeriodicTrigger struct {
	Enabled bool
	Clock   ClockType
	// NativeClock names the stream statistic used by ClockNative.
	NativeClock string
	Timeout     time.Duration
	Triggered   bool

	recent    daq.Status
	hasRecent bool
	elapsed   time.Duration
}

func NewPeriodicTrigger() PeriodicTrigger {
	return PeriodicTrigger{NativeClock: daq.StatNativeTime, Timeout: time.Minute}
}

func (t *PeriodicTrigger) clockName() string {
	switch t.Clock {
	case ClockProducer:
		return daq.ClockProducerWall
	case ClockConsumer:
		return daq.ClockConsumerWall
	}
	if t.NativeClock == "" {
		return daq.StatNativeTime
	}
	return t.NativeClock
}

// Elapsed is the time accumulated towards the next firing.
func (t *PeriodicTrigger) Elapsed() time.Duration { return t.elapsed }

// Update accounts for the time since the previous status. A start status
// opens a new segment without counting the gap before it. Negative
// differences are ignored.
func (t *PeriodicTrigger) Update(s daq.Status) {
	if !t.Enabled {
		return
	}
	if t.hasRecent && s.Type != daq.SpillStart {
		if d := daq.CalcDiff(t.recent, s, t.clockName()); d > 0 {
			t.elapsed += d
		}
	}
	t.recent, t.hasRecent = s, true
	if t.Timeout > 0 && t.elapsed >= t.Timeout {
		t.Triggered = true
		t.elapsed -= t.Timeout
	}
}

// Reset clears the fired flag after the owner has reacted.
func (t *PeriodicTrigger) Reset() {
	t.Triggered = false
}

func (t *PeriodicTrigger) Attributes(prefix string) attrs.Set {
	return attrs.Set{
		prefix + ".enabled":      t.Enabled,
		prefix + ".clock":        t.Clock.String(),
		prefix + ".native_clock": t.NativeClock,
		prefix + ".timeout":      t.Timeout.String(),
	}
}

func (t *PeriodicTrigger) Apply(set attrs.Set, prefix string) error {
	enabled, err := set.Bool(prefix+".enabled", t.Enabled)
	if err != nil {
		return err
	}
	clockName, err := set.String(prefix+".clock", t.Clock.String())
	if err != nil {
		return err
	}
	clock, err := ParseClockType(clockName)
	if err != nil {
		return err
	}
	native, err := set.String(prefix+".native_clock", t.NativeClock)
	if err != nil {
		return err
	}
	timeout, err := set.Duration(prefix+".timeout", t.Timeout)
	if err != nil {
		return err
	}
	if timeout < 0 {
		return &attrRangeError{Name: prefix + ".timeout", Value: timeout.Seconds()}
	}
	t.Enabled, t.Clock, t.NativeClock, t.Timeout = enabled, clock, native, timeout
	return nil
}
