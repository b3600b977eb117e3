package daq

import (
	"fmt"
	"math"
)

// TimeBase converts native clock ticks of a stream to nanoseconds as
// ticks * multiplier / divider.
type TimeBase struct {
	multiplier uint64
	divider    uint64
}

// DefaultTimeBase is one tick per nanosecond.
var DefaultTimeBase = TimeBase{multiplier: 1, divider: 1}

func NewTimeBase(multiplier uint64, divider uint64) (TimeBase, error) {
	if multiplier == 0 || divider == 0 {
		return TimeBase{}, &ErrInvalidTimeBase{Multiplier: multiplier, Divider: divider}
	}
	g := gcd(multiplier, divider)
	return TimeBase{multiplier: multiplier / g, divider: divider / g}, nil
}

// MustTimeBase is NewTimeBase for constants known to be valid.
func MustTimeBase(multiplier uint64, divider uint64) TimeBase {
	tb, err := NewTimeBase(multiplier, divider)
	if err != nil {
		panic(err)
	}
	return tb
}

func (tb TimeBase) Multiplier() uint64 { return tb.multiplier }
func (tb TimeBase) Divider() uint64    { return tb.divider }

// Valid is false for the zero value.
func (tb TimeBase) Valid() bool {
	return tb.multiplier != 0 && tb.divider != 0
}

func (tb TimeBase) ToNanosec(ticks uint64) float64 {
	if !tb.Valid() {
		return float64(ticks)
	}
	return float64(ticks) * float64(tb.multiplier) / float64(tb.divider)
}

func (tb TimeBase) ToNanosecFloat(ticks float64) float64 {
	if !tb.Valid() {
		return ticks
	}
	return ticks * float64(tb.multiplier) / float64(tb.divider)
}

// ToNative rounds nanoseconds down to whole ticks.
func (tb TimeBase) ToNative(ns float64) uint64 {
	if !tb.Valid() {
		return uint64(ns)
	}
	if ns <= 0 {
		return 0
	}
	return uint64(math.Floor(ns * float64(tb.divider) / float64(tb.multiplier)))
}

// Common returns the finest time base both a and b can be expressed in
// exactly: the gcd of the tick lengths.
func Common(a TimeBase, b TimeBase) TimeBase {
	if !a.Valid() {
		return b
	}
	if !b.Valid() {
		return a
	}
	// tick lengths a.m/a.d and b.m/b.d; gcd of fractions = gcd(nums)/lcm(dens)
	num := gcd(a.multiplier*b.divider, b.multiplier*a.divider)
	den := a.divider * b.divider
	g := gcd(num, den)
	return TimeBase{multiplier: num / g, divider: den / g}
}

func (tb TimeBase) String() string {
	return fmt.Sprintf("%d/%d ns", tb.multiplier, tb.divider)
}

func gcd(a uint64, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
