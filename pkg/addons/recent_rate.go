package addons

import (
	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/daq"
)

// RecentRate is the count rate between the two most recent statuses, in
// counts per second of the divisor clock.
type RecentRate struct {
	DivisorClock string
	CurrentRate  float64

	previous      daq.Status
	previousCount float64
	hasPrevious   bool

	spanStart float64
	span      float64
}

func NewRecentRate() RecentRate {
	return RecentRate{DivisorClock: daq.StatNativeTime}
}

// Update sets CurrentRate to the count difference over the elapsed divisor
// time since the last update, or 0 when no time has elapsed.
func (r *RecentRate) Update(s daq.Status, count float64) {
	r.CurrentRate, r.span = 0, 0
	if r.hasPrevious {
		dt := daq.CalcDiff(r.previous, s, r.DivisorClock).Seconds()
		if dt > 0 {
			r.CurrentRate = (count - r.previousCount) / dt
			r.span, r.spanStart = dt, r.previousCount
		}
	}
	r.previous, r.previousCount, r.hasPrevious = s, count, true
}

// Refresh recomputes CurrentRate over the last status interval with a
// count that changed after the interval closed, as a flush does.
func (r *RecentRate) Refresh(count float64) {
	if r.span > 0 {
		r.CurrentRate = (count - r.spanStart) / r.span
	}
	r.previousCount = count
}

func (r *RecentRate) Reset() {
	r.CurrentRate = 0
	r.hasPrevious = false
	r.previousCount = 0
	r.span, r.spanStart = 0, 0
}

func (r *RecentRate) Attributes(prefix string) attrs.Set {
	return attrs.Set{prefix + ".clock": r.DivisorClock}
}

func (r *RecentRate) Apply(set attrs.Set, prefix string) error {
	clock, err := set.String(prefix+".clock", r.DivisorClock)
	if err != nil {
		return err
	}
	r.DivisorClock = clock
	return nil
}
