package spectra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/daq"
)

func markerModel() daq.EventModel {
	return daq.NewEventModel(daq.DefaultTimeBase)
}

func markers(ts ...uint64) *daq.Spill {
	events := make([]ev, len(ts))
	for i, t := range ts {
		events[i] = at(t)
	}
	return mkSpill("chopper", daq.SpillRunning, markerModel(), events...)
}

func hits(ts ...uint64) *daq.Spill {
	events := make([]ev, len(ts))
	for i, t := range ts {
		events[i] = at(t, 7)
	}
	return mkSpill("det", daq.SpillRunning, detectorModel(), events...)
}

func newCorrelated(t *testing.T, typ string, extra attrs.Set, log daq.Logger) *Spectrum {
	set := attrs.Set{"stream_id": "det", "chopper_stream": "chopper"}
	set.Merge(extra)
	return newTestSpectrum(t, typ, set, log)
}

func TestCorrelationClosure(t *testing.T) {
	s := newCorrelated(t, "TOF1DCorrelate", nil, nil)

	s.PushSpill(markers(100, 200, 300))
	s.PushSpill(hits(150, 180, 250))

	// 250 waits until an event past 300 or a flush closes its interval.
	assert.Equal(t, 1.0, get(s, 50))
	assert.Equal(t, 1.0, get(s, 80))
	assert.Equal(t, 2.0, s.Data().TotalCount())

	s.Flush()
	assert.Equal(t, 2.0, get(s, 50))
	assert.Equal(t, 3.0, s.Data().TotalCount())
}

func TestCorrelationWaitsForMarkers(t *testing.T) {
	s := newCorrelated(t, "TOF1DCorrelate", nil, nil)

	s.PushSpill(hits(150, 180, 250))
	assert.Zero(t, s.Data().TotalCount(), "nothing is binned before both markers arrive")

	s.PushSpill(markers(100))
	assert.Zero(t, s.Data().TotalCount())

	s.PushSpill(markers(200, 300))
	assert.Equal(t, 1.0, get(s, 50))
	assert.Equal(t, 1.0, get(s, 80))

	stop := mkSpill("det", daq.SpillStop, detectorModel())
	s.PushSpill(stop)
	assert.Equal(t, 2.0, get(s, 50))
	assert.Equal(t, 3.0, s.Data().TotalCount())
}

func TestCorrelationSpillsAcrossIntervals(t *testing.T) {
	s := newCorrelated(t, "TOF1DCorrelate", nil, nil)

	s.PushSpill(markers(0, 100))
	s.PushSpill(hits(10, 20))
	assert.Zero(t, s.Data().TotalCount())

	s.PushSpill(markers(200, 300))
	s.PushSpill(hits(110, 250, 310))
	// 10 and 110 both land 10 ns after their marker.
	assert.Equal(t, 2.0, get(s, 10))
	assert.Equal(t, 1.0, get(s, 20))
	assert.Equal(t, 1.0, get(s, 50))
	assert.Equal(t, 4.0, s.Data().TotalCount())
}

func TestCorrelationDropsEventsBeforeFirstMarker(t *testing.T) {
	s := newCorrelated(t, "TOF1DCorrelate", nil, nil)
	s.PushSpill(hits(50, 150))
	s.PushSpill(markers(100, 200))
	s.Flush()
	assert.Equal(t, 1.0, s.Data().TotalCount())
	assert.Equal(t, 1.0, get(s, 50))
}

func TestCorrelationBufferBound(t *testing.T) {
	log := &recordingLogger{}
	s := newCorrelated(t, "TOF1DCorrelate", attrs.Set{"max_buffered_events": 2}, log)

	s.PushSpill(hits(10, 20, 30))
	require.Len(t, log.warnings, 1)
	assert.Contains(t, log.warnings[0], "dropped 1")

	s.PushSpill(markers(0, 100))
	s.Flush()
	assert.Zero(t, get(s, 10))
	assert.Equal(t, 1.0, get(s, 20))
	assert.Equal(t, 1.0, get(s, 30))
}

func TestCorrelationMarkerStreamDoesNotCountTime(t *testing.T) {
	s := newCorrelated(t, "TOF1DCorrelate", nil, nil)
	a := markers(0)
	a.SetStat(daq.StatNativeTime, 0)
	b := markers(100)
	b.SetStat(daq.StatNativeTime, 5e9)
	s.PushSpill(a)
	s.PushSpill(b)

	v, _ := s.GetAttribute("real_time")
	assert.Equal(t, "0s", v)
}

func TestCorrelationMarkerRegression(t *testing.T) {
	log := &recordingLogger{}
	s := newCorrelated(t, "TOF1DCorrelate", nil, log)
	s.PushSpill(markers(100, 200))
	s.PushSpill(markers(150))
	require.Len(t, log.warnings, 1)
	assert.Contains(t, log.warnings[0], "chopper")
}

func correlatedRun(s *Spectrum, markerTimes []uint64, hitTimes []uint64) {
	s.PushSpill(markers(markerTimes...))
	s.PushSpill(hits(hitTimes...))
	s.PushSpill(mkSpill("det", daq.SpillStop, detectorModel()))
}

func TestCorrelationRestartsOnStartSpills(t *testing.T) {
	detStart := func() *daq.Spill { return mkSpill("det", daq.SpillStart, detectorModel()) }
	chopperStart := func() *daq.Spill { return mkSpill("chopper", daq.SpillStart, markerModel()) }

	for name, starts := range map[string][]func() *daq.Spill{
		"detector first": {detStart, chopperStart},
		"chopper first":  {chopperStart, detStart},
	} {
		t.Run(name, func(t *testing.T) {
			log := &recordingLogger{}
			s := newCorrelated(t, "TOF1DCorrelate", nil, log)

			correlatedRun(s, []uint64{1000, 2000, 3000}, []uint64{1500, 2500, 3500})
			require.Equal(t, 2.0, s.Data().TotalCount())

			// The clocks restart with the second run.
			for _, start := range starts {
				s.PushSpill(start())
			}
			correlatedRun(s, []uint64{100, 200, 300}, []uint64{150, 250, 350})
			s.Flush()

			assert.Empty(t, log.warnings)
			assert.Equal(t, 2.0, get(s, 500))
			assert.Equal(t, 2.0, get(s, 50))
			assert.Equal(t, 4.0, s.Data().TotalCount())
		})
	}
}

func TestCorrelationRebasesAfterRegression(t *testing.T) {
	log := &recordingLogger{}
	s := newCorrelated(t, "TOF1DCorrelate", nil, log)

	correlatedRun(s, []uint64{1000, 2000, 3000}, []uint64{1500, 2500, 3500})
	correlatedRun(s, []uint64{100, 200, 300}, []uint64{150, 250, 350})

	// The first marker and the first hit of the second run are skipped.
	require.Len(t, log.warnings, 2)
	assert.Contains(t, log.warnings[0], `stream "chopper": timestamp 100 precedes 3000`)
	assert.Contains(t, log.warnings[1], `stream "det": timestamp 150 precedes 3500`)
	assert.Equal(t, 2.0, get(s, 500))
	assert.Equal(t, 1.0, get(s, 50))
	assert.Equal(t, 3.0, s.Data().TotalCount())
}

func TestCorrelationMarkerBufferBound(t *testing.T) {
	log := &recordingLogger{}
	s := newCorrelated(t, "TOF1DCorrelate", attrs.Set{"max_buffered_markers": 10}, log)
	s.PushSpill(hits(5))

	ts := uint64(100)
	for i := 0; i < 20; i++ {
		times := make([]uint64, 8)
		for j := range times {
			times[j] = ts
			ts += 100
		}
		s.PushSpill(markers(times...))
	}

	c := s.kind.(*correlate)
	assert.LessOrEqual(t, c.chopper.Len(), 10)
	assert.Zero(t, c.events.Len())
	require.NotEmpty(t, log.warnings)
	assert.Contains(t, log.warnings[len(log.warnings)-1], "oldest markers")

	v, ok := s.GetAttribute("max_buffered_markers")
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestTOFVal2DCorrelate(t *testing.T) {
	s := newCorrelated(t, "TOFVal2DCorrelate", attrs.Set{"value.value": "energy"}, nil)
	s.PushSpill(markers(100, 200))
	s.PushSpill(hits(150, 210))
	assert.Equal(t, 1.0, get(s, 50, 7))
	assert.Equal(t, []string{"", "energy"}, s.ValueNames())
}

func TestTOFVal3DCorrelate(t *testing.T) {
	s := newCorrelated(t, "TOFVal3DCorrelate", attrs.Set{"x.value": "x", "y.value": "y"}, nil)
	s.PushSpill(markers(100, 200))
	s.PushSpill(mkSpill("det", daq.SpillRunning, detectorModel(), at(120, 1, 3, 4), at(220, 1, 3, 4)))
	assert.Equal(t, 1.0, get(s, 20, 3, 4))
}

func TestCorrelationCloneCopiesBuffers(t *testing.T) {
	s := newCorrelated(t, "TOF1DCorrelate", nil, nil)
	s.PushSpill(markers(100, 200))
	s.PushSpill(hits(150))

	c := s.Clone()
	c.Flush()
	assert.Equal(t, 1.0, c.Data().TotalCount())
	assert.Zero(t, s.Data().TotalCount())
}

func TestDeque(t *testing.T) {
	var q deque[int]
	for i := 0; i < 200; i++ {
		q.Push(i)
	}
	for i := 0; i < 150; i++ {
		require.Equal(t, i, q.PopFront())
	}
	assert.Equal(t, 50, q.Len())
	assert.Equal(t, 150, q.Front())
	assert.Equal(t, 151, q.At(1))
	assert.Equal(t, 199, q.Back())
	q.Clear()
	assert.Zero(t, q.Len())
}
