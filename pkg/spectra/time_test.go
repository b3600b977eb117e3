package spectra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/daq"
)

func TestTimeDomainAxisGrowsMonotonically(t *testing.T) {
	s := newTestSpectrum(t, "TimeDomain", attrs.Set{"time.resolution": 10}, nil)
	m := detectorModel()

	var lengths []int
	for _, sp := range []*daq.Spill{
		mkSpill("det", daq.SpillStart, m, at(0, 1)),
		mkSpill("det", daq.SpillRunning, m, at(35, 1)),
		mkSpill("det", daq.SpillRunning, m, at(120, 1), at(121, 1)),
	} {
		s.PushSpill(sp)
		lengths = append(lengths, len(s.Data().Axis(0).Domain))
	}
	assert.Equal(t, []int{1, 4, 13}, lengths)

	domain := s.Data().Axis(0).Domain
	for i := 1; i < len(domain); i++ {
		assert.LessOrEqual(t, domain[i-1], domain[i])
	}
	assert.Equal(t, 120.0, domain[12])
	assert.Equal(t, 2.0, get(s, 12))
	assert.Equal(t, "ns", s.Data().Axis(0).Label())
}

func TestTimeDomainSlidingWindow(t *testing.T) {
	s := newTestSpectrum(t, "TimeDomain", attrs.Set{"window": 5}, nil)
	var events []ev
	for ts := uint64(0); ts < 10; ts++ {
		events = append(events, at(ts))
	}
	s.PushSpill(mkSpill("det", daq.SpillRunning, detectorModel(), events...))

	d := s.Data()
	assert.Equal(t, 5.0, d.TotalCount())
	require.Len(t, d.Axis(0).Domain, 5)
	assert.Equal(t, 5.0, d.Axis(0).Domain[0])
	assert.Equal(t, 9.0, d.Axis(0).Domain[4])

	// Events older than the window are no longer binned.
	s.PushSpill(mkSpill("det", daq.SpillRunning, detectorModel(), at(12)))
	d = s.Data()
	assert.Equal(t, 3.0, d.TotalCount())
	assert.Equal(t, 8.0, d.Axis(0).Domain[0])
}

func TestTimeDomainWindowKeepsBinningLongRuns(t *testing.T) {
	log := &recordingLogger{}
	s := newTestSpectrum(t, "TimeDomain", attrs.Set{"time.units": "us", "window": 1000}, log)
	m := detectorModel()

	s.PushSpill(mkSpill("det", daq.SpillStart, m, at(0)))
	s.PushSpill(mkSpill("det", daq.SpillRunning, m, at(10e9)))
	assert.Equal(t, 1.0, s.Data().TotalCount())
	s.PushSpill(mkSpill("det", daq.SpillRunning, m, at(20e9), at(20e9+500)))

	d := s.Data()
	assert.Empty(t, log.warnings)
	assert.Equal(t, 2.0, d.TotalCount())
	assert.LessOrEqual(t, len(d.Axis(0).Domain), 1000)
	assert.Equal(t, 2e7, d.Axis(0).Domain[len(d.Axis(0).Domain)-1])
}

func TestTimeDomainWarnsPastAxisLimit(t *testing.T) {
	log := &recordingLogger{}
	s := newTestSpectrum(t, "TimeDomain", nil, log)
	s.PushSpill(mkSpill("det", daq.SpillRunning, detectorModel(), at(0), at(1<<25)))

	require.Len(t, log.warnings, 1)
	assert.Contains(t, log.warnings[0], "out of range")
	assert.Equal(t, 1.0, s.Data().TotalCount())
}

func TestTimeRegressionRebasesAndSkips(t *testing.T) {
	log := &recordingLogger{}
	s := newTestSpectrum(t, "TimeDomain", nil, log)
	s.PushSpill(mkSpill("det", daq.SpillRunning, detectorModel(), at(100), at(50), at(60)))

	require.Len(t, log.warnings, 1)
	assert.Contains(t, log.warnings[0], "50")
	assert.Equal(t, 2.0, s.Data().TotalCount())
	assert.Equal(t, 1.0, get(s, 0))
	assert.Equal(t, 1.0, get(s, 10))
}

func TestTimeSpectrum(t *testing.T) {
	s := newTestSpectrum(t, "TimeSpectrum", attrs.Set{"value.value": "energy", "time.resolution": 10}, nil)
	m := detectorModel()
	s.PushSpill(mkSpill("det", daq.SpillStart, m, at(1000, 3)))
	s.PushSpill(mkSpill("det", daq.SpillRunning, m, at(1020, 3), at(1025, 7)))

	assert.Equal(t, 1.0, get(s, 0, 3))
	assert.Equal(t, 1.0, get(s, 2, 3))
	assert.Equal(t, 1.0, get(s, 2, 7))
	assert.Equal(t, []string{"", "energy"}, s.ValueNames())

	// A new start spill restarts the time origin.
	s.PushSpill(mkSpill("det", daq.SpillStart, m, at(5, 3)))
	assert.Equal(t, 2.0, get(s, 0, 3))
}

func TestTimeDelta1D(t *testing.T) {
	s := newTestSpectrum(t, "TimeDelta1D", nil, nil)
	s.PushSpill(mkSpill("det", daq.SpillRunning, detectorModel(), at(0), at(10), at(30), at(40)))

	assert.Equal(t, 2.0, get(s, 10))
	assert.Equal(t, 1.0, get(s, 20))
	assert.Equal(t, 3.0, s.Data().TotalCount())
}

func TestTimeUnits(t *testing.T) {
	s := newTestSpectrum(t, "TimeDelta1D", attrs.Set{"time.units": "us"}, nil)
	s.PushSpill(mkSpill("det", daq.SpillRunning, detectorModel(), at(0), at(2500)))
	assert.Equal(t, 1.0, get(s, 2))
	assert.Equal(t, "us", s.Data().Axis(0).Label())

	err := s.ApplyAttributes(attrs.Set{"time.units": "fortnight"})
	assert.Error(t, err)
	err = s.ApplyAttributes(attrs.Set{"time.resolution": 0})
	assert.Error(t, err)
}

func TestTOF1DUsesPulseTime(t *testing.T) {
	s := newTestSpectrum(t, "TOF1D", nil, nil)
	m := detectorModel()

	sp := mkSpill("det", daq.SpillRunning, m, at(90), at(150), at(160))
	sp.SetStat(daq.StatPulseTime, 100)
	s.PushSpill(sp)
	assert.Equal(t, 1.0, get(s, 50))
	assert.Equal(t, 1.0, get(s, 60))
	assert.Equal(t, 2.0, s.Data().TotalCount())

	// No pulse, no binning.
	s.PushSpill(mkSpill("det", daq.SpillRunning, m, at(170)))
	assert.Equal(t, 2.0, s.Data().TotalCount())
}

func TestTOFVal2D(t *testing.T) {
	s := newTestSpectrum(t, "TOFVal2D", attrs.Set{"value.value": "energy"}, nil)
	tb, err := daq.NewTimeBase(10, 1)
	require.NoError(t, err)
	m := detectorModel()
	m.Timebase = tb

	sp := mkSpill("det", daq.SpillRunning, m, at(15, 4))
	sp.SetStat(daq.StatPulseTime, 10)
	s.PushSpill(sp)
	assert.Equal(t, 1.0, get(s, 50, 4))
}
