package spectra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/calibration"
	"github.com/next-exp/spectra_go/pkg/daq"
	"github.com/next-exp/spectra_go/pkg/dataspace"
	"github.com/next-exp/spectra_go/pkg/persist"
)

func energyHistogram(t *testing.T, extra attrs.Set) *Spectrum {
	set := attrs.Set{"name": "energy", "stream_id": "det", "value.value": "energy"}
	set.Merge(extra)
	return newTestSpectrum(t, "Histogram1D", set, nil)
}

func TestHistogram1DEndToEnd(t *testing.T) {
	s := energyHistogram(t, nil)
	m := detectorModel()

	s.PushSpill(mkSpill("det", daq.SpillStart, m))
	s.PushSpill(mkSpill("det", daq.SpillRunning, m, at(10, 5), at(20, 5), at(30, 9)))
	s.PushSpill(mkSpill("det", daq.SpillStop, m))

	assert.Equal(t, 2.0, get(s, 5))
	assert.Equal(t, 1.0, get(s, 9))
	assert.Equal(t, 3.0, s.Data().TotalCount())

	v, ok := s.GetAttribute("total_count")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
	assert.Equal(t, []string{"energy"}, s.ValueNames())
	assert.True(t, s.Changed())
	s.ResetChanged()
	assert.False(t, s.Changed())
}

func TestSpectrumIgnoresOtherStreamsAndStatusSpills(t *testing.T) {
	s := energyHistogram(t, nil)
	m := detectorModel()
	s.PushSpill(mkSpill("det", daq.SpillStart, m))

	s.PushSpill(mkSpill("other", daq.SpillRunning, m, at(1, 5)))
	s.PushSpill(mkSpill("det", daq.SpillStatus, m, at(2, 5)))
	assert.Zero(t, s.Data().TotalCount())

	s.PushSpill(mkSpill("det", daq.SpillRunning, m, at(3, 5)))
	assert.Equal(t, 1.0, s.Data().TotalCount())
}

func TestSpectrumRejectsModelWithoutItsValue(t *testing.T) {
	s := energyHistogram(t, nil)
	m := daq.NewEventModel(daq.DefaultTimeBase)
	m.AddValue("charge", 100)

	s.PushSpill(mkSpill("det", daq.SpillStart, m))
	s.PushSpill(mkSpill("det", daq.SpillRunning, m, at(1, 5)))
	assert.Zero(t, s.Data().TotalCount())
}

func TestEventsWaitForStartSpill(t *testing.T) {
	s := energyHistogram(t, nil)
	// Running spills also carry the model, so the latch resolves there.
	s.PushSpill(mkSpill("det", daq.SpillRunning, detectorModel(), at(1, 4)))
	assert.Equal(t, 1.0, get(s, 4))
}

func TestFiltersGateEvents(t *testing.T) {
	s := energyHistogram(t, attrs.Set{
		"filter.0.value": "x", "filter.0.min": 0, "filter.0.max": 10, "filter.0.enabled": true,
		"filter.1.value": "y", "filter.1.min": 5, "filter.1.max": 15, "filter.1.enabled": true,
	})
	m := detectorModel()
	s.PushSpill(mkSpill("det", daq.SpillStart, m))
	s.PushSpill(mkSpill("det", daq.SpillRunning, m,
		at(1, 7, 8, 8),
		at(2, 7, 12, 8),
		at(3, 7, 8, 2),
	))
	assert.Equal(t, 1.0, get(s, 7))
}

func TestLiveAndRealTime(t *testing.T) {
	s := energyHistogram(t, nil)
	m := detectorModel()

	start := mkSpill("det", daq.SpillStart, m)
	start.SetStat(daq.StatNativeTime, 0)
	start.SetStat(daq.StatLiveTime, 0)
	run := mkSpill("det", daq.SpillRunning, m, at(1, 1), at(2, 1))
	run.SetStat(daq.StatNativeTime, 2e9)
	run.SetStat(daq.StatLiveTime, 1.5e9)

	s.PushSpill(start)
	s.PushSpill(run)

	set := s.Attributes()
	assert.Equal(t, (2 * time.Second).String(), set["real_time"])
	assert.Equal(t, (1500 * time.Millisecond).String(), set["live_time"])
	assert.InDelta(t, 1.0, set["recent_rate"], 1e-9)
	assert.Equal(t, start.Time.Format(time.RFC3339Nano), set["start_time"])
}

func TestNegativeElapsedTimeIsReported(t *testing.T) {
	log := &recordingLogger{}
	s := newTestSpectrum(t, "Histogram1D", attrs.Set{"value.value": "energy"}, log)
	m := detectorModel()

	a := mkSpill("det", daq.SpillRunning, m)
	a.SetStat(daq.StatNativeTime, 5e9)
	b := mkSpill("det", daq.SpillRunning, m)
	b.SetStat(daq.StatNativeTime, 1e9)
	s.PushSpill(a)
	s.PushSpill(b)

	assert.Len(t, log.warnings, 1)
	v, _ := s.GetAttribute("real_time")
	assert.Equal(t, "0s", v)
}

func TestPeriodicClearEmptiesData(t *testing.T) {
	s := energyHistogram(t, attrs.Set{"clear.enabled": true, "clear.timeout": "1s"})
	m := detectorModel()

	start := mkSpill("det", daq.SpillStart, m, at(1, 5))
	start.SetStat(daq.StatNativeTime, 0)
	run := mkSpill("det", daq.SpillRunning, m, at(2, 5))
	run.SetStat(daq.StatNativeTime, 2e9)
	next := mkSpill("det", daq.SpillRunning, m)
	next.SetStat(daq.StatNativeTime, 2.1e9)

	s.PushSpill(start)
	s.PushSpill(run)
	assert.Equal(t, 2.0, s.Data().TotalCount())

	s.PushSpill(next)
	assert.Zero(t, s.Data().TotalCount())
}

func TestApplyAttributesErrorNamesType(t *testing.T) {
	s := energyHistogram(t, nil)
	err := s.ApplyAttributes(attrs.Set{"value.downsample": 99, "name": "changed"})
	require.Error(t, err)

	var applyErr *daq.ErrApplyAttributes
	require.True(t, errors.As(err, &applyErr))
	assert.Equal(t, "Histogram1D", applyErr.Type)
	assert.Equal(t, daq.KindConfiguration, daq.KindOf(err))
	assert.Equal(t, "energy", s.Name(), "failed apply leaves the spectrum untouched")
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()
	assert.Contains(t, reg.Types(), "TOF1DCorrelate")
	assert.Len(t, reg.Types(), 12)

	_, err := reg.Create("Histogram9D", Options{})
	var unknown *daq.ErrUnknownType
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Histogram9D", unknown.Name)

	for _, typ := range reg.Types() {
		s, err := reg.Create(typ, Options{})
		require.NoError(t, err, typ)
		assert.NotEmpty(t, s.ID())
		assert.Equal(t, typ, s.Type())
		assert.True(t, s.Data().Empty(), typ)
	}
}

func TestSetCalibration(t *testing.T) {
	s := energyHistogram(t, nil)
	m := detectorModel()
	s.PushSpill(mkSpill("det", daq.SpillRunning, m, at(1, 5)))

	s.SetCalibration(0, calibration.New("channel", "keV", calibration.NewPolynomial(1, 2)))
	a := s.Data().Axis(0)
	require.Len(t, a.Domain, 6)
	assert.InDelta(t, 11.0, a.Domain[5], 1e-12)
	assert.Equal(t, "keV", a.Label())
}

func TestCloneIsIndependent(t *testing.T) {
	s := energyHistogram(t, nil)
	m := detectorModel()
	s.PushSpill(mkSpill("det", daq.SpillRunning, m, at(1, 5)))

	c := s.Clone()
	c.PushSpill(mkSpill("det", daq.SpillRunning, m, at(2, 5)))
	assert.Equal(t, 1.0, get(s, 5))
	assert.Equal(t, 2.0, get(c, 5))
	assert.Equal(t, s.ID(), c.ID())
}

func TestSpectrumSaveLoad(t *testing.T) {
	s := energyHistogram(t, attrs.Set{"clear.timeout": "30s"})
	m := detectorModel()
	s.PushSpill(mkSpill("det", daq.SpillStart, m))
	s.PushSpill(mkSpill("det", daq.SpillRunning, m, at(1, 5), at(2, 5), at(3, 9)))
	s.SetCalibration(0, calibration.New("channel", "keV", calibration.NewPolynomial(0, 0.5)))

	root := persist.NewMemGroup("/")
	g, err := root.CreateGroup("spectrum0")
	require.NoError(t, err)
	require.NoError(t, s.Save(g))

	loaded, err := Load(g, DefaultRegistry(), Options{})
	require.NoError(t, err)
	assert.Equal(t, s.ID(), loaded.ID())
	assert.Equal(t, "energy", loaded.Name())
	assert.True(t, dataspace.Equal(s.Data(), loaded.Data()))
	assert.False(t, loaded.Changed())

	v, _ := loaded.GetAttribute("clear.timeout")
	assert.Equal(t, "30s", v)
	v, _ = loaded.GetAttribute("value.value")
	assert.Equal(t, "energy", v)
	v, _ = loaded.GetAttribute("start_time")
	assert.Equal(t, s.Attributes()["start_time"], v)
}

func TestLoadUnknownTypeFails(t *testing.T) {
	g := persist.NewMemGroup("bad")
	require.NoError(t, g.WriteString("type", "Nope"))
	_, err := Load(g, DefaultRegistry(), Options{})
	require.Error(t, err)
	assert.Equal(t, daq.KindPersistence, daq.KindOf(err))
}

func TestStatsScalarDiff(t *testing.T) {
	s := newTestSpectrum(t, "StatsScalar", attrs.Set{"stat": daq.StatLiveTime, "diff": true}, nil)
	m := detectorModel()
	for _, v := range []float64{10, 25, 45} {
		sp := mkSpill("det", daq.SpillRunning, m)
		sp.SetStat(daq.StatLiveTime, v)
		s.PushSpill(sp)
	}
	sc := s.Data().(*dataspace.Scalar)
	assert.Equal(t, 20.0, sc.Value())
	assert.Equal(t, 10.0, sc.Min())
	assert.Equal(t, 20.0, sc.Max())

	s.Flush()
	sc = s.Data().(*dataspace.Scalar)
	assert.Zero(t, sc.Value())
	assert.Equal(t, 4.0, sc.TotalCount())
}

func TestStatsScalarCumulative(t *testing.T) {
	s := newTestSpectrum(t, "StatsScalar", attrs.Set{"stat": daq.StatLiveTime}, nil)
	sp := mkSpill("det", daq.SpillRunning, detectorModel(), at(1, 1))
	sp.SetStat(daq.StatLiveTime, 42)
	s.PushSpill(sp)
	sc := s.Data().(*dataspace.Scalar)
	assert.Equal(t, 42.0, sc.Value())
}
