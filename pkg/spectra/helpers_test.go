package spectra

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/daq"
	"github.com/next-exp/spectra_go/pkg/dataspace"
)

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Info(string, string)           {}
func (l *recordingLogger) Warn(message string, _ string) { l.warnings = append(l.warnings, message) }
func (l *recordingLogger) Error(string)                  {}

func newTestSpectrum(t *testing.T, typ string, set attrs.Set, log daq.Logger) *Spectrum {
	t.Helper()
	s, err := DefaultRegistry().Create(typ, Options{Logger: log})
	require.NoError(t, err)
	if set != nil {
		require.NoError(t, s.ApplyAttributes(set))
	}
	return s
}

// detectorModel declares energy, x and y in that order.
func detectorModel() daq.EventModel {
	m := daq.NewEventModel(daq.DefaultTimeBase)
	m.AddValue("energy", 1023)
	m.AddValue("x", 63)
	m.AddValue("y", 63)
	return m
}

type ev struct {
	ts     uint64
	values []uint32
}

func at(ts uint64, values ...uint32) ev {
	return ev{ts: ts, values: values}
}

func mkSpill(stream string, typ daq.SpillType, model daq.EventModel, events ...ev) *daq.Spill {
	s := daq.NewSpill(stream, typ)
	s.EventModel = model
	for _, e := range events {
		s.AddEvent(e.ts, e.values...)
	}
	return s
}

func get(s *Spectrum, coords ...int) float64 {
	var v float64
	s.View(func(d dataspace.Dataspace) { v = d.Get(coords) })
	return v
}
