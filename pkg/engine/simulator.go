package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/next-exp/spectra_go/pkg/daq"
)

// SimulatorConfig shapes the synthetic streams. Times are in native ticks of
// Timebase.
type SimulatorConfig struct {
	Stream         string
	ChopperStream  string
	Spills         int
	EventsPerSpill int
	// SpillLength is the stream time covered by one spill.
	SpillLength uint64
	// ChopperPeriod is the distance between chopper markers; zero disables
	// the chopper stream.
	ChopperPeriod uint64
	// Interval is the wall time between spills; zero pushes as fast as the
	// queue allows.
	Interval  time.Duration
	Timebase  daq.TimeBase
	Seed      int64
	MaxEnergy uint32
	Pixels    uint32
}

func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Stream:         "detector",
		ChopperStream:  "chopper",
		Spills:         10,
		EventsPerSpill: 1000,
		SpillLength:    100_000_000,
		ChopperPeriod:  10_000_000,
		Timebase:       daq.MustTimeBase(1, 1),
		Seed:           1,
		MaxEnergy:      4095,
		Pixels:         64,
	}
}

// Simulator produces a detector stream (energy, x, y) with a Gaussian
// photopeak on a flat background, and optionally a chopper stream whose
// events are bare markers.
type Simulator struct {
	cfg SimulatorConfig
	rng *rand.Rand
	log daq.Logger
}

func NewSimulator(cfg SimulatorConfig, log daq.Logger) *Simulator {
	if !cfg.Timebase.Valid() {
		cfg.Timebase = daq.MustTimeBase(1, 1)
	}
	if cfg.MaxEnergy == 0 {
		cfg.MaxEnergy = 4095
	}
	if cfg.Pixels == 0 {
		cfg.Pixels = 64
	}
	return &Simulator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed)), log: daq.OrNop(log)}
}

// DetectorModel is the event model of the simulated detector stream.
func (s *Simulator) DetectorModel() daq.EventModel {
	m := daq.NewEventModel(s.cfg.Timebase)
	m.AddValue("energy", s.cfg.MaxEnergy)
	m.AddValue("x", s.cfg.Pixels-1)
	m.AddValue("y", s.cfg.Pixels-1)
	return m
}

func (s *Simulator) chopperModel() daq.EventModel {
	return daq.NewEventModel(s.cfg.Timebase)
}

func (s *Simulator) chopperEnabled() bool {
	return s.cfg.ChopperPeriod > 0 && s.cfg.ChopperStream != ""
}

func (s *Simulator) Run(ctx context.Context, q *SpillQueue) error {
	detector := s.DetectorModel()
	chopper := s.chopperModel()
	var now uint64
	var nextMarker uint64

	if err := q.Push(ctx, s.spill(s.cfg.Stream, daq.SpillStart, detector, now)); err != nil {
		return err
	}
	if s.chopperEnabled() {
		if err := q.Push(ctx, s.spill(s.cfg.ChopperStream, daq.SpillStart, chopper, now)); err != nil {
			return err
		}
	}

	for i := 0; i < s.cfg.Spills; i++ {
		end := now + s.cfg.SpillLength
		if s.chopperEnabled() {
			markers := s.spill(s.cfg.ChopperStream, daq.SpillRunning, chopper, end)
			for ; nextMarker <= end; nextMarker += s.cfg.ChopperPeriod {
				markers.AddEvent(nextMarker)
			}
			if err := q.Push(ctx, markers); err != nil {
				return err
			}
		}
		events := s.spill(s.cfg.Stream, daq.SpillRunning, detector, end)
		s.fill(events, now, end)
		if err := q.Push(ctx, events); err != nil {
			return err
		}
		now = end

		if s.cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.Interval):
			}
		}
	}

	if err := q.Push(ctx, s.spill(s.cfg.Stream, daq.SpillStop, detector, now)); err != nil {
		return err
	}
	if s.chopperEnabled() {
		if err := q.Push(ctx, s.spill(s.cfg.ChopperStream, daq.SpillStop, chopper, now)); err != nil {
			return err
		}
	}
	s.log.Info(fmt.Sprintf("simulator finished after %d spills", s.cfg.Spills), "simulator")
	return nil
}

func (s *Simulator) spill(stream string, t daq.SpillType, model daq.EventModel, native uint64) *daq.Spill {
	sp := daq.NewSpill(stream, t)
	sp.EventModel = model.Clone()
	sp.SetStat(daq.StatNativeTime, float64(native))
	sp.SetStat(daq.StatLiveTime, 0.95*float64(native))
	return sp
}

// fill adds sorted events spread over [from, to).
func (s *Simulator) fill(sp *daq.Spill, from uint64, to uint64) {
	n := s.cfg.EventsPerSpill
	if n <= 0 || to <= from {
		return
	}
	step := (to - from) / uint64(n)
	if step == 0 {
		step = 1
	}
	peak := float64(s.cfg.MaxEnergy) * 0.4
	width := float64(s.cfg.MaxEnergy) * 0.02
	center := float64(s.cfg.Pixels) / 2
	for i := 0; i < n; i++ {
		ts := from + uint64(i)*step + uint64(s.rng.Int63n(int64(step)))
		var energy float64
		if s.rng.Float64() < 0.7 {
			energy = peak + width*s.rng.NormFloat64()
		} else {
			energy = s.rng.Float64() * float64(s.cfg.MaxEnergy)
		}
		x := center + center/4*s.rng.NormFloat64()
		y := center + center/4*s.rng.NormFloat64()
		sp.AddEvent(ts, clamp(energy, s.cfg.MaxEnergy), clamp(x, s.cfg.Pixels-1), clamp(y, s.cfg.Pixels-1))
	}
}

func clamp(v float64, limit uint32) uint32 {
	if v < 0 {
		return 0
	}
	if v > float64(limit) {
		return limit
	}
	return uint32(v)
}
