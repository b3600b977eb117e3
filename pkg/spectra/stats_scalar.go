package spectra

import (
	"github.com/next-exp/spectra_go/pkg/attrs"
	"github.com/next-exp/spectra_go/pkg/daq"
	"github.com/next-exp/spectra_go/pkg/dataspace"
)

// statsScalar tracks one spill statistic. In diff mode it records the
// change since the previous spill instead of the cumulative value; the
// previous value restarts at zero with every start spill.
type statsScalar struct {
	stat    string
	diff    bool
	prev    float64
	sampled bool
}

func newStatsScalar() binner {
	return &statsScalar{stat: daq.StatNativeTime}
}

func (t *statsScalar) newDataspace() dataspace.Dataspace { return dataspace.NewScalar() }
func (t *statsScalar) configureAxes(dataspace.Dataspace) {}

func (t *statsScalar) attributes() attrs.Set {
	return attrs.Set{"stat": t.stat, "diff": t.diff}
}

func (t *statsScalar) apply(set attrs.Set) error {
	stat, err := set.String("stat", t.stat)
	if err != nil {
		return err
	}
	diff, err := set.Bool("diff", t.diff)
	if err != nil {
		return err
	}
	t.stat, t.diff = stat, diff
	return nil
}

func (t *statsScalar) valueNames() []string { return nil }

func (t *statsScalar) acceptSpill(*Spectrum, *daq.Spill) bool  { return true }
func (t *statsScalar) acceptEvents(*Spectrum, *daq.Spill) bool { return false }
func (t *statsScalar) pushEvent(*Spectrum, *daq.Event)         {}

func (t *statsScalar) statsPre(_ *Spectrum, spill *daq.Spill) {
	if spill.Type == daq.SpillStart {
		t.prev = 0
	}
}

func (t *statsScalar) statsPost(s *Spectrum, spill *daq.Spill) {
	v, ok := spill.Stat(t.stat)
	if !ok {
		return
	}
	if t.diff {
		v, t.prev = v-t.prev, v
	}
	s.binValue(nil, v)
	t.sampled = true
}

// flush closes a diff series with a zero entry.
func (t *statsScalar) flush(s *Spectrum) {
	if t.diff && t.sampled {
		s.binValue(nil, 0)
	}
}

func (t *statsScalar) cleared(*Spectrum) { t.sampled = false }

func (t *statsScalar) clone() binner {
	c := *t
	return &c
}
