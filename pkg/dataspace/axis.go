package dataspace

import (
	"fmt"
	"math"
	"sort"

	"github.com/next-exp/spectra_go/pkg/calibration"
	"github.com/next-exp/spectra_go/pkg/persist"
)

// Axis maps the bins of one dimension to physical values. The domain is
// either derived from the calibration (bin i -> Transform(i << ResampleShift))
// and recomputed on demand, or explicit and maintained by the owner, as the
// time axes of time-binned spectra are.
type Axis struct {
	Calibration   calibration.Calibration
	Domain        []float64
	ResampleShift int
	explicit      bool
}

func NewAxis(cal calibration.Calibration, resampleShift int) Axis {
	return Axis{Calibration: cal, ResampleShift: resampleShift}
}

// NewExplicitAxis creates an axis whose domain is appended to by its owner
// and never recomputed from the calibration.
func NewExplicitAxis(cal calibration.Calibration) Axis {
	return Axis{Calibration: cal, explicit: true}
}

func (a *Axis) Explicit() bool { return a.explicit }

// Expand recomputes a derived domain for size bins. Explicit domains are
// left untouched.
func (a *Axis) Expand(size int) {
	if a.explicit {
		return
	}
	if size < 0 {
		size = 0
	}
	if cap(a.Domain) >= size {
		a.Domain = a.Domain[:size]
	} else {
		a.Domain = make([]float64, size)
	}
	for i := range a.Domain {
		a.Domain[i] = a.Calibration.Transform(float64(uint64(i) << uint(a.ResampleShift)))
	}
}

// Append extends an explicit domain.
func (a *Axis) Append(values ...float64) {
	a.Domain = append(a.Domain, values...)
}

// DropFront removes the first n domain entries.
func (a *Axis) DropFront(n int) {
	if n <= 0 {
		return
	}
	if n >= len(a.Domain) {
		a.Domain = a.Domain[:0]
		return
	}
	a.Domain = append(a.Domain[:0], a.Domain[n:]...)
}

func (a Axis) Bounds() (float64, float64) {
	if len(a.Domain) == 0 {
		return 0, 0
	}
	lo, hi := a.Domain[0], a.Domain[0]
	for _, v := range a.Domain {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func (a Axis) Label() string {
	if u := a.Calibration.Units(); u != "" {
		return u
	}
	return "bin"
}

// FindIndex returns the bin whose domain value is closest to v, assuming a
// non-decreasing domain, or -1 for an empty domain.
func (a Axis) FindIndex(v float64) int {
	n := len(a.Domain)
	if n == 0 {
		return -1
	}
	i := sort.SearchFloat64s(a.Domain, v)
	if i == 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	if v-a.Domain[i-1] <= a.Domain[i]-v {
		return i - 1
	}
	return i
}

func (a Axis) Clone() Axis {
	n := a
	n.Calibration = a.Calibration.Clone()
	n.Domain = append([]float64(nil), a.Domain...)
	return n
}

func (a Axis) Equal(o Axis) bool {
	if a.ResampleShift != o.ResampleShift || a.explicit != o.explicit ||
		len(a.Domain) != len(o.Domain) || !a.Calibration.Equal(o.Calibration) {
		return false
	}
	for i := range a.Domain {
		if a.Domain[i] != o.Domain[i] {
			return false
		}
	}
	return true
}

func (a Axis) Debug(prefix string) string {
	lo, hi := a.Bounds()
	s := fmt.Sprintf("%saxis [%g, %g] %s bins=%d shift=%d", prefix, lo, hi, a.Label(), len(a.Domain), a.ResampleShift)
	if a.explicit {
		s += " explicit"
	}
	return s + "\n" + a.Calibration.Debug(prefix+"  ")
}

func (a Axis) save(g persist.Group) error {
	if err := g.WriteFloat("resample_shift", float64(a.ResampleShift)); err != nil {
		return err
	}
	explicit := 0.0
	if a.explicit {
		explicit = 1
	}
	if err := g.WriteFloat("explicit", explicit); err != nil {
		return err
	}
	if err := g.WriteDataset("domain", a.Domain); err != nil {
		return err
	}
	cg, err := g.CreateGroup("calibration")
	if err != nil {
		return err
	}
	defer cg.Close()
	return a.Calibration.Save(cg)
}

func loadAxis(g persist.Group, reg *calibration.Registry) (Axis, error) {
	var a Axis
	shift, err := persist.ReadInt(g, "resample_shift")
	if err != nil {
		return a, err
	}
	a.ResampleShift = shift
	explicit, err := g.ReadFloat("explicit")
	if err != nil {
		return a, err
	}
	a.explicit = explicit != 0
	if a.Domain, err = g.ReadDataset("domain"); err != nil {
		return a, err
	}
	cg, err := g.OpenGroup("calibration")
	if err != nil {
		return a, err
	}
	defer cg.Close()
	a.Calibration, err = calibration.Load(cg, reg)
	return a, err
}
