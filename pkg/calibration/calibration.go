package calibration

import (
	"fmt"
	"math"
	"time"

	"github.com/next-exp/spectra_go/pkg/daq"
	"github.com/next-exp/spectra_go/pkg/persist"
)

// Calibration converts values in From units to To units with a coefficient
// function. Without a function it is the identity.
type Calibration struct {
	From     string
	To       string
	Function CoefFunction
	Created  time.Time
}

func New(from string, to string, f CoefFunction) Calibration {
	return Calibration{From: from, To: to, Function: f, Created: time.Now()}
}

func (c Calibration) Valid() bool {
	return c.Function != nil
}

func (c Calibration) Transform(x float64) float64 {
	if c.Function == nil {
		return x
	}
	return c.Function.Eval(x)
}

func (c Calibration) TransformAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = c.Transform(x)
	}
	return out
}

// Inverse maps y back to the From units. The result is NaN when the
// function cannot be inverted near y; callers must check math.IsNaN.
func (c Calibration) Inverse(y float64, tolerance float64) float64 {
	if c.Function == nil {
		return y
	}
	return c.Function.Inverse(y, tolerance)
}

// Units is the label of transformed values.
func (c Calibration) Units() string {
	if c.Valid() && c.To != "" {
		return c.To
	}
	return c.From
}

func (c Calibration) Clone() Calibration {
	n := c
	if c.Function != nil {
		n.Function = c.Function.Clone()
	}
	return n
}

func (c Calibration) Equal(o Calibration) bool {
	if c.From != o.From || c.To != o.To || c.Valid() != o.Valid() {
		return false
	}
	if !c.Valid() {
		return true
	}
	if c.Function.Type() != o.Function.Type() || c.Function.XOffset() != o.Function.XOffset() {
		return false
	}
	da, db := c.Function.Degrees(), o.Function.Degrees()
	if len(da) != len(db) {
		return false
	}
	for i, d := range da {
		va, _ := c.Function.Coeff(d)
		vb, _ := o.Function.Coeff(db[i])
		if d != db[i] || va != vb {
			return false
		}
	}
	return true
}

func (c Calibration) Debug(prefix string) string {
	fn := "identity"
	if c.Function != nil {
		fn = c.Function.String()
	}
	return fmt.Sprintf("%s%s -> %s: %s\n", prefix, c.From, c.To, fn)
}

// Save writes c as structured key/values: from, to, function, xoffset,
// created, plus the degrees and coefficients datasets.
func (c Calibration) Save(g persist.Group) error {
	if err := g.WriteString("from", c.From); err != nil {
		return err
	}
	if err := g.WriteString("to", c.To); err != nil {
		return err
	}
	if !c.Created.IsZero() {
		if err := g.WriteString("created", c.Created.Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	if c.Function == nil {
		return g.WriteString("function", "")
	}
	if err := g.WriteString("function", c.Function.Type()); err != nil {
		return err
	}
	if err := g.WriteFloat("xoffset", c.Function.XOffset()); err != nil {
		return err
	}
	degrees := c.Function.Degrees()
	ds := make([]float64, len(degrees))
	vs := make([]float64, len(degrees))
	for i, d := range degrees {
		ds[i] = float64(d)
		vs[i], _ = c.Function.Coeff(d)
	}
	if err := g.WriteDataset("degrees", ds); err != nil {
		return err
	}
	return g.WriteDataset("coefficients", vs)
}

// Load reads a calibration written by Save, instantiating its function
// through reg.
func Load(g persist.Group, reg *Registry) (Calibration, error) {
	var c Calibration
	var err error
	if c.From, err = g.ReadString("from"); err != nil {
		return c, wrapLoad(g, err)
	}
	if c.To, err = g.ReadString("to"); err != nil {
		return c, wrapLoad(g, err)
	}
	if created, err := g.ReadString("created"); err == nil {
		c.Created, _ = time.Parse(time.RFC3339Nano, created)
	}
	typ, err := g.ReadString("function")
	if err != nil {
		return c, wrapLoad(g, err)
	}
	if typ == "" {
		return c, nil
	}
	fn, err := reg.Create(typ)
	if err != nil {
		return c, wrapLoad(g, err)
	}
	xoffset, err := g.ReadFloat("xoffset")
	if err != nil {
		return c, wrapLoad(g, err)
	}
	fn.SetXOffset(xoffset)
	ds, err := g.ReadDataset("degrees")
	if err != nil {
		return c, wrapLoad(g, err)
	}
	vs, err := g.ReadDataset("coefficients")
	if err != nil {
		return c, wrapLoad(g, err)
	}
	if len(ds) != len(vs) {
		return c, wrapLoad(g, fmt.Errorf("%d degrees for %d coefficients", len(ds), len(vs)))
	}
	for i := range ds {
		if ds[i] != math.Trunc(ds[i]) {
			return c, wrapLoad(g, fmt.Errorf("non-integer degree %g", ds[i]))
		}
		fn.SetCoeff(int(ds[i]), vs[i])
	}
	c.Function = fn
	return c, nil
}

func wrapLoad(g persist.Group, err error) error {
	return &daq.ErrPersistence{Op: "loading calibration", Name: g.Name(), Err: err}
}
