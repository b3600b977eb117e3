package calibration

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/slices"
)

// MaxInverseIterations bounds the Newton-Raphson search in Invert.
const MaxInverseIterations = 100

// CoefFunction maps a raw value x to a physical value y through a set of
// coefficients indexed by degree, evaluated against x - XOffset().
type CoefFunction interface {
	Type() string
	Eval(x float64) float64
	// Slope is dy/dx at x.
	Slope(x float64) float64
	Inverse(y float64, tolerance float64) float64

	Coeff(degree int) (float64, bool)
	SetCoeff(degree int, value float64)
	Degrees() []int
	XOffset() float64
	SetXOffset(x float64)

	Clone() CoefFunction
	String() string
}

// Invert runs Newton-Raphson from x0 = XOffset() for at most
// MaxInverseIterations steps. It returns x1 - XOffset() once two successive
// estimates are within tolerance and NaN when the search does not converge.
func Invert(f CoefFunction, y float64, tolerance float64) float64 {
	x0 := f.XOffset()
	x1 := x0 + (y-f.Eval(x0))/f.Slope(x0)
	for steps := 1; steps < MaxInverseIterations && math.Abs(x1-x0) > tolerance; steps++ {
		x0 = x1
		x1 = x0 + (y-f.Eval(x0))/f.Slope(x0)
	}
	if math.Abs(x1-x0) <= tolerance {
		return x1 - f.XOffset()
	}
	return math.NaN()
}

// coefs is the degree -> coefficient storage shared by the function types.
type coefs struct {
	terms   map[int]float64
	xoffset float64
}

func newCoefs() coefs {
	return coefs{terms: make(map[int]float64)}
}

func (c *coefs) Coeff(degree int) (float64, bool) {
	v, ok := c.terms[degree]
	return v, ok
}

func (c *coefs) SetCoeff(degree int, value float64) {
	if c.terms == nil {
		c.terms = make(map[int]float64)
	}
	c.terms[degree] = value
}

func (c *coefs) Degrees() []int {
	out := make([]int, 0, len(c.terms))
	for d := range c.terms {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

func (c *coefs) XOffset() float64     { return c.xoffset }
func (c *coefs) SetXOffset(x float64) { c.xoffset = x }

func (c *coefs) clone() coefs {
	n := coefs{terms: make(map[int]float64, len(c.terms)), xoffset: c.xoffset}
	for d, v := range c.terms {
		n.terms[d] = v
	}
	return n
}

// poly evaluates sum c[d] * (x - xoffset)^d.
func (c *coefs) poly(x float64) float64 {
	xx := x - c.xoffset
	var y float64
	for d, v := range c.terms {
		y += v * math.Pow(xx, float64(d))
	}
	return y
}

func (c *coefs) polySlope(x float64) float64 {
	xx := x - c.xoffset
	var y float64
	for d, v := range c.terms {
		if d == 0 {
			continue
		}
		y += float64(d) * v * math.Pow(xx, float64(d-1))
	}
	return y
}

func (c *coefs) format(name string) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteString("(")
	for i, d := range c.Degrees() {
		if i > 0 {
			sb.WriteString(" + ")
		}
		fmt.Fprintf(&sb, "%g", c.terms[d])
		switch {
		case d == 1:
			sb.WriteString("x")
		case d > 1:
			fmt.Fprintf(&sb, "x^%d", d)
		}
	}
	sb.WriteString(")")
	if c.xoffset != 0 {
		fmt.Fprintf(&sb, " x=x-%g", c.xoffset)
	}
	return sb.String()
}
