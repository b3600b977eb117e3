package calibration

import "math"

// Polynomial is y = sum c[d] * (x - xoffset)^d.
type Polynomial struct {
	coefs
}

func NewPolynomial(coefficients ...float64) *Polynomial {
	p := &Polynomial{coefs: newCoefs()}
	for d, v := range coefficients {
		p.SetCoeff(d, v)
	}
	return p
}

func (p *Polynomial) Type() string { return "Polynomial" }

func (p *Polynomial) Eval(x float64) float64  { return p.poly(x) }
func (p *Polynomial) Slope(x float64) float64 { return p.polySlope(x) }

func (p *Polynomial) Inverse(y float64, tolerance float64) float64 {
	return Invert(p, y, tolerance)
}

// Derivative scales every coefficient by its degree and shifts it down one
// degree. The x offset is not carried over, so the result only matches the
// true derivative when XOffset() is zero.
func (p *Polynomial) Derivative() *Polynomial {
	n := NewPolynomial()
	for d, v := range p.terms {
		if d == 0 {
			continue
		}
		n.SetCoeff(d-1, float64(d)*v)
	}
	return n
}

func (p *Polynomial) Clone() CoefFunction {
	return &Polynomial{coefs: p.clone()}
}

func (p *Polynomial) String() string { return p.format("poly") }

// SqrtPoly is y = sqrt(sum c[d] * (x - xoffset)^d), used for detectors whose
// resolution scales with the square root of energy.
type SqrtPoly struct {
	coefs
}

func NewSqrtPoly(coefficients ...float64) *SqrtPoly {
	p := &SqrtPoly{coefs: newCoefs()}
	for d, v := range coefficients {
		p.SetCoeff(d, v)
	}
	return p
}

func (p *SqrtPoly) Type() string { return "SqrtPoly" }

func (p *SqrtPoly) Eval(x float64) float64 {
	return math.Sqrt(p.poly(x))
}

func (p *SqrtPoly) Slope(x float64) float64 {
	return p.polySlope(x) / (2 * math.Sqrt(p.poly(x)))
}

func (p *SqrtPoly) Inverse(y float64, tolerance float64) float64 {
	return Invert(p, y, tolerance)
}

func (p *SqrtPoly) Clone() CoefFunction {
	return &SqrtPoly{coefs: p.clone()}
}

func (p *SqrtPoly) String() string { return p.format("sqrt") }
