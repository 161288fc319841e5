package ebur128

import "math"

// biquad is a single second-order IIR section in direct form II transposed.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	z1, z2             float64
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	return y
}

// chain is the two-stage K-weighting prefilter from ITU-R BS.1770-4: a
// high-shelf modelling the acoustic effect of the listener's head,
// followed by a revised low-frequency B-curve high-pass.
type chain struct {
	shelf    biquad
	highpass biquad
}

func newChain(rate int) chain {
	return chain{
		shelf:    shelfCoefficients(rate),
		highpass: highpassCoefficients(rate),
	}
}

func (c *chain) process(x float64) float64 {
	return c.highpass.process(c.shelf.process(x))
}

// shelfCoefficients derives the first K-weighting stage for the given
// sample rate. At 48 kHz the result matches the coefficient table
// printed in BS.1770-4.
func shelfCoefficients(rate int) biquad {
	const (
		f0 = 1681.974450955533
		g  = 3.999843853973347
		q  = 0.7071752369554196
	)
	k := math.Tan(math.Pi * f0 / float64(rate))
	vh := math.Pow(10, g/20)
	vb := math.Pow(vh, 0.4996667741545416)
	a0 := 1 + k/q + k*k
	return biquad{
		b0: (vh + vb*k/q + k*k) / a0,
		b1: 2 * (k*k - vh) / a0,
		b2: (vh - vb*k/q + k*k) / a0,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/q + k*k) / a0,
	}
}

func highpassCoefficients(rate int) biquad {
	const (
		f0 = 38.13547087602444
		q  = 0.5003270373238773
	)
	k := math.Tan(math.Pi * f0 / float64(rate))
	a0 := 1 + k/q + k*k
	return biquad{
		b0: 1,
		b1: -2,
		b2: 1,
		a1: 2 * (k*k - 1) / a0,
		a2: (1 - k/q + k*k) / a0,
	}
}
