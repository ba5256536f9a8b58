// SPDX-License-Identifier: MIT
package atomdiag

import "math"

// legendreKernel returns h_l(a) such that a single pole at ε contributes
//
//	G_l = -√(2l+1)·β·h_l(βε/2)
//
// to the Legendre coefficients. With s_l(x) = e^{-x} i_l(x):
//
//	h_l(a) = (-1)^l s_l(|a|) / (1 + e^{-2|a|})   for a ≥ 0
//	h_l(a) =        s_l(|a|) / (1 + e^{-2|a|})   for a < 0
func legendreKernel(l int, a float64) float64 {
	x := math.Abs(a)
	h := scaledBesselI(l, x) / (1 + math.Exp(-2*x))
	if a >= 0 && l%2 == 1 {
		return -h
	}

	return h
}

// scaledBesselI returns s_l(x) = e^{-x}·i_l(x) for the modified spherical
// Bessel function of the first kind and x ≥ 0.
//
// Implementation:
//   - x > 600, or x > 40 with x > l²: the terminating expansion
//     (1/2x) Σ_{k=0}^{l} (-1)^k c_k/(2x)^k, c_{k+1} = c_k (l+k+1)(l-k)/(k+1),
//     exact up to e^{-2x}.
//   - otherwise: the positive power series with t_0 = x^l e^{-x}/(2l+1)!!,
//     t_k = t_{k-1}·(x²/2)/(k(2l+2k+1)), summed in log-safe form.
func scaledBesselI(l int, x float64) float64 {
	if x == 0 {
		if l == 0 {
			return 1
		}

		return 0
	}
	if x > 600 || (x > 40 && x > float64(l*l)) {
		var sum float64
		c := 1.0
		p := 1.0
		for k := 0; k <= l; k++ {
			if k%2 == 0 {
				sum += c / p
			} else {
				sum -= c / p
			}
			c *= float64((l+k+1)*(l-k)) / float64(k+1)
			p *= 2 * x
		}

		return sum / (2 * x)
	}

	var logDfact float64 // ln (2l+1)!!
	for k := 3; k <= 2*l+1; k += 2 {
		logDfact += math.Log(float64(k))
	}
	t := math.Exp(float64(l)*math.Log(x) - logDfact - x)
	sum := t
	half := x * x / 2
	for k := 1; k < 100000; k++ {
		t *= half / float64(k*(2*l+2*k+1))
		sum += t
		if float64(k) > x/2 && t <= 1e-17*sum {
			break
		}
	}

	return sum
}
