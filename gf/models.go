// SPDX-License-Identifier: MIT
package gf

import (
	"math"
	"math/cmplx"
)

// Wilson returns the local Green's function of a flat band of half-width d:
//
//	W(z) = (1/2d)·ln((z+d)/(z-d))
//
// For Im z > 0 the ratio stays below the real axis, so the principal log is the retarded branch.
func Wilson(d float64) func(z complex128) complex128 {
	dd := complex(d, 0)

	return func(z complex128) complex128 {
		return cmplx.Log((z+dd)/(z-dd)) / (2 * dd)
	}
}

// SemiCircular returns the local Green's function of a semicircular density of
// states of half-bandwidth d:
//
//	G(z) = 2(z - √(z²-d²))/d²
//
// evaluated on the branch with √(z²-d²) ≈ z at large |z|.
func SemiCircular(d float64) func(z complex128) complex128 {
	dd := complex(d, 0)

	return func(z complex128) complex128 {
		s := cmplx.Sqrt(z-dd) * cmplx.Sqrt(z+dd)

		return 2 * (z - s) / (dd * dd)
	}
}

// SemiCircularDOS returns ρ(ε) = 2√(d²-ε²)/(πd²) on |ε| ≤ d and zero outside.
func SemiCircularDOS(d float64) func(e float64) float64 {
	return func(e float64) float64 {
		if e*e >= d*d {
			return 0
		}

		return 2 * math.Sqrt(d*d-e*e) / (math.Pi * d * d)
	}
}

// FlatDOS returns ρ(ε) = 1/(2d) on |ε| ≤ d and zero outside.
func FlatDOS(d float64) func(e float64) float64 {
	return func(e float64) float64 {
		if e < -d || e > d {
			return 0
		}

		return 1 / (2 * d)
	}
}
