// SPDX-License-Identifier: MIT
package operator

import (
	"fmt"
	"math"
)

// threeJ returns the Wigner 3j symbol (j1 j2 j3; m1 m2 m3) for integer
// arguments via the Racah formula.
func threeJ(j1, m1, j2, m2, j3, m3 int) float64 {
	if m1+m2+m3 != 0 {
		return 0
	}
	if j3 < abs(j1-j2) || j3 > j1+j2 {
		return 0
	}
	if abs(m1) > j1 || abs(m2) > j2 || abs(m3) > j3 {
		return 0
	}
	tri := fact(j1+j2-j3) * fact(j1-j2+j3) * fact(-j1+j2+j3) / fact(j1+j2+j3+1)
	pre := math.Sqrt(tri * fact(j1+m1) * fact(j1-m1) * fact(j2+m2) * fact(j2-m2) * fact(j3+m3) * fact(j3-m3))

	var sum float64
	tMin := max(0, j2-j3-m1, j1-j3+m2)
	tMax := min(j1+j2-j3, j1-m1, j2+m2)
	for t := tMin; t <= tMax; t++ {
		d := fact(t) * fact(j3-j2+t+m1) * fact(j3-j1+t-m2) * fact(j1+j2-j3-t) * fact(j1-t-m1) * fact(j2-t+m2)
		if t%2 == 0 {
			sum += 1 / d
		} else {
			sum -= 1 / d
		}
	}

	return parity(j1-j2-m3) * pre * sum
}

// angular returns the Gaunt-coefficient factor of F^k in U_{m1 m2 m3 m4}.
func angular(l, k, m1, m2, m3, m4 int) float64 {
	var r float64
	for q := -k; q <= k; q++ {
		r += threeJ(l, -m1, k, q, l, m3) * threeJ(l, -m2, k, -q, l, m4) * parity(m1+q+m2)
	}
	w := threeJ(l, 0, k, 0, l, 0)

	return r * float64((2*l+1)*(2*l+1)) * w * w
}

// SlaterIntegrals returns F^0, F^2, …, F^{2l} for shell l from (U, J) with the
// standard atomic ratios: l=1 F2=5J; l=2 F2=14J/1.625, F4=0.625F2;
// l=3 F2=6435J/(286+195·0.668+250·0.494), F4=0.668F2, F6=0.494F2.
//
// Errors: ErrUnsupportedShell for l outside 0..3.
func SlaterIntegrals(l int, u, j float64) ([]float64, error) {
	switch l {
	case 0:
		return []float64{u}, nil
	case 1:
		return []float64{u, 5 * j}, nil
	case 2:
		f2 := 14 * j / (1 + 0.625)

		return []float64{u, f2, 0.625 * f2}, nil
	case 3:
		f2 := 6435 * j / (286 + 195*0.668 + 250*0.494)

		return []float64{u, f2, 0.668 * f2, 0.494 * f2}, nil
	default:
		return nil, fmt.Errorf("SlaterIntegrals: l=%d: %w", l, ErrUnsupportedShell)
	}
}

// UMatrix is the four-index Coulomb tensor U[a][b][c][d] over 2l+1 orbitals.
type UMatrix [][][][]float64

// UMatrixSlater builds the spherical-harmonics-basis Coulomb tensor of shell l
// from Slater integrals derived from (U, J):
//
//	U_{m1 m2 m3 m4} = Σ_k F^k · angular(l, k, m1, m2, m3, m4)
//
// Orbital a ↔ m = a - l.
func UMatrixSlater(l int, u, j float64) (UMatrix, error) {
	fk, err := SlaterIntegrals(l, u, j)
	if err != nil {
		return nil, err
	}
	n := 2*l + 1
	um := make(UMatrix, n)
	var a, b, c, d, k int
	for a = 0; a < n; a++ {
		um[a] = make([][][]float64, n)
		for b = 0; b < n; b++ {
			um[a][b] = make([][]float64, n)
			for c = 0; c < n; c++ {
				um[a][b][c] = make([]float64, n)
				for d = 0; d < n; d++ {
					var v float64
					for k = 0; k < len(fk); k++ {
						v += fk[k] * angular(l, 2*k, a-l, b-l, c-l, d-l)
					}
					um[a][b][c][d] = v
				}
			}
		}
	}

	return um, nil
}

// Averages returns the orbital-averaged direct interaction U_avg and the
// exchange J_avg of the tensor.
func (um UMatrix) Averages() (uAvg, jAvg float64) {
	n := len(um)
	var direct, diff float64
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			direct += um[a][b][a][b]
			if a != b {
				diff += um[a][b][a][b] - um[a][b][b][a]
			}
		}
	}
	uAvg = direct / float64(n*n)
	if n > 1 {
		jAvg = uAvg - diff/float64(n*(n-1))
	}

	return uAvg, jAvg
}

func fact(n int) float64 {
	r := 1.0
	for i := 2; i <= n; i++ {
		r *= float64(i)
	}

	return r
}

func parity(n int) float64 {
	if n%2 == 0 {
		return 1
	}

	return -1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}

	return n
}
