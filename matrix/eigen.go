// SPDX-License-Identifier: MIT
// Package matrix: EigenHermitian computes all eigenvalues and eigenvectors of a
// complex Hermitian matrix using cyclic Jacobi rotations.

package matrix

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"
)

// Default Jacobi policy.
const (
	// DefaultEigenTol is the relative off-diagonal Frobenius threshold that ends the sweeps.
	DefaultEigenTol = 1e-14

	// DefaultEigenSweeps caps the number of full cyclic sweeps.
	DefaultEigenSweeps = 100
)

// EigenHermitian performs Jacobi eigenvalue decomposition on a Hermitian matrix m.
// It returns ascending eigenvalues and a unitary matrix Q whose columns are the
// corresponding eigenvectors, so that m = Q·diag(λ)·Q†.
//
// Implementation:
//   - Stage 1: Validate square + Hermitian (within 1e-10·(1+max|m|)).
//   - Stage 2: Cyclic sweeps over (p<q). Each rotation first removes the phase of
//     m[p,q] with a diagonal unitary, then applies the real Jacobi rotation
//     tan θ = t, t = sgn(ϑ)/(|ϑ|+√(ϑ²+1)), ϑ = (a_qq-a_pp)/(2|a_pq|).
//   - Stage 3: Stop once off(A) ≤ tol·‖A‖_F; sort eigenpairs ascending.
//
// Errors:
//   - ErrNilMatrix, ErrNonSquare, ErrNotHermitian, ErrEigenFailed (maxSweeps exhausted).
//
// Complexity: O(n³) per sweep, typically 6–10 sweeps; Memory: O(n²).
func EigenHermitian(m *Dense, tol float64, maxSweeps int) ([]float64, *Dense, error) {
	// Stage 1: Validate input
	if err := ValidateSquare(m); err != nil {
		return nil, nil, matrixErrorf(opEigen, err)
	}
	if err := ValidateHermitian(m, 1e-10*(1+m.MaxAbs())); err != nil {
		return nil, nil, matrixErrorf(opEigen, err)
	}
	if tol <= 0 {
		tol = DefaultEigenTol
	}
	if maxSweeps <= 0 {
		maxSweeps = DefaultEigenSweeps
	}

	n := m.r
	a := m.Clone()
	q, err := NewIdentity(n)
	if err != nil {
		return nil, nil, matrixErrorf(opEigen, err)
	}

	// Stage 2: Execute Jacobi sweeps
	var (
		sweep, p, r, c int
		norm, off, mag float64
		theta, t, cs   float64
		sn, app, aqq   float64
		phase          complex128
		arp, arq       complex128
		converged      bool
	)
	for _, v := range a.data {
		norm += real(v)*real(v) + imag(v)*imag(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return make([]float64, n), q, nil
	}

	for sweep = 0; sweep < maxSweeps; sweep++ {
		off = 0
		for p = 0; p < n; p++ {
			for c = p + 1; c < n; c++ {
				v := a.data[p*n+c]
				off += 2 * (real(v)*real(v) + imag(v)*imag(v))
			}
		}
		if math.Sqrt(off) <= tol*norm {
			converged = true
			break
		}

		for p = 0; p < n-1; p++ {
			for c = p + 1; c < n; c++ {
				apq := a.data[p*n+c]
				mag = cmplx.Abs(apq)
				if mag <= tol*norm*1e-3 {
					continue // negligible pivot
				}
				phase = cmplx.Conj(apq) / complex(mag, 0) // e^{-iφ}
				app, aqq = real(a.data[p*n+p]), real(a.data[c*n+c])
				theta = (aqq - app) / (2 * mag)
				t = 1 / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				if theta < 0 {
					t = -t
				}
				cs = 1 / math.Sqrt(t*t+1)
				sn = t * cs

				for r = 0; r < n; r++ {
					if r == p || r == c {
						continue
					}
					arp = a.data[r*n+p]
					arq = a.data[r*n+c] * phase
					np := complex(cs, 0)*arp - complex(sn, 0)*arq
					nq := complex(sn, 0)*arp + complex(cs, 0)*arq
					a.data[r*n+p], a.data[p*n+r] = np, cmplx.Conj(np)
					a.data[r*n+c], a.data[c*n+r] = nq, cmplx.Conj(nq)
				}
				a.data[p*n+p] = complex(app-t*mag, 0)
				a.data[c*n+c] = complex(aqq+t*mag, 0)
				a.data[p*n+c], a.data[c*n+p] = 0, 0

				// accumulate into Q
				for r = 0; r < n; r++ {
					vrp := q.data[r*n+p]
					vrq := q.data[r*n+c] * phase
					q.data[r*n+p] = complex(cs, 0)*vrp - complex(sn, 0)*vrq
					q.data[r*n+c] = complex(sn, 0)*vrp + complex(cs, 0)*vrq
				}
			}
		}
	}
	if !converged {
		return nil, nil, matrixErrorf(opEigen, fmt.Errorf("%d sweeps: %w", maxSweeps, ErrEigenFailed))
	}

	// Stage 3: Finalize eigenvalues (ascending) and permute columns accordingly
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return real(a.data[order[i]*n+order[i]]) < real(a.data[order[j]*n+order[j]])
	})
	eigs := make([]float64, n)
	vecs, _ := NewDense(n, n)
	for dst, src := range order {
		eigs[dst] = real(a.data[src*n+src])
		for r = 0; r < n; r++ {
			vecs.data[r*n+dst] = q.data[r*n+src]
		}
	}

	return eigs, vecs, nil
}
