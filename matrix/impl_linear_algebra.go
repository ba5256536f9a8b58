// SPDX-License-Identifier: MIT
// Package matrix provides universal operations on Dense matrices,
// including element-wise addition, subtraction, matrix multiplication,
// conjugate transpose, scalar scaling and inversion. All functions perform
// strict fail-fast validation and return clear errors on dimension mismatches.
//
// Purpose:
//   - Declare canonical linear-algebra kernels used by Green's-function containers.
//   - Define operation tags for determinism and error reporting.
//
// Notes:
//   - Every kernel allocates a fresh result; operands are never mutated
//     (the *InPlace variants are the explicit exceptions).

package matrix

import (
	"fmt"
	"math"
	"math/cmplx"
)

// ZeroPivot is the sentinel for detecting a zero pivot in LU/Inverse routines.
const ZeroPivot = 0.0

// Operation name constants for unified error wrapping and reducing magic strings.
const (
	opAdd           = "Add"
	opSub           = "Sub"
	opMul           = "Mul"
	opConjTranspose = "ConjTranspose"
	opScale         = "Scale"
	opEigen         = "EigenHermitian"
	opInverse       = "Inverse"
	opLU            = "LU"
	opMaxAbsDiff    = "MaxAbsDiff"
)

// matrixErrorf wraps err with an operation tag, preserving the original error via %w.
// Use only when err != nil to avoid creating a non-nil wrapper around a nil cause.
//
// Complexity:
//   - Time O(1), Space O(1).
func matrixErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}

// addSub computes elementwise out = a + sign*b.
// Inputs must have identical shapes. A fresh Dense is allocated; operands are not mutated.
//
// Implementation:
//   - Stage 1: ValidateBinarySameShape(a, b). Allocate result Dense(rows, cols).
//   - Stage 2: single flat loop 0..n-1.
//
// Complexity:
//   - Time O(r*c), Space O(r*c) for the new result.
func addSub(a, b *Dense, sign complex128, opTag string) (*Dense, error) {
	// Validate shapes match
	if err := ValidateBinarySameShape(a, b); err != nil {
		return nil, matrixErrorf(opTag, err)
	}

	// Allocate result Dense
	res, err := NewDense(a.r, a.c)
	if err != nil {
		return nil, matrixErrorf(opTag, err)
	}

	// direct element-wise addition on backing slices
	for idx := range res.data { // deterministic 0..n-1
		res.data[idx] = a.data[idx] + sign*b.data[idx]
	}

	return res, nil
}

// Add returns a + b.
// Errors: ErrNilMatrix, ErrDimensionMismatch.
// Complexity: O(r*c).
func Add(a, b *Dense) (*Dense, error) { return addSub(a, b, +1, opAdd) }

// Sub returns a - b.
// Errors: ErrNilMatrix, ErrDimensionMismatch.
// Complexity: O(r*c).
func Sub(a, b *Dense) (*Dense, error) { return addSub(a, b, -1, opSub) }

// AddInPlace performs dst += alpha*src.
// Errors: ErrNilMatrix, ErrDimensionMismatch.
func AddInPlace(dst, src *Dense, alpha complex128) error {
	if err := ValidateBinarySameShape(dst, src); err != nil {
		return matrixErrorf(opAdd, err)
	}
	for idx := range dst.data {
		dst.data[idx] += alpha * src.data[idx]
	}

	return nil
}

// Mul returns the matrix product a·b.
//
// Implementation:
//   - Stage 1: ValidateMulCompatible(a, b).
//   - Stage 2: i→k→j loop order so the inner loop streams rows of b and out.
//
// Errors: ErrNilMatrix, ErrDimensionMismatch.
//
// Complexity:
//   - Time O(r·k·c), Space O(r·c).
func Mul(a, b *Dense) (*Dense, error) {
	if err := ValidateMulCompatible(a, b); err != nil {
		return nil, matrixErrorf(opMul, err)
	}
	res, err := NewDense(a.r, b.c)
	if err != nil {
		return nil, matrixErrorf(opMul, err)
	}

	var (
		i, k, j    int
		aik        complex128
		rowA, rowO int
	)
	for i = 0; i < a.r; i++ {
		rowA = i * a.c
		rowO = i * b.c
		for k = 0; k < a.c; k++ {
			aik = a.data[rowA+k]
			if aik == 0 {
				continue // sparse-friendly skip; exact zero contributes nothing
			}
			rowB := k * b.c
			for j = 0; j < b.c; j++ {
				res.data[rowO+j] += aik * b.data[rowB+j]
			}
		}
	}

	return res, nil
}

// ConjTranspose returns the Hermitian adjoint m†.
// Errors: ErrNilMatrix.
// Complexity: O(r*c).
func ConjTranspose(m *Dense) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opConjTranspose, err)
	}
	res, err := NewDense(m.c, m.r)
	if err != nil {
		return nil, matrixErrorf(opConjTranspose, err)
	}
	var i, j int
	for i = 0; i < m.r; i++ {
		for j = 0; j < m.c; j++ {
			res.data[j*m.r+i] = cmplx.Conj(m.data[i*m.c+j])
		}
	}

	return res, nil
}

// Scale returns alpha·m.
// Errors: ErrNilMatrix.
// Complexity: O(r*c).
func Scale(m *Dense, alpha complex128) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opScale, err)
	}
	res := m.Clone()
	for idx := range res.data {
		res.data[idx] *= alpha
	}

	return res, nil
}

// AddScaledIdentityInPlace performs m += alpha·I on a square matrix.
// Errors: ErrNilMatrix, ErrNonSquare.
func AddScaledIdentityInPlace(m *Dense, alpha complex128) error {
	if err := ValidateSquare(m); err != nil {
		return matrixErrorf(opAdd, err)
	}
	for i := 0; i < m.r; i++ {
		m.data[i*m.c+i] += alpha
	}

	return nil
}

// MaxAbsDiff returns max |a[i,j] - b[i,j]|.
// Errors: ErrNilMatrix, ErrDimensionMismatch.
func MaxAbsDiff(a, b *Dense) (float64, error) {
	if err := ValidateBinarySameShape(a, b); err != nil {
		return 0, matrixErrorf(opMaxAbsDiff, err)
	}
	var best float64
	for idx := range a.data {
		best = math.Max(best, cmplx.Abs(a.data[idx]-b.data[idx]))
	}

	return best, nil
}

// LUFactors holds a row-pivoted Doolittle factorization P·A = L·U packed
// into a single matrix: strictly lower part is L (unit diagonal implied),
// upper part including the diagonal is U. Perm[i] is the source row of row i.
type LUFactors struct {
	lu   *Dense
	Perm []int
}

// LU computes the Doolittle factorization with partial (row) pivoting.
//
// Implementation:
//   - Stage 1: Validate m (not nil, square); copy into the packed workspace.
//   - Stage 2: For each column k, pick the row with max |a[i,k]| (i ≥ k), swap,
//     then eliminate below the pivot in fixed i→j order.
//
// Errors:
//   - ErrNilMatrix, ErrNonSquare, ErrSingular (pivot exactly zero).
//
// Determinism:
//   - Ties in pivot magnitude keep the first (lowest) row index.
//
// Complexity:
//   - Time O(n^3), Space O(n^2).
func LU(m *Dense) (*LUFactors, error) {
	// Validate input non‐nil and square
	if err := ValidateSquare(m); err != nil {
		return nil, matrixErrorf(opLU, err)
	}
	n := m.r
	work := m.Clone()
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	var (
		i, j, k, p int
		best, mag  float64
		pivot, f   complex128
	)
	for k = 0; k < n; k++ {
		// Stage 2.1: partial pivot search
		p, best = k, cmplx.Abs(work.data[k*n+k])
		for i = k + 1; i < n; i++ {
			if mag = cmplx.Abs(work.data[i*n+k]); mag > best {
				p, best = i, mag
			}
		}
		if best == ZeroPivot {
			return nil, matrixErrorf(opLU, fmt.Errorf("zero pivot at %d: %w", k, ErrSingular))
		}
		if p != k {
			for j = 0; j < n; j++ {
				work.data[k*n+j], work.data[p*n+j] = work.data[p*n+j], work.data[k*n+j]
			}
			perm[k], perm[p] = perm[p], perm[k]
		}
		// Stage 2.2: eliminate below the pivot
		pivot = work.data[k*n+k]
		for i = k + 1; i < n; i++ {
			f = work.data[i*n+k] / pivot
			work.data[i*n+k] = f // store multiplier in L part
			if f == 0 {
				continue
			}
			for j = k + 1; j < n; j++ {
				work.data[i*n+j] -= f * work.data[k*n+j]
			}
		}
	}

	return &LUFactors{lu: work, Perm: perm}, nil
}

// Solve returns x with A·x = b for the factored A.
// Errors: ErrDimensionMismatch if len(b) != n.
// Complexity: O(n²).
func (f *LUFactors) Solve(b []complex128) ([]complex128, error) {
	n := f.lu.r
	if len(b) != n {
		return nil, matrixErrorf(opLU, fmt.Errorf("len(b)=%d, n=%d: %w", len(b), n, ErrDimensionMismatch))
	}
	var (
		i, k int
		sum  complex128
		y    = make([]complex128, n)
		x    = make([]complex128, n)
	)
	// Forward substitution: L*y = P*b
	for i = 0; i < n; i++ {
		sum = b[f.Perm[i]]
		for k = 0; k < i; k++ {
			sum -= f.lu.data[i*n+k] * y[k]
		}
		y[i] = sum
	}
	// Backward substitution: U*x = y
	for i = n - 1; i >= 0; i-- {
		sum = y[i]
		for k = i + 1; k < n; k++ {
			sum -= f.lu.data[i*n+k] * x[k]
		}
		x[i] = sum / f.lu.data[i*n+i]
	}

	return x, nil
}

// Inverse returns the inverse of the square matrix m.
// Blueprint:
//
//	Stage 1 (Validate): ensure m is square.
//	Stage 2 (Decompose): P·A = L·U with partial pivoting.
//	Stage 3 (Execute): for each identity column eᵢ, solve L·y = P·eᵢ then U·x = y.
//	Stage 4 (Finalize): assemble columns into the inverse and return.
//
// Fast path: 1×1 and 2×2 closed forms (the common block sizes of spin-resolved
// Green's functions) avoid the factorization entirely.
//
// Errors:
//   - ErrNilMatrix, ErrNonSquare, ErrSingular.
//
// Complexity: O(n³) time, O(n²) memory.
func Inverse(m *Dense) (*Dense, error) {
	// Validate input non‐nil and square
	if err := ValidateSquare(m); err != nil {
		return nil, matrixErrorf(opInverse, err)
	}
	n := m.r
	switch n {
	case 1:
		if m.data[0] == 0 {
			return nil, matrixErrorf(opInverse, ErrSingular)
		}

		return &Dense{r: 1, c: 1, data: []complex128{1 / m.data[0]}}, nil
	case 2:
		a, b, c, d := m.data[0], m.data[1], m.data[2], m.data[3]
		det := a*d - b*c
		if det == 0 {
			return nil, matrixErrorf(opInverse, ErrSingular)
		}

		return &Dense{r: 2, c: 2, data: []complex128{d / det, -b / det, -c / det, a / det}}, nil
	}

	fac, err := LU(m)
	if err != nil {
		return nil, matrixErrorf(opInverse, err)
	}
	inv, err := NewDense(n, n)
	if err != nil {
		return nil, matrixErrorf(opInverse, err)
	}
	e := make([]complex128, n)
	var col, i int
	for col = 0; col < n; col++ {
		for i = range e {
			e[i] = 0
		}
		e[col] = 1
		x, serr := fac.Solve(e)
		if serr != nil {
			return nil, matrixErrorf(opInverse, serr)
		}
		for i = 0; i < n; i++ {
			inv.data[i*n+col] = x[i]
		}
	}

	return inv, nil
}
