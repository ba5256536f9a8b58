// Package matrix offers the dense complex linear algebra used by the
// Green's-function containers and the exact-diagonalization backend.
//
// The matrix package provides:
//
//   - Dense, a row-major complex128 matrix with bounds-checked accessors.
//   - Elementwise kernels (Add, Sub, Scale, AddInPlace) and the product Mul.
//   - ConjTranspose, LU with partial pivoting and Inverse (closed forms for
//     1×1 and 2×2 blocks).
//   - EigenHermitian, a cyclic Jacobi eigensolver for complex Hermitian
//     matrices returning ascending eigenvalues and unitary eigenvectors.
//
// All kernels validate their inputs and return sentinel errors from
// errors.go wrapped with an operation tag; match them with errors.Is.
// Operands are never mutated except by the explicit *InPlace variants.
package matrix
