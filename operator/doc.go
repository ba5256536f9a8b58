// Package operator builds many-body Hamiltonians as normal-ordered
// polynomials of fermionic creation and annihilation operators.
//
// Modes are addressed by Index{Block, Orbital}. Expr supports sums,
// products (re-ordered with {c_i, c†_j} = δ_ij), scaling and Hermitian
// conjugation. The interaction helpers cover the density-density Hubbard
// term and the rotationally invariant Slater Hamiltonian of an l-shell
// built from Wigner 3j coefficients.
package operator
