// Package gf provides block Green's-function containers on the four
// representations used by the impurity solver.
//
// A BlockStructure partitions the single-particle basis into named blocks.
// A Mesh selects the sampling domain:
//
//   - MatsubaraFreq: positive fermionic frequencies iω_n = i(2n+1)π/β.
//   - RealFreq: ω on [w_min, w_max] (inclusive), evaluated at ω + i·idelta.
//   - ImTime: τ on [0, β] (inclusive).
//   - Legendre: coefficients G_l = √(2l+1) ∫ P_l(2τ/β-1) G(τ) dτ.
//
// Gf stores one Dim×Dim matrix per mesh point; BlockGf groups one Gf per
// block on a shared mesh. Arithmetic (Inverse, Add, Sub, SetZMinus),
// degenerate-block Symmetrize, density matrices with tail corrections and
// the least-squares high-frequency moment fit (FitTail) live here, together
// with the flat-band (Wilson) and semicircular model functions.
//
// Negative Matsubara frequencies are not stored; they follow from
// G(-iω) = G(iω)†.
package gf
