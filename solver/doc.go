// Package solver implements the Hubbard-I impurity solver.
//
// A Solver owns a State: the bare propagator G0(iω) written by the caller and
// the dressed G, the self-energy Σ and the static level matrix produced by
// Solve. Solve proceeds in five steps:
//
//  1. Δ(iω) = iω - G0(iω)⁻¹ per block.
//  2. eal = Re a₀ of the least-squares tail fit of Δ (gf.FitTail).
//  3. H_loc = h_int + Σ eal_ij c†_i c_j, diagonalized by an atomdiag.Diagonalizer.
//  4. G from the Lehmann sum on the requested representations and
//     Σ = (z - eal) - G⁻¹ on iω and, optionally, ω + i·idelta.
//  5. Optionally the single-particle density matrix.
//
// Results are committed to State only when every step succeeds.
package solver
