// Package atomdiag diagonalizes a local fermionic Hamiltonian exactly and
// evaluates its atomic Green's functions.
//
// ExactDiag builds H in the occupation-number basis of a given list of
// operator indices, splits the Fock space into sectors connected by H and
// diagonalizes each sector densely (gonum EigenSym for real sectors, the
// complex Jacobi solver of package matrix otherwise). The resulting
// Eigensystem implements Spectrum:
//
//   - GreenFunction evaluates the Lehmann sum on Matsubara, real-frequency,
//     imaginary-time and Legendre meshes.
//   - DensityMatrix returns ⟨c†_j c_i⟩ per block.
//   - GroundStateEnergy returns E0; all stored energies are relative to it.
//
// Sectors and blocks are processed on a bounded errgroup; results do not
// depend on scheduling.
package atomdiag
