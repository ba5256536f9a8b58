// SPDX-License-Identifier: MIT

// Package checkpoint persists a DMFT run so that it can be resumed.
//
// The archive is a single bbolt file with two nested groups:
//
//	DMFT_results/
//	    iteration_count          highest complete iteration
//	    chemical_potential0, …   run-level scalars (PutScalar)
//	    Iterations/
//	        Sigma_itN, Sigma_w_itN, Gloc_itN, Gloc_w_itN, G0loc_itN,
//	        dc_impN, dc_energN, chemical_potentialN,
//	        DOS_itN, DOSproj_itN, DOS0_itN, DOSproj0_itN
//	DMFT_input/
//	    config, …                opaque input documents (PutInput)
//	    Iterations/
//	        solver_state_itN     full solver.State
//
// Values are CBOR records compressed with snappy. Complex data is split into
// real and imaginary float64 slices so a round trip is bit-exact.
//
// WriteIteration is a single transaction: either every key of the iteration
// and the advanced iteration_count are visible, or none are. Use With for
// scoped access; it closes the file on every return path.
package checkpoint
