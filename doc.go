// SPDX-License-Identifier: MIT

// Package hubbardi solves the Hubbard model in dynamical mean-field theory
// with the Hubbard-I approximation: the impurity is the isolated atom whose
// levels are read off the high-frequency tail of the hybridization.
//
// Everything is organized under subpackages:
//
//	matrix/      dense complex matrices, LU, Hermitian eigensolver
//	gf/          meshes, block Green's functions, tail fit, densities
//	operator/    second-quantized polynomials, Hubbard and Slater vertices
//	atomdiag/    exact diagonalization of the atom by conserved sectors
//	solver/      the Hubbard-I impurity solver and its persistable state
//	dc/          double-counting corrections (FLL, Held, AMF)
//	lattice/     model-lattice projector and chemical-potential search
//	comm/        SPMD communicators (single process, in-process group)
//	checkpoint/  bbolt store of iterations, scalars and spectra
//	dmft/        the self-consistency driver with checkpoint and resume
//	config/      YAML and environment configuration of a run
//	cmd/hubbardi the command line
//
// One DMFT cycle:
//
//	Σ ─▶ lattice ─▶ G_loc ─▶ G0 = (G_loc⁻¹ + Σ)⁻¹ ─▶ atom ─▶ Σ
//	        ▲                                                │
//	        └──────────── μ, dc ◀────────────────────────────┘
//
//	go install github.com/katalvlaran/hubbardi/cmd/hubbardi@latest
package hubbardi
