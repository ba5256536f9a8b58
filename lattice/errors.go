// SPDX-License-Identifier: MIT
// Package lattice: sentinel error set.

package lattice

import "errors"

var (
	// ErrRootSearchDiverged indicates that the chemical-potential search did not
	// reach the target density within MaxSteps density evaluations.
	ErrRootSearchDiverged = errors.New("lattice: chemical potential search diverged")

	// ErrInvalidDOS indicates an unknown density-of-states model or a
	// non-positive half-bandwidth.
	ErrInvalidDOS = errors.New("lattice: invalid density of states")

	// ErrInvalidParameter indicates a non-positive precision, a negative
	// target density or a non-finite chemical potential.
	ErrInvalidParameter = errors.New("lattice: invalid parameter")
)
