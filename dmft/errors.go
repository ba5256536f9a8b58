// SPDX-License-Identifier: MIT
// Package dmft: sentinel error set.

package dmft

import "errors"

var (
	// ErrInvalidConfig indicates a negative cycle count, a non-positive
	// precision, non-finite couplings or collaborators of different structure.
	ErrInvalidConfig = errors.New("dmft: invalid configuration")

	// ErrNoIterations indicates post-processing of a store without a completed iteration.
	ErrNoIterations = errors.New("dmft: no completed iteration")

	// ErrMissingRealFrequency indicates post-processing of an iteration that was
	// run without real-frequency output.
	ErrMissingRealFrequency = errors.New("dmft: iteration has no real-frequency self-energy")
)
