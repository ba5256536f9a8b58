// SPDX-License-Identifier: MIT
// Package solver: sentinel error set.

package solver

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/hubbardi/gf"
)

var (
	// ErrInvalidConfig indicates invalid construction parameters: beta, grid
	// sizes, real-frequency window, broadening or block structure.
	ErrInvalidConfig = errors.New("solver: invalid configuration")

	// ErrTailFitDegenerate indicates that the static level matrix could not be
	// extracted from the hybridization tail (window too small or the fit is
	// ill-conditioned). It is the gf sentinel, so either name matches.
	ErrTailFitDegenerate = gf.ErrTailFitDegenerate

	// ErrDiagonalizationFailed wraps any failure of the Diagonalizer or of the
	// spectral sums built on its result.
	ErrDiagonalizationFailed = errors.New("solver: diagonalization failed")

	// ErrUnsupportedRepresentation indicates a request for a representation
	// that was not allocated at construction.
	ErrUnsupportedRepresentation = errors.New("solver: representation not allocated")
)

func solverErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
