// SPDX-License-Identifier: MIT
// Package atomdiag: sentinel error set.

package atomdiag

import (
	"errors"
	"fmt"
)

var (
	// ErrNotHermitian indicates that the Hamiltonian differs from its adjoint.
	ErrNotHermitian = errors.New("atomdiag: hamiltonian is not hermitian")

	// ErrSectorTooLarge indicates an invariant subspace (or the Fock space itself)
	// beyond the configured dense-diagonalization limit.
	ErrSectorTooLarge = errors.New("atomdiag: sector too large")

	// ErrUnknownIndex indicates an operator index absent from the fermionic basis,
	// or a block orbital without a mode.
	ErrUnknownIndex = errors.New("atomdiag: unknown operator index")

	// ErrInvalidBeta indicates a non-positive or non-finite inverse temperature.
	ErrInvalidBeta = errors.New("atomdiag: beta must be positive and finite")
)

func adErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
