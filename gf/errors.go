// SPDX-License-Identifier: MIT
// Package gf: sentinel error set.
// Every message is prefixed with "gf: ..." for consistency; constructors and
// kernels wrap these with an operation tag and callers match with errors.Is.

package gf

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStructure indicates an empty block structure, an empty or
	// duplicated block name, or a block with dimension < 1.
	ErrInvalidStructure = errors.New("gf: invalid block structure")

	// ErrInvalidMesh indicates non-positive sizes, beta ≤ 0, w_min ≥ w_max or idelta < 0.
	ErrInvalidMesh = errors.New("gf: invalid mesh parameters")

	// ErrMeshMismatch indicates that two operands are sampled on different meshes.
	ErrMeshMismatch = errors.New("gf: mesh mismatch")

	// ErrStructureMismatch indicates that two operands have different block structures.
	ErrStructureMismatch = errors.New("gf: block structure mismatch")

	// ErrUnknownBlock indicates a lookup by a block name that is not part of the structure.
	ErrUnknownBlock = errors.New("gf: unknown block")

	// ErrUnsupportedMesh indicates an operation that is undefined on the receiver's mesh kind.
	ErrUnsupportedMesh = errors.New("gf: operation unsupported on this mesh")

	// ErrTailFitDegenerate indicates that the high-frequency moment fit has fewer
	// samples than unknown moments or a design matrix singular to working precision.
	ErrTailFitDegenerate = errors.New("gf: tail fit degenerate")
)

// gfErrorf wraps err with an operation tag.
func gfErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
