// SPDX-License-Identifier: MIT
// Package checkpoint: sentinel error set.

package checkpoint

import (
	"errors"
	"fmt"
)

var (
	// ErrIO indicates a failed read or write of the durable store. Every error
	// returned by Store wraps it.
	ErrIO = errors.New("checkpoint: store I/O error")

	// ErrNotFound indicates a missing key, such as an iteration that was never written.
	ErrNotFound = errors.New("checkpoint: record not found")

	// ErrCorrupt indicates a record whose shape disagrees with its own header.
	ErrCorrupt = errors.New("checkpoint: corrupt record")
)

// ioErrorf wraps err with ErrIO and an operation tag.
func ioErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w: %w", tag, ErrIO, err)
}
