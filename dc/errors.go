// SPDX-License-Identifier: MIT
package dc

import "errors"

var (
	// ErrUnknownFormula indicates a formula name or number outside fll/held/amf.
	ErrUnknownFormula = errors.New("dc: unknown double-counting formula")

	// ErrUnknownSpin indicates a block whose name does not start with up or down.
	ErrUnknownSpin = errors.New("dc: cannot infer spin from block name")
)
