// SPDX-License-Identifier: MIT
package operator

import "errors"

// ErrUnsupportedShell indicates an angular momentum without Slater-integral
// ratios (l > 3) or a malformed interaction tensor.
var ErrUnsupportedShell = errors.New("operator: unsupported shell")
