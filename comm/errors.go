// SPDX-License-Identifier: MIT
// Package comm: sentinel error set.

package comm

import "errors"

// ErrAborted indicates that a participant called Abort; every pending and
// later collective operation of the group fails with it.
var ErrAborted = errors.New("comm: group aborted")
