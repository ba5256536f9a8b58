// SPDX-License-Identifier: MIT
// Package config: sentinel error set.

package config

import "errors"

// ErrInvalid indicates an unreadable configuration file or a field outside its domain.
var ErrInvalid = errors.New("config: invalid configuration")
