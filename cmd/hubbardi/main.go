// SPDX-License-Identifier: MIT

// Command hubbardi runs Hubbard-I DMFT calculations on a model lattice and
// post-processes their checkpoint files.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hubbardi:", err)
		os.Exit(1)
	}
}
