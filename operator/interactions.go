// SPDX-License-Identifier: MIT
package operator

import "fmt"

// Canonical spin block names.
const (
	SpinUp   = "up"
	SpinDown = "down"
)

// HubbardInteraction returns U Σ_i n_{up,i} n_{down,i} over orbitals 0..orbitals-1.
func HubbardInteraction(u float64, orbitals int) *Expr {
	h := NewExpr()
	for i := 0; i < orbitals; i++ {
		h = h.Add(N(SpinUp, i).Mul(N(SpinDown, i)).Scale(complex(u, 0)))
	}

	return h
}

// SlaterInteraction returns ½ Σ_{s,s'} Σ_{abcd} U_abcd c†_{s,a} c†_{s',b} c_{s',d} c_{s,c},
// where each spin s names a block of len(um) orbitals.
//
// Errors: ErrUnsupportedShell if um is not a 4-index square tensor.
func SlaterInteraction(spins []string, um UMatrix) (*Expr, error) {
	n := len(um)
	for _, x := range um {
		if len(x) != n {
			return nil, fmt.Errorf("SlaterInteraction: ragged tensor: %w", ErrUnsupportedShell)
		}
		for _, y := range x {
			if len(y) != n {
				return nil, fmt.Errorf("SlaterInteraction: ragged tensor: %w", ErrUnsupportedShell)
			}
			for _, z := range y {
				if len(z) != n {
					return nil, fmt.Errorf("SlaterInteraction: ragged tensor: %w", ErrUnsupportedShell)
				}
			}
		}
	}

	h := NewExpr()
	var a, b, c, d int
	for _, s1 := range spins {
		for _, s2 := range spins {
			for a = 0; a < n; a++ {
				for b = 0; b < n; b++ {
					if s1 == s2 && a == b {
						continue // c†c† on one mode vanishes
					}
					for c = 0; c < n; c++ {
						for d = 0; d < n; d++ {
							v := um[a][b][c][d]
							if v == 0 {
								continue
							}
							if s1 == s2 && c == d {
								continue
							}
							h.addOrdered([]Op{
								{Dagger: true, Index: Index{s1, a}},
								{Dagger: true, Index: Index{s2, b}},
								{Dagger: false, Index: Index{s2, d}},
								{Dagger: false, Index: Index{s1, c}},
							}, complex(0.5*v, 0))
						}
					}
				}
			}
		}
	}

	return h.Chop(1e-12), nil
}

// SlaterHamiltonian builds the up/down Slater interaction of shell l from (U, J).
func SlaterHamiltonian(l int, u, j float64) (*Expr, error) {
	um, err := UMatrixSlater(l, u, j)
	if err != nil {
		return nil, err
	}

	return SlaterInteraction([]string{SpinUp, SpinDown}, um)
}
