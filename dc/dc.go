// SPDX-License-Identifier: MIT

// Package dc computes the double-counting correction subtracted from the
// impurity self-energy when it is embedded in the lattice.
//
// All formulas act on the total occupation N of the correlated shell and the
// occupation N_σ per spin, with M orbitals per spin:
//
//	FLL:  Σ_dc,σ = U(N - ½) - J(N_σ - ½)
//	      E_dc   = U/2·N(N-1) - Σ_σ J/2·N_σ(N_σ-1)
//	Held: Σ_dc   = Ū(N - ½),  E_dc = Ū/2·N(N-1),  Ū = (U + (M-1)(U-2J) + (M-1)(U-3J))/(2M-1)
//	AMF:  Σ_dc,σ = U(N - N_σ/M) - J(N_σ - N_σ/M)
//	      E_dc   = U/2·N² - Σ_σ (U + (M-1)J)/(2M)·N_σ²
//
// Without spin polarization N_σ is replaced by N/2 for both spins.
package dc

import (
	"fmt"
	"strings"

	"github.com/katalvlaran/hubbardi/gf"
	"github.com/katalvlaran/hubbardi/matrix"
)

// Formula selects the double-counting scheme.
type Formula int

const (
	// FullyLocalizedLimit is the FLL formula (code 0).
	FullyLocalizedLimit Formula = iota
	// Held is Held's formula with an averaged interorbital U (code 1).
	Held
	// AroundMeanField is the AMF formula (code 2).
	AroundMeanField
)

func (f Formula) String() string {
	switch f {
	case FullyLocalizedLimit:
		return "fll"
	case Held:
		return "held"
	case AroundMeanField:
		return "amf"
	}

	return fmt.Sprintf("Formula(%d)", int(f))
}

// ParseFormula accepts "fll", "held", "amf" (any case) or the codes "0", "1", "2".
func ParseFormula(s string) (Formula, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fll", "0":
		return FullyLocalizedLimit, nil
	case "held", "1":
		return Held, nil
	case "amf", "2":
		return AroundMeanField, nil
	}

	return 0, fmt.Errorf("%q: %w", s, ErrUnknownFormula)
}

// MarshalText implements encoding.TextMarshaler.
func (f Formula) MarshalText() ([]byte, error) {
	if f < FullyLocalizedLimit || f > AroundMeanField {
		return nil, fmt.Errorf("%d: %w", int(f), ErrUnknownFormula)
	}

	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Formula) UnmarshalText(b []byte) error {
	v, err := ParseFormula(string(b))
	if err != nil {
		return err
	}
	*f = v

	return nil
}

// Spin of a block.
type Spin int

const (
	Up Spin = iota
	Down
)

// SpinOf infers the spin from a block name prefix: "up…" or "down…"/"dn…".
func SpinOf(block string) (Spin, error) {
	name := strings.ToLower(block)
	switch {
	case strings.HasPrefix(name, "up"):
		return Up, nil
	case strings.HasPrefix(name, "down"), strings.HasPrefix(name, "dn"):
		return Down, nil
	}

	return 0, fmt.Errorf("block %q: %w", block, ErrUnknownSpin)
}

type options struct {
	spinPolarized bool
}

// Option tunes Compute.
type Option func(*options)

// WithSpinPolarization keeps N_up and N_down separate instead of averaging them.
func WithSpinPolarization() Option { return func(o *options) { o.spinPolarized = true } }

// Occupations returns N, [N_up, N_down] and M (orbitals per spin) of dm.
//
// Errors: gf.ErrStructureMismatch, gf.ErrUnknownBlock, ErrUnknownSpin.
func Occupations(s *gf.BlockStructure, dm gf.BlockMatrix) (total float64, perSpin [2]float64, m int, err error) {
	if err = dm.Validate(s); err != nil {
		return 0, perSpin, 0, fmt.Errorf("dc.Occupations: %w", err)
	}
	var dims [2]int
	for _, b := range s.Blocks() {
		sp, err := SpinOf(b.Name)
		if err != nil {
			return 0, perSpin, 0, fmt.Errorf("dc.Occupations: %w", err)
		}
		perSpin[sp] += real(dm[b.Name].Trace())
		dims[sp] += b.Dim
	}
	m = max(dims[Up], dims[Down])

	return perSpin[Up] + perSpin[Down], perSpin, m, nil
}

// Compute returns the double-counting matrix (a multiple of the identity per
// block) and the double-counting energy.
//
// Errors: ErrUnknownFormula, ErrUnknownSpin, gf.ErrStructureMismatch, gf.ErrUnknownBlock.
func Compute(s *gf.BlockStructure, dm gf.BlockMatrix, u, j float64, f Formula, opts ...Option) (gf.BlockMatrix, float64, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	nTot, nSp, m, err := Occupations(s, dm)
	if err != nil {
		return nil, 0, err
	}
	if !o.spinPolarized {
		nSp = [2]float64{nTot / 2, nTot / 2}
	}
	mf := float64(m)

	var (
		energy float64
		shift  [2]float64
	)
	switch f {
	case FullyLocalizedLimit:
		energy = u / 2 * nTot * (nTot - 1)
		for sp, n := range nSp {
			shift[sp] = u*(nTot-0.5) - j*(n-0.5)
			energy -= j / 2 * n * (n - 1)
		}
	case Held:
		uBar := (u + (mf-1)*(u-2*j) + (mf-1)*(u-3*j)) / (2*mf - 1)
		energy = uBar / 2 * nTot * (nTot - 1)
		shift[Up] = uBar * (nTot - 0.5)
		shift[Down] = shift[Up]
	case AroundMeanField:
		energy = 0.5 * u * nTot * nTot
		for sp, n := range nSp {
			shift[sp] = u*(nTot-n/mf) - j*(n-n/mf)
			energy -= (u + (mf-1)*j) / mf * 0.5 * n * n
		}
	default:
		return nil, 0, fmt.Errorf("dc.Compute: %s: %w", f, ErrUnknownFormula)
	}

	out := gf.NewBlockMatrix(s)
	for _, b := range s.Blocks() {
		sp, _ := SpinOf(b.Name)
		id, _ := matrix.NewIdentity(b.Dim)
		out[b.Name], _ = matrix.Scale(id, complex(shift[sp], 0))
	}

	return out, energy, nil
}
