// SPDX-License-Identifier: MIT
package lattice

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/katalvlaran/hubbardi/gf"
)

// Model names accepted by NewDOS.
const (
	SemiCircular = "semicircular"
	Flat         = "flat"
)

// DOS is a normalized model density of states on [-HalfBandwidth, HalfBandwidth].
type DOS struct {
	Model         string
	HalfBandwidth float64
	rho           func(e float64) float64
}

// NewDOS returns the named model ("semicircular"/"bethe" or "flat").
//
// Errors: ErrInvalidDOS.
func NewDOS(model string, halfBandwidth float64) (DOS, error) {
	if !(halfBandwidth > 0) {
		return DOS{}, fmt.Errorf("half bandwidth %g: %w", halfBandwidth, ErrInvalidDOS)
	}
	switch strings.ToLower(model) {
	case SemiCircular, "bethe":
		return DOS{Model: SemiCircular, HalfBandwidth: halfBandwidth, rho: gf.SemiCircularDOS(halfBandwidth)}, nil
	case Flat:
		return DOS{Model: Flat, HalfBandwidth: halfBandwidth, rho: gf.FlatDOS(halfBandwidth)}, nil
	}

	return DOS{}, fmt.Errorf("model %q: %w", model, ErrInvalidDOS)
}

// At returns ρ(e).
func (d DOS) At(e float64) float64 { return d.rho(e) }

// Nodes returns n Gauss-Legendre energies on the band and their weights
// ρ(ε_k)·w_k, renormalized to sum to one.
func (d DOS) Nodes(n int) (energies, weights []float64) {
	energies, weights = make([]float64, n), make([]float64, n)
	quad.Legendre{}.FixedLocations(energies, weights, -d.HalfBandwidth, d.HalfBandwidth)
	var sum float64
	for k, e := range energies {
		weights[k] *= d.rho(e)
		sum += weights[k]
	}
	for k := range weights {
		weights[k] /= sum
	}

	return energies, weights
}
