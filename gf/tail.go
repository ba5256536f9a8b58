// SPDX-License-Identifier: MIT
// Package gf: high-frequency moment fit of Matsubara Green's functions.
//
// A Matsubara function is modelled in its tail window as
//
//	g(iω) ≈ Σ_{k=0}^{Order} a_k (iω)^{-k}
//
// and the complex matrix moments a_k are found by linear least squares. The
// complex design matrix is embedded as a real one ([Re x, -Im x; Im x, Re x]),
// column-scaled, and solved through a thin SVD so that the condition number
// can be checked before any moment is trusted.

package gf

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/hubbardi/matrix"
)

// Default tail-fit policy.
const (
	DefaultTailOrder        = 3
	DefaultTailFraction     = 0.3
	DefaultTailMaxCondition = 1e10
)

// TailOptions tunes the moment fit.
//   - Order: highest moment k fitted (≥ 0).
//   - Fraction: share of the highest Matsubara frequencies used as the fit window, in (0, 1].
//   - MaxCondition: largest acceptable condition number of the column-scaled design matrix.
type TailOptions struct {
	Order        int     `yaml:"order" mapstructure:"order"`
	Fraction     float64 `yaml:"fraction" mapstructure:"fraction"`
	MaxCondition float64 `yaml:"max_condition" mapstructure:"max_condition"`
}

// DefaultTailOptions returns order 3, fraction 0.3, max condition 1e10.
func DefaultTailOptions() TailOptions {
	return TailOptions{
		Order:        DefaultTailOrder,
		Fraction:     DefaultTailFraction,
		MaxCondition: DefaultTailMaxCondition,
	}
}

// Validate rejects nonsensical options.
func (o TailOptions) Validate() error {
	if o.Order < 0 || !(o.Fraction > 0 && o.Fraction <= 1) || !(o.MaxCondition > 1) {
		return gfErrorf("TailOptions.Validate",
			fmt.Errorf("order=%d fraction=%g max_condition=%g: %w", o.Order, o.Fraction, o.MaxCondition, ErrTailFitDegenerate))
	}

	return nil
}

// Window returns the number of highest-frequency samples used out of n:
// max(ceil(Fraction·n), Order+1), capped at n.
func (o TailOptions) Window(n int) int {
	w := int(math.Ceil(o.Fraction * float64(n)))
	w = max(w, o.Order+1)

	return min(w, n)
}

// FitTail fits moments a_0..a_Order of a Matsubara function.
//
// Errors:
//   - ErrUnsupportedMesh: g is not on a Matsubara mesh.
//   - ErrTailFitDegenerate: window < Order+1 samples, or the design matrix
//     condition number exceeds MaxCondition.
func FitTail(g *Gf, opts TailOptions) ([]*matrix.Dense, error) {
	return FitTailFixed(g, nil, opts)
}

// FitTailFixed fits moments a_K..a_Order with a_0..a_{K-1} fixed to known (K = len(known)).
// The returned slice holds all Order+1 moments; the known ones are cloned.
//
// Implementation:
//   - Stage 1: Validate mesh, options and window size.
//   - Stage 2: Build the real-embedded design matrix over the window, scale columns to unit norm.
//   - Stage 3: Thin SVD, reject cond > MaxCondition, solve every matrix element at once.
//
// Complexity: O(W·P²) for the SVD plus O(W·P·Dim²) for the solve (W window, P unknown moments).
func FitTailFixed(g *Gf, known []*matrix.Dense, opts TailOptions) ([]*matrix.Dense, error) {
	const tag = "FitTail"

	// Stage 1: Validate
	if g.mesh.Kind != MatsubaraFreq {
		return nil, gfErrorf(tag, fmt.Errorf("%s: %w", g.mesh.Kind, ErrUnsupportedMesh))
	}
	if err := opts.Validate(); err != nil {
		return nil, gfErrorf(tag, err)
	}
	nKnown := len(known)
	nUnknown := opts.Order + 1 - nKnown
	if nUnknown < 1 {
		return nil, gfErrorf(tag, fmt.Errorf("%d known moments for order %d: %w", nKnown, opts.Order, ErrTailFitDegenerate))
	}
	nFit := opts.Window(g.Len())
	if nFit < opts.Order+1 {
		return nil, gfErrorf(tag, fmt.Errorf("window %d < %d samples: %w", nFit, opts.Order+1, ErrTailFitDegenerate))
	}
	start := g.Len() - nFit
	dim := g.dim

	// Stage 2: Design matrix and right-hand sides
	design := mat.NewDense(2*nFit, 2*nUnknown, nil)
	rhs := mat.NewDense(2*nFit, dim*dim, nil)
	var (
		row, j, k, idx int
		zinv, x        complex128
		y              complex128
	)
	for row = 0; row < nFit; row++ {
		z := g.mesh.Point(start + row)
		zinv = 1 / z
		powers := make([]complex128, opts.Order+1)
		powers[0] = 1
		for k = 1; k <= opts.Order; k++ {
			powers[k] = powers[k-1] * zinv
		}
		for j = 0; j < nUnknown; j++ {
			x = powers[nKnown+j]
			design.Set(2*row, 2*j, real(x))
			design.Set(2*row, 2*j+1, -imag(x))
			design.Set(2*row+1, 2*j, imag(x))
			design.Set(2*row+1, 2*j+1, real(x))
		}
		sample := g.data[start+row].Data()
		for idx = 0; idx < dim*dim; idx++ {
			y = sample[idx]
			for k = 0; k < nKnown; k++ {
				y -= known[k].Data()[idx] * powers[k]
			}
			rhs.Set(2*row, idx, real(y))
			rhs.Set(2*row+1, idx, imag(y))
		}
	}
	scale := make([]float64, 2*nUnknown)
	for j = range scale {
		scale[j] = mat.Norm(design.ColView(j), 2)
		if scale[j] == 0 {
			return nil, gfErrorf(tag, fmt.Errorf("moment column %d vanishes: %w", j, ErrTailFitDegenerate))
		}
		for row = 0; row < 2*nFit; row++ {
			design.Set(row, j, design.At(row, j)/scale[j])
		}
	}

	// Stage 3: SVD solve
	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDThin); !ok {
		return nil, gfErrorf(tag, fmt.Errorf("svd did not converge: %w", ErrTailFitDegenerate))
	}
	values := svd.Values(nil)
	smin := values[len(values)-1]
	if smin == 0 || values[0]/smin > opts.MaxCondition {
		return nil, gfErrorf(tag, fmt.Errorf("condition %g > %g: %w", values[0]/smin, opts.MaxCondition, ErrTailFitDegenerate))
	}
	var sol mat.Dense
	svd.SolveTo(&sol, rhs, len(values))

	moments := make([]*matrix.Dense, opts.Order+1)
	for k = 0; k < nKnown; k++ {
		moments[k] = known[k].Clone()
	}
	for j = 0; j < nUnknown; j++ {
		m, _ := matrix.NewDense(dim, dim)
		d := m.Data()
		for idx = 0; idx < dim*dim; idx++ {
			d[idx] = complex(sol.At(2*j, idx)/scale[2*j], sol.At(2*j+1, idx)/scale[2*j+1])
		}
		moments[nKnown+j] = m
	}

	return moments, nil
}

// EvalTail returns Σ_k a_k z^{-k}.
func EvalTail(moments []*matrix.Dense, z complex128) *matrix.Dense {
	out, _ := matrix.NewDense(moments[0].Rows(), moments[0].Cols())
	p := complex128(1)
	for _, a := range moments {
		_ = matrix.AddInPlace(out, a, p)
		p /= z
	}

	return out
}

// isFinite reports whether v has finite components.
func isFinite(v complex128) bool { return !cmplx.IsNaN(v) && !cmplx.IsInf(v) }
