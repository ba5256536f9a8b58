// SPDX-License-Identifier: MIT
package gf

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/katalvlaran/hubbardi/matrix"
)

// Density returns the single-particle density matrix ρ_ij = ⟨c†_j c_i⟩ = G_ij(τ=β⁻)·(-1).
//
// Implementation per mesh kind:
//   - MatsubaraFreq: the 1/z moment is fixed to I, a_2 and a_3 are fitted on the
//     default tail window and hermitized, so the 1/z³ term sums to zero; then ρ = (1/β)Σ_{n≥0}[R_n + R_n†] + a_1/2 - a_2·β/4 with
//     R_n = G(iω_n) - Σ_{k=1..3} a_k (iω_n)^{-k}.
//   - ImTime: ρ = -G(β), the last sample.
//   - Legendre: ρ = -(1/β)Σ_l √(2l+1) G_l.
//   - RealFreq: ErrUnsupportedMesh.
//
// The result is hermitized.
func (g *Gf) Density() (*matrix.Dense, error) {
	const tag = "Gf.Density"
	var (
		rho *matrix.Dense
		err error
	)
	switch g.mesh.Kind {
	case MatsubaraFreq:
		rho, err = g.matsubaraDensity()
		if err != nil {
			return nil, gfErrorf(tag, err)
		}
	case ImTime:
		rho, _ = matrix.Scale(g.data[len(g.data)-1], -1)
	case Legendre:
		rho, _ = matrix.NewDense(g.dim, g.dim)
		for l, m := range g.data {
			_ = matrix.AddInPlace(rho, m, complex(-math.Sqrt(float64(2*l+1))/g.mesh.Beta, 0))
		}
	default:
		return nil, gfErrorf(tag, fmt.Errorf("%s: %w", g.mesh.Kind, ErrUnsupportedMesh))
	}
	for _, v := range rho.Data() {
		if !isFinite(v) {
			return nil, gfErrorf(tag, matrix.ErrNaNInf)
		}
	}
	hermitize(rho)

	return rho, nil
}

func (g *Gf) matsubaraDensity() (*matrix.Dense, error) {
	zero, _ := matrix.NewDense(g.dim, g.dim)
	one, _ := matrix.NewIdentity(g.dim)
	opts := DefaultTailOptions()
	moments, err := FitTailFixed(g, []*matrix.Dense{zero, one}, opts)
	if err != nil {
		return nil, err
	}
	for _, a := range moments[2:] {
		hermitize(a)
	}
	beta := g.mesh.Beta
	rho, _ := matrix.NewDense(g.dim, g.dim)
	d := rho.Data()
	n := g.dim
	for w, sample := range g.data {
		tail := EvalTail(moments, g.mesh.Point(w))
		s := sample.Data()
		t := tail.Data()
		var i, j int
		for i = 0; i < n; i++ {
			for j = 0; j < n; j++ {
				r := s[i*n+j] - t[i*n+j]
				rt := cmplx.Conj(s[j*n+i] - t[j*n+i])
				d[i*n+j] += r + rt
			}
		}
	}
	for idx := range d {
		d[idx] /= complex(beta, 0)
	}
	_ = matrix.AddInPlace(rho, moments[1], 0.5)
	_ = matrix.AddInPlace(rho, moments[2], complex(-beta/4, 0))

	return rho, nil
}

// Density returns the density matrix of every block.
func (bg *BlockGf) Density() (BlockMatrix, error) {
	out := make(BlockMatrix, len(bg.blocks))
	for i, g := range bg.blocks {
		rho, err := g.Density()
		if err != nil {
			return nil, gfErrorf("BlockGf.Density", fmt.Errorf("block %q: %w", bg.structure.blocks[i].Name, err))
		}
		out[bg.structure.blocks[i].Name] = rho
	}

	return out, nil
}

// TotalDensity returns Re Σ_blocks Tr ρ.
func (bg *BlockGf) TotalDensity() (float64, error) {
	dm, err := bg.Density()
	if err != nil {
		return 0, err
	}

	return real(dm.Trace(bg.structure)), nil
}

// SpectralTrace returns A(ω) = -Im Tr G(ω+iη)/π for a real-frequency function.
//
// Errors: ErrUnsupportedMesh.
func (g *Gf) SpectralTrace() ([]float64, error) {
	if g.mesh.Kind != RealFreq {
		return nil, gfErrorf("Gf.SpectralTrace", fmt.Errorf("%s: %w", g.mesh.Kind, ErrUnsupportedMesh))
	}
	out := make([]float64, len(g.data))
	for i, m := range g.data {
		out[i] = -imag(m.Trace()) / math.Pi
	}

	return out, nil
}
