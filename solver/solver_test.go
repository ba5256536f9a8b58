// SPDX-License-Identifier: MIT
package solver_test

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/hubbardi/atomdiag"
	"github.com/katalvlaran/hubbardi/gf"
	"github.com/katalvlaran/hubbardi/matrix"
	"github.com/katalvlaran/hubbardi/operator"
	"github.com/katalvlaran/hubbardi/solver"
)

var spinBlocks = []gf.Block{{Name: "up", Dim: 1}, {Name: "down", Dim: 1}}

func TestNew_Shapes(t *testing.T) {
	s, err := solver.New(10, []gf.Block{{Name: "up", Dim: 2}, {Name: "down", Dim: 3}},
		solver.WithNIw(8), solver.WithNTau(5), solver.WithNL(4), solver.WithNW(6))
	require.NoError(t, err)
	st := s.State()
	assert.Equal(t, 10.0, st.Beta)
	assert.Equal(t, []gf.MeshKind{gf.MatsubaraFreq, gf.RealFreq, gf.ImTime, gf.Legendre}, st.Kinds())

	cases := []struct {
		name string
		g    *gf.BlockGf
		kind gf.MeshKind
		n    int
	}{
		{"G0_iw", st.G0Iw, gf.MatsubaraFreq, 8}, {"G_iw", st.GIw, gf.MatsubaraFreq, 8},
		{"Sigma_iw", st.SigmaIw, gf.MatsubaraFreq, 8},
		{"G0_w", st.G0W, gf.RealFreq, 6}, {"G_w", st.GW, gf.RealFreq, 6}, {"Sigma_w", st.SigmaW, gf.RealFreq, 6},
		{"G_tau", st.GTau, gf.ImTime, 5}, {"G_l", st.GL, gf.Legendre, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NotNil(t, tc.g)
			assert.Equal(t, tc.kind, tc.g.Mesh().Kind)
			for bi, dim := range []int{2, 3} {
				b := tc.g.BlockAt(bi)
				assert.Equal(t, tc.n, b.Len())
				assert.Equal(t, dim, b.Dim())
				assert.Zero(t, b.At(0).MaxAbs())
			}
		})
	}

	assert.Equal(t, []operator.Index{
		{Block: "up", Orbital: 0}, {Block: "up", Orbital: 1},
		{Block: "down", Orbital: 0}, {Block: "down", Orbital: 1}, {Block: "down", Orbital: 2},
	}, s.Fops())
	assert.Nil(t, st.DensityMatrix)
}

func TestNew_InvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		beta   float64
		blocks []gf.Block
		opts   []solver.Option
	}{
		{"zero beta", 0, spinBlocks, nil},
		{"negative beta", -1, spinBlocks, nil},
		{"infinite beta", math.Inf(1), spinBlocks, nil},
		{"no blocks", 10, nil, nil},
		{"zero dim", 10, []gf.Block{{Name: "up", Dim: 0}}, nil},
		{"duplicate", 10, []gf.Block{{Name: "up", Dim: 1}, {Name: "up", Dim: 1}}, nil},
		{"empty name", 10, []gf.Block{{Name: "", Dim: 1}}, nil},
		{"n_iw", 10, spinBlocks, []solver.Option{solver.WithNIw(0)}},
		{"n_tau", 10, spinBlocks, []solver.Option{solver.WithNTau(0)}},
		{"window", 10, spinBlocks, []solver.Option{solver.WithRealWindow(1, -1)}},
		{"idelta", 10, spinBlocks, []solver.Option{solver.WithBroadening(-0.1)}},
		{"tail", 10, spinBlocks, []solver.Option{solver.WithTailFit(gf.TailOptions{Order: 3, Fraction: 0})}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := solver.New(tc.beta, tc.blocks, tc.opts...)
			require.ErrorIs(t, err, solver.ErrInvalidConfig)
		})
	}
}

// atomLevels returns the thermal weights of the single-band Hubbard atom with level e.
func atomLevels(beta, e, u float64) (w0, w1, w2 float64) {
	// shift by the lowest energy to keep the exponentials finite
	e0 := math.Min(0, math.Min(e, 2*e+u))
	a, b, c := math.Exp(-beta*(0-e0)), math.Exp(-beta*(e-e0)), math.Exp(-beta*(2*e+u-e0))
	z := a + 2*b + c

	return a / z, b / z, c / z
}

func singleBand(t *testing.T, opts ...solver.Option) (*solver.Solver, float64) {
	t.Helper()
	const beta, d, v, u = 50.0, 1.0, 0.2, 4.0
	ef := -u / 2
	s, err := solver.New(beta, spinBlocks, append([]solver.Option{
		solver.WithNIw(512), solver.WithNTau(101), solver.WithNL(20), solver.WithNW(64),
		solver.WithRealWindow(-6, 6), solver.WithBroadening(0.05),
	}, opts...)...)
	require.NoError(t, err)
	wilson := gf.Wilson(d)
	require.NoError(t, s.State().G0Iw.SetScalarFunc(func(z complex128) complex128 {
		return 1 / (z - complex(ef, 0) - complex(v*v, 0)*wilson(z))
	}))

	return s, u
}

func TestSolve_SingleBandHubbardAtom(t *testing.T) {
	s, u := singleBand(t)
	res, err := s.Solve(context.Background(), operator.HubbardInteraction(u, 1),
		solver.SolveOptions{CalcGw: true, CalcGtau: true, CalcGl: true, CalcDm: true})
	require.NoError(t, err)
	st := s.State()

	e, _ := st.Eal["up"].At(0, 0)
	require.InDelta(t, -u/2, real(e), 1e-8, "static level from the hybridization tail")
	assert.Equal(t, res.Eal["up"].Data(), st.Eal["up"].Data())
	ed := real(e)

	w0, w1, w2 := atomLevels(st.Beta, ed, u)
	n := w1 + w2
	gAtom := func(z complex128) complex128 {
		return complex(w0+w1, 0)/(z-complex(ed, 0)) + complex(w1+w2, 0)/(z-complex(ed+u, 0))
	}
	sigmaAtom := func(z complex128) complex128 {
		return complex(u*n, 0) + complex(u*u*n*(1-n), 0)/(z-complex(ed+u*(1-n), 0))
	}

	for _, tc := range []struct {
		name  string
		g, sg *gf.BlockGf
	}{{"iw", st.GIw, st.SigmaIw}, {"w", st.GW, st.SigmaW}} {
		t.Run(tc.name, func(t *testing.T) {
			mesh := tc.g.Mesh()
			for bi := 0; bi < 2; bi++ {
				for i := 0; i < mesh.Len(); i++ {
					z := mesh.Point(i)
					g, _ := tc.g.BlockAt(bi).At(i).At(0, 0)
					sg, _ := tc.sg.BlockAt(bi).At(i).At(0, 0)
					require.InDelta(t, 0, cmplx.Abs(g-gAtom(z)), 1e-8, "G block %d point %d", bi, i)
					require.InDelta(t, 0, cmplx.Abs(sg-sigmaAtom(z)), 1e-8, "Σ block %d point %d", bi, i)
				}
			}
		})
	}

	z := st.G0W.Mesh().Point(3)
	g0, _ := st.G0W.BlockAt(0).At(3).At(0, 0)
	assert.InDelta(t, 0, cmplx.Abs(g0-1/(z-complex(ed, 0))), 1e-12)

	for _, name := range []string{"up", "down"} {
		v, _ := st.DensityMatrix[name].At(0, 0)
		assert.InDelta(t, n, real(v), 1e-12)
	}
	assert.InDelta(t, 0.5, n, 1e-8)

	// G(τ=0) + G(τ=β) = -1 for a fermion
	last := st.GTau.Mesh().Len() - 1
	g0t, _ := st.GTau.BlockAt(0).At(0).At(0, 0)
	gbt, _ := st.GTau.BlockAt(0).At(last).At(0, 0)
	assert.InDelta(t, -1, real(g0t+gbt), 1e-12)

	require.NotNil(t, res.Spectrum)
	assert.InDelta(t, ed, res.Spectrum.GroundStateEnergy(), 1e-12)
	assert.Contains(t, res.Hamiltonian.String(), "c†(up,0)")
}

func TestSolve_Idempotent(t *testing.T) {
	s, u := singleBand(t)
	h := operator.HubbardInteraction(u, 1)
	_, err := s.Solve(context.Background(), h, solver.SolveOptions{CalcGw: true, CalcDm: true})
	require.NoError(t, err)
	first := s.State().Clone()

	_, err = s.Solve(context.Background(), h, solver.SolveOptions{CalcGw: true, CalcDm: true})
	require.NoError(t, err)
	for _, pair := range [][2]*gf.BlockGf{
		{first.GIw, s.State().GIw}, {first.SigmaIw, s.State().SigmaIw},
		{first.GW, s.State().GW}, {first.SigmaW, s.State().SigmaW}, {first.G0W, s.State().G0W},
	} {
		d, err := pair[0].MaxDiff(pair[1])
		require.NoError(t, err)
		assert.Zero(t, d)
	}
	d, err := gf.MaxDiffBlockMatrix(first.Structure, first.DensityMatrix, s.State().DensityMatrix)
	require.NoError(t, err)
	assert.Zero(t, d)
}

type failingDiag struct{}

func (failingDiag) Diagonalize(*operator.Expr, []operator.Index) (atomdiag.Spectrum, error) {
	return nil, errors.New("no convergence")
}

func TestSolve_FailureLeavesStateUntouched(t *testing.T) {
	s, u := singleBand(t, solver.WithDiagonalizer(failingDiag{}))
	before := s.State().Clone()
	_, err := s.Solve(context.Background(), operator.HubbardInteraction(u, 1), solver.SolveOptions{CalcDm: true})
	require.ErrorIs(t, err, solver.ErrDiagonalizationFailed)
	assert.Contains(t, err.Error(), "no convergence")

	d, _ := before.GIw.MaxDiff(s.State().GIw)
	assert.Zero(t, d)
	assert.Nil(t, s.State().DensityMatrix)
	e, _ := s.State().Eal["up"].At(0, 0)
	assert.Zero(t, e)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s2, _ := singleBand(t)
	_, err = s2.Solve(ctx, operator.HubbardInteraction(u, 1), solver.SolveOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSolve_UnsupportedRepresentation(t *testing.T) {
	s, err := solver.New(10, spinBlocks, solver.WithNIw(64), solver.WithRepresentations(gf.ImTime))
	require.NoError(t, err)
	assert.Nil(t, s.State().GW)
	assert.Nil(t, s.State().GL)
	require.NotNil(t, s.State().GTau)

	for _, so := range []solver.SolveOptions{{CalcGw: true}, {CalcGl: true}} {
		_, err = s.Solve(context.Background(), nil, so)
		require.ErrorIs(t, err, solver.ErrUnsupportedRepresentation)
	}
}

func TestSolve_TailWindowTooNarrow(t *testing.T) {
	s, err := solver.New(10, spinBlocks, solver.WithNIw(3))
	require.NoError(t, err)
	require.NoError(t, s.State().G0Iw.SetScalarFunc(func(z complex128) complex128 { return 1 / (z + 1) }))

	_, err = s.Solve(context.Background(), operator.HubbardInteraction(1, 1), solver.SolveOptions{})
	require.ErrorIs(t, err, solver.ErrTailFitDegenerate)
	require.ErrorIs(t, err, gf.ErrTailFitDegenerate)
}

func TestSolve_SingularG0(t *testing.T) {
	s, err := solver.New(10, spinBlocks, solver.WithNIw(16))
	require.NoError(t, err)
	_, err = s.Solve(context.Background(), nil, solver.SolveOptions{})
	require.ErrorIs(t, err, matrix.ErrSingular)
}

func TestSolve_FiveOrbitalSlater(t *testing.T) {
	const beta, u, j, mu = 200.0, 6.0, 0.6, 1.0
	blocks := []gf.Block{{Name: "up", Dim: 5}, {Name: "down", Dim: 5}}
	s, err := solver.New(beta, blocks, solver.WithNIw(256), solver.WithRepresentations())
	require.NoError(t, err)
	require.NoError(t, s.State().G0Iw.SetScalarFunc(func(z complex128) complex128 { return 1 / (z + mu) }))
	h, err := operator.SlaterHamiltonian(2, u, j)
	require.NoError(t, err)

	res, err := s.Solve(context.Background(), h, solver.SolveOptions{CalcDm: true})
	require.NoError(t, err)
	st := s.State()

	// One electron in a rotationally invariant shell: ten degenerate ground states.
	assert.InDelta(t, -mu, res.Spectrum.GroundStateEnergy(), 1e-10)
	var total float64
	for _, name := range []string{"up", "down"} {
		eal, dm := st.Eal[name].Data(), st.DensityMatrix[name].Data()
		for a := 0; a < 5; a++ {
			for b := 0; b < 5; b++ {
				wantE, wantN := 0.0, 0.0
				if a == b {
					wantE, wantN = -mu, 0.1
				}
				require.InDelta(t, wantE, real(eal[a*5+b]), 1e-10, "eal %s[%d,%d]", name, a, b)
				require.InDelta(t, 0, cmplx.Abs(dm[a*5+b]-complex(wantN, 0)), 1e-10, "dm %s[%d,%d]", name, a, b)
			}
		}
		total += real(st.DensityMatrix[name].Trace())
	}
	assert.InDelta(t, 1, total, 1e-10)

	// Spin symmetry and orbital degeneracy of G.
	d, err := st.GIw.BlockAt(0).MaxDiff(st.GIw.BlockAt(1))
	require.NoError(t, err)
	assert.Less(t, d, 1e-12)
	for i := 0; i < st.GIw.Mesh().Len(); i += 37 {
		m := st.GIw.BlockAt(0).At(i).Data()
		for a := 0; a < 5; a++ {
			for b := 0; b < 5; b++ {
				if a == b {
					require.InDelta(t, 0, cmplx.Abs(m[a*5+b]-m[0]), 1e-12)
				} else {
					require.InDelta(t, 0, cmplx.Abs(m[a*5+b]), 1e-12)
				}
			}
		}
	}
}

func TestSolve_FiveOrbitalSlaterBethe(t *testing.T) {
	const beta, u, j, mu, d = 40.0, 4.0, 1.0, 25.0, 1.0
	const t2 = d * d / 4
	blocks := []gf.Block{{Name: "up", Dim: 5}, {Name: "down", Dim: 5}}
	s, err := solver.New(beta, blocks, solver.WithNIw(30), solver.WithRepresentations())
	require.NoError(t, err)
	h, err := operator.SlaterHamiltonian(2, u, j)
	require.NoError(t, err)

	sc := gf.SemiCircular(d)
	require.NoError(t, s.State().G0Iw.SetScalarFunc(func(z complex128) complex128 {
		return 1 / (z + mu - t2*sc(z))
	}))
	_, err = s.Solve(context.Background(), h, solver.SolveOptions{})
	require.NoError(t, err)

	// One Bethe-lattice update: G0⁻¹ = iω + μ - t²·G.
	st := s.State()
	shift := matrix.Must(matrix.NewDiagonal([]complex128{-mu, -mu, -mu, -mu, -mu}))
	for i := range blocks {
		g0 := st.G0Iw.BlockAt(i)
		require.NoError(t, g0.SetZMinus(shift))
		require.NoError(t, g0.AddInPlace(st.GIw.BlockAt(i), -t2))
		inv, err := g0.Inverse()
		require.NoError(t, err)
		require.NoError(t, g0.CopyFrom(inv))
	}
	res, err := s.Solve(context.Background(), h, solver.SolveOptions{CalcDm: true})
	require.NoError(t, err)
	st = s.State()

	// Filling: rotational symmetry spreads the charge evenly over the ten spin-orbitals.
	var total float64
	n0 := real(st.DensityMatrix["up"].Data()[0])
	for _, name := range []string{"up", "down"} {
		eal, dm := st.Eal[name].Data(), st.DensityMatrix[name].Data()
		for a := 0; a < 5; a++ {
			for b := 0; b < 5; b++ {
				wantE, wantN, tol := 0.0, 0.0, 1e-10
				if a == b {
					wantE, wantN, tol = -mu, n0, 0.1
				}
				require.InDelta(t, wantE, real(eal[a*5+b]), tol, "eal %s[%d,%d]", name, a, b)
				require.InDelta(t, 0, cmplx.Abs(dm[a*5+b]-complex(wantN, 0)), 1e-10, "dm %s[%d,%d]", name, a, b)
			}
		}
		total += real(st.DensityMatrix[name].Trace())
	}
	assert.Greater(t, total, 0.0)
	assert.Less(t, total, 10.0)
	assert.InDelta(t, 10*n0, total, 1e-10)

	// Sum rules of the atomic propagator on a long mesh: iω·G → I and its
	// Matsubara density matches the thermal density matrix.
	long, err := gf.NewMatsubaraMesh(beta, 4000)
	require.NoError(t, err)
	gat, err := res.Spectrum.GreenFunction(beta, st.Structure, long)
	require.NoError(t, err)
	last := long.Point(long.Len() - 1)
	for i, name := range []string{"up", "down"} {
		m := gat.BlockAt(i).At(long.Len() - 1).Data()
		for a := 0; a < 5; a++ {
			assert.InDelta(t, 1, real(last*m[a*5+a]), 1e-2, "%s[%d] tail", name, a)
		}
		rho, err := gat.BlockAt(i).Density()
		require.NoError(t, err)
		diff, err := matrix.MaxAbsDiff(rho, st.DensityMatrix[name])
		require.NoError(t, err)
		assert.Less(t, diff, 1e-3, "%s density", name)
	}

	// Degeneracy and causality of the interacting G.
	dd, err := st.GIw.BlockAt(0).MaxDiff(st.GIw.BlockAt(1))
	require.NoError(t, err)
	assert.Less(t, dd, 1e-12)
	for i := 0; i < st.GIw.Mesh().Len(); i++ {
		m := st.GIw.BlockAt(0).At(i).Data()
		require.Less(t, imag(m[0]), 0.0, "Im G at n=%d", i)
		for a := 0; a < 5; a++ {
			for b := 0; b < 5; b++ {
				if a == b {
					require.InDelta(t, 0, cmplx.Abs(m[a*5+b]-m[0]), 1e-10)
				} else {
					require.InDelta(t, 0, cmplx.Abs(m[a*5+b]), 1e-10)
				}
			}
		}
	}
}

func TestRestore(t *testing.T) {
	s, u := singleBand(t)
	_, err := s.Solve(context.Background(), operator.HubbardInteraction(u, 1), solver.SolveOptions{CalcDm: true})
	require.NoError(t, err)

	r, err := solver.Restore(s.State().Clone())
	require.NoError(t, err)
	assert.Equal(t, s.Fops(), r.Fops())
	assert.Equal(t, s.State().Kinds(), r.State().Kinds())
	_, err = r.Solve(context.Background(), operator.HubbardInteraction(u, 1), solver.SolveOptions{CalcGw: true})
	require.NoError(t, err)
	d, _ := s.State().GIw.MaxDiff(r.State().GIw)
	assert.Zero(t, d)

	broken := s.State().Clone()
	broken.GIw = nil
	_, err = solver.Restore(broken)
	require.ErrorIs(t, err, solver.ErrInvalidConfig)

	broken = s.State().Clone()
	broken.Grid.NIw++
	_, err = solver.Restore(broken)
	require.ErrorIs(t, err, solver.ErrInvalidConfig)
}
