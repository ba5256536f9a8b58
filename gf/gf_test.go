// SPDX-License-Identifier: MIT
package gf_test

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/hubbardi/gf"
	"github.com/katalvlaran/hubbardi/matrix"
)

func spinStructure(t *testing.T, dim int) *gf.BlockStructure {
	t.Helper()
	s, err := gf.NewBlockStructure(gf.Block{Name: "up", Dim: dim}, gf.Block{Name: "down", Dim: dim})
	require.NoError(t, err)

	return s
}

func TestNewBlockStructure_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		blocks []gf.Block
	}{
		{"empty", nil},
		{"zero dim", []gf.Block{{Name: "up", Dim: 1}, {Name: "down", Dim: 0}}},
		{"no name", []gf.Block{{Name: "", Dim: 1}}},
		{"duplicate", []gf.Block{{Name: "up", Dim: 1}, {Name: "up", Dim: 2}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := gf.NewBlockStructure(tc.blocks...)
			require.ErrorIs(t, err, gf.ErrInvalidStructure)
		})
	}
}

func TestBlockStructure_Lookup(t *testing.T) {
	s := gf.MustBlockStructure(gf.Block{Name: "up", Dim: 2}, gf.Block{Name: "down", Dim: 3})
	assert.Equal(t, []string{"up", "down"}, s.Names())
	assert.Equal(t, 5, s.TotalDim())
	d, ok := s.Dim("down")
	assert.True(t, ok)
	assert.Equal(t, 3, d)
	_, ok = s.Index("ud")
	assert.False(t, ok)
	assert.True(t, s.Equal(gf.MustBlockStructure(s.Blocks()...)))
	assert.Equal(t, "[up:2 down:3]", s.String())
}

func TestMesh_Points(t *testing.T) {
	iw, err := gf.NewMatsubaraMesh(10, 4)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/10, imag(iw.Point(0)), 1e-15)
	assert.InDelta(t, 7*math.Pi/10, imag(iw.Point(3)), 1e-15)

	w, err := gf.NewRealMesh(-2, 2, 5, 0.1)
	require.NoError(t, err)
	assert.Equal(t, complex(-2, 0.1), w.Point(0))
	assert.Equal(t, complex(0, 0.1), w.Point(2))
	assert.Equal(t, complex(2, 0.1), w.Point(4))

	tau, err := gf.NewImTimeMesh(5, 11)
	require.NoError(t, err)
	assert.Equal(t, complex128(0), tau.Point(0))
	assert.Equal(t, complex128(5), tau.Point(10))
}

func TestMesh_Invalid(t *testing.T) {
	_, err := gf.NewMatsubaraMesh(0, 10)
	require.ErrorIs(t, err, gf.ErrInvalidMesh)
	_, err = gf.NewImTimeMesh(1, 0)
	require.ErrorIs(t, err, gf.ErrInvalidMesh)
	_, err = gf.NewRealMesh(1, 1, 10, 0.1)
	require.ErrorIs(t, err, gf.ErrInvalidMesh)
	_, err = gf.NewRealMesh(-1, 1, 10, -0.1)
	require.ErrorIs(t, err, gf.ErrInvalidMesh)
}

func TestBlockGf_ShapesAndInverse(t *testing.T) {
	s := spinStructure(t, 2)
	mesh, _ := gf.NewMatsubaraMesh(20, 16)
	g, err := gf.NewBlockGf(s, mesh)
	require.NoError(t, err)
	for i := 0; i < s.Len(); i++ {
		b := g.BlockAt(i)
		require.Equal(t, 16, b.Len())
		require.Equal(t, 2, b.At(0).Rows())
	}

	levels := gf.NewBlockMatrix(s)
	require.NoError(t, levels["up"].Set(0, 1, 0.2))
	require.NoError(t, levels["up"].Set(1, 0, 0.2))
	require.NoError(t, g.SetZMinus(levels))

	inv, err := g.Inverse()
	require.NoError(t, err)
	back, err := inv.Inverse()
	require.NoError(t, err)
	d, err := back.MaxDiff(g)
	require.NoError(t, err)
	assert.Less(t, d, 1e-12)

	sum, err := g.Add(g)
	require.NoError(t, err)
	diff, err := sum.Sub(g)
	require.NoError(t, err)
	d, _ = diff.MaxDiff(g)
	assert.Equal(t, 0.0, d)

	other, _ := gf.NewBlockGf(gf.MustBlockStructure(gf.Block{Name: "up", Dim: 2}), mesh)
	_, err = g.Add(other)
	require.ErrorIs(t, err, gf.ErrStructureMismatch)
}

func TestFitTail_RecoversMoments(t *testing.T) {
	mesh, _ := gf.NewMatsubaraMesh(40, 128)
	g, _ := gf.NewGf(mesh, 1)
	a := []complex128{-1.5, 1, 0.25, 0.7}
	require.NoError(t, g.SetScalarFunc(func(z complex128) complex128 {
		return a[0] + a[1]/z + a[2]/(z*z) + a[3]/(z*z*z)
	}))
	moments, err := gf.FitTail(g, gf.DefaultTailOptions())
	require.NoError(t, err)
	require.Len(t, moments, 4)
	for k := range a {
		v, _ := moments[k].At(0, 0)
		assert.InDelta(t, real(a[k]), real(v), 1e-8, "moment %d", k)
		assert.InDelta(t, 0, imag(v), 1e-8, "moment %d", k)
	}
}

func TestFitTail_Degenerate(t *testing.T) {
	mesh, _ := gf.NewMatsubaraMesh(40, 3)
	g, _ := gf.NewGf(mesh, 1)
	require.NoError(t, g.SetScalarFunc(func(z complex128) complex128 { return 1 / z }))
	_, err := gf.FitTail(g, gf.DefaultTailOptions())
	require.ErrorIs(t, err, gf.ErrTailFitDegenerate)

	tau, _ := gf.NewImTimeMesh(40, 10)
	gt, _ := gf.NewGf(tau, 1)
	_, err = gf.FitTail(gt, gf.DefaultTailOptions())
	require.ErrorIs(t, err, gf.ErrUnsupportedMesh)
}

func TestDensity_FreeLevel(t *testing.T) {
	const beta, eps = 10.0, 0.3
	mesh, _ := gf.NewMatsubaraMesh(beta, 1000)
	g, _ := gf.NewGf(mesh, 1)
	require.NoError(t, g.SetScalarFunc(func(z complex128) complex128 { return 1 / (z - eps) }))
	rho, err := g.Density()
	require.NoError(t, err)
	v, _ := rho.At(0, 0)
	assert.InDelta(t, 1/(math.Exp(beta*eps)+1), real(v), 1e-7)
	assert.Equal(t, 0.0, imag(v))
}

func TestDensity_AwayFromHalfFilling(t *testing.T) {
	cases := []struct {
		beta, eps float64
		n         int
		tol       float64
	}{
		{10, 0.3, 100, 1e-6},
		{10, 0.3, 4000, 1e-8},
		{100, 0.3, 1024, 1e-5},
		{100, -0.4, 1024, 1e-5},
		{40, 0.05, 512, 1e-5},
	}
	for _, tc := range cases {
		mesh, _ := gf.NewMatsubaraMesh(tc.beta, tc.n)
		g, _ := gf.NewGf(mesh, 1)
		require.NoError(t, g.SetScalarFunc(func(z complex128) complex128 { return 1 / (z - complex(tc.eps, 0)) }))
		rho, err := g.Density()
		require.NoError(t, err)
		v, _ := rho.At(0, 0)
		assert.InDelta(t, 1/(math.Exp(tc.beta*tc.eps)+1), real(v), tc.tol, "beta=%g eps=%g n=%d", tc.beta, tc.eps, tc.n)
	}

	// a two-level block with off-diagonal hopping: ρ = f(h)
	mesh, _ := gf.NewMatsubaraMesh(50, 1024)
	g, _ := gf.NewGf(mesh, 2)
	h, _ := matrix.NewDenseFrom(2, 2, []complex128{0.2, 0.1i, -0.1i, -0.3})
	require.NoError(t, g.SetZMinus(h))
	inv, err := g.Inverse()
	require.NoError(t, err)
	rho, err := inv.Density()
	require.NoError(t, err)
	vals, vecs, err := matrix.EigenHermitian(h, 0, 0)
	require.NoError(t, err)
	occ := make([]complex128, len(vals))
	for i, l := range vals {
		occ[i] = complex(1/(math.Exp(50*l)+1), 0)
	}
	diag, _ := matrix.NewDiagonal(occ)
	vh, _ := matrix.ConjTranspose(vecs)
	tmp, _ := matrix.Mul(vecs, diag)
	want, _ := matrix.Mul(tmp, vh)
	d, _ := matrix.MaxAbsDiff(rho, want)
	assert.Less(t, d, 1e-5)
}

func TestSymmetrize(t *testing.T) {
	s := spinStructure(t, 1)
	mesh, _ := gf.NewMatsubaraMesh(10, 8)
	g, _ := gf.NewBlockGf(s, mesh)
	up, _ := g.Block("up")
	down, _ := g.Block("down")
	require.NoError(t, up.SetScalarFunc(func(z complex128) complex128 { return 1 / (z - 1) }))
	require.NoError(t, down.SetScalarFunc(func(z complex128) complex128 { return 1 / (z + 1) }))

	require.NoError(t, g.Symmetrize([][]string{{"up", "down"}}))
	z := mesh.Point(2)
	want := 0.5/(z-1) + 0.5/(z+1)
	for _, b := range []*gf.Gf{up, down} {
		v, _ := b.At(2).At(0, 0)
		assert.InDelta(t, 0, cmplx.Abs(v-want), 1e-15)
	}

	require.ErrorIs(t, g.Symmetrize([][]string{{"up", "ud"}}), gf.ErrUnknownBlock)
}

func TestModels(t *testing.T) {
	z := complex(0, 1000.0)
	assert.InDelta(t, 0, cmplx.Abs(gf.Wilson(1)(z)-1/z), 1e-9)
	assert.InDelta(t, 0, cmplx.Abs(gf.SemiCircular(1)(z)-1/z), 1e-9)

	for _, w := range []float64{-0.7, 0, 0.4} {
		zr := complex(w, 1e-3)
		assert.Less(t, imag(gf.Wilson(1)(zr)), 0.0)
		assert.Less(t, imag(gf.SemiCircular(1)(zr)), 0.0)
	}

	mesh, _ := gf.NewRealMesh(-1, 1, 3, 1e-4)
	g, _ := gf.NewGf(mesh, 1)
	require.NoError(t, g.SetScalarFunc(gf.SemiCircular(1)))
	a, err := g.SpectralTrace()
	require.NoError(t, err)
	assert.InDelta(t, gf.SemiCircularDOS(1)(0), a[1], 1e-3)
}

func TestBlockMatrix_Validate(t *testing.T) {
	s := spinStructure(t, 2)
	bm := gf.NewScaledIdentity(s, 0.5)
	require.NoError(t, bm.Validate(s))
	assert.Equal(t, complex(2, 0), bm.Trace(s))

	delete(bm, "down")
	require.ErrorIs(t, bm.Validate(s), gf.ErrStructureMismatch)

	bm["down"] = matrix.Must(matrix.NewDense(1, 1))
	require.ErrorIs(t, bm.Validate(s), gf.ErrStructureMismatch)
}
