// Package matrix_test contains unit tests for the complex linear-algebra kernels.
package matrix_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/hubbardi/matrix"
)

func TestNewDenseDefaultZero(t *testing.T) {
	for _, tc := range []struct{ rows, cols int }{
		{1, 1},
		{3, 2},
		{6, 6},
	} {
		name := fmt.Sprintf("%dx%d", tc.rows, tc.cols)
		t.Run(name, func(t *testing.T) {
			m := MustDense(t, tc.rows, tc.cols)
			var i, j int
			for i = 0; i < tc.rows; i++ {
				for j = 0; j < tc.cols; j++ {
					if v := MustAt(t, m, i, j); v != 0 {
						t.Fatalf("element [%d,%d] of a new Dense(%dx%d) must be 0", i, j, tc.rows, tc.cols)
					}
				}
			}
		})
	}
}

func TestNewDense_InvalidDimensions(t *testing.T) {
	_, err := matrix.NewDense(0, 3)
	require.ErrorIs(t, err, matrix.ErrInvalidDimensions)
	_, err = matrix.NewDenseFrom(2, 2, []complex128{1, 2, 3})
	require.ErrorIs(t, err, matrix.ErrDimensionMismatch)
}

func TestDense_AtSetBounds(t *testing.T) {
	m := MustDense(t, 2, 2)
	require.NoError(t, m.Set(1, 0, 2+3i))
	assert.Equal(t, 2+3i, MustAt(t, m, 1, 0))

	_, err := m.At(2, 0)
	require.ErrorIs(t, err, matrix.ErrOutOfRange)
	require.ErrorIs(t, m.Set(0, -1, 1), matrix.ErrOutOfRange)
}

func TestAddSubMul(t *testing.T) {
	a := MustFrom(t, 2, 2, 1, 2i, 3, 4)
	b := MustFrom(t, 2, 2, 1i, 1, 0, 2)

	sum, err := matrix.Add(a, b)
	require.NoError(t, err)
	assert.Equal(t, []complex128{1 + 1i, 1 + 2i, 3, 6}, sum.Data())

	diff, err := matrix.Sub(a, b)
	require.NoError(t, err)
	assert.Equal(t, []complex128{1 - 1i, -1 + 2i, 3, 2}, diff.Data())

	prod, err := matrix.Mul(a, b)
	require.NoError(t, err)
	// [1 2i; 3 4]·[i 1; 0 2] = [i, 1+4i; 3i, 11]
	assert.Equal(t, []complex128{1i, 1 + 4i, 3i, 11}, prod.Data())

	_, err = matrix.Mul(a, MustDense(t, 3, 1))
	require.ErrorIs(t, err, matrix.ErrDimensionMismatch)
	_, err = matrix.Add(nil, b)
	require.ErrorIs(t, err, matrix.ErrNilMatrix)
}

func TestConjTranspose(t *testing.T) {
	a := MustFrom(t, 2, 3, 1, 2i, 3, 4-1i, 5, 6i)
	h, err := matrix.ConjTranspose(a)
	require.NoError(t, err)
	require.Equal(t, 3, h.Rows())
	require.Equal(t, 2, h.Cols())
	assert.Equal(t, []complex128{1, 4 + 1i, -2i, 5, 3, -6i}, h.Data())
}

func TestInverse_RoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			a := randomGeneral(n, int64(n))
			inv, err := matrix.Inverse(a)
			require.NoError(t, err)
			prod, err := matrix.Mul(a, inv)
			require.NoError(t, err)
			id, _ := matrix.NewIdentity(n)
			d, err := matrix.MaxAbsDiff(prod, id)
			require.NoError(t, err)
			assert.Less(t, d, 1e-12)
		})
	}
}

func TestInverse_Singular(t *testing.T) {
	for _, tc := range []struct {
		name string
		m    *matrix.Dense
	}{
		{"1x1", MustFrom(t, 1, 1, 0)},
		{"2x2", MustFrom(t, 2, 2, 1, 2, 2, 4)},
		{"3x3", MustFrom(t, 3, 3, 1, 2, 3, 2, 4, 6, 0, 1, 1)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := matrix.Inverse(tc.m)
			require.ErrorIs(t, err, matrix.ErrSingular)
		})
	}
}

func TestLU_Solve(t *testing.T) {
	a := randomGeneral(4, 11)
	f, err := matrix.LU(a)
	require.NoError(t, err)
	want := []complex128{1, 2i, -3, 0.5 + 0.5i}

	b := make([]complex128, 4)
	for i := 0; i < 4; i++ {
		for k := 0; k < 4; k++ {
			b[i] += MustAt(t, a, i, k) * want[k]
		}
	}
	x, err := f.Solve(b)
	require.NoError(t, err)
	for i := range want {
		assert.InDelta(t, real(want[i]), real(x[i]), 1e-12)
		assert.InDelta(t, imag(want[i]), imag(x[i]), 1e-12)
	}

	_, err = f.Solve(b[:2])
	require.ErrorIs(t, err, matrix.ErrDimensionMismatch)
}

func TestScaleAndIdentityShift(t *testing.T) {
	a := MustFrom(t, 2, 2, 1, 1i, -1i, 2)
	s, err := matrix.Scale(a, 2i)
	require.NoError(t, err)
	assert.Equal(t, []complex128{2i, -2, 2, 4i}, s.Data())

	require.NoError(t, matrix.AddScaledIdentityInPlace(a, -1))
	assert.Equal(t, []complex128{0, 1i, -1i, 1}, a.Data())
	assert.Equal(t, complex128(1), a.Trace())

	require.ErrorIs(t, matrix.AddScaledIdentityInPlace(MustDense(t, 2, 3), 1), matrix.ErrNonSquare)
}
