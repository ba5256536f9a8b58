// SPDX-License-Identifier: MIT
package matrix_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/hubbardi/matrix"
)

func TestEigenHermitian_Reconstruct(t *testing.T) {
	for _, n := range []int{1, 2, 3, 6, 10} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			a := randomHermitian(n, 7+int64(n))
			vals, vecs, err := matrix.EigenHermitian(a, 0, 0)
			require.NoError(t, err)
			require.Len(t, vals, n)

			for i := 1; i < n; i++ {
				assert.LessOrEqual(t, vals[i-1], vals[i], "eigenvalues must be ascending")
			}

			// Q†Q = I
			qh, err := matrix.ConjTranspose(vecs)
			require.NoError(t, err)
			qq, err := matrix.Mul(qh, vecs)
			require.NoError(t, err)
			id, _ := matrix.NewIdentity(n)
			d, _ := matrix.MaxAbsDiff(qq, id)
			assert.Less(t, d, 1e-12)

			// Q Λ Q† = A
			diag := make([]complex128, n)
			for i, v := range vals {
				diag[i] = complex(v, 0)
			}
			lam, _ := matrix.NewDiagonal(diag)
			ql, _ := matrix.Mul(vecs, lam)
			back, _ := matrix.Mul(ql, qh)
			d, _ = matrix.MaxAbsDiff(back, a)
			assert.Less(t, d, 1e-11)
		})
	}
}

func TestEigenHermitian_Pauli(t *testing.T) {
	// σ_y has eigenvalues ±1.
	sy := MustFrom(t, 2, 2, 0, -1i, 1i, 0)
	vals, _, err := matrix.EigenHermitian(sy, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, -1, vals[0], 1e-14)
	assert.InDelta(t, 1, vals[1], 1e-14)
}

func TestEigenHermitian_Errors(t *testing.T) {
	_, _, err := matrix.EigenHermitian(MustDense(t, 2, 3), 0, 0)
	require.ErrorIs(t, err, matrix.ErrNonSquare)

	_, _, err = matrix.EigenHermitian(MustFrom(t, 2, 2, 1, 1i, 1i, 1), 0, 0)
	require.ErrorIs(t, err, matrix.ErrNotHermitian)

	_, _, err = matrix.EigenHermitian(randomHermitian(6, 3), 1e-300, 1)
	require.ErrorIs(t, err, matrix.ErrEigenFailed)
}

func TestEigenHermitian_Zero(t *testing.T) {
	vals, vecs, err := matrix.EigenHermitian(MustDense(t, 3, 3), 0, 0)
	require.NoError(t, err)
	for _, v := range vals {
		assert.Equal(t, 0.0, math.Abs(v))
	}
	assert.Equal(t, complex128(3), vecs.Trace())
}
