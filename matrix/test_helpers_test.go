// SPDX-License-Identifier: MIT
// Package matrix_test contains test helpers
//
// Purpose:
//   • Provide small, deterministic fixtures for the complex kernels.
//   • Keep all data finite and well-formed to avoid numeric-policy interference.

package matrix_test

import (
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/katalvlaran/hubbardi/matrix"
)

// MustDense constructs an r×c Dense or fails the test.
func MustDense(t *testing.T, r, c int) *matrix.Dense {
	t.Helper()
	m, err := matrix.NewDense(r, c)
	if err != nil {
		t.Fatalf("NewDense(%d,%d): %v", r, c, err)
	}

	return m
}

// MustFrom builds a Dense from row-major data or fails the test.
func MustFrom(t *testing.T, r, c int, data ...complex128) *matrix.Dense {
	t.Helper()
	m, err := matrix.NewDenseFrom(r, c, data)
	if err != nil {
		t.Fatalf("NewDenseFrom(%d,%d): %v", r, c, err)
	}

	return m
}

// MustAt reads (i,j) or fails the test.
func MustAt(t *testing.T, m *matrix.Dense, i, j int) complex128 {
	t.Helper()
	v, err := m.At(i, j)
	if err != nil {
		t.Fatalf("At(%d,%d): %v", i, j, err)
	}

	return v
}

// randomHermitian returns a reproducible n×n Hermitian matrix.
func randomHermitian(n int, seed int64) *matrix.Dense {
	rng := rand.New(rand.NewSource(seed))
	m, _ := matrix.NewDense(n, n)
	d := m.Data()
	var i, j int
	for i = 0; i < n; i++ {
		d[i*n+i] = complex(rng.Float64()*2-1, 0)
		for j = i + 1; j < n; j++ {
			v := complex(rng.Float64()*2-1, rng.Float64()*2-1)
			d[i*n+j] = v
			d[j*n+i] = cmplx.Conj(v)
		}
	}

	return m
}

// randomGeneral returns a reproducible n×n complex matrix with a dominant diagonal.
func randomGeneral(n int, seed int64) *matrix.Dense {
	rng := rand.New(rand.NewSource(seed))
	m, _ := matrix.NewDense(n, n)
	d := m.Data()
	for i := range d {
		d[i] = complex(rng.Float64()*2-1, rng.Float64()*2-1)
	}
	for i := 0; i < n; i++ {
		d[i*n+i] += complex(float64(n), 0)
	}

	return m
}
