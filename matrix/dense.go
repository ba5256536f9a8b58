// SPDX-License-Identifier: MIT
// Package matrix: the complex row-major Dense type.

package matrix

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
)

func denseErrorf(method string, row, col int, err error) error {
	return fmt.Errorf("Dense.%s(%d,%d): %w", method, row, col, err)
}

// Dense is an r×c matrix of complex128 stored row-major in one slice.
type Dense struct {
	r, c int
	data []complex128 // len == r*c
}

// NewDense returns a zero r×c matrix.
//
// Errors: ErrInvalidDimensions if rows or cols is not positive.
func NewDense(rows, cols int) (*Dense, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("NewDense(%d,%d): %w", rows, cols, ErrInvalidDimensions)
	}

	return &Dense{r: rows, c: cols, data: make([]complex128, rows*cols)}, nil
}

// NewDenseFrom copies row-major data into a new rows×cols matrix.
//
// Errors: ErrInvalidDimensions, ErrDimensionMismatch (len(data) != rows*cols).
func NewDenseFrom(rows, cols int, data []complex128) (*Dense, error) {
	m, err := NewDense(rows, cols)
	if err != nil {
		return nil, err
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("NewDenseFrom: len(data)=%d for %dx%d: %w", len(data), rows, cols, ErrDimensionMismatch)
	}
	copy(m.data, data)

	return m, nil
}

// NewIdentity returns the n×n identity.
func NewIdentity(n int) (*Dense, error) {
	m, err := NewDense(n, n)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		m.data[i*n+i] = 1
	}

	return m, nil
}

// NewDiagonal returns diag(d).
func NewDiagonal(d []complex128) (*Dense, error) {
	n := len(d)
	m, err := NewDense(n, n)
	if err != nil {
		return nil, err
	}
	for i, v := range d {
		m.data[i*n+i] = v
	}

	return m, nil
}

func (m *Dense) Rows() int { return m.r }
func (m *Dense) Cols() int { return m.c }

// Data exposes the backing slice; writes go straight into the matrix.
func (m *Dense) Data() []complex128 { return m.data }

func (m *Dense) indexOf(method string, row, col int) (int, error) {
	if row < 0 || row >= m.r || col < 0 || col >= m.c {
		return 0, denseErrorf(method, row, col, ErrOutOfRange)
	}

	return row*m.c + col, nil
}

// At returns m[row, col].
//
// Errors: ErrOutOfRange.
func (m *Dense) At(row, col int) (complex128, error) {
	idx, err := m.indexOf("At", row, col)
	if err != nil {
		return 0, err
	}

	return m.data[idx], nil
}

// Set stores v at (row, col).
//
// Errors: ErrOutOfRange, ErrNaNInf.
func (m *Dense) Set(row, col int, v complex128) error {
	idx, err := m.indexOf("Set", row, col)
	if err != nil {
		return err
	}
	if cmplx.IsNaN(v) || cmplx.IsInf(v) {
		return denseErrorf("Set", row, col, ErrNaNInf)
	}
	m.data[idx] = v

	return nil
}

// Zero clears m in place.
func (m *Dense) Zero() { clear(m.data) }

// CopyFrom overwrites m with src.
//
// Errors: ErrNilMatrix, ErrDimensionMismatch.
func (m *Dense) CopyFrom(src *Dense) error {
	if err := ValidateBinarySameShape(m, src); err != nil {
		return matrixErrorf("CopyFrom", err)
	}
	copy(m.data, src.data)

	return nil
}

// Clone returns a deep copy.
func (m *Dense) Clone() *Dense {
	return &Dense{r: m.r, c: m.c, data: append([]complex128(nil), m.data...)}
}

// Real returns a copy with every imaginary part dropped.
func (m *Dense) Real() *Dense {
	out := &Dense{r: m.r, c: m.c, data: make([]complex128, len(m.data))}
	for i, v := range m.data {
		out.data[i] = complex(real(v), 0)
	}

	return out
}

// Trace returns Σ m[i,i] over the leading square part.
func (m *Dense) Trace() complex128 {
	var s complex128
	for i := 0; i < min(m.r, m.c); i++ {
		s += m.data[i*m.c+i]
	}

	return s
}

// MaxAbs returns max |m[i,j]|.
func (m *Dense) MaxAbs() float64 {
	var best float64
	for _, v := range m.data {
		best = math.Max(best, cmplx.Abs(v))
	}

	return best
}

// String prints one bracketed row per line.
func (m *Dense) String() string {
	var sb strings.Builder
	for i := 0; i < m.r; i++ {
		row := m.data[i*m.c : (i+1)*m.c]
		sb.WriteByte('[')
		for j, v := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%g", v)
		}
		sb.WriteString("]\n")
	}

	return sb.String()
}

// Must returns m or panics on err.
func Must(m *Dense, err error) *Dense {
	if err != nil {
		panic(err)
	}

	return m
}
