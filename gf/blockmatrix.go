// SPDX-License-Identifier: MIT
package gf

import (
	"fmt"
	"math/cmplx"

	"github.com/katalvlaran/hubbardi/matrix"
)

// BlockMatrix maps a block name to a Dim×Dim matrix (levels, density matrices, double counting).
type BlockMatrix map[string]*matrix.Dense

// NewBlockMatrix returns zero matrices for every block of s.
func NewBlockMatrix(s *BlockStructure) BlockMatrix {
	out := make(BlockMatrix, s.Len())
	for _, b := range s.blocks {
		out[b.Name], _ = matrix.NewDense(b.Dim, b.Dim)
	}

	return out
}

// NewScaledIdentity returns alpha·I for every block of s.
func NewScaledIdentity(s *BlockStructure, alpha complex128) BlockMatrix {
	out := NewBlockMatrix(s)
	for _, m := range out {
		_ = matrix.AddScaledIdentityInPlace(m, alpha) // square by construction
	}

	return out
}

// Clone deep-copies every block.
func (bm BlockMatrix) Clone() BlockMatrix {
	if bm == nil {
		return nil
	}
	out := make(BlockMatrix, len(bm))
	for k, v := range bm {
		out[k] = v.Clone()
	}

	return out
}

// Real returns the element-wise real part of every block.
func (bm BlockMatrix) Real() BlockMatrix {
	out := make(BlockMatrix, len(bm))
	for k, v := range bm {
		out[k] = v.Real()
	}

	return out
}

// Validate checks that bm has exactly the blocks of s with the right shapes.
func (bm BlockMatrix) Validate(s *BlockStructure) error {
	if len(bm) != s.Len() {
		return gfErrorf("BlockMatrix.Validate", fmt.Errorf("%d blocks, want %d: %w", len(bm), s.Len(), ErrStructureMismatch))
	}
	for _, b := range s.blocks {
		m, ok := bm[b.Name]
		if !ok || m == nil {
			return gfErrorf("BlockMatrix.Validate", fmt.Errorf("block %q: %w", b.Name, ErrUnknownBlock))
		}
		if m.Rows() != b.Dim || m.Cols() != b.Dim {
			return gfErrorf("BlockMatrix.Validate",
				fmt.Errorf("block %q: %dx%d, want %d: %w", b.Name, m.Rows(), m.Cols(), b.Dim, ErrStructureMismatch))
		}
	}

	return nil
}

// Trace returns Σ_blocks Tr(bm[b]) over the blocks of s.
func (bm BlockMatrix) Trace(s *BlockStructure) complex128 {
	var t complex128
	for _, name := range s.Names() {
		if m := bm[name]; m != nil {
			t += m.Trace()
		}
	}

	return t
}

// MaxDiffBlockMatrix returns max |a-b| across the blocks of s.
func MaxDiffBlockMatrix(s *BlockStructure, a, b BlockMatrix) (float64, error) {
	var best float64
	for _, name := range s.Names() {
		d, err := matrix.MaxAbsDiff(a[name], b[name])
		if err != nil {
			return 0, gfErrorf("MaxDiffBlockMatrix", fmt.Errorf("block %q: %w", name, err))
		}
		best = max(best, d)
	}

	return best, nil
}

// Hermitize replaces every block by (m + m†)/2.
func (bm BlockMatrix) Hermitize() {
	for _, m := range bm {
		hermitize(m)
	}
}

func hermitize(m *matrix.Dense) {
	n := m.Rows()
	d := m.Data()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (d[i*n+j] + cmplx.Conj(d[j*n+i])) / 2
			d[i*n+j], d[j*n+i] = v, cmplx.Conj(v)
		}
	}
}
