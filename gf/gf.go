// SPDX-License-Identifier: MIT
// Package gf: matrix-valued Green's functions on a single mesh (Gf) and their
// block-diagonal collections (BlockGf).

package gf

import (
	"fmt"

	"github.com/katalvlaran/hubbardi/matrix"
)

// Gf is a matrix-valued function sampled on a mesh: one Dim×Dim matrix per point.
type Gf struct {
	mesh Mesh
	dim  int
	data []*matrix.Dense
}

// NewGf allocates a zeroed Gf.
//
// Errors: ErrInvalidMesh, matrix.ErrInvalidDimensions.
// Complexity: O(N·Dim²).
func NewGf(mesh Mesh, dim int) (*Gf, error) {
	if err := mesh.Validate(); err != nil {
		return nil, gfErrorf("NewGf", err)
	}
	g := &Gf{mesh: mesh, dim: dim, data: make([]*matrix.Dense, mesh.N)}
	var err error
	for i := range g.data {
		if g.data[i], err = matrix.NewDense(dim, dim); err != nil {
			return nil, gfErrorf("NewGf", err)
		}
	}

	return g, nil
}

// Mesh returns the sampling mesh.
func (g *Gf) Mesh() Mesh { return g.mesh }

// Dim returns the matrix dimension.
func (g *Gf) Dim() int { return g.dim }

// Len returns the number of samples.
func (g *Gf) Len() int { return len(g.data) }

// At returns the matrix at sample i. The matrix is shared, not copied.
func (g *Gf) At(i int) *matrix.Dense { return g.data[i] }

// Data returns the per-sample matrices. Mutating them mutates g.
func (g *Gf) Data() []*matrix.Dense { return g.data }

// Copy returns a deep copy.
func (g *Gf) Copy() *Gf {
	out := &Gf{mesh: g.mesh, dim: g.dim, data: make([]*matrix.Dense, len(g.data))}
	for i, m := range g.data {
		out.data[i] = m.Clone()
	}

	return out
}

// Zero resets every sample.
func (g *Gf) Zero() {
	for _, m := range g.data {
		m.Zero()
	}
}

// compatible checks mesh and dimension equality.
func (g *Gf) compatible(tag string, o *Gf) error {
	if g == nil || o == nil {
		return gfErrorf(tag, matrix.ErrNilMatrix)
	}
	if !g.mesh.Equal(o.mesh) {
		return gfErrorf(tag, fmt.Errorf("%s vs %s: %w", g.mesh, o.mesh, ErrMeshMismatch))
	}
	if g.dim != o.dim {
		return gfErrorf(tag, fmt.Errorf("dim %d vs %d: %w", g.dim, o.dim, matrix.ErrDimensionMismatch))
	}

	return nil
}

// CopyFrom overwrites g with src.
func (g *Gf) CopyFrom(src *Gf) error {
	if err := g.compatible("Gf.CopyFrom", src); err != nil {
		return err
	}
	for i, m := range src.data {
		_ = g.data[i].CopyFrom(m) // same shape, checked above
	}

	return nil
}

// Inverse returns the pointwise matrix inverse.
//
// Errors: matrix.ErrSingular at the first singular sample.
func (g *Gf) Inverse() (*Gf, error) {
	out := &Gf{mesh: g.mesh, dim: g.dim, data: make([]*matrix.Dense, len(g.data))}
	var err error
	for i, m := range g.data {
		if out.data[i], err = matrix.Inverse(m); err != nil {
			return nil, gfErrorf("Gf.Inverse", fmt.Errorf("%s sample %d: %w", g.mesh.Kind, i, err))
		}
	}

	return out, nil
}

// AddInPlace performs g += alpha·o pointwise.
func (g *Gf) AddInPlace(o *Gf, alpha complex128) error {
	if err := g.compatible("Gf.AddInPlace", o); err != nil {
		return err
	}
	for i := range g.data {
		_ = matrix.AddInPlace(g.data[i], o.data[i], alpha)
	}

	return nil
}

// SetZMinus sets g(z) = z·I - levels at every frequency sample z.
// A nil levels matrix means zero. Only frequency meshes are supported.
//
// Errors: ErrUnsupportedMesh, matrix.ErrDimensionMismatch.
func (g *Gf) SetZMinus(levels *matrix.Dense) error {
	if g.mesh.Kind != MatsubaraFreq && g.mesh.Kind != RealFreq {
		return gfErrorf("Gf.SetZMinus", fmt.Errorf("%s: %w", g.mesh.Kind, ErrUnsupportedMesh))
	}
	if levels != nil && (levels.Rows() != g.dim || levels.Cols() != g.dim) {
		return gfErrorf("Gf.SetZMinus", fmt.Errorf("levels %dx%d, dim %d: %w",
			levels.Rows(), levels.Cols(), g.dim, matrix.ErrDimensionMismatch))
	}
	for i, m := range g.data {
		m.Zero()
		if levels != nil {
			_ = matrix.AddInPlace(m, levels, -1)
		}
		_ = matrix.AddScaledIdentityInPlace(m, g.mesh.Point(i))
	}

	return nil
}

// SetScalarFunc sets g(z) = f(z)·I at every frequency sample z.
//
// Errors: ErrUnsupportedMesh.
func (g *Gf) SetScalarFunc(f func(z complex128) complex128) error {
	if g.mesh.Kind != MatsubaraFreq && g.mesh.Kind != RealFreq {
		return gfErrorf("Gf.SetScalarFunc", fmt.Errorf("%s: %w", g.mesh.Kind, ErrUnsupportedMesh))
	}
	for i, m := range g.data {
		m.Zero()
		_ = matrix.AddScaledIdentityInPlace(m, f(g.mesh.Point(i)))
	}

	return nil
}

// MaxDiff returns max_i max|g_i - o_i|.
func (g *Gf) MaxDiff(o *Gf) (float64, error) {
	if err := g.compatible("Gf.MaxDiff", o); err != nil {
		return 0, err
	}
	var best float64
	for i := range g.data {
		d, _ := matrix.MaxAbsDiff(g.data[i], o.data[i])
		best = max(best, d)
	}

	return best, nil
}

// BlockGf is one Gf per block of a BlockStructure; every block shares the mesh.
type BlockGf struct {
	structure *BlockStructure
	mesh      Mesh
	blocks    []*Gf
}

// NewBlockGf allocates zeroed Green's functions for every block of s on mesh.
//
// Errors: ErrInvalidStructure (nil s), ErrInvalidMesh.
func NewBlockGf(s *BlockStructure, mesh Mesh) (*BlockGf, error) {
	if s == nil {
		return nil, gfErrorf("NewBlockGf", ErrInvalidStructure)
	}
	bg := &BlockGf{structure: s, mesh: mesh, blocks: make([]*Gf, s.Len())}
	var err error
	for i, b := range s.blocks {
		if bg.blocks[i], err = NewGf(mesh, b.Dim); err != nil {
			return nil, gfErrorf("NewBlockGf", fmt.Errorf("block %q: %w", b.Name, err))
		}
	}

	return bg, nil
}

// Structure returns the block structure.
func (bg *BlockGf) Structure() *BlockStructure { return bg.structure }

// Mesh returns the shared mesh.
func (bg *BlockGf) Mesh() Mesh { return bg.mesh }

// BlockAt returns the i-th block in structure order.
func (bg *BlockGf) BlockAt(i int) *Gf { return bg.blocks[i] }

// Block returns the named block.
//
// Errors: ErrUnknownBlock.
func (bg *BlockGf) Block(name string) (*Gf, error) {
	i, ok := bg.structure.Index(name)
	if !ok {
		return nil, gfErrorf("BlockGf.Block", fmt.Errorf("%q: %w", name, ErrUnknownBlock))
	}

	return bg.blocks[i], nil
}

// Copy returns a deep copy.
func (bg *BlockGf) Copy() *BlockGf {
	out := &BlockGf{structure: bg.structure, mesh: bg.mesh, blocks: make([]*Gf, len(bg.blocks))}
	for i, g := range bg.blocks {
		out.blocks[i] = g.Copy()
	}

	return out
}

// Zero resets every block.
func (bg *BlockGf) Zero() {
	for _, g := range bg.blocks {
		g.Zero()
	}
}

func (bg *BlockGf) compatible(tag string, o *BlockGf) error {
	if bg == nil || o == nil {
		return gfErrorf(tag, matrix.ErrNilMatrix)
	}
	if !bg.structure.Equal(o.structure) {
		return gfErrorf(tag, fmt.Errorf("%s vs %s: %w", bg.structure, o.structure, ErrStructureMismatch))
	}
	if !bg.mesh.Equal(o.mesh) {
		return gfErrorf(tag, fmt.Errorf("%s vs %s: %w", bg.mesh, o.mesh, ErrMeshMismatch))
	}

	return nil
}

// CopyFrom overwrites bg with src.
func (bg *BlockGf) CopyFrom(src *BlockGf) error {
	if err := bg.compatible("BlockGf.CopyFrom", src); err != nil {
		return err
	}
	for i, g := range src.blocks {
		_ = bg.blocks[i].CopyFrom(g)
	}

	return nil
}

// Inverse returns the blockwise pointwise inverse.
func (bg *BlockGf) Inverse() (*BlockGf, error) {
	out := &BlockGf{structure: bg.structure, mesh: bg.mesh, blocks: make([]*Gf, len(bg.blocks))}
	var err error
	for i, g := range bg.blocks {
		if out.blocks[i], err = g.Inverse(); err != nil {
			return nil, gfErrorf("BlockGf.Inverse", fmt.Errorf("block %q: %w", bg.structure.blocks[i].Name, err))
		}
	}

	return out, nil
}

// Add returns bg + o.
func (bg *BlockGf) Add(o *BlockGf) (*BlockGf, error) { return bg.combine("BlockGf.Add", o, 1) }

// Sub returns bg - o.
func (bg *BlockGf) Sub(o *BlockGf) (*BlockGf, error) { return bg.combine("BlockGf.Sub", o, -1) }

func (bg *BlockGf) combine(tag string, o *BlockGf, alpha complex128) (*BlockGf, error) {
	if err := bg.compatible(tag, o); err != nil {
		return nil, err
	}
	out := bg.Copy()
	for i, g := range out.blocks {
		_ = g.AddInPlace(o.blocks[i], alpha)
	}

	return out, nil
}

// SetZMinus sets every block to z·I - levels[block]; nil levels means zero.
func (bg *BlockGf) SetZMinus(levels BlockMatrix) error {
	for i, g := range bg.blocks {
		var lv *matrix.Dense
		if levels != nil {
			lv = levels[bg.structure.blocks[i].Name]
		}
		if err := g.SetZMinus(lv); err != nil {
			return gfErrorf("BlockGf.SetZMinus", fmt.Errorf("block %q: %w", bg.structure.blocks[i].Name, err))
		}
	}

	return nil
}

// SetScalarFunc sets every block to f(z)·I.
func (bg *BlockGf) SetScalarFunc(f func(z complex128) complex128) error {
	for _, g := range bg.blocks {
		if err := g.SetScalarFunc(f); err != nil {
			return gfErrorf("BlockGf.SetScalarFunc", err)
		}
	}

	return nil
}

// Fill sets every sample of every block to levels[block].
func (bg *BlockGf) Fill(levels BlockMatrix) error {
	if err := levels.Validate(bg.structure); err != nil {
		return gfErrorf("BlockGf.Fill", err)
	}
	for i, g := range bg.blocks {
		src := levels[bg.structure.blocks[i].Name]
		for _, m := range g.data {
			_ = m.CopyFrom(src)
		}
	}

	return nil
}

// MaxDiff returns the largest pointwise deviation over all blocks.
func (bg *BlockGf) MaxDiff(o *BlockGf) (float64, error) {
	if err := bg.compatible("BlockGf.MaxDiff", o); err != nil {
		return 0, err
	}
	var best float64
	for i, g := range bg.blocks {
		d, _ := g.MaxDiff(o.blocks[i])
		best = max(best, d)
	}

	return best, nil
}

// Symmetrize averages every group of degenerate blocks and writes the mean back
// to each member. Groups naming unknown blocks are rejected; blocks not listed
// are left untouched.
//
// Errors: ErrUnknownBlock, matrix.ErrDimensionMismatch (members of different Dim).
func (bg *BlockGf) Symmetrize(degeneracies [][]string) error {
	for _, group := range degeneracies {
		if len(group) < 2 {
			continue
		}
		members := make([]*Gf, len(group))
		for k, name := range group {
			g, err := bg.Block(name)
			if err != nil {
				return gfErrorf("BlockGf.Symmetrize", err)
			}
			if k > 0 && g.dim != members[0].dim {
				return gfErrorf("BlockGf.Symmetrize",
					fmt.Errorf("%q dim %d vs %d: %w", name, g.dim, members[0].dim, matrix.ErrDimensionMismatch))
			}
			members[k] = g
		}
		mean := members[0].Copy()
		for _, g := range members[1:] {
			_ = mean.AddInPlace(g, 1)
		}
		inv := complex(1/float64(len(members)), 0)
		for _, m := range mean.data {
			for idx := range m.Data() {
				m.Data()[idx] *= inv
			}
		}
		for _, g := range members {
			_ = g.CopyFrom(mean)
		}
	}

	return nil
}
