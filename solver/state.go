// SPDX-License-Identifier: MIT
package solver

import (
	"fmt"
	"math"

	"github.com/katalvlaran/hubbardi/gf"
)

// State is everything a Solver owns: the containers on every allocated
// representation, the fitted level matrix and the optional density matrix.
// Containers of representations that were not allocated are nil.
//
// G0Iw is written by the caller before Solve; Solve overwrites the rest.
type State struct {
	Beta      float64
	Structure *gf.BlockStructure
	Grid      Grid

	G0Iw, GIw, SigmaIw *gf.BlockGf
	G0W, GW, SigmaW    *gf.BlockGf
	GTau               *gf.BlockGf
	GL                 *gf.BlockGf

	Eal           gf.BlockMatrix
	DensityMatrix gf.BlockMatrix // nil until a Solve with CalcDm
}

// newState allocates zeroed containers for MatsubaraFreq and every listed kind.
func newState(beta float64, s *gf.BlockStructure, grid Grid, kinds []gf.MeshKind) (*State, error) {
	meshes, err := grid.Meshes(beta)
	if err != nil {
		return nil, err
	}
	want := map[gf.MeshKind]bool{gf.MatsubaraFreq: true}
	for _, k := range kinds {
		want[k] = true
	}
	alloc := func(k gf.MeshKind) (*gf.BlockGf, error) {
		if !want[k] {
			return nil, nil
		}

		return gf.NewBlockGf(s, meshes[k])
	}

	st := &State{Beta: beta, Structure: s, Grid: grid, Eal: gf.NewBlockMatrix(s)}
	for _, slot := range []struct {
		dst  **gf.BlockGf
		kind gf.MeshKind
	}{
		{&st.G0Iw, gf.MatsubaraFreq}, {&st.GIw, gf.MatsubaraFreq}, {&st.SigmaIw, gf.MatsubaraFreq},
		{&st.G0W, gf.RealFreq}, {&st.GW, gf.RealFreq}, {&st.SigmaW, gf.RealFreq},
		{&st.GTau, gf.ImTime},
		{&st.GL, gf.Legendre},
	} {
		if *slot.dst, err = alloc(slot.kind); err != nil {
			return nil, err
		}
	}

	return st, nil
}

// Has reports whether the containers of kind are allocated.
func (st *State) Has(kind gf.MeshKind) bool {
	switch kind {
	case gf.MatsubaraFreq:
		return st.GIw != nil
	case gf.RealFreq:
		return st.GW != nil
	case gf.ImTime:
		return st.GTau != nil
	case gf.Legendre:
		return st.GL != nil
	}

	return false
}

// Kinds returns the allocated representations in MeshKind order.
func (st *State) Kinds() []gf.MeshKind {
	var out []gf.MeshKind
	for _, k := range gf.AllKinds {
		if st.Has(k) {
			out = append(out, k)
		}
	}

	return out
}

// Clone returns a deep copy.
func (st *State) Clone() *State {
	cp := func(g *gf.BlockGf) *gf.BlockGf {
		if g == nil {
			return nil
		}

		return g.Copy()
	}
	out := *st
	out.G0Iw, out.GIw, out.SigmaIw = cp(st.G0Iw), cp(st.GIw), cp(st.SigmaIw)
	out.G0W, out.GW, out.SigmaW = cp(st.G0W), cp(st.GW), cp(st.SigmaW)
	out.GTau, out.GL = cp(st.GTau), cp(st.GL)
	out.Eal = st.Eal.Clone()
	if st.DensityMatrix != nil {
		out.DensityMatrix = st.DensityMatrix.Clone()
	}

	return &out
}

// Validate checks that every allocated container matches beta, structure and grid.
//
// Errors: ErrInvalidConfig.
func (st *State) Validate() error {
	if st == nil || st.Structure == nil {
		return fmt.Errorf("nil state or structure: %w", ErrInvalidConfig)
	}
	if !(st.Beta > 0) || math.IsInf(st.Beta, 0) {
		return fmt.Errorf("beta=%g: %w", st.Beta, ErrInvalidConfig)
	}
	if err := st.Grid.Validate(); err != nil {
		return err
	}
	meshes, err := st.Grid.Meshes(st.Beta)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if st.G0Iw == nil || st.GIw == nil || st.SigmaIw == nil {
		return fmt.Errorf("matsubara containers missing: %w", ErrInvalidConfig)
	}
	for _, c := range []struct {
		name string
		g    *gf.BlockGf
		kind gf.MeshKind
	}{
		{"G0_iw", st.G0Iw, gf.MatsubaraFreq}, {"G_iw", st.GIw, gf.MatsubaraFreq}, {"Sigma_iw", st.SigmaIw, gf.MatsubaraFreq},
		{"G0_w", st.G0W, gf.RealFreq}, {"G_w", st.GW, gf.RealFreq}, {"Sigma_w", st.SigmaW, gf.RealFreq},
		{"G_tau", st.GTau, gf.ImTime},
		{"G_l", st.GL, gf.Legendre},
	} {
		if c.g == nil {
			continue
		}
		if !c.g.Structure().Equal(st.Structure) || !c.g.Mesh().Equal(meshes[c.kind]) {
			return fmt.Errorf("%s: structure %s mesh %s: %w", c.name, c.g.Structure(), c.g.Mesh(), ErrInvalidConfig)
		}
	}
	if (st.G0W == nil) != (st.GW == nil) || (st.GW == nil) != (st.SigmaW == nil) {
		return fmt.Errorf("real-frequency containers incomplete: %w", ErrInvalidConfig)
	}
	if err := st.Eal.Validate(st.Structure); err != nil {
		return fmt.Errorf("eal: %w: %w", ErrInvalidConfig, err)
	}
	if st.DensityMatrix != nil {
		if err := st.DensityMatrix.Validate(st.Structure); err != nil {
			return fmt.Errorf("density matrix: %w: %w", ErrInvalidConfig, err)
		}
	}

	return nil
}
