// SPDX-License-Identifier: MIT
package solver

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/katalvlaran/hubbardi/atomdiag"
	"github.com/katalvlaran/hubbardi/gf"
	"github.com/katalvlaran/hubbardi/operator"
)

// SolveOptions selects the optional outputs of Solve. G_iw and Σ_iw are always computed.
type SolveOptions struct {
	CalcGtau bool `yaml:"calc_gtau" mapstructure:"calc_gtau"`
	CalcGw   bool `yaml:"calc_gw" mapstructure:"calc_gw"`
	CalcGl   bool `yaml:"calc_gl" mapstructure:"calc_gl"`
	CalcDm   bool `yaml:"calc_dm" mapstructure:"calc_dm"`
}

// SolveResult carries the by-products of one Solve.
type SolveResult struct {
	Hamiltonian *operator.Expr    // h_int + Σ eal c†c
	Eal         gf.BlockMatrix    // fitted static levels (copy of State().Eal)
	Spectrum    atomdiag.Spectrum // eigensystem of Hamiltonian
}

// Solver is a Hubbard-I impurity solver: the impurity is replaced by the isolated
// atom with levels taken from the hybridization tail.
type Solver struct {
	state *State
	fops  []operator.Index
	opts  Options
}

// New allocates a Solver with zeroed containers for blocks at inverse temperature beta.
//
// Errors: ErrInvalidConfig (beta ≤ 0 or non-finite, invalid grid, invalid tail
// options, empty structure, empty/duplicate names, Dim < 1).
func New(beta float64, blocks []gf.Block, opts ...Option) (*Solver, error) {
	const tag = "solver.New"
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if !(beta > 0) || math.IsInf(beta, 0) {
		return nil, solverErrorf(tag, fmt.Errorf("beta=%g: %w", beta, ErrInvalidConfig))
	}
	if err := o.Grid.Validate(); err != nil {
		return nil, solverErrorf(tag, err)
	}
	if err := o.TailFit.Validate(); err != nil {
		return nil, solverErrorf(tag, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	s, err := gf.NewBlockStructure(blocks...)
	if err != nil {
		return nil, solverErrorf(tag, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	st, err := newState(beta, s, o.Grid, o.Representations)
	if err != nil {
		return nil, solverErrorf(tag, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	return newSolver(st, o), nil
}

// Restore wraps a previously persisted state. Grid and representations come
// from the state; opts may still set the tail fit, diagonalizer and logger.
//
// Errors: ErrInvalidConfig.
func Restore(st *State, opts ...Option) (*Solver, error) {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if err := st.Validate(); err != nil {
		return nil, solverErrorf("solver.Restore", err)
	}
	if err := o.TailFit.Validate(); err != nil {
		return nil, solverErrorf("solver.Restore", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	o.Grid, o.Representations = st.Grid, st.Kinds()

	return newSolver(st, o), nil
}

func newSolver(st *State, o Options) *Solver {
	var fops []operator.Index
	for _, b := range st.Structure.Blocks() {
		for i := 0; i < b.Dim; i++ {
			fops = append(fops, operator.Index{Block: b.Name, Orbital: i})
		}
	}

	return &Solver{state: st, fops: fops, opts: o}
}

// State returns the owned state. The caller writes State().G0Iw before Solve.
func (s *Solver) State() *State { return s.state }

// Beta returns the inverse temperature.
func (s *Solver) Beta() float64 { return s.state.Beta }

// Structure returns the block structure.
func (s *Solver) Structure() *gf.BlockStructure { return s.state.Structure }

// Fops returns the fermionic basis (block, orbital) in structure order.
func (s *Solver) Fops() []operator.Index { return append([]operator.Index(nil), s.fops...) }

// Solve computes the atomic Green's functions and self-energies for the current
// G0Iw and the interaction hInt.
//
// Implementation:
//   - Stage 1: Check requested representations, then Δ(iω) = iω - G0(iω)⁻¹.
//   - Stage 2: eal[b] = Re a₀ of the tail fit of Δ[b].
//   - Stage 3: H_loc = hInt + Σ eal[b]_ij c†_{b,i} c_{b,j}; diagonalize.
//   - Stage 4: G on the requested meshes; Σ = G0_F⁻¹ - G⁻¹ with G0_F(z) = (z - eal)⁻¹
//     on iω and, with CalcGw, on ω + i·idelta.
//   - Stage 5: Optional density matrix; commit everything to State.
//
// State is only modified when Solve returns nil. ctx is checked between stages.
//
// Errors: ErrUnsupportedRepresentation, ErrTailFitDegenerate,
// ErrDiagonalizationFailed, matrix.ErrSingular (G0 or G not invertible), ctx.Err().
func (s *Solver) Solve(ctx context.Context, hInt *operator.Expr, so SolveOptions) (*SolveResult, error) {
	const tag = "Solver.Solve"
	st := s.state
	log := s.opts.Logger

	// Stage 1: Representations and hybridization
	for _, req := range []struct {
		on   bool
		kind gf.MeshKind
	}{{so.CalcGw, gf.RealFreq}, {so.CalcGtau, gf.ImTime}, {so.CalcGl, gf.Legendre}} {
		if req.on && !st.Has(req.kind) {
			return nil, solverErrorf(tag, fmt.Errorf("%s: %w", req.kind, ErrUnsupportedRepresentation))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, solverErrorf(tag, err)
	}
	if hInt == nil {
		hInt = operator.NewExpr()
	}
	delta, err := hybridization(st.G0Iw)
	if err != nil {
		return nil, solverErrorf(tag, err)
	}

	// Stage 2: Static levels
	eal := gf.NewBlockMatrix(st.Structure)
	for i, b := range st.Structure.Blocks() {
		moments, err := gf.FitTail(delta.BlockAt(i), s.opts.TailFit)
		if err != nil {
			return nil, solverErrorf(tag, fmt.Errorf("block %q: %w", b.Name, err))
		}
		eal[b.Name] = moments[0].Real()
	}
	eal.Hermitize()

	// Stage 3: Local Hamiltonian and spectrum
	hLoc := hInt.Clone()
	for _, b := range st.Structure.Blocks() {
		data := eal[b.Name].Data()
		for i := 0; i < b.Dim; i++ {
			for j := 0; j < b.Dim; j++ {
				if v := data[i*b.Dim+j]; v != 0 {
					hLoc = hLoc.Add(operator.Cdag(b.Name, i).Mul(operator.C(b.Name, j)).Scale(v))
				}
			}
		}
	}
	log.Debug("solver: local hamiltonian", zap.Stringer("h_loc", hLoc))
	if err = ctx.Err(); err != nil {
		return nil, solverErrorf(tag, err)
	}
	spec, err := s.opts.Diagonalizer.Diagonalize(hLoc, s.fops)
	if err != nil {
		return nil, solverErrorf(tag, fmt.Errorf("%w: %w", ErrDiagonalizationFailed, err))
	}
	if err = ctx.Err(); err != nil {
		return nil, solverErrorf(tag, err)
	}

	// Stage 4: Green's functions and self-energies
	next := &State{Eal: eal}
	if next.GIw, next.SigmaIw, err = s.dressed(spec, st.GIw.Mesh(), eal); err != nil {
		return nil, solverErrorf(tag, err)
	}
	if so.CalcGw {
		if next.GW, next.SigmaW, err = s.dressed(spec, st.GW.Mesh(), eal); err != nil {
			return nil, solverErrorf(tag, err)
		}
		g0inv, _ := gf.NewBlockGf(st.Structure, st.GW.Mesh())
		_ = g0inv.SetZMinus(eal)
		if next.G0W, err = g0inv.Inverse(); err != nil {
			return nil, solverErrorf(tag, fmt.Errorf("G0_w: %w", err))
		}
	}
	if so.CalcGtau {
		if next.GTau, err = spec.GreenFunction(st.Beta, st.Structure, st.GTau.Mesh()); err != nil {
			return nil, solverErrorf(tag, fmt.Errorf("%w: G_tau: %w", ErrDiagonalizationFailed, err))
		}
	}
	if so.CalcGl {
		if next.GL, err = spec.GreenFunction(st.Beta, st.Structure, st.GL.Mesh()); err != nil {
			return nil, solverErrorf(tag, fmt.Errorf("%w: G_l: %w", ErrDiagonalizationFailed, err))
		}
	}

	// Stage 5: Density matrix and commit
	if so.CalcDm {
		if next.DensityMatrix, err = spec.DensityMatrix(st.Beta, st.Structure); err != nil {
			return nil, solverErrorf(tag, fmt.Errorf("%w: density matrix: %w", ErrDiagonalizationFailed, err))
		}
	}
	if err = ctx.Err(); err != nil {
		return nil, solverErrorf(tag, err)
	}
	st.commit(next)
	log.Debug("solver: solved",
		zap.Float64("e0", spec.GroundStateEnergy()),
		zap.Bool("g_w", so.CalcGw), zap.Bool("g_tau", so.CalcGtau),
		zap.Bool("g_l", so.CalcGl), zap.Bool("dm", so.CalcDm))

	return &SolveResult{Hamiltonian: hLoc, Eal: eal.Clone(), Spectrum: spec}, nil
}

// hybridization returns Δ(iω) = iω·I - G0(iω)⁻¹.
func hybridization(g0 *gf.BlockGf) (*gf.BlockGf, error) {
	g0inv, err := g0.Inverse()
	if err != nil {
		return nil, fmt.Errorf("G0_iw: %w", err)
	}
	iw, _ := gf.NewBlockGf(g0.Structure(), g0.Mesh())
	_ = iw.SetZMinus(nil)

	return iw.Sub(g0inv)
}

// dressed returns G on mesh and Σ = (z - eal) - G⁻¹.
func (s *Solver) dressed(spec atomdiag.Spectrum, mesh gf.Mesh, eal gf.BlockMatrix) (*gf.BlockGf, *gf.BlockGf, error) {
	g, err := spec.GreenFunction(s.state.Beta, s.state.Structure, mesh)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: G_%s: %w", ErrDiagonalizationFailed, mesh.Kind, err)
	}
	ginv, err := g.Inverse()
	if err != nil {
		return nil, nil, fmt.Errorf("G_%s: %w", mesh.Kind, err)
	}
	g0inv, _ := gf.NewBlockGf(s.state.Structure, mesh)
	_ = g0inv.SetZMinus(eal)
	sigma, err := g0inv.Sub(ginv)
	if err != nil {
		return nil, nil, err
	}

	return g, sigma, nil
}

// commit copies the computed containers of next into st. Containers absent
// from next keep their previous content.
func (st *State) commit(next *State) {
	for _, c := range []struct{ dst, src *gf.BlockGf }{
		{st.GIw, next.GIw}, {st.SigmaIw, next.SigmaIw},
		{st.G0W, next.G0W}, {st.GW, next.GW}, {st.SigmaW, next.SigmaW},
		{st.GTau, next.GTau}, {st.GL, next.GL},
	} {
		if c.src != nil {
			_ = c.dst.CopyFrom(c.src)
		}
	}
	st.Eal = next.Eal
	if next.DensityMatrix != nil {
		st.DensityMatrix = next.DensityMatrix
	}
}
