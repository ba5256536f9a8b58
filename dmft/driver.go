// SPDX-License-Identifier: MIT

// Package dmft runs the DMFT self-consistency loop around a Hubbard-I impurity
// solver and a lattice projector.
//
// One cycle:
//
//	G0   = (Σ + G_loc⁻¹)⁻¹
//	Σ, ρ = Solve(G0, h_int)
//	dc   = DC(ρ, U, J)
//	μ    : n(G_loc[Σ - dc, μ]) = n_target
//	G_loc = ExtractLocalGF()
//
// followed by a checkpoint of the full iteration. A run resumes from the last
// complete checkpoint and reproduces an uninterrupted run bit for bit.
package dmft

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/katalvlaran/hubbardi/checkpoint"
	"github.com/katalvlaran/hubbardi/comm"
	"github.com/katalvlaran/hubbardi/dc"
	"github.com/katalvlaran/hubbardi/gf"
	"github.com/katalvlaran/hubbardi/operator"
	"github.com/katalvlaran/hubbardi/solver"
)

// Phase is the state of a Driver.
type Phase int32

const (
	Uninitialized Phase = iota
	Bootstrapped
	Iterating
	Checkpointed
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Bootstrapped:
		return "bootstrapped"
	case Iterating:
		return "iterating"
	case Checkpointed:
		return "checkpointed"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Phase(%d)", int32(p))
	}
}

// ImpuritySolver is the impurity side of the loop.
type ImpuritySolver interface {
	State() *solver.State
	Solve(ctx context.Context, hInt *operator.Expr, so solver.SolveOptions) (*solver.SolveResult, error)
}

// Projector is the lattice side of the loop.
type Projector interface {
	Structure() *gf.BlockStructure
	ExtractLocalGF() (*gf.BlockGf, error)
	SetSelfEnergy(sigma *gf.BlockGf) error
	FindChemicalPotential(precision float64) (float64, error)
	ChemicalPotential() float64
	SetChemicalPotential(mu float64)
	ComputeDoubleCounting(dm gf.BlockMatrix, u, j float64, formula dc.Formula) (gf.BlockMatrix, float64, error)
	SetDoubleCounting(dcImp gf.BlockMatrix, energy float64) error
	Symmetrize(g *gf.BlockGf, degeneracies [][]string) error
}

// Store is the durable checkpoint archive.
type Store interface {
	LatestIteration() (int, bool, error)
	ReadIteration(n int) (*checkpoint.Iteration, error)
	WriteIteration(it *checkpoint.Iteration) error
	PutScalar(name string, v float64) error
}

// Snapshot is the immutable state the coordinator broadcasts at every
// checkpoint boundary.
type Snapshot struct {
	Offset            int // first iteration still to run
	Index             int // iteration described, -1 for a fresh bootstrap
	SigmaIw           *gf.BlockGf
	Gloc              *gf.BlockGf
	DCImp             gf.BlockMatrix
	DCEnergy          float64
	ChemicalPotential float64
}

func snapshotOf(it *checkpoint.Iteration, offset int) *Snapshot {
	return &Snapshot{
		Offset:            offset,
		Index:             it.Index,
		SigmaIw:           it.SigmaIw.Copy(),
		Gloc:              it.Gloc.Copy(),
		DCImp:             it.DCImp.Clone(),
		DCEnergy:          it.DCEnergy,
		ChemicalPotential: it.ChemicalPotential,
	}
}

// Driver runs the loop. A Driver is used by a single goroutine; Phase may be
// read from any goroutine.
type Driver struct {
	cfg       Config
	solver    ImpuritySolver
	proj      Projector
	store     Store
	comm      comm.Communicator
	log       *zap.Logger
	metrics   *Metrics
	converged func(prev, cur *checkpoint.Iteration) bool

	phase    atomic.Int32
	dcImp    gf.BlockMatrix
	dcEnergy float64
	last     *checkpoint.Iteration
}

// New wires a driver.
//
// Errors: ErrInvalidConfig.
func New(cfg Config, s ImpuritySolver, p Projector, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dmft.New: %w", err)
	}
	if s == nil || p == nil {
		return nil, fmt.Errorf("dmft.New: nil solver or projector: %w", ErrInvalidConfig)
	}
	if st := s.State(); !st.Structure.Equal(p.Structure()) {
		return nil, fmt.Errorf("dmft.New: solver %s vs projector %s: %w", st.Structure, p.Structure(), ErrInvalidConfig)
	}
	d := &Driver{cfg: cfg, solver: s, proj: p, comm: &comm.Local{}, log: zap.NewNop()}
	for _, fn := range opts {
		fn(d)
	}
	d.log = d.log.With(zap.Int("rank", d.comm.Rank()))

	return d, nil
}

// Phase returns the current phase.
func (d *Driver) Phase() Phase { return Phase(d.phase.Load()) }

// Last returns the last completed iteration of this run, or the resumed one.
func (d *Driver) Last() *checkpoint.Iteration { return d.last }

func (d *Driver) setPhase(p Phase) {
	if prev := Phase(d.phase.Swap(int32(p))); prev != p {
		d.log.Debug("dmft: phase", zap.Stringer("from", prev), zap.Stringer("to", p))
	}
}

// Run bootstraps the loop and runs Config.NIterations cycles, or fewer if the
// convergence predicate fires. On failure the group is aborted and nothing of
// the failed iteration is written.
func (d *Driver) Run(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			d.setPhase(Failed)
			d.comm.Abort(err)
		}
	}()
	offset, err := d.bootstrap(ctx)
	if err != nil {
		return err
	}
	d.log.Info("dmft: starting",
		zap.Int("cycles", d.cfg.NIterations), zap.Int("first_iteration", offset))
	for it := offset; it < offset+d.cfg.NIterations; it++ {
		prev := d.last
		cur, err := d.iterate(ctx, it)
		if err != nil {
			return fmt.Errorf("iteration %d: %w", it, err)
		}
		d.last = cur
		if d.converged != nil && d.converged(prev, cur) {
			d.log.Info("dmft: converged", zap.Int("iteration", it))

			break
		}
	}
	d.setPhase(Done)

	return nil
}

// bootstrap returns the first iteration index to run.
func (d *Driver) bootstrap(ctx context.Context) (int, error) {
	var snap *Snapshot
	if d.comm.IsCoordinator() && d.store != nil {
		n, ok, err := d.store.LatestIteration()
		if err != nil {
			return 0, err
		}
		if ok {
			rec, err := d.store.ReadIteration(n)
			if err != nil {
				return 0, err
			}
			snap = snapshotOf(rec, n+1)
			d.last = rec
		}
	}
	v, err := d.comm.Broadcast(ctx, snap)
	if err != nil {
		return 0, err
	}
	snap, _ = v.(*Snapshot)

	if snap != nil {
		if err = d.adopt(snap); err != nil {
			return 0, err
		}
		d.log.Info("dmft: resuming", zap.Int("iteration", snap.Index),
			zap.Float64("mu", snap.ChemicalPotential), zap.Float64("dc_energy", snap.DCEnergy))
		d.setPhase(Bootstrapped)

		return snap.Offset, nil
	}

	if err = d.fresh(); err != nil {
		return 0, err
	}
	v, err = d.comm.Broadcast(ctx, d.snapshot(0, -1))
	if err != nil {
		return 0, err
	}
	if !d.comm.IsCoordinator() {
		if err = d.adopt(v.(*Snapshot)); err != nil {
			return 0, err
		}
	}
	d.setPhase(Bootstrapped)

	return 0, nil
}

// fresh starts from Σ = 0: find μ of the bare lattice, take the double
// counting of its density and use it as a static first Σ.
func (d *Driver) fresh() error {
	st := d.solver.State()
	st.SigmaIw.Zero()
	if err := d.proj.Symmetrize(st.SigmaIw, d.cfg.Degeneracies); err != nil {
		return err
	}
	if err := d.proj.SetSelfEnergy(st.SigmaIw); err != nil {
		return err
	}
	mu0, err := d.proj.FindChemicalPotential(d.cfg.Precision)
	if err != nil {
		return err
	}
	gloc, err := d.proj.ExtractLocalGF()
	if err != nil {
		return err
	}
	if err = d.proj.Symmetrize(gloc, d.cfg.Degeneracies); err != nil {
		return err
	}
	if err = st.GIw.CopyFrom(gloc); err != nil {
		return err
	}
	dm, err := gloc.Density()
	if err != nil {
		return err
	}
	if d.dcImp, d.dcEnergy, err = d.proj.ComputeDoubleCounting(dm, d.cfg.U, d.cfg.J, d.cfg.DCFormula); err != nil {
		return err
	}
	first := st.Structure.Block(0).Name
	v, _ := d.dcImp[first].At(0, 0)
	if err = st.SigmaIw.Fill(gf.NewScaledIdentity(st.Structure, v)); err != nil {
		return err
	}
	if d.comm.IsCoordinator() && d.store != nil {
		if err = d.store.PutScalar(checkpoint.NonInteractingMuKey, mu0); err != nil {
			return err
		}
	}
	d.log.Info("dmft: fresh start", zap.Float64("mu0", mu0),
		zap.Float64("sigma0", real(v)), zap.Float64("dc_energy", d.dcEnergy))

	return nil
}

// snapshot copies the state shared by every participant.
func (d *Driver) snapshot(offset, index int) *Snapshot {
	st := d.solver.State()

	return &Snapshot{
		Offset:            offset,
		Index:             index,
		SigmaIw:           st.SigmaIw.Copy(),
		Gloc:              st.GIw.Copy(),
		DCImp:             d.dcImp.Clone(),
		DCEnergy:          d.dcEnergy,
		ChemicalPotential: d.proj.ChemicalPotential(),
	}
}

// adopt installs a snapshot into the solver state and the projector.
func (d *Driver) adopt(s *Snapshot) error {
	st := d.solver.State()
	if err := st.SigmaIw.CopyFrom(s.SigmaIw); err != nil {
		return fmt.Errorf("adopt Sigma_iw: %w", err)
	}
	if err := st.GIw.CopyFrom(s.Gloc); err != nil {
		return fmt.Errorf("adopt Gloc: %w", err)
	}
	if err := d.proj.SetDoubleCounting(s.DCImp, s.DCEnergy); err != nil {
		return fmt.Errorf("adopt dc: %w", err)
	}
	d.proj.SetChemicalPotential(s.ChemicalPotential)
	d.dcImp, d.dcEnergy = s.DCImp.Clone(), s.DCEnergy

	return nil
}

// iterate runs cycle it and returns its record.
func (d *Driver) iterate(ctx context.Context, it int) (*checkpoint.Iteration, error) {
	d.setPhase(Iterating)
	start := time.Now()
	st := d.solver.State()
	d.log.Info("dmft: iteration", zap.Int("iteration", it))

	// Dyson: G0 = (Σ + G⁻¹)⁻¹
	ginv, err := st.GIw.Inverse()
	if err != nil {
		return nil, fmt.Errorf("G_loc: %w", err)
	}
	sum, err := st.SigmaIw.Add(ginv)
	if err != nil {
		return nil, err
	}
	g0, err := sum.Inverse()
	if err != nil {
		return nil, fmt.Errorf("G0: %w", err)
	}
	if err = st.G0Iw.CopyFrom(g0); err != nil {
		return nil, err
	}

	so := d.cfg.Solve
	so.CalcDm = true
	if _, err = d.solver.Solve(ctx, d.cfg.Interaction, so); err != nil {
		return nil, err
	}
	dm := st.DensityMatrix
	if d.dcImp, d.dcEnergy, err = d.proj.ComputeDoubleCounting(dm, d.cfg.U, d.cfg.J, d.cfg.DCFormula); err != nil {
		return nil, err
	}

	if err = d.proj.Symmetrize(st.SigmaIw, d.cfg.Degeneracies); err != nil {
		return nil, err
	}
	if err = d.proj.SetSelfEnergy(st.SigmaIw); err != nil {
		return nil, err
	}
	mu, err := d.proj.FindChemicalPotential(d.cfg.Precision)
	if err != nil {
		return nil, err
	}
	gloc, err := d.proj.ExtractLocalGF()
	if err != nil {
		return nil, err
	}
	if err = st.GIw.CopyFrom(gloc); err != nil {
		return nil, err
	}
	total, err := gloc.TotalDensity()
	if err != nil {
		return nil, err
	}
	names := st.Structure.Names()
	occ := make([]float64, len(names))
	for i, name := range names {
		v, _ := dm[name].At(0, 0)
		occ[i] = real(v)
	}
	d.log.Info("dmft: densities", zap.Int("iteration", it), zap.Float64("mu", mu),
		zap.Strings("blocks", names), zap.Float64s("density", occ),
		zap.Float64("total_charge", total), zap.Float64("dc_energy", d.dcEnergy))

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	cur := &checkpoint.Iteration{
		Index:             it,
		SigmaIw:           st.SigmaIw.Copy(),
		Gloc:              st.GIw.Copy(),
		G0loc:             st.G0Iw.Copy(),
		DCImp:             d.dcImp.Clone(),
		DCEnergy:          d.dcEnergy,
		ChemicalPotential: mu,
	}
	if so.CalcGw && st.GW != nil {
		cur.SigmaW, cur.GlocW = st.SigmaW.Copy(), st.GW.Copy()
	}
	if d.comm.IsCoordinator() && d.store != nil {
		rec := *cur
		rec.Solver = st
		if err = d.store.WriteIteration(&rec); err != nil {
			return nil, err
		}
	}

	v, err := d.comm.Broadcast(ctx, d.snapshot(it+1, it))
	if err != nil {
		return nil, err
	}
	if !d.comm.IsCoordinator() {
		snap, ok := v.(*Snapshot)
		if !ok {
			return nil, errors.New("broadcast: not a snapshot")
		}
		if err = d.adopt(snap); err != nil {
			return nil, err
		}
		cur.SigmaIw, cur.Gloc = snap.SigmaIw.Copy(), snap.Gloc.Copy()
		cur.DCImp, cur.DCEnergy, cur.ChemicalPotential = snap.DCImp.Clone(), snap.DCEnergy, snap.ChemicalPotential
	}
	d.setPhase(Checkpointed)
	d.metrics.observe(time.Since(start), cur.ChemicalPotential, total, cur.DCEnergy)

	return cur, nil
}
