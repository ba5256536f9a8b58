// SPDX-License-Identifier: MIT
package dmft_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/hubbardi/checkpoint"
	"github.com/katalvlaran/hubbardi/comm"
	"github.com/katalvlaran/hubbardi/dc"
	"github.com/katalvlaran/hubbardi/dmft"
	"github.com/katalvlaran/hubbardi/gf"
	"github.com/katalvlaran/hubbardi/lattice"
	"github.com/katalvlaran/hubbardi/operator"
	"github.com/katalvlaran/hubbardi/solver"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const u = 2.0

var spinBlocks = []gf.Block{{Name: "up", Dim: 1}, {Name: "down", Dim: 1}}

func config(n int) dmft.Config {
	return dmft.Config{
		U:            u,
		NIterations:  n,
		DCFormula:    dc.FullyLocalizedLimit,
		Precision:    1e-3,
		Degeneracies: [][]string{{"up", "down"}},
		Interaction:  operator.HubbardInteraction(u, 1),
		Solve:        solver.SolveOptions{CalcGw: true},
	}
}

// collaborators returns a fresh impurity solver and Bethe-lattice projector at half filling.
func collaborators(t *testing.T) (*solver.Solver, *lattice.Projector) {
	t.Helper()

	return collaboratorsAt(t, 1)
}

func collaboratorsAt(t *testing.T, density float64) (*solver.Solver, *lattice.Projector) {
	t.Helper()
	s, err := solver.New(20, spinBlocks,
		solver.WithNIw(128), solver.WithNW(32), solver.WithRealWindow(-4, 4), solver.WithBroadening(0.05),
		solver.WithRepresentations(gf.RealFreq))
	require.NoError(t, err)
	dos, err := lattice.NewDOS(lattice.SemiCircular, 1)
	require.NoError(t, err)
	p, err := lattice.New(s.Structure(), s.State().GIw.Mesh(), dos, density, lattice.WithNodes(32))
	require.NoError(t, err)

	return s, p
}

func openStore(t *testing.T, path string) *checkpoint.Store {
	t.Helper()
	st, err := checkpoint.Open(path)
	require.NoError(t, err)

	return st
}

func run(t *testing.T, path string, n int, opts ...dmft.Option) *dmft.Driver {
	t.Helper()
	store := openStore(t, path)
	defer func() { require.NoError(t, store.Close()) }()
	s, p := collaborators(t)
	d, err := dmft.New(config(n), s, p, append([]dmft.Option{dmft.WithStore(store)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, dmft.Done, d.Phase())

	return d
}

func read(t *testing.T, path string, n int) *checkpoint.Iteration {
	t.Helper()
	var it *checkpoint.Iteration
	require.NoError(t, checkpoint.With(path, func(s *checkpoint.Store) (err error) {
		it, err = s.ReadIteration(n)

		return err
	}))

	return it
}

func requireIdentical(t *testing.T, a, b *checkpoint.Iteration) {
	t.Helper()
	assert.Equal(t, a.Index, b.Index)
	assert.Equal(t, a.ChemicalPotential, b.ChemicalPotential)
	assert.Equal(t, a.DCEnergy, b.DCEnergy)
	for _, c := range []struct {
		name string
		x, y *gf.BlockGf
	}{
		{"Sigma_iw", a.SigmaIw, b.SigmaIw}, {"Sigma_w", a.SigmaW, b.SigmaW},
		{"Gloc", a.Gloc, b.Gloc}, {"Gloc_w", a.GlocW, b.GlocW}, {"G0loc", a.G0loc, b.G0loc},
	} {
		require.NotNil(t, c.x, c.name)
		require.NotNil(t, c.y, c.name)
		d, err := c.x.MaxDiff(c.y)
		require.NoError(t, err, c.name)
		assert.Zero(t, d, c.name)
	}
	d, err := gf.MaxDiffBlockMatrix(a.SigmaIw.Structure(), a.DCImp, b.DCImp)
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestRun_ResumeIsBitIdentical(t *testing.T) {
	dir := t.TempDir()
	straight := filepath.Join(dir, "straight.db")
	resumed := filepath.Join(dir, "resumed.db")

	run(t, straight, 3)
	run(t, resumed, 1)
	d := run(t, resumed, 2)
	assert.Equal(t, 2, d.Last().Index)

	for n := 0; n < 3; n++ {
		requireIdentical(t, read(t, straight, n), read(t, resumed, n))
	}
	require.NoError(t, checkpoint.With(resumed, func(s *checkpoint.Store) error {
		last, ok, err := s.LatestIteration()
		require.True(t, ok)
		assert.Equal(t, 2, last)
		idx, _ := s.Iterations()
		assert.Equal(t, []int{0, 1, 2}, idx)
		_, ok, _ = s.Scalar(checkpoint.NonInteractingMuKey)
		assert.True(t, ok)
		st, err := s.SolverState(2)
		require.NoError(t, err)
		assert.NotNil(t, st.DensityMatrix)

		return err
	}))
}

func TestRun_ParticleHoleSymmetry(t *testing.T) {
	d := run(t, filepath.Join(t.TempDir(), "run.db"), 2)
	last := d.Last()
	// the double counting cancels Σ(iω→∞) = U/2, so half filling needs no shift
	assert.InDelta(t, 0, last.ChemicalPotential, 1e-6)
	assert.InDelta(t, u/2, real(last.DCImp["up"].Data()[0]), 1e-6)
	n, err := last.Gloc.TotalDensity()
	require.NoError(t, err)
	assert.InDelta(t, 1, n, 1e-3)
	up, _ := last.SigmaIw.Block("up")
	down, _ := last.SigmaIw.Block("down")
	diff, _ := up.MaxDiff(down)
	assert.Zero(t, diff, "degenerate blocks are symmetrized")
}

func TestRun_AwayFromHalfFilling(t *testing.T) {
	const target = 0.6
	store := openStore(t, filepath.Join(t.TempDir(), "run.db"))
	defer func() { require.NoError(t, store.Close()) }()
	s, p := collaboratorsAt(t, target)
	cfg := config(3)
	d, err := dmft.New(cfg, s, p, dmft.WithStore(store))
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background()))

	for n := 0; n < 3; n++ {
		it, err := store.ReadIteration(n)
		require.NoError(t, err)
		total, err := it.Gloc.TotalDensity()
		require.NoError(t, err)
		assert.Less(t, math.Abs(total-target), cfg.Precision, "iteration %d", n)

		dm, err := it.Gloc.Density()
		require.NoError(t, err)
		up, _ := dm["up"].At(0, 0)
		down, _ := dm["down"].At(0, 0)
		assert.InDelta(t, real(up), real(down), 1e-12, "iteration %d", n)
	}
	mu0, ok, err := store.Scalar(checkpoint.NonInteractingMuKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Less(t, mu0, 0.0, "below half filling the bare band is shifted down")
}

func TestRun_Group(t *testing.T) {
	members := comm.NewGroup(3)
	store := openStore(t, filepath.Join(t.TempDir(), "run.db"))
	defer func() { require.NoError(t, store.Close()) }()

	drivers := make([]*dmft.Driver, len(members))
	for i, c := range members {
		s, p := collaborators(t)
		opts := []dmft.Option{dmft.WithCommunicator(c)}
		if c.IsCoordinator() {
			opts = append(opts, dmft.WithStore(store))
		}
		var err error
		drivers[i], err = dmft.New(config(2), s, p, opts...)
		require.NoError(t, err)
	}
	var eg errgroup.Group
	for _, d := range drivers {
		eg.Go(func() error { return d.Run(context.Background()) })
	}
	require.NoError(t, eg.Wait())

	stored, err := store.ReadIteration(1)
	require.NoError(t, err)
	for _, d := range drivers {
		last := d.Last()
		assert.Equal(t, stored.ChemicalPotential, last.ChemicalPotential)
		diff, _ := stored.SigmaIw.MaxDiff(last.SigmaIw)
		assert.Zero(t, diff)
	}
}

// flakyProjector fails the n-th chemical-potential search.
type flakyProjector struct {
	*lattice.Projector
	calls, failAt int
}

func (f *flakyProjector) FindChemicalPotential(precision float64) (float64, error) {
	f.calls++
	if f.calls == f.failAt {
		return 0, lattice.ErrRootSearchDiverged
	}

	return f.Projector.FindChemicalPotential(precision)
}

func TestRun_FailureKeepsLastCheckpoint(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "run.db"))
	defer func() { require.NoError(t, store.Close()) }()
	s, p := collaborators(t)
	// call 1 is the bootstrap, call 3 is iteration 1
	d, err := dmft.New(config(3), s, &flakyProjector{Projector: p, failAt: 3}, dmft.WithStore(store))
	require.NoError(t, err)

	err = d.Run(context.Background())
	require.ErrorIs(t, err, lattice.ErrRootSearchDiverged)
	assert.Equal(t, dmft.Failed, d.Phase())
	last, ok, err := store.LatestIteration()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, last)
	_, err = store.ReadIteration(1)
	require.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestRun_Convergence(t *testing.T) {
	var seen []int
	d := run(t, filepath.Join(t.TempDir(), "run.db"), 5, dmft.WithConvergence(func(prev, cur *checkpoint.Iteration) bool {
		if prev == nil {
			seen = append(seen, -1)
		} else {
			seen = append(seen, prev.Index)
		}

		return cur.Index == 1
	}))
	assert.Equal(t, 1, d.Last().Index)
	assert.Equal(t, []int{-1, 0}, seen)
}

func TestSigmaConverged(t *testing.T) {
	d := run(t, filepath.Join(t.TempDir(), "run.db"), 5, dmft.WithConvergence(dmft.SigmaConverged(1e9)))
	assert.Equal(t, 1, d.Last().Index, "the first iteration has no predecessor")

	d = run(t, filepath.Join(t.TempDir(), "run.db"), 3, dmft.WithConvergence(dmft.SigmaConverged(0)))
	assert.Equal(t, 2, d.Last().Index)
}

func TestRun_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := dmft.NewMetrics(reg)
	require.NoError(t, err)
	d := run(t, filepath.Join(t.TempDir(), "run.db"), 2, dmft.WithMetrics(m))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Iterations))
	assert.Equal(t, d.Last().ChemicalPotential, testutil.ToFloat64(m.ChemicalPotential))
	assert.Equal(t, d.Last().DCEnergy, testutil.ToFloat64(m.DCEnergy))
	assert.Equal(t, 1, testutil.CollectAndCount(m.IterationDuration))

	_, err = dmft.NewMetrics(reg)
	require.Error(t, err, "collectors are registered once")
}

func TestSpectralFunctions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.db")
	run(t, path, 1)

	store := openStore(t, path)
	defer func() { require.NoError(t, store.Close()) }()
	_, p := collaborators(t)
	sp, err := dmft.SpectralFunctions(context.Background(), store, p, 0.1, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sp.Index)
	require.Len(t, sp.Total, 32)
	require.Len(t, sp.Total0, 32)
	var area0 float64
	dw := 8.0 / 31
	for i := range sp.Total {
		assert.InDelta(t, sp.PerBlock["up"][i]+sp.PerBlock["down"][i], sp.Total[i], 1e-12)
		assert.GreaterOrEqual(t, sp.Total[i], 0.0)
		assert.GreaterOrEqual(t, sp.Total0[i], 0.0)
		// bare band at μ0 = 0 is symmetric
		assert.InDelta(t, sp.Total0[i], sp.Total0[len(sp.Total0)-1-i], 1e-9)
		area0 += sp.Total0[i] * dw
	}
	// two spin blocks, most of the weight inside [-4, 4]
	assert.InDelta(t, 2, area0, 0.1)

	back, err := store.ReadSpectra(0)
	require.NoError(t, err)
	assert.Equal(t, sp.Total, back.Total)
	assert.Equal(t, sp.PerBlock0, back.PerBlock0)
}

func TestSpectralFunctions_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.db")
	store := openStore(t, path)
	_, p := collaborators(t)
	_, err := dmft.SpectralFunctions(context.Background(), store, p, 0.1, nil)
	require.ErrorIs(t, err, dmft.ErrNoIterations)
	require.NoError(t, store.Close())

	s, _ := collaborators(t)
	cfg := config(1)
	cfg.Solve.CalcGw = false
	store = openStore(t, path)
	defer func() { require.NoError(t, store.Close()) }()
	d, err := dmft.New(cfg, s, p, dmft.WithStore(store))
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background()))
	_, p = collaborators(t)
	_, err = dmft.SpectralFunctions(context.Background(), store, p, 0.1, nil)
	require.ErrorIs(t, err, dmft.ErrMissingRealFrequency)
}

func TestNew_Invalid(t *testing.T) {
	s, p := collaborators(t)
	for name, cfg := range map[string]dmft.Config{
		"negative cycles": {NIterations: -1, Precision: 0.01},
		"zero precision":  {NIterations: 1},
	} {
		_, err := dmft.New(cfg, s, p)
		require.ErrorIs(t, err, dmft.ErrInvalidConfig, name)
	}

	other, err := solver.New(20, []gf.Block{{Name: "up", Dim: 2}})
	require.NoError(t, err)
	_, err = dmft.New(config(1), other, p)
	require.ErrorIs(t, err, dmft.ErrInvalidConfig)

	assert.Equal(t, "checkpointed", dmft.Checkpointed.String())
}
