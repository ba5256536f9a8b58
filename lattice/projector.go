// SPDX-License-Identifier: MIT

// Package lattice provides a model-lattice projector for the DMFT loop.
//
// The lattice is a set of degenerate bands with a model density of states:
// every block b sees the k-resolved Hamiltonian H_k = ε_k·I + H0_b, and
//
//	G_loc,b(z) = Σ_k w_k [(z + μ)·I - H0_b - ε_k·I - Σ_b(z) + dc_b]⁻¹
//
// with Gauss-Legendre energies ε_k and weights w_k = ρ(ε_k)·Δ_k. The chemical
// potential μ is searched so that the total filling of G_loc matches a target.
package lattice

import (
	"fmt"
	"math"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/hubbardi/dc"
	"github.com/katalvlaran/hubbardi/gf"
	"github.com/katalvlaran/hubbardi/matrix"
)

// Default projector policy.
const (
	DefaultNodes       = 128
	DefaultMaxSteps    = 100
	DefaultBracketStep = 0.5
)

// Options configures a Projector.
type Options struct {
	Nodes       int            // quadrature energies on the band
	MaxSteps    int            // density evaluations allowed per μ search
	BracketStep float64        // μ step while bracketing the root
	Levels      gf.BlockMatrix // static one-body levels H0; nil means zero
	Workers     int
	Logger      *zap.Logger
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Nodes:       DefaultNodes,
		MaxSteps:    DefaultMaxSteps,
		BracketStep: DefaultBracketStep,
		Workers:     runtime.GOMAXPROCS(0),
		Logger:      zap.NewNop(),
	}
}

// WithNodes sets the number of quadrature energies. Panics if n < 1.
func WithNodes(n int) Option {
	if n < 1 {
		panic("lattice: WithNodes(n<1)")
	}

	return func(o *Options) { o.Nodes = n }
}

// WithMaxSteps bounds the density evaluations of one μ search. Panics if n < 2.
func WithMaxSteps(n int) Option {
	if n < 2 {
		panic("lattice: WithMaxSteps(n<2)")
	}

	return func(o *Options) { o.MaxSteps = n }
}

// WithBracketStep sets the μ bracketing step. Panics if step ≤ 0.
func WithBracketStep(step float64) Option {
	if !(step > 0) {
		panic("lattice: WithBracketStep(step<=0)")
	}

	return func(o *Options) { o.BracketStep = step }
}

// WithLevels sets the static one-body levels H0 per block.
func WithLevels(levels gf.BlockMatrix) Option {
	return func(o *Options) { o.Levels = levels.Clone() }
}

// WithWorkers bounds the goroutines used per lattice sum. Panics if n < 1.
func WithWorkers(n int) Option {
	if n < 1 {
		panic("lattice: WithWorkers(n<1)")
	}

	return func(o *Options) { o.Workers = n }
}

// WithLogger attaches a logger; nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// Projector is a model lattice with a self-energy, a double-counting
// correction and a chemical potential. It is not safe for concurrent use.
type Projector struct {
	structure *gf.BlockStructure
	mesh      gf.Mesh
	dos       DOS
	density   float64
	energies  []float64
	weights   []float64

	mu       float64
	sigma    map[gf.MeshKind]*gf.BlockGf
	dcImp    gf.BlockMatrix
	dcEnergy float64
	opts     Options
}

// New returns a projector for s on the Matsubara mesh, with the given
// density of states and target total filling.
//
// Errors: gf.ErrInvalidMesh, gf.ErrUnsupportedMesh, ErrInvalidParameter, gf.ErrStructureMismatch.
func New(s *gf.BlockStructure, mesh gf.Mesh, dos DOS, density float64, opts ...Option) (*Projector, error) {
	const tag = "lattice.New"
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if err := mesh.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	if mesh.Kind != gf.MatsubaraFreq {
		return nil, fmt.Errorf("%s: %s: %w", tag, mesh.Kind, gf.ErrUnsupportedMesh)
	}
	if dos.rho == nil {
		return nil, fmt.Errorf("%s: %w", tag, ErrInvalidDOS)
	}
	if !(density >= 0) || density > float64(s.TotalDim()) {
		return nil, fmt.Errorf("%s: density %g: %w", tag, density, ErrInvalidParameter)
	}
	if o.Levels != nil {
		if err := o.Levels.Validate(s); err != nil {
			return nil, fmt.Errorf("%s: levels: %w", tag, err)
		}
	}
	p := &Projector{
		structure: s,
		mesh:      mesh,
		dos:       dos,
		density:   density,
		sigma:     make(map[gf.MeshKind]*gf.BlockGf, 2),
		dcImp:     gf.NewBlockMatrix(s),
		opts:      o,
	}
	p.energies, p.weights = dos.Nodes(o.Nodes)

	return p, nil
}

// Structure returns the block structure.
func (p *Projector) Structure() *gf.BlockStructure { return p.structure }

// Mesh returns the Matsubara mesh of ExtractLocalGF.
func (p *Projector) Mesh() gf.Mesh { return p.mesh }

// TargetDensity returns the filling enforced by FindChemicalPotential.
func (p *Projector) TargetDensity() float64 { return p.density }

// ChemicalPotential returns μ.
func (p *Projector) ChemicalPotential() float64 { return p.mu }

// SetChemicalPotential sets μ.
func (p *Projector) SetChemicalPotential(mu float64) { p.mu = mu }

// SetSelfEnergy stores a copy of sigma for its mesh kind, replacing the previous one.
// Matsubara self-energies must live on Mesh().
//
// Errors: gf.ErrStructureMismatch, gf.ErrMeshMismatch, gf.ErrUnsupportedMesh.
func (p *Projector) SetSelfEnergy(sigma *gf.BlockGf) error {
	const tag = "Projector.SetSelfEnergy"
	if !sigma.Structure().Equal(p.structure) {
		return fmt.Errorf("%s: %s vs %s: %w", tag, sigma.Structure(), p.structure, gf.ErrStructureMismatch)
	}
	switch m := sigma.Mesh(); m.Kind {
	case gf.MatsubaraFreq:
		if !m.Equal(p.mesh) {
			return fmt.Errorf("%s: %s vs %s: %w", tag, m, p.mesh, gf.ErrMeshMismatch)
		}
	case gf.RealFreq:
	default:
		return fmt.Errorf("%s: %s: %w", tag, m.Kind, gf.ErrUnsupportedMesh)
	}
	p.sigma[sigma.Mesh().Kind] = sigma.Copy()

	return nil
}

// ClearSelfEnergy drops every stored self-energy.
func (p *Projector) ClearSelfEnergy() { clear(p.sigma) }

// SetDoubleCounting sets the correction and its energy; nil means zero.
//
// Errors: gf.ErrStructureMismatch, gf.ErrUnknownBlock.
func (p *Projector) SetDoubleCounting(dcImp gf.BlockMatrix, energy float64) error {
	if dcImp == nil {
		p.dcImp, p.dcEnergy = gf.NewBlockMatrix(p.structure), energy

		return nil
	}
	if err := dcImp.Validate(p.structure); err != nil {
		return fmt.Errorf("Projector.SetDoubleCounting: %w", err)
	}
	p.dcImp, p.dcEnergy = dcImp.Clone(), energy

	return nil
}

// DoubleCounting returns a copy of the correction and its energy.
func (p *Projector) DoubleCounting() (gf.BlockMatrix, float64) { return p.dcImp.Clone(), p.dcEnergy }

// ComputeDoubleCounting evaluates formula on dm, stores the result and returns it.
//
// Errors: see dc.Compute.
func (p *Projector) ComputeDoubleCounting(dm gf.BlockMatrix, u, j float64, formula dc.Formula) (gf.BlockMatrix, float64, error) {
	dcImp, energy, err := dc.Compute(p.structure, dm, u, j, formula)
	if err != nil {
		return nil, 0, fmt.Errorf("Projector.ComputeDoubleCounting: %w", err)
	}
	p.dcImp, p.dcEnergy = dcImp, energy
	p.opts.Logger.Debug("lattice: double counting",
		zap.Stringer("formula", formula), zap.Float64("energy", energy))

	return dcImp.Clone(), energy, nil
}

// Symmetrize averages the degenerate blocks of g.
func (p *Projector) Symmetrize(g *gf.BlockGf, degeneracies [][]string) error {
	return g.Symmetrize(degeneracies)
}

// ExtractLocalGF returns G_loc on the Matsubara mesh at the current μ.
func (p *Projector) ExtractLocalGF() (*gf.BlockGf, error) {
	return p.LocalGF(p.mesh)
}

// LocalGF returns G_loc on any frequency mesh. The stored self-energy of the
// mesh kind is used if present, zero otherwise; a stored one must share the
// sample points. On the real axis the broadening of mesh is used for G_loc.
//
// Errors: gf.ErrUnsupportedMesh, gf.ErrMeshMismatch, matrix.ErrSingular.
func (p *Projector) LocalGF(mesh gf.Mesh) (*gf.BlockGf, error) {
	const tag = "Projector.LocalGF"
	out, err := gf.NewBlockGf(p.structure, mesh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	if mesh.Kind != gf.MatsubaraFreq && mesh.Kind != gf.RealFreq {
		return nil, fmt.Errorf("%s: %s: %w", tag, mesh.Kind, gf.ErrUnsupportedMesh)
	}
	sigma := p.sigma[mesh.Kind]
	if sigma != nil && !sameSamples(sigma.Mesh(), mesh) {
		return nil, fmt.Errorf("%s: self-energy %s vs %s: %w", tag, sigma.Mesh(), mesh, gf.ErrMeshMismatch)
	}

	var eg errgroup.Group
	eg.SetLimit(p.opts.Workers)
	for bi, b := range p.structure.Blocks() {
		eg.Go(func() error {
			var sb *gf.Gf
			if sigma != nil {
				sb = sigma.BlockAt(bi)
			}
			if err := p.sumBlock(out.BlockAt(bi), b, sb); err != nil {
				return fmt.Errorf("block %q: %w", b.Name, err)
			}

			return nil
		})
	}
	if err = eg.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}

	return out, nil
}

// sameSamples reports whether a and b sample the same points, ignoring the
// real-axis broadening.
func sameSamples(a, b gf.Mesh) bool {
	if a.Kind == gf.RealFreq && b.Kind == gf.RealFreq {
		a.Eta, b.Eta = 0, 0
	}

	return a.Equal(b)
}

// sumBlock fills g with Σ_k w_k (A(z) - ε_k)⁻¹, A(z) = (z + μ) - H0 - Σ(z) + dc.
func (p *Projector) sumBlock(g *gf.Gf, b gf.Block, sigma *gf.Gf) error {
	mesh := g.Mesh()
	a, _ := matrix.NewDense(b.Dim, b.Dim)
	work, _ := matrix.NewDense(b.Dim, b.Dim)
	for i, dst := range g.Data() {
		a.Zero()
		if p.opts.Levels != nil {
			_ = matrix.AddInPlace(a, p.opts.Levels[b.Name], -1)
		}
		if sigma != nil {
			_ = matrix.AddInPlace(a, sigma.At(i), -1)
		}
		_ = matrix.AddInPlace(a, p.dcImp[b.Name], 1)
		_ = matrix.AddScaledIdentityInPlace(a, mesh.Point(i)+complex(p.mu, 0))
		for k, e := range p.energies {
			_ = work.CopyFrom(a)
			_ = matrix.AddScaledIdentityInPlace(work, complex(-e, 0))
			inv, err := matrix.Inverse(work)
			if err != nil {
				return fmt.Errorf("sample %d node %d: %w", i, k, err)
			}
			_ = matrix.AddInPlace(dst, inv, complex(p.weights[k], 0))
		}
	}

	return nil
}

// Density returns the total filling of G_loc at chemical potential mu, leaving μ unchanged.
func (p *Projector) Density(mu float64) (float64, error) {
	saved := p.mu
	p.mu = mu
	defer func() { p.mu = saved }()
	g, err := p.ExtractLocalGF()
	if err != nil {
		return 0, err
	}

	return g.TotalDensity()
}

// FindChemicalPotential sets μ so that |n(μ) - target| < precision.
//
// Implementation:
//   - Stage 1: n(μ) at the current μ; step μ by ±BracketStep (doubling) until
//     the target is bracketed.
//   - Stage 2: Bisection on the bracket until the density is within precision.
//
// Every density evaluation counts against MaxSteps. The filling is monotonic
// in μ, so a bracket exists for 0 < target < Σ Dim.
//
// Errors: ErrInvalidParameter, ErrRootSearchDiverged, errors of ExtractLocalGF.
func (p *Projector) FindChemicalPotential(precision float64) (float64, error) {
	const tag = "Projector.FindChemicalPotential"
	if !(precision > 0) || math.IsInf(precision, 0) {
		return p.mu, fmt.Errorf("%s: precision %g: %w", tag, precision, ErrInvalidParameter)
	}
	steps := 0
	eval := func(mu float64) (float64, error) {
		if steps >= p.opts.MaxSteps {
			return 0, fmt.Errorf("%s: %d evaluations, last μ=%g: %w", tag, steps, mu, ErrRootSearchDiverged)
		}
		steps++
		n, err := p.Density(mu)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", tag, err)
		}

		return n - p.density, nil
	}

	// Stage 1: Bracket
	lo, hi := p.mu, p.mu
	f, err := eval(p.mu)
	if err != nil {
		return p.mu, err
	}
	if math.Abs(f) < precision {
		return p.mu, nil
	}
	flo, fhi := f, f
	step := p.opts.BracketStep
	for flo*fhi > 0 {
		if f > 0 {
			hi, fhi = lo, flo
			lo -= step
			if flo, err = eval(lo); err != nil {
				return p.mu, err
			}
		} else {
			lo, flo = hi, fhi
			hi += step
			if fhi, err = eval(hi); err != nil {
				return p.mu, err
			}
		}
		step *= 2
	}

	// Stage 2: Bisection
	mu := lo
	switch {
	case math.Abs(flo) < precision:
	case math.Abs(fhi) < precision:
		mu = hi
	default:
		for {
			mu = (lo + hi) / 2
			fm, err := eval(mu)
			if err != nil {
				return p.mu, err
			}
			if math.Abs(fm) < precision {
				break
			}
			if fm > 0 {
				hi = mu
			} else {
				lo = mu
			}
		}
	}
	p.mu = mu
	p.opts.Logger.Debug("lattice: chemical potential",
		zap.Float64("mu", mu), zap.Int("evaluations", steps), zap.Float64("target", p.density))

	return mu, nil
}

// SpectralFunction returns the lattice spectral function -Im Tr G_loc(ω)/π on
// a real-frequency mesh, in total and per block.
//
// Errors: gf.ErrUnsupportedMesh, errors of LocalGF.
func (p *Projector) SpectralFunction(mesh gf.Mesh) (total []float64, perBlock map[string][]float64, err error) {
	if mesh.Kind != gf.RealFreq {
		return nil, nil, fmt.Errorf("Projector.SpectralFunction: %s: %w", mesh.Kind, gf.ErrUnsupportedMesh)
	}
	g, err := p.LocalGF(mesh)
	if err != nil {
		return nil, nil, err
	}
	total = make([]float64, mesh.Len())
	perBlock = make(map[string][]float64, p.structure.Len())
	for bi, b := range p.structure.Blocks() {
		a, _ := g.BlockAt(bi).SpectralTrace()
		perBlock[b.Name] = a
		for i, v := range a {
			total[i] += v
		}
	}

	return total, perBlock, nil
}
