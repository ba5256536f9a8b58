// SPDX-License-Identifier: MIT
package dmft

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/katalvlaran/hubbardi/checkpoint"
	"github.com/katalvlaran/hubbardi/gf"
)

// SpectraStore is the part of the archive read and written by SpectralFunctions.
type SpectraStore interface {
	LatestIteration() (int, bool, error)
	ReadIteration(n int) (*checkpoint.Iteration, error)
	Scalar(name string) (float64, bool, error)
	PutSpectra(sp *checkpoint.Spectra) error
}

// SpectralProjector evaluates the lattice density of states.
type SpectralProjector interface {
	SetSelfEnergy(sigma *gf.BlockGf) error
	ClearSelfEnergy()
	SetDoubleCounting(dcImp gf.BlockMatrix, energy float64) error
	SetChemicalPotential(mu float64)
	SpectralFunction(mesh gf.Mesh) (total []float64, perBlock map[string][]float64, err error)
}

// SpectralFunctions post-processes the last iteration of store: the lattice
// DOS with Σ(ω), the double counting and the converged μ, and the bare DOS
// with Σ = 0, no double counting and the non-interacting μ. Both are evaluated
// on the real-frequency points of the stored Σ(ω) with the given broadening
// and written as DOS_itN, DOSproj_itN, DOS0_itN and DOSproj0_itN.
//
// Errors: ErrNoIterations, ErrMissingRealFrequency, checkpoint.ErrIO, gf.ErrInvalidMesh.
func SpectralFunctions(ctx context.Context, store SpectraStore, p SpectralProjector, broadening float64, log *zap.Logger) (*checkpoint.Spectra, error) {
	const tag = "dmft.SpectralFunctions"
	if log == nil {
		log = zap.NewNop()
	}
	last, ok, err := store.LatestIteration()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", tag, ErrNoIterations)
	}
	it, err := store.ReadIteration(last)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	if it.SigmaW == nil {
		return nil, fmt.Errorf("%s: iteration %d: %w", tag, last, ErrMissingRealFrequency)
	}
	mesh := it.SigmaW.Mesh()
	mesh.Eta = broadening
	if err = mesh.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	mu0, ok, err := store.Scalar(checkpoint.NonInteractingMuKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	if !ok {
		log.Warn("dmft: no non-interacting chemical potential stored, using 0")
	}

	sp := &checkpoint.Spectra{Index: last, Mesh: mesh}
	if err = p.SetSelfEnergy(it.SigmaW); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	if err = p.SetDoubleCounting(it.DCImp, it.DCEnergy); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	p.SetChemicalPotential(it.ChemicalPotential)
	if sp.Total, sp.PerBlock, err = p.SpectralFunction(mesh); err != nil {
		return nil, fmt.Errorf("%s: interacting: %w", tag, err)
	}
	if err = ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}

	p.ClearSelfEnergy()
	if err = p.SetDoubleCounting(nil, 0); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	p.SetChemicalPotential(mu0)
	if sp.Total0, sp.PerBlock0, err = p.SpectralFunction(mesh); err != nil {
		return nil, fmt.Errorf("%s: non-interacting: %w", tag, err)
	}

	if err = store.PutSpectra(sp); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	log.Info("dmft: spectral functions", zap.Int("iteration", last),
		zap.Float64("mu", it.ChemicalPotential), zap.Float64("mu0", mu0), zap.Int("points", mesh.Len()))

	return sp, nil
}
