// SPDX-License-Identifier: MIT
package solver

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/katalvlaran/hubbardi/atomdiag"
	"github.com/katalvlaran/hubbardi/gf"
)

// Default grid parameters.
const (
	DefaultNIw    = 1025
	DefaultNTau   = 10001
	DefaultNL     = 30
	DefaultNW     = 500
	DefaultWMin   = -15.0
	DefaultWMax   = 15.0
	DefaultIDelta = 0.01
)

// Grid holds the sampling parameters of the four representations.
type Grid struct {
	NIw    int     `yaml:"n_iw" mapstructure:"n_iw" cbor:"n_iw"`
	NTau   int     `yaml:"n_tau" mapstructure:"n_tau" cbor:"n_tau"`
	NL     int     `yaml:"n_l" mapstructure:"n_l" cbor:"n_l"`
	NW     int     `yaml:"n_w" mapstructure:"n_w" cbor:"n_w"`
	WMin   float64 `yaml:"w_min" mapstructure:"w_min" cbor:"w_min"`
	WMax   float64 `yaml:"w_max" mapstructure:"w_max" cbor:"w_max"`
	IDelta float64 `yaml:"idelta" mapstructure:"idelta" cbor:"idelta"`
}

// DefaultGrid returns the documented default grid.
func DefaultGrid() Grid {
	return Grid{
		NIw:    DefaultNIw,
		NTau:   DefaultNTau,
		NL:     DefaultNL,
		NW:     DefaultNW,
		WMin:   DefaultWMin,
		WMax:   DefaultWMax,
		IDelta: DefaultIDelta,
	}
}

// Validate checks grid sizes, the real window and the broadening.
//
// Errors: ErrInvalidConfig.
func (g Grid) Validate() error {
	switch {
	case g.NIw < 1 || g.NTau < 1 || g.NL < 1 || g.NW < 1:
		return fmt.Errorf("grid sizes n_iw=%d n_tau=%d n_l=%d n_w=%d: %w", g.NIw, g.NTau, g.NL, g.NW, ErrInvalidConfig)
	case !(g.WMin < g.WMax) || math.IsInf(g.WMin, 0) || math.IsInf(g.WMax, 0):
		return fmt.Errorf("real window [%g,%g]: %w", g.WMin, g.WMax, ErrInvalidConfig)
	case !(g.IDelta >= 0) || math.IsInf(g.IDelta, 0):
		return fmt.Errorf("idelta=%g: %w", g.IDelta, ErrInvalidConfig)
	}

	return nil
}

// Meshes returns the mesh of every kind at inverse temperature beta.
func (g Grid) Meshes(beta float64) (map[gf.MeshKind]gf.Mesh, error) {
	out := make(map[gf.MeshKind]gf.Mesh, 4)
	var err error
	if out[gf.MatsubaraFreq], err = gf.NewMatsubaraMesh(beta, g.NIw); err != nil {
		return nil, err
	}
	if out[gf.RealFreq], err = gf.NewRealMesh(g.WMin, g.WMax, g.NW, g.IDelta); err != nil {
		return nil, err
	}
	if out[gf.ImTime], err = gf.NewImTimeMesh(beta, g.NTau); err != nil {
		return nil, err
	}
	if out[gf.Legendre], err = gf.NewLegendreMesh(beta, g.NL); err != nil {
		return nil, err
	}

	return out, nil
}

// Options configures a Solver.
type Options struct {
	Grid            Grid
	TailFit         gf.TailOptions
	Representations []gf.MeshKind // allocated in addition to MatsubaraFreq
	Diagonalizer    atomdiag.Diagonalizer
	Logger          *zap.Logger
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the default grid, the default tail fit, all four
// representations, ExactDiag and a no-op logger.
func DefaultOptions() Options {
	return Options{
		Grid:            DefaultGrid(),
		TailFit:         gf.DefaultTailOptions(),
		Representations: append([]gf.MeshKind(nil), gf.AllKinds...),
		Diagonalizer:    atomdiag.New(),
		Logger:          zap.NewNop(),
	}
}

// WithGrid replaces the whole grid.
func WithGrid(g Grid) Option { return func(o *Options) { o.Grid = g } }

// WithNIw sets the number of positive Matsubara frequencies.
func WithNIw(n int) Option { return func(o *Options) { o.Grid.NIw = n } }

// WithNTau sets the number of imaginary-time points.
func WithNTau(n int) Option { return func(o *Options) { o.Grid.NTau = n } }

// WithNL sets the number of Legendre coefficients.
func WithNL(n int) Option { return func(o *Options) { o.Grid.NL = n } }

// WithNW sets the number of real-frequency points.
func WithNW(n int) Option { return func(o *Options) { o.Grid.NW = n } }

// WithRealWindow sets the real-frequency window [wMin, wMax].
func WithRealWindow(wMin, wMax float64) Option {
	return func(o *Options) { o.Grid.WMin, o.Grid.WMax = wMin, wMax }
}

// WithBroadening sets the real-frequency broadening idelta.
func WithBroadening(idelta float64) Option { return func(o *Options) { o.Grid.IDelta = idelta } }

// WithTailFit sets the hybridization tail-fit policy.
func WithTailFit(t gf.TailOptions) Option { return func(o *Options) { o.TailFit = t } }

// WithRepresentations selects the allocated representations. MatsubaraFreq is
// always allocated whether listed or not.
func WithRepresentations(kinds ...gf.MeshKind) Option {
	return func(o *Options) { o.Representations = append([]gf.MeshKind(nil), kinds...) }
}

// WithDiagonalizer replaces the exact-diagonalization backend; nil keeps the default.
func WithDiagonalizer(d atomdiag.Diagonalizer) Option {
	return func(o *Options) {
		if d != nil {
			o.Diagonalizer = d
		}
	}
}

// WithLogger attaches a logger; nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}
