// SPDX-License-Identifier: MIT
package dmft

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/katalvlaran/hubbardi/checkpoint"
	"github.com/katalvlaran/hubbardi/comm"
	"github.com/katalvlaran/hubbardi/dc"
	"github.com/katalvlaran/hubbardi/operator"
	"github.com/katalvlaran/hubbardi/solver"
)

// DefaultPrecision is the tolerance of the chemical-potential search.
const DefaultPrecision = 0.01

// Config holds the physics of the self-consistency loop.
type Config struct {
	U, J         float64
	NIterations  int        // cycles run by one Run, after the resume offset
	DCFormula    dc.Formula // double-counting flavour
	Precision    float64    // |n(μ) - n_target| tolerance
	Degeneracies [][]string // blocks averaged by Symmetrize
	Interaction  *operator.Expr
	Solve        solver.SolveOptions // CalcDm is always forced on
}

// Validate checks the loop parameters.
//
// Errors: ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.NIterations < 0:
		return fmt.Errorf("n_iterations=%d: %w", c.NIterations, ErrInvalidConfig)
	case !(c.Precision > 0) || math.IsInf(c.Precision, 0):
		return fmt.Errorf("precision=%g: %w", c.Precision, ErrInvalidConfig)
	case math.IsNaN(c.U) || math.IsInf(c.U, 0) || math.IsNaN(c.J) || math.IsInf(c.J, 0):
		return fmt.Errorf("U=%g J=%g: %w", c.U, c.J, ErrInvalidConfig)
	}

	return nil
}

// Option configures a Driver.
type Option func(*Driver)

// WithStore persists every iteration and enables resume. Only the coordinator uses it.
func WithStore(s Store) Option { return func(d *Driver) { d.store = s } }

// WithCommunicator joins the driver to an SPMD group; the default is a group of one.
func WithCommunicator(c comm.Communicator) Option {
	return func(d *Driver) {
		if c != nil {
			d.comm = c
		}
	}
}

// WithLogger attaches a logger; nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.log = l
		}
	}
}

// WithMetrics records per-iteration observables.
func WithMetrics(m *Metrics) Option { return func(d *Driver) { d.metrics = m } }

// WithConvergence stops the loop after the first iteration for which done
// returns true. prev is nil on the first iteration of a fresh run.
func WithConvergence(done func(prev, cur *checkpoint.Iteration) bool) Option {
	return func(d *Driver) { d.converged = done }
}

// SigmaConverged reports convergence once max |Σ_cur(iω) - Σ_prev(iω)| < tol.
// The first iteration of a fresh run never converges.
func SigmaConverged(tol float64) func(prev, cur *checkpoint.Iteration) bool {
	return func(prev, cur *checkpoint.Iteration) bool {
		if prev == nil || prev.SigmaIw == nil || cur.SigmaIw == nil {
			return false
		}
		d, err := cur.SigmaIw.MaxDiff(prev.SigmaIw)

		return err == nil && d < tol
	}
}
