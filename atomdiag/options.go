// SPDX-License-Identifier: MIT
package atomdiag

import (
	"runtime"

	"go.uber.org/zap"
)

// Default diagonalization policy.
const (
	// DefaultMaxSectorDim bounds the dimension of a dense sector eigenproblem.
	DefaultMaxSectorDim = 4096

	// DefaultMaxModes bounds the Fock space to 2^DefaultMaxModes states.
	DefaultMaxModes = 20

	// DefaultBoltzmannCutoff skips sector pairs with β·(E_min - E_0) above it.
	DefaultBoltzmannCutoff = 50.0

	// DefaultPoleMergeTol merges poles closer than this.
	DefaultPoleMergeTol = 1e-10
)

// Options configures ExactDiag.
type Options struct {
	MaxSectorDim    int
	MaxModes        int
	BoltzmannCutoff float64
	PoleMergeTol    float64
	Workers         int
	Logger          *zap.Logger
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the documented defaults with GOMAXPROCS workers and a no-op logger.
func DefaultOptions() Options {
	return Options{
		MaxSectorDim:    DefaultMaxSectorDim,
		MaxModes:        DefaultMaxModes,
		BoltzmannCutoff: DefaultBoltzmannCutoff,
		PoleMergeTol:    DefaultPoleMergeTol,
		Workers:         runtime.GOMAXPROCS(0),
		Logger:          zap.NewNop(),
	}
}

// WithMaxSectorDim sets the sector-dimension guard. Panics if n < 1.
func WithMaxSectorDim(n int) Option {
	if n < 1 {
		panic("atomdiag: WithMaxSectorDim(n<1)")
	}

	return func(o *Options) { o.MaxSectorDim = n }
}

// WithMaxModes sets the Fock-space guard. Panics if n < 1 or n > 30.
func WithMaxModes(n int) Option {
	if n < 1 || n > 30 {
		panic("atomdiag: WithMaxModes out of 1..30")
	}

	return func(o *Options) { o.MaxModes = n }
}

// WithBoltzmannCutoff sets the thermal pruning threshold. Panics if c ≤ 0.
func WithBoltzmannCutoff(c float64) Option {
	if !(c > 0) {
		panic("atomdiag: WithBoltzmannCutoff(c<=0)")
	}

	return func(o *Options) { o.BoltzmannCutoff = c }
}

// WithWorkers bounds the goroutines used per call. Panics if n < 1.
func WithWorkers(n int) Option {
	if n < 1 {
		panic("atomdiag: WithWorkers(n<1)")
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
