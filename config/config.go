// SPDX-License-Identifier: MIT

// Package config loads the description of a DMFT run.
//
// Values come, in increasing priority, from Default, a YAML file and
// HUBBARDI_* environment variables (nested keys joined by "_", for example
// HUBBARDI_GRID_N_IW).
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/katalvlaran/hubbardi/dc"
	"github.com/katalvlaran/hubbardi/dmft"
	"github.com/katalvlaran/hubbardi/gf"
	"github.com/katalvlaran/hubbardi/lattice"
	"github.com/katalvlaran/hubbardi/operator"
	"github.com/katalvlaran/hubbardi/solver"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HUBBARDI"

// Interaction kinds.
const (
	Hubbard = "hubbard"
	Slater  = "slater"
)

// Interaction selects the local Coulomb vertex.
type Interaction struct {
	Kind string `yaml:"kind" mapstructure:"kind"`
	L    int    `yaml:"l" mapstructure:"l"` // shell of the slater vertex
}

// Lattice describes the model lattice.
type Lattice struct {
	DOS           string  `yaml:"dos" mapstructure:"dos"`
	HalfBandwidth float64 `yaml:"half_bandwidth" mapstructure:"half_bandwidth"`
	Nodes         int     `yaml:"nodes" mapstructure:"nodes"`
}

// DOS configures the post-processed spectral functions.
type DOS struct {
	IDelta float64 `yaml:"idelta" mapstructure:"idelta"`
}

// Log configures the CLI logger.
type Log struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// Config is one DMFT run.
type Config struct {
	Filename       string              `yaml:"filename" mapstructure:"filename"`
	Beta           float64             `yaml:"beta" mapstructure:"beta"`
	U              float64             `yaml:"u" mapstructure:"u"`
	J              float64             `yaml:"j" mapstructure:"j"`
	NIterations    int                 `yaml:"n_iterations" mapstructure:"n_iterations"`
	DCFormula      string              `yaml:"dc_formula" mapstructure:"dc_formula"`
	Density        float64             `yaml:"density" mapstructure:"density"`
	Precision      float64             `yaml:"precision" mapstructure:"precision"`
	Convergence    float64             `yaml:"convergence" mapstructure:"convergence"` // max |ΔΣ(iω)|, 0 disables
	BlockStructure []gf.Block          `yaml:"block_structure" mapstructure:"block_structure"`
	Degeneracies   [][]string          `yaml:"degeneracies" mapstructure:"degeneracies"`
	Interaction    Interaction         `yaml:"interaction" mapstructure:"interaction"`
	Lattice        Lattice             `yaml:"lattice" mapstructure:"lattice"`
	Grid           solver.Grid         `yaml:"grid" mapstructure:"grid"`
	Solve          solver.SolveOptions `yaml:"solve" mapstructure:"solve"`
	DOS            DOS                 `yaml:"dos" mapstructure:"dos"`
	Log            Log                 `yaml:"log" mapstructure:"log"`
}

// Default returns a paramagnetic half-filled single band on the Bethe lattice.
func Default() Config {
	return Config{
		Filename:       "hubbardi.db",
		Beta:           40,
		U:              4,
		NIterations:    10,
		DCFormula:      dc.FullyLocalizedLimit.String(),
		Density:        1,
		Precision:      dmft.DefaultPrecision,
		BlockStructure: []gf.Block{{Name: operator.SpinUp, Dim: 1}, {Name: operator.SpinDown, Dim: 1}},
		Degeneracies:   [][]string{{operator.SpinUp, operator.SpinDown}},
		Interaction:    Interaction{Kind: Hubbard},
		Lattice:        Lattice{DOS: lattice.SemiCircular, HalfBandwidth: 1, Nodes: lattice.DefaultNodes},
		Grid:           solver.DefaultGrid(),
		Solve:          solver.SolveOptions{CalcGw: true},
		DOS:            DOS{IDelta: 0.1},
		Log:            Log{Level: "info"},
	}
}

// setDefaults registers every scalar key so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("filename", d.Filename)
	v.SetDefault("beta", d.Beta)
	v.SetDefault("u", d.U)
	v.SetDefault("j", d.J)
	v.SetDefault("n_iterations", d.NIterations)
	v.SetDefault("dc_formula", d.DCFormula)
	v.SetDefault("density", d.Density)
	v.SetDefault("precision", d.Precision)
	v.SetDefault("convergence", d.Convergence)
	v.SetDefault("interaction.kind", d.Interaction.Kind)
	v.SetDefault("interaction.l", d.Interaction.L)
	v.SetDefault("lattice.dos", d.Lattice.DOS)
	v.SetDefault("lattice.half_bandwidth", d.Lattice.HalfBandwidth)
	v.SetDefault("lattice.nodes", d.Lattice.Nodes)
	v.SetDefault("grid.n_iw", d.Grid.NIw)
	v.SetDefault("grid.n_tau", d.Grid.NTau)
	v.SetDefault("grid.n_l", d.Grid.NL)
	v.SetDefault("grid.n_w", d.Grid.NW)
	v.SetDefault("grid.w_min", d.Grid.WMin)
	v.SetDefault("grid.w_max", d.Grid.WMax)
	v.SetDefault("grid.idelta", d.Grid.IDelta)
	v.SetDefault("solve.calc_gw", d.Solve.CalcGw)
	v.SetDefault("solve.calc_gtau", d.Solve.CalcGtau)
	v.SetDefault("solve.calc_gl", d.Solve.CalcGl)
	v.SetDefault("solve.calc_dm", d.Solve.CalcDm)
	v.SetDefault("dos.idelta", d.DOS.IDelta)
	v.SetDefault("log.level", d.Log.Level)
}

// Load reads path (may be empty) on top of Default, applies environment
// overrides and validates the result.
//
// Errors: ErrInvalid.
func Load(path string) (Config, error) {
	v := viper.New()
	d := Default()
	setDefaults(v, d)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config.Load: %s: %w: %w", path, ErrInvalid, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w: %w", ErrInvalid, err)
	}
	if cfg.BlockStructure == nil {
		cfg.BlockStructure = d.BlockStructure
	}
	if cfg.Degeneracies == nil {
		cfg.Degeneracies = d.Degeneracies
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// Dump renders c as YAML.
func Dump(c Config) ([]byte, error) {
	return yaml.Marshal(c)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalid)
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

// Validate checks every field and the consistency of the block structure
// with the interaction.
//
// Errors: ErrInvalid.
func (c Config) Validate() error {
	switch {
	case c.Filename == "":
		return invalid("empty filename")
	case !(c.Beta > 0) || !finite(c.Beta):
		return invalid("beta=%g", c.Beta)
	case !finite(c.U) || !finite(c.J):
		return invalid("u=%g j=%g", c.U, c.J)
	case c.NIterations < 0:
		return invalid("n_iterations=%d", c.NIterations)
	case !(c.Precision > 0) || !finite(c.Precision):
		return invalid("precision=%g", c.Precision)
	case !(c.Convergence >= 0):
		return invalid("convergence=%g", c.Convergence)
	case !(c.DOS.IDelta > 0):
		return invalid("dos.idelta=%g", c.DOS.IDelta)
	case c.Lattice.Nodes < 1:
		return invalid("lattice.nodes=%d", c.Lattice.Nodes)
	}
	if _, err := c.Formula(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	s, err := c.Structure()
	if err != nil {
		return err
	}
	if !(c.Density >= 0) || c.Density > float64(s.TotalDim()) {
		return invalid("density=%g for %d orbitals", c.Density, s.TotalDim())
	}
	for _, group := range c.Degeneracies {
		for _, name := range group {
			if _, ok := s.Index(name); !ok {
				return invalid("degeneracies: unknown block %q", name)
			}
		}
	}
	if _, err = c.LatticeDOS(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err = c.Grid.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err = zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}
	if _, err = c.Hamiltonian(); err != nil {
		return err
	}

	return nil
}

// Structure returns the validated block structure.
//
// Errors: ErrInvalid.
func (c Config) Structure() (*gf.BlockStructure, error) {
	s, err := gf.NewBlockStructure(c.BlockStructure...)
	if err != nil {
		return nil, fmt.Errorf("%w: block_structure: %w", ErrInvalid, err)
	}

	return s, nil
}

// Formula returns the parsed double-counting formula.
func (c Config) Formula() (dc.Formula, error) { return dc.ParseFormula(c.DCFormula) }

// LatticeDOS returns the model density of states.
func (c Config) LatticeDOS() (lattice.DOS, error) {
	return lattice.NewDOS(c.Lattice.DOS, c.Lattice.HalfBandwidth)
}

// Hamiltonian builds the interaction vertex. Both kinds need an "up" and a
// "down" block of equal dimension; slater needs dimension 2l+1.
//
// Errors: ErrInvalid.
func (c Config) Hamiltonian() (*operator.Expr, error) {
	s, err := c.Structure()
	if err != nil {
		return nil, err
	}
	up, okUp := s.Dim(operator.SpinUp)
	down, okDown := s.Dim(operator.SpinDown)
	if !okUp || !okDown || up != down || s.Len() != 2 {
		return nil, invalid("interaction %s needs blocks up and down of equal dim, got %s", c.Interaction.Kind, s)
	}
	switch strings.ToLower(c.Interaction.Kind) {
	case Hubbard:
		return operator.HubbardInteraction(c.U, up), nil
	case Slater:
		if up != 2*c.Interaction.L+1 {
			return nil, invalid("slater l=%d needs dim %d, got %d", c.Interaction.L, 2*c.Interaction.L+1, up)
		}
		um, err := operator.UMatrixSlater(c.Interaction.L, c.U, c.J)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		h, err := operator.SlaterInteraction([]string{operator.SpinUp, operator.SpinDown}, um)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}

		return h, nil
	}

	return nil, invalid("interaction kind %q", c.Interaction.Kind)
}

// DMFT returns the loop parameters.
//
// Errors: ErrInvalid.
func (c Config) DMFT() (dmft.Config, error) {
	f, err := c.Formula()
	if err != nil {
		return dmft.Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	h, err := c.Hamiltonian()
	if err != nil {
		return dmft.Config{}, err
	}

	return dmft.Config{
		U:            c.U,
		J:            c.J,
		NIterations:  c.NIterations,
		DCFormula:    f,
		Precision:    c.Precision,
		Degeneracies: c.Degeneracies,
		Interaction:  h,
		Solve:        c.Solve,
	}, nil
}

// Representations lists the meshes the solver must allocate for Solve.
func (c Config) Representations() []gf.MeshKind {
	kinds := []gf.MeshKind{gf.MatsubaraFreq}
	if c.Solve.CalcGw {
		kinds = append(kinds, gf.RealFreq)
	}
	if c.Solve.CalcGtau {
		kinds = append(kinds, gf.ImTime)
	}
	if c.Solve.CalcGl {
		kinds = append(kinds, gf.Legendre)
	}

	return kinds
}

// NewSolver allocates the impurity solver of the run.
func (c Config) NewSolver(log *zap.Logger) (*solver.Solver, error) {
	return solver.New(c.Beta, c.BlockStructure,
		solver.WithGrid(c.Grid),
		solver.WithRepresentations(c.Representations()...),
		solver.WithLogger(log))
}

// NewProjector builds the lattice projector on the Matsubara mesh of the run.
func (c Config) NewProjector(log *zap.Logger) (*lattice.Projector, error) {
	s, err := c.Structure()
	if err != nil {
		return nil, err
	}
	mesh, err := gf.NewMatsubaraMesh(c.Beta, c.Grid.NIw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	dos, err := c.LatticeDOS()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	return lattice.New(s, mesh, dos, c.Density, lattice.WithNodes(c.Lattice.Nodes), lattice.WithLogger(log))
}
