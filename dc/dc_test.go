// SPDX-License-Identifier: MIT
package dc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/hubbardi/dc"
	"github.com/katalvlaran/hubbardi/gf"
	"github.com/katalvlaran/hubbardi/matrix"
)

var shell = gf.MustBlockStructure(gf.Block{Name: "up", Dim: 5}, gf.Block{Name: "down", Dim: 5})

// occupied returns a diagonal density matrix with n_up and n_down electrons spread evenly.
func occupied(t *testing.T, nUp, nDown float64) gf.BlockMatrix {
	t.Helper()
	dm := gf.NewBlockMatrix(shell)
	for name, n := range map[string]float64{"up": nUp, "down": nDown} {
		id, err := matrix.NewIdentity(5)
		require.NoError(t, err)
		dm[name], err = matrix.Scale(id, complex(n/5, 0))
		require.NoError(t, err)
	}

	return dm
}

func TestCompute_Formulas(t *testing.T) {
	const u, j = 4.0, 0.7
	cases := []struct {
		formula    dc.Formula
		nUp, nDown float64
		opts       []dc.Option
		shiftUp    float64
		shiftDown  float64
		energy     float64
	}{
		{dc.FullyLocalizedLimit, 2, 2, nil, 12.95, 12.95, 22.6},
		{dc.Held, 2, 2, nil, 22.0 / 9 * 3.5, 22.0 / 9 * 3.5, 6 * 22.0 / 9},
		{dc.AroundMeanField, 2, 2, nil, 13.28, 13.28, 26.56},
		// unpolarized: only N matters
		{dc.FullyLocalizedLimit, 3, 1, nil, 12.95, 12.95, 22.6},
		{dc.FullyLocalizedLimit, 3, 1, []dc.Option{dc.WithSpinPolarization()}, 12.25, 13.65, 21.9},
	}
	for _, tc := range cases {
		t.Run(tc.formula.String(), func(t *testing.T) {
			out, e, err := dc.Compute(shell, occupied(t, tc.nUp, tc.nDown), u, j, tc.formula, tc.opts...)
			require.NoError(t, err)
			assert.InDelta(t, tc.energy, e, 1e-12)
			for name, want := range map[string]float64{"up": tc.shiftUp, "down": tc.shiftDown} {
				for a := 0; a < 5; a++ {
					for b := 0; b < 5; b++ {
						v, _ := out[name].At(a, b)
						if a == b {
							assert.InDelta(t, want, real(v), 1e-12)
						} else {
							assert.Zero(t, v)
						}
					}
				}
			}
		})
	}
}

func TestParseFormula(t *testing.T) {
	for in, want := range map[string]dc.Formula{
		"fll": dc.FullyLocalizedLimit, "0": dc.FullyLocalizedLimit, "HELD": dc.Held,
		"1": dc.Held, " amf ": dc.AroundMeanField, "2": dc.AroundMeanField,
	} {
		got, err := dc.ParseFormula(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := dc.ParseFormula("sic")
	require.ErrorIs(t, err, dc.ErrUnknownFormula)

	var f dc.Formula
	require.NoError(t, f.UnmarshalText([]byte("amf")))
	b, err := f.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "amf", string(b))
	_, err = dc.Formula(7).MarshalText()
	require.ErrorIs(t, err, dc.ErrUnknownFormula)
}

func TestCompute_Errors(t *testing.T) {
	_, _, err := dc.Compute(shell, occupied(t, 1, 1), 4, 0.7, dc.Formula(9))
	require.ErrorIs(t, err, dc.ErrUnknownFormula)

	odd := gf.MustBlockStructure(gf.Block{Name: "ud", Dim: 1})
	_, _, err = dc.Compute(odd, gf.NewBlockMatrix(odd), 4, 0.7, dc.Held)
	require.ErrorIs(t, err, dc.ErrUnknownSpin)

	_, _, err = dc.Compute(shell, gf.BlockMatrix{}, 4, 0.7, dc.Held)
	require.ErrorIs(t, err, gf.ErrStructureMismatch)
}

func TestOccupations(t *testing.T) {
	s := gf.MustBlockStructure(gf.Block{Name: "up_eg", Dim: 2}, gf.Block{Name: "up_t2g", Dim: 3},
		gf.Block{Name: "dn_eg", Dim: 2}, gf.Block{Name: "dn_t2g", Dim: 3})
	dm := gf.NewBlockMatrix(s)
	_ = dm["up_eg"].Set(0, 0, 1)
	_ = dm["dn_t2g"].Set(2, 2, 0.5)
	n, per, m, err := dc.Occupations(s, dm)
	require.NoError(t, err)
	assert.Equal(t, 1.5, n)
	assert.Equal(t, [2]float64{1, 0.5}, per)
	assert.Equal(t, 5, m)
}
