// SPDX-License-Identifier: MIT
// Package atomdiag: Lehmann representation of the atomic Green's function.
//
//	G_ij(z) = Σ_{n,m} ⟨n|c_i|m⟩⟨m|c†_j|n⟩ (e^{-βE_n} + e^{-βE_m}) / Z / (z - (E_m - E_n))
//
// Each (n, m) pair is a pole ε = E_m - E_n with a Dim×Dim residue. Poles closer
// than PoleMergeTol are merged; sector pairs whose lower edge sits more than
// BoltzmannCutoff/β above the ground state are skipped.

package atomdiag

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/hubbardi/gf"
	"github.com/katalvlaran/hubbardi/matrix"
	"github.com/katalvlaran/hubbardi/operator"
)

// Sector is an invariant subspace of the Hamiltonian.
type Sector struct {
	States   []uint64      // Fock states spanning the sector, ascending
	Energies []float64     // eigenvalues relative to E0, ascending
	Vectors  *matrix.Dense // eigenvectors in columns, rows indexed like States
	EMin     float64       // Energies[0]
}

// Eigensystem is the Spectrum produced by ExactDiag.
type Eigensystem struct {
	fops     []operator.Index
	modeOf   map[operator.Index]int
	sectors  []*Sector
	sectorOf []int32
	posOf    []int32
	e0       float64
	opts     Options
}

var _ Spectrum = (*Eigensystem)(nil)

// GroundStateEnergy returns E0.
func (es *Eigensystem) GroundStateEnergy() float64 { return es.e0 }

// Sectors returns the invariant subspaces in order of their smallest Fock state.
func (es *Eigensystem) Sectors() []*Sector { return es.sectors }

// Fops returns the fermionic basis (mode k ↔ Fops()[k]).
func (es *Eigensystem) Fops() []operator.Index { return es.fops }

// Energies returns every eigenvalue relative to E0, ascending.
func (es *Eigensystem) Energies() []float64 {
	var out []float64
	for _, s := range es.sectors {
		out = append(out, s.Energies...)
	}
	sort.Float64s(out)

	return out
}

// PartitionFunction returns Z = Σ e^{-β(E - E0)}.
func (es *Eigensystem) PartitionFunction(beta float64) float64 {
	var z float64
	for _, s := range es.sectors {
		for _, e := range s.Energies {
			z += math.Exp(-beta * e)
		}
	}

	return z
}

// pole is one term R/(z - eps) with a row-major Dim×Dim residue.
type pole struct {
	eps float64
	res []complex128
}

// transition holds c_k restricted to one sector pair B → A in the eigenbasis.
type transition struct {
	from, to int
	d        map[int]*matrix.Dense // mode → V_A† C_k V_B (dimA × dimB)
}

// blockModes resolves the mode numbers of block b.
func (es *Eigensystem) blockModes(b gf.Block) ([]int, error) {
	modes := make([]int, b.Dim)
	for i := range modes {
		m, ok := es.modeOf[operator.Index{Block: b.Name, Orbital: i}]
		if !ok {
			return nil, fmt.Errorf("%s: %w", operator.Index{Block: b.Name, Orbital: i}, ErrUnknownIndex)
		}
		modes[i] = m
	}

	return modes, nil
}

// transitions returns the annihilation matrix elements of modes between
// thermally relevant sector pairs, in deterministic (from, to) order.
func (es *Eigensystem) transitions(beta float64, modes []int) []transition {
	type key struct{ from, to int }
	type entry struct {
		row, col int
		sign     float64
	}
	sparse := make(map[key]map[int][]entry)
	var keys []key
	for _, mode := range modes {
		bit := uint64(1) << uint(mode)
		op := fockOp{mode: uint(mode), dagger: false}
		for b, sec := range es.sectors {
			for col, s := range sec.States {
				if s&bit == 0 {
					continue
				}
				to, sign, _ := op.apply(s)
				k := key{from: b, to: int(es.sectorOf[to])}
				if beta*math.Min(es.sectors[k.from].EMin, es.sectors[k.to].EMin) > es.opts.BoltzmannCutoff {
					continue
				}
				byMode, ok := sparse[k]
				if !ok {
					byMode = make(map[int][]entry)
					sparse[k] = byMode
					keys = append(keys, k)
				}
				byMode[mode] = append(byMode[mode], entry{row: int(es.posOf[to]), col: col, sign: sign})
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].from != keys[j].from {
			return keys[i].from < keys[j].from
		}

		return keys[i].to < keys[j].to
	})

	out := make([]transition, 0, len(keys))
	for _, k := range keys {
		secA, secB := es.sectors[k.to], es.sectors[k.from]
		dimA, dimB := len(secA.States), len(secB.States)
		vaH, _ := matrix.ConjTranspose(secA.Vectors)
		tr := transition{from: k.from, to: k.to, d: make(map[int]*matrix.Dense, len(modes))}
		for _, mode := range modes {
			entries := sparse[k][mode]
			if len(entries) == 0 {
				continue
			}
			// T = C_k V_B, then D = V_A† T
			t, _ := matrix.NewDense(dimA, dimB)
			td, vb := t.Data(), secB.Vectors.Data()
			for _, e := range entries {
				for j := 0; j < dimB; j++ {
					td[e.row*dimB+j] += complex(e.sign, 0) * vb[e.col*dimB+j]
				}
			}
			tr.d[mode], _ = matrix.Mul(vaH, t)
		}
		out = append(out, tr)
	}

	return out
}

// poles assembles and merges the Lehmann poles of one block.
func (es *Eigensystem) poles(beta float64, modes []int) []pole {
	z := es.PartitionFunction(beta)
	dim := len(modes)
	var raw []pole
	for _, tr := range es.transitions(beta, modes) {
		secA, secB := es.sectors[tr.to], es.sectors[tr.from]
		dimB := len(secB.States)
		for n, en := range secA.Energies {
			for m, em := range secB.Energies {
				w := (math.Exp(-beta*en) + math.Exp(-beta*em)) / z
				if w == 0 {
					continue
				}
				res := make([]complex128, dim*dim)
				var nonzero bool
				for i, mi := range modes {
					di, ok := tr.d[mi]
					if !ok {
						continue
					}
					a := di.Data()[n*dimB+m]
					if a == 0 {
						continue
					}
					for j, mj := range modes {
						dj, ok := tr.d[mj]
						if !ok {
							continue
						}
						v := a * cmplx.Conj(dj.Data()[n*dimB+m]) * complex(w, 0)
						if v != 0 {
							res[i*dim+j] = v
							nonzero = true
						}
					}
				}
				if nonzero {
					raw = append(raw, pole{eps: em - en, res: res})
				}
			}
		}
	}

	sort.SliceStable(raw, func(i, j int) bool { return raw[i].eps < raw[j].eps })
	merged := make([]pole, 0, len(raw))
	for _, p := range raw {
		if k := len(merged) - 1; k >= 0 && p.eps-merged[k].eps < es.opts.PoleMergeTol {
			for idx, v := range p.res {
				merged[k].res[idx] += v
			}

			continue
		}
		merged = append(merged, p)
	}
	out := merged[:0]
	for _, p := range merged {
		var big float64
		for _, v := range p.res {
			big = math.Max(big, cmplx.Abs(v))
		}
		if big > 1e-15 {
			out = append(out, p)
		}
	}

	return out
}

// GreenFunction evaluates the Lehmann sum on mesh for every block of s.
//
// Representations:
//   - MatsubaraFreq, RealFreq: Σ R/(z - ε).
//   - ImTime: -Σ R e^{-τε}/(1 + e^{-βε}), rewritten for ε < 0 to avoid overflow.
//   - Legendre: -√(2l+1)·β·Σ R h_l(βε/2) (see legendreKernel).
//
// Blocks are filled concurrently; the result does not depend on scheduling.
//
// Errors: ErrInvalidBeta, gf.ErrMeshMismatch (mesh beta ≠ beta), ErrUnknownIndex.
func (es *Eigensystem) GreenFunction(beta float64, s *gf.BlockStructure, mesh gf.Mesh) (*gf.BlockGf, error) {
	const tag = "Eigensystem.GreenFunction"
	if !(beta > 0) || math.IsInf(beta, 0) {
		return nil, adErrorf(tag, ErrInvalidBeta)
	}
	if mesh.Kind != gf.RealFreq && mesh.Beta != beta {
		return nil, adErrorf(tag, fmt.Errorf("mesh beta %g vs %g: %w", mesh.Beta, beta, gf.ErrMeshMismatch))
	}
	out, err := gf.NewBlockGf(s, mesh)
	if err != nil {
		return nil, adErrorf(tag, err)
	}

	var eg errgroup.Group
	eg.SetLimit(es.opts.Workers)
	for bi := 0; bi < s.Len(); bi++ {
		eg.Go(func() error {
			modes, err := es.blockModes(s.Block(bi))
			if err != nil {
				return err
			}
			fillBlock(out.BlockAt(bi), es.poles(beta, modes), beta)

			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, adErrorf(tag, err)
	}

	return out, nil
}

// fillBlock writes the pole sum into g.
func fillBlock(g *gf.Gf, poles []pole, beta float64) {
	mesh := g.Mesh()
	for i, sample := range g.Data() {
		d := sample.Data()
		switch mesh.Kind {
		case gf.MatsubaraFreq, gf.RealFreq:
			z := mesh.Point(i)
			for _, p := range poles {
				f := 1 / (z - complex(p.eps, 0))
				for idx, r := range p.res {
					d[idx] += r * f
				}
			}
		case gf.ImTime:
			tau := real(mesh.Point(i))
			for _, p := range poles {
				var f float64
				if p.eps >= 0 {
					f = -math.Exp(-tau*p.eps) / (1 + math.Exp(-beta*p.eps))
				} else {
					f = -math.Exp((beta-tau)*p.eps) / (1 + math.Exp(beta*p.eps))
				}
				for idx, r := range p.res {
					d[idx] += r * complex(f, 0)
				}
			}
		case gf.Legendre:
			l := i
			pref := -math.Sqrt(float64(2*l+1)) * beta
			for _, p := range poles {
				f := pref * legendreKernel(l, beta*p.eps/2)
				for idx, r := range p.res {
					d[idx] += r * complex(f, 0)
				}
			}
		}
	}
}

// DensityMatrix returns ρ[b]_ij = ⟨c†_{b,j} c_{b,i}⟩ = Σ w_m conj(D_j[n,m]) D_i[n,m].
//
// Errors: ErrInvalidBeta, ErrUnknownIndex.
func (es *Eigensystem) DensityMatrix(beta float64, s *gf.BlockStructure) (gf.BlockMatrix, error) {
	const tag = "Eigensystem.DensityMatrix"
	if !(beta > 0) || math.IsInf(beta, 0) {
		return nil, adErrorf(tag, ErrInvalidBeta)
	}
	z := es.PartitionFunction(beta)
	out := gf.NewBlockMatrix(s)
	for bi := 0; bi < s.Len(); bi++ {
		b := s.Block(bi)
		modes, err := es.blockModes(b)
		if err != nil {
			return nil, adErrorf(tag, err)
		}
		rho := out[b.Name].Data()
		for _, tr := range es.transitions(beta, modes) {
			secA, secB := es.sectors[tr.to], es.sectors[tr.from]
			dimB := len(secB.States)
			for m, em := range secB.Energies {
				w := math.Exp(-beta*em) / z
				if w == 0 {
					continue
				}
				for n := range secA.Energies {
					for i, mi := range modes {
						di, ok := tr.d[mi]
						if !ok {
							continue
						}
						a := di.Data()[n*dimB+m]
						for j, mj := range modes {
							dj, ok := tr.d[mj]
							if !ok {
								continue
							}
							rho[i*b.Dim+j] += complex(w, 0) * a * cmplx.Conj(dj.Data()[n*dimB+m])
						}
					}
				}
			}
		}
	}
	out.Hermitize()

	return out, nil
}
