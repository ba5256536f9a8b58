// SPDX-License-Identifier: MIT
package atomdiag

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/hubbardi/gf"
	"github.com/katalvlaran/hubbardi/matrix"
	"github.com/katalvlaran/hubbardi/operator"
)

// Spectrum is the complete eigen-decomposition of a local Hamiltonian and the
// spectral sums built from it.
type Spectrum interface {
	// GreenFunction returns G on mesh for every block of s at inverse temperature beta.
	GreenFunction(beta float64, s *gf.BlockStructure, mesh gf.Mesh) (*gf.BlockGf, error)
	// DensityMatrix returns ρ[b]_ij = ⟨c†_{b,j} c_{b,i}⟩.
	DensityMatrix(beta float64, s *gf.BlockStructure) (gf.BlockMatrix, error)
	// GroundStateEnergy returns the lowest eigenvalue (unshifted).
	GroundStateEnergy() float64
}

// Diagonalizer produces a Spectrum from a Hamiltonian and its fermionic basis.
type Diagonalizer interface {
	Diagonalize(h *operator.Expr, fops []operator.Index) (Spectrum, error)
}

// ExactDiag diagonalizes the Hamiltonian in the full Fock space, one invariant
// sector at a time.
type ExactDiag struct {
	opts Options
}

var _ Diagonalizer = (*ExactDiag)(nil)

// New returns an ExactDiag with DefaultOptions overridden by opts.
func New(opts ...Option) *ExactDiag {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	return &ExactDiag{opts: o}
}

// hElem is one nonzero matrix element H[to][from].
type hElem struct {
	to  uint64
	val complex128
}

// Diagonalize builds the Hamiltonian matrix in the occupation basis of fops,
// splits it into invariant sectors and diagonalizes each.
//
// Implementation:
//   - Stage 1: Validate basis (unique, ≤ MaxModes), indices of h ⊂ fops, h = h†.
//   - Stage 2: Apply every compiled monomial to every Fock state; union states
//     joined by a nonzero element into sectors (ordered by smallest state).
//   - Stage 3: Dense eigenproblem per sector: gonum EigenSym for real sectors,
//     complex Jacobi otherwise; sectors run on an errgroup.
//   - Stage 4: Shift energies by the ground-state energy E0.
//
// Errors:
//   - ErrUnknownIndex, ErrNotHermitian, ErrSectorTooLarge, matrix.ErrEigenFailed.
func (d *ExactDiag) Diagonalize(h *operator.Expr, fops []operator.Index) (Spectrum, error) {
	const tag = "ExactDiag.Diagonalize"

	// Stage 1: Validate
	if len(fops) == 0 {
		return nil, adErrorf(tag, fmt.Errorf("empty fermionic basis: %w", ErrUnknownIndex))
	}
	if len(fops) > d.opts.MaxModes {
		return nil, adErrorf(tag, fmt.Errorf("%d modes > %d: %w", len(fops), d.opts.MaxModes, ErrSectorTooLarge))
	}
	modeOf := make(map[operator.Index]int, len(fops))
	for i, idx := range fops {
		if _, dup := modeOf[idx]; dup {
			return nil, adErrorf(tag, fmt.Errorf("duplicate mode %s: %w", idx, ErrUnknownIndex))
		}
		modeOf[idx] = i
	}
	terms, err := compile(h, modeOf)
	if err != nil {
		return nil, adErrorf(tag, err)
	}
	if !h.IsHermitian(1e-10) {
		return nil, adErrorf(tag, ErrNotHermitian)
	}

	// Stage 2: Sparse matrix and sectors
	nStates := 1 << len(fops)
	cols := make([][]hElem, nStates)
	uf := newUnionFind(nStates)
	acc := make(map[uint64]complex128)
	for s := 0; s < nStates; s++ {
		clear(acc)
		for _, t := range terms {
			if to, amp, ok := t.apply(uint64(s)); ok {
				acc[to] += amp
			}
		}
		for to, v := range acc {
			if v == 0 {
				continue
			}
			cols[s] = append(cols[s], hElem{to: to, val: v})
			uf.union(int32(s), int32(to))
		}
	}

	es := &Eigensystem{
		fops:     append([]operator.Index(nil), fops...),
		modeOf:   modeOf,
		sectorOf: make([]int32, nStates),
		posOf:    make([]int32, nStates),
		opts:     d.opts,
	}
	rootSector := make(map[int32]int32)
	for s := 0; s < nStates; s++ {
		r := uf.find(int32(s))
		sec, ok := rootSector[r]
		if !ok {
			sec = int32(len(es.sectors))
			rootSector[r] = sec
			es.sectors = append(es.sectors, &Sector{})
		}
		sector := es.sectors[sec]
		es.sectorOf[s] = sec
		es.posOf[s] = int32(len(sector.States))
		sector.States = append(sector.States, uint64(s))
	}
	for i, sec := range es.sectors {
		if len(sec.States) > d.opts.MaxSectorDim {
			return nil, adErrorf(tag, fmt.Errorf("sector %d: dim %d > %d: %w", i, len(sec.States), d.opts.MaxSectorDim, ErrSectorTooLarge))
		}
	}

	// Stage 3: Per-sector eigenproblems
	var eg errgroup.Group
	eg.SetLimit(d.opts.Workers)
	for i, sec := range es.sectors {
		eg.Go(func() error {
			if err := es.diagonalizeSector(sec, cols); err != nil {
				return fmt.Errorf("sector %d: %w", i, err)
			}

			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, adErrorf(tag, err)
	}

	// Stage 4: Shift by E0
	es.e0 = math.Inf(1)
	for _, sec := range es.sectors {
		es.e0 = math.Min(es.e0, sec.Energies[0])
	}
	maxDim := 0
	for _, sec := range es.sectors {
		for k := range sec.Energies {
			sec.Energies[k] -= es.e0
		}
		sec.EMin = sec.Energies[0]
		maxDim = max(maxDim, len(sec.States))
	}
	d.opts.Logger.Debug("atomdiag: diagonalized",
		zap.Int("modes", len(fops)),
		zap.Int("sectors", len(es.sectors)),
		zap.Int("max_sector_dim", maxDim),
		zap.Float64("e0", es.e0))

	return es, nil
}

// diagonalizeSector fills sec.Energies (ascending) and sec.Vectors (columns).
func (es *Eigensystem) diagonalizeSector(sec *Sector, cols [][]hElem) error {
	n := len(sec.States)
	hm, _ := matrix.NewDense(n, n)
	data := hm.Data()
	for c, s := range sec.States {
		for _, e := range cols[s] {
			data[int(es.posOf[e.to])*n+c] += e.val
		}
	}

	if matrix.IsReal(hm, 1e-14*(1+hm.MaxAbs())) {
		sym := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				sym.SetSym(i, j, real(data[i*n+j]))
			}
		}
		var eig mat.EigenSym
		if ok := eig.Factorize(sym, true); !ok {
			return fmt.Errorf("EigenSym: %w", matrix.ErrEigenFailed)
		}
		sec.Energies = eig.Values(nil)
		var vecs mat.Dense
		eig.VectorsTo(&vecs)
		sec.Vectors, _ = matrix.NewDense(n, n)
		vd := sec.Vectors.Data()
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				vd[i*n+j] = complex(vecs.At(i, j), 0)
			}
		}

		return nil
	}

	vals, vecs, err := matrix.EigenHermitian(hm, 0, 0)
	if err != nil {
		return err
	}
	sec.Energies, sec.Vectors = vals, vecs

	return nil
}
