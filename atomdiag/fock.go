// SPDX-License-Identifier: MIT
// Package atomdiag: occupation-number basis.
//
// A Fock state is a bitmask over modes 0..n-1 (mode k ↔ bit k), ordered as
// |s⟩ = Π_{k ascending} (c†_k)^{n_k} |0⟩. Acting with c_k or c†_k on |s⟩
// therefore picks up (-1)^{#occupied modes below k}.

package atomdiag

import (
	"math/bits"

	"github.com/katalvlaran/hubbardi/operator"
)

// fockOp is one operator compiled to a mode number.
type fockOp struct {
	mode   uint
	dagger bool
}

// fockTerm is a monomial compiled for application (ops in right-to-left order).
type fockTerm struct {
	coef complex128
	ops  []fockOp
}

// apply acts with a single operator; ok is false when the result vanishes.
func (o fockOp) apply(s uint64) (out uint64, sign float64, ok bool) {
	bit := uint64(1) << o.mode
	occupied := s&bit != 0
	if occupied == o.dagger {
		return 0, 0, false
	}
	sign = 1
	if bits.OnesCount64(s&(bit-1))%2 == 1 {
		sign = -1
	}

	return s ^ bit, sign, true
}

// apply acts with the whole monomial.
func (t fockTerm) apply(s uint64) (uint64, complex128, bool) {
	amp := t.coef
	for _, op := range t.ops {
		var (
			sign float64
			ok   bool
		)
		s, sign, ok = op.apply(s)
		if !ok {
			return 0, 0, false
		}
		if sign < 0 {
			amp = -amp
		}
	}

	return s, amp, true
}

// compile maps every monomial of h onto mode numbers.
func compile(h *operator.Expr, modeOf map[operator.Index]int) ([]fockTerm, error) {
	terms := h.Terms()
	out := make([]fockTerm, 0, len(terms))
	for _, t := range terms {
		ft := fockTerm{coef: t.Coef, ops: make([]fockOp, len(t.Ops))}
		n := len(t.Ops)
		for i, op := range t.Ops {
			m, ok := modeOf[op.Index]
			if !ok {
				return nil, adErrorf("compile", &indexError{op.Index})
			}
			ft.ops[n-1-i] = fockOp{mode: uint(m), dagger: op.Dagger}
		}
		out = append(out, ft)
	}

	return out, nil
}

type indexError struct{ idx operator.Index }

func (e *indexError) Error() string {
	return "index (" + e.idx.String() + "): " + ErrUnknownIndex.Error()
}

func (e *indexError) Unwrap() error { return ErrUnknownIndex }

// unionFind is a disjoint-set forest with path halving and union by size.
type unionFind struct {
	parent []int32
	size   []int32
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int32, n), size: make([]int32, n)}
	for i := range uf.parent {
		uf.parent[i] = int32(i)
		uf.size[i] = 1
	}

	return uf
}

func (uf *unionFind) find(x int32) int32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}

	return x
}

func (uf *unionFind) union(a, b int32) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
}
