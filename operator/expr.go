// SPDX-License-Identifier: MIT
// Package operator: normal-ordered fermionic polynomials.
//
// An Expr is a finite sum of monomials, each a product of creation and
// annihilation operators with a complex coefficient. Every monomial is kept
// in canonical normal order: creators first in ascending Index order, then
// annihilators in descending Index order. Products are re-ordered with the
// canonical anticommutation relations {c_i, c†_j} = δ_ij.

package operator

import (
	"fmt"
	"math/cmplx"
	"sort"
	"strings"
)

// Index labels one fermionic mode: an orbital inside a named block.
type Index struct {
	Block   string `cbor:"block"`
	Orbital int    `cbor:"orbital"`
}

// Less orders indices by block name, then orbital.
func (i Index) Less(o Index) bool {
	if i.Block != o.Block {
		return i.Block < o.Block
	}

	return i.Orbital < o.Orbital
}

// String renders "up,0".
func (i Index) String() string { return fmt.Sprintf("%s,%d", i.Block, i.Orbital) }

// Op is a single creation (Dagger) or annihilation operator.
type Op struct {
	Dagger bool
	Index  Index
}

// String renders "c†(up,0)" or "c(up,0)".
func (o Op) String() string {
	if o.Dagger {
		return "c†(" + o.Index.String() + ")"
	}

	return "c(" + o.Index.String() + ")"
}

// Term is one monomial with its coefficient.
type Term struct {
	Coef complex128
	Ops  []Op
}

// Expr is a normal-ordered polynomial in c† and c. The zero value is the zero operator.
type Expr struct {
	terms map[string]*Term
}

// NewExpr returns the zero operator.
func NewExpr() *Expr { return &Expr{terms: make(map[string]*Term)} }

// Const returns alpha·1.
func Const(alpha complex128) *Expr {
	e := NewExpr()
	e.addTerm(nil, alpha)

	return e
}

// C returns the annihilation operator c_{block,orb}.
func C(block string, orb int) *Expr {
	e := NewExpr()
	e.addTerm([]Op{{Dagger: false, Index: Index{block, orb}}}, 1)

	return e
}

// Cdag returns the creation operator c†_{block,orb}.
func Cdag(block string, orb int) *Expr {
	e := NewExpr()
	e.addTerm([]Op{{Dagger: true, Index: Index{block, orb}}}, 1)

	return e
}

// N returns the number operator n = c†c.
func N(block string, orb int) *Expr {
	e := NewExpr()
	idx := Index{block, orb}
	e.addTerm([]Op{{Dagger: true, Index: idx}, {Dagger: false, Index: idx}}, 1)

	return e
}

func monoKey(ops []Op) string {
	var sb strings.Builder
	for _, o := range ops {
		if o.Dagger {
			sb.WriteByte('+')
		} else {
			sb.WriteByte('-')
		}
		sb.WriteString(o.Index.String())
		sb.WriteByte('|')
	}

	return sb.String()
}

// addTerm accumulates coef·ops; ops must already be in normal order.
func (e *Expr) addTerm(ops []Op, coef complex128) {
	if coef == 0 {
		return
	}
	if e.terms == nil {
		e.terms = make(map[string]*Term)
	}
	k := monoKey(ops)
	if t, ok := e.terms[k]; ok {
		t.Coef += coef
		if t.Coef == 0 {
			delete(e.terms, k)
		}

		return
	}
	cp := make([]Op, len(ops))
	copy(cp, ops)
	e.terms[k] = &Term{Coef: coef, Ops: cp}
}

// outOfOrder reports whether adjacent operators x, y violate canonical order.
func outOfOrder(x, y Op) bool {
	switch {
	case !x.Dagger && y.Dagger:
		return true
	case x.Dagger && y.Dagger:
		return y.Index.Less(x.Index)
	case !x.Dagger && !y.Dagger:
		return x.Index.Less(y.Index)
	default:
		return false
	}
}

// addOrdered normal-orders ops (in place of a copy) and accumulates the result.
//
// Implementation: find the first adjacent pair out of order; two equal
// creators (or annihilators) vanish; swapping anticommutes (sign -1) and a
// c_i c†_i pair additionally spawns the contracted product.
func (e *Expr) addOrdered(ops []Op, coef complex128) {
	if coef == 0 {
		return
	}
	for k := 0; k+1 < len(ops); k++ {
		x, y := ops[k], ops[k+1]
		if x.Dagger == y.Dagger && x.Index == y.Index {
			return // c†c† = cc = 0
		}
		if !outOfOrder(x, y) {
			continue
		}
		if !x.Dagger && y.Dagger && x.Index == y.Index {
			contracted := make([]Op, 0, len(ops)-2)
			contracted = append(contracted, ops[:k]...)
			contracted = append(contracted, ops[k+2:]...)
			e.addOrdered(contracted, coef)
		}
		swapped := make([]Op, len(ops))
		copy(swapped, ops)
		swapped[k], swapped[k+1] = y, x
		e.addOrdered(swapped, -coef)

		return
	}
	e.addTerm(ops, coef)
}

// Clone returns a deep copy.
func (e *Expr) Clone() *Expr {
	out := NewExpr()
	for _, t := range e.terms {
		out.addTerm(t.Ops, t.Coef)
	}

	return out
}

// Add returns e + o.
func (e *Expr) Add(o *Expr) *Expr {
	out := e.Clone()
	for _, t := range o.terms {
		out.addTerm(t.Ops, t.Coef)
	}

	return out
}

// Sub returns e - o.
func (e *Expr) Sub(o *Expr) *Expr { return e.Add(o.Scale(-1)) }

// Scale returns alpha·e.
func (e *Expr) Scale(alpha complex128) *Expr {
	out := NewExpr()
	for _, t := range e.terms {
		out.addTerm(t.Ops, alpha*t.Coef)
	}

	return out
}

// Mul returns the normal-ordered product e·o.
func (e *Expr) Mul(o *Expr) *Expr {
	out := NewExpr()
	for _, a := range e.terms {
		for _, b := range o.terms {
			ops := make([]Op, 0, len(a.Ops)+len(b.Ops))
			ops = append(ops, a.Ops...)
			ops = append(ops, b.Ops...)
			out.addOrdered(ops, a.Coef*b.Coef)
		}
	}

	return out
}

// Dagger returns the Hermitian conjugate e†.
func (e *Expr) Dagger() *Expr {
	out := NewExpr()
	for _, t := range e.terms {
		n := len(t.Ops)
		ops := make([]Op, n)
		for i, op := range t.Ops {
			ops[n-1-i] = Op{Dagger: !op.Dagger, Index: op.Index}
		}
		out.addOrdered(ops, cmplx.Conj(t.Coef))
	}

	return out
}

// Chop drops terms with |coef| ≤ tol and returns e.
func (e *Expr) Chop(tol float64) *Expr {
	for k, t := range e.terms {
		if cmplx.Abs(t.Coef) <= tol {
			delete(e.terms, k)
		}
	}

	return e
}

// Len returns the number of monomials.
func (e *Expr) Len() int { return len(e.terms) }

// IsZero reports whether e has no terms.
func (e *Expr) IsZero() bool { return len(e.terms) == 0 }

// Terms returns the monomials sorted by (degree, key) for deterministic iteration.
func (e *Expr) Terms() []Term {
	keys := make([]string, 0, len(e.terms))
	for k := range e.terms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := e.terms[keys[i]], e.terms[keys[j]]
		if len(a.Ops) != len(b.Ops) {
			return len(a.Ops) < len(b.Ops)
		}

		return keys[i] < keys[j]
	})
	out := make([]Term, len(keys))
	for i, k := range keys {
		t := e.terms[k]
		ops := make([]Op, len(t.Ops))
		copy(ops, t.Ops)
		out[i] = Term{Coef: t.Coef, Ops: ops}
	}

	return out
}

// Indices returns every mode index appearing in e, sorted.
func (e *Expr) Indices() []Index {
	seen := make(map[Index]struct{})
	for _, t := range e.terms {
		for _, op := range t.Ops {
			seen[op.Index] = struct{}{}
		}
	}
	out := make([]Index, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })

	return out
}

// IsHermitian reports whether e and e† agree within tol coefficient-wise.
func (e *Expr) IsHermitian(tol float64) bool {
	diff := e.Sub(e.Dagger())
	for _, t := range diff.terms {
		if cmplx.Abs(t.Coef) > tol {
			return false
		}
	}

	return true
}

// String renders the sum in deterministic order, e.g. "4*c†(down,0)c†(up,0)c(up,0)c(down,0)".
func (e *Expr) String() string {
	if e.IsZero() {
		return "0"
	}
	var sb strings.Builder
	for i, t := range e.Terms() {
		if i > 0 {
			sb.WriteString(" + ")
		}
		if imag(t.Coef) == 0 {
			fmt.Fprintf(&sb, "%g", real(t.Coef))
		} else {
			fmt.Fprintf(&sb, "%g", t.Coef)
		}
		for _, op := range t.Ops {
			sb.WriteByte('*')
			sb.WriteString(op.String())
		}
	}

	return sb.String()
}
