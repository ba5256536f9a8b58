// SPDX-License-Identifier: MIT
package gf

import (
	"fmt"
	"math"
)

// MeshKind enumerates the four supported representations.
type MeshKind int

const (
	// MatsubaraFreq holds positive fermionic frequencies iω_n = i(2n+1)π/β.
	MatsubaraFreq MeshKind = iota
	// RealFreq holds ω on [WMin, WMax] evaluated at ω + i·Eta.
	RealFreq
	// ImTime holds τ on [0, β], both ends inclusive.
	ImTime
	// Legendre holds coefficients G_l = √(2l+1) ∫ P_l(2τ/β-1) G(τ) dτ.
	Legendre
)

// AllKinds lists every mesh kind in canonical order.
var AllKinds = []MeshKind{MatsubaraFreq, RealFreq, ImTime, Legendre}

// String returns the short tag used in logs and store keys.
func (k MeshKind) String() string {
	switch k {
	case MatsubaraFreq:
		return "iw"
	case RealFreq:
		return "w"
	case ImTime:
		return "tau"
	case Legendre:
		return "l"
	default:
		return fmt.Sprintf("MeshKind(%d)", int(k))
	}
}

// Mesh describes the sampling domain of a Green's function.
// Beta is meaningful for MatsubaraFreq, ImTime and Legendre; WMin/WMax/Eta for RealFreq.
type Mesh struct {
	Kind MeshKind `cbor:"kind"`
	N    int      `cbor:"n"`
	Beta float64  `cbor:"beta,omitempty"`
	WMin float64  `cbor:"w_min,omitempty"`
	WMax float64  `cbor:"w_max,omitempty"`
	Eta  float64  `cbor:"eta,omitempty"`
}

// NewMatsubaraMesh returns n positive fermionic Matsubara frequencies.
func NewMatsubaraMesh(beta float64, n int) (Mesh, error) {
	m := Mesh{Kind: MatsubaraFreq, N: n, Beta: beta}

	return m, m.Validate()
}

// NewRealMesh returns n real frequencies on [wMin, wMax] with broadening eta.
func NewRealMesh(wMin, wMax float64, n int, eta float64) (Mesh, error) {
	m := Mesh{Kind: RealFreq, N: n, WMin: wMin, WMax: wMax, Eta: eta}

	return m, m.Validate()
}

// NewImTimeMesh returns n imaginary times on [0, beta].
func NewImTimeMesh(beta float64, n int) (Mesh, error) {
	m := Mesh{Kind: ImTime, N: n, Beta: beta}

	return m, m.Validate()
}

// NewLegendreMesh returns n Legendre coefficients at inverse temperature beta.
func NewLegendreMesh(beta float64, n int) (Mesh, error) {
	m := Mesh{Kind: Legendre, N: n, Beta: beta}

	return m, m.Validate()
}

// Validate checks the parameters relevant to the mesh kind.
//
// Errors: ErrInvalidMesh.
func (m Mesh) Validate() error {
	if m.N < 1 {
		return gfErrorf("Mesh.Validate", fmt.Errorf("%s: n=%d: %w", m.Kind, m.N, ErrInvalidMesh))
	}
	switch m.Kind {
	case MatsubaraFreq, ImTime, Legendre:
		if !(m.Beta > 0) || math.IsInf(m.Beta, 0) {
			return gfErrorf("Mesh.Validate", fmt.Errorf("%s: beta=%g: %w", m.Kind, m.Beta, ErrInvalidMesh))
		}
	case RealFreq:
		if !(m.WMin < m.WMax) || math.IsInf(m.WMin, 0) || math.IsInf(m.WMax, 0) {
			return gfErrorf("Mesh.Validate", fmt.Errorf("w window [%g,%g]: %w", m.WMin, m.WMax, ErrInvalidMesh))
		}
		if !(m.Eta >= 0) {
			return gfErrorf("Mesh.Validate", fmt.Errorf("idelta=%g: %w", m.Eta, ErrInvalidMesh))
		}
	default:
		return gfErrorf("Mesh.Validate", fmt.Errorf("%s: %w", m.Kind, ErrInvalidMesh))
	}

	return nil
}

// Len returns the number of samples.
func (m Mesh) Len() int { return m.N }

// Point returns the i-th sample:
//   - MatsubaraFreq: i(2i+1)π/β
//   - RealFreq: ω_i + i·Eta
//   - ImTime: τ_i (real)
//   - Legendre: l (real)
func (m Mesh) Point(i int) complex128 {
	switch m.Kind {
	case MatsubaraFreq:
		return complex(0, float64(2*i+1)*math.Pi/m.Beta)
	case RealFreq:
		return complex(m.Omega(i), m.Eta)
	case ImTime:
		if m.N == 1 {
			return 0
		}

		return complex(m.Beta*float64(i)/float64(m.N-1), 0)
	default:
		return complex(float64(i), 0)
	}
}

// Omega returns the real part of the i-th real-frequency sample.
func (m Mesh) Omega(i int) float64 {
	if m.N == 1 {
		return m.WMin
	}
	if i == m.N-1 {
		return m.WMax // exact end point
	}

	return m.WMin + (m.WMax-m.WMin)*float64(i)/float64(m.N-1)
}

// Points returns every sample in order.
func (m Mesh) Points() []complex128 {
	out := make([]complex128, m.N)
	for i := range out {
		out[i] = m.Point(i)
	}

	return out
}

// Equal reports whether both meshes sample identical points.
func (m Mesh) Equal(o Mesh) bool { return m == o }

// String renders the mesh for logs.
func (m Mesh) String() string {
	if m.Kind == RealFreq {
		return fmt.Sprintf("w[%d, %g..%g, eta=%g]", m.N, m.WMin, m.WMax, m.Eta)
	}

	return fmt.Sprintf("%s[%d, beta=%g]", m.Kind, m.N, m.Beta)
}
