// SPDX-License-Identifier: MIT
package checkpoint

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/snappy"

	"github.com/katalvlaran/hubbardi/gf"
	"github.com/katalvlaran/hubbardi/matrix"
	"github.com/katalvlaran/hubbardi/solver"
)

// BlockRecord is one block of complex matrices split into real and imaginary
// parts, sample-major then row-major.
type BlockRecord struct {
	Name string    `cbor:"name"`
	Dim  int       `cbor:"dim"`
	Re   []float64 `cbor:"re"`
	Im   []float64 `cbor:"im"`
}

// BlockGfRecord is the serialized form of a gf.BlockGf.
type BlockGfRecord struct {
	Mesh   gf.Mesh       `cbor:"mesh"`
	Blocks []BlockRecord `cbor:"blocks"`
}

// StateRecord is the serialized form of a solver.State. Absent containers are nil.
type StateRecord struct {
	Beta          float64        `cbor:"beta"`
	Grid          solver.Grid    `cbor:"grid"`
	Blocks        []gf.Block     `cbor:"blocks"`
	G0Iw          *BlockGfRecord `cbor:"g0_iw,omitempty"`
	GIw           *BlockGfRecord `cbor:"g_iw,omitempty"`
	SigmaIw       *BlockGfRecord `cbor:"sigma_iw,omitempty"`
	G0W           *BlockGfRecord `cbor:"g0_w,omitempty"`
	GW            *BlockGfRecord `cbor:"g_w,omitempty"`
	SigmaW        *BlockGfRecord `cbor:"sigma_w,omitempty"`
	GTau          *BlockGfRecord `cbor:"g_tau,omitempty"`
	GL            *BlockGfRecord `cbor:"g_l,omitempty"`
	Eal           []BlockRecord  `cbor:"eal"`
	DensityMatrix []BlockRecord  `cbor:"density_matrix,omitempty"`
}

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}

	return dm
}

// marshal encodes v as deterministic CBOR and compresses it.
func marshal(v any) ([]byte, error) {
	raw, err := encMode.Marshal(v)
	if err != nil {
		return nil, err
	}

	return snappy.Encode(nil, raw), nil
}

// unmarshal reverses marshal.
func unmarshal(b []byte, v any) error {
	raw, err := snappy.Decode(nil, b)
	if err != nil {
		return err
	}

	return decMode.Unmarshal(raw, v)
}

func encodeMatrices(name string, ms []*matrix.Dense, dim int) BlockRecord {
	r := BlockRecord{Name: name, Dim: dim, Re: make([]float64, 0, len(ms)*dim*dim), Im: make([]float64, 0, len(ms)*dim*dim)}
	for _, m := range ms {
		for _, v := range m.Data() {
			r.Re = append(r.Re, real(v))
			r.Im = append(r.Im, imag(v))
		}
	}

	return r
}

// fill copies the record into ms, which must already have the record's shape.
func (r BlockRecord) fill(ms []*matrix.Dense) error {
	want := len(ms) * r.Dim * r.Dim
	if len(r.Re) != want || len(r.Im) != want {
		return fmt.Errorf("block %q: %d/%d values, want %d: %w", r.Name, len(r.Re), len(r.Im), want, ErrCorrupt)
	}
	k := 0
	for _, m := range ms {
		d := m.Data()
		for i := range d {
			d[i] = complex(r.Re[k], r.Im[k])
			k++
		}
	}

	return nil
}

func blocksOf(rs []BlockRecord) []gf.Block {
	out := make([]gf.Block, len(rs))
	for i, r := range rs {
		out[i] = gf.Block{Name: r.Name, Dim: r.Dim}
	}

	return out
}

// EncodeBlockGf returns the record of g; nil encodes to nil.
func EncodeBlockGf(g *gf.BlockGf) *BlockGfRecord {
	if g == nil {
		return nil
	}
	rec := &BlockGfRecord{Mesh: g.Mesh()}
	for i, b := range g.Structure().Blocks() {
		rec.Blocks = append(rec.Blocks, encodeMatrices(b.Name, g.BlockAt(i).Data(), b.Dim))
	}

	return rec
}

// DecodeBlockGf rebuilds a Green's function from its record; nil decodes to nil.
//
// Errors: gf.ErrInvalidStructure, gf.ErrInvalidMesh, ErrCorrupt.
func DecodeBlockGf(rec *BlockGfRecord) (*gf.BlockGf, error) {
	if rec == nil {
		return nil, nil
	}
	s, err := gf.NewBlockStructure(blocksOf(rec.Blocks)...)
	if err != nil {
		return nil, fmt.Errorf("DecodeBlockGf: %w", err)
	}

	return decodeBlockGf(s, rec)
}

func decodeBlockGf(s *gf.BlockStructure, rec *BlockGfRecord) (*gf.BlockGf, error) {
	if rec == nil {
		return nil, nil
	}
	if got, err := gf.NewBlockStructure(blocksOf(rec.Blocks)...); err != nil || !got.Equal(s) {
		return nil, fmt.Errorf("DecodeBlockGf: blocks %v vs %s: %w", blocksOf(rec.Blocks), s, ErrCorrupt)
	}
	g, err := gf.NewBlockGf(s, rec.Mesh)
	if err != nil {
		return nil, fmt.Errorf("DecodeBlockGf: %w", err)
	}
	for i, r := range rec.Blocks {
		if err = r.fill(g.BlockAt(i).Data()); err != nil {
			return nil, fmt.Errorf("DecodeBlockGf: %w", err)
		}
	}

	return g, nil
}

// EncodeBlockMatrix returns the records of bm in the block order of s.
func EncodeBlockMatrix(s *gf.BlockStructure, bm gf.BlockMatrix) []BlockRecord {
	if bm == nil {
		return nil
	}
	out := make([]BlockRecord, 0, s.Len())
	for _, b := range s.Blocks() {
		out = append(out, encodeMatrices(b.Name, []*matrix.Dense{bm[b.Name]}, b.Dim))
	}

	return out
}

// DecodeBlockMatrix rebuilds a block matrix for s; nil decodes to nil.
//
// Errors: ErrCorrupt.
func DecodeBlockMatrix(s *gf.BlockStructure, rs []BlockRecord) (gf.BlockMatrix, error) {
	if rs == nil {
		return nil, nil
	}
	got, err := gf.NewBlockStructure(blocksOf(rs)...)
	if err != nil || !got.Equal(s) {
		return nil, fmt.Errorf("DecodeBlockMatrix: blocks %v vs %s: %w", blocksOf(rs), s, ErrCorrupt)
	}
	bm := gf.NewBlockMatrix(s)
	for _, r := range rs {
		if err = r.fill([]*matrix.Dense{bm[r.Name]}); err != nil {
			return nil, fmt.Errorf("DecodeBlockMatrix: %w", err)
		}
	}

	return bm, nil
}

// EncodeState returns the record of st. Containers are copied, not shared.
func EncodeState(st *solver.State) *StateRecord {
	s := st.Structure
	return &StateRecord{
		Beta:          st.Beta,
		Grid:          st.Grid,
		Blocks:        s.Blocks(),
		G0Iw:          EncodeBlockGf(st.G0Iw),
		GIw:           EncodeBlockGf(st.GIw),
		SigmaIw:       EncodeBlockGf(st.SigmaIw),
		G0W:           EncodeBlockGf(st.G0W),
		GW:            EncodeBlockGf(st.GW),
		SigmaW:        EncodeBlockGf(st.SigmaW),
		GTau:          EncodeBlockGf(st.GTau),
		GL:            EncodeBlockGf(st.GL),
		Eal:           EncodeBlockMatrix(s, st.Eal),
		DensityMatrix: EncodeBlockMatrix(s, st.DensityMatrix),
	}
}

// DecodeState rebuilds and validates a solver state.
//
// Errors: ErrCorrupt, solver.ErrInvalidConfig.
func DecodeState(rec *StateRecord) (*solver.State, error) {
	const tag = "DecodeState"
	s, err := gf.NewBlockStructure(rec.Blocks...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", tag, solver.ErrInvalidConfig, err)
	}
	st := &solver.State{Beta: rec.Beta, Structure: s, Grid: rec.Grid}
	for _, slot := range []struct {
		dst **gf.BlockGf
		rec *BlockGfRecord
	}{
		{&st.G0Iw, rec.G0Iw}, {&st.GIw, rec.GIw}, {&st.SigmaIw, rec.SigmaIw},
		{&st.G0W, rec.G0W}, {&st.GW, rec.GW}, {&st.SigmaW, rec.SigmaW},
		{&st.GTau, rec.GTau}, {&st.GL, rec.GL},
	} {
		if *slot.dst, err = decodeBlockGf(s, slot.rec); err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
	}
	if st.Eal, err = DecodeBlockMatrix(s, rec.Eal); err != nil {
		return nil, fmt.Errorf("%s: eal: %w", tag, err)
	}
	if st.Eal == nil {
		st.Eal = gf.NewBlockMatrix(s)
	}
	if st.DensityMatrix, err = DecodeBlockMatrix(s, rec.DensityMatrix); err != nil {
		return nil, fmt.Errorf("%s: density matrix: %w", tag, err)
	}
	if err = st.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}

	return st, nil
}
