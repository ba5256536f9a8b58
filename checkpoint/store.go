// SPDX-License-Identifier: MIT
package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/katalvlaran/hubbardi/gf"
	"github.com/katalvlaran/hubbardi/solver"
)

// Bucket layout. Both roots hold a nested "Iterations" bucket.
const (
	ResultsBucket    = "DMFT_results"
	InputBucket      = "DMFT_input"
	IterationsBucket = "Iterations"

	iterationCountKey = "iteration_count"

	// NonInteractingMuKey is the scalar holding μ of the bare lattice.
	NonInteractingMuKey = "chemical_potential0"
)

// Key prefixes inside DMFT_results/Iterations; the iteration index is appended.
const (
	keySigma    = "Sigma_it"
	keySigmaW   = "Sigma_w_it"
	keyGloc     = "Gloc_it"
	keyGlocW    = "Gloc_w_it"
	keyG0loc    = "G0loc_it"
	keyDCImp    = "dc_imp"
	keyDCEnergy = "dc_energ"
	keyMu       = "chemical_potential"
	keyDOS      = "DOS_it"
	keyDOSProj  = "DOSproj_it"
	keyDOS0     = "DOS0_it"
	keyDOSProj0 = "DOSproj0_it"
	keySolver   = "solver_state_it"
)

const defaultTimeout = time.Second

// Iteration is one complete DMFT cycle as persisted by the coordinator.
// SigmaW, GlocW and Solver are optional. Solver is written under
// DMFT_input/Iterations in the same transaction and is not loaded by
// ReadIteration; use SolverState.
type Iteration struct {
	Index             int
	SigmaIw           *gf.BlockGf
	SigmaW            *gf.BlockGf
	Gloc              *gf.BlockGf
	GlocW             *gf.BlockGf
	G0loc             *gf.BlockGf
	DCImp             gf.BlockMatrix
	DCEnergy          float64
	ChemicalPotential float64
	Solver            *solver.State
}

// Validate checks the mandatory fields and that every function shares SigmaIw's structure.
func (it *Iteration) Validate() error {
	if it == nil || it.SigmaIw == nil || it.Gloc == nil || it.G0loc == nil {
		return fmt.Errorf("iteration: missing self-energy or local functions: %w", ErrCorrupt)
	}
	if it.Index < 0 {
		return fmt.Errorf("iteration index %d: %w", it.Index, ErrCorrupt)
	}
	s := it.SigmaIw.Structure()
	for _, g := range []*gf.BlockGf{it.SigmaW, it.Gloc, it.GlocW, it.G0loc} {
		if g != nil && !g.Structure().Equal(s) {
			return fmt.Errorf("iteration %d: %s vs %s: %w", it.Index, g.Structure(), s, gf.ErrStructureMismatch)
		}
	}

	return it.DCImp.Validate(s)
}

// Spectra is the post-processed lattice density of states of one iteration,
// interacting and non-interacting, in total and per block.
type Spectra struct {
	Index     int
	Mesh      gf.Mesh
	Total     []float64
	PerBlock  map[string][]float64
	Total0    []float64
	PerBlock0 map[string][]float64
}

type spectrumRecord struct {
	Mesh  gf.Mesh   `cbor:"mesh"`
	Value []float64 `cbor:"value"`
}

type projectedRecord struct {
	Mesh     gf.Mesh              `cbor:"mesh"`
	PerBlock map[string][]float64 `cbor:"per_block"`
}

type scalarRecord struct {
	Value float64 `cbor:"value"`
}

// Options configures Open.
type Options struct {
	Timeout  time.Duration // wait for the file lock
	ReadOnly bool
	Logger   *zap.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithTimeout bounds the wait for the file lock. Panics if d < 0.
func WithTimeout(d time.Duration) Option {
	if d < 0 {
		panic("checkpoint: WithTimeout(d<0)")
	}

	return func(o *Options) { o.Timeout = d }
}

// WithReadOnly opens the store with a shared lock; writes fail with ErrIO.
func WithReadOnly() Option { return func(o *Options) { o.ReadOnly = true } }

// WithLogger attaches a logger; nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// Store is the durable, hierarchical checkpoint archive of a DMFT run.
// Every write is one bbolt transaction. Only the coordinator opens a Store.
type Store struct {
	db   *bolt.DB
	path string
	log  *zap.Logger
}

// Open opens or creates the archive at path and ensures the bucket layout.
//
// Errors: ErrIO.
func Open(path string, opts ...Option) (*Store, error) {
	o := Options{Timeout: defaultTimeout, Logger: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.ReadOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, ioErrorf("checkpoint.Open", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: o.Timeout, ReadOnly: o.ReadOnly})
	if err != nil {
		return nil, ioErrorf("checkpoint.Open", fmt.Errorf("%s: %w", path, err))
	}
	s := &Store{db: db, path: path, log: o.Logger}
	if o.ReadOnly {
		return s, nil
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, root := range []string{ResultsBucket, InputBucket} {
			b, err := tx.CreateBucketIfNotExists([]byte(root))
			if err != nil {
				return err
			}
			if _, err = b.CreateBucketIfNotExists([]byte(IterationsBucket)); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, multierr.Append(ioErrorf("checkpoint.Open", err), db.Close())
	}

	return s, nil
}

// With opens the store at path, runs fn and closes the store on every exit path.
// Close errors are combined with the error of fn.
func With(path string, fn func(*Store) error, opts ...Option) (err error) {
	s, err := Open(path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Close())
	}()

	return fn(s)
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Close releases the file lock.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return ioErrorf("Store.Close", err)
	}

	return nil
}

func key(prefix string, it int) []byte { return []byte(prefix + strconv.Itoa(it)) }

// bucket returns root/Iterations, or root itself when sub is false.
func bucket(tx *bolt.Tx, root string, sub bool) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(root))
	if b == nil {
		return nil, fmt.Errorf("bucket %s: %w", root, ErrNotFound)
	}
	if !sub {
		return b, nil
	}
	if b = b.Bucket([]byte(IterationsBucket)); b == nil {
		return nil, fmt.Errorf("bucket %s/%s: %w", root, IterationsBucket, ErrNotFound)
	}

	return b, nil
}

func put(b *bolt.Bucket, k []byte, v any) error {
	data, err := marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", k, err)
	}

	return b.Put(k, data)
}

// get decodes the value at k into v; a missing key yields ErrNotFound.
func get(b *bolt.Bucket, k []byte, v any) error {
	data := b.Get(k)
	if data == nil {
		return fmt.Errorf("key %s: %w", k, ErrNotFound)
	}
	if err := unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w: %w", k, ErrCorrupt, err)
	}

	return nil
}

// LatestIteration returns the highest complete iteration index, if any.
//
// Errors: ErrIO.
func (s *Store) LatestIteration() (int, bool, error) {
	var (
		it int
		ok bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, ResultsBucket, false)
		if err != nil {
			return err
		}
		data := b.Get([]byte(iterationCountKey))
		if data == nil {
			return nil
		}
		if len(data) != 8 {
			return fmt.Errorf("%s: %d bytes: %w", iterationCountKey, len(data), ErrCorrupt)
		}
		it, ok = int(binary.BigEndian.Uint64(data)), true

		return nil
	})
	if err != nil {
		return 0, false, ioErrorf("Store.LatestIteration", err)
	}

	return it, ok, nil
}

// WriteIteration stores it, including its optional solver state, in one
// transaction and advances iteration_count to max(count, it.Index).
// Rewriting an index replaces all of its keys.
//
// Errors: ErrIO.
func (s *Store) WriteIteration(it *Iteration) error {
	const tag = "Store.WriteIteration"
	if err := it.Validate(); err != nil {
		return ioErrorf(tag, err)
	}
	st := it.SigmaIw.Structure()
	var state *StateRecord
	if it.Solver != nil {
		state = EncodeState(it.Solver)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		in, err := bucket(tx, InputBucket, true)
		if err != nil {
			return err
		}
		if state == nil {
			err = in.Delete(key(keySolver, it.Index))
		} else {
			err = put(in, key(keySolver, it.Index), state)
		}
		if err != nil {
			return err
		}
		root, err := bucket(tx, ResultsBucket, false)
		if err != nil {
			return err
		}
		b, err := bucket(tx, ResultsBucket, true)
		if err != nil {
			return err
		}
		n := it.Index
		for _, e := range []struct {
			prefix string
			g      *gf.BlockGf
		}{
			{keySigma, it.SigmaIw}, {keySigmaW, it.SigmaW},
			{keyGloc, it.Gloc}, {keyGlocW, it.GlocW}, {keyG0loc, it.G0loc},
		} {
			if e.g == nil {
				if err = b.Delete(key(e.prefix, n)); err != nil {
					return err
				}

				continue
			}
			if err = put(b, key(e.prefix, n), EncodeBlockGf(e.g)); err != nil {
				return err
			}
		}
		if err = put(b, key(keyDCImp, n), EncodeBlockMatrix(st, it.DCImp)); err != nil {
			return err
		}
		if err = put(b, key(keyDCEnergy, n), scalarRecord{it.DCEnergy}); err != nil {
			return err
		}
		if err = put(b, key(keyMu, n), scalarRecord{it.ChemicalPotential}); err != nil {
			return err
		}

		count := n
		if prev := root.Get([]byte(iterationCountKey)); len(prev) == 8 {
			count = max(count, int(binary.BigEndian.Uint64(prev)))
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(count))

		return root.Put([]byte(iterationCountKey), buf[:])
	})
	if err != nil {
		return ioErrorf(tag, fmt.Errorf("iteration %d: %w", it.Index, err))
	}
	s.log.Debug("checkpoint: iteration written", zap.Int("iteration", it.Index), zap.String("path", s.path))

	return nil
}

// ReadIteration loads iteration n.
//
// Errors: ErrIO (wrapping ErrNotFound for a missing iteration).
func (s *Store) ReadIteration(n int) (*Iteration, error) {
	out := &Iteration{Index: n}
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, ResultsBucket, true)
		if err != nil {
			return err
		}
		for _, e := range []struct {
			prefix   string
			dst      **gf.BlockGf
			optional bool
		}{
			{keySigma, &out.SigmaIw, false}, {keySigmaW, &out.SigmaW, true},
			{keyGloc, &out.Gloc, false}, {keyGlocW, &out.GlocW, true}, {keyG0loc, &out.G0loc, false},
		} {
			k := key(e.prefix, n)
			if e.optional && b.Get(k) == nil {
				continue
			}
			var rec BlockGfRecord
			if err = get(b, k, &rec); err != nil {
				return err
			}
			if *e.dst, err = DecodeBlockGf(&rec); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
		var dcRec []BlockRecord
		if err = get(b, key(keyDCImp, n), &dcRec); err != nil {
			return err
		}
		if out.DCImp, err = DecodeBlockMatrix(out.SigmaIw.Structure(), dcRec); err != nil {
			return err
		}
		var sc scalarRecord
		if err = get(b, key(keyDCEnergy, n), &sc); err != nil {
			return err
		}
		out.DCEnergy = sc.Value
		if err = get(b, key(keyMu, n), &sc); err != nil {
			return err
		}
		out.ChemicalPotential = sc.Value

		return nil
	})
	if err != nil {
		return nil, ioErrorf("Store.ReadIteration", fmt.Errorf("iteration %d: %w", n, err))
	}
	if err = out.Validate(); err != nil {
		return nil, ioErrorf("Store.ReadIteration", err)
	}

	return out, nil
}

// Iterations returns the indices of every stored iteration in ascending order.
//
// Errors: ErrIO.
func (s *Store) Iterations() ([]int, error) {
	var out []int
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, ResultsBucket, true)
		if err != nil {
			return err
		}
		prefix := []byte(keyDCEnergy)
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if n, err := strconv.Atoi(string(k[len(prefix):])); err == nil {
				out = append(out, n)
			}
		}

		return nil
	})
	if err != nil {
		return nil, ioErrorf("Store.Iterations", err)
	}
	sort.Ints(out)

	return out, nil
}

// PutScalar stores a named run-level value such as chemical_potential0.
//
// Errors: ErrIO.
func (s *Store) PutScalar(name string, v float64) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, ResultsBucket, false)
		if err != nil {
			return err
		}

		return put(b, []byte(name), scalarRecord{v})
	})
	if err != nil {
		return ioErrorf("Store.PutScalar", fmt.Errorf("%s: %w", name, err))
	}

	return nil
}

// Scalar returns a value stored with PutScalar.
//
// Errors: ErrIO.
func (s *Store) Scalar(name string) (float64, bool, error) {
	var (
		v  float64
		ok bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, ResultsBucket, false)
		if err != nil {
			return err
		}
		if b.Get([]byte(name)) == nil {
			return nil
		}
		var sc scalarRecord
		if err = get(b, []byte(name), &sc); err != nil {
			return err
		}
		v, ok = sc.Value, true

		return nil
	})
	if err != nil {
		return 0, false, ioErrorf("Store.Scalar", fmt.Errorf("%s: %w", name, err))
	}

	return v, ok, nil
}

// PutSolverState stores the full impurity solver state of iteration n under DMFT_input.
//
// Errors: ErrIO.
func (s *Store) PutSolverState(n int, st *solver.State) error {
	rec := EncodeState(st)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, InputBucket, true)
		if err != nil {
			return err
		}

		return put(b, key(keySolver, n), rec)
	})
	if err != nil {
		return ioErrorf("Store.PutSolverState", fmt.Errorf("iteration %d: %w", n, err))
	}

	return nil
}

// SolverState loads the solver state of iteration n.
//
// Errors: ErrIO (wrapping ErrNotFound), plus the errors of DecodeState.
func (s *Store) SolverState(n int) (*solver.State, error) {
	var rec StateRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, InputBucket, true)
		if err != nil {
			return err
		}

		return get(b, key(keySolver, n), &rec)
	})
	if err != nil {
		return nil, ioErrorf("Store.SolverState", fmt.Errorf("iteration %d: %w", n, err))
	}
	st, err := DecodeState(&rec)
	if err != nil {
		return nil, ioErrorf("Store.SolverState", err)
	}

	return st, nil
}

// PutInput stores an opaque input document, such as the run configuration, under DMFT_input.
//
// Errors: ErrIO.
func (s *Store) PutInput(name string, data []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, InputBucket, false)
		if err != nil {
			return err
		}

		return put(b, []byte(name), data)
	})
	if err != nil {
		return ioErrorf("Store.PutInput", fmt.Errorf("%s: %w", name, err))
	}

	return nil
}

// Input returns a document stored with PutInput.
//
// Errors: ErrIO (wrapping ErrNotFound).
func (s *Store) Input(name string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, InputBucket, false)
		if err != nil {
			return err
		}

		return get(b, []byte(name), &out)
	})
	if err != nil {
		return nil, ioErrorf("Store.Input", fmt.Errorf("%s: %w", name, err))
	}

	return out, nil
}

// PutSpectra stores DOS_itN, DOSproj_itN, DOS0_itN and DOSproj0_itN in one transaction.
//
// Errors: ErrIO.
func (s *Store) PutSpectra(sp *Spectra) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, ResultsBucket, true)
		if err != nil {
			return err
		}
		n := sp.Index
		for _, e := range []struct {
			k []byte
			v any
		}{
			{key(keyDOS, n), spectrumRecord{sp.Mesh, sp.Total}},
			{key(keyDOSProj, n), projectedRecord{sp.Mesh, sp.PerBlock}},
			{key(keyDOS0, n), spectrumRecord{sp.Mesh, sp.Total0}},
			{key(keyDOSProj0, n), projectedRecord{sp.Mesh, sp.PerBlock0}},
		} {
			if err = put(b, e.k, e.v); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return ioErrorf("Store.PutSpectra", fmt.Errorf("iteration %d: %w", sp.Index, err))
	}

	return nil
}

// ReadSpectra loads the spectra stored for iteration n.
//
// Errors: ErrIO (wrapping ErrNotFound).
func (s *Store) ReadSpectra(n int) (*Spectra, error) {
	out := &Spectra{Index: n}
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, ResultsBucket, true)
		if err != nil {
			return err
		}
		var tot, tot0 spectrumRecord
		var proj, proj0 projectedRecord
		for _, e := range []struct {
			k []byte
			v any
		}{
			{key(keyDOS, n), &tot}, {key(keyDOSProj, n), &proj},
			{key(keyDOS0, n), &tot0}, {key(keyDOSProj0, n), &proj0},
		} {
			if err = get(b, e.k, e.v); err != nil {
				return err
			}
		}
		out.Mesh, out.Total, out.PerBlock = tot.Mesh, tot.Value, proj.PerBlock
		out.Total0, out.PerBlock0 = tot0.Value, proj0.PerBlock

		return nil
	})
	if err != nil {
		return nil, ioErrorf("Store.ReadSpectra", fmt.Errorf("iteration %d: %w", n, err))
	}

	return out, nil
}
