// SPDX-License-Identifier: MIT
package gf

import (
	"fmt"
	"strings"
)

// Block is one named, mutually non-hybridizing subspace of the single-particle basis.
type Block struct {
	Name string `yaml:"name" mapstructure:"name" cbor:"name"`
	Dim  int    `yaml:"dim" mapstructure:"dim" cbor:"dim"`
}

// BlockStructure is an ordered, immutable sequence of blocks with unique names.
type BlockStructure struct {
	blocks []Block
	index  map[string]int
}

// NewBlockStructure validates blocks and returns an immutable structure.
//
// Errors:
//   - ErrInvalidStructure: no blocks, empty name, duplicate name, Dim < 1.
//
// Complexity: O(B).
func NewBlockStructure(blocks ...Block) (*BlockStructure, error) {
	if len(blocks) == 0 {
		return nil, gfErrorf("NewBlockStructure", fmt.Errorf("no blocks: %w", ErrInvalidStructure))
	}
	s := &BlockStructure{
		blocks: make([]Block, len(blocks)),
		index:  make(map[string]int, len(blocks)),
	}
	for i, b := range blocks {
		if b.Name == "" {
			return nil, gfErrorf("NewBlockStructure", fmt.Errorf("block %d: empty name: %w", i, ErrInvalidStructure))
		}
		if b.Dim < 1 {
			return nil, gfErrorf("NewBlockStructure", fmt.Errorf("block %q: dim %d: %w", b.Name, b.Dim, ErrInvalidStructure))
		}
		if _, dup := s.index[b.Name]; dup {
			return nil, gfErrorf("NewBlockStructure", fmt.Errorf("block %q: duplicate name: %w", b.Name, ErrInvalidStructure))
		}
		s.blocks[i] = b
		s.index[b.Name] = i
	}

	return s, nil
}

// MustBlockStructure is NewBlockStructure that panics on error. For fixtures and examples.
func MustBlockStructure(blocks ...Block) *BlockStructure {
	s, err := NewBlockStructure(blocks...)
	if err != nil {
		panic(err)
	}

	return s
}

// Len returns the number of blocks.
func (s *BlockStructure) Len() int { return len(s.blocks) }

// Blocks returns a copy of the ordered blocks.
func (s *BlockStructure) Blocks() []Block {
	out := make([]Block, len(s.blocks))
	copy(out, s.blocks)

	return out
}

// Block returns the i-th block.
func (s *BlockStructure) Block(i int) Block { return s.blocks[i] }

// Names returns the block names in structure order.
func (s *BlockStructure) Names() []string {
	out := make([]string, len(s.blocks))
	for i, b := range s.blocks {
		out[i] = b.Name
	}

	return out
}

// Index returns the position of the named block.
func (s *BlockStructure) Index(name string) (int, bool) {
	i, ok := s.index[name]

	return i, ok
}

// Dim returns the dimension of the named block.
func (s *BlockStructure) Dim(name string) (int, bool) {
	i, ok := s.index[name]
	if !ok {
		return 0, false
	}

	return s.blocks[i].Dim, true
}

// TotalDim returns Σ Dim over all blocks, the number of fermionic modes.
func (s *BlockStructure) TotalDim() int {
	var n int
	for _, b := range s.blocks {
		n += b.Dim
	}

	return n
}

// Equal reports whether both structures list the same blocks in the same order.
func (s *BlockStructure) Equal(o *BlockStructure) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.blocks) != len(o.blocks) {
		return false
	}
	for i := range s.blocks {
		if s.blocks[i] != o.blocks[i] {
			return false
		}
	}

	return true
}

// String renders the structure as "[up:1 down:1]".
func (s *BlockStructure) String() string {
	parts := make([]string, len(s.blocks))
	for i, b := range s.blocks {
		parts[i] = fmt.Sprintf("%s:%d", b.Name, b.Dim)
	}

	return "[" + strings.Join(parts, " ") + "]"
}
