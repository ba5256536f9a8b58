// SPDX-License-Identifier: MIT

// Package comm provides the collective operations of an SPMD run: one
// coordinator (rank 0) that owns durable storage and broadcasts state, and
// followers that replicate the computation.
//
// Collective calls must be made in the same order by every participant.
// Broadcast is an implicit barrier: the coordinator returns only after every
// follower has received the value.
package comm

import (
	"context"
	"fmt"
	"sync"
)

// Communicator is one participant of a group.
type Communicator interface {
	Rank() int
	Size() int
	IsCoordinator() bool
	// Broadcast sends v from the coordinator and returns it on every participant.
	// Followers pass nil. The value is shared, not copied; senders hand over
	// immutable data.
	Broadcast(ctx context.Context, v any) (any, error)
	// Barrier returns once every participant has entered it.
	Barrier(ctx context.Context) error
	// Abort fails every pending and later collective of the group with ErrAborted.
	Abort(err error)
}

// Local is a group of one.
type Local struct {
	mu  sync.Mutex
	err error
}

// Rank returns 0.
func (*Local) Rank() int { return 0 }

// Size returns 1.
func (*Local) Size() int { return 1 }

// IsCoordinator returns true.
func (*Local) IsCoordinator() bool { return true }

// Broadcast returns v unless the context is done or the group was aborted.
func (l *Local) Broadcast(ctx context.Context, v any) (any, error) {
	if err := l.check(ctx); err != nil {
		return nil, err
	}

	return v, nil
}

// Barrier returns immediately unless the context is done or the group was aborted.
func (l *Local) Barrier(ctx context.Context) error { return l.check(ctx) }

// Abort records err.
func (l *Local) Abort(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err == nil {
		l.err = abortCause(err)
	}
}

func (l *Local) check(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}

	return ctx.Err()
}

func abortCause(err error) error {
	if err == nil {
		return ErrAborted
	}

	return fmt.Errorf("%w: %w", ErrAborted, err)
}

// group is the shared state of an in-process group.
type group struct {
	size int
	down []chan any    // coordinator → follower i
	up   chan struct{} // followers → coordinator

	once    sync.Once
	aborted chan struct{}
	cause   error
}

// member is the Communicator of one rank.
type member struct {
	g    *group
	rank int
}

// NewGroup returns n in-process participants joined by channels; element i
// has rank i. Each is meant to be driven by its own goroutine. Panics if n < 1.
func NewGroup(n int) []Communicator {
	if n < 1 {
		panic("comm: NewGroup(n<1)")
	}
	g := &group{
		size:    n,
		down:    make([]chan any, n),
		up:      make(chan struct{}, n),
		aborted: make(chan struct{}),
	}
	out := make([]Communicator, n)
	for i := range out {
		g.down[i] = make(chan any)
		out[i] = &member{g: g, rank: i}
	}

	return out
}

func (m *member) Rank() int           { return m.rank }
func (m *member) Size() int           { return m.g.size }
func (m *member) IsCoordinator() bool { return m.rank == 0 }

func (m *member) Abort(err error) {
	m.g.once.Do(func() {
		m.g.cause = abortCause(err)
		close(m.g.aborted)
	})
}

// fail returns the abort cause, or the context error.
func (m *member) fail(ctx context.Context) error {
	select {
	case <-m.g.aborted:
		return m.g.cause
	default:
		return ctx.Err()
	}
}

func (m *member) send(ctx context.Context, to int, v any) error {
	select {
	case m.g.down[to] <- v:
		return nil
	case <-m.g.aborted:
	case <-ctx.Done():
	}

	return m.fail(ctx)
}

func (m *member) recv(ctx context.Context) (any, error) {
	select {
	case v := <-m.g.down[m.rank]:
		return v, nil
	case <-m.g.aborted:
	case <-ctx.Done():
	}

	return nil, m.fail(ctx)
}

func (m *member) ack(ctx context.Context) error {
	select {
	case m.g.up <- struct{}{}:
		return nil
	case <-m.g.aborted:
	case <-ctx.Done():
	}

	return m.fail(ctx)
}

// gather waits for one ack from every follower.
func (m *member) gather(ctx context.Context) error {
	for i := 1; i < m.g.size; i++ {
		select {
		case <-m.g.up:
		case <-m.g.aborted:
			return m.fail(ctx)
		case <-ctx.Done():
			return m.fail(ctx)
		}
	}

	return nil
}

// Broadcast: the coordinator hands v to each follower in rank order, then
// waits for every acknowledgement.
func (m *member) Broadcast(ctx context.Context, v any) (any, error) {
	if err := m.fail(ctx); err != nil {
		return nil, err
	}
	if m.IsCoordinator() {
		for i := 1; i < m.g.size; i++ {
			if err := m.send(ctx, i, v); err != nil {
				return nil, err
			}
		}
		if err := m.gather(ctx); err != nil {
			return nil, err
		}

		return v, nil
	}
	got, err := m.recv(ctx)
	if err != nil {
		return nil, err
	}
	if err = m.ack(ctx); err != nil {
		return nil, err
	}

	return got, nil
}

// Barrier: followers check in, then the coordinator releases them.
func (m *member) Barrier(ctx context.Context) error {
	if err := m.fail(ctx); err != nil {
		return err
	}
	if m.IsCoordinator() {
		if err := m.gather(ctx); err != nil {
			return err
		}
		for i := 1; i < m.g.size; i++ {
			if err := m.send(ctx, i, nil); err != nil {
				return err
			}
		}

		return nil
	}
	if err := m.ack(ctx); err != nil {
		return err
	}
	_, err := m.recv(ctx)

	return err
}
