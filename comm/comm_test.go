// SPDX-License-Identifier: MIT
package comm_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/hubbardi/comm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLocal(t *testing.T) {
	var l comm.Local
	assert.True(t, l.IsCoordinator())
	assert.Equal(t, 1, l.Size())
	v, err := l.Broadcast(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	require.NoError(t, l.Barrier(context.Background()))

	boom := errors.New("boom")
	l.Abort(boom)
	_, err = l.Broadcast(context.Background(), 1)
	require.ErrorIs(t, err, comm.ErrAborted)
	require.ErrorIs(t, err, boom)
}

func TestGroup_BroadcastOrder(t *testing.T) {
	const n, rounds = 4, 20
	members := comm.NewGroup(n)
	got := make([][]int, n)

	var eg errgroup.Group
	for _, c := range members {
		eg.Go(func() error {
			for r := 0; r < rounds; r++ {
				var v any
				if c.IsCoordinator() {
					v = r
				}
				out, err := c.Broadcast(context.Background(), v)
				if err != nil {
					return err
				}
				got[c.Rank()] = append(got[c.Rank()], out.(int))
			}

			return c.Barrier(context.Background())
		})
	}
	require.NoError(t, eg.Wait())
	for rank := range got {
		require.Len(t, got[rank], rounds)
		for r, v := range got[rank] {
			assert.Equal(t, r, v, "rank %d round %d", rank, r)
		}
	}
}

func TestGroup_BroadcastIsBarrier(t *testing.T) {
	members := comm.NewGroup(3)
	var received atomic.Int32
	var wg sync.WaitGroup
	for _, c := range members[1:] {
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(20 * time.Millisecond)
			_, err := c.Broadcast(context.Background(), nil)
			assert.NoError(t, err)
			received.Add(1)
		}()
	}
	_, err := members[0].Broadcast(context.Background(), "state")
	require.NoError(t, err)
	// every follower has at least taken the value before the coordinator returns
	wg.Wait()
	assert.Equal(t, int32(2), received.Load())
}

func TestGroup_Barrier(t *testing.T) {
	members := comm.NewGroup(3)
	var arrived atomic.Int32
	var eg errgroup.Group
	for _, c := range members {
		eg.Go(func() error {
			time.Sleep(time.Duration(c.Rank()) * 10 * time.Millisecond)
			arrived.Add(1)
			if err := c.Barrier(context.Background()); err != nil {
				return err
			}
			if n := arrived.Load(); n != 3 {
				return errors.New("left the barrier early")
			}

			return nil
		})
	}
	require.NoError(t, eg.Wait())
}

func TestGroup_Abort(t *testing.T) {
	members := comm.NewGroup(2)
	boom := errors.New("diagonalization failed")
	done := make(chan error, 1)
	go func() {
		_, err := members[1].Broadcast(context.Background(), nil)
		done <- err
	}()
	members[0].Abort(boom)
	err := <-done
	require.ErrorIs(t, err, comm.ErrAborted)
	require.ErrorIs(t, err, boom)

	_, err = members[0].Broadcast(context.Background(), 1)
	require.ErrorIs(t, err, comm.ErrAborted)
	require.ErrorIs(t, members[1].Barrier(context.Background()), comm.ErrAborted)
}

func TestGroup_ContextCancel(t *testing.T) {
	members := comm.NewGroup(2)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := members[0].Broadcast(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Panics(t, func() { comm.NewGroup(0) })
}
