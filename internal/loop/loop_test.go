package loop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_DrainRunsInOrderIncludingNestedPosts(t *testing.T) {
	var q Queue
	var got []int
	q.Post(func() {
		got = append(got, 1)
		q.Post(func() { got = append(got, 3) })
	})
	q.Post(func() { got = append(got, 2) })
	q.Post(nil)

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 3, q.Drain())
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Zero(t, q.Len())
}

func TestSerial_RunProcessesPostsFromAnyGoroutine(t *testing.T) {
	s := NewSerial()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		go s.Post(func() { n.Add(1) })
	}
	require.Eventually(t, func() bool { return n.Load() == 10 }, time.Second, 5*time.Millisecond)

	// Posting from the loop goroutine itself must not deadlock.
	reentrant := make(chan struct{})
	s.Post(func() { s.Post(func() { close(reentrant) }) })
	select {
	case <-reentrant:
	case <-time.After(time.Second):
		t.Fatal("re-entrant post never ran")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestAsync_PostsApplyToLoop(t *testing.T) {
	var q Queue
	applied := false
	Async(Inline{}, &q, func() func() {
		return func() { applied = true }
	})
	assert.False(t, applied, "apply must wait for the loop")
	q.Drain()
	assert.True(t, applied)

	Async(Inline{}, &q, func() func() { return nil })
	assert.Zero(t, q.Len())
}

func TestDeferred_RunOutOfOrder(t *testing.T) {
	var d Deferred
	var got []string
	d.Go(func() { got = append(got, "a") })
	d.Go(func() { got = append(got, "b") })

	require.Equal(t, 2, d.Pending())
	require.True(t, d.Run(1))
	require.False(t, d.Run(5))
	d.RunAll()
	assert.Equal(t, []string{"b", "a"}, got)
}

func TestGoroutines_Wait(t *testing.T) {
	var g Goroutines
	var n atomic.Int32
	for i := 0; i < 5; i++ {
		g.Go(func() { n.Add(1) })
	}
	g.Wait()
	assert.EqualValues(t, 5, n.Load())
}
