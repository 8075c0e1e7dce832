package gate

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const testTimeout = 5 * time.Second

func waitForParked(t *testing.T, h *handoff) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.waiter != nil
	}, testTimeout, time.Millisecond)
}

func TestGateOpenBeforeClose(t *testing.T) {
	t.Parallel()

	g := NewGate()
	g.Open()
	done := make(chan struct{})
	go func() {
		g.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(testTimeout):
		require.FailNow(t, "close should not block after open")
	}
}

func TestGateCloseBlocksUntilOpen(t *testing.T) {
	t.Parallel()

	g := NewGate()
	var released atomic.Bool
	done := make(chan struct{})
	go func() {
		g.Close()
		released.Store(true)
		close(done)
	}()
	waitForParked(t, &g.h)
	require.False(t, released.Load())

	g.Open()
	// The open took the hand-off path, so no permit was queued.
	require.Equal(t, 0, g.h.pending())
	require.Eventually(t, released.Load, testTimeout, time.Millisecond)
	<-done
}

func TestGateSinglePermit(t *testing.T) {
	t.Parallel()

	g := NewGate()
	g.Open()
	g.Open()
	g.Close()
	// The second open was discarded, so the next close must block.
	require.False(t, g.CloseFor(50*time.Millisecond))
	g.Open()
	require.True(t, g.CloseFor(testTimeout))
}

func TestGateCloseForExpiry(t *testing.T) {
	t.Parallel()

	g := NewGate()
	start := time.Now()
	require.False(t, g.CloseFor(100*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestGateCloseUntil(t *testing.T) {
	t.Parallel()

	g := NewGate()
	start := time.Now()
	require.False(t, g.CloseUntil(time.Now().Add(100*time.Millisecond)))
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	// A past deadline is a non-blocking permit grab.
	require.False(t, g.CloseUntil(time.Now().Add(-time.Second)))
	g.Open()
	require.True(t, g.CloseUntil(time.Now().Add(-time.Second)))
}

func TestGateConcurrentOpens(t *testing.T) {
	t.Parallel()

	g := NewGate()
	done := make(chan struct{})
	go func() {
		g.Close()
		close(done)
	}()
	waitForParked(t, &g.h)

	var eg errgroup.Group
	for i := 0; i < 2; i++ {
		eg.Go(func() error {
			g.Open()
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	<-done
	// Exactly one open released the waiter, the other queued its permit.
	require.Equal(t, 1, g.h.pending())
	require.True(t, g.CloseFor(testTimeout))
}

func TestGateConcurrentWaitersPanic(t *testing.T) {
	t.Parallel()

	g := NewGate()
	done := make(chan struct{})
	go func() {
		g.Close()
		close(done)
	}()
	waitForParked(t, &g.h)

	require.Panics(t, func() {
		g.CloseFor(10 * time.Millisecond)
	})
	g.Open()
	<-done
}

func TestRecursiveGateCountSemantics(t *testing.T) {
	t.Parallel()

	g := NewRecursiveGate()
	const n = 5
	for i := 0; i < n; i++ {
		g.Open()
	}
	require.Equal(t, n, g.Pending())

	var eg errgroup.Group
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			g.Close()
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	require.Equal(t, 0, g.Pending())

	// A subsequent pair still completes at the zero baseline.
	g.Open()
	g.Close()
	require.Equal(t, 0, g.Pending())
}

func TestRecursiveGateCloseBlocksUntilOpen(t *testing.T) {
	t.Parallel()

	g := NewRecursiveGate()
	var released atomic.Bool
	done := make(chan struct{})
	go func() {
		g.Close()
		released.Store(true)
		close(done)
	}()
	waitForParked(t, &g.h)
	require.False(t, released.Load())

	g.Open()
	require.Equal(t, 0, g.Pending())
	require.Eventually(t, released.Load, testTimeout, time.Millisecond)
	<-done
}

func TestRecursiveGateExpiryKeepsCount(t *testing.T) {
	t.Parallel()

	g := NewRecursiveGate()
	require.False(t, g.CloseFor(50*time.Millisecond))
	require.Equal(t, 0, g.Pending())

	g.Open()
	require.Equal(t, 1, g.Pending())
	require.True(t, g.CloseFor(testTimeout))
	require.Equal(t, 0, g.Pending())
}

func TestRecursiveGateConcurrentOpens(t *testing.T) {
	t.Parallel()

	g := NewRecursiveGate()
	var eg errgroup.Group
	const n = 20
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			g.Open()
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	require.Equal(t, n, g.Pending())
}
