package gate

import (
	"sync"
	"time"

	"github.com/mrognor/ThreadGate/pkg/metrics"
)

// A handoff stores pending permits and parks at most one waiter at a time.
// It is the shared core of Gate and RecursiveGate.
//
// The mutex guards the permit count and the parked-waiter slot. The slot
// holds an unbuffered channel while a goroutine is parked. A releaser that
// finds the slot occupied claims it under the mutex and sends on the channel;
// the send completes only once the parked goroutine has received, so the
// releaser holds positive proof of the wakeup before it returns. Claiming
// under the mutex also guarantees that two concurrent releasers can never
// target the same waiter.
type handoff struct {
	kind string

	mu      sync.Mutex
	permits int
	max     int // maximum queued permits, 0 means unlimited
	waiter  chan struct{}
}

// release produces one permit. A parked waiter is handed the permit directly
// and release blocks until the waiter has received it. With no waiter present
// the permit is queued for the next wait, discarded when the queue is full.
func (h *handoff) release() {
	h.mu.Lock()
	if ch := h.waiter; ch != nil {
		h.waiter = nil
		h.mu.Unlock()
		ch <- struct{}{}
		metrics.OpenTotal.WithLabelValues(h.kind, "handoff").Inc()
		return
	}
	if h.max > 0 && h.permits >= h.max {
		h.mu.Unlock()
		metrics.OpenTotal.WithLabelValues(h.kind, "discarded").Inc()
		return
	}
	h.permits++
	h.mu.Unlock()
	metrics.OpenTotal.WithLabelValues(h.kind, "queued").Inc()
}

// wait consumes one queued permit, parking until one is handed over when none
// is queued. A receive on expired cancels the wait; a nil expired channel
// never expires. It reports whether a permit was consumed.
//
// Only one goroutine may be parked at a time. A second goroutine entering
// wait while the slot is occupied panics.
func (h *handoff) wait(expired <-chan time.Time) bool {
	h.mu.Lock()
	if h.permits > 0 {
		h.permits--
		h.mu.Unlock()
		metrics.CloseTotal.WithLabelValues(h.kind, "immediate").Inc()
		return true
	}
	if h.waiter != nil {
		h.mu.Unlock()
		panic("gate: concurrent wait on gate")
	}
	ch := make(chan struct{})
	h.waiter = ch
	h.mu.Unlock()

	start := time.Now()
	select {
	case <-ch:
		metrics.WaitDurHistogram.WithLabelValues(h.kind).Observe(time.Since(start).Seconds())
		metrics.CloseTotal.WithLabelValues(h.kind, "handoff").Inc()
		return true
	case <-expired:
		h.mu.Lock()
		if h.waiter == ch {
			h.waiter = nil
			h.mu.Unlock()
			metrics.CloseTotal.WithLabelValues(h.kind, "expired").Inc()
			return false
		}
		h.mu.Unlock()
		// A releaser claimed the slot before the expiry was observed and is
		// committed to the hand-off. Complete it; the permit is consumed.
		<-ch
		metrics.WaitDurHistogram.WithLabelValues(h.kind).Observe(time.Since(start).Seconds())
		metrics.CloseTotal.WithLabelValues(h.kind, "handoff").Inc()
		return true
	}
}

// pending returns the queued permit count.
func (h *handoff) pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.permits
}
