// Package gate provides rendezvous latches for pairs of goroutines.
//
// A Gate works like a condition variable with one queued signal: when Open is
// called before Close, the Close does not block. Unlike a condition variable,
// Open performs a synchronous hand-off, returning only after a parked Close
// has actually been released, so a wakeup can never be lost. A RecursiveGate
// extends the same contract with a counter, letting N Open calls satisfy N
// later Close calls.
//
// At most one goroutine may block in Close per instance at any time. Parking
// a second concurrent waiter is a usage violation and panics.
package gate

import "time"

// Gate is a single-permit rendezvous latch. At most one permit is queued;
// extra Open calls before the next Close have no effect.
type Gate struct {
	h handoff
}

// NewGate returns a gate with no queued permit: the first Close blocks until
// an Open.
func NewGate() *Gate {
	return &Gate{h: handoff{kind: "gate", max: 1}}
}

// Close blocks until a permit is available and consumes it.
func (g *Gate) Close() {
	g.h.wait(nil)
}

// CloseFor waits up to d for a permit. It reports whether a permit was
// consumed; false means the wait expired first and the gate is unchanged.
// A non-positive duration degrades to a non-blocking permit grab.
func (g *Gate) CloseFor(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	return g.h.wait(timer.C)
}

// CloseUntil is CloseFor with an absolute deadline.
func (g *Gate) CloseUntil(t time.Time) bool {
	return g.CloseFor(time.Until(t))
}

// Open produces one permit. If a goroutine is parked in Close, Open returns
// only after that goroutine has received the permit. Otherwise the permit is
// queued for the next Close.
func (g *Gate) Open() {
	g.h.release()
}

// RecursiveGate is a counting rendezvous latch. Permits accumulate one per
// Open and each Close consumes one, blocking only when none are queued.
type RecursiveGate struct {
	h handoff
}

// NewRecursiveGate returns a counting gate with no queued permits.
func NewRecursiveGate() *RecursiveGate {
	return &RecursiveGate{h: handoff{kind: "recursive"}}
}

// Close blocks until a permit is available and consumes it.
func (g *RecursiveGate) Close() {
	g.h.wait(nil)
}

// CloseFor waits up to d for a permit. It reports whether a permit was
// consumed; false means the wait expired first and the count is unchanged.
func (g *RecursiveGate) CloseFor(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	return g.h.wait(timer.C)
}

// CloseUntil is CloseFor with an absolute deadline.
func (g *RecursiveGate) CloseUntil(t time.Time) bool {
	return g.CloseFor(time.Until(t))
}

// Open produces one permit, with the same synchronous hand-off contract as
// Gate.Open.
func (g *RecursiveGate) Open() {
	g.h.release()
}

// Pending returns the number of queued permits.
func (g *RecursiveGate) Pending() int {
	return g.h.pending()
}
