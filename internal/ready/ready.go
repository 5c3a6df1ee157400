// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ready implements one-shot readiness barriers, such as the
// filesystem node being ready or the crypto library being initialized.
// Both are idempotent — once fulfilled, later waits return immediately —
// and safe to wait on from multiple goroutines at once, the same
// guarantee sync.Once gives bmagent's own lazily-created subsystem
// loggers in log.go.
package ready

import "sync"

// Barrier is a one-shot readiness condition. Create one with NewBarrier and
// call Fulfill once the condition holds; the zero value has no channel, so
// Fulfill on it panics and Wait on it blocks forever.
type Barrier struct {
	once sync.Once
	done chan struct{}
}

// NewBarrier returns an unfulfilled Barrier.
func NewBarrier() *Barrier {
	return &Barrier{done: make(chan struct{})}
}

// Fulfill marks the barrier ready. Calling it more than once is a no-op.
func (b *Barrier) Fulfill() {
	b.once.Do(func() { close(b.done) })
}

// Wait blocks until the barrier is fulfilled. It returns immediately if it
// already was.
func (b *Barrier) Wait() {
	<-b.done
}
