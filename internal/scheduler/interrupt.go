package scheduler

import "sync"

// InterruptHandle is a one-shot cooperative-cancellation latch: Set is
// idempotent, and a fresh handle is minted for every turn so a cleared
// latch can be raised again on the next one. The agent engine consults
// IsSet/Done at well-defined yield points; the core never force-kills a
// turn mid-call.
type InterruptHandle struct {
	mu sync.Mutex
	ch chan struct{}
	ok bool
}

// NewInterruptHandle returns a fresh, unset handle.
func NewInterruptHandle() *InterruptHandle {
	return &InterruptHandle{ch: make(chan struct{})}
}

// Set raises the interrupt. Calling it more than once has no further effect.
func (h *InterruptHandle) Set() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ok {
		return
	}
	h.ok = true
	close(h.ch)
}

// IsSet reports whether the interrupt has been raised.
func (h *InterruptHandle) IsSet() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ok
}

// Done returns a channel that's closed when the interrupt is raised,
// letting agent code select on it alongside other yield-point work.
func (h *InterruptHandle) Done() <-chan struct{} {
	return h.ch
}
