package bus

import (
	"sync"
	"time"

	"github.com/scarlettdetekelala/hermes-agent/internal/session"
)

// InboundDebouncer merges rapid-fire messages from the same session key
// into a single flush, so a user sending three quick lines produces one
// scheduler submission instead of three back-to-back interrupts. It is
// purely a front-door optimization: the turn scheduler's own interrupt/
// pending-slot semantics (internal/scheduler) remain the authority for
// correctness even if a caller bypasses the debouncer entirely.
type InboundDebouncer struct {
	window time.Duration
	flush  func(InboundMessage)

	mu      sync.Mutex
	pending map[session.Key]*debounceEntry
}

type debounceEntry struct {
	timer  *time.Timer
	latest InboundMessage
}

// NewInboundDebouncer creates a debouncer that calls flush at most once per
// window per session key, with the latest message's metadata and the
// concatenated text of everything merged in between.
func NewInboundDebouncer(window time.Duration, flush func(InboundMessage)) *InboundDebouncer {
	return &InboundDebouncer{
		window:  window,
		flush:   flush,
		pending: make(map[session.Key]*debounceEntry),
	}
}

// Submit feeds one inbound message through the debounce window. Commands
// and media messages bypass debouncing entirely — they are dispatched
// immediately, since merging a "/new" with a following chat line would be
// actively wrong.
func (d *InboundDebouncer) Submit(msg InboundMessage) {
	if msg.IsCommand() || len(msg.Media) > 0 || d.window <= 0 {
		d.flush(msg)
		return
	}

	key := msg.SessionKey()

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.pending[key]
	if !ok {
		entry = &debounceEntry{}
		d.pending[key] = entry
	} else {
		entry.timer.Stop()
		msg.Text = entry.latest.Text + "\n" + msg.Text
	}
	entry.latest = msg

	entry.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		final, ok := d.pending[key]
		if ok {
			delete(d.pending, key)
		}
		d.mu.Unlock()
		if ok {
			d.flush(final.latest)
		}
	})
}
