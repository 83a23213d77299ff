// Package scheduler implements the per-session turn scheduler (spec §4.F):
// for every session key, at most one agent turn runs at a time, and a
// message that arrives while a turn is running preempts it by raising that
// turn's interrupt and taking the single pending slot — overwriting
// whatever was queued there before.
//
// The scheduler owns only the concurrency machinery: the active flag, the
// interrupt latch, and the pending slot. It knows nothing about sessions,
// agents, or delivery — those live behind the TurnFunc callback the caller
// supplies, matching the ownership split in spec §3 ("scheduler exclusively
// owns per-session mailboxes").
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/session"
)

// maxCrashRetries bounds how many times a crashed worker's pending event is
// automatically re-submitted before the scheduler gives up and drops it
// with a logged error (spec §9 leaves the backoff/bound to the implementer).
const maxCrashRetries = 3

// TurnFunc runs one turn to completion (or until interrupt is observed and
// the agent yields). It implements steps 1-6 of spec §4.F's worker(): reset
// check, explicit-reset short-circuit, typing indicator, agent invocation,
// response delivery. The scheduler handles step 7 (the pending-slot loop)
// around it.
type TurnFunc func(ctx context.Context, event bus.InboundMessage, interrupt *InterruptHandle)

type sessionState struct {
	mu        sync.Mutex
	active    bool
	interrupt *InterruptHandle
	pending   *bus.InboundMessage
}

// Scheduler is the per-session turn scheduler.
type Scheduler struct {
	ctx  context.Context
	turn TurnFunc

	mu           sync.Mutex
	sessions     map[session.Key]*sessionState
	crashRetries map[session.Key]int
}

// New creates a Scheduler. ctx bounds every worker goroutine it spawns;
// cancelling it does not itself stop in-flight turns (that's cooperative,
// via InterruptHandle) but new turns will observe ctx.Err() immediately.
func New(ctx context.Context, turn TurnFunc) *Scheduler {
	return &Scheduler{
		ctx:          ctx,
		turn:         turn,
		sessions:     make(map[session.Key]*sessionState),
		crashRetries: make(map[session.Key]int),
	}
}

// Submit enqueues event for its session key. If no turn is running for that
// key, a worker starts immediately. Otherwise event overwrites any earlier
// pending event (latest-wins) and the running turn's interrupt is raised.
// Submit never blocks.
func (s *Scheduler) Submit(event bus.InboundMessage) {
	key := event.SessionKey()

	s.mu.Lock()
	st, ok := s.sessions[key]
	if !ok {
		st = &sessionState{}
		s.sessions[key] = st
	}
	s.mu.Unlock()

	st.mu.Lock()
	if !st.active {
		st.active = true
		interrupt := NewInterruptHandle()
		st.interrupt = interrupt
		st.mu.Unlock()
		go s.runWorker(key, st, event, interrupt)
		return
	}

	ev := event
	st.pending = &ev
	interrupt := st.interrupt
	st.mu.Unlock()

	interrupt.Set()
}

// IsActive reports whether a turn is currently running for key. Exposed
// for tests and diagnostics.
func (s *Scheduler) IsActive(key session.Key) bool {
	s.mu.Lock()
	st, ok := s.sessions[key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.active
}

func (s *Scheduler) runWorker(key session.Key, st *sessionState, event bus.InboundMessage, interrupt *InterruptHandle) {
	defer s.recoverCrash(key, st)

	current := event
	for {
		s.turn(s.ctx, current, interrupt)

		st.mu.Lock()
		if st.pending != nil {
			next := *st.pending
			st.pending = nil
			interrupt = NewInterruptHandle()
			st.interrupt = interrupt
			st.mu.Unlock()

			s.mu.Lock()
			delete(s.crashRetries, key)
			s.mu.Unlock()

			current = next
			continue
		}
		st.active = false
		st.interrupt = nil
		st.mu.Unlock()

		s.mu.Lock()
		delete(s.crashRetries, key)
		s.mu.Unlock()
		return
	}
}

// recoverCrash implements the supervisor's worker-crash recovery hook
// (spec §4.F edge case): release the session entry and re-submit any
// pending event, capped at maxCrashRetries so a session that panics on
// every replay cannot spin forever.
func (s *Scheduler) recoverCrash(key session.Key, st *sessionState) {
	r := recover()
	if r == nil {
		return
	}

	st.mu.Lock()
	pending := st.pending
	st.pending = nil
	st.active = false
	st.interrupt = nil
	st.mu.Unlock()

	slog.Error("scheduler: worker panicked", "session_key", key, "panic", r)

	if pending == nil {
		return
	}

	s.mu.Lock()
	s.crashRetries[key]++
	attempts := s.crashRetries[key]
	s.mu.Unlock()

	if attempts > maxCrashRetries {
		slog.Error("scheduler: dropping pending event after repeated worker crashes",
			"session_key", key, "attempts", attempts)
		return
	}

	s.Submit(*pending)
}
