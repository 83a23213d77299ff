// Package store carries cross-cutting request identity through
// context.Context so structured logging and OTel spans (internal/tracing)
// can tag a turn, delivery, or cron run with the session/job it belongs to
// without threading extra parameters through every call.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/scarlettdetekelala/hermes-agent/internal/session"
)

type contextKey string

const (
	// SessionKeyKey is the context key for the active session.Key (spec §3
	// Key: platform, chat_id, thread_id).
	SessionKeyKey contextKey = "hermes_session_key"
	// TurnIDKey is the context key for the per-turn correlation UUID, minted
	// once when a Scheduler worker picks up an event and carried through the
	// agent invocation and delivery fan-out.
	TurnIDKey contextKey = "hermes_turn_id"
	// JobIDKey is the context key for the cron job ID driving the current
	// agent invocation, set only for cron-originated turns.
	JobIDKey contextKey = "hermes_job_id"
)

// WithSessionKey returns a new context carrying key.
func WithSessionKey(ctx context.Context, key session.Key) context.Context {
	return context.WithValue(ctx, SessionKeyKey, key)
}

// SessionKeyFromContext extracts the session key from context. Returns the
// zero Key if not set.
func SessionKeyFromContext(ctx context.Context) session.Key {
	if v, ok := ctx.Value(SessionKeyKey).(session.Key); ok {
		return v
	}
	return session.Key{}
}

// WithTurnID returns a new context carrying a fresh turn correlation ID.
func WithTurnID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, TurnIDKey, id)
}

// TurnIDFromContext extracts the turn ID from context. Returns uuid.Nil if
// not set.
func TurnIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(TurnIDKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// WithJobID returns a new context carrying the driving cron job's ID.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, JobIDKey, id)
}

// JobIDFromContext extracts the cron job ID from context. Returns "" if not
// set (i.e. the turn did not originate from cron).
func JobIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(JobIDKey).(string); ok {
		return v
	}
	return ""
}
