package session

import (
	"time"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
)

// ShouldReset is the pure decision function behind the Reset Policy Engine
// (spec §4.D). It never mutates context or policy; callers apply the
// verdict.
func ShouldReset(policy config.ResetPolicy, ctx *Context, now time.Time) bool {
	if ctx == nil {
		return false
	}
	switch policy.Mode {
	case config.ResetIdle:
		return idleElapsed(policy, ctx, now)
	case config.ResetDaily:
		return crossedDailyBoundary(policy, ctx, now)
	case config.ResetBoth:
		return idleElapsed(policy, ctx, now) || crossedDailyBoundary(policy, ctx, now)
	default:
		return false
	}
}

func idleElapsed(policy config.ResetPolicy, ctx *Context, now time.Time) bool {
	if policy.IdleMinutes <= 0 {
		return false
	}
	return now.Sub(ctx.LastActivityAt) >= time.Duration(policy.IdleMinutes)*time.Minute
}

// crossedDailyBoundary reports whether the interval (last_activity_at, now]
// crosses the next occurrence of reset_hour in local time — equivalently,
// whether the two instants fall on different "cron days", where a cron day
// begins at reset_hour rather than midnight.
func crossedDailyBoundary(policy config.ResetPolicy, ctx *Context, now time.Time) bool {
	return cronDay(ctx.LastActivityAt, policy.ResetHour) != cronDay(now, policy.ResetHour)
}

// cronDay returns the ordinal day index of t relative to a day that begins
// at resetHour local time, so two instants compare equal iff they fall in
// the same reset-to-reset window.
func cronDay(t time.Time, resetHour int) int64 {
	loc := t.Location()
	t = t.In(loc)
	shifted := t.Add(-time.Duration(resetHour) * time.Hour)
	y, m, d := shifted.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Unix() / 86400
}
