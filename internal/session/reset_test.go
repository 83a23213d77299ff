package session

import (
	"testing"
	"time"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/stretchr/testify/require"
)

func ctxAt(t time.Time) *Context {
	return &Context{LastActivityAt: t}
}

func TestShouldResetIdle(t *testing.T) {
	policy := config.ResetPolicy{Mode: config.ResetIdle, IdleMinutes: 30}
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.False(t, ShouldReset(policy, ctxAt(base), base.Add(29*time.Minute)))
	require.True(t, ShouldReset(policy, ctxAt(base), base.Add(30*time.Minute)))
}

func TestShouldResetDailyBoundary(t *testing.T) {
	policy := config.ResetPolicy{Mode: config.ResetDaily, ResetHour: 4}

	sameDayBefore := time.Date(2026, 1, 1, 3, 59, 59, 0, time.UTC)
	atBoundary := time.Date(2026, 1, 1, 4, 0, 0, 0, time.UTC)
	require.True(t, ShouldReset(policy, ctxAt(sameDayBefore), atBoundary),
		"first event at exactly reset_hour must trigger when previous activity was earlier that cron day")

	justAfterBoundary := time.Date(2026, 1, 1, 4, 0, 1, 0, time.UTC)
	require.False(t, ShouldReset(policy, ctxAt(atBoundary), justAfterBoundary))

	nextDayBoundary := time.Date(2026, 1, 2, 4, 0, 0, 0, time.UTC)
	require.True(t, ShouldReset(policy, ctxAt(justAfterBoundary), nextDayBoundary))
}

func TestShouldResetBothIsOr(t *testing.T) {
	policy := config.ResetPolicy{Mode: config.ResetBoth, ResetHour: 4, IdleMinutes: 120}
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	require.True(t, ShouldReset(policy, ctxAt(base), base.Add(121*time.Minute)))
	require.False(t, ShouldReset(policy, ctxAt(base), base.Add(10*time.Minute)))
}
