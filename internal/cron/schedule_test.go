package cron

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestComputeNextRunRecurringExpression(t *testing.T) {
	after := time.Date(2026, 7, 30, 9, 0, 0, 0, time.Local)
	next, err := computeNextRun("0 12 * * *", after)
	require.NoError(t, err)
	require.True(t, next.After(after))
	require.Equal(t, 12, next.Hour())
}

func TestComputeNextRunOneShotInstantInFuture(t *testing.T) {
	after := time.Date(2026, 7, 30, 9, 0, 0, 0, time.Local)
	instant := after.Add(time.Hour)
	next, err := computeNextRun(instant.Format(time.RFC3339), after)
	require.NoError(t, err)
	require.True(t, next.Equal(instant))
}

func TestComputeNextRunOneShotInstantAlreadyPastErrors(t *testing.T) {
	after := time.Date(2026, 7, 30, 9, 0, 0, 0, time.Local)
	instant := after.Add(-time.Hour)
	_, err := computeNextRun(instant.Format(time.RFC3339), after)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidSchedule))
}

func TestComputeNextRunInvalidExpressionErrors(t *testing.T) {
	_, err := computeNextRun("not a schedule", time.Now())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidSchedule))
}

func TestIsOneShotDistinguishesInstantFromCronExpression(t *testing.T) {
	require.True(t, isOneShot(time.Now().Format(time.RFC3339)))
	require.False(t, isOneShot("*/5 * * * *"))
}
