package pg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scarlettdetekelala/hermes-agent/internal/cron"
)

// These exercise the pure row<->Job marshaling, which needs no live
// Postgres connection; Open/Resolve/Load/Save themselves are exercised by
// internal/store/sqlite's equivalent tests against the identical contract
// (internal/delivery.Directory + internal/cron.JobStore), since both
// packages share the same semantics over different drivers.

func TestFromJobAndToJobRoundTripFullJob(t *testing.T) {
	remaining := 3
	repeatCount := 10
	lastRun := time.Now().UTC().Truncate(time.Second)

	job := &cron.Job{
		ID:          "job-1",
		Name:        "digest",
		Prompt:      "summarize",
		Schedule:    "0 9 * * *",
		Deliver:     []string{"origin", "local"},
		Condition:   "hour >= 9",
		RepeatCount: &repeatCount,
		Remaining:   &remaining,
		NextRunAt:   time.Now().UTC().Truncate(time.Second),
		LastRunAt:   &lastRun,
		Enabled:     true,
	}

	row, err := fromJob(job)
	require.NoError(t, err)

	back, err := row.toJob()
	require.NoError(t, err)

	require.Equal(t, job.ID, back.ID)
	require.Equal(t, job.Deliver, back.Deliver)
	require.Equal(t, job.Condition, back.Condition)
	require.Equal(t, *job.RepeatCount, *back.RepeatCount)
	require.Equal(t, *job.Remaining, *back.Remaining)
	require.True(t, job.NextRunAt.Equal(back.NextRunAt))
	require.True(t, job.LastRunAt.Equal(*back.LastRunAt))
	require.Equal(t, job.Enabled, back.Enabled)
}

func TestFromJobHandlesUnboundedJobWithNoCondition(t *testing.T) {
	job := &cron.Job{
		ID:        "job-2",
		Name:      "one-off",
		Prompt:    "say hi",
		Schedule:  "* * * * *",
		Deliver:   []string{"local"},
		NextRunAt: time.Now().UTC(),
		Enabled:   true,
	}

	row, err := fromJob(job)
	require.NoError(t, err)
	require.False(t, row.Condition.Valid)
	require.False(t, row.RepeatCount.Valid)
	require.False(t, row.Remaining.Valid)
	require.False(t, row.LastRunAt.Valid)

	back, err := row.toJob()
	require.NoError(t, err)
	require.Nil(t, back.RepeatCount)
	require.Nil(t, back.Remaining)
	require.Nil(t, back.LastRunAt)
}
