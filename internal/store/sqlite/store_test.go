package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/cron"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestResolveUnknownChannelReturnsErrNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Resolve(context.Background(), config.PlatformSlack, "nope")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestUpsertThenResolveRoundTrips(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.UpsertChannel(context.Background(), config.PlatformTelegram, "Ops-Alerts", "-1001"))

	id, err := store.Resolve(context.Background(), config.PlatformTelegram, "ops-alerts")
	require.NoError(t, err)
	require.Equal(t, "-1001", id)
}

func TestUpsertChannelOverwritesExistingMapping(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertChannel(ctx, config.PlatformDiscord, "general", "111"))
	require.NoError(t, store.UpsertChannel(ctx, config.PlatformDiscord, "general", "222"))

	id, err := store.Resolve(ctx, config.PlatformDiscord, "general")
	require.NoError(t, err)
	require.Equal(t, "222", id)
}

func TestSaveThenLoadJobsRoundTrips(t *testing.T) {
	store := openTestStore(t)

	remaining := 2
	repeatCount := 5
	lastRun := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	jobs := []*cron.Job{
		{
			ID:          "job-1",
			Name:        "digest",
			Prompt:      "summarize",
			Schedule:    "0 9 * * *",
			Deliver:     []string{"origin", "local"},
			Condition:   "hour >= 9",
			RepeatCount: &repeatCount,
			Remaining:   &remaining,
			NextRunAt:   time.Now().Add(time.Hour).UTC().Truncate(time.Second),
			LastRunAt:   &lastRun,
			Enabled:     true,
		},
	}

	require.NoError(t, store.Save(jobs))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "job-1", loaded[0].ID)
	require.Equal(t, []string{"origin", "local"}, loaded[0].Deliver)
	require.Equal(t, "hour >= 9", loaded[0].Condition)
	require.NotNil(t, loaded[0].RepeatCount)
	require.Equal(t, 5, *loaded[0].RepeatCount)
	require.NotNil(t, loaded[0].Remaining)
	require.Equal(t, 2, *loaded[0].Remaining)
	require.NotNil(t, loaded[0].LastRunAt)
	require.True(t, loaded[0].Enabled)
}

func TestSaveReplacesEntireJobList(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save([]*cron.Job{{ID: "old", Name: "old", Prompt: "x", Schedule: "* * * * *", NextRunAt: time.Now()}}))
	require.NoError(t, store.Save([]*cron.Job{{ID: "new", Name: "new", Prompt: "x", Schedule: "* * * * *", NextRunAt: time.Now()}}))

	jobs, err := store.Load()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "new", jobs[0].ID)
}
