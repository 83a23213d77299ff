package cron

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileJobStoreLoadMissingFileReturnsEmpty(t *testing.T) {
	store := NewFileJobStore(filepath.Join(t.TempDir(), "jobs.json"))
	jobs, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, jobs)
}

func TestFileJobStoreSaveThenLoadRoundTrips(t *testing.T) {
	store := NewFileJobStore(filepath.Join(t.TempDir(), "nested", "jobs.json"))

	remaining := 3
	jobs := []*Job{
		{
			ID:        "job-1",
			Name:      "daily digest",
			Prompt:    "summarize today",
			Schedule:  "0 9 * * *",
			Deliver:   []string{"origin", "local"},
			Remaining: &remaining,
			NextRunAt: time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC),
			Enabled:   true,
		},
	}

	require.NoError(t, store.Save(jobs))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "job-1", loaded[0].ID)
	require.Equal(t, "daily digest", loaded[0].Name)
	require.NotNil(t, loaded[0].Remaining)
	require.Equal(t, 3, *loaded[0].Remaining)
	require.True(t, loaded[0].Enabled)
}

func TestFileJobStoreLoadCorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	store := NewFileJobStore(path)
	_, err := store.Load()
	require.Error(t, err)
}
