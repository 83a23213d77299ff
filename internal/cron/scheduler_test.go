package cron

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scarlettdetekelala/hermes-agent/internal/agent"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/delivery"
	"github.com/scarlettdetekelala/hermes-agent/internal/scheduler"
	"github.com/scarlettdetekelala/hermes-agent/internal/session"
)

var errFailingAgent = errors.New("simulated engine failure")

func testConfig(t *testing.T) *config.Config {
	root := t.TempDir()
	return &config.Config{
		Root:           root,
		AlwaysLogLocal: true,
		TrustedRoots:   []string{root},
	}
}

func newTestScheduler(t *testing.T, run agent.RunConversation) (*CronScheduler, *FileJobStore, *config.Config) {
	cfg := testConfig(t)
	store := NewFileJobStore(filepath.Join(cfg.CronDir(), "jobs.json"))
	invoker := agent.NewInvoker(run)
	router := delivery.NewRouter(cfg, map[config.Platform]channels.Channel{}, nil)
	return NewCronScheduler(store, invoker, router, cfg, nil), store, cfg
}

func succeedingRun(response string) agent.RunConversation {
	return func(_ context.Context, _ string, _ string, _ []session.Entry, _ *scheduler.InterruptHandle) (agent.Response, error) {
		return agent.Response{FinalResponse: response, Completed: true}, nil
	}
}

func TestTickRunsDueJobAndAdvancesSchedule(t *testing.T) {
	sched, store, cfg := newTestScheduler(t, succeedingRun("done"))

	require.NoError(t, store.Save([]*Job{
		{
			ID:        "job-1",
			Name:      "test job",
			Prompt:    "say hi",
			Schedule:  "* * * * *",
			Deliver:   []string{"local"},
			NextRunAt: time.Now().Add(-time.Minute),
			Enabled:   true,
		},
	}))

	n, err := sched.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	jobs, err := store.Load()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.True(t, jobs[0].NextRunAt.After(time.Now()))
	require.NotNil(t, jobs[0].LastRunAt)

	entries, err := os.ReadDir(cfg.CronOutputDir())
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestTickSkipsJobWhenConditionFalseButStillAdvancesSchedule(t *testing.T) {
	sched, store, _ := newTestScheduler(t, succeedingRun("should not run"))

	require.NoError(t, store.Save([]*Job{
		{
			ID:        "job-2",
			Name:      "gated job",
			Prompt:    "say hi",
			Schedule:  "* * * * *",
			Deliver:   []string{"local"},
			Condition: "remaining > 0",
			NextRunAt: time.Now().Add(-time.Minute),
			Enabled:   true,
		},
	}))

	n, err := sched.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, n)

	jobs, err := store.Load()
	require.NoError(t, err)
	require.True(t, jobs[0].NextRunAt.After(time.Now()))
}

func TestTickDisablesBoundedJobWhenRemainingExhausted(t *testing.T) {
	sched, store, _ := newTestScheduler(t, succeedingRun("done"))

	remaining := 1
	require.NoError(t, store.Save([]*Job{
		{
			ID:        "job-3",
			Name:      "one more run",
			Prompt:    "say hi",
			Schedule:  "* * * * *",
			Deliver:   []string{"local"},
			Remaining: &remaining,
			NextRunAt: time.Now().Add(-time.Minute),
			Enabled:   true,
		},
	}))

	_, err := sched.Tick(context.Background())
	require.NoError(t, err)

	jobs, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, 0, *jobs[0].Remaining)
	require.False(t, jobs[0].Enabled)
}

func TestTickDisablesJobWhenOneShotInstantAlreadyUsed(t *testing.T) {
	sched, store, _ := newTestScheduler(t, succeedingRun("done"))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.Save([]*Job{
		{
			ID:        "job-4",
			Name:      "one shot",
			Prompt:    "say hi",
			Schedule:  past.Format(time.RFC3339),
			Deliver:   []string{"local"},
			NextRunAt: past,
			Enabled:   true,
		},
	}))

	n, err := sched.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	jobs, err := store.Load()
	require.NoError(t, err)
	require.False(t, jobs[0].Enabled)
}

func TestTickIsolatesOneJobsFailureFromOthers(t *testing.T) {
	sched, store, _ := newTestScheduler(t, func(_ context.Context, _ string, sessionID string, _ []session.Entry, _ *scheduler.InterruptHandle) (agent.Response, error) {
		if strings.Contains(sessionID, "job-fail") {
			return agent.Response{}, errFailingAgent
		}
		return agent.Response{FinalResponse: "fine"}, nil
	})

	require.NoError(t, store.Save([]*Job{
		{ID: "job-fail", Name: "fails", Prompt: "x", Schedule: "* * * * *", Deliver: []string{"local"}, NextRunAt: time.Now().Add(-time.Minute), Enabled: true},
		{ID: "job-ok", Name: "ok", Prompt: "x", Schedule: "* * * * *", Deliver: []string{"local"}, NextRunAt: time.Now().Add(-time.Minute), Enabled: true},
	}))

	n, err := sched.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	jobs, err := store.Load()
	require.NoError(t, err)
	for _, j := range jobs {
		require.NotNil(t, j.LastRunAt)
	}
}
