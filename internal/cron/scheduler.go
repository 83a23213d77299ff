package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/scarlettdetekelala/hermes-agent/internal/agent"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/delivery"
	"github.com/scarlettdetekelala/hermes-agent/internal/scheduler"
	"github.com/scarlettdetekelala/hermes-agent/internal/store"
	"github.com/scarlettdetekelala/hermes-agent/internal/tracing"
)

const tracerName = "hermes-agent/cron"

// CronScheduler evaluates every job's schedule once per Tick and routes due
// jobs' output through the delivery router (spec §4.I), ported from
// original_source/cron/scheduler.py's tick()/run_daemon()/mark_job_run().
type CronScheduler struct {
	store   JobStore
	invoker *agent.Invoker
	router  *delivery.Router
	cfg     *config.Config
	dir     delivery.Directory
}

// NewCronScheduler wires a CronScheduler. dir may be nil if no channel
// directory backend is configured (non-numeric "<platform>:<name>" targets
// in a job's Deliver list are then dropped, same as the delivery router's
// own behavior).
func NewCronScheduler(store JobStore, invoker *agent.Invoker, router *delivery.Router, cfg *config.Config, dir delivery.Directory) *CronScheduler {
	return &CronScheduler{store: store, invoker: invoker, router: router, cfg: cfg, dir: dir}
}

// Tick evaluates every job once and runs those due (spec §4.I tick()).
// Errors in one job never stop the others — each job is isolated with a
// recover() and a captured error, matching "the tick loop catches, logs,
// and continues."
func (c *CronScheduler) Tick(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "cron.tick")
	var tickErr error
	defer func() { tracing.EndWithError(span, tickErr) }()

	jobs, err := c.store.Load()
	if err != nil {
		tickErr = err
		return 0, err
	}

	now := time.Now()
	executed := 0

	for _, job := range jobs {
		if !job.IsDue(now) {
			continue
		}
		if c.runOne(ctx, job, now) {
			executed++
		}
	}

	if err := c.store.Save(jobs); err != nil {
		tickErr = fmt.Errorf("cron: persisting job state after tick: %w", err)
		return executed, tickErr
	}
	span.SetAttributes(attribute.Int("cron.executed", executed), attribute.Int("cron.evaluated", len(jobs)))
	return executed, nil
}

// runOne executes (or condition-skips) a single due job and always calls
// markRun, isolating panics so one bad job can't take down the tick loop.
func (c *CronScheduler) runOne(ctx context.Context, job *Job, now time.Time) (ran bool) {
	ctx = store.WithJobID(ctx, job.ID)
	ctx, span := tracing.StartSpan(ctx, tracerName, "cron.job", attribute.String("cron.job_id", job.ID))
	log := slog.With("job_id", job.ID)
	var runErr error
	defer func() {
		if r := recover(); r != nil {
			log.Error("cron: job panicked", "panic", r)
			runErr = fmt.Errorf("cron: job panicked: %v", r)
			c.markRun(job, false, now)
		}
		tracing.EndWithError(span, runErr)
	}()

	remaining := 0
	if job.Remaining != nil {
		remaining = *job.Remaining
	}
	due, err := EvalCondition(job.Condition, now, remaining)
	if err != nil {
		log.Warn("cron: condition evaluation failed, skipping run", "error", err)
		c.markRun(job, false, now)
		return false
	}
	if !due {
		log.Info("cron: condition gated job, skipping this occurrence")
		c.markRun(job, false, now)
		return false
	}

	_, output, jobErr := c.runJob(ctx, job, now)
	if jobErr != nil {
		runErr = jobErr
		log.Error("cron: job failed", "error", jobErr)
	}

	targets, dropped := delivery.ResolveTargets(ctx, c.cfg, c.dir, job.Deliver, nil)
	for spec, derr := range dropped {
		log.Warn("cron: delivery target dropped", "target", spec, "error", derr)
	}
	results := c.router.Deliver(ctx, output, targets, delivery.Options{JobID: job.ID, JobName: job.Name})
	for target, res := range results {
		if !res.Success {
			log.Error("cron: delivery failed", "target", target, "error", res.Error)
		}
	}

	// The job was attempted regardless of whether the engine call itself
	// succeeded — last_run_at and remaining track attempts, not successes.
	c.markRun(job, true, now)
	return true
}

// runJob invokes the agent engine with a fresh, job-scoped session and
// wraps the result in the markdown envelope spec §4.I step 3 describes.
func (c *CronScheduler) runJob(ctx context.Context, job *Job, now time.Time) (bool, string, error) {
	sessionID := agent.CronSessionID(job.ID, now.Format("20060102_150405"))

	resp, err := c.invoker.Invoke(ctx, job.Prompt, sessionID, nil, scheduler.NewInterruptHandle())
	if err != nil {
		return false, renderEnvelope(job, now, "", err), err
	}
	final := resp.FinalResponse
	if final == "" {
		final = "(No response generated)"
	}
	return true, renderEnvelope(job, now, final, nil), nil
}

func renderEnvelope(job *Job, now time.Time, response string, runErr error) string {
	header := fmt.Sprintf("# Cron Job: %s", job.Name)
	if runErr != nil {
		header += " (FAILED)"
	}
	body := fmt.Sprintf("%s\n\n**Job ID:** %s\n**Run Time:** %s\n**Schedule:** %s\n\n## Prompt\n\n%s\n",
		header, job.ID, now.Format("2006-01-02 15:04:05"), job.Schedule, job.Prompt)

	if runErr != nil {
		return body + fmt.Sprintf("\n## Error\n\n```\n%s\n```\n", runErr)
	}
	return body + fmt.Sprintf("\n## Response\n\n%s\n", response)
}

// markRun advances next_run_at, decrements remaining on an actual run, and
// persists last_run_at — spec §4.I step 5 / §3 invariant "next_run_at is
// always >= now after mark_run()". A schedule that can no longer produce a
// future tick (an already-used one-shot instant, or an invalid expression)
// disables the job rather than looping on the same due instant forever.
func (c *CronScheduler) markRun(job *Job, ran bool, now time.Time) {
	if ran {
		t := now
		job.LastRunAt = &t
		if job.Remaining != nil {
			*job.Remaining--
		}
	}

	next, err := computeNextRun(job.Schedule, now)
	if err != nil {
		if !errors.Is(err, ErrInvalidSchedule) {
			slog.Error("cron: unexpected schedule advance error", "job_id", job.ID, "error", err)
		}
		job.Enabled = false
		return
	}
	job.NextRunAt = next

	if job.Remaining != nil && *job.Remaining <= 0 {
		job.Enabled = false
	}
}

// RunDaemon loops Tick every interval until ctx is cancelled (spec §4.I
// run_daemon()).
func (c *CronScheduler) RunDaemon(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := c.Tick(ctx); err != nil {
			slog.Error("cron: tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
