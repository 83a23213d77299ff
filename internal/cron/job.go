// Package cron evaluates job schedules, runs due jobs as isolated agent
// conversations, and routes their output through the delivery router
// (spec §4.I), ported from original_source/cron/scheduler.py's tick/
// run_daemon/mark_job_run contract.
package cron

import "time"

// Job is one scheduled agent conversation (spec §3 Job).
type Job struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Prompt   string   `json:"prompt"`
	Schedule string   `json:"schedule"` // 5-field cron expression or RFC3339 one-shot instant
	Deliver  []string `json:"deliver"`

	// Condition is an optional CEL guard expression evaluated against
	// {hour, weekday, remaining} before a due job actually runs (a
	// supplement beyond spec.md — see SPEC_FULL.md "SUPPLEMENTED FEATURES").
	// mark_run still advances next_run_at even when this skips execution.
	Condition string `json:"condition,omitempty"`

	RepeatCount *int       `json:"repeat_count,omitempty"`
	Remaining   *int       `json:"remaining,omitempty"`
	NextRunAt   time.Time  `json:"next_run_at"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	Enabled     bool       `json:"enabled"`
}

// IsDue reports whether j should run at now (spec §4.I tick()).
func (j Job) IsDue(now time.Time) bool {
	return j.Enabled && !j.NextRunAt.After(now)
}

// Bounded reports whether the job has a finite repeat count.
func (j Job) Bounded() bool {
	return j.Remaining != nil
}
