package cron

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// ErrInvalidSchedule is returned when a schedule string is neither a valid
// 5-field cron expression nor an RFC3339 one-shot instant.
var ErrInvalidSchedule = fmt.Errorf("cron: invalid schedule expression")

// computeNextRun advances schedule past after, evaluated in the local
// time.Location (spec §9 Open Question, resolved in DESIGN.md): gronx's
// calendar-based NextTickAfter asks "does this real, legislated wall-clock
// minute match?", so a spring-forward gap simply has no matching minute
// (skipped, never double-fired) and a fall-back overlap only ever matches
// the first occurrence, since the result is always strictly after `after`.
func computeNextRun(schedule string, after time.Time) (time.Time, error) {
	if instant, err := time.ParseInLocation(time.RFC3339, schedule, time.Local); err == nil {
		if instant.After(after) {
			return instant, nil
		}
		return time.Time{}, fmt.Errorf("%w: one-shot instant %s is not after %s", ErrInvalidSchedule, schedule, after)
	}

	next, err := gronx.NextTickAfter(schedule, after, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, schedule, err)
	}
	return next, nil
}

// isOneShot reports whether schedule is an RFC3339 instant rather than a
// recurring 5-field cron expression.
func isOneShot(schedule string) bool {
	_, err := time.ParseInLocation(time.RFC3339, schedule, time.Local)
	return err == nil
}
