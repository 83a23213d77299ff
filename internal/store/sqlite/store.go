// Package sqlite is the embedded-KV channel-directory + cron-job index
// named in spec.md §9 ("a future migration to an embedded KV store is a
// drop-in swap"): a pure-Go modernc.org/sqlite-backed implementation of the
// same two surfaces internal/store/pg exposes (internal/delivery.Directory
// and internal/cron.JobStore), selected when DATABASE_URL has the form
// "sqlite:<path>". With DATABASE_URL unset, the supervisor uses the
// in-process channel directory and the file-backed job store instead.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/cron"
)

// ErrNotFound mirrors internal/channeldir.ErrNotFound for callers that only
// depend on this package directly.
var ErrNotFound = errors.New("sqlite: channel not found")

const schema = `
CREATE TABLE IF NOT EXISTS channels (
	platform TEXT NOT NULL,
	name TEXT NOT NULL,
	chat_id TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (platform, name)
);

CREATE TABLE IF NOT EXISTS cron_jobs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	prompt TEXT NOT NULL,
	schedule TEXT NOT NULL,
	deliver TEXT NOT NULL,
	condition TEXT,
	repeat_count INTEGER,
	remaining INTEGER,
	next_run_at TIMESTAMP NOT NULL,
	last_run_at TIMESTAMP,
	enabled INTEGER NOT NULL
);
`

// Store is a database/sql-backed index over one sqlite file. It implements
// internal/delivery.Directory (Resolve) and internal/cron.JobStore
// (Load/Save).
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite file at path and applies
// the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: avoid concurrent-writer SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Resolve implements internal/delivery.Directory.
func (s *Store) Resolve(ctx context.Context, platform config.Platform, name string) (string, error) {
	var chatID string
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id FROM channels WHERE platform = ? AND name = ?`,
		string(platform), strings.ToLower(name),
	).Scan(&chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s:%s", ErrNotFound, platform, name)
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: resolve channel %s:%s: %w", platform, name, err)
	}
	return chatID, nil
}

// UpsertChannel records (or updates) a name->ID mapping, the write side of
// the directory populated from an adapter's live listing or an operator's
// manual registration.
func (s *Store) UpsertChannel(ctx context.Context, platform config.Platform, name, chatID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (platform, name, chat_id, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(platform, name) DO UPDATE SET chat_id = excluded.chat_id, updated_at = excluded.updated_at
	`, string(platform), strings.ToLower(name), chatID, time.Now())
	if err != nil {
		return fmt.Errorf("sqlite: upsert channel %s:%s: %w", platform, name, err)
	}
	return nil
}

// Load implements internal/cron.JobStore.
func (s *Store) Load() ([]*cron.Job, error) {
	ctx := context.Background()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, prompt, schedule, deliver, condition, repeat_count, remaining, next_run_at, last_run_at, enabled
		FROM cron_jobs
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cron.ErrJobStore, err)
	}
	defer rows.Close()

	var jobs []*cron.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", cron.ErrJobStore, err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", cron.ErrJobStore, err)
	}
	return jobs, nil
}

// Save implements internal/cron.JobStore: the whole job list is the unit
// of atomicity, replaced inside one transaction, matching FileJobStore's
// whole-array write semantics.
func (s *Store) Save(jobs []*cron.Job) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", cron.ErrJobStore, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cron_jobs`); err != nil {
		return fmt.Errorf("%w: %v", cron.ErrJobStore, err)
	}

	for _, job := range jobs {
		deliverJSON, err := json.Marshal(job.Deliver)
		if err != nil {
			return fmt.Errorf("%w: marshal deliver for %s: %v", cron.ErrJobStore, job.ID, err)
		}

		var condition sql.NullString
		if job.Condition != "" {
			condition = sql.NullString{String: job.Condition, Valid: true}
		}
		var repeatCount, remaining sql.NullInt64
		if job.RepeatCount != nil {
			repeatCount = sql.NullInt64{Int64: int64(*job.RepeatCount), Valid: true}
		}
		if job.Remaining != nil {
			remaining = sql.NullInt64{Int64: int64(*job.Remaining), Valid: true}
		}
		var lastRunAt sql.NullTime
		if job.LastRunAt != nil {
			lastRunAt = sql.NullTime{Time: *job.LastRunAt, Valid: true}
		}
		enabled := 0
		if job.Enabled {
			enabled = 1
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cron_jobs (id, name, prompt, schedule, deliver, condition, repeat_count, remaining, next_run_at, last_run_at, enabled)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, job.ID, job.Name, job.Prompt, job.Schedule, string(deliverJSON), condition, repeatCount, remaining, job.NextRunAt, lastRunAt, enabled)
		if err != nil {
			return fmt.Errorf("%w: insert %s: %v", cron.ErrJobStore, job.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", cron.ErrJobStore, err)
	}
	return nil
}

func scanJob(rows *sql.Rows) (*cron.Job, error) {
	var job cron.Job
	var deliverJSON string
	var condition sql.NullString
	var repeatCount, remaining sql.NullInt64
	var lastRunAt sql.NullTime
	var enabled int

	if err := rows.Scan(&job.ID, &job.Name, &job.Prompt, &job.Schedule, &deliverJSON,
		&condition, &repeatCount, &remaining, &job.NextRunAt, &lastRunAt, &enabled); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(deliverJSON), &job.Deliver); err != nil {
		return nil, fmt.Errorf("corrupt deliver column for job %s: %w", job.ID, err)
	}
	if condition.Valid {
		job.Condition = condition.String
	}
	if repeatCount.Valid {
		v := int(repeatCount.Int64)
		job.RepeatCount = &v
	}
	if remaining.Valid {
		v := int(remaining.Int64)
		job.Remaining = &v
	}
	if lastRunAt.Valid {
		t := lastRunAt.Time
		job.LastRunAt = &t
	}
	job.Enabled = enabled != 0
	return &job, nil
}
