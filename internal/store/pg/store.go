// Package pg is the Postgres-backed channel-directory + cron-job index
// alternative named in spec.md §9 ("a future migration to an embedded KV
// store is a drop-in swap behind the SessionStore interface" — Postgres and
// sqlite are the two concrete swap targets this repo ships). Selected when
// config.Config.DatabaseURL is set to a postgres:// DSN.
//
// Schema migrations run through golang-migrate against a lib/pq connection
// (the driver golang-migrate's own postgres driver is built on); the
// resulting queries run over a second, pgx/v5-backed connection via sqlx,
// since pgx is the actively maintained driver for steady-state traffic.
package pg

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/cron"
)

// ErrNotFound mirrors internal/channeldir.ErrNotFound for callers depending
// on this package directly.
var ErrNotFound = errors.New("pg: channel not found")

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store is a sqlx/pgx-backed index over a Postgres database. It implements
// internal/delivery.Directory (Resolve) and internal/cron.JobStore
// (Load/Save).
type Store struct {
	db *sqlx.DB
}

// Open migrates the schema (via a lib/pq connection, closed once migration
// completes) and returns a Store backed by a separate pgx-stdlib connection
// for runtime queries.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if err := migrateSchema(dsn); err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: connecting via pgx: %w", err)
	}
	return &Store{db: db}, nil
}

func migrateSchema(dsn string) error {
	migDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("pg: opening lib/pq connection for migration: %w", err)
	}
	defer migDB.Close()

	driver, err := postgres.WithInstance(migDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("pg: building migration driver: %w", err)
	}
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("pg: loading embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("pg: building migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("pg: applying migrations: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Resolve implements internal/delivery.Directory.
func (s *Store) Resolve(ctx context.Context, platform config.Platform, name string) (string, error) {
	var chatID string
	err := s.db.QueryRowxContext(ctx,
		s.db.Rebind(`SELECT chat_id FROM channels WHERE platform = ? AND name = ?`),
		string(platform), strings.ToLower(name),
	).Scan(&chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s:%s", ErrNotFound, platform, name)
	}
	if err != nil {
		return "", fmt.Errorf("pg: resolve channel %s:%s: %w", platform, name, err)
	}
	return chatID, nil
}

// UpsertChannel records (or updates) a name->ID mapping.
func (s *Store) UpsertChannel(ctx context.Context, platform config.Platform, name, chatID string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO channels (platform, name, chat_id, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (platform, name) DO UPDATE SET chat_id = excluded.chat_id, updated_at = excluded.updated_at
	`), string(platform), strings.ToLower(name), chatID, time.Now())
	if err != nil {
		return fmt.Errorf("pg: upsert channel %s:%s: %w", platform, name, err)
	}
	return nil
}

type jobRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Prompt      string         `db:"prompt"`
	Schedule    string         `db:"schedule"`
	Deliver     string         `db:"deliver"`
	Condition   sql.NullString `db:"condition"`
	RepeatCount sql.NullInt64  `db:"repeat_count"`
	Remaining   sql.NullInt64  `db:"remaining"`
	NextRunAt   time.Time      `db:"next_run_at"`
	LastRunAt   sql.NullTime   `db:"last_run_at"`
	Enabled     bool           `db:"enabled"`
}

// Load implements internal/cron.JobStore.
func (s *Store) Load() ([]*cron.Job, error) {
	ctx := context.Background()
	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, prompt, schedule, deliver, condition, repeat_count, remaining, next_run_at, last_run_at, enabled
		FROM cron_jobs
	`); err != nil {
		return nil, fmt.Errorf("%w: %v", cron.ErrJobStore, err)
	}

	jobs := make([]*cron.Job, 0, len(rows))
	for _, r := range rows {
		job, err := r.toJob()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", cron.ErrJobStore, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Save implements internal/cron.JobStore: the whole job list is the unit
// of atomicity, replaced inside one transaction.
func (s *Store) Save(jobs []*cron.Job) error {
	ctx := context.Background()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", cron.ErrJobStore, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cron_jobs`); err != nil {
		return fmt.Errorf("%w: %v", cron.ErrJobStore, err)
	}

	for _, job := range jobs {
		row, err := fromJob(job)
		if err != nil {
			return fmt.Errorf("%w: %v", cron.ErrJobStore, err)
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO cron_jobs (id, name, prompt, schedule, deliver, condition, repeat_count, remaining, next_run_at, last_run_at, enabled)
			VALUES (:id, :name, :prompt, :schedule, :deliver, :condition, :repeat_count, :remaining, :next_run_at, :last_run_at, :enabled)
		`, row)
		if err != nil {
			return fmt.Errorf("%w: insert %s: %v", cron.ErrJobStore, job.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", cron.ErrJobStore, err)
	}
	return nil
}

func (r jobRow) toJob() (*cron.Job, error) {
	job := &cron.Job{
		ID:        r.ID,
		Name:      r.Name,
		Prompt:    r.Prompt,
		Schedule:  r.Schedule,
		NextRunAt: r.NextRunAt,
		Enabled:   r.Enabled,
	}
	if err := json.Unmarshal([]byte(r.Deliver), &job.Deliver); err != nil {
		return nil, fmt.Errorf("corrupt deliver column for job %s: %w", r.ID, err)
	}
	if r.Condition.Valid {
		job.Condition = r.Condition.String
	}
	if r.RepeatCount.Valid {
		v := int(r.RepeatCount.Int64)
		job.RepeatCount = &v
	}
	if r.Remaining.Valid {
		v := int(r.Remaining.Int64)
		job.Remaining = &v
	}
	if r.LastRunAt.Valid {
		t := r.LastRunAt.Time
		job.LastRunAt = &t
	}
	return job, nil
}

func fromJob(job *cron.Job) (jobRow, error) {
	deliverJSON, err := json.Marshal(job.Deliver)
	if err != nil {
		return jobRow{}, fmt.Errorf("marshal deliver for %s: %w", job.ID, err)
	}
	row := jobRow{
		ID:        job.ID,
		Name:      job.Name,
		Prompt:    job.Prompt,
		Schedule:  job.Schedule,
		Deliver:   string(deliverJSON),
		NextRunAt: job.NextRunAt,
		Enabled:   job.Enabled,
	}
	if job.Condition != "" {
		row.Condition = sql.NullString{String: job.Condition, Valid: true}
	}
	if job.RepeatCount != nil {
		row.RepeatCount = sql.NullInt64{Int64: int64(*job.RepeatCount), Valid: true}
	}
	if job.Remaining != nil {
		row.Remaining = sql.NullInt64{Int64: int64(*job.Remaining), Valid: true}
	}
	if job.LastRunAt != nil {
		row.LastRunAt = sql.NullTime{Time: *job.LastRunAt, Valid: true}
	}
	return row, nil
}
