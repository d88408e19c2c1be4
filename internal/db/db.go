package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zsprackett/trainwatch/internal/training"
	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: every statement sees the same database, which also
	// keeps ":memory:" coherent.
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("open db: %w", err)
		}
	}
	return &DB{sql: conn}, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) Migrate() error {
	_, err := d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id          TEXT PRIMARY KEY,
			status      TEXT NOT NULL,
			progress    REAL NOT NULL DEFAULT 0,
			loss        REAL NOT NULL DEFAULT 0,
			log_message TEXT NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create jobs: %w", err)
	}

	_, err = d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS job_events (
			id         INTEGER PRIMARY KEY,
			job_id     TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
			ts         INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			detail     TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("create job_events: %w", err)
	}

	if _, err := d.sql.Exec(`CREATE INDEX IF NOT EXISTS idx_job_events_job_id ON job_events(job_id, ts DESC)`); err != nil {
		return fmt.Errorf("index job_events: %w", err)
	}
	return nil
}

// SaveJob inserts the job or updates its snapshot fields in place. An
// upsert rather than INSERT OR REPLACE so the job's events survive.
func (d *DB) SaveJob(j *Job) error {
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = time.Now()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = j.UpdatedAt
	}
	_, err := d.sql.Exec(`
		INSERT INTO jobs (id, status, progress, loss, log_message, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			loss = excluded.loss,
			log_message = excluded.log_message,
			updated_at = excluded.updated_at`,
		j.JobID, string(j.Status), j.Progress, j.Loss, j.LogMessage,
		j.CreatedAt.UnixMilli(), j.UpdatedAt.UnixMilli(),
	)
	return err
}

// UpdateSnapshot stores s as the latest state of an existing job.
func (d *DB) UpdateSnapshot(s training.Snapshot) error {
	res, err := d.sql.Exec(`
		UPDATE jobs SET status = ?, progress = ?, loss = ?, log_message = ?, updated_at = ?
		WHERE id = ?`,
		string(s.Status), s.Progress, s.Loss, s.LogMessage, time.Now().UnixMilli(), s.JobID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update %s: %w", s.JobID, ErrJobNotFound)
	}
	return nil
}

func (d *DB) GetJob(id string) (*Job, error) {
	row := d.sql.QueryRow(`
		SELECT id, status, progress, loss, log_message, created_at, updated_at
		FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", id, ErrJobNotFound)
	}
	return j, err
}

// LoadJobs returns the most recently created jobs first.
func (d *DB) LoadJobs(limit int) ([]*Job, error) {
	rows, err := d.sql.Query(`
		SELECT id, status, progress, loss, log_message, created_at, updated_at
		FROM jobs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// StaleJobs returns jobs not updated since before, oldest first.
func (d *DB) StaleJobs(before time.Time) ([]*Job, error) {
	rows, err := d.sql.Query(`
		SELECT id, status, progress, loss, log_message, created_at, updated_at
		FROM jobs WHERE updated_at < ? ORDER BY updated_at, id`, before.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (d *DB) DeleteJob(id string) error {
	_, err := d.sql.Exec("DELETE FROM jobs WHERE id = ?", id)
	return err
}

// rowScanner is implemented by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var status string
	var createdAt, updatedAt int64
	err := row.Scan(&j.JobID, &status, &j.Progress, &j.Loss, &j.LogMessage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	j.Status = training.Status(status)
	j.CreatedAt = time.UnixMilli(createdAt)
	j.UpdatedAt = time.UnixMilli(updatedAt)
	return &j, nil
}

func (d *DB) InsertJobEvent(jobID string, eventType JobEventType, detail string) error {
	_, err := d.sql.Exec(
		`INSERT INTO job_events (job_id, ts, event_type, detail) VALUES (?, ?, ?, ?)`,
		jobID, time.Now().UnixMilli(), string(eventType), detail,
	)
	return err
}

// GetJobEvents returns up to limit events for jobID, newest first.
func (d *DB) GetJobEvents(jobID string, limit int) ([]JobEvent, error) {
	rows, err := d.sql.Query(
		`SELECT id, job_id, ts, event_type, detail
		 FROM job_events
		 WHERE job_id = ?
		 ORDER BY ts DESC, id DESC
		 LIMIT ?`,
		jobID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []JobEvent
	for rows.Next() {
		var e JobEvent
		var ts int64
		var eventType string
		if err := rows.Scan(&e.ID, &e.JobID, &ts, &eventType, &e.Detail); err != nil {
			return nil, err
		}
		e.Ts = time.UnixMilli(ts)
		e.EventType = JobEventType(eventType)
		events = append(events, e)
	}
	return events, rows.Err()
}
