package orchestrator

// #region imports
import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/identity-engine/internal/fault"
)

// #endregion

// #region schema

const syncJobsSchema = `
CREATE TABLE IF NOT EXISTS sync_jobs (
    job_id        TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    state_id      TEXT NOT NULL,
    status        TEXT NOT NULL,
    results_json  TEXT NOT NULL DEFAULT '{}',
    started_at    TEXT NOT NULL,
    completed_at  TEXT
);
`

const syncJobsIndex = `
CREATE INDEX IF NOT EXISTS idx_sync_jobs_user
ON sync_jobs(user_id, started_at DESC);
`

// #endregion

// #region joblog-struct

// JobLog persists sync job outcomes in SQLite.
type JobLog struct {
	db *sql.DB
}

// NewJobLog initializes the sync_jobs table and returns a JobLog.
func NewJobLog(db *sql.DB) (*JobLog, error) {
	if _, err := db.Exec(syncJobsSchema); err != nil {
		return nil, fmt.Errorf("create sync_jobs: %w", err)
	}
	if _, err := db.Exec(syncJobsIndex); err != nil {
		return nil, fmt.Errorf("index sync_jobs: %w", err)
	}
	return &JobLog{db: db}, nil
}

// #endregion

// #region record

// RecordStart inserts the job row at fan-out time.
func (l *JobLog) RecordStart(job SyncJob) error {
	results, err := json.Marshal(job.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	_, err = l.db.Exec(`
		INSERT INTO sync_jobs (job_id, user_id, state_id, status, results_json, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, job.StateID, string(job.Status),
		string(results), job.StartedAt.Format(time.RFC3339Nano),
	)
	return err
}

// RecordFinish updates the job row with terminal status and results.
// Retries land here too, overwriting the previous terminal record.
func (l *JobLog) RecordFinish(job SyncJob) error {
	results, err := json.Marshal(job.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	var completedAt any
	if job.CompletedAt != nil {
		completedAt = job.CompletedAt.Format(time.RFC3339Nano)
	}
	res, err := l.db.Exec(`
		UPDATE sync_jobs SET status = ?, results_json = ?, completed_at = ?
		WHERE job_id = ?`,
		string(job.Status), string(results), completedAt, job.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("sync job %s not found", job.ID)
	}
	return nil
}

// #endregion

// #region queries

// GetJob loads one job by id.
func (l *JobLog) GetJob(jobID string) (SyncJob, error) {
	row := l.db.QueryRow(`
		SELECT job_id, user_id, state_id, status, results_json, started_at, completed_at
		FROM sync_jobs WHERE job_id = ?`, jobID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return SyncJob{}, fault.NotFound("sync job %s not found", jobID)
	}
	return job, err
}

// ListRecent returns the user's newest jobs, newest first.
func (l *JobLog) ListRecent(userID string, limit int) ([]SyncJob, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.Query(`
		SELECT job_id, user_id, state_id, status, results_json, started_at, completed_at
		FROM sync_jobs WHERE user_id = ?
		ORDER BY started_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []SyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (SyncJob, error) {
	var job SyncJob
	var status, resultsJSON, startedAt string
	var completedAt sql.NullString
	if err := row.Scan(&job.ID, &job.UserID, &job.StateID, &status, &resultsJSON, &startedAt, &completedAt); err != nil {
		return SyncJob{}, err
	}
	job.Status = JobStatus(status)
	if err := json.Unmarshal([]byte(resultsJSON), &job.Results); err != nil {
		return SyncJob{}, fmt.Errorf("unmarshal results: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return SyncJob{}, fmt.Errorf("parse started_at: %w", err)
	}
	job.StartedAt = ts
	if completedAt.Valid {
		ts, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return SyncJob{}, fmt.Errorf("parse completed_at: %w", err)
		}
		job.CompletedAt = &ts
	}
	return job, nil
}

// #endregion
