package store

import (
	"context"
	"time"

	"github.com/cesargomez89/playledger/internal/domain"
)

const jobColumns = `id, type, status, attempts, source_id, created_at, updated_at, error`

// CreateJob inserts a queued job. A second active job for the same
// (source_id, type) yields ErrConflict.
func (db *DB) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `INSERT INTO jobs (id, type, status, attempts, source_id, created_at, updated_at)
		VALUES (:id, :type, :status, :attempts, :source_id, :created_at, :updated_at)`

	_, err := db.NamedExecContext(ctx, query, job)
	return mapError(err)
}

func (db *DB) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	job := &domain.Job{}
	if err := db.GetContext(ctx, job, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id); err != nil {
		return nil, mapError(err)
	}
	return job, nil
}

// MarkJobRunning moves a queued job to running and counts the attempt.
// It reports false when another worker already claimed the job.
func (db *DB) MarkJobRunning(ctx context.Context, id string) (bool, error) {
	query := `UPDATE jobs SET status = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = ? AND status = ?`
	res, err := db.ExecContext(ctx, query, domain.JobStatusRunning, time.Now().UTC(), id, domain.JobStatusQueued)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (db *DB) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus) error {
	query := `UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	return err
}

func (db *DB) UpdateJobError(ctx context.Context, id string, errorMsg string) error {
	query := `UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, domain.JobStatusFailed, errorMsg, time.Now().UTC(), id)
	return err
}

// RequeueJob moves a finished job back to queued and clears its error.
func (db *DB) RequeueJob(ctx context.Context, id string) error {
	query := `UPDATE jobs SET status = ?, error = NULL, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, domain.JobStatusQueued, time.Now().UTC(), id)
	return mapError(err)
}

func (db *DB) ListJobs(ctx context.Context, limit int) ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := db.SelectContext(ctx, &jobs, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	return jobs, err
}

func (db *DB) ListActiveJobs(ctx context.Context) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN ('queued', 'running') ORDER BY created_at ASC`

	var jobs []*domain.Job
	err := db.SelectContext(ctx, &jobs, query)
	return jobs, err
}

func (db *DB) GetActiveJobBySourceID(ctx context.Context, sourceID string, jobType domain.JobType) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM jobs
		WHERE source_id = ? AND type = ? AND status IN ('queued', 'running')
		LIMIT 1`

	job := &domain.Job{}
	err := db.GetContext(ctx, job, query, sourceID, jobType)
	if err != nil {
		return nil, mapError(err)
	}
	return job, nil
}

func (db *DB) ResetStuckJobs(ctx context.Context) error {
	query := `UPDATE jobs SET status = ?, updated_at = ? WHERE status = 'running'`
	_, err := db.ExecContext(ctx, query, domain.JobStatusQueued, time.Now().UTC())
	return err
}

func (db *DB) ClearFinishedJobs(ctx context.Context, olderThan time.Time) error {
	query := `DELETE FROM jobs WHERE status IN ('completed', 'failed', 'cancelled') AND updated_at < ?`
	_, err := db.ExecContext(ctx, query, olderThan.UTC())
	return err
}

type JobStats struct {
	Queued    int `db:"queued" json:"queued"`
	Running   int `db:"running" json:"running"`
	Completed int `db:"completed" json:"completed"`
	Failed    int `db:"failed" json:"failed"`
}

func (db *DB) GetJobStats(ctx context.Context) (*JobStats, error) {
	query := `SELECT
		COALESCE(SUM(CASE WHEN status = 'queued' THEN 1 ELSE 0 END), 0) as queued,
		COALESCE(SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END), 0) as running,
		COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) as completed,
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) as failed
	FROM jobs`

	stats := &JobStats{}
	err := db.GetContext(ctx, stats, query)
	return stats, err
}
