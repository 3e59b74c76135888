// Package tasks is the persistent job queue behind album enrichment and
// cover-art downloads: enqueue with per-subject dedupe, a polling worker
// with bounded concurrency, and handlers per job type.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/store"
)

// ErrNotRetryable is returned when retrying a job that is still active or completed.
var ErrNotRetryable = errors.New("job is not in a retryable state")

// QueueStore is the jobs table as the queue sees it.
type QueueStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	GetActiveJobBySourceID(ctx context.Context, sourceID string, jobType domain.JobType) (*domain.Job, error)
	RequeueJob(ctx context.Context, id string) error
	ListJobs(ctx context.Context, limit int) ([]*domain.Job, error)
	GetJobStats(ctx context.Context) (*store.JobStats, error)
}

var _ QueueStore = (*store.DB)(nil)

type Queue struct {
	store  QueueStore
	logger *logger.Logger
}

func NewQueue(s QueueStore, log *logger.Logger) *Queue {
	if log == nil {
		log = logger.Default()
	}
	return &Queue{store: s, logger: log.WithComponent("queue")}
}

// Enqueue returns the active job for (jobType, sourceID), creating one when none exists.
func (q *Queue) Enqueue(ctx context.Context, jobType domain.JobType, sourceID string) (*domain.Job, error) {
	existing, err := q.store.GetActiveJobBySourceID(ctx, sourceID, jobType)
	if err == nil {
		q.logger.Debug("Job already exists", "job_id", existing.ID, "source_id", sourceID, "type", jobType)
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for existing job: %w", err)
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    domain.JobStatusQueued,
		SourceID:  sourceID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := q.store.CreateJob(ctx, job); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Someone else enqueued it between the check and the insert.
			return q.store.GetActiveJobBySourceID(ctx, sourceID, jobType)
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	q.logger.Info("Job enqueued", "job_id", job.ID, "source_id", sourceID, "type", jobType)
	return job, nil
}

// TriggerCoverArt queues a cover-art download for a matched release.
func (q *Queue) TriggerCoverArt(ctx context.Context, releaseMBID string) error {
	_, err := q.Enqueue(ctx, domain.JobTypeFetchCoverArt, releaseMBID)
	return err
}

func (q *Queue) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	return q.store.GetJob(ctx, id)
}

func (q *Queue) ListJobs(ctx context.Context, limit int) ([]*domain.Job, error) {
	return q.store.ListJobs(ctx, limit)
}

func (q *Queue) Stats(ctx context.Context) (*store.JobStats, error) {
	return q.store.GetJobStats(ctx)
}

// RetryJob puts a failed or cancelled job back in the queue.
func (q *Queue) RetryJob(ctx context.Context, id string) (*domain.Job, error) {
	job, err := q.store.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job.Status != domain.JobStatusFailed && job.Status != domain.JobStatusCancelled {
		return nil, fmt.Errorf("%w: %s", ErrNotRetryable, job.Status)
	}

	if err := q.store.RequeueJob(ctx, id); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// An equivalent job is already active.
			return q.store.GetActiveJobBySourceID(ctx, job.SourceID, job.Type)
		}
		return nil, err
	}
	q.logger.Info("Job retried", "job_id", id, "type", job.Type, "source_id", job.SourceID)

	job.Status = domain.JobStatusQueued
	job.Error = nil
	return job, nil
}
