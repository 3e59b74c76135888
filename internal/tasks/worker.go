package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cesargomez89/playledger/internal/constants"
	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/enrichment"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/metrics"
	"github.com/cesargomez89/playledger/internal/store"
)

// WorkerStore is the jobs table as the worker sees it.
type WorkerStore interface {
	ListActiveJobs(ctx context.Context) ([]*domain.Job, error)
	MarkJobRunning(ctx context.Context, id string) (bool, error)
	UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus) error
	UpdateJobError(ctx context.Context, id string, errorMsg string) error
	ResetStuckJobs(ctx context.Context) error
}

var _ WorkerStore = (*store.DB)(nil)

type Worker struct {
	store        WorkerStore
	dispatcher   *Dispatcher
	logger       *logger.Logger
	pollInterval time.Duration

	MaxConcurrent int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(s WorkerStore, d *Dispatcher, concurrency int, pollInterval time.Duration, log *logger.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = constants.DefaultConcurrency
	}
	if pollInterval <= 0 {
		pollInterval = constants.DefaultWorkerPoll
	}
	if log == nil {
		log = logger.Default()
	}
	return &Worker{
		store:         s,
		dispatcher:    d,
		logger:        log.WithComponent("worker"),
		pollInterval:  pollInterval,
		MaxConcurrent: concurrency,
	}
}

// Start resets jobs left running by a previous process and begins polling.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting worker", "concurrency", w.MaxConcurrent)

	if err := w.store.ResetStuckJobs(ctx); err != nil {
		w.logger.Error("Failed to reset stuck jobs", "error", err)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.processJobs(ctx)
}

// Stop cancels running jobs and waits for them to return.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker")
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Serve implements suture.Service.
func (w *Worker) Serve(ctx context.Context) error {
	w.Start(ctx)
	<-ctx.Done()
	w.Stop()
	return ctx.Err()
}

func (w *Worker) String() string {
	return "job-worker"
}

func (w *Worker) processJobs(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.MaxConcurrent)

	for {
		w.startQueued(ctx, sem)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) startQueued(ctx context.Context, sem chan struct{}) {
	jobs, err := w.store.ListActiveJobs(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Failed to list jobs", "error", err)
		}
		return
	}

	for _, job := range jobs {
		if job.Status != domain.JobStatusQueued {
			continue
		}
		select {
		case sem <- struct{}{}:
		default:
			return
		}

		claimed, err := w.store.MarkJobRunning(ctx, job.ID)
		if err != nil || !claimed {
			<-sem
			if err != nil {
				w.logger.Error("Failed to claim job", "job_id", job.ID, "error", err)
			}
			continue
		}

		w.wg.Add(1)
		go func(j *domain.Job) {
			defer w.wg.Done()
			defer func() { <-sem }()
			w.runJob(ctx, j)
		}(job)
	}
}

func (w *Worker) runJob(ctx context.Context, job *domain.Job) {
	log := w.logger.WithJob(job.ID, string(job.Type)).With("source_id", job.SourceID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic in job", "panic", r)
			_ = w.store.UpdateJobError(context.WithoutCancel(ctx), job.ID, fmt.Sprintf("Panic: %v", r))
			metrics.RecordJob(string(job.Type), string(domain.JobStatusFailed), time.Since(start))
		}
	}()

	log.Debug("Running job")
	err := w.dispatcher.Dispatch(ctx, job, log)

	// Writes after shutdown still need to land.
	writeCtx := context.WithoutCancel(ctx)
	switch {
	case err == nil:
		if uErr := w.store.UpdateJobStatus(writeCtx, job.ID, domain.JobStatusCompleted); uErr != nil {
			log.Error("Failed to mark job completed", "error", uErr)
		}
		metrics.RecordJob(string(job.Type), string(domain.JobStatusCompleted), time.Since(start))

	case ctx.Err() != nil:
		// Interrupted by shutdown: run it again on the next start.
		if uErr := w.store.UpdateJobStatus(writeCtx, job.ID, domain.JobStatusQueued); uErr != nil {
			log.Error("Failed to requeue interrupted job", "error", uErr)
		}
		log.Info("Job interrupted, requeued")

	default:
		status := string(domain.JobStatusFailed)
		if errors.Is(err, enrichment.ErrDeferred) {
			status = "deferred"
			log.Warn("Job deferred", "error", err)
		} else {
			log.Error("Job failed", "error", err)
		}
		if uErr := w.store.UpdateJobError(writeCtx, job.ID, err.Error()); uErr != nil {
			log.Error("Failed to record job error", "error", uErr)
		}
		metrics.RecordJob(string(job.Type), status, time.Since(start))
	}
}
