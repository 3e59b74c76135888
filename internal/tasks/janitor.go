package tasks

import (
	"context"
	"time"

	"github.com/cesargomez89/playledger/internal/constants"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/store"
)

type JanitorStore interface {
	ClearFinishedJobs(ctx context.Context, olderThan time.Time) error
	PurgeExpiredCache(ctx context.Context) (int64, error)
}

var _ JanitorStore = (*store.DB)(nil)

// Janitor prunes finished jobs past their retention and expired cache rows.
type Janitor struct {
	store     JanitorStore
	logger    *logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewJanitor(s JanitorStore, log *logger.Logger) *Janitor {
	if log == nil {
		log = logger.Default()
	}
	return &Janitor{
		store:     s,
		logger:    log.WithComponent("janitor"),
		interval:  constants.JanitorInterval,
		retention: constants.JobRetention,
		now:       time.Now,
	}
}

func (j *Janitor) RunOnce(ctx context.Context) {
	if err := j.store.ClearFinishedJobs(ctx, j.now().Add(-j.retention)); err != nil {
		j.logger.Warn("Failed to clear finished jobs", "error", err)
	}
	n, err := j.store.PurgeExpiredCache(ctx)
	if err != nil {
		j.logger.Warn("Failed to purge expired cache", "error", err)
		return
	}
	if n > 0 {
		j.logger.Debug("Expired cache entries purged", "count", n)
	}
}

// Serve implements suture.Service.
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		j.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (j *Janitor) String() string {
	return "janitor"
}
