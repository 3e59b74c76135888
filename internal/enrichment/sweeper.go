package enrichment

import (
	"context"
	"strconv"
	"time"

	"github.com/cesargomez89/playledger/internal/constants"
	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/freshness"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/store"
)

// AlbumLister finds albums without a current metadata record.
type AlbumLister interface {
	ListAlbumsDueForEnrichment(ctx context.Context, source string, staleBefore time.Time, limit int) ([]*domain.Album, error)
}

var _ AlbumLister = (*store.DB)(nil)

// Enqueuer is implemented by *tasks.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType domain.JobType, sourceID string) (*domain.Job, error)
}

// Sweeper periodically queues lookups for unresolved and stale albums,
// including the ones a rate limit deferred.
type Sweeper struct {
	albums   AlbumLister
	queue    Enqueuer
	gate     *freshness.Gate
	logger   *logger.Logger
	interval time.Duration
	batch    int
}

func NewSweeper(albums AlbumLister, queue Enqueuer, gate *freshness.Gate, interval time.Duration, batch int, log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = constants.DefaultSweepInterval
	}
	if batch <= 0 {
		batch = constants.DefaultSweepBatch
	}
	if gate == nil {
		gate = freshness.NewGate(constants.DefaultMetadataStale)
	}
	if log == nil {
		log = logger.Default()
	}
	return &Sweeper{
		albums:   albums,
		queue:    queue,
		gate:     gate,
		logger:   log.WithComponent("enrichment-sweeper"),
		interval: interval,
		batch:    batch,
	}
}

// Sweep queues one batch and returns how many jobs it enqueued.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	albums, err := s.albums.ListAlbumsDueForEnrichment(ctx, constants.SourceMusicBrainzRelease, s.gate.StaleBefore(), s.batch)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, a := range albums {
		if _, err := s.queue.Enqueue(ctx, domain.JobTypeEnrichAlbum, strconv.FormatInt(a.ID, 10)); err != nil {
			s.logger.Warn("Failed to enqueue enrichment", "album_id", a.ID, "error", err)
			continue
		}
		queued++
	}
	if queued > 0 {
		s.logger.Info("Enrichment sweep queued albums", "queued", queued, "due", len(albums))
	}
	return queued, nil
}

// Serve implements suture.Service.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("Enrichment sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) String() string {
	return "enrichment-sweeper"
}
