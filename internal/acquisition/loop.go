// Package acquisition polls each user's recent plays, resolves them into the
// catalog, records them and queues enrichment for albums that need it.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/cesargomez89/playledger/internal/catalog"
	"github.com/cesargomez89/playledger/internal/constants"
	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/metrics"
	"github.com/cesargomez89/playledger/internal/plays"
	"github.com/cesargomez89/playledger/internal/spotify"
)

// ErrUnauthorized is returned when the user's credential was rejected and a
// forced refresh did not help. The cycle is skipped; polling continues.
var ErrUnauthorized = spotify.ErrUnauthorized

// Source is one user's streaming history.
type Source interface {
	RecentlyPlayed(ctx context.Context, limit int) ([]domain.Observation, error)
	RefreshCredential(ctx context.Context) error
}

// SourceFactory builds a Source from the user's stored credential.
type SourceFactory func(ctx context.Context, user *domain.User) Source

// SpotifySources adapts a spotify.Factory.
func SpotifySources(f *spotify.Factory) SourceFactory {
	return func(ctx context.Context, user *domain.User) Source {
		return f.ForUser(ctx, user)
	}
}

type Resolver interface {
	ResolveAlbum(ctx context.Context, obs domain.ObservedAlbum) (catalog.Resolved, error)
	ResolveTrack(ctx context.Context, obs domain.ObservedTrack, albumID int64) (catalog.Resolved, error)
}

type Recorder interface {
	RecordPlay(ctx context.Context, userID, trackID int64, listenedAt time.Time, popularity *int) (plays.Result, error)
}

// Enricher reports whether an album needs a metadata lookup.
type Enricher interface {
	IsDue(ctx context.Context, albumID int64) (bool, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, jobType domain.JobType, sourceID string) (*domain.Job, error)
}

var (
	_ Resolver = (*catalog.Resolver)(nil)
	_ Recorder = (*plays.Recorder)(nil)
)

// CycleReport summarizes one user's cycle.
type CycleReport struct {
	CycleID      string
	UserID       int64
	Fetched      int
	Recorded     int
	Duplicates   int
	Failed       int
	AlbumsQueued int
	Latest       time.Time
}

type Loop struct {
	sources  SourceFactory
	resolver Resolver
	recorder Recorder
	enricher Enricher
	queue    Enqueuer
	limit    int
	logger   *logger.Logger
}

func NewLoop(sources SourceFactory, resolver Resolver, recorder Recorder, enricher Enricher, queue Enqueuer, limit int, log *logger.Logger) *Loop {
	if limit <= 0 || limit > constants.DefaultRecentlyPlayedMax {
		limit = constants.DefaultPollLimit
	}
	if log == nil {
		log = logger.Default()
	}
	return &Loop{
		sources:  sources,
		resolver: resolver,
		recorder: recorder,
		enricher: enricher,
		queue:    queue,
		limit:    limit,
		logger:   log.WithComponent("acquisition"),
	}
}

// RunCycle fetches the user's recent window and processes it in source order.
// One event failing never stops the rest of the batch.
func (l *Loop) RunCycle(ctx context.Context, user *domain.User) (CycleReport, error) {
	report := CycleReport{CycleID: uuid.New().String(), UserID: user.ID}
	log := l.logger.WithUser(user.ID, user.DisplayName).With("cycle_id", report.CycleID)

	src := l.sources(ctx, user)
	events, err := l.fetch(ctx, src, log)
	if err != nil {
		return report, err
	}
	report.Fetched = len(events)

	var albums []int64
	seen := make(map[int64]bool)
	for i, ev := range events {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		albumID, created, err := l.process(ctx, user, ev, &report)
		if err != nil {
			report.Failed++
			metrics.ObservationsProcessed.WithLabelValues("failed").Inc()
			log.Warn("Failed to process play",
				"index", i,
				"played_at", ev.PlayedAt,
				"album_key", fmt.Sprintf("%+v", catalog.AlbumKeyFor(ev.Album)),
				"track", ev.Track.Title,
				"kind", catalog.Classify(err).String(),
				"error", err,
			)
		} else if ev.PlayedAt.After(report.Latest) {
			report.Latest = ev.PlayedAt
		}

		// A resolved album is queued even when its track or play failed.
		if albumID == 0 || seen[albumID] {
			continue
		}
		seen[albumID] = true
		if created || l.isDue(ctx, albumID, log) {
			albums = append(albums, albumID)
		}
	}

	for _, id := range albums {
		if _, err := l.queue.Enqueue(ctx, domain.JobTypeEnrichAlbum, strconv.FormatInt(id, 10)); err != nil {
			log.Warn("Failed to enqueue enrichment", "album_id", id, "error", err)
			continue
		}
		report.AlbumsQueued++
	}

	log.Info("Cycle finished",
		"fetched", report.Fetched,
		"recorded", report.Recorded,
		"duplicates", report.Duplicates,
		"failed", report.Failed,
		"albums_queued", report.AlbumsQueued,
	)
	return report, nil
}

// fetch reads the window, forcing one credential refresh on an auth failure.
func (l *Loop) fetch(ctx context.Context, src Source, log *logger.Logger) ([]domain.Observation, error) {
	events, err := src.RecentlyPlayed(ctx, l.limit)
	if !errors.Is(err, ErrUnauthorized) {
		return events, err
	}

	log.Info("Credential rejected, refreshing", "error", err)
	if rErr := src.RefreshCredential(ctx); rErr != nil {
		return nil, fmt.Errorf("%w: refresh failed: %w", ErrUnauthorized, errors.Join(err, rErr))
	}
	return src.RecentlyPlayed(ctx, l.limit)
}

// process returns the album id whenever the album resolved, even on error.
func (l *Loop) process(ctx context.Context, user *domain.User, ev domain.Observation, report *CycleReport) (int64, bool, error) {
	if ev.PlayedAt.IsZero() {
		return 0, false, fmt.Errorf("%w: missing play timestamp", catalog.ErrInvalidObservation)
	}

	album, err := l.resolver.ResolveAlbum(ctx, ev.Album)
	if err != nil {
		return 0, false, fmt.Errorf("resolve album: %w", err)
	}
	track, err := l.resolver.ResolveTrack(ctx, ev.Track, album.ID)
	if err != nil {
		return album.ID, album.Created, fmt.Errorf("resolve track: %w", err)
	}

	res, err := l.recorder.RecordPlay(ctx, user.ID, track.ID, ev.PlayedAt, ev.Popularity)
	if err != nil {
		return album.ID, album.Created, fmt.Errorf("record play: %w", err)
	}
	if res.Created {
		report.Recorded++
		metrics.ObservationsProcessed.WithLabelValues("recorded").Inc()
	} else {
		report.Duplicates++
		metrics.ObservationsProcessed.WithLabelValues("duplicate").Inc()
	}
	return album.ID, album.Created, nil
}

func (l *Loop) isDue(ctx context.Context, albumID int64, log *logger.Logger) bool {
	if l.enricher == nil {
		return false
	}
	due, err := l.enricher.IsDue(ctx, albumID)
	if err != nil {
		log.Warn("Failed to check enrichment state", "album_id", albumID, "error", err)
		return false
	}
	return due
}
