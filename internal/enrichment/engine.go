// Package enrichment attaches MusicBrainz release identifiers to catalog
// albums. Lookups are gated by a staleness interval, filtered by track count
// and retried once after a randomized backoff when the service rate limits.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cesargomez89/playledger/internal/constants"
	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/freshness"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/metrics"
	"github.com/cesargomez89/playledger/internal/musicbrainz"
	"github.com/cesargomez89/playledger/internal/store"
)

// Store is the part of the catalog the engine reads and writes.
type Store interface {
	GetAlbum(ctx context.Context, id int64) (*domain.Album, error)
	GetAlbumMetadata(ctx context.Context, albumID int64, source string) (*domain.AlbumMetadata, error)
	UpsertAlbumMetadata(ctx context.Context, meta *domain.AlbumMetadata) error
	ListTracksMissingRecording(ctx context.Context, albumID int64) ([]*domain.Track, error)
	BackfillTrackRecording(ctx context.Context, id int64, recordingMBID, genre string) error
}

var _ Store = (*store.DB)(nil)

// ReleaseSearcher is implemented by *musicbrainz.Client.
type ReleaseSearcher interface {
	SearchReleases(ctx context.Context, q musicbrainz.ReleaseQuery) ([]musicbrainz.Release, error)
	LookupBarcode(ctx context.Context, barcode string) ([]musicbrainz.Release, error)
}

// RecordingLookup is implemented by *musicbrainz.CachedClient.
type RecordingLookup interface {
	GetRecordingByISRC(ctx context.Context, isrc, albumTitle string) (*musicbrainz.RecordingMetadata, error)
}

// CoverArtTrigger schedules a cover-art download for a matched release.
type CoverArtTrigger interface {
	TriggerCoverArt(ctx context.Context, releaseMBID string) error
}

type Options struct {
	Gate           *freshness.Gate
	BackoffCeiling time.Duration
	Recordings     RecordingLookup
	CoverArt       CoverArtTrigger
	Logger         *logger.Logger
}

type Engine struct {
	store      Store
	releases   ReleaseSearcher
	recordings RecordingLookup
	coverArt   CoverArtTrigger
	gate       *freshness.Gate
	ceiling    time.Duration
	logger     *logger.Logger

	// replaced in tests
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(ceiling time.Duration) time.Duration

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func NewEngine(s Store, releases ReleaseSearcher, opts Options) *Engine {
	if opts.Gate == nil {
		opts.Gate = freshness.NewGate(constants.DefaultMetadataStale)
	}
	if opts.BackoffCeiling < 0 {
		opts.BackoffCeiling = 0
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &Engine{
		store:      s,
		releases:   releases,
		recordings: opts.Recordings,
		coverArt:   opts.CoverArt,
		gate:       opts.Gate,
		ceiling:    opts.BackoffCeiling,
		logger:     opts.Logger.WithComponent("enrichment"),
		sleep:      sleepContext,
		jitter:     randomDelay,
		inFlight:   make(map[int64]struct{}),
	}
}

// State derives the album's state from its metadata record and the staleness gate.
func (e *Engine) State(ctx context.Context, albumID int64) (State, error) {
	if e.isInFlight(albumID) {
		return StateLookupInFlight, nil
	}
	_, state, err := e.current(ctx, albumID)
	return state, err
}

// IsDue reports whether the album should be queued for a lookup.
func (e *Engine) IsDue(ctx context.Context, albumID int64) (bool, error) {
	state, err := e.State(ctx, albumID)
	if err != nil {
		return false, err
	}
	return state == StateUnresolved || state == StateStale, nil
}

func (e *Engine) current(ctx context.Context, albumID int64) (*domain.AlbumMetadata, State, error) {
	meta, err := e.store.GetAlbumMetadata(ctx, albumID, constants.SourceMusicBrainzRelease)
	if errors.Is(err, store.ErrNotFound) {
		return nil, StateUnresolved, nil
	}
	if err != nil {
		return nil, StateUnresolved, fmt.Errorf("failed to load album metadata: %w", err)
	}
	if e.gate.IsDue(meta.CheckedAt()) {
		return meta, StateStale, nil
	}
	return meta, StateFresh, nil
}

// EnrichAlbum looks the album up unless its record is fresh or another lookup
// for it is already running. A deferred outcome is returned with ErrDeferred.
func (e *Engine) EnrichAlbum(ctx context.Context, albumID int64) (Outcome, error) {
	if !e.acquire(albumID) {
		e.logger.Debug("Lookup already in flight", "album_id", albumID)
		metrics.EnrichmentOutcomes.WithLabelValues(OutcomeSkipped.String()).Inc()
		return OutcomeSkipped, nil
	}
	defer e.release(albumID)

	outcome, err := e.enrich(ctx, albumID)
	label := outcome.String()
	if err != nil && !errors.Is(err, ErrDeferred) {
		label = "error"
	}
	metrics.EnrichmentOutcomes.WithLabelValues(label).Inc()
	return outcome, err
}

func (e *Engine) enrich(ctx context.Context, albumID int64) (Outcome, error) {
	prev, state, err := e.current(ctx, albumID)
	if err != nil {
		return OutcomeDeferred, err
	}
	if state == StateFresh {
		return OutcomeSkipped, nil
	}

	album, err := e.store.GetAlbum(ctx, albumID)
	if err != nil {
		return OutcomeDeferred, fmt.Errorf("failed to load album %d: %w", albumID, err)
	}
	log := e.logger.WithAlbum(album.ID, album.Title).With("state", state.String())

	match, err := e.lookup(ctx, album, log)
	if err != nil {
		if errors.Is(err, ErrDeferred) {
			log.Warn("Lookup deferred after repeated rate limiting")
		} else {
			log.Error("Metadata service unreachable", "error", err)
		}
		return OutcomeDeferred, err
	}

	meta := &domain.AlbumMetadata{
		AlbumID:     album.ID,
		Source:      constants.SourceMusicBrainzRelease,
		CheckedAtMS: e.gate.MarkRefreshed().UnixMilli(),
	}

	if match == nil {
		// A previous match survives a re-check that finds nothing.
		if prev != nil && prev.Matched {
			meta.ExternalID = prev.ExternalID
			meta.Matched = true
			meta.CandidateTrackCount = prev.CandidateTrackCount
		}
		if err := e.store.UpsertAlbumMetadata(ctx, meta); err != nil {
			return OutcomeDeferred, err
		}
		log.Info("No matching release", "track_count", album.TrackCount)
		return OutcomeNoMatch, nil
	}

	meta.ExternalID = &match.ID
	meta.Matched = true
	meta.CandidateTrackCount = match.TrackCount
	if err := e.store.UpsertAlbumMetadata(ctx, meta); err != nil {
		return OutcomeDeferred, err
	}
	log.Info("Release matched", "release_mbid", match.ID, "track_count", match.TrackCount)

	if e.coverArt != nil {
		if err := e.coverArt.TriggerCoverArt(ctx, match.ID); err != nil {
			log.Warn("Failed to schedule cover art", "release_mbid", match.ID, "error", err)
		}
	}
	e.backfillRecordings(ctx, album, log)
	return OutcomeMatched, nil
}

// lookup runs the title and artist search, then the barcode search when the
// first yields no candidate with the album's track count.
func (e *Engine) lookup(ctx context.Context, album *domain.Album, log *logger.Logger) (*musicbrainz.Release, error) {
	q := musicbrainz.ReleaseQuery{Title: SearchTitle(album.Title), Artists: album.Artists}
	candidates, err := e.withBackoff(ctx, log, func() ([]musicbrainz.Release, error) {
		return e.releases.SearchReleases(ctx, q)
	})
	if err != nil && !errors.Is(err, musicbrainz.ErrMalformedResponse) {
		return nil, err
	}
	if err != nil {
		log.Warn("Malformed search response", "query", q.String(), "error", err)
	}
	// A known track count must match exactly. Only an album whose count was
	// never observed (0) takes the first candidate, on both search paths.
	if match := FilterByTrackCount(candidates, album.TrackCount); match != nil {
		return match, nil
	}
	log.Debug("No primary candidate survived the track-count filter", "query", q.String(), "candidates", len(candidates))

	barcode := album.Barcode()
	if barcode == "" {
		return nil, nil
	}
	candidates, err = e.withBackoff(ctx, log, func() ([]musicbrainz.Release, error) {
		return e.releases.LookupBarcode(ctx, barcode)
	})
	if errors.Is(err, musicbrainz.ErrMalformedResponse) {
		log.Warn("Malformed barcode response", "barcode", barcode, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return FilterByTrackCount(candidates, album.TrackCount), nil
}

// withBackoff calls fn, and once more after a random pause if it was rate limited.
func (e *Engine) withBackoff(ctx context.Context, log *logger.Logger, fn func() ([]musicbrainz.Release, error)) ([]musicbrainz.Release, error) {
	res, err := fn()
	if !errors.Is(err, musicbrainz.ErrRateLimited) {
		return res, err
	}

	delay := e.jitter(e.ceiling)
	metrics.EnrichmentBackoffs.Inc()
	log.Debug("Rate limited, backing off", "delay", delay)
	if err := e.sleep(ctx, delay); err != nil {
		return nil, err
	}

	res, err = fn()
	if errors.Is(err, musicbrainz.ErrRateLimited) {
		return nil, fmt.Errorf("%w: %w", ErrDeferred, err)
	}
	return res, err
}

// backfillRecordings fills recording ids and genres for tracks with an ISRC.
// It stops at the first rate limit.
func (e *Engine) backfillRecordings(ctx context.Context, album *domain.Album, log *logger.Logger) {
	if e.recordings == nil {
		return
	}
	tracks, err := e.store.ListTracksMissingRecording(ctx, album.ID)
	if err != nil {
		log.Warn("Failed to list tracks for recording backfill", "error", err)
		return
	}

	filled := 0
	for _, t := range tracks {
		meta, err := e.recordings.GetRecordingByISRC(ctx, t.ISRC, album.Title)
		if errors.Is(err, musicbrainz.ErrRateLimited) {
			log.Info("Recording backfill stopped by rate limit", "filled", filled, "remaining", len(tracks)-filled)
			return
		}
		if err != nil {
			log.Debug("Recording lookup failed", "track_id", t.ID, "isrc", t.ISRC, "error", err)
			continue
		}
		if meta == nil || meta.RecordingID == "" {
			continue
		}

		genre := meta.Genre
		if genre != "" && meta.SubGenre != "" {
			genre = meta.Genre + "; " + meta.SubGenre
		}
		if err := e.store.BackfillTrackRecording(ctx, t.ID, meta.RecordingID, genre); err != nil {
			log.Warn("Failed to store recording", "track_id", t.ID, "error", err)
			continue
		}
		filled++
	}
	if filled > 0 {
		log.Debug("Recordings backfilled", "filled", filled)
	}
}

// FilterByTrackCount returns the first candidate, in service order, whose
// track count equals trackCount. An unknown count (0) accepts the first candidate.
func FilterByTrackCount(candidates []musicbrainz.Release, trackCount int) *musicbrainz.Release {
	for i := range candidates {
		if trackCount == 0 || candidates[i].TrackCount == trackCount {
			return &candidates[i]
		}
	}
	return nil
}

var qualifierPattern = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]\s*`)

// SearchTitle strips parenthetical and bracketed qualifiers such as
// "(Deluxe Edition)" or "[Remastered]". A title made only of qualifiers is kept.
func SearchTitle(title string) string {
	stripped := strings.Join(strings.Fields(qualifierPattern.ReplaceAllString(title, " ")), " ")
	if stripped == "" {
		return strings.TrimSpace(title)
	}
	return stripped
}

func (e *Engine) acquire(albumID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.inFlight[albumID]; ok {
		return false
	}
	e.inFlight[albumID] = struct{}{}
	return true
}

func (e *Engine) release(albumID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, albumID)
}

func (e *Engine) isInFlight(albumID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inFlight[albumID]
	return ok
}

func randomDelay(ceiling time.Duration) time.Duration {
	if ceiling <= 0 {
		return 0
	}
	return rand.N(ceiling + 1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
