// Package catalog resolves observed albums and tracks into stable catalog
// rows. Unique indexes in the store are the only synchronization between
// concurrent resolvers: a losing insert sees a conflict and re-reads the winner.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/metrics"
	"github.com/cesargomez89/playledger/internal/store"
)

// Store is the subset of the relational store the resolver needs.
type Store interface {
	FindAlbums(ctx context.Context, key domain.AlbumKey) ([]*domain.Album, error)
	InsertAlbum(ctx context.Context, album *domain.Album) error
	BackfillAlbumExternalIDs(ctx context.Context, id int64, upc, ean string) error
	FindTracks(ctx context.Context, key domain.TrackKey) ([]*domain.Track, error)
	InsertTrack(ctx context.Context, track *domain.Track) error
	BackfillTrackSpotifyID(ctx context.Context, id int64, spotifyID string) error
}

var _ Store = (*store.DB)(nil)

// Resolved is the outcome of resolving one entity.
type Resolved struct {
	ID      int64
	Created bool
}

type Resolver struct {
	store  Store
	logger *logger.Logger
}

func NewResolver(s Store, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Default()
	}
	return &Resolver{store: s, logger: log.WithComponent("catalog")}
}

// ResolveAlbum returns the catalog id for the observed album, creating the
// row if no album has the same identity key.
func (r *Resolver) ResolveAlbum(ctx context.Context, obs domain.ObservedAlbum) (Resolved, error) {
	key := AlbumKeyFor(obs)
	if key.Title == "" {
		return Resolved{}, fmt.Errorf("%w: album has no title (spotify_id=%q)", ErrInvalidObservation, obs.SpotifyID)
	}

	existing, err := r.findAlbum(ctx, key)
	if err != nil {
		return Resolved{}, err
	}
	if existing != nil {
		r.backfillAlbum(ctx, existing, obs)
		metrics.CatalogResolutions.WithLabelValues("album", "found").Inc()
		return Resolved{ID: existing.ID}, nil
	}

	album := newAlbum(obs, key)
	err = r.store.InsertAlbum(ctx, album)
	switch {
	case err == nil:
		metrics.CatalogResolutions.WithLabelValues("album", "created").Inc()
		r.logger.Debug("Album created", "album_id", album.ID, "title", album.Title, "key", formatAlbumKey(key))
		return Resolved{ID: album.ID, Created: true}, nil

	case errors.Is(err, store.ErrConflict):
		// A concurrent resolver inserted the same key first.
		winner, findErr := r.findAlbum(ctx, key)
		if findErr != nil {
			return Resolved{}, findErr
		}
		if winner == nil {
			return Resolved{}, fmt.Errorf("%w: album insert conflicted but key %s matches no row", ErrStoreContract, formatAlbumKey(key))
		}
		metrics.CatalogResolutions.WithLabelValues("album", "conflict").Inc()
		return Resolved{ID: winner.ID}, nil

	case errors.Is(err, store.ErrNoRowReturned):
		return Resolved{}, fmt.Errorf("%w: album insert for key %s: %w", ErrStoreContract, formatAlbumKey(key), err)
	}
	return Resolved{}, fmt.Errorf("%w: insert album %s: %w", ErrTransient, formatAlbumKey(key), err)
}

// ResolveTrack returns the catalog id for the observed track on albumID,
// creating the row if absent.
func (r *Resolver) ResolveTrack(ctx context.Context, obs domain.ObservedTrack, albumID int64) (Resolved, error) {
	key := TrackKeyFor(obs, albumID)
	if key.Title == "" {
		return Resolved{}, fmt.Errorf("%w: track has no title (spotify_id=%q)", ErrInvalidObservation, obs.SpotifyID)
	}

	existing, err := r.findTrack(ctx, key)
	if err != nil {
		return Resolved{}, err
	}
	if existing != nil {
		if existing.SpotifyID == "" && obs.SpotifyID != "" {
			if bfErr := r.store.BackfillTrackSpotifyID(ctx, existing.ID, obs.SpotifyID); bfErr != nil {
				r.logger.Warn("Failed to backfill track spotify id", "track_id", existing.ID, "error", bfErr)
			}
		}
		metrics.CatalogResolutions.WithLabelValues("track", "found").Inc()
		return Resolved{ID: existing.ID}, nil
	}

	track := newTrack(obs, key)
	err = r.store.InsertTrack(ctx, track)
	switch {
	case err == nil:
		metrics.CatalogResolutions.WithLabelValues("track", "created").Inc()
		return Resolved{ID: track.ID, Created: true}, nil

	case errors.Is(err, store.ErrConflict):
		winner, findErr := r.findTrack(ctx, key)
		if findErr != nil {
			return Resolved{}, findErr
		}
		if winner == nil {
			return Resolved{}, fmt.Errorf("%w: track insert conflicted but key %s matches no row", ErrStoreContract, formatTrackKey(key))
		}
		metrics.CatalogResolutions.WithLabelValues("track", "conflict").Inc()
		return Resolved{ID: winner.ID}, nil

	case errors.Is(err, store.ErrNoRowReturned):
		return Resolved{}, fmt.Errorf("%w: track insert for key %s: %w", ErrStoreContract, formatTrackKey(key), err)
	}
	return Resolved{}, fmt.Errorf("%w: insert track %s: %w", ErrTransient, formatTrackKey(key), err)
}

func (r *Resolver) findAlbum(ctx context.Context, key domain.AlbumKey) (*domain.Album, error) {
	rows, err := r.store.FindAlbums(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: find album %s: %w", ErrTransient, formatAlbumKey(key), err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > 1 {
		metrics.CatalogAnomalies.WithLabelValues("album").Inc()
		r.logger.Warn("Catalog anomaly: multiple albums for one identity key",
			"key", formatAlbumKey(key), "ids", albumIDs(rows), "using", rows[0].ID)
	}
	return rows[0], nil
}

func (r *Resolver) findTrack(ctx context.Context, key domain.TrackKey) (*domain.Track, error) {
	rows, err := r.store.FindTracks(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: find track %s: %w", ErrTransient, formatTrackKey(key), err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > 1 {
		metrics.CatalogAnomalies.WithLabelValues("track").Inc()
		r.logger.Warn("Catalog anomaly: multiple tracks for one identity key",
			"key", formatTrackKey(key), "ids", trackIDs(rows), "using", rows[0].ID)
	}
	return rows[0], nil
}

func (r *Resolver) backfillAlbum(ctx context.Context, album *domain.Album, obs domain.ObservedAlbum) {
	upc, ean := "", ""
	if album.UPC == "" {
		upc = obs.UPC
	}
	if album.EAN == "" {
		ean = obs.EAN
	}
	if upc == "" && ean == "" {
		return
	}
	if err := r.store.BackfillAlbumExternalIDs(ctx, album.ID, upc, ean); err != nil {
		r.logger.Warn("Failed to backfill album barcodes", "album_id", album.ID, "error", err)
	}
}

func newAlbum(obs domain.ObservedAlbum, key domain.AlbumKey) *domain.Album {
	return &domain.Album{
		Title:            strings.TrimSpace(obs.Title),
		NormTitle:        key.Title,
		Type:             strings.ToLower(strings.TrimSpace(obs.Type)),
		Artists:          domain.StringSlice(obs.Artists),
		NormArtists:      domain.StringSlice(key.Artists),
		ReleaseYear:      key.Year,
		ReleaseMonth:     key.Month,
		ReleaseDay:       key.Day,
		ReleasePrecision: obs.ReleaseDatePrecision,
		TrackCount:       obs.TrackCount,
		Genres:           domain.StringSlice(obs.Genres),
		ImageURL:         obs.ImageURL,
		SpotifyID:        key.SpotifyID,
		UPC:              obs.UPC,
		EAN:              obs.EAN,
	}
}

func newTrack(obs domain.ObservedTrack, key domain.TrackKey) *domain.Track {
	return &domain.Track{
		AlbumID:     key.AlbumID,
		Title:       strings.TrimSpace(obs.Title),
		NormTitle:   key.Title,
		Artists:     domain.StringSlice(obs.Artists),
		NormArtists: domain.StringSlice(key.Artists),
		DurationMS:  key.DurationMS,
		DiscNumber:  obs.DiscNumber,
		TrackNumber: obs.TrackNumber,
		ISRC:        key.ISRC,
		SpotifyID:   obs.SpotifyID,
	}
}

func albumIDs(rows []*domain.Album) []int64 {
	ids := make([]int64, len(rows))
	for i, a := range rows {
		ids[i] = a.ID
	}
	return ids
}

func trackIDs(rows []*domain.Track) []int64 {
	ids := make([]int64, len(rows))
	for i, t := range rows {
		ids[i] = t.ID
	}
	return ids
}

func formatAlbumKey(k domain.AlbumKey) string {
	return fmt.Sprintf("{title=%q artists=%q date=%04d-%02d-%02d spotify_id=%q}",
		k.Title, k.Artists, k.Year, k.Month, k.Day, k.SpotifyID)
}

func formatTrackKey(k domain.TrackKey) string {
	return fmt.Sprintf("{album_id=%d title=%q artists=%q duration_ms=%d isrc=%q}",
		k.AlbumID, k.Title, k.Artists, k.DurationMS, k.ISRC)
}
