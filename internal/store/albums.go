package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/playledger/internal/domain"
)

const albumColumns = `id, title, norm_title, type, artists, norm_artists,
	release_year, release_month, release_day, release_precision,
	track_count, genres, image_url, spotify_id, upc, ean, created_at, updated_at`

// FindAlbums returns every album row matching the identity key, oldest first.
func (db *DB) FindAlbums(ctx context.Context, key domain.AlbumKey) ([]*domain.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums
		WHERE norm_title = ? AND norm_artists = ?
		AND release_year = ? AND release_month = ? AND release_day = ?
		AND spotify_id = ?
		ORDER BY id ASC`

	var albums []*domain.Album
	err := db.SelectContext(ctx, &albums, query,
		key.Title, domain.StringSlice(key.Artists),
		key.Year, key.Month, key.Day, key.SpotifyID)
	if err != nil {
		return nil, fmt.Errorf("failed to find albums: %w", err)
	}
	return albums, nil
}

// InsertAlbum creates the row and sets album.ID. A concurrent insert of the
// same identity key yields ErrConflict.
func (db *DB) InsertAlbum(ctx context.Context, album *domain.Album) error {
	now := time.Now().UTC()
	album.CreatedAt = now
	album.UpdatedAt = now

	query := `INSERT INTO albums (
		title, norm_title, type, artists, norm_artists,
		release_year, release_month, release_day, release_precision,
		track_count, genres, image_url, spotify_id, upc, ean, created_at, updated_at
	) VALUES (
		:title, :norm_title, :type, :artists, :norm_artists,
		:release_year, :release_month, :release_day, :release_precision,
		:track_count, :genres, :image_url, :spotify_id, :upc, :ean, :created_at, :updated_at
	) RETURNING id`

	id, err := insertReturningID(ctx, db.DB, query, album)
	if err != nil {
		return fmt.Errorf("failed to insert album: %w", err)
	}
	album.ID = id
	return nil
}

func (db *DB) GetAlbum(ctx context.Context, id int64) (*domain.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums WHERE id = ?`

	var album domain.Album
	if err := db.GetContext(ctx, &album, query, id); err != nil {
		return nil, mapError(err)
	}
	return &album, nil
}

// BackfillAlbumExternalIDs fills barcode columns that are still empty.
func (db *DB) BackfillAlbumExternalIDs(ctx context.Context, id int64, upc, ean string) error {
	query := `UPDATE albums SET
		upc = CASE WHEN upc = '' THEN ? ELSE upc END,
		ean = CASE WHEN ean = '' THEN ? ELSE ean END,
		updated_at = ?
		WHERE id = ? AND ((upc = '' AND ? != '') OR (ean = '' AND ? != ''))`

	_, err := db.ExecContext(ctx, query, upc, ean, time.Now().UTC(), id, upc, ean)
	return err
}

// ListAlbumsDueForEnrichment returns albums with no metadata record for the
// source, or whose record was checked before staleBefore.
func (db *DB) ListAlbumsDueForEnrichment(ctx context.Context, source string, staleBefore time.Time, limit int) ([]*domain.Album, error) {
	query := `SELECT a.id, a.title, a.norm_title, a.type, a.artists, a.norm_artists,
		a.release_year, a.release_month, a.release_day, a.release_precision,
		a.track_count, a.genres, a.image_url, a.spotify_id, a.upc, a.ean, a.created_at, a.updated_at
		FROM albums a
		LEFT JOIN album_metadata m ON m.album_id = a.id AND m.source = ?
		WHERE m.id IS NULL OR m.checked_at < ?
		ORDER BY COALESCE(m.checked_at, 0) ASC, a.id ASC
		LIMIT ?`

	var albums []*domain.Album
	if err := db.SelectContext(ctx, &albums, query, source, staleBefore.UnixMilli(), limit); err != nil {
		return nil, fmt.Errorf("failed to list albums due for enrichment: %w", err)
	}
	return albums, nil
}

func (db *DB) CountAlbums(ctx context.Context) (int, error) {
	var n int
	err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM albums`)
	return n, err
}

// insertReturningID runs a named INSERT ... RETURNING id.
func insertReturningID(ctx context.Context, ext sqlx.ExtContext, query string, arg interface{}) (int64, error) {
	rows, err := sqlx.NamedQueryContext(ctx, ext, query, arg)
	if err != nil {
		return 0, mapError(err)
	}
	defer rows.Close() //nolint:errcheck // deferred cleanup

	if rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan returned id: %w", err)
		}
		return id, nil
	}
	if err := rows.Err(); err != nil {
		return 0, mapError(err)
	}
	return 0, ErrNoRowReturned
}
