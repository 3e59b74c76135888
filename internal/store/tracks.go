package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cesargomez89/playledger/internal/domain"
)

const trackColumns = `id, album_id, title, norm_title, artists, norm_artists,
	duration_ms, disc_number, track_number, isrc, spotify_id, recording_mbid, genre,
	created_at, updated_at`

// FindTracks returns every track row matching the identity key, oldest first.
func (db *DB) FindTracks(ctx context.Context, key domain.TrackKey) ([]*domain.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks
		WHERE album_id = ? AND norm_title = ? AND norm_artists = ?
		AND duration_ms = ? AND isrc = ?
		ORDER BY id ASC`

	var tracks []*domain.Track
	err := db.SelectContext(ctx, &tracks, query,
		key.AlbumID, key.Title, domain.StringSlice(key.Artists), key.DurationMS, key.ISRC)
	if err != nil {
		return nil, fmt.Errorf("failed to find tracks: %w", err)
	}
	return tracks, nil
}

// InsertTrack creates the row and sets track.ID. A concurrent insert of the
// same identity key yields ErrConflict.
func (db *DB) InsertTrack(ctx context.Context, track *domain.Track) error {
	now := time.Now().UTC()
	track.CreatedAt = now
	track.UpdatedAt = now

	query := `INSERT INTO tracks (
		album_id, title, norm_title, artists, norm_artists,
		duration_ms, disc_number, track_number, isrc, spotify_id, recording_mbid, genre,
		created_at, updated_at
	) VALUES (
		:album_id, :title, :norm_title, :artists, :norm_artists,
		:duration_ms, :disc_number, :track_number, :isrc, :spotify_id, :recording_mbid, :genre,
		:created_at, :updated_at
	) RETURNING id`

	id, err := insertReturningID(ctx, db.DB, query, track)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	track.ID = id
	return nil
}

func (db *DB) GetTrack(ctx context.Context, id int64) (*domain.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`

	var track domain.Track
	if err := db.GetContext(ctx, &track, query, id); err != nil {
		return nil, mapError(err)
	}
	return &track, nil
}

// ListTracksMissingRecording returns the album's tracks that carry an ISRC
// but no MusicBrainz recording id yet.
func (db *DB) ListTracksMissingRecording(ctx context.Context, albumID int64) ([]*domain.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks
		WHERE album_id = ? AND isrc != '' AND recording_mbid = ''
		ORDER BY disc_number, track_number, id`

	var tracks []*domain.Track
	if err := db.SelectContext(ctx, &tracks, query, albumID); err != nil {
		return nil, fmt.Errorf("failed to list tracks missing recording: %w", err)
	}
	return tracks, nil
}

// BackfillTrackRecording sets the recording id, and the genre when none is stored.
func (db *DB) BackfillTrackRecording(ctx context.Context, id int64, recordingMBID, genre string) error {
	query := `UPDATE tracks SET
		recording_mbid = ?,
		genre = CASE WHEN genre = '' THEN ? ELSE genre END,
		updated_at = ?
		WHERE id = ? AND recording_mbid = ''`

	_, err := db.ExecContext(ctx, query, recordingMBID, genre, time.Now().UTC(), id)
	return err
}

// BackfillTrackSpotifyID sets the streaming id when none is stored.
func (db *DB) BackfillTrackSpotifyID(ctx context.Context, id int64, spotifyID string) error {
	if spotifyID == "" {
		return nil
	}
	query := `UPDATE tracks SET spotify_id = ?, updated_at = ? WHERE id = ? AND spotify_id = ''`
	_, err := db.ExecContext(ctx, query, spotifyID, time.Now().UTC(), id)
	return err
}
