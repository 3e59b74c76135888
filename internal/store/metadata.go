package store

import (
	"context"
	"fmt"

	"github.com/cesargomez89/playledger/internal/domain"
)

func (db *DB) GetAlbumMetadata(ctx context.Context, albumID int64, source string) (*domain.AlbumMetadata, error) {
	query := `SELECT id, album_id, source, external_id, matched, candidate_track_count, checked_at
		FROM album_metadata WHERE album_id = ? AND source = ?`

	var meta domain.AlbumMetadata
	if err := db.GetContext(ctx, &meta, query, albumID, source); err != nil {
		return nil, mapError(err)
	}
	return &meta, nil
}

// UpsertAlbumMetadata replaces the current association for (album, source).
func (db *DB) UpsertAlbumMetadata(ctx context.Context, meta *domain.AlbumMetadata) error {
	query := `INSERT INTO album_metadata (album_id, source, external_id, matched, candidate_track_count, checked_at)
		VALUES (:album_id, :source, :external_id, :matched, :candidate_track_count, :checked_at)
		ON CONFLICT(album_id, source) DO UPDATE SET
			external_id = excluded.external_id,
			matched = excluded.matched,
			candidate_track_count = excluded.candidate_track_count,
			checked_at = excluded.checked_at
		RETURNING id`

	id, err := insertReturningID(ctx, db.DB, query, meta)
	if err != nil {
		return fmt.Errorf("failed to upsert album metadata: %w", err)
	}
	meta.ID = id
	return nil
}
