package store

import (
	"context"
	"fmt"

	"github.com/cesargomez89/playledger/internal/domain"
)

// InsertPlay creates the row and sets play.ID. Re-inserting the same
// (user, track, listened_at) yields ErrConflict.
func (db *DB) InsertPlay(ctx context.Context, play *domain.Play) error {
	query := `INSERT INTO plays (user_id, track_id, listened_at, popularity)
		VALUES (:user_id, :track_id, :listened_at, :popularity)
		RETURNING id`

	id, err := insertReturningID(ctx, db.DB, query, play)
	if err != nil {
		return fmt.Errorf("failed to insert play: %w", err)
	}
	play.ID = id
	return nil
}

func (db *DB) GetPlay(ctx context.Context, userID, trackID, listenedAtMS int64) (*domain.Play, error) {
	query := `SELECT id, user_id, track_id, listened_at, popularity FROM plays
		WHERE user_id = ? AND track_id = ? AND listened_at = ?`

	var play domain.Play
	if err := db.GetContext(ctx, &play, query, userID, trackID, listenedAtMS); err != nil {
		return nil, mapError(err)
	}
	return &play, nil
}

func (db *DB) ListPlays(ctx context.Context, userID int64, limit int) ([]*domain.Play, error) {
	query := `SELECT id, user_id, track_id, listened_at, popularity FROM plays
		WHERE user_id = ? ORDER BY listened_at DESC LIMIT ?`

	var plays []*domain.Play
	err := db.SelectContext(ctx, &plays, query, userID, limit)
	return plays, err
}

func (db *DB) CountPlays(ctx context.Context, userID int64) (int, error) {
	var n int
	err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM plays WHERE user_id = ?`, userID)
	return n, err
}
