package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cesargomez89/playledger/internal/domain"
)

const userColumns = `id, display_name, spotify_user_id, access_token, refresh_token, token_type,
	token_expiry, active, created_at, updated_at`

func (db *DB) CreateUser(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	user.TokenExpiry = user.TokenExpiry.UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `INSERT INTO users (
		display_name, spotify_user_id, access_token, refresh_token, token_type, token_expiry, active, created_at, updated_at
	) VALUES (
		:display_name, :spotify_user_id, :access_token, :refresh_token, :token_type, :token_expiry, :active, :created_at, :updated_at
	) RETURNING id`

	id, err := insertReturningID(ctx, db.DB, query, user)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id
	return nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	if err := db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

func (db *DB) ListActiveUsers(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	err := db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users WHERE active = 1 ORDER BY id`)
	return users, err
}

// UpdateUserToken stores a refreshed OAuth token.
func (db *DB) UpdateUserToken(ctx context.Context, id int64, accessToken, refreshToken, tokenType string, expiry time.Time) error {
	query := `UPDATE users SET
		access_token = ?,
		refresh_token = CASE WHEN ? = '' THEN refresh_token ELSE ? END,
		token_type = ?, token_expiry = ?, updated_at = ?
		WHERE id = ?`
	_, err := db.ExecContext(ctx, query, accessToken, refreshToken, refreshToken, tokenType, expiry.UTC(), time.Now().UTC(), id)
	return err
}

func (db *DB) SetUserActive(ctx context.Context, id int64, active bool) error {
	res, err := db.ExecContext(ctx, `UPDATE users SET active = ?, updated_at = ? WHERE id = ?`, active, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
