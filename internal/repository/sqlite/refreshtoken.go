package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/auth-backend/internal/apperror"
	"github.com/sakif/auth-backend/internal/model"
	"github.com/sakif/auth-backend/internal/repository"
)

// RefreshTokenDB is the refresh_tokens table store. Obtain one via
// DB.RefreshTokens.
type RefreshTokenDB struct {
	conn *sql.DB
}

// compile-time check that *RefreshTokenDB implements
// repository.RefreshTokenRepository
var _ repository.RefreshTokenRepository = (*RefreshTokenDB)(nil)

// Create inserts a new refresh-token record, assigning ID and CreatedAt.
func (r *RefreshTokenDB) Create(ctx context.Context, token *model.RefreshToken) error {
	token.ID = xid.New().String()
	token.CreatedAt = time.Now().UTC()

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting refresh token for user %s: %w", token.UserID, err)
	}

	return nil
}

// GetLatestByUserID returns the newest refresh-token record for the user.
// The service keeps at most one record per user, but ordering by recency keeps
// the query correct on databases that predate that policy.
func (r *RefreshTokenDB) GetLatestByUserID(ctx context.Context, userID string) (*model.RefreshToken, error) {
	var t model.RefreshToken

	err := r.conn.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, created_at
		 FROM refresh_tokens
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		userID,
	).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.ExpiresAt,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("refresh token", userID)
		}
		return nil, fmt.Errorf("sqlite: getting refresh token for user %s: %w", userID, err)
	}

	return &t, nil
}

// Consume deletes the record with the given ID and reports whether this call
// removed it.
//
// The delete is conditional on the row still existing, so two requests racing
// to rotate the same token cannot both succeed: SQLite serializes the writes
// and the loser's delete affects zero rows.
func (r *RefreshTokenDB) Consume(ctx context.Context, id string) (bool, error) {
	res, err := r.conn.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("sqlite: consuming refresh token %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: consuming refresh token %s: %w", id, err)
	}
	return affected == 1, nil
}

// DeleteByUserID removes all refresh-token records for the user.
func (r *RefreshTokenDB) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	res, err := r.conn.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting refresh tokens for user %s: %w", userID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting refresh tokens for user %s: %w", userID, err)
	}
	return affected, nil
}
