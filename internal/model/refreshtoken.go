package model

import "time"

// RefreshToken is the server-side record of an issued refresh token.
//
// TokenHash is a bcrypt hash of the token string handed to the client; the
// plaintext token is never persisted. A record is single-use: it is deleted
// when consumed during rotation, when found expired, or on logout. The service
// keeps at most one record per user (single active session).
type RefreshToken struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// Expired reports whether the record's expiry has passed at the given time.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
