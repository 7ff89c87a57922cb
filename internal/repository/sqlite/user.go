package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/auth-backend/internal/apperror"
	"github.com/sakif/auth-backend/internal/model"
	"github.com/sakif/auth-backend/internal/repository"
)

// UserDB is the users table store. Obtain one via DB.Users.
type UserDB struct {
	conn *sql.DB
}

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// Create inserts a new user. The ID and timestamps are assigned here; the
// caller's struct is updated in place. Two concurrent registrations of the
// same username can both pass the service's pre-check, so the UNIQUE
// constraint violation on insert maps to ErrConflict.
func (d *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, email, name, biography, profile, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.Email,
		user.Name,
		user.Biography,
		user.Profile,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("this username is taken")
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	return nil
}

// GetByUsername retrieves a user by normalized username.
// Returns apperror.ErrNotFound if no such user exists.
func (d *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return d.getUser(ctx, `username = ?`, username)
}

// GetByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no such user exists.
func (d *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return d.getUser(ctx, `id = ?`, id)
}

func (d *UserDB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User

	err := d.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash, email, name, biography, profile, created_at, updated_at
		 FROM users WHERE `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Email,
		&u.Name,
		&u.Biography,
		&u.Profile,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user (%s): %w", where, err)
	}

	return &u, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
// modernc.org/sqlite wraps the SQLITE_CONSTRAINT_UNIQUE result code in its own
// error type; matching the message avoids importing driver internals.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
