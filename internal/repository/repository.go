// Package repository defines the storage interfaces the service layer depends
// on. The sqlite subpackage provides the concrete implementation.
package repository

import (
	"context"

	"github.com/sakif/auth-backend/internal/model"
)

type UserRepository interface {
	// Create inserts a new user, assigning ID and timestamps.
	Create(ctx context.Context, user *model.User) error
	// GetByUsername returns the user with the given normalized username, or
	// apperror.ErrNotFound.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// GetByID returns the user with the given ID, or apperror.ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type RefreshTokenRepository interface {
	// Create inserts a new refresh-token record, assigning ID and CreatedAt.
	Create(ctx context.Context, token *model.RefreshToken) error
	// GetLatestByUserID returns the newest record for the user, or
	// apperror.ErrNotFound if the user has none.
	GetLatestByUserID(ctx context.Context, userID string) (*model.RefreshToken, error)
	// Consume deletes the record with the given ID and reports whether this
	// call removed it. (false, nil) means another request got there first;
	// at most one concurrent caller sees true for a given ID.
	Consume(ctx context.Context, id string) (bool, error)
	// DeleteByUserID removes all records for the user and returns the count.
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}
