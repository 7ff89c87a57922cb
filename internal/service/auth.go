// Package service holds the authentication business logic. It sits between
// the HTTP handlers and the repositories/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (rules) → UserRepository / RefreshTokenRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/auth-backend/internal/apperror"
	"github.com/sakif/auth-backend/internal/auth"
	"github.com/sakif/auth-backend/internal/model"
	"github.com/sakif/auth-backend/internal/repository"
	"github.com/sakif/auth-backend/internal/validate"
)

// AuthService orchestrates registration, login, refresh rotation and logout.
type AuthService struct {
	users     repository.UserRepository
	tokens    repository.RefreshTokenRepository
	jwt       *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	jwt *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		jwt:       jwt,
		passwords: passwords,
		logger:    logger,
		now:       time.Now,
	}
}

// TokenPair is returned by Login and Refresh. ExpiresIn is the access-token
// lifetime in whole seconds.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Register creates a new account.
//
// Input must already be validated and normalized (validate.Register);
// profileURL is the public URL of the stored profile image, or "" when none
// was uploaded. Returns apperror.ErrConflict when the username is taken, both
// from the explicit pre-check and from the UNIQUE constraint when two
// registrations race past the check.
func (s *AuthService) Register(ctx context.Context, in validate.RegisterInput, profileURL string) (model.PublicUser, error) {
	_, err := s.users.GetByUsername(ctx, in.Username)
	switch {
	case err == nil:
		return model.PublicUser{}, apperror.Conflict("this username is taken")
	case !errors.Is(err, apperror.ErrNotFound):
		return model.PublicUser{}, fmt.Errorf("service/auth: checking username %q: %w", in.Username, err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return model.PublicUser{}, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		PasswordHash: hash,
		Email:        in.Email,
		Name:         in.Name,
		Biography:    in.Biography,
		Profile:      profileURL,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return model.PublicUser{}, fmt.Errorf("service/auth: creating user %q: %w", in.Username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return user.Public(), nil
}

// Login verifies credentials and issues a token pair.
//
// An unknown username and a wrong password return the same unauthorized error
// so callers cannot probe which usernames exist. Issuing the pair replaces any
// previous session: all earlier refresh-token records for the user are
// deleted before the new one is stored.
func (s *AuthService) Login(ctx context.Context, in validate.LoginInput) (TokenPair, error) {
	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return TokenPair{}, apperror.Unauthorized("invalid username or password")
		}
		return TokenPair{}, fmt.Errorf("service/auth: looking up user %q: %w", in.Username, err)
	}

	ok, err := s.passwords.Compare(in.Password, user.PasswordHash)
	if err != nil {
		return TokenPair{}, fmt.Errorf("service/auth: verifying password for user %s: %w", user.ID, err)
	}
	if !ok {
		return TokenPair{}, apperror.Unauthorized("invalid username or password")
	}

	pair, err := s.issuePair(ctx, auth.Identity{UserID: user.ID, Username: user.Username}, true)
	if err != nil {
		return TokenPair{}, err
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return pair, nil
}

// Refresh rotates a refresh token: the presented token is validated against
// the stored hash, consumed, and replaced by a fresh pair.
//
// The identity comes from the already-verified refresh JWT (the handler
// checks signature and expiry). Every failure is unauthorized; an expired
// record is additionally purged so it can never match again. Consumption is
// a conditional delete; when two requests race on the same record, exactly
// one rotates it and the other fails.
func (s *AuthService) Refresh(ctx context.Context, id auth.Identity, incomingToken string) (TokenPair, error) {
	stored, err := s.tokens.GetLatestByUserID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return TokenPair{}, apperror.Unauthorized("refresh token not found")
		}
		return TokenPair{}, fmt.Errorf("service/auth: fetching refresh token for user %s: %w", id.UserID, err)
	}

	ok, err := s.passwords.Compare(incomingToken, stored.TokenHash)
	if err != nil {
		return TokenPair{}, fmt.Errorf("service/auth: verifying refresh token for user %s: %w", id.UserID, err)
	}
	if !ok {
		return TokenPair{}, apperror.Unauthorized("refresh token is invalid")
	}

	if stored.Expired(s.now()) {
		if _, err := s.tokens.Consume(ctx, stored.ID); err != nil {
			s.logger.Error("purging expired refresh token",
				slog.String("tokenID", stored.ID),
				slog.String("error", err.Error()),
			)
		}
		return TokenPair{}, apperror.Unauthorized("refresh token has expired")
	}

	consumed, err := s.tokens.Consume(ctx, stored.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("service/auth: consuming refresh token %s: %w", stored.ID, err)
	}
	if !consumed {
		// Lost the race against a concurrent refresh of the same token.
		return TokenPair{}, apperror.Unauthorized("refresh token is invalid")
	}

	pair, err := s.issuePair(ctx, id, false)
	if err != nil {
		// The old record is already gone; the client has to log in again.
		return TokenPair{}, err
	}

	s.logger.Info("refresh token rotated", slog.String("userID", id.UserID))

	return pair, nil
}

// PurgeExpiredToken removes the stored record matching an expired refresh
// token, so a stale row does not linger until the next login or logout.
//
// The caller has already established that the token's signature is valid but
// its expiry has passed. The record is only removed when the token matches
// its stored hash; an expired token from an older session cannot revoke the
// user's current one. A missing record is not an error.
func (s *AuthService) PurgeExpiredToken(ctx context.Context, id auth.Identity, incomingToken string) error {
	stored, err := s.tokens.GetLatestByUserID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("service/auth: fetching refresh token for user %s: %w", id.UserID, err)
	}

	ok, err := s.passwords.Compare(incomingToken, stored.TokenHash)
	if err != nil {
		return fmt.Errorf("service/auth: verifying refresh token for user %s: %w", id.UserID, err)
	}
	if !ok {
		return nil
	}

	if _, err := s.tokens.Consume(ctx, stored.ID); err != nil {
		return fmt.Errorf("service/auth: purging refresh token %s: %w", stored.ID, err)
	}

	s.logger.Info("expired refresh token purged", slog.String("userID", id.UserID))

	return nil
}

// Logout deletes every refresh-token record for the user. This covers both
// "logout" and "logout all devices"; with one active session per user they
// are the same operation.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	deleted, err := s.tokens.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/auth: deleting refresh tokens for user %s: %w", userID, err)
	}

	s.logger.Info("user logged out",
		slog.String("userID", userID),
		slog.Int64("tokensRevoked", deleted),
	)

	return nil
}

// GetUserByID returns the user for the given internal ID. Used by the /api/me
// handler after the middleware validates the access token.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// issuePair signs a new access+refresh pair and persists the refresh-token
// hash. When revokeExisting is set (login), all previous records for the user
// are removed first so at most one session exists per user.
func (s *AuthService) issuePair(ctx context.Context, id auth.Identity, revokeExisting bool) (TokenPair, error) {
	accessToken, err := s.jwt.IssueAccess(id)
	if err != nil {
		return TokenPair{}, fmt.Errorf("service/auth: issuing access token for user %s: %w", id.UserID, err)
	}
	refreshToken, err := s.jwt.IssueRefresh(id)
	if err != nil {
		return TokenPair{}, fmt.Errorf("service/auth: issuing refresh token for user %s: %w", id.UserID, err)
	}

	tokenHash, err := s.passwords.Hash(refreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("service/auth: hashing refresh token for user %s: %w", id.UserID, err)
	}

	if revokeExisting {
		if _, err := s.tokens.DeleteByUserID(ctx, id.UserID); err != nil {
			return TokenPair{}, fmt.Errorf("service/auth: revoking old sessions for user %s: %w", id.UserID, err)
		}
	}

	record := &model.RefreshToken{
		UserID:    id.UserID,
		TokenHash: tokenHash,
		ExpiresAt: s.now().Add(s.jwt.RefreshTTL()),
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return TokenPair{}, fmt.Errorf("service/auth: storing refresh token for user %s: %w", id.UserID, err)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwt.AccessTTL().Seconds()),
	}, nil
}
