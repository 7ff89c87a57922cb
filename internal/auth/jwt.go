package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "auth-backend"

// ErrTokenExpired is returned by the verify methods when the token's exp claim
// has passed. Callers can distinguish it from tampering with errors.Is. The
// identity returned alongside it is populated when the signature checked out,
// so callers can still tell whose token expired.
var ErrTokenExpired = errors.New("auth: token expired")

// Identity is the claim set carried by both token kinds: who the token was
// issued to. The access and refresh tokens share this shape but are signed
// with distinct secrets and lifetimes.
type Identity struct {
	UserID   string
	Username string
}

// Claims is the JWT payload. The user ID travels in the registered "sub"
// claim; the username is a private claim so clients can display it without a
// profile round trip.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies the HS256 access/refresh token pair.
//
// The two secrets must differ: a refresh token presented where an access token
// is expected (or vice versa) must fail signature verification.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenService creates a TokenService. Secrets are validated by the config
// layer (length, distinctness) before they get here; TTLs must be positive.
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("auth: token secrets must not be empty")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("auth: token TTLs must be positive")
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccess signs a short-lived access token for the given identity.
func (s *TokenService) IssueAccess(id Identity) (string, error) {
	return s.sign(id, s.accessSecret, s.accessTTL)
}

// IssueRefresh signs a long-lived refresh token for the given identity.
// The caller is responsible for persisting its hash.
func (s *TokenService) IssueRefresh(id Identity) (string, error) {
	return s.sign(id, s.refreshSecret, s.refreshTTL)
}

func (s *TokenService) sign(id Identity, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// VerifyAccess validates an access token and returns the identity it encodes.
func (s *TokenService) VerifyAccess(tokenStr string) (Identity, error) {
	return s.verify(tokenStr, s.accessSecret)
}

// VerifyRefresh validates a refresh token's signature and expiry. This is only
// the first half of refresh validation; the service still has to match the
// token against the stored hash.
func (s *TokenService) VerifyRefresh(tokenStr string) (Identity, error) {
	return s.verify(tokenStr, s.refreshSecret)
}

func (s *TokenService) verify(tokenStr string, secret []byte) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			id, _ := s.expiredIdentity(tokenStr, secret)
			return id, ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return Identity{}, errors.New("auth: token has no subject")
	}

	return Identity{UserID: c.Subject, Username: c.Username}, nil
}

// expiredIdentity re-parses a token that failed verification only because it
// expired. The signature is still checked against the secret; claims
// validation is skipped so the subject can be read out of the stale token.
func (s *TokenService) expiredIdentity(tokenStr string, secret []byte) (Identity, bool) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !token.Valid {
		return Identity{}, false
	}
	c, ok := token.Claims.(*Claims)
	if !ok || c.Subject == "" {
		return Identity{}, false
	}
	return Identity{UserID: c.Subject, Username: c.Username}, true
}
