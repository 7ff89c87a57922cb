package auth

import (
	"errors"
	"testing"
	"time"
)

// newTestTokenService creates a TokenService with fixed secrets so tests are
// deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(
		"access-secret-16-chars!!",
		"refresh-secret-16-chars!",
		15*time.Minute,
		7*24*time.Hour,
	)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestNewTokenService_EmptySecret(t *testing.T) {
	_, err := NewTokenService("", "refresh-secret-16-chars!", time.Minute, time.Hour)
	if err == nil {
		t.Fatal("NewTokenService() should reject an empty secret")
	}
}

func TestNewTokenService_NonPositiveTTL(t *testing.T) {
	_, err := NewTokenService("access-secret-16-chars!!", "refresh-secret-16-chars!", 0, time.Hour)
	if err == nil {
		t.Fatal("NewTokenService() should reject a zero TTL")
	}
}

func TestIssueAccess_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)
	id := Identity{UserID: "user-123", Username: "alice1"}

	token, err := ts.IssueAccess(id)
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}
	if token == "" {
		t.Fatal("IssueAccess() returned empty token")
	}

	got, err := ts.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess() error = %v", err)
	}
	if got != id {
		t.Errorf("VerifyAccess() = %+v, want %+v", got, id)
	}
}

func TestIssueRefresh_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)
	id := Identity{UserID: "user-456", Username: "bob99"}

	token, err := ts.IssueRefresh(id)
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}

	got, err := ts.VerifyRefresh(token)
	if err != nil {
		t.Fatalf("VerifyRefresh() error = %v", err)
	}
	if got != id {
		t.Errorf("VerifyRefresh() = %+v, want %+v", got, id)
	}
}

func TestTokenKindsDoNotCrossVerify(t *testing.T) {
	ts := newTestTokenService(t)
	id := Identity{UserID: "user-789", Username: "carol"}

	access, err := ts.IssueAccess(id)
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}
	refresh, err := ts.IssueRefresh(id)
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}

	if _, err := ts.VerifyRefresh(access); err == nil {
		t.Error("VerifyRefresh() accepted an access token")
	}
	if _, err := ts.VerifyAccess(refresh); err == nil {
		t.Error("VerifyAccess() accepted a refresh token")
	}
}

func TestVerifyAccess_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.IssueAccess(Identity{UserID: "user-1", Username: "alice1"})
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := ts.VerifyAccess(tampered); err == nil {
		t.Error("VerifyAccess() accepted a tampered token")
	}
}

func TestVerifyAccess_ExpiredToken(t *testing.T) {
	// Issue with a 1ns TTL and verify after it has passed.
	ts, err := NewTokenService(
		"access-secret-16-chars!!",
		"refresh-secret-16-chars!",
		time.Nanosecond,
		time.Hour,
	)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, err := ts.IssueAccess(Identity{UserID: "user-1", Username: "alice1"})
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	_, err = ts.VerifyAccess(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("VerifyAccess() error = %v, want ErrTokenExpired", err)
	}
}

func TestVerifyRefresh_ExpiredTokenStillIdentifiesUser(t *testing.T) {
	ts, err := NewTokenService(
		"access-secret-16-chars!!",
		"refresh-secret-16-chars!",
		15*time.Minute,
		time.Nanosecond,
	)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	id := Identity{UserID: "user-1", Username: "alice1"}
	token, err := ts.IssueRefresh(id)
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	// The error is ErrTokenExpired, but the identity comes back anyway so
	// the caller can clean up the user's stored record.
	got, err := ts.VerifyRefresh(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("VerifyRefresh() error = %v, want ErrTokenExpired", err)
	}
	if got != id {
		t.Errorf("VerifyRefresh() identity = %+v, want %+v", got, id)
	}
}

func TestVerifyAccess_DifferentSecret(t *testing.T) {
	ts := newTestTokenService(t)
	other, err := NewTokenService(
		"other-secret-16-chars!!!",
		"other-refresh-16-chars!!",
		15*time.Minute,
		7*24*time.Hour,
	)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, err := ts.IssueAccess(Identity{UserID: "user-1", Username: "alice1"})
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	if _, err := other.VerifyAccess(token); err == nil {
		t.Error("VerifyAccess() accepted a token signed with a different secret")
	}
}
