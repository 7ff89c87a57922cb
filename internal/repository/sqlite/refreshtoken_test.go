package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/auth-backend/internal/apperror"
	"github.com/sakif/auth-backend/internal/model"
)

// createTestToken inserts a refresh-token record for the given user.
func createTestToken(t *testing.T, r *RefreshTokenDB, userID, hash string) *model.RefreshToken {
	t.Helper()
	token := &model.RefreshToken{
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := r.Create(context.Background(), token); err != nil {
		t.Fatalf("failed to create test token: %v", err)
	}
	return token
}

func TestRefreshTokenCreate(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "alice1")

	token := createTestToken(t, db.RefreshTokens(), user.ID, "hash-1")

	if token.ID == "" {
		t.Error("Create() did not set token.ID")
	}
	if token.CreatedAt.IsZero() {
		t.Error("Create() did not set token.CreatedAt")
	}
}

func TestGetLatestByUserID_ReturnsNewest(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "alice1")
	r := db.RefreshTokens()

	createTestToken(t, r, user.ID, "hash-old")
	newest := createTestToken(t, r, user.ID, "hash-new")

	got, err := r.GetLatestByUserID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetLatestByUserID() error = %v", err)
	}
	if got.ID != newest.ID {
		t.Errorf("GetLatestByUserID() returned %q, want newest %q", got.ID, newest.ID)
	}
}

func TestGetLatestByUserID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.RefreshTokens().GetLatestByUserID(context.Background(), "no-user")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetLatestByUserID() error = %v, want ErrNotFound", err)
	}
}

func TestConsume_FirstCallWinsSecondLoses(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "alice1")
	r := db.RefreshTokens()
	token := createTestToken(t, r, user.ID, "hash-1")

	consumed, err := r.Consume(context.Background(), token.ID)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if !consumed {
		t.Fatal("first Consume() = false, want true")
	}

	// Second consumption of the same record must report it was already gone.
	consumed, err = r.Consume(context.Background(), token.ID)
	if err != nil {
		t.Fatalf("second Consume() error = %v", err)
	}
	if consumed {
		t.Error("second Consume() = true, want false")
	}
}

func TestDeleteByUserID(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db.Users(), "alice1")
	bob := createTestUser(t, db.Users(), "bobby9")
	r := db.RefreshTokens()

	createTestToken(t, r, alice.ID, "hash-a1")
	createTestToken(t, r, alice.ID, "hash-a2")
	kept := createTestToken(t, r, bob.ID, "hash-b1")

	deleted, err := r.DeleteByUserID(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("DeleteByUserID() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteByUserID() deleted %d rows, want 2", deleted)
	}

	if _, err := r.GetLatestByUserID(context.Background(), alice.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("alice still has tokens after DeleteByUserID: %v", err)
	}

	// Bob's token is untouched.
	got, err := r.GetLatestByUserID(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("GetLatestByUserID(bob) error = %v", err)
	}
	if got.ID != kept.ID {
		t.Errorf("bob's token = %q, want %q", got.ID, kept.ID)
	}
}

func TestDeleteByUserID_CascadesFromUserDelete(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "alice1")
	r := db.RefreshTokens()
	createTestToken(t, r, user.ID, "hash-1")

	// Deleting the user row removes their tokens via ON DELETE CASCADE.
	if _, err := db.conn.Exec(`DELETE FROM users WHERE id = ?`, user.ID); err != nil {
		t.Fatalf("deleting user: %v", err)
	}

	if _, err := r.GetLatestByUserID(context.Background(), user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("tokens survived user deletion: %v", err)
	}
}
