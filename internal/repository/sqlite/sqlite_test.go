package sqlite

import (
	"context"
	"testing"

	"github.com/sakif/auth-backend/internal/model"
)

// newTestDB returns a DB backed by an in-memory SQLite database. Migrations
// have run; the database disappears when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

// createTestUser inserts a user and fails the test on error.
func createTestUser(t *testing.T, u *UserDB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		PasswordHash: "$2a$04$fakehashfakehashfakehashfakehashfakehashfakehashfake",
		Email:        username + "@example.com",
	}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func TestMigrationsAreIdempotentPerDatabase(t *testing.T) {
	// Two separate in-memory databases must both come up migrated.
	db1 := newTestDB(t)
	db2 := newTestDB(t)

	createTestUser(t, db1.Users(), "alice1")
	createTestUser(t, db2.Users(), "alice1") // no cross-db conflict
}
