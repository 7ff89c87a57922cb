// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Username is stored normalized (trimmed, lowercased) and carries a UNIQUE
// constraint in the database, so case and whitespace variants of the same name
// map to one account. PasswordHash is a bcrypt hash and must never leave the
// service layer; responses use PublicUser instead.
//
// Name, Biography and Profile are optional; the zero value (empty string) means
// "not set". Profile holds the public URL of the uploaded profile image.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	Email        string    `json:"email"     db:"email"`
	Name         string    `json:"name"      db:"name"`
	Biography    string    `json:"biography" db:"biography"`
	Profile      string    `json:"profile"   db:"profile"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// PublicUser is the projection of a User that is safe to return from the API.
type PublicUser struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Profile  string `json:"profile"`
}

// Public returns the API-safe projection of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		Username: u.Username,
		Name:     u.Name,
		Email:    u.Email,
		Profile:  u.Profile,
	}
}
