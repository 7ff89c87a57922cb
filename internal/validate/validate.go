// Package validate checks register/login input at the HTTP boundary, before
// the service layer runs. The service can assume fields are present, trimmed
// and normalized.
package validate

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	passwordvalidator "github.com/wagslane/go-password-validator"

	"github.com/sakif/auth-backend/internal/apperror"
)

// passwordMinEntropyBits is the strength floor applied at registration.
// Login deliberately skips the entropy check: existing accounts may predate it.
const passwordMinEntropyBits = 30

const (
	usernameMinLen  = 5
	usernameMaxLen  = 20
	passwordMinLen  = 5
	passwordMaxLen  = 72 // bcrypt input limit
	nameMaxLen      = 30
	biographyMaxLen = 250
)

var usernameRe = regexp.MustCompile(`^[a-z0-9]+$`)

// RegisterInput is the payload of POST /auth/register (multipart form fields;
// the profile image travels separately).
type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	Name      string
	Biography string
}

// LoginInput is the payload of POST /auth/login.
type LoginInput struct {
	Username string
	Password string
}

// Username normalizes a username (trim, lowercase) and validates its shape.
// It returns the normalized form, so "  Alice1 " and "alice1" are the same
// account everywhere past this call.
func Username(raw string) (string, error) {
	username := strings.ToLower(strings.TrimSpace(raw))
	if username == "" {
		return "", apperror.ValidationFailed("username", "username is required")
	}
	if len(username) < usernameMinLen || len(username) > usernameMaxLen {
		return "", apperror.ValidationFailed("username", "username must be 5-20 characters")
	}
	if !usernameRe.MatchString(username) {
		return "", apperror.ValidationFailed("username", "username may only contain a-z and 0-9")
	}
	return username, nil
}

// Register validates registration input in place, normalizing the username.
func Register(in *RegisterInput) error {
	username, err := Username(in.Username)
	if err != nil {
		return err
	}
	in.Username = username

	if err := password(in.Password); err != nil {
		return err
	}
	if err := passwordvalidator.Validate(in.Password, passwordMinEntropyBits); err != nil {
		return apperror.ValidationFailed("password", "password is too weak: "+err.Error())
	}

	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return apperror.ValidationFailed("email", "email is not a valid address")
	}

	in.Name = strings.TrimSpace(in.Name)
	if in.Name != "" && utf8.RuneCountInString(in.Name) > nameMaxLen {
		return apperror.ValidationFailed("name", "name must be at most 30 characters")
	}

	in.Biography = strings.TrimSpace(in.Biography)
	if in.Biography != "" && utf8.RuneCountInString(in.Biography) > biographyMaxLen {
		return apperror.ValidationFailed("biography", "biography must be at most 250 characters")
	}

	return nil
}

// Login validates login input in place, normalizing the username.
func Login(in *LoginInput) error {
	username, err := Username(in.Username)
	if err != nil {
		return err
	}
	in.Username = username
	return password(in.Password)
}

func password(pw string) error {
	if pw == "" {
		return apperror.ValidationFailed("password", "password is required")
	}
	if len(pw) < passwordMinLen || len(pw) > passwordMaxLen {
		return apperror.ValidationFailed("password", "password must be 5-72 characters")
	}
	return nil
}
