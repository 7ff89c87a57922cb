// Package handler contains the HTTP handlers. Handlers decode and validate
// requests, call the service, and encode responses; no business logic.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/auth-backend/internal/apperror"
	"github.com/sakif/auth-backend/internal/auth"
	"github.com/sakif/auth-backend/internal/service"
	"github.com/sakif/auth-backend/internal/upload"
	"github.com/sakif/auth-backend/internal/validate"
)

// profileImageField is the multipart field carrying the optional image on
// registration.
const profileImageField = "profile_image"

// AuthHandler exposes the auth service over HTTP:
//
//	POST /auth/register   multipart form + optional profile image → 201 PublicUser
//	POST /auth/login      JSON credentials → 200 token pair
//	POST /auth/refresh    JSON {refreshToken} → 200 token pair
//	POST /auth/logout     Bearer access token → 200 {message}
//	GET  /api/me          Bearer access token → 200 PublicUser
type AuthHandler struct {
	svc           *service.AuthService
	tokens        *auth.TokenService
	uploads       *upload.Store
	publicBaseURL string
	logger        *slog.Logger
}

// NewAuthHandler creates an AuthHandler. publicBaseURL is the externally
// visible server address used to build stored profile-image URLs.
func NewAuthHandler(
	svc *service.AuthService,
	tokens *auth.TokenService,
	uploads *upload.Store,
	publicBaseURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		svc:           svc,
		tokens:        tokens,
		uploads:       uploads,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

// HandleRegister creates a new account from a multipart form.
//
// HTTP: POST /auth/register
//
// The request body is capped slightly above the image limit so a runaway
// upload is cut off at the socket instead of buffering 25 MiB of junk. If the
// user row cannot be inserted after the image was stored, the file is removed
// again; uploads must not leak on failed registrations.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxImageSize+1<<20)

	if err := r.ParseMultipartForm(4 << 20); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request must be multipart/form-data within the size limit"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := validate.RegisterInput{
		Username:  r.FormValue("username"),
		Password:  r.FormValue("password"),
		Email:     r.FormValue("email"),
		Name:      r.FormValue("name"),
		Biography: r.FormValue("biography"),
	}
	if err := validate.Register(&in); err != nil {
		writeError(w, err)
		return
	}

	var profileURL, storedName string
	file, header, err := r.FormFile(profileImageField)
	switch {
	case err == nil:
		defer file.Close()
		storedName, err = h.uploads.SaveProfileImage(file, header)
		if err != nil {
			writeError(w, err)
			return
		}
		profileURL = h.publicBaseURL + "/profile-images/" + storedName
	case errors.Is(err, http.ErrMissingFile):
		// profile image is optional
	default:
		writeError(w, apperror.ValidationFailed(profileImageField, "could not read profile image"))
		return
	}

	user, err := h.svc.Register(r.Context(), in, profileURL)
	if err != nil {
		if storedName != "" {
			if rmErr := h.uploads.Remove(storedName); rmErr != nil {
				h.logger.Error("removing orphaned upload",
					slog.String("file", storedName),
					slog.String("error", rmErr.Error()),
				)
			}
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// HandleLogin verifies credentials and returns a token pair.
//
// HTTP: POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	in := validate.LoginInput{Username: body.Username, Password: body.Password}
	if err := validate.Login(&in); err != nil {
		writeError(w, err)
		return
	}

	pair, err := h.svc.Login(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// HandleRefresh exchanges a refresh token for a fresh pair.
//
// HTTP: POST /auth/refresh
//
// The token's signature and expiry are verified here to recover the caller's
// identity; the service then matches it against the stored hash and rotates
// it. No access token is required; this is the endpoint clients call when
// theirs has expired.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.RefreshToken == "" {
		writeError(w, apperror.ValidationFailed("refreshToken", "refreshToken is required"))
		return
	}

	id, err := h.tokens.VerifyRefresh(body.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			// The signature checked out, so the identity is known and the
			// matching stored record can be cleaned up right away.
			if id.UserID != "" {
				if purgeErr := h.svc.PurgeExpiredToken(r.Context(), id, body.RefreshToken); purgeErr != nil {
					h.logger.Error("purging expired refresh token",
						slog.String("userID", id.UserID),
						slog.String("error", purgeErr.Error()),
					)
				}
			}
			writeError(w, apperror.Unauthorized("refresh token has expired"))
			return
		}
		writeError(w, apperror.Unauthorized("refresh token is invalid"))
		return
	}

	pair, err := h.svc.Refresh(r.Context(), id, body.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// HandleLogout revokes all refresh tokens of the authenticated user.
//
// HTTP: POST /auth/logout
// Auth: required (RequireAuth middleware)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	if err := h.svc.Logout(r.Context(), id.UserID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

// HandleMe returns the authenticated user's public profile.
//
// HTTP: GET /api/me
// Auth: required (RequireAuth middleware)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.svc.GetUserByID(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user.Public())
}

// decodeJSON reads a JSON request body into dst, rejecting unknown fields and
// trailing garbage.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "request body must be valid JSON")
	}
	if dec.More() {
		return apperror.ValidationFailed("body", "request body must contain a single JSON object")
	}
	return nil
}
