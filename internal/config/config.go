// Package config loads and validates server configuration from environment
// variables.
//
// Token expiries are Go duration strings ("15m", "168h"). Earlier deployments
// mixed seconds and milliseconds between call sites; durations remove the
// ambiguity, and anything unparsable is a startup error rather than a silently
// mis-scaled token lifetime.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Defaults used when the corresponding environment variable is unset.
const (
	DefaultPort            = 8080
	DefaultDBPath          = "data/auth.db"
	DefaultUploadDir       = "uploads/profile-images"
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	minSecretLen = 16
)

// Config holds everything the server needs to run. Load is the only
// constructor; a Config that came out of Load is valid.
type Config struct {
	Port          int
	DBPath        string
	UploadDir     string
	PublicBaseURL string // prefix for stored profile-image URLs

	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	LogLevel slog.Level
}

// Load reads configuration from the environment and validates it.
//
// JWT_SECRET_KEY and JWT_REFRESH_SECRET_KEY are required, must be at least 16
// characters, and must differ; an access token must never verify against the
// refresh secret or vice versa.
func Load() (*Config, error) {
	cfg := &Config{
		Port:       DefaultPort,
		DBPath:     DefaultDBPath,
		UploadDir:  DefaultUploadDir,
		AccessTTL:  DefaultAccessTokenTTL,
		RefreshTTL: DefaultRefreshTokenTTL,
		LogLevel:   slog.LevelInfo,
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("config: invalid PORT %q", v)
		}
		cfg.Port = port
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}

	cfg.PublicBaseURL = os.Getenv("PUBLIC_BASE_URL")
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	cfg.AccessSecret = os.Getenv("JWT_SECRET_KEY")
	if len(cfg.AccessSecret) < minSecretLen {
		return nil, fmt.Errorf("config: JWT_SECRET_KEY must be set and at least %d characters", minSecretLen)
	}
	cfg.RefreshSecret = os.Getenv("JWT_REFRESH_SECRET_KEY")
	if len(cfg.RefreshSecret) < minSecretLen {
		return nil, fmt.Errorf("config: JWT_REFRESH_SECRET_KEY must be set and at least %d characters", minSecretLen)
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, fmt.Errorf("config: JWT_SECRET_KEY and JWT_REFRESH_SECRET_KEY must differ")
	}

	var err error
	if cfg.AccessTTL, err = durationEnv("JWT_EXPIRE_IN", cfg.AccessTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = durationEnv("JWT_REFRESH_EXPIRE_IN", cfg.RefreshTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, fmt.Errorf("config: JWT_REFRESH_EXPIRE_IN (%s) must be longer than JWT_EXPIRE_IN (%s)",
			cfg.RefreshTTL, cfg.AccessTTL)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("config: invalid LOG_LEVEL %q", v)
		}
	}

	return cfg, nil
}

// durationEnv parses a duration environment variable, returning def when the
// variable is unset. Bare numbers are rejected on purpose: "900" could mean
// seconds or milliseconds, so a unit is required.
func durationEnv(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %q is not a duration (use e.g. \"15m\", \"168h\")", name, v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive, got %s", name, d)
	}
	return d, nil
}
