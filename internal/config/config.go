package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

// Config holds everything the portal client needs to talk to the backend
// and to persist its session between runs.
type Config struct {
	// BaseURL is the root of the portal REST API, without a trailing slash.
	BaseURL string `yaml:"base_url"`

	// RequestTimeoutSeconds bounds every HTTP call to the backend.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`

	// OTPWindowSeconds is how long a delivered OTP stays usable.
	OTPWindowSeconds int `yaml:"otp_window_seconds"`

	// MaxDocumentBytes caps the registration document upload size.
	MaxDocumentBytes int64 `yaml:"max_document_bytes"`

	// SessionDBPath is the SQLite file holding the persisted session.
	SessionDBPath string `yaml:"session_db_path"`
}

const (
	DefaultBaseURL          = "http://localhost:5050"
	DefaultRequestTimeout   = 30
	DefaultOTPWindow        = 300
	DefaultMaxDocumentBytes = 5 << 20
	DefaultSessionDBPath    = "portal-session.db"
)

// Default returns the built-in configuration used when nothing is set.
func Default() Config {
	return Config{
		BaseURL:               DefaultBaseURL,
		RequestTimeoutSeconds: DefaultRequestTimeout,
		OTPWindowSeconds:      DefaultOTPWindow,
		MaxDocumentBytes:      DefaultMaxDocumentBytes,
		SessionDBPath:         DefaultSessionDBPath,
	}
}

// getenv returns the value of an environment variable, or def when unset.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getenvInt returns an environment variable as an int, or def when unset or invalid.
func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getenvInt64 returns an environment variable as an int64, or def when unset or invalid.
func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

// applyEnv overlays environment variables on top of c.
//
// Environment variables:
//   - PORTAL_BASE_URL: root of the portal REST API
//   - PORTAL_REQUEST_TIMEOUT_SECONDS: HTTP timeout per call
//   - PORTAL_OTP_WINDOW_SECONDS: OTP validity window
//   - PORTAL_MAX_DOCUMENT_BYTES: registration upload cap
//   - PORTAL_SESSION_DB: SQLite session file path
func (c Config) applyEnv() Config {
	c.BaseURL = getenv("PORTAL_BASE_URL", c.BaseURL)
	c.RequestTimeoutSeconds = getenvInt("PORTAL_REQUEST_TIMEOUT_SECONDS", c.RequestTimeoutSeconds)
	c.OTPWindowSeconds = getenvInt("PORTAL_OTP_WINDOW_SECONDS", c.OTPWindowSeconds)
	c.MaxDocumentBytes = getenvInt64("PORTAL_MAX_DOCUMENT_BYTES", c.MaxDocumentBytes)
	c.SessionDBPath = getenv("PORTAL_SESSION_DB", c.SessionDBPath)
	return c
}

// LoadFromEnv loads configuration from environment variables over the defaults.
func LoadFromEnv() Config {
	return Default().applyEnv()
}

// Load reads a YAML config file and overlays environment variables on top of
// it. A missing file is not an error; the defaults are used instead.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	return cfg.applyEnv(), nil
}

// RequestTimeout returns the per-call HTTP timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// OTPWindow returns the OTP validity window as a duration.
func (c Config) OTPWindow() time.Duration {
	return time.Duration(c.OTPWindowSeconds) * time.Second
}
