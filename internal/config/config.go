// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
)

// Log output formats accepted by STREAMCASTER_LOG_FORMAT.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// ClientCredentials are the OAuth client id and secret for one platform.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

// Configured reports whether both halves are present.
func (c ClientCredentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Secret     string
	DBPath     string
	ListenAddr string

	ShortsInterval  time.Duration
	VODsInterval    time.Duration
	RefreshInterval time.Duration
	DispatchTimeout time.Duration
	SocialTimeout   time.Duration

	LogLevel  slog.Level
	LogFormat string

	Platforms map[model.Platform]ClientCredentials
}

// UsingDefaultSecret reports whether no vault passphrase was configured.
func (c *Config) UsingDefaultSecret() bool {
	return c.Secret == ""
}

// Credentials returns the OAuth client credentials for p. The zero value is
// returned when none are configured.
func (c *Config) Credentials(p model.Platform) ClientCredentials {
	return c.Platforms[p]
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional. Defaults: STREAMCASTER_DB_PATH (streamcaster.db),
// STREAMCASTER_LISTEN_ADDR (127.0.0.1:8080), STREAMCASTER_SHORTS_INTERVAL (1m),
// STREAMCASTER_VODS_INTERVAL (1m), STREAMCASTER_REFRESH_INTERVAL (15m),
// STREAMCASTER_DISPATCH_TIMEOUT (2m), STREAMCASTER_SOCIAL_TIMEOUT (15s),
// STREAMCASTER_LOG_LEVEL (info), STREAMCASTER_LOG_FORMAT (text).
// Platform OAuth clients are read from STREAMCASTER_<PLATFORM>_CLIENT_ID and
// STREAMCASTER_<PLATFORM>_CLIENT_SECRET.
func Load() (*Config, error) {
	cfg := &Config{
		Secret:     os.Getenv("STREAMCASTER_SECRET"),
		DBPath:     envOr("STREAMCASTER_DB_PATH", "streamcaster.db"),
		ListenAddr: envOr("STREAMCASTER_LISTEN_ADDR", "127.0.0.1:8080"),
		Platforms:  make(map[model.Platform]ClientCredentials),
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"STREAMCASTER_SHORTS_INTERVAL", time.Minute, &cfg.ShortsInterval},
		{"STREAMCASTER_VODS_INTERVAL", time.Minute, &cfg.VODsInterval},
		{"STREAMCASTER_REFRESH_INTERVAL", 15 * time.Minute, &cfg.RefreshInterval},
		{"STREAMCASTER_DISPATCH_TIMEOUT", 2 * time.Minute, &cfg.DispatchTimeout},
		{"STREAMCASTER_SOCIAL_TIMEOUT", 15 * time.Second, &cfg.SocialTimeout},
	}
	for _, d := range durations {
		v, err := positiveDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dest = v
	}

	level, err := parseLevel(envOr("STREAMCASTER_LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	format := strings.ToLower(envOr("STREAMCASTER_LOG_FORMAT", LogFormatText))
	if format != LogFormatText && format != LogFormatJSON {
		return nil, fmt.Errorf("STREAMCASTER_LOG_FORMAT must be %q or %q, got %q", LogFormatText, LogFormatJSON, format)
	}
	cfg.LogFormat = format

	for _, p := range model.AllPlatforms {
		prefix := "STREAMCASTER_" + strings.ToUpper(string(p))
		creds := ClientCredentials{
			ClientID:     strings.TrimSpace(os.Getenv(prefix + "_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(os.Getenv(prefix + "_CLIENT_SECRET")),
		}
		if creds.ClientID != "" || creds.ClientSecret != "" {
			cfg.Platforms[p] = creds
		}
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func positiveDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, parsed)
	}
	return parsed, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("STREAMCASTER_LOG_LEVEL has invalid level %q: %w", s, err)
	}
	return level, nil
}
