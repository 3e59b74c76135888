package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cesargomez89/playledger/internal/constants"
)

// Config holds all application configuration
type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string

	SpotifyAPIURL       string
	SpotifyTokenURL     string
	SpotifyClientID     string
	SpotifyClientSecret string

	MusicBrainzURL       string
	MusicBrainzUserAgent string
	MusicBrainzRate      float64

	CoverArtURL string
	CoverArtDir string

	PollInterval       time.Duration
	PollLimit          int
	SchedulerTick      time.Duration
	CycleTimeout       time.Duration
	MetadataStaleAfter time.Duration
	BackoffCeiling     time.Duration
	SweepInterval      time.Duration
	SweepBatch         int
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	HTTPTimeout        time.Duration
	CacheTTL           time.Duration

	// parse problems found by Load, reported by Validate
	loadErrors []string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	c := &Config{
		Port:      getEnv("PORT", constants.DefaultPort),
		DBPath:    getEnv("DB_PATH", constants.DefaultDBPath),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		SpotifyAPIURL:       getEnv("SPOTIFY_API_URL", constants.DefaultSpotifyAPIURL),
		SpotifyTokenURL:     getEnv("SPOTIFY_TOKEN_URL", constants.DefaultSpotifyTokenURL),
		SpotifyClientID:     getEnv("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret: getEnv("SPOTIFY_CLIENT_SECRET", ""),

		MusicBrainzURL:       getEnv("MUSICBRAINZ_URL", constants.DefaultMusicBrainzURL),
		MusicBrainzUserAgent: getEnv("MUSICBRAINZ_USER_AGENT", ""),

		CoverArtURL: getEnv("COVERART_URL", constants.DefaultCoverArtURL),
		CoverArtDir: getEnv("COVERART_DIR", constants.DefaultCoverArtDir),
	}

	c.MusicBrainzRate = c.getEnvFloat("MUSICBRAINZ_RATE", constants.DefaultMusicBrainzRate)
	c.PollInterval = c.getEnvDuration("POLL_INTERVAL", constants.DefaultPollInterval)
	c.PollLimit = c.getEnvInt("POLL_LIMIT", constants.DefaultPollLimit)
	c.SchedulerTick = c.getEnvDuration("SCHEDULER_TICK", constants.DefaultSchedulerTick)
	c.CycleTimeout = c.getEnvDuration("CYCLE_TIMEOUT", constants.DefaultCycleTimeout)
	c.MetadataStaleAfter = c.getEnvDuration("METADATA_STALE_AFTER", constants.DefaultMetadataStale)
	c.BackoffCeiling = c.getEnvDuration("BACKOFF_CEILING", constants.DefaultBackoffCeiling)
	c.SweepInterval = c.getEnvDuration("SWEEP_INTERVAL", constants.DefaultSweepInterval)
	c.SweepBatch = c.getEnvInt("SWEEP_BATCH", constants.DefaultSweepBatch)
	c.WorkerConcurrency = c.getEnvInt("WORKER_CONCURRENCY", constants.DefaultConcurrency)
	c.WorkerPollInterval = c.getEnvDuration("WORKER_POLL_INTERVAL", constants.DefaultWorkerPoll)
	c.HTTPTimeout = c.getEnvDuration("HTTP_TIMEOUT", constants.DefaultHTTPTimeout)
	c.CacheTTL = c.getEnvDuration("CACHE_TTL", constants.DefaultCacheTTL)

	return c
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	errors := append([]string(nil), c.loadErrors...)

	// Validate Port
	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	for key, raw := range map[string]string{
		"SPOTIFY_API_URL":   c.SpotifyAPIURL,
		"SPOTIFY_TOKEN_URL": c.SpotifyTokenURL,
		"MUSICBRAINZ_URL":   c.MusicBrainzURL,
		"COVERART_URL":      c.CoverArtURL,
	} {
		if raw == "" {
			errors = append(errors, fmt.Sprintf("%s cannot be empty", key))
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("%s is not a valid URL: %s", key, raw))
		}
	}

	if c.SpotifyClientID == "" {
		errors = append(errors, "SPOTIFY_CLIENT_ID cannot be empty")
	}
	if c.SpotifyClientSecret == "" {
		errors = append(errors, "SPOTIFY_CLIENT_SECRET cannot be empty")
	}
	if c.CoverArtDir == "" {
		errors = append(errors, "COVERART_DIR cannot be empty")
	}

	if c.MusicBrainzRate <= 0 {
		errors = append(errors, fmt.Sprintf("MUSICBRAINZ_RATE must be positive, got: %v", c.MusicBrainzRate))
	}
	if c.PollLimit < 1 || c.PollLimit > constants.DefaultRecentlyPlayedMax {
		errors = append(errors, fmt.Sprintf("POLL_LIMIT must be between 1 and %d, got: %d", constants.DefaultRecentlyPlayedMax, c.PollLimit))
	}
	if c.WorkerConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("WORKER_CONCURRENCY must be at least 1, got: %d", c.WorkerConcurrency))
	}
	if c.SweepBatch < 1 {
		errors = append(errors, fmt.Sprintf("SWEEP_BATCH must be at least 1, got: %d", c.SweepBatch))
	}

	for key, d := range map[string]time.Duration{
		"POLL_INTERVAL":        c.PollInterval,
		"SCHEDULER_TICK":       c.SchedulerTick,
		"CYCLE_TIMEOUT":        c.CycleTimeout,
		"METADATA_STALE_AFTER": c.MetadataStaleAfter,
		"SWEEP_INTERVAL":       c.SweepInterval,
		"WORKER_POLL_INTERVAL": c.WorkerPollInterval,
		"HTTP_TIMEOUT":         c.HTTPTimeout,
	} {
		if d <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %v", key, d))
		}
	}
	if c.BackoffCeiling < 0 {
		errors = append(errors, fmt.Sprintf("BACKOFF_CEILING cannot be negative, got: %v", c.BackoffCeiling))
	}

	// Validate LogLevel
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	// Validate LogFormat
	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// UserAgent returns the MusicBrainz user agent, falling back to the project default.
func (c *Config) UserAgent() string {
	if c.MusicBrainzUserAgent != "" {
		return c.MusicBrainzUserAgent
	}
	return "playledger/1.0 (https://github.com/cesargomez89/playledger)"
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func (c *Config) getEnvInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		c.loadErrors = append(c.loadErrors, fmt.Sprintf("%s must be an integer, got: %s", key, raw))
		return fallback
	}
	return v
}

func (c *Config) getEnvFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		c.loadErrors = append(c.loadErrors, fmt.Sprintf("%s must be a number, got: %s", key, raw))
		return fallback
	}
	return v
}

func (c *Config) getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		c.loadErrors = append(c.loadErrors, fmt.Sprintf("%s must be a duration like 30s or 168h, got: %s", key, raw))
		return fallback
	}
	return v
}
