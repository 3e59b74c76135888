package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cesargomez89/playledger/internal/constants"
)

func validConfig() Config {
	return Config{
		Port:                "8080",
		DBPath:              "test.db",
		LogLevel:            "info",
		LogFormat:           "text",
		SpotifyAPIURL:       "https://api.spotify.com/v1",
		SpotifyTokenURL:     "https://accounts.spotify.com/api/token",
		SpotifyClientID:     "client",
		SpotifyClientSecret: "secret",
		MusicBrainzURL:      "https://musicbrainz.org/ws/2",
		MusicBrainzRate:     1,
		CoverArtURL:         "https://coverartarchive.org",
		CoverArtDir:         "/tmp/covers",
		PollInterval:        30 * time.Second,
		PollLimit:           50,
		SchedulerTick:       5 * time.Second,
		CycleTimeout:        time.Minute,
		MetadataStaleAfter:  24 * time.Hour,
		BackoffCeiling:      time.Second,
		SweepInterval:       time.Minute,
		SweepBatch:          10,
		WorkerConcurrency:   2,
		WorkerPollInterval:  time.Second,
		HTTPTimeout:         10 * time.Second,
	}
}

func TestLoad(t *testing.T) {
	cfg := Load()

	if cfg.Port != constants.DefaultPort {
		t.Errorf("Expected Port to be %s, got %s", constants.DefaultPort, cfg.Port)
	}

	if cfg.DBPath != constants.DefaultDBPath {
		t.Errorf("Expected DBPath to be %s, got %s", constants.DefaultDBPath, cfg.DBPath)
	}

	if cfg.PollInterval != constants.DefaultPollInterval {
		t.Errorf("Expected PollInterval to be %v, got %v", constants.DefaultPollInterval, cfg.PollInterval)
	}

	if cfg.MetadataStaleAfter != constants.DefaultMetadataStale {
		t.Errorf("Expected MetadataStaleAfter to be %v, got %v", constants.DefaultMetadataStale, cfg.MetadataStaleAfter)
	}
}

func TestLoadWithEnvVars(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("POLL_INTERVAL", "45s")
	t.Setenv("POLL_LIMIT", "20")
	t.Setenv("MUSICBRAINZ_RATE", "0.5")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Expected Port to be 9090, got %s", cfg.Port)
	}

	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("Expected DBPath to be /tmp/test.db, got %s", cfg.DBPath)
	}

	if cfg.PollInterval != 45*time.Second {
		t.Errorf("Expected PollInterval to be 45s, got %v", cfg.PollInterval)
	}

	if cfg.PollLimit != 20 {
		t.Errorf("Expected PollLimit to be 20, got %d", cfg.PollLimit)
	}

	if cfg.MusicBrainzRate != 0.5 {
		t.Errorf("Expected MusicBrainzRate to be 0.5, got %v", cfg.MusicBrainzRate)
	}
}

func TestLoadReportsUnparsableValues(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("POLL_LIMIT", "many")
	t.Setenv("SPOTIFY_CLIENT_ID", "client")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")

	cfg := Load()
	if cfg.PollInterval != constants.DefaultPollInterval {
		t.Errorf("Expected fallback PollInterval, got %v", cfg.PollInterval)
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error for unparsable values")
	}
	for _, key := range []string{"POLL_INTERVAL", "POLL_LIMIT"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("Expected error to mention %s, got: %v", key, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{name: "invalid port - not a number", mutate: func(c *Config) { c.Port = "abc" }, wantErr: true},
		{name: "invalid port - out of range", mutate: func(c *Config) { c.Port = "99999" }, wantErr: true},
		{name: "empty port", mutate: func(c *Config) { c.Port = "" }, wantErr: true},
		{name: "empty db path", mutate: func(c *Config) { c.DBPath = "" }, wantErr: true},
		{name: "missing client id", mutate: func(c *Config) { c.SpotifyClientID = "" }, wantErr: true},
		{name: "relative musicbrainz url", mutate: func(c *Config) { c.MusicBrainzURL = "musicbrainz" }, wantErr: true},
		{name: "zero rate", mutate: func(c *Config) { c.MusicBrainzRate = 0 }, wantErr: true},
		{name: "poll limit above service max", mutate: func(c *Config) { c.PollLimit = 51 }, wantErr: true},
		{name: "zero poll interval", mutate: func(c *Config) { c.PollInterval = 0 }, wantErr: true},
		{name: "zero backoff ceiling", mutate: func(c *Config) { c.BackoffCeiling = 0 }, wantErr: false},
		{name: "negative backoff ceiling", mutate: func(c *Config) { c.BackoffCeiling = -time.Second }, wantErr: true},
		{name: "invalid log level", mutate: func(c *Config) { c.LogLevel = "invalid" }, wantErr: true},
		{name: "invalid log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = ""
	cfg.DBPath = ""
	cfg.LogFormat = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected an error")
	}
	if got := strings.Count(err.Error(), "\n  - "); got != 3 {
		t.Errorf("Expected 3 reported problems, got %d: %v", got, err)
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_VAR", "test_value")
	defer os.Unsetenv("TEST_VAR")

	value := getEnv("TEST_VAR", "default")
	if value != "test_value" {
		t.Errorf("Expected 'test_value', got '%s'", value)
	}

	value = getEnv("NON_EXISTENT_VAR", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}

func TestUserAgent(t *testing.T) {
	cfg := validConfig()
	if !strings.HasPrefix(cfg.UserAgent(), "playledger/") {
		t.Errorf("Expected default user agent, got %s", cfg.UserAgent())
	}

	cfg.MusicBrainzUserAgent = "custom/2.0 (ops@example.com)"
	if cfg.UserAgent() != "custom/2.0 (ops@example.com)" {
		t.Errorf("Expected custom user agent, got %s", cfg.UserAgent())
	}
}
