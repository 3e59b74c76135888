// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort              = "8080"
	DefaultDBPath            = "playledger.db"
	DefaultSpotifyAPIURL     = "https://api.spotify.com/v1"
	DefaultSpotifyTokenURL   = "https://accounts.spotify.com/api/token"
	DefaultMusicBrainzURL    = "https://musicbrainz.org/ws/2"
	DefaultCoverArtURL       = "https://coverartarchive.org"
	DefaultCoverArtDir       = "covers"
	DefaultMusicBrainzRate   = 1.0
	DefaultPollInterval      = 30 * time.Second
	DefaultPollLimit         = 50
	DefaultSchedulerTick     = 5 * time.Second
	DefaultCycleTimeout      = 2 * time.Minute
	DefaultMetadataStale     = 7 * 24 * time.Hour
	DefaultBackoffCeiling    = 5 * time.Second
	DefaultSweepInterval     = 10 * time.Minute
	DefaultSweepBatch        = 100
	DefaultConcurrency       = 2
	DefaultWorkerPoll        = 2 * time.Second
	DefaultHTTPTimeout       = 15 * time.Second
	ImageHTTPTimeout         = 30 * time.Second
	DefaultCacheTTL          = 7 * 24 * time.Hour
	DefaultRetryBase         = 1 * time.Second
	DefaultRetryCount        = 3
	MaxRetryAfterHold        = 30 * time.Second
	DefaultMusicBrainzLimit  = 25
	DefaultRecentlyPlayedMax = 50
	JobRetention             = 7 * 24 * time.Hour
	JanitorInterval          = time.Hour
)

// Metadata sources
const (
	SourceMusicBrainzRelease = "musicbrainz:release"
)

// Image sizes
const (
	CoverArtSizeFront = "front-500"
	ExtJPG            = ".jpg"
)

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)

// API
const (
	MaxJobListItems    = 50
	MaxPlayListItems   = 200
	APIRequestsPerMin  = 120
	MaxSettingsBody    = 1 << 20
	HTTPShutdownWindow = 10 * time.Second
)
