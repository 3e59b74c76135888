package domain

import (
	"time"
)

type JobType string

const (
	JobTypeEnrichAlbum   JobType = "enrich_album"
	JobTypeFetchCoverArt JobType = "fetch_cover_art"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job represents a work item in the queue
type Job struct {
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	Error     *string   `json:"error,omitempty" db:"error"`
	ID        string    `json:"id" db:"id"`
	Type      JobType   `json:"type" db:"type"`
	Status    JobStatus `json:"status" db:"status"`
	SourceID  string    `json:"source_id" db:"source_id"`
	Attempts  int       `json:"attempts" db:"attempts"`
}

// Album is a catalog release shared by every user that played one of its tracks.
type Album struct { //nolint:govet // field ordering prioritizes readability over memory alignment
	ID               int64       `json:"id" db:"id"`
	Title            string      `json:"title" db:"title"`
	NormTitle        string      `json:"-" db:"norm_title"`
	Type             string      `json:"type" db:"type"`
	Artists          StringSlice `json:"artists" db:"artists"`
	NormArtists      StringSlice `json:"-" db:"norm_artists"`
	ReleaseYear      int         `json:"release_year" db:"release_year"`
	ReleaseMonth     int         `json:"release_month" db:"release_month"`
	ReleaseDay       int         `json:"release_day" db:"release_day"`
	ReleasePrecision string      `json:"release_precision" db:"release_precision"`
	TrackCount       int         `json:"track_count" db:"track_count"`
	Genres           StringSlice `json:"genres" db:"genres"`
	ImageURL         string      `json:"image_url" db:"image_url"`
	SpotifyID        string      `json:"spotify_id" db:"spotify_id"`
	UPC              string      `json:"upc,omitempty" db:"upc"`
	EAN              string      `json:"ean,omitempty" db:"ean"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

// Barcode returns the UPC, or the EAN when no UPC is known.
func (a *Album) Barcode() string {
	if a.UPC != "" {
		return a.UPC
	}
	return a.EAN
}

// Track belongs to exactly one Album row.
type Track struct { //nolint:govet // field ordering prioritizes readability over memory alignment
	ID            int64       `json:"id" db:"id"`
	AlbumID       int64       `json:"album_id" db:"album_id"`
	Title         string      `json:"title" db:"title"`
	NormTitle     string      `json:"-" db:"norm_title"`
	Artists       StringSlice `json:"artists" db:"artists"`
	NormArtists   StringSlice `json:"-" db:"norm_artists"`
	DurationMS    int         `json:"duration_ms" db:"duration_ms"`
	DiscNumber    int         `json:"disc_number" db:"disc_number"`
	TrackNumber   int         `json:"track_number" db:"track_number"`
	ISRC          string      `json:"isrc" db:"isrc"`
	SpotifyID     string      `json:"spotify_id" db:"spotify_id"`
	RecordingMBID string      `json:"recording_mbid,omitempty" db:"recording_mbid"`
	Genre         string      `json:"genre,omitempty" db:"genre"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// Play is one listen event. ListenedAtMS is Unix milliseconds so equality is exact.
type Play struct {
	ID           int64 `json:"id" db:"id"`
	UserID       int64 `json:"user_id" db:"user_id"`
	TrackID      int64 `json:"track_id" db:"track_id"`
	ListenedAtMS int64 `json:"listened_at_ms" db:"listened_at"`
	Popularity   *int  `json:"popularity,omitempty" db:"popularity"`
}

func (p *Play) ListenedAt() time.Time {
	return time.UnixMilli(p.ListenedAtMS).UTC()
}

// AlbumMetadata is the current association between an album and one external source.
type AlbumMetadata struct {
	ID                  int64   `json:"id" db:"id"`
	AlbumID             int64   `json:"album_id" db:"album_id"`
	Source              string  `json:"source" db:"source"`
	ExternalID          *string `json:"external_id,omitempty" db:"external_id"`
	Matched             bool    `json:"matched" db:"matched"`
	CandidateTrackCount int     `json:"candidate_track_count" db:"candidate_track_count"`
	CheckedAtMS         int64   `json:"checked_at_ms" db:"checked_at"`
}

func (m *AlbumMetadata) CheckedAt() time.Time {
	if m == nil || m.CheckedAtMS == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.CheckedAtMS).UTC()
}

// User is a listener whose streaming history is polled.
type User struct { //nolint:govet // field ordering prioritizes readability over memory alignment
	ID            int64     `json:"id" db:"id"`
	DisplayName   string    `json:"display_name" db:"display_name"`
	SpotifyUserID string    `json:"spotify_user_id" db:"spotify_user_id"`
	AccessToken   string    `json:"-" db:"access_token"`
	RefreshToken  string    `json:"-" db:"refresh_token"`
	TokenType     string    `json:"-" db:"token_type"`
	TokenExpiry   time.Time `json:"-" db:"token_expiry"`
	Active        bool      `json:"active" db:"active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
