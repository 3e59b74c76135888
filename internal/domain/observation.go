package domain

import "time"

// ObservedAlbum is album data as reported by a streaming source, before resolution.
type ObservedAlbum struct {
	SpotifyID            string
	Title                string
	Type                 string
	Artists              []string
	ReleaseDate          string
	ReleaseDatePrecision string // year, month or day
	TrackCount           int
	Genres               []string
	ImageURL             string
	UPC                  string
	EAN                  string
}

// ObservedTrack is track data as reported by a streaming source, before resolution.
type ObservedTrack struct {
	SpotifyID   string
	Title       string
	Artists     []string
	DurationMS  int
	DiscNumber  int
	TrackNumber int
	ISRC        string
}

// Observation is a single playback event.
type Observation struct {
	Track      ObservedTrack
	Album      ObservedAlbum
	PlayedAt   time.Time
	Popularity *int
}

// AlbumKey is the normalized identity of an album. Unknown parts are zero values.
type AlbumKey struct {
	Title     string
	Artists   []string
	Year      int
	Month     int
	Day       int
	SpotifyID string
}

// TrackKey is the normalized identity of a track within one album.
type TrackKey struct {
	AlbumID    int64
	Title      string
	Artists    []string
	DurationMS int
	ISRC       string
}
