package spotify

import (
	"strings"
	"time"

	"github.com/cesargomez89/playledger/internal/domain"
)

func artistNames(artists []artistObject) []string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if n := strings.TrimSpace(a.Name); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// largestImage returns the URL of the widest image.
func largestImage(images []imageObject) string {
	var best imageObject
	for _, img := range images {
		if img.URL != "" && (best.URL == "" || img.Width > best.Width) {
			best = img
		}
	}
	return best.URL
}

func toObservedAlbum(a albumObject) domain.ObservedAlbum {
	return domain.ObservedAlbum{
		SpotifyID:            a.ID,
		Title:                a.Name,
		Type:                 a.AlbumType,
		Artists:              artistNames(a.Artists),
		ReleaseDate:          a.ReleaseDate,
		ReleaseDatePrecision: a.ReleaseDatePrecision,
		TrackCount:           a.TotalTracks,
		Genres:               a.Genres,
		ImageURL:             largestImage(a.Images),
		UPC:                  a.ExternalIDs.UPC,
		EAN:                  a.ExternalIDs.EAN,
	}
}

func toObservedTrack(t trackObject) domain.ObservedTrack {
	return domain.ObservedTrack{
		SpotifyID:   t.ID,
		Title:       t.Name,
		Artists:     artistNames(t.Artists),
		DurationMS:  t.DurationMS,
		DiscNumber:  t.DiscNumber,
		TrackNumber: t.TrackNumber,
		ISRC:        t.ExternalIDs.ISRC,
	}
}

// toObservation converts one history item. An unparseable played_at leaves
// PlayedAt zero; the recorder rejects it.
func toObservation(item playHistoryItem) domain.Observation {
	playedAt, _ := time.Parse(time.RFC3339Nano, item.PlayedAt)
	return domain.Observation{
		Track:      toObservedTrack(item.Track),
		Album:      toObservedAlbum(item.Track.Album),
		PlayedAt:   playedAt.UTC(),
		Popularity: item.Track.Popularity,
	}
}
