package catalog

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/cesargomez89/playledger/internal/domain"
)

// NormalizeText folds case, applies NFKC and collapses whitespace so that
// visually equivalent strings compare equal.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	// Casers hold state; one per call keeps this safe across goroutines.
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeArtists normalizes each name and keeps list order. Empty names are dropped.
func NormalizeArtists(artists []string) []string {
	out := make([]string, 0, len(artists))
	for _, a := range artists {
		if n := NormalizeText(a); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// ParseReleaseDate splits a release date into year, month and day using the
// precision the source reported. Parts below the precision are zero.
func ParseReleaseDate(date, precision string) (year, month, day int) {
	parts := strings.Split(strings.TrimSpace(date), "-")
	toInt := func(i int) int {
		if i >= len(parts) {
			return 0
		}
		v, err := strconv.Atoi(parts[i])
		if err != nil || v < 0 {
			return 0
		}
		return v
	}

	year = toInt(0)
	switch precision {
	case "year":
		return year, 0, 0
	case "month":
		return year, toInt(1), 0
	default:
		// "day" or an unreported precision: take whatever is present.
		return year, toInt(1), toInt(2)
	}
}

// AlbumKeyFor computes the identity key of an observed album.
func AlbumKeyFor(obs domain.ObservedAlbum) domain.AlbumKey {
	y, m, d := ParseReleaseDate(obs.ReleaseDate, obs.ReleaseDatePrecision)
	return domain.AlbumKey{
		Title:     NormalizeText(obs.Title),
		Artists:   NormalizeArtists(obs.Artists),
		Year:      y,
		Month:     m,
		Day:       d,
		SpotifyID: strings.TrimSpace(obs.SpotifyID),
	}
}

// TrackKeyFor computes the identity key of an observed track within an album.
func TrackKeyFor(obs domain.ObservedTrack, albumID int64) domain.TrackKey {
	return domain.TrackKey{
		AlbumID:    albumID,
		Title:      NormalizeText(obs.Title),
		Artists:    NormalizeArtists(obs.Artists),
		DurationMS: obs.DurationMS,
		ISRC:       strings.ToUpper(strings.TrimSpace(obs.ISRC)),
	}
}
