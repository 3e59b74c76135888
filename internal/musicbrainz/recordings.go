package musicbrainz

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// RecordingMetadata is what a recording lookup contributes to a track.
type RecordingMetadata struct {
	RecordingID string   `json:"recording_id"`
	Title       string   `json:"title"`
	ISRC        string   `json:"isrc"`
	Genre       string   `json:"genre,omitempty"`
	SubGenre    string   `json:"sub_genre,omitempty"`
	ReleaseID   string   `json:"release_id,omitempty"`
	Artists     []string `json:"artists,omitempty"`
	Duration    int      `json:"duration_ms,omitempty"`
}

type recordingSearchResponse struct {
	Recordings []recording `json:"recordings"`
}

type recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Tags         []tag          `json:"tags"`
	Releases     []releaseJSON  `json:"releases"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	ISRCs        []string       `json:"isrcs"`
	Length       int            `json:"length"`
}

// GetRecordingByISRC returns the first recording carrying isrc, or nil when
// none does. albumTitle picks the matching release among the recording's releases.
func (c *Client) GetRecordingByISRC(ctx context.Context, isrc, albumTitle string) (*RecordingMetadata, error) {
	isrc = strings.ToUpper(strings.TrimSpace(isrc))
	if isrc == "" {
		return nil, nil
	}

	u := fmt.Sprintf("%s/recording?query=isrc:%s&inc=releases+tags+isrcs&fmt=json&limit=1", c.baseURL, url.QueryEscape(isrc))

	var result recordingSearchResponse
	found, err := c.getJSON(ctx, u, &result)
	if err != nil || !found || len(result.Recordings) == 0 {
		return nil, err
	}

	rec := result.Recordings[0]
	var tags []tag
	for _, r := range result.Recordings {
		tags = append(tags, r.Tags...)
	}
	genre, sub := mainGenre(tags, c.genres())

	meta := &RecordingMetadata{
		RecordingID: rec.ID,
		Title:       rec.Title,
		ISRC:        isrc,
		Genre:       genre,
		SubGenre:    sub,
		Artists:     creditNames(rec.ArtistCredit),
		Duration:    rec.Length,
	}
	if rel := selectBestRelease(rec.Releases, albumTitle); rel != nil {
		meta.ReleaseID = rel.ID
	}
	return meta, nil
}

// selectBestRelease prefers a release whose title contains, or is contained
// in, albumTitle once punctuation and spacing are ignored.
func selectBestRelease(releases []releaseJSON, albumTitle string) *releaseJSON {
	if len(releases) == 0 {
		return nil
	}

	squash := strings.NewReplacer(" ", "", "-", "", "_", "", ",", "", "(", "", ")", "")
	normalize := func(s string) string { return squash.Replace(strings.ToLower(s)) }

	want := normalize(albumTitle)
	for i := range releases {
		got := normalize(releases[i].Title)
		if want != "" && got != "" && (strings.Contains(got, want) || strings.Contains(want, got)) {
			return &releases[i]
		}
	}
	return &releases[0]
}
