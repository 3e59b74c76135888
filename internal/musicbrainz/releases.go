package musicbrainz

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// Release is one release search candidate, in service order.
type Release struct {
	ID             string
	Title          string
	Status         string
	Date           string
	Country        string
	Barcode        string
	ReleaseGroupID string
	PrimaryType    string
	Artists        []string
	TrackCount     int
	Score          int
}

// ReleaseQuery describes an album for a title and artist search.
type ReleaseQuery struct {
	Title   string
	Artists []string
}

// String renders the Lucene query sent to the search endpoint.
func (q ReleaseQuery) String() string {
	parts := []string{fmt.Sprintf(`release:"%s"`, escapeLucene(q.Title))}
	for _, a := range q.Artists {
		if a = strings.TrimSpace(a); a != "" {
			parts = append(parts, fmt.Sprintf(`artist:"%s"`, escapeLucene(a)))
		}
	}
	return strings.Join(parts, " AND ")
}

type releaseSearchResponse struct {
	Releases []releaseJSON `json:"releases"`
	Count    int           `json:"count"`
}

type releaseJSON struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	Date         string         `json:"date"`
	Country      string         `json:"country"`
	Barcode      string         `json:"barcode"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	ReleaseGroup struct {
		ID          string `json:"id"`
		PrimaryType string `json:"primary-type"`
	} `json:"release-group"`
	Media []struct {
		Format     string `json:"format"`
		TrackCount int    `json:"track-count"`
	} `json:"media"`
	TrackCount int `json:"track-count"`
	Score      int `json:"score"`
}

func (r releaseJSON) toRelease() Release {
	count := r.TrackCount
	if count == 0 {
		for _, m := range r.Media {
			count += m.TrackCount
		}
	}
	return Release{
		ID:             r.ID,
		Title:          r.Title,
		Status:         r.Status,
		Date:           r.Date,
		Country:        r.Country,
		Barcode:        r.Barcode,
		ReleaseGroupID: r.ReleaseGroup.ID,
		PrimaryType:    r.ReleaseGroup.PrimaryType,
		Artists:        creditNames(r.ArtistCredit),
		TrackCount:     count,
		Score:          r.Score,
	}
}

// SearchReleases runs a title and artist release search.
func (c *Client) SearchReleases(ctx context.Context, q ReleaseQuery) ([]Release, error) {
	if strings.TrimSpace(q.Title) == "" {
		return nil, nil
	}
	return c.searchReleases(ctx, q.String())
}

// LookupBarcode searches releases by UPC or EAN.
func (c *Client) LookupBarcode(ctx context.Context, barcode string) ([]Release, error) {
	barcode = strings.TrimFunc(barcode, unicode.IsSpace)
	if barcode == "" {
		return nil, nil
	}
	return c.searchReleases(ctx, "barcode:"+escapeLucene(barcode))
}

func (c *Client) searchReleases(ctx context.Context, query string) ([]Release, error) {
	u := fmt.Sprintf("%s/release?query=%s&fmt=json&limit=%d", c.baseURL, url.QueryEscape(query), c.limit)

	var result releaseSearchResponse
	found, err := c.getJSON(ctx, u, &result)
	if err != nil || !found {
		return nil, err
	}

	out := make([]Release, 0, len(result.Releases))
	for _, r := range result.Releases {
		if r.ID == "" {
			continue
		}
		out = append(out, r.toRelease())
	}
	return out, nil
}
