// Package musicbrainz is a client for the MusicBrainz web service: release
// search by title and artist or by barcode, and recording lookup by ISRC.
package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"sync"

	"github.com/cesargomez89/playledger/internal/constants"
	"github.com/cesargomez89/playledger/internal/httpclient"
)

var (
	// ErrRateLimited is returned when MusicBrainz answers 429 or 503.
	ErrRateLimited = httpclient.ErrRateLimited
	// ErrMalformedResponse is returned when a 200 body cannot be decoded.
	ErrMalformedResponse = errors.New("musicbrainz: malformed response")
)

type Client struct {
	http    *httpclient.Client
	baseURL string
	limit   int

	mu       sync.RWMutex
	genreMap map[string]string
}

// NewClient builds a client on top of a shared transport. The transport
// carries the rate limit and User-Agent MusicBrainz requires.
func NewClient(baseURL string, transport *httpclient.Client) *Client {
	return &Client{
		http:     transport,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		genreMap: DefaultGenreMap,
		limit:    constants.DefaultMusicBrainzLimit,
	}
}

// SetGenreMap replaces the tag to genre map. A nil map restores DefaultGenreMap.
func (c *Client) SetGenreMap(m map[string]string) {
	if m == nil {
		m = DefaultGenreMap
	}
	c.mu.Lock()
	c.genreMap = m
	c.mu.Unlock()
}

// GetGenreMap returns a copy of the active tag to genre map.
func (c *Client) GetGenreMap() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.genreMap)
}

func (c *Client) genres() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.genreMap
}

// getJSON fetches u and decodes a 200 body into v. It reports false for 404.
func (c *Client) getJSON(ctx context.Context, u string, v any) (bool, error) {
	resp, err := c.http.Get(ctx, u, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return false, fmt.Errorf("musicbrainz request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("musicbrainz returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return true, nil
}

// Lucene reserved characters; see the MusicBrainz search syntax docs.
var luceneEscaper = strings.NewReplacer(
	`\`, `\\`, `+`, `\+`, `-`, `\-`, `!`, `\!`, `(`, `\(`, `)`, `\)`,
	`:`, `\:`, `^`, `\^`, `[`, `\[`, `]`, `\]`, `"`, `\"`, `{`, `\{`,
	`}`, `\}`, `~`, `\~`, `*`, `\*`, `?`, `\?`, `|`, `\|`, `&`, `\&`, `/`, `\/`,
)

func escapeLucene(s string) string {
	return luceneEscaper.Replace(s)
}

type tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type artistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
	Artist     struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

func creditNames(credits []artistCredit) []string {
	if len(credits) == 0 {
		return nil
	}
	names := make([]string, len(credits))
	for i, ac := range credits {
		names[i] = ac.Artist.Name
		if names[i] == "" {
			names[i] = ac.Name
		}
	}
	return names
}
