package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/httpclient"
	"github.com/cesargomez89/playledger/internal/logger"
)

const recentlyPlayedBody = `{
	"items": [
		{
			"played_at": "2024-05-01T10:15:30.123Z",
			"track": {
				"id": "t1", "name": "One More Time", "duration_ms": 320357,
				"disc_number": 1, "track_number": 1, "popularity": 77,
				"external_ids": {"isrc": "GBDUW0000053"},
				"artists": [{"id": "a1", "name": "Daft Punk"}],
				"album": {
					"id": "al1", "name": "Discovery", "album_type": "album",
					"release_date": "2001-03-12", "release_date_precision": "day",
					"total_tracks": 14,
					"artists": [{"id": "a1", "name": "Daft Punk"}],
					"images": [{"url": "small.jpg", "width": 64}, {"url": "big.jpg", "width": 640}]
				}
			}
		},
		{
			"played_at": "2024-05-01T10:10:00Z",
			"track": {
				"id": "t2", "name": "Aerodynamic", "duration_ms": 212600,
				"artists": [{"name": "Daft Punk"}],
				"album": {"id": "al1", "name": "Discovery", "total_tracks": 14}
			}
		},
		{"played_at": "2024-05-01T10:00:00Z", "track": {}}
	]
}`

type fakeTokenStore struct {
	mu      sync.Mutex
	updates []string
}

func (f *fakeTokenStore) UpdateUserToken(_ context.Context, _ int64, access, _, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, access)
	return nil
}

type fakeSpotify struct {
	tokenCalls  atomic.Int32
	tokenStatus int
	apiStatus   int
	auth        atomic.Value
}

func (f *fakeSpotify) lastAuth() string {
	v, _ := f.auth.Load().(string)
	return v
}

func (f *fakeSpotify) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.Form.Get("grant_type") != "refresh_token" {
			t.Errorf("Expected refresh_token grant, got %q", r.Form.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
		f.auth.Store(r.Header.Get("Authorization"))
		if f.apiStatus != 0 {
			w.WriteHeader(f.apiStatus)
			return
		}
		if r.URL.Query().Get("limit") != "50" {
			t.Errorf("Expected limit=50, got %q", r.URL.Query().Get("limit"))
		}
		_, _ = w.Write([]byte(recentlyPlayedBody))
	})
	mux.HandleFunc("/v1/albums", func(w http.ResponseWriter, r *http.Request) {
		if ids := r.URL.Query().Get("ids"); ids != "al1" {
			t.Errorf("Expected one deduplicated album id, got %q", ids)
		}
		_, _ = w.Write([]byte(`{"albums": [{"id": "al1", "genres": ["french house"], "external_ids": {"upc": "724384960650"}}]}`))
	})
	return mux
}

func newTestSource(t *testing.T, fs *fakeSpotify, user *domain.User) (*Source, *fakeTokenStore) {
	t.Helper()
	srv := httptest.NewServer(fs.handler(t))
	t.Cleanup(srv.Close)

	api := httpclient.NewClient(httpclient.Options{Name: "spotify-test", RetryBase: time.Millisecond, Logger: logger.Discard()})
	tokens := &fakeTokenStore{}
	f := NewFactory(FactoryConfig{
		APIURL:       srv.URL + "/v1",
		TokenURL:     srv.URL + "/token",
		ClientID:     "id",
		ClientSecret: "secret",
	}, api, tokens, logger.Discard())
	return f.ForUser(context.Background(), user), tokens
}

func validUser() *domain.User {
	return &domain.User{ID: 1, DisplayName: "ana", AccessToken: "stored", RefreshToken: "refresh", TokenExpiry: time.Now().Add(time.Hour)}
}

func TestRecentlyPlayed(t *testing.T) {
	fs := &fakeSpotify{}
	src, tokens := newTestSource(t, fs, validUser())

	obs, err := src.RecentlyPlayed(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentlyPlayed failed: %v", err)
	}
	if fs.lastAuth() != "Bearer stored" {
		t.Errorf("Expected stored token to be used, got %q", fs.lastAuth())
	}
	if fs.tokenCalls.Load() != 0 || len(tokens.updates) != 0 {
		t.Error("Expected no refresh for a valid token")
	}

	if len(obs) != 2 {
		t.Fatalf("Expected 2 observations, got %d", len(obs))
	}
	first := obs[0]
	if first.Track.Title != "One More Time" || first.Track.ISRC != "GBDUW0000053" {
		t.Errorf("Unexpected track %+v", first.Track)
	}
	if first.Album.Title != "Discovery" || first.Album.TrackCount != 14 || first.Album.ImageURL != "big.jpg" {
		t.Errorf("Unexpected album %+v", first.Album)
	}
	if first.Album.UPC != "724384960650" || len(first.Album.Genres) != 1 {
		t.Errorf("Expected album details to be filled, got %+v", first.Album)
	}
	if want := time.Date(2024, 5, 1, 10, 15, 30, 123_000_000, time.UTC); !first.PlayedAt.Equal(want) {
		t.Errorf("PlayedAt = %s, want %s", first.PlayedAt, want)
	}
	if first.Popularity == nil || *first.Popularity != 77 {
		t.Errorf("Expected popularity 77, got %v", first.Popularity)
	}
	if obs[1].Popularity != nil {
		t.Error("Expected missing popularity to stay nil")
	}
	if !obs[0].PlayedAt.After(obs[1].PlayedAt) {
		t.Error("Expected API order to be preserved")
	}
}

func TestRecentlyPlayed_RefreshesExpiredToken(t *testing.T) {
	fs := &fakeSpotify{}
	user := validUser()
	user.TokenExpiry = time.Now().Add(-time.Minute)
	src, tokens := newTestSource(t, fs, user)

	if _, err := src.RecentlyPlayed(context.Background(), 50); err != nil {
		t.Fatalf("RecentlyPlayed failed: %v", err)
	}
	if fs.tokenCalls.Load() != 1 {
		t.Errorf("Expected 1 token refresh, got %d", fs.tokenCalls.Load())
	}
	if fs.lastAuth() != "Bearer fresh" {
		t.Errorf("Expected refreshed token, got %q", fs.lastAuth())
	}
	if len(tokens.updates) != 1 || tokens.updates[0] != "fresh" {
		t.Errorf("Expected refreshed token to be persisted once, got %v", tokens.updates)
	}
}

func TestRecentlyPlayed_AuthFailures(t *testing.T) {
	tests := []struct {
		name   string
		fs     *fakeSpotify
		expiry time.Duration
	}{
		{"api rejects token", &fakeSpotify{apiStatus: http.StatusUnauthorized}, time.Hour},
		{"refresh rejected", &fakeSpotify{tokenStatus: http.StatusBadRequest}, -time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := validUser()
			user.TokenExpiry = time.Now().Add(tt.expiry)
			src, _ := newTestSource(t, tt.fs, user)

			_, err := src.RecentlyPlayed(context.Background(), 50)
			if !errors.Is(err, ErrUnauthorized) {
				t.Errorf("Expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestRefreshCredential(t *testing.T) {
	fs := &fakeSpotify{}
	src, tokens := newTestSource(t, fs, validUser())

	if err := src.RefreshCredential(context.Background()); err != nil {
		t.Fatalf("RefreshCredential failed: %v", err)
	}
	if fs.tokenCalls.Load() != 1 {
		t.Errorf("Expected forced refresh, got %d token calls", fs.tokenCalls.Load())
	}
	if len(tokens.updates) != 1 {
		t.Errorf("Expected token persisted, got %v", tokens.updates)
	}

	if _, err := src.RecentlyPlayed(context.Background(), 50); err != nil {
		t.Fatalf("RecentlyPlayed failed: %v", err)
	}
	if fs.lastAuth() != "Bearer fresh" {
		t.Errorf("Expected refreshed token on next call, got %q", fs.lastAuth())
	}
}

func TestRefreshCredential_NoRefreshToken(t *testing.T) {
	user := validUser()
	user.RefreshToken = ""
	src, _ := newTestSource(t, &fakeSpotify{}, user)

	if err := src.RefreshCredential(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestToObservation_BadTimestamp(t *testing.T) {
	o := toObservation(playHistoryItem{PlayedAt: "yesterday", Track: trackObject{Name: "x"}})
	if !o.PlayedAt.IsZero() {
		t.Errorf("Expected zero PlayedAt, got %s", o.PlayedAt)
	}
}

func TestLargestImage(t *testing.T) {
	got := largestImage([]imageObject{{URL: "a", Width: 300}, {URL: "", Width: 900}, {URL: "b", Width: 640}})
	if got != "b" {
		t.Errorf("largestImage() = %q, want b", got)
	}
	if largestImage(nil) != "" {
		t.Error("Expected empty URL for no images")
	}
	if !strings.HasPrefix(largestImage([]imageObject{{URL: "only"}}), "only") {
		t.Error("Expected the single image")
	}
}
