// Package spotify reads a user's recently played tracks from the Spotify Web
// API. Access tokens are refreshed through golang.org/x/oauth2 and every new
// token is persisted back to the user row.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/cesargomez89/playledger/internal/constants"
	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/httpclient"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/store"
)

var (
	// ErrUnauthorized means the access token was rejected or could not be refreshed.
	ErrUnauthorized = errors.New("spotify: unauthorized")
	// ErrMalformedResponse means a 200 body could not be decoded.
	ErrMalformedResponse = errors.New("spotify: malformed response")
)

// maxAlbumsPerRequest is the documented limit of GET /albums?ids=.
const maxAlbumsPerRequest = 20

// TokenStore persists refreshed tokens; *store.DB implements it.
type TokenStore interface {
	UpdateUserToken(ctx context.Context, id int64, accessToken, refreshToken, tokenType string, expiry time.Time) error
}

var _ TokenStore = (*store.DB)(nil)

type FactoryConfig struct {
	APIURL       string
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// Factory builds one Source per user per cycle from the stored credential.
type Factory struct {
	oauth   oauth2.Config
	api     *httpclient.Client
	tokens  TokenStore
	logger  *logger.Logger
	baseURL string
}

func NewFactory(cfg FactoryConfig, api *httpclient.Client, tokens TokenStore, log *logger.Logger) *Factory {
	if log == nil {
		log = logger.Default()
	}
	return &Factory{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		api:     api,
		tokens:  tokens,
		logger:  log.WithComponent("spotify"),
		baseURL: strings.TrimSuffix(cfg.APIURL, "/"),
	}
}

// ForUser returns a Source bound to user's credential. ctx scopes token
// refreshes and should be the cycle context.
func (f *Factory) ForUser(ctx context.Context, user *domain.User) *Source {
	// Token refreshes go through the shared transport's client.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.api.GetUnderlyingClient())

	tok := &oauth2.Token{
		AccessToken:  user.AccessToken,
		RefreshToken: user.RefreshToken,
		TokenType:    user.TokenType,
		Expiry:       user.TokenExpiry,
	}
	s := &Source{
		api:     f.api,
		oauth:   &f.oauth,
		ctx:     ctx,
		baseURL: f.baseURL,
		userID:  user.ID,
		persist: f.persister(user.ID),
		logger:  f.logger.WithUser(user.ID, user.DisplayName),
	}
	s.setToken(tok)
	return s
}

func (f *Factory) persister(userID int64) func(context.Context, *oauth2.Token) error {
	return func(ctx context.Context, tok *oauth2.Token) error {
		return f.tokens.UpdateUserToken(ctx, userID, tok.AccessToken, tok.RefreshToken, tok.Type(), tok.Expiry)
	}
}

// Source is one user's view of the Spotify API.
type Source struct {
	api     *httpclient.Client
	oauth   *oauth2.Config
	ctx     context.Context
	persist func(context.Context, *oauth2.Token) error
	logger  *logger.Logger
	baseURL string
	userID  int64

	mu      sync.Mutex
	ts      oauth2.TokenSource
	current *oauth2.Token
}

func (s *Source) setToken(tok *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = tok
	s.ts = oauth2.ReuseTokenSource(tok, s.oauth.TokenSource(s.ctx, tok))
}

// token returns a valid access token, refreshing and persisting as needed.
func (s *Source) token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	ts, prev := s.ts, s.current
	s.mu.Unlock()

	tok, err := ts.Token()
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if prev == nil || tok.AccessToken != prev.AccessToken {
		s.mu.Lock()
		s.current = tok
		s.mu.Unlock()
		if err := s.persist(ctx, tok); err != nil {
			s.logger.Warn("Failed to persist refreshed token", "error", err)
		} else {
			s.logger.Debug("Access token refreshed", "expiry", tok.Expiry)
		}
	}
	return tok, nil
}

func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return fmt.Errorf("%w: token refresh rejected: %v", ErrUnauthorized, err)
	}
	return fmt.Errorf("token refresh failed: %w", err)
}

// RefreshCredential forces a refresh regardless of the stored expiry.
func (s *Source) RefreshCredential(ctx context.Context) error {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()

	if cur == nil || cur.RefreshToken == "" {
		return fmt.Errorf("%w: no refresh token for user %d", ErrUnauthorized, s.userID)
	}
	expired := &oauth2.Token{RefreshToken: cur.RefreshToken, Expiry: time.Unix(1, 0)}
	s.setToken(expired)
	// Clearing current makes token() persist whatever comes back.
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	_, err := s.token(ctx)
	return err
}

// RecentlyPlayed returns up to limit events in the order the API returns them.
func (s *Source) RecentlyPlayed(ctx context.Context, limit int) ([]domain.Observation, error) {
	if limit <= 0 || limit > constants.DefaultRecentlyPlayedMax {
		limit = constants.DefaultRecentlyPlayedMax
	}

	u := fmt.Sprintf("%s/me/player/recently-played?limit=%d", s.baseURL, limit)
	var resp recentlyPlayedResponse
	if err := s.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Observation, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Track.ID == "" && item.Track.Name == "" {
			continue
		}
		out = append(out, toObservation(item))
	}

	s.fillAlbumDetails(ctx, out)
	return out, nil
}

// fillAlbumDetails fetches full album objects for barcodes and genres, which
// the simplified album in play history lacks. Failures are logged and ignored.
func (s *Source) fillAlbumDetails(ctx context.Context, obs []domain.Observation) {
	var ids []string
	seen := make(map[string]bool)
	for _, o := range obs {
		id := o.Album.SpotifyID
		if id == "" || seen[id] || o.Album.UPC != "" || o.Album.EAN != "" {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}

	details := make(map[string]*albumObject, len(ids))
	for start := 0; start < len(ids); start += maxAlbumsPerRequest {
		end := min(start+maxAlbumsPerRequest, len(ids))
		u := fmt.Sprintf("%s/albums?ids=%s", s.baseURL, url.QueryEscape(strings.Join(ids[start:end], ",")))

		var resp severalAlbumsResponse
		if err := s.getJSON(ctx, u, &resp); err != nil {
			s.logger.Warn("Failed to fetch album details", "albums", end-start, "error", err)
			return
		}
		for _, a := range resp.Albums {
			if a != nil {
				details[a.ID] = a
			}
		}
	}

	for i := range obs {
		a, ok := details[obs[i].Album.SpotifyID]
		if !ok {
			continue
		}
		obs[i].Album.UPC = a.ExternalIDs.UPC
		obs[i].Album.EAN = a.ExternalIDs.EAN
		if len(obs[i].Album.Genres) == 0 {
			obs[i].Album.Genres = a.Genres
		}
	}
}

func (s *Source) getJSON(ctx context.Context, u string, v any) error {
	tok, err := s.token(ctx)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	header.Set("Accept", "application/json")

	resp, err := s.api.Get(ctx, u, header)
	if err != nil {
		return fmt.Errorf("spotify request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	default:
		return fmt.Errorf("spotify returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
