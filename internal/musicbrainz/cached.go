package musicbrainz

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cesargomez89/playledger/internal/store"
)

// Cache is a TTL key/value store; *store.DB implements it.
type Cache interface {
	GetCache(ctx context.Context, key string) ([]byte, error)
	SetCache(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

var _ Cache = (*store.DB)(nil)

// RecordingLookup resolves an ISRC to recording metadata.
type RecordingLookup interface {
	GetRecordingByISRC(ctx context.Context, isrc, albumTitle string) (*RecordingMetadata, error)
}

var (
	_ RecordingLookup = (*Client)(nil)
	_ RecordingLookup = (*CachedClient)(nil)
)

// CachedClient caches ISRC lookups, including misses. Release searches are
// never cached so a stale album is always re-queried.
type CachedClient struct {
	client RecordingLookup
	cache  Cache
	ttl    time.Duration
}

func NewCachedClient(client RecordingLookup, cache Cache, ttl time.Duration) *CachedClient {
	return &CachedClient{
		client: client,
		cache:  cache,
		ttl:    ttl,
	}
}

type cachedMetadata struct {
	Metadata *RecordingMetadata `json:"metadata"`
	NotFound bool               `json:"not_found"`
}

func recordingCacheKey(isrc string) string {
	return "mb:isrc:" + strings.ToUpper(strings.TrimSpace(isrc))
}

func (c *CachedClient) GetRecordingByISRC(ctx context.Context, isrc, albumTitle string) (*RecordingMetadata, error) {
	if strings.TrimSpace(isrc) == "" {
		return nil, nil
	}
	key := recordingCacheKey(isrc)

	data, err := c.cache.GetCache(ctx, key)
	if err != nil {
		return nil, err
	}
	if data != nil {
		var cached cachedMetadata
		if unmarshalErr := json.Unmarshal(data, &cached); unmarshalErr == nil {
			return cached.Metadata, nil
		}
	}

	meta, err := c.client.GetRecordingByISRC(ctx, isrc, albumTitle)
	if err != nil {
		return nil, err
	}

	cached := cachedMetadata{Metadata: meta, NotFound: meta == nil}
	if data, marshalErr := json.Marshal(cached); marshalErr == nil {
		_ = c.cache.SetCache(ctx, key, data, c.ttl)
	}
	return meta, nil
}
