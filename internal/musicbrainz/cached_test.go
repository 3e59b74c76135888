package musicbrainz

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cesargomez89/playledger/internal/store"
)

type countingLookup struct {
	calls int
	meta  *RecordingMetadata
	err   error
}

func (c *countingLookup) GetRecordingByISRC(_ context.Context, isrc, _ string) (*RecordingMetadata, error) {
	c.calls++
	return c.meta, c.err
}

func newCache(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCachedClient_CachesHits(t *testing.T) {
	inner := &countingLookup{meta: &RecordingMetadata{RecordingID: "rec-1", Genre: "Rock"}}
	cc := NewCachedClient(inner, newCache(t), time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		meta, err := cc.GetRecordingByISRC(ctx, "USQX91300108", "")
		if err != nil {
			t.Fatalf("GetRecordingByISRC failed: %v", err)
		}
		if meta == nil || meta.RecordingID != "rec-1" {
			t.Fatalf("Expected rec-1, got %+v", meta)
		}
	}
	// Keys are case-insensitive on the ISRC.
	if _, err := cc.GetRecordingByISRC(ctx, "usqx91300108", ""); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 1 {
		t.Errorf("Expected 1 upstream call, got %d", inner.calls)
	}
}

func TestCachedClient_CachesMisses(t *testing.T) {
	inner := &countingLookup{}
	cc := NewCachedClient(inner, newCache(t), time.Hour)

	for i := 0; i < 2; i++ {
		meta, err := cc.GetRecordingByISRC(context.Background(), "XX0000000000", "")
		if err != nil || meta != nil {
			t.Fatalf("Expected cached miss, got %+v, %v", meta, err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("Expected 1 upstream call, got %d", inner.calls)
	}
}

func TestCachedClient_ErrorsAreNotCached(t *testing.T) {
	inner := &countingLookup{err: ErrRateLimited}
	cc := NewCachedClient(inner, newCache(t), time.Hour)

	for i := 0; i < 2; i++ {
		if _, err := cc.GetRecordingByISRC(context.Background(), "XX0000000000", ""); !errors.Is(err, ErrRateLimited) {
			t.Fatalf("Expected ErrRateLimited, got %v", err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("Expected every call to reach upstream, got %d", inner.calls)
	}
}

func TestCachedClient_EmptyISRC(t *testing.T) {
	inner := &countingLookup{}
	cc := NewCachedClient(inner, newCache(t), time.Hour)
	if meta, err := cc.GetRecordingByISRC(context.Background(), " ", ""); meta != nil || err != nil {
		t.Errorf("Expected nil, got %+v, %v", meta, err)
	}
	if inner.calls != 0 {
		t.Error("Expected no upstream call for empty ISRC")
	}
}
