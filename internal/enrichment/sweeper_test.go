package enrichment

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/freshness"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/musicbrainz"
)

type fakeEnqueuer struct {
	mu      sync.Mutex
	sources []string
	fail    string
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, jobType domain.JobType, sourceID string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sourceID == f.fail {
		return nil, errors.New("queue unavailable")
	}
	f.sources = append(f.sources, sourceID)
	return &domain.Job{ID: "job-" + sourceID, Type: jobType, SourceID: sourceID}, nil
}

func TestSweeper_QueuesDueAlbums(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	fresh := h.album(t, "Discovery", 14, "")
	unresolved := h.album(t, "Homework", 16, "")
	h.searcher.search = releases(musicbrainz.Release{ID: "R", TrackCount: 14})
	if _, err := h.engine.EnrichAlbum(ctx, fresh.ID); err != nil {
		t.Fatalf("EnrichAlbum failed: %v", err)
	}

	q := &fakeEnqueuer{}
	gate := &freshness.Gate{Interval: time.Hour, Now: func() time.Time { return h.now }}
	s := NewSweeper(h.db, q, gate, time.Minute, 10, logger.Discard())

	n, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 1 || len(q.sources) != 1 || q.sources[0] != strconv.FormatInt(unresolved.ID, 10) {
		t.Errorf("Expected only the unresolved album queued, got %v", q.sources)
	}

	h.now = h.now.Add(2 * time.Hour)
	q.sources = nil
	if n, _ := s.Sweep(ctx); n != 2 {
		t.Errorf("Expected stale and unresolved albums queued, got %d", n)
	}
}

func TestSweeper_EnqueueFailureContinues(t *testing.T) {
	h := newHarness(t)
	first := h.album(t, "Discovery", 14, "")
	h.album(t, "Homework", 16, "")

	q := &fakeEnqueuer{fail: strconv.FormatInt(first.ID, 10)}
	s := NewSweeper(h.db, q, nil, 0, 0, logger.Discard())

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected the remaining album to be queued, got %d", n)
	}
}

func TestSweeper_ServeStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	s := NewSweeper(h.db, &fakeEnqueuer{}, nil, time.Hour, 10, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
