package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/store"
)

// fakeStore scripts FindAlbums/InsertAlbum results call by call.
type fakeStore struct {
	mu sync.Mutex

	findAlbums   []func() ([]*domain.Album, error)
	insertAlbum  func(a *domain.Album) error
	findTracks   []func() ([]*domain.Track, error)
	insertTrack  func(tr *domain.Track) error
	findCalls    int
	insertCalls  int
	backfilled   []string
	trackFinds   int
	trackInserts int
}

func (f *fakeStore) FindAlbums(_ context.Context, _ domain.AlbumKey) ([]*domain.Album, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.findCalls
	f.findCalls++
	if i >= len(f.findAlbums) {
		return nil, nil
	}
	return f.findAlbums[i]()
}

func (f *fakeStore) InsertAlbum(_ context.Context, a *domain.Album) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertAlbum == nil {
		a.ID = 1
		return nil
	}
	return f.insertAlbum(a)
}

func (f *fakeStore) BackfillAlbumExternalIDs(_ context.Context, _ int64, upc, ean string) error {
	f.backfilled = append(f.backfilled, upc+"|"+ean)
	return nil
}

func (f *fakeStore) FindTracks(_ context.Context, _ domain.TrackKey) ([]*domain.Track, error) {
	i := f.trackFinds
	f.trackFinds++
	if i >= len(f.findTracks) {
		return nil, nil
	}
	return f.findTracks[i]()
}

func (f *fakeStore) InsertTrack(_ context.Context, tr *domain.Track) error {
	f.trackInserts++
	if f.insertTrack == nil {
		tr.ID = 1
		return nil
	}
	return f.insertTrack(tr)
}

func (f *fakeStore) BackfillTrackSpotifyID(_ context.Context, _ int64, _ string) error {
	return nil
}

func albums(ids ...int64) func() ([]*domain.Album, error) {
	return func() ([]*domain.Album, error) {
		out := make([]*domain.Album, len(ids))
		for i, id := range ids {
			out[i] = &domain.Album{ID: id, UPC: "known"}
		}
		return out, nil
	}
}

func observedAlbum() domain.ObservedAlbum {
	return domain.ObservedAlbum{
		SpotifyID:            "4m2880jivSbbyEGAKfITCa",
		Title:                "Random Access Memories",
		Type:                 "album",
		Artists:              []string{"Daft Punk"},
		ReleaseDate:          "2013-05-20",
		ReleaseDatePrecision: "day",
		TrackCount:           13,
		UPC:                  "886443919371",
	}
}

func observedTrack() domain.ObservedTrack {
	return domain.ObservedTrack{
		SpotifyID:   "69kOkLUCkxIZYexIgSG8rq",
		Title:       "Get Lucky (feat. Pharrell Williams and Nile Rodgers)",
		Artists:     []string{"Daft Punk", "Pharrell Williams", "Nile Rodgers"},
		DurationMS:  369626,
		DiscNumber:  1,
		TrackNumber: 8,
		ISRC:        "USQX91300108",
	}
}

func setupResolver(t *testing.T) (*Resolver, *store.DB) {
	t.Helper()
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewResolver(db, logger.Discard()), db
}

func TestResolveAlbum_Idempotent(t *testing.T) {
	r, _ := setupResolver(t)
	ctx := context.Background()

	first, err := r.ResolveAlbum(ctx, observedAlbum())
	if err != nil {
		t.Fatalf("ResolveAlbum failed: %v", err)
	}
	if !first.Created {
		t.Error("Expected first resolution to create the album")
	}

	second, err := r.ResolveAlbum(ctx, observedAlbum())
	if err != nil {
		t.Fatalf("ResolveAlbum failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected same album id, got %d and %d", first.ID, second.ID)
	}
	if second.Created {
		t.Error("Expected second resolution to find the existing album")
	}
}

func TestResolveAlbum_NormalizationRoundTrip(t *testing.T) {
	r, db := setupResolver(t)
	ctx := context.Background()

	first, err := r.ResolveAlbum(ctx, observedAlbum())
	if err != nil {
		t.Fatalf("ResolveAlbum failed: %v", err)
	}

	shouty := observedAlbum()
	shouty.Title = "  RANDOM ACCESS   memories "
	shouty.Artists = []string{"DAFT PUNK"}
	again, err := r.ResolveAlbum(ctx, shouty)
	if err != nil {
		t.Fatalf("ResolveAlbum failed: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("Expected differently-capitalized observation to resolve to %d, got %d", first.ID, again.ID)
	}

	n, _ := db.CountAlbums(ctx)
	if n != 1 {
		t.Errorf("Expected 1 album row, got %d", n)
	}
}

func TestResolveAlbum_ConcurrentResolversAgree(t *testing.T) {
	r1, db := setupResolver(t)
	r2 := NewResolver(db, logger.Discard())
	ctx := context.Background()

	const workers = 8
	ids := make([]int64, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			r := r1
			if i%2 == 1 {
				r = r2
			}
			res, err := r.ResolveAlbum(ctx, observedAlbum())
			ids[i], errs[i] = res.ID, err
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: ResolveAlbum failed: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("worker %d resolved %d, want %d", i, ids[i], ids[0])
		}
	}

	n, _ := db.CountAlbums(ctx)
	if n != 1 {
		t.Errorf("Expected exactly 1 album row, got %d", n)
	}
}

func TestResolveAlbum_ConflictRereadsWinner(t *testing.T) {
	fs := &fakeStore{
		findAlbums:  []func() ([]*domain.Album, error){albums(), albums(42)},
		insertAlbum: func(*domain.Album) error { return store.ErrConflict },
	}
	r := NewResolver(fs, logger.Discard())

	res, err := r.ResolveAlbum(context.Background(), observedAlbum())
	if err != nil {
		t.Fatalf("Expected conflict to be absorbed, got %v", err)
	}
	if res.ID != 42 || res.Created {
		t.Errorf("Expected winner 42 not created, got %+v", res)
	}
	if fs.insertCalls != 1 {
		t.Errorf("Expected exactly one insert attempt, got %d", fs.insertCalls)
	}
	if fs.findCalls != 2 {
		t.Errorf("Expected a re-query after conflict, got %d finds", fs.findCalls)
	}
}

func TestResolveAlbum_Failures(t *testing.T) {
	storeDown := errors.New("database is locked")

	tests := []struct {
		name     string
		fs       *fakeStore
		obs      func() domain.ObservedAlbum
		wantErr  error
		wantKind Kind
	}{
		{
			name: "conflict without a winner is a contract violation",
			fs: &fakeStore{
				findAlbums:  []func() ([]*domain.Album, error){albums(), albums()},
				insertAlbum: func(*domain.Album) error { return store.ErrConflict },
			},
			wantErr:  ErrStoreContract,
			wantKind: KindFatal,
		},
		{
			name: "insert with neither row nor conflict is fatal",
			fs: &fakeStore{
				insertAlbum: func(*domain.Album) error { return store.ErrNoRowReturned },
			},
			wantErr:  ErrStoreContract,
			wantKind: KindFatal,
		},
		{
			name: "unreachable store on lookup is transient",
			fs: &fakeStore{
				findAlbums: []func() ([]*domain.Album, error){func() ([]*domain.Album, error) { return nil, storeDown }},
			},
			wantErr:  ErrTransient,
			wantKind: KindTransient,
		},
		{
			name: "unreachable store on insert is transient",
			fs: &fakeStore{
				insertAlbum: func(*domain.Album) error { return storeDown },
			},
			wantErr:  storeDown,
			wantKind: KindTransient,
		},
		{
			name: "missing title is an invalid observation",
			fs:   &fakeStore{},
			obs: func() domain.ObservedAlbum {
				o := observedAlbum()
				o.Title = "   "
				return o
			},
			wantErr:  ErrInvalidObservation,
			wantKind: KindAnomaly,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.fs, logger.Discard())
			obs := observedAlbum()
			if tt.obs != nil {
				obs = tt.obs()
			}
			_, err := r.ResolveAlbum(context.Background(), obs)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if got := Classify(err); got != tt.wantKind {
				t.Errorf("Classify() = %s, want %s", got, tt.wantKind)
			}
		})
	}
}

func TestResolveAlbum_MultipleMatchesUsesFirst(t *testing.T) {
	fs := &fakeStore{findAlbums: []func() ([]*domain.Album, error){albums(7, 9)}}
	r := NewResolver(fs, logger.Discard())

	res, err := r.ResolveAlbum(context.Background(), observedAlbum())
	if err != nil {
		t.Fatalf("Expected anomaly to be logged, not returned: %v", err)
	}
	if res.ID != 7 {
		t.Errorf("Expected first match 7, got %d", res.ID)
	}
	if fs.insertCalls != 0 {
		t.Errorf("Expected no insert, got %d", fs.insertCalls)
	}
}

func TestResolveAlbum_BackfillsBarcodes(t *testing.T) {
	r, db := setupResolver(t)
	ctx := context.Background()

	bare := observedAlbum()
	bare.UPC = ""
	first, err := r.ResolveAlbum(ctx, bare)
	if err != nil {
		t.Fatalf("ResolveAlbum failed: %v", err)
	}

	if _, err := r.ResolveAlbum(ctx, observedAlbum()); err != nil {
		t.Fatalf("ResolveAlbum failed: %v", err)
	}

	album, err := db.GetAlbum(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetAlbum failed: %v", err)
	}
	if album.UPC != "886443919371" {
		t.Errorf("Expected backfilled UPC, got %q", album.UPC)
	}
}

func TestResolveTrack_Idempotent(t *testing.T) {
	r, _ := setupResolver(t)
	ctx := context.Background()

	album, err := r.ResolveAlbum(ctx, observedAlbum())
	if err != nil {
		t.Fatalf("ResolveAlbum failed: %v", err)
	}

	first, err := r.ResolveTrack(ctx, observedTrack(), album.ID)
	if err != nil {
		t.Fatalf("ResolveTrack failed: %v", err)
	}
	if !first.Created {
		t.Error("Expected first resolution to create the track")
	}

	second, err := r.ResolveTrack(ctx, observedTrack(), album.ID)
	if err != nil {
		t.Fatalf("ResolveTrack failed: %v", err)
	}
	if second.ID != first.ID || second.Created {
		t.Errorf("Expected existing track %d, got %+v", first.ID, second)
	}

	// Same recording on another release is a distinct catalog track.
	other := observedAlbum()
	other.SpotifyID = "deluxe"
	otherAlbum, _ := r.ResolveAlbum(ctx, other)
	third, err := r.ResolveTrack(ctx, observedTrack(), otherAlbum.ID)
	if err != nil {
		t.Fatalf("ResolveTrack failed: %v", err)
	}
	if third.ID == first.ID {
		t.Error("Expected a separate track row for a different album")
	}
}

func TestResolveTrack_ConflictRereadsWinner(t *testing.T) {
	fs := &fakeStore{
		findTracks: []func() ([]*domain.Track, error){
			func() ([]*domain.Track, error) { return nil, nil },
			func() ([]*domain.Track, error) { return []*domain.Track{{ID: 11}}, nil },
		},
		insertTrack: func(*domain.Track) error { return store.ErrConflict },
	}
	r := NewResolver(fs, logger.Discard())

	res, err := r.ResolveTrack(context.Background(), observedTrack(), 3)
	if err != nil {
		t.Fatalf("Expected conflict to be absorbed, got %v", err)
	}
	if res.ID != 11 || res.Created {
		t.Errorf("Expected winner 11, got %+v", res)
	}
	if fs.trackInserts != 1 {
		t.Errorf("Expected one insert, got %d", fs.trackInserts)
	}
}

func TestResolveTrack_NoRowReturnedIsFatal(t *testing.T) {
	fs := &fakeStore{insertTrack: func(*domain.Track) error { return store.ErrNoRowReturned }}
	r := NewResolver(fs, logger.Discard())

	_, err := r.ResolveTrack(context.Background(), observedTrack(), 3)
	if Classify(err) != KindFatal {
		t.Errorf("Expected fatal error, got %v", err)
	}
}

func TestKindString(t *testing.T) {
	if KindFatal.String() != "fatal" || KindTransient.String() != "transient" || Kind(99).String() != "unknown" {
		t.Error("Unexpected Kind strings")
	}
}
