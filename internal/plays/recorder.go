// Package plays records listen events exactly once per (user, track, instant).
package plays

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/store"
)

type Store interface {
	InsertPlay(ctx context.Context, play *domain.Play) error
	GetPlay(ctx context.Context, userID, trackID, listenedAtMS int64) (*domain.Play, error)
}

var _ Store = (*store.DB)(nil)

// Result reports whether a play row was created or already existed.
type Result struct {
	PlayID  int64
	Created bool
}

type Recorder struct {
	store  Store
	logger *logger.Logger
}

func NewRecorder(s Store, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.Default()
	}
	return &Recorder{store: s, logger: log.WithComponent("plays")}
}

// RecordPlay inserts the play. A play already recorded for the same key is
// returned with Created=false and no error.
func (r *Recorder) RecordPlay(ctx context.Context, userID, trackID int64, listenedAt time.Time, popularity *int) (Result, error) {
	if listenedAt.IsZero() {
		return Result{}, fmt.Errorf("play for user %d track %d has no timestamp", userID, trackID)
	}

	play := &domain.Play{
		UserID:       userID,
		TrackID:      trackID,
		ListenedAtMS: listenedAt.UnixMilli(),
		Popularity:   popularity,
	}

	err := r.store.InsertPlay(ctx, play)
	if err == nil {
		return Result{PlayID: play.ID, Created: true}, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return Result{}, fmt.Errorf("record play user=%d track=%d at=%d: %w", userID, trackID, play.ListenedAtMS, err)
	}

	existing, getErr := r.store.GetPlay(ctx, userID, trackID, play.ListenedAtMS)
	if getErr != nil {
		return Result{}, fmt.Errorf("read back duplicate play user=%d track=%d at=%d: %w", userID, trackID, play.ListenedAtMS, getErr)
	}
	r.logger.Debug("Play already recorded", "user_id", userID, "track_id", trackID, "play_id", existing.ID)
	return Result{PlayID: existing.ID}, nil
}
