package tasks

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/enrichment"
	"github.com/cesargomez89/playledger/internal/logger"
)

// AlbumEnricher is implemented by *enrichment.Engine.
type AlbumEnricher interface {
	EnrichAlbum(ctx context.Context, albumID int64) (enrichment.Outcome, error)
}

// CoverFetcher is implemented by *coverart.Fetcher.
type CoverFetcher interface {
	Fetch(ctx context.Context, releaseMBID string) error
}

type EnrichAlbumHandler struct {
	Enricher AlbumEnricher
}

// Handle runs one album lookup. A deferral fails the job with the reason;
// the sweeper queues the album again on a later pass.
func (h *EnrichAlbumHandler) Handle(ctx context.Context, job *domain.Job, log *logger.Logger) error {
	albumID, err := strconv.ParseInt(job.SourceID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid album id %q: %w", job.SourceID, err)
	}

	outcome, err := h.Enricher.EnrichAlbum(ctx, albumID)
	if err != nil {
		return fmt.Errorf("enrichment %s: %w", outcome, err)
	}
	log.Info("Album enrichment finished", "album_id", albumID, "outcome", outcome.String())
	return nil
}

type CoverArtHandler struct {
	Fetcher CoverFetcher
}

func (h *CoverArtHandler) Handle(ctx context.Context, job *domain.Job, log *logger.Logger) error {
	if err := h.Fetcher.Fetch(ctx, job.SourceID); err != nil {
		return err
	}
	log.Debug("Cover art job finished", "release_mbid", job.SourceID)
	return nil
}
