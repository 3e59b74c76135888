// Package coverart downloads front covers from the Cover Art Archive.
package coverart

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cesargomez89/playledger/internal/constants"
	"github.com/cesargomez89/playledger/internal/httpclient"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/storage"
)

// maxImageBytes caps a single download.
const maxImageBytes = 20 << 20

type Fetcher struct {
	http    *httpclient.Client
	baseURL string
	dir     string
	logger  *logger.Logger
}

func NewFetcher(baseURL, dir string, transport *httpclient.Client, log *logger.Logger) *Fetcher {
	if log == nil {
		log = logger.Default()
	}
	return &Fetcher{
		http:    transport,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dir:     dir,
		logger:  log.WithComponent("coverart"),
	}
}

// Path returns where the cover for releaseMBID is stored.
func (f *Fetcher) Path(releaseMBID string) string {
	return filepath.Join(f.dir, storage.Sanitize(releaseMBID)+constants.ExtJPG)
}

// Fetch downloads the release's front cover unless it is already on disk.
// A release without cover art is not an error.
func (f *Fetcher) Fetch(ctx context.Context, releaseMBID string) error {
	id, err := uuid.Parse(releaseMBID)
	if err != nil {
		return fmt.Errorf("invalid release id %q: %w", releaseMBID, err)
	}
	path := f.Path(id.String())
	if storage.Exists(path) {
		return nil
	}

	u := fmt.Sprintf("%s/release/%s/%s", f.baseURL, id.String(), constants.CoverArtSizeFront)
	if parsed, err := url.Parse(u); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("invalid cover art URL: %s (only http/https allowed)", u)
	}

	resp, err := f.http.Get(ctx, u, http.Header{"Accept": []string{"image/jpeg"}})
	if err != nil {
		return fmt.Errorf("failed to download cover art: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		f.logger.Debug("No cover art for release", "release_mbid", id.String())
		return nil
	default:
		return fmt.Errorf("failed to download cover art: status %d (URL: %s)", resp.StatusCode, u)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, maxImageBytes+1)); err != nil {
		return fmt.Errorf("failed to read image data: %w", err)
	}
	if buf.Len() > maxImageBytes {
		return fmt.Errorf("cover art for %s exceeds %d bytes", id.String(), maxImageBytes)
	}
	if buf.Len() == 0 {
		return nil
	}

	if err := storage.WriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to save cover art: %w", err)
	}
	f.logger.Info("Cover art saved", "release_mbid", id.String(), "bytes", buf.Len())
	return nil
}
