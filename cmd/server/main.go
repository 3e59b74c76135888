package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cesargomez89/playledger/internal/acquisition"
	"github.com/cesargomez89/playledger/internal/catalog"
	"github.com/cesargomez89/playledger/internal/config"
	"github.com/cesargomez89/playledger/internal/constants"
	"github.com/cesargomez89/playledger/internal/coverart"
	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/enrichment"
	"github.com/cesargomez89/playledger/internal/freshness"
	httpapp "github.com/cesargomez89/playledger/internal/http"
	"github.com/cesargomez89/playledger/internal/httpclient"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/musicbrainz"
	"github.com/cesargomez89/playledger/internal/plays"
	"github.com/cesargomez89/playledger/internal/spotify"
	"github.com/cesargomez89/playledger/internal/store"
	"github.com/cesargomez89/playledger/internal/supervisor"
	"github.com/cesargomez89/playledger/internal/tasks"
)

func main() {
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	// Initialize DB
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		appLogger.Error("Failed to init DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Upstream transports. The MusicBrainz pause is bounded by the enrichment
	// backoff ceiling so a Retry-After hint cannot stretch the retry.
	mbHTTP := httpclient.NewClient(httpclient.Options{
		Name:       "musicbrainz",
		Rate:       cfg.MusicBrainzRate,
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: constants.DefaultRetryCount,
		MaxHold:    cfg.BackoffCeiling,
		UserAgent:  cfg.UserAgent(),
		Logger:     appLogger,
	})
	spotifyHTTP := httpclient.NewClient(httpclient.Options{
		Name:       "spotify",
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: constants.DefaultRetryCount,
		MaxHold:    constants.MaxRetryAfterHold,
		Logger:     appLogger,
	})
	coverHTTP := httpclient.NewClient(httpclient.Options{
		Name:       "coverart",
		Timeout:    constants.ImageHTTPTimeout,
		MaxRetries: constants.DefaultRetryCount,
		MaxHold:    constants.MaxRetryAfterHold,
		UserAgent:  cfg.UserAgent(),
		Logger:     appLogger,
	})

	// MusicBrainz, with an optional genre map override from settings
	mb := musicbrainz.NewClient(cfg.MusicBrainzURL, mbHTTP)
	settingsRepo := store.NewSettingsRepo(db)
	if raw, err := settingsRepo.Get(ctx, store.SettingGenreMap); err != nil {
		appLogger.Warn("Failed to read genre map setting", "error", err)
	} else if raw != "" {
		var genreMap map[string]string
		if err := json.Unmarshal([]byte(raw), &genreMap); err != nil {
			appLogger.Warn("Ignoring invalid genre map setting", "error", err)
		} else {
			mb.SetGenreMap(genreMap)
		}
	}
	recordings := musicbrainz.NewCachedClient(mb, db, cfg.CacheTTL)

	// Core pipeline
	resolver := catalog.NewResolver(db, appLogger)
	recorder := plays.NewRecorder(db, appLogger)
	queue := tasks.NewQueue(db, appLogger)

	metadataGate := freshness.NewGate(cfg.MetadataStaleAfter)
	engine := enrichment.NewEngine(db, mb, enrichment.Options{
		Gate:           metadataGate,
		BackoffCeiling: cfg.BackoffCeiling,
		Recordings:     recordings,
		CoverArt:       queue,
		Logger:         appLogger,
	})
	sweeper := enrichment.NewSweeper(db, queue, metadataGate, cfg.SweepInterval, cfg.SweepBatch, appLogger)

	covers := coverart.NewFetcher(cfg.CoverArtURL, cfg.CoverArtDir, coverHTTP, appLogger)

	dispatcher := tasks.NewDispatcher()
	dispatcher.Register(domain.JobTypeEnrichAlbum, &tasks.EnrichAlbumHandler{Enricher: engine})
	dispatcher.Register(domain.JobTypeFetchCoverArt, &tasks.CoverArtHandler{Fetcher: covers})
	worker := tasks.NewWorker(db, dispatcher, cfg.WorkerConcurrency, cfg.WorkerPollInterval, appLogger)
	janitor := tasks.NewJanitor(db, appLogger)

	sources := spotify.NewFactory(spotify.FactoryConfig{
		APIURL:       cfg.SpotifyAPIURL,
		TokenURL:     cfg.SpotifyTokenURL,
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
	}, spotifyHTTP, db, appLogger)
	loop := acquisition.NewLoop(acquisition.SpotifySources(sources), resolver, recorder, engine, queue, cfg.PollLimit, appLogger)

	// Supervision
	tree := supervisor.NewTree(appLogger, supervisor.DefaultTreeConfig())
	scheduler := acquisition.NewScheduler(tree.Pollers(), db, loop, acquisition.PollerOptions{
		Gate:         freshness.NewGate(cfg.PollInterval),
		Tick:         cfg.SchedulerTick,
		CycleTimeout: cfg.CycleTimeout,
	}, appLogger)

	tree.AddBackground(worker)
	tree.AddBackground(sweeper)
	tree.AddBackground(janitor)

	h := httpapp.NewHandler(queue, db, scheduler, appLogger)
	h.Settings = httpapp.GenreSettings{Store: settingsRepo, Mapper: mb}
	h.Breakers = map[string]httpapp.Breaker{
		"musicbrainz": mbHTTP,
		"spotify":     spotifyHTTP,
		"coverart":    coverHTTP,
	}
	tree.AddAPI(httpapp.NewServer(":"+cfg.Port, httpapp.NewRouter(h), appLogger))

	errCh := tree.ServeBackground(ctx)

	n, err := scheduler.LoadActive(ctx, db)
	if err != nil {
		appLogger.Error("Failed to load active users", "error", err)
	}
	appLogger.Info("Ingestion started", "users", n, "port", cfg.Port)

	// Graceful Shutdown
	err = <-errCh
	if err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Supervisor tree stopped", "error", err)
	}
	if unstopped, rErr := tree.UnstoppedServiceReport(); rErr == nil && len(unstopped) > 0 {
		appLogger.Warn("Services did not stop in time", "count", len(unstopped))
	}
	appLogger.Info("Server exiting")
}
