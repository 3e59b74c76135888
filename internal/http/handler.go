// Package httpapp serves the operations API: health, metrics, job queue
// inspection and per-user polling control.
package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/cesargomez89/playledger/internal/acquisition"
	"github.com/cesargomez89/playledger/internal/constants"
	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/http/dto"
	"github.com/cesargomez89/playledger/internal/httpclient"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/musicbrainz"
	"github.com/cesargomez89/playledger/internal/store"
	"github.com/cesargomez89/playledger/internal/tasks"
)

type JobService interface {
	ListJobs(ctx context.Context, limit int) ([]*domain.Job, error)
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	RetryJob(ctx context.Context, id string) (*domain.Job, error)
	Stats(ctx context.Context) (*store.JobStats, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	SetUserActive(ctx context.Context, id int64, active bool) error
	ListPlays(ctx context.Context, userID int64, limit int) ([]*domain.Play, error)
}

// Scheduler is implemented by *acquisition.Scheduler.
type Scheduler interface {
	Add(userID int64) bool
	Remove(userID int64) error
	Status(userID int64) (acquisition.Status, bool)
}

type Settings interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// GenreMapper is implemented by *musicbrainz.Client.
type GenreMapper interface {
	GetGenreMap() map[string]string
	SetGenreMap(m map[string]string)
}

// Breaker is implemented by *httpclient.Client.
type Breaker interface {
	BreakerState() gobreaker.State
}

var (
	_ JobService  = (*tasks.Queue)(nil)
	_ UserStore   = (*store.DB)(nil)
	_ Scheduler   = (*acquisition.Scheduler)(nil)
	_ Settings    = (*store.SettingsRepo)(nil)
	_ GenreMapper = (*musicbrainz.Client)(nil)
	_ Breaker     = (*httpclient.Client)(nil)
)

type Handler struct {
	Jobs      JobService
	Users     UserStore
	Scheduler Scheduler
	Logger    *logger.Logger

	// Optional ops surface; the routes answer 404 while unset.
	Settings GenreSettings
	Breakers map[string]Breaker
}

// GenreSettings pairs the persisted genre map override with the client using it.
type GenreSettings struct {
	Store  Settings
	Mapper GenreMapper
}

func NewHandler(jobs JobService, users UserStore, scheduler Scheduler, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Jobs:      jobs,
		Users:     users,
		Scheduler: scheduler,
		Logger:    log.WithComponent("http"),
	}
}

// NewRouter mounts the API behind request logging, panic recovery and a
// per-IP rate limit. /healthz and /metrics are not rate limited.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitByIP(constants.APIRequestsPerMin, time.Minute))
		h.RegisterRoutes(r)
	})
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/jobs", h.ListJobs)
	r.Get("/jobs/stats", h.JobStats)
	r.Get("/jobs/{id}", h.GetJob)
	r.Post("/jobs/{id}/retry", h.RetryJob)

	r.Get("/users/{id}", h.GetUser)
	r.Get("/users/{id}/status", h.PollStatus)
	r.Get("/users/{id}/plays", h.ListPlays)
	r.Post("/users/{id}/schedule", h.ScheduleUser)
	r.Delete("/users/{id}/schedule", h.UnscheduleUser)

	r.Get("/settings/genre-map", h.GetGenreMap)
	r.Put("/settings/genre-map", h.PutGenreMap)
	r.Delete("/settings/genre-map", h.ResetGenreMap)
	r.Get("/upstreams", h.ListUpstreams)
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.Logger.Debug("Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeValidation(w http.ResponseWriter, errs []dto.ValidationError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":  dto.ToResponse(errs),
		"fields": dto.ToMap(errs),
	})
}

// writeStoreError maps domain errors onto status codes and logs the rest.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, tasks.ErrNotRetryable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.Logger.Error("Request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
