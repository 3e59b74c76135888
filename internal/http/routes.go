package httpapp

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/playledger/internal/acquisition"
	"github.com/cesargomez89/playledger/internal/constants"
	"github.com/cesargomez89/playledger/internal/http/dto"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, errs := dto.ParseLimit(r.URL.Query().Get("limit"), constants.MaxJobListItems, constants.MaxJobListItems)
	if errs != nil {
		writeValidation(w, errs)
		return
	}
	jobs, err := h.Jobs.ListJobs(r.Context(), limit)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewJobListResponse(jobs))
}

func (h *Handler) JobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Jobs.Stats(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewJobResponse(job))
}

func (h *Handler) RetryJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Jobs.RetryJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, dto.NewJobResponse(job))
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, errs := dto.ParseUserID(chi.URLParam(r, "id"))
	if errs != nil {
		writeValidation(w, errs)
		return
	}
	user, err := h.Users.GetUser(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	_, scheduled := h.Scheduler.Status(id)
	writeJSON(w, http.StatusOK, dto.NewUserResponse(user, scheduled))
}

func (h *Handler) PollStatus(w http.ResponseWriter, r *http.Request) {
	id, errs := dto.ParseUserID(chi.URLParam(r, "id"))
	if errs != nil {
		writeValidation(w, errs)
		return
	}
	st, ok := h.Scheduler.Status(id)
	writeJSON(w, http.StatusOK, dto.NewPollStatusResponse(id, st, ok))
}

func (h *Handler) ListPlays(w http.ResponseWriter, r *http.Request) {
	id, errs := dto.ParseUserID(chi.URLParam(r, "id"))
	if errs != nil {
		writeValidation(w, errs)
		return
	}
	limit, errs := dto.ParseLimit(r.URL.Query().Get("limit"), constants.DefaultPollLimit, constants.MaxPlayListItems)
	if errs != nil {
		writeValidation(w, errs)
		return
	}
	if _, err := h.Users.GetUser(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	plays, err := h.Users.ListPlays(r.Context(), id, limit)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewPlayListResponse(plays))
}

// ScheduleUser marks the user active and starts its poller.
func (h *Handler) ScheduleUser(w http.ResponseWriter, r *http.Request) {
	id, errs := dto.ParseUserID(chi.URLParam(r, "id"))
	if errs != nil {
		writeValidation(w, errs)
		return
	}
	if err := h.Users.SetUserActive(r.Context(), id, true); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	added := h.Scheduler.Add(id)
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"user_id": id, "scheduled": true})
}

// UnscheduleUser marks the user inactive and stops its poller. The current
// cycle, if any, is allowed to finish.
func (h *Handler) UnscheduleUser(w http.ResponseWriter, r *http.Request) {
	id, errs := dto.ParseUserID(chi.URLParam(r, "id"))
	if errs != nil {
		writeValidation(w, errs)
		return
	}
	if err := h.Users.SetUserActive(r.Context(), id, false); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	// A user with no poller is already stopped.
	if err := h.Scheduler.Remove(id); err != nil && !errors.Is(err, acquisition.ErrNotScheduled) {
		h.Logger.Warn("Poller did not stop cleanly", "user_id", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
