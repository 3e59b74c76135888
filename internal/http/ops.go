package httpapp

import (
	"encoding/json"
	"net/http"

	"github.com/cesargomez89/playledger/internal/constants"
	"github.com/cesargomez89/playledger/internal/http/dto"
	"github.com/cesargomez89/playledger/internal/store"
)

func (h *Handler) genreSettings(w http.ResponseWriter) bool {
	if h.Settings.Store == nil || h.Settings.Mapper == nil {
		writeError(w, http.StatusNotFound, "genre map settings not configured")
		return false
	}
	return true
}

func (h *Handler) GetGenreMap(w http.ResponseWriter, r *http.Request) {
	if !h.genreSettings(w) {
		return
	}
	raw, err := h.Settings.Store.Get(r.Context(), store.SettingGenreMap)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.GenreMapResponse{Custom: raw != "", Genres: h.Settings.Mapper.GetGenreMap()})
}

// PutGenreMap persists a tag to genre override and applies it to later
// recording lookups.
func (h *Handler) PutGenreMap(w http.ResponseWriter, r *http.Request) {
	if !h.genreSettings(w) {
		return
	}
	var body map[string]string
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, constants.MaxSettingsBody)).Decode(&body); err != nil {
		writeValidation(w, []dto.ValidationError{{Field: "genres", Message: "must be a JSON object of tag to genre"}})
		return
	}
	genres, errs := dto.NormalizeGenreMap(body)
	if errs != nil {
		writeValidation(w, errs)
		return
	}

	raw, err := json.Marshal(genres)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if err := h.Settings.Store.Set(r.Context(), store.SettingGenreMap, string(raw)); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.Settings.Mapper.SetGenreMap(genres)
	h.Logger.Info("Genre map override stored", "tags", len(genres))
	writeJSON(w, http.StatusOK, dto.GenreMapResponse{Custom: true, Genres: genres})
}

// ResetGenreMap drops the override and restores the built-in map.
func (h *Handler) ResetGenreMap(w http.ResponseWriter, r *http.Request) {
	if !h.genreSettings(w) {
		return
	}
	if err := h.Settings.Store.Delete(r.Context(), store.SettingGenreMap); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.Settings.Mapper.SetGenreMap(nil)
	h.Logger.Info("Genre map override removed")
	w.WriteHeader(http.StatusNoContent)
}

// ListUpstreams reports the circuit breaker state of each outbound client.
func (h *Handler) ListUpstreams(w http.ResponseWriter, r *http.Request) {
	states := make(map[string]string, len(h.Breakers))
	for name, b := range h.Breakers {
		states[name] = b.BreakerState().String()
	}
	writeJSON(w, http.StatusOK, dto.NewUpstreamListResponse(states))
}
