package dto

import (
	"sort"
	"strings"
)

type GenreMapResponse struct {
	Custom bool              `json:"custom"`
	Genres map[string]string `json:"genres"`
}

type UpstreamResponse struct {
	Name    string `json:"name"`
	Breaker string `json:"breaker"`
}

// NewUpstreamListResponse renders breaker states sorted by upstream name.
func NewUpstreamListResponse(states map[string]string) []UpstreamResponse {
	resp := make([]UpstreamResponse, 0, len(states))
	for name, state := range states {
		resp = append(resp, UpstreamResponse{Name: name, Breaker: state})
	}
	sort.Slice(resp, func(i, j int) bool { return resp[i].Name < resp[j].Name })
	return resp
}

// NormalizeGenreMap lowercases tag keys to match how tags are looked up and
// rejects blank entries.
func NormalizeGenreMap(in map[string]string) (map[string]string, []ValidationError) {
	if len(in) == 0 {
		return nil, []ValidationError{{Field: "genres", Message: "must not be empty"}}
	}
	out := make(map[string]string, len(in))
	for tagName, genre := range in {
		key := strings.ToLower(strings.TrimSpace(tagName))
		genre = strings.TrimSpace(genre)
		if key == "" || genre == "" {
			return nil, []ValidationError{{Field: "genres", Message: "tags and genres must not be blank"}}
		}
		out[key] = genre
	}
	return out, nil
}
