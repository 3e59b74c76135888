package dto

import (
	"time"

	"github.com/cesargomez89/playledger/internal/domain"
)

type JobResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	SourceID  string `json:"source_id"`
	Attempts  int    `json:"attempts"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Error     string `json:"error,omitempty"`
}

func NewJobResponse(j *domain.Job) JobResponse {
	resp := JobResponse{
		ID:        j.ID,
		Type:      string(j.Type),
		Status:    string(j.Status),
		SourceID:  j.SourceID,
		Attempts:  j.Attempts,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
	if j.Error != nil {
		resp.Error = *j.Error
	}
	return resp
}

func NewJobListResponse(jobs []*domain.Job) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, NewJobResponse(j))
	}
	return out
}
