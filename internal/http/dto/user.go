package dto

import (
	"time"

	"github.com/cesargomez89/playledger/internal/acquisition"
	"github.com/cesargomez89/playledger/internal/domain"
)

type UserResponse struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Active      bool   `json:"active"`
	Scheduled   bool   `json:"scheduled"`
}

func NewUserResponse(u *domain.User, scheduled bool) UserResponse {
	return UserResponse{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Active:      u.Active,
		Scheduled:   scheduled,
	}
}

type PollStatusResponse struct {
	UserID        int64  `json:"user_id"`
	Scheduled     bool   `json:"scheduled"`
	LastRefreshed string `json:"last_refreshed,omitempty"`
	LastOutcome   string `json:"last_outcome,omitempty"`
	LastError     string `json:"last_error,omitempty"`
	LatestPlay    string `json:"latest_play,omitempty"`
	Fetched       int    `json:"fetched"`
	Recorded      int    `json:"recorded"`
	Duplicates    int    `json:"duplicates"`
	Failed        int    `json:"failed"`
}

// NewPollStatusResponse renders a poller status. ok is false when the user
// has no poller.
func NewPollStatusResponse(userID int64, st acquisition.Status, ok bool) PollStatusResponse {
	if !ok {
		return PollStatusResponse{UserID: userID}
	}
	return PollStatusResponse{
		UserID:        userID,
		Scheduled:     true,
		LastRefreshed: formatTime(st.LastRefreshed),
		LastOutcome:   st.LastOutcome,
		LastError:     st.LastError,
		LatestPlay:    formatTime(st.Latest),
		Fetched:       st.LastReport.Fetched,
		Recorded:      st.LastReport.Recorded,
		Duplicates:    st.LastReport.Duplicates,
		Failed:        st.LastReport.Failed,
	}
}

type PlayResponse struct {
	TrackID    int64  `json:"track_id"`
	ListenedAt string `json:"listened_at"`
	Popularity *int   `json:"popularity,omitempty"`
}

func NewPlayListResponse(plays []*domain.Play) []PlayResponse {
	out := make([]PlayResponse, 0, len(plays))
	for _, p := range plays {
		out = append(out, PlayResponse{
			TrackID:    p.TrackID,
			ListenedAt: p.ListenedAt().Format(time.RFC3339Nano),
			Popularity: p.Popularity,
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
