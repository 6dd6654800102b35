package overlay

import (
	"time"

	"github.com/mcdev12/scoreboard/go/internal/livematch"
	"github.com/mcdev12/scoreboard/go/internal/models"
)

// Mode is what the overlay should show for a snapshot
type Mode string

const (
	ModeMatch   Mode = "match"
	ModeLoading Mode = "loading"
	ModeError   Mode = "error"
	ModeEmpty   Mode = "empty"
)

// View is the payload pushed to overlay viewers and returned by the state endpoint
type View struct {
	Type        string            `json:"type"`
	Mode        Mode              `json:"mode"`
	Match       *models.MatchView `json:"match,omitempty"`
	Live        bool              `json:"live"`
	IsLoading   bool              `json:"is_loading"`
	Error       string            `json:"error,omitempty"`
	LastUpdated *time.Time        `json:"last_updated,omitempty"`
}

// NewView derives the overlay view from a synchronizer snapshot. A cached
// match is always shown, even when the latest fetch failed.
func NewView(st livematch.State) View {
	v := View{
		Type:        "state",
		Match:       st.CurrentMatch,
		IsLoading:   st.IsLoading,
		Error:       st.Error,
		LastUpdated: st.LastUpdated,
	}
	switch {
	case st.CurrentMatch != nil:
		v.Mode = ModeMatch
		v.Live = st.CurrentMatch.Status == models.MatchStatusLive
	case st.Error != "":
		v.Mode = ModeError
	case st.IsLoading || st.Phase == livematch.PhaseUninitialized:
		v.Mode = ModeLoading
	default:
		v.Mode = ModeEmpty
	}
	return v
}
