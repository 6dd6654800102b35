package livematch

import (
	"time"

	"github.com/mcdev12/scoreboard/go/internal/models"
)

// Phase is the lifecycle stage of a Synchronizer
type Phase string

const (
	PhaseUninitialized  Phase = "uninitialized"
	PhaseLoadingInitial Phase = "loading_initial"
	PhaseReadyOK        Phase = "ready_ok"
	PhaseReadyError     Phase = "ready_error"
	PhaseStopped        Phase = "stopped"
)

// State is a point-in-time view of what the overlay should render
type State struct {
	CurrentMatch *models.MatchView `json:"current_match"`
	IsLoading    bool              `json:"is_loading"`
	Error        string            `json:"error,omitempty"`
	LastUpdated  *time.Time        `json:"last_updated"`
	Phase        Phase             `json:"phase"`
}

func (s State) clone() State {
	out := s
	if s.CurrentMatch != nil {
		m := *s.CurrentMatch
		out.CurrentMatch = &m
	}
	if s.LastUpdated != nil {
		t := *s.LastUpdated
		out.LastUpdated = &t
	}
	return out
}

// Trigger names what asked for a fetch
type Trigger string

const (
	TriggerMount   Trigger = "mount"
	TriggerPoll    Trigger = "poll"
	TriggerPush    Trigger = "push"
	TriggerRefetch Trigger = "refetch"
	TriggerVisible Trigger = "visible"
)

// Outcome of a trigger at the fetch gate
const (
	OutcomeStarted   = "started"
	OutcomeInFlight  = "in_flight"
	OutcomeThrottled = "throttled"
	OutcomeHidden    = "hidden"
	OutcomeStopped   = "stopped"
)
