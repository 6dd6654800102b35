package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchStatus represents the lifecycle stage of a match
type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "scheduled"
	MatchStatusLive      MatchStatus = "live"
	MatchStatusFinished  MatchStatus = "finished"
)

// Valid reports whether s is one of the known statuses
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusScheduled, MatchStatusLive, MatchStatusFinished:
		return true
	}
	return false
}

// Match represents a single fixture between two teams
type Match struct {
	ID           uuid.UUID   `json:"id"`
	TournamentID *uuid.UUID  `json:"tournament_id"`
	TeamAID      *uuid.UUID  `json:"team_a_id"`
	TeamBID      *uuid.UUID  `json:"team_b_id"`
	TeamAScore   int         `json:"team_a_score"`
	TeamBScore   int         `json:"team_b_score"`
	Status       MatchStatus `json:"status"`
	MatchDate    time.Time   `json:"match_date"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// DisplayRef carries the display fields of a related tournament or team
type DisplayRef struct {
	Name    string  `json:"name"`
	LogoURL *string `json:"logo_url,omitempty"`
}

// MatchView is a match pre-joined with its tournament and team display data
type MatchView struct {
	Match
	Tournament *DisplayRef `json:"tournament,omitempty"`
	TeamA      *DisplayRef `json:"team_a,omitempty"`
	TeamB      *DisplayRef `json:"team_b,omitempty"`
}
