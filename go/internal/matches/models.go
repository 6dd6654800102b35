package matches

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/scoreboard/go/internal/models"
)

// Side selects one of the two teams in a match
type Side string

const (
	SideA Side = "a"
	SideB Side = "b"
)

type CreateMatchRequest struct {
	TournamentID uuid.UUID          `json:"tournament_id"`
	TeamAID      uuid.UUID          `json:"team_a_id"`
	TeamBID      uuid.UUID          `json:"team_b_id"`
	Status       models.MatchStatus `json:"status,omitempty"`
	MatchDate    *time.Time         `json:"match_date,omitempty"`
}

// UpdateMatchRequest changes the fixture details of a match. Scores are
// changed through AdjustScore only.
type UpdateMatchRequest struct {
	TournamentID *uuid.UUID          `json:"tournament_id,omitempty"`
	TeamAID      *uuid.UUID          `json:"team_a_id,omitempty"`
	TeamBID      *uuid.UUID          `json:"team_b_id,omitempty"`
	Status       *models.MatchStatus `json:"status,omitempty"`
}

// AdjustScoreRequest moves one side's score up or down by one
type AdjustScoreRequest struct {
	Side      Side `json:"side"`
	Increment bool `json:"increment"`
}

// ScoreErrorResponse carries the authoritative match row alongside a failed
// score change so the caller can discard its optimistic value.
type ScoreErrorResponse struct {
	Error string        `json:"error"`
	Match *models.Match `json:"match,omitempty"`
}
