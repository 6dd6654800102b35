package matches

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scoreboard/go/internal/datastore"
	"github.com/mcdev12/scoreboard/go/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingField  = fmt.Errorf("%w: tournament and both teams are required", models.ErrValidation)
	ErrSameTeams     = fmt.Errorf("%w: a team cannot play itself", models.ErrValidation)
	ErrInvalidStatus = fmt.Errorf("%w: unknown match status", models.ErrValidation)
	ErrInvalidSide   = fmt.Errorf("%w: side must be \"a\" or \"b\"", models.ErrValidation)
)

// App handles match administration and live score control
type App struct {
	repo  MatchesRepository
	clock clockwork.Clock
}

func NewApp(repo MatchesRepository) *App {
	return &App{repo: repo, clock: clockwork.NewRealClock()}
}

// ListMatches returns every match, newest first, with display data joined in
func (a *App) ListMatches(ctx context.Context) ([]models.MatchView, error) {
	matches, err := a.repo.ListMatches(ctx, datastore.Query{
		Order: datastore.Order{Column: "created_at"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return matches, nil
}

func (a *App) GetMatch(ctx context.Context, id uuid.UUID) (*models.MatchView, error) {
	match, err := a.repo.GetMatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return match, nil
}

// CreateMatch schedules a new match with both scores at zero
func (a *App) CreateMatch(ctx context.Context, req CreateMatchRequest) (*models.Match, error) {
	if req.TournamentID == uuid.Nil || req.TeamAID == uuid.Nil || req.TeamBID == uuid.Nil {
		return nil, ErrMissingField
	}
	if req.TeamAID == req.TeamBID {
		return nil, ErrSameTeams
	}
	status := req.Status
	if status == "" {
		status = models.MatchStatusScheduled
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	match, err := a.repo.InsertMatch(ctx, datastore.MatchInput{
		TournamentID: &req.TournamentID,
		TeamAID:      &req.TeamAID,
		TeamBID:      &req.TeamBID,
		Status:       status,
		MatchDate:    req.MatchDate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	log.Info().
		Str("match_id", match.ID.String()).
		Str("status", string(match.Status)).
		Msg("created match")
	return match, nil
}

// UpdateMatch changes the tournament, teams or status of a match
func (a *App) UpdateMatch(ctx context.Context, id uuid.UUID, req UpdateMatchRequest) (*models.Match, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	for _, ref := range []*uuid.UUID{req.TournamentID, req.TeamAID, req.TeamBID} {
		if ref != nil && *ref == uuid.Nil {
			return nil, ErrMissingField
		}
	}

	var updated *models.Match
	err := a.repo.InTx(ctx, func(repo MatchesRepository) error {
		current, err := repo.LockMatch(ctx, id)
		if err != nil {
			return err
		}

		teamA, teamB := current.TeamAID, current.TeamBID
		if req.TeamAID != nil {
			teamA = req.TeamAID
		}
		if req.TeamBID != nil {
			teamB = req.TeamBID
		}
		if teamA != nil && teamB != nil && *teamA == *teamB {
			return ErrSameTeams
		}

		updated, err = repo.UpdateMatch(ctx, id, datastore.MatchUpdate{
			TournamentID: req.TournamentID,
			TeamAID:      req.TeamAID,
			TeamBID:      req.TeamBID,
			Status:       req.Status,
			UpdatedAt:    a.clock.Now(),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}

	log.Info().
		Str("match_id", updated.ID.String()).
		Str("status", string(updated.Status)).
		Msg("updated match")
	return updated, nil
}

// AdjustScore moves one side's score by one, never below zero. When the
// write fails the authoritative row is re-read and returned with the error so
// the caller can roll back whatever it showed optimistically.
func (a *App) AdjustScore(ctx context.Context, id uuid.UUID, side Side, increment bool) (*models.Match, error) {
	if side != SideA && side != SideB {
		return nil, ErrInvalidSide
	}

	var updated *models.Match
	err := a.repo.InTx(ctx, func(repo MatchesRepository) error {
		current, err := repo.LockMatch(ctx, id)
		if err != nil {
			return err
		}

		upd := datastore.MatchUpdate{UpdatedAt: a.clock.Now()}
		if side == SideA {
			score := nextScore(current.TeamAScore, increment)
			upd.TeamAScore = &score
		} else {
			score := nextScore(current.TeamBScore, increment)
			upd.TeamBScore = &score
		}

		updated, err = repo.UpdateMatch(ctx, id, upd)
		return err
	})
	if err != nil {
		if errors.Is(err, datastore.ErrNoRows) {
			return nil, fmt.Errorf("failed to update score: %w", err)
		}
		log.Error().Err(err).Str("match_id", id.String()).Msg("score update failed, re-reading match")
		current, readErr := a.repo.GetMatch(ctx, id)
		if readErr != nil {
			log.Error().Err(readErr).Str("match_id", id.String()).Msg("failed to re-read match")
			return nil, fmt.Errorf("failed to update score: %w", err)
		}
		return &current.Match, fmt.Errorf("failed to update score: %w", err)
	}

	log.Info().
		Str("match_id", updated.ID.String()).
		Int("team_a_score", updated.TeamAScore).
		Int("team_b_score", updated.TeamBScore).
		Msg("score updated")
	return updated, nil
}

func nextScore(current int, increment bool) int {
	if increment {
		return current + 1
	}
	return max(current-1, 0)
}

func (a *App) DeleteMatch(ctx context.Context, id uuid.UUID) error {
	if err := a.repo.DeleteMatch(ctx, id); err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}
	log.Info().Str("match_id", id.String()).Msg("deleted match")
	return nil
}
