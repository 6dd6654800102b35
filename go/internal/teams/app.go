package teams

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scoreboard/go/internal/datastore"
	"github.com/mcdev12/scoreboard/go/internal/models"
	"github.com/rs/zerolog/log"
)

var ErrNameRequired = fmt.Errorf("%w: team name is required", models.ErrValidation)

// TeamsRepository defines what the app layer needs from the data store
type TeamsRepository interface {
	ListTeams(ctx context.Context, q datastore.Query) ([]models.Team, error)
	GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error)
	InsertTeam(ctx context.Context, in datastore.NamedInput) (*models.Team, error)
	UpdateTeam(ctx context.Context, id uuid.UUID, upd datastore.NamedUpdate) (*models.Team, error)
	DeleteTeam(ctx context.Context, id uuid.UUID) error
}

// App handles teams business logic
type App struct {
	repo  TeamsRepository
	clock clockwork.Clock
}

// NewApp creates a new teams App
func NewApp(repo TeamsRepository) *App {
	return &App{repo: repo, clock: clockwork.NewRealClock()}
}

// ListTeams returns every team ordered by name
func (a *App) ListTeams(ctx context.Context) ([]models.Team, error) {
	teams, err := a.repo.ListTeams(ctx, datastore.Query{
		Order: datastore.Order{Column: "name", Ascending: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

// GetTeam retrieves a team by ID
func (a *App) GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	team, err := a.repo.GetTeam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return team, nil
}

// CreateTeam creates a new team with validation
func (a *App) CreateTeam(ctx context.Context, req CreateTeamRequest) (*models.Team, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	team, err := a.repo.InsertTeam(ctx, datastore.NamedInput{Name: name, LogoURL: normalizeLogo(req.LogoURL)})
	if err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	log.Info().Str("team_id", team.ID.String()).Str("name", team.Name).Msg("created team")
	return team, nil
}

// UpdateTeam renames a team or changes its logo
func (a *App) UpdateTeam(ctx context.Context, id uuid.UUID, req UpdateTeamRequest) (*models.Team, error) {
	upd := datastore.NamedUpdate{UpdatedAt: a.clock.Now()}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		upd.Name = &name
	}
	if req.LogoURL != nil {
		logo := strings.TrimSpace(*req.LogoURL)
		upd.LogoURL = &logo
	}

	team, err := a.repo.UpdateTeam(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("failed to update team: %w", err)
	}

	log.Info().Str("team_id", team.ID.String()).Str("name", team.Name).Msg("updated team")
	return team, nil
}

// DeleteTeam deletes a team by ID
func (a *App) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	if err := a.repo.DeleteTeam(ctx, id); err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}

	log.Info().Str("team_id", id.String()).Msg("deleted team")
	return nil
}

func normalizeLogo(logo *string) *string {
	if logo == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*logo)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
