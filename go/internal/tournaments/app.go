package tournaments

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

var ErrNameRequired = fmt.Errorf("%w: tournament name is required", models.ErrValidation)

// TournamentsRepository defines what the app layer needs from the data store
type TournamentsRepository interface {
	ListTournaments(ctx context.Context, q datastore.Query) ([]models.Tournament, error)
	GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error)
	InsertTournament(ctx context.Context, in datastore.NamedInput) (*models.Tournament, error)
	UpdateTournament(ctx context.Context, id uuid.UUID, upd datastore.NamedUpdate) (*models.Tournament, error)
	DeleteTournament(ctx context.Context, id uuid.UUID) error
}

// App handles tournaments business logic
type App struct {
	repo  TournamentsRepository
	clock clockwork.Clock
}

// NewApp creates a new tournaments App
func NewApp(repo TournamentsRepository) *App {
	return &App{repo: repo, clock: clockwork.NewRealClock()}
}

// ListTournaments returns every tournament, newest first
func (a *App) ListTournaments(ctx context.Context) ([]models.Tournament, error) {
	tournaments, err := a.repo.ListTournaments(ctx, datastore.Query{
		Order: datastore.Order{Column: "created_at"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return tournaments, nil
}

// GetTournament retrieves a tournament by ID
func (a *App) GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	tournament, err := a.repo.GetTournament(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	return tournament, nil
}

// CreateTournament creates a new tournament with validation
func (a *App) CreateTournament(ctx context.Context, req CreateTournamentRequest) (*models.Tournament, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	tournament, err := a.repo.InsertTournament(ctx, datastore.NamedInput{Name: name, LogoURL: normalizeLogo(req.LogoURL)})
	if err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	log.Info().Str("tournament_id", tournament.ID.String()).Str("name", tournament.Name).Msg("created tournament")
	return tournament, nil
}

// UpdateTournament renames a tournament or changes its logo
func (a *App) UpdateTournament(ctx context.Context, id uuid.UUID, req UpdateTournamentRequest) (*models.Tournament, error) {
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

	tournament, err := a.repo.UpdateTournament(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("failed to update tournament: %w", err)
	}

	log.Info().Str("tournament_id", tournament.ID.String()).Str("name", tournament.Name).Msg("updated tournament")
	return tournament, nil
}

// DeleteTournament deletes a tournament by ID
func (a *App) DeleteTournament(ctx context.Context, id uuid.UUID) error {
	if err := a.repo.DeleteTournament(ctx, id); err != nil {
		return fmt.Errorf("failed to delete tournament: %w", err)
	}

	log.Info().Str("tournament_id", id.String()).Msg("deleted tournament")
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
