package matches

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcdev12/scoreboard/go/internal/datastore"
	"github.com/mcdev12/scoreboard/go/internal/models"
)

// MatchesRepository defines what the app layer needs from the data store
type MatchesRepository interface {
	ListMatches(ctx context.Context, q datastore.Query) ([]models.MatchView, error)
	GetMatch(ctx context.Context, id uuid.UUID) (*models.MatchView, error)
	LockMatch(ctx context.Context, id uuid.UUID) (*models.Match, error)
	InsertMatch(ctx context.Context, in datastore.MatchInput) (*models.Match, error)
	UpdateMatch(ctx context.Context, id uuid.UUID, upd datastore.MatchUpdate) (*models.Match, error)
	DeleteMatch(ctx context.Context, id uuid.UUID) error
	InTx(ctx context.Context, fn func(repo MatchesRepository) error) error
}

// Repository adapts *datastore.Store to MatchesRepository
type Repository struct {
	*datastore.Store
}

func NewRepository(store *datastore.Store) *Repository {
	return &Repository{Store: store}
}

func (r *Repository) InTx(ctx context.Context, fn func(repo MatchesRepository) error) error {
	return r.RunInTx(ctx, func(tx *datastore.Store) error {
		return fn(&Repository{Store: tx})
	})
}
