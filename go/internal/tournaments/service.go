package tournaments

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/scoreboard/go/internal/httpjson"
	"github.com/mcdev12/scoreboard/go/internal/models"
)

// TournamentsApp defines what the service layer needs from the tournaments application
type TournamentsApp interface {
	ListTournaments(ctx context.Context) ([]models.Tournament, error)
	GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error)
	CreateTournament(ctx context.Context, req CreateTournamentRequest) (*models.Tournament, error)
	UpdateTournament(ctx context.Context, id uuid.UUID, req UpdateTournamentRequest) (*models.Tournament, error)
	DeleteTournament(ctx context.Context, id uuid.UUID) error
}

// Service exposes tournament administration over HTTP
type Service struct {
	app TournamentsApp
}

// NewService creates a new tournaments HTTP service
func NewService(app TournamentsApp) *Service {
	return &Service{app: app}
}

// RegisterRoutes mounts the tournament endpoints on mux
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tournaments", s.ListTournaments)
	mux.HandleFunc("POST /api/tournaments", s.CreateTournament)
	mux.HandleFunc("GET /api/tournaments/{id}", s.GetTournament)
	mux.HandleFunc("PATCH /api/tournaments/{id}", s.UpdateTournament)
	mux.HandleFunc("DELETE /api/tournaments/{id}", s.DeleteTournament)
}

func (s *Service) ListTournaments(w http.ResponseWriter, r *http.Request) {
	tournaments, err := s.app.ListTournaments(r.Context())
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	if tournaments == nil {
		tournaments = []models.Tournament{}
	}
	httpjson.Write(w, http.StatusOK, tournaments)
}

func (s *Service) GetTournament(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	tournament, err := s.app.GetTournament(r.Context(), id)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, tournament)
}

func (s *Service) CreateTournament(w http.ResponseWriter, r *http.Request) {
	var req CreateTournamentRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	tournament, err := s.app.CreateTournament(r.Context(), req)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, tournament)
}

func (s *Service) UpdateTournament(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	var req UpdateTournamentRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	tournament, err := s.app.UpdateTournament(r.Context(), id, req)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, tournament)
}

func (s *Service) DeleteTournament(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	if err := s.app.DeleteTournament(r.Context(), id); err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
