package teams

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/scoreboard/go/internal/httpjson"
	"github.com/mcdev12/scoreboard/go/internal/models"
)

// TeamsApp defines what the service layer needs from the teams application
type TeamsApp interface {
	ListTeams(ctx context.Context) ([]models.Team, error)
	GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error)
	CreateTeam(ctx context.Context, req CreateTeamRequest) (*models.Team, error)
	UpdateTeam(ctx context.Context, id uuid.UUID, req UpdateTeamRequest) (*models.Team, error)
	DeleteTeam(ctx context.Context, id uuid.UUID) error
}

// Service exposes team administration over HTTP
type Service struct {
	app TeamsApp
}

// NewService creates a new teams HTTP service
func NewService(app TeamsApp) *Service {
	return &Service{app: app}
}

// RegisterRoutes mounts the team endpoints on mux
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/teams", s.ListTeams)
	mux.HandleFunc("POST /api/teams", s.CreateTeam)
	mux.HandleFunc("GET /api/teams/{id}", s.GetTeam)
	mux.HandleFunc("PATCH /api/teams/{id}", s.UpdateTeam)
	mux.HandleFunc("DELETE /api/teams/{id}", s.DeleteTeam)
}

func (s *Service) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.app.ListTeams(r.Context())
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	if teams == nil {
		teams = []models.Team{}
	}
	httpjson.Write(w, http.StatusOK, teams)
}

func (s *Service) GetTeam(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	team, err := s.app.GetTeam(r.Context(), id)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, team)
}

func (s *Service) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req CreateTeamRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	team, err := s.app.CreateTeam(r.Context(), req)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, team)
}

func (s *Service) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	var req UpdateTeamRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	team, err := s.app.UpdateTeam(r.Context(), id, req)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, team)
}

func (s *Service) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	if err := s.app.DeleteTeam(r.Context(), id); err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
