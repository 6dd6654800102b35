package matches

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/scoreboard/go/internal/httpjson"
	"github.com/mcdev12/scoreboard/go/internal/models"
)

// MatchesApp defines what the service layer needs from the matches application
type MatchesApp interface {
	ListMatches(ctx context.Context) ([]models.MatchView, error)
	GetMatch(ctx context.Context, id uuid.UUID) (*models.MatchView, error)
	CreateMatch(ctx context.Context, req CreateMatchRequest) (*models.Match, error)
	UpdateMatch(ctx context.Context, id uuid.UUID, req UpdateMatchRequest) (*models.Match, error)
	AdjustScore(ctx context.Context, id uuid.UUID, side Side, increment bool) (*models.Match, error)
	DeleteMatch(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	app MatchesApp
}

func NewService(app MatchesApp) *Service {
	return &Service{app: app}
}

// RegisterRoutes mounts the match endpoints on mux
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/matches", s.ListMatches)
	mux.HandleFunc("POST /api/matches", s.CreateMatch)
	mux.HandleFunc("GET /api/matches/{id}", s.GetMatch)
	mux.HandleFunc("PATCH /api/matches/{id}", s.UpdateMatch)
	mux.HandleFunc("DELETE /api/matches/{id}", s.DeleteMatch)
	mux.HandleFunc("POST /api/matches/{id}/score", s.AdjustScore)
}

func (s *Service) ListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.app.ListMatches(r.Context())
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	if matches == nil {
		matches = []models.MatchView{}
	}
	httpjson.Write(w, http.StatusOK, matches)
}

func (s *Service) GetMatch(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	match, err := s.app.GetMatch(r.Context(), id)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, match)
}

func (s *Service) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req CreateMatchRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	match, err := s.app.CreateMatch(r.Context(), req)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, match)
}

func (s *Service) UpdateMatch(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	var req UpdateMatchRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	match, err := s.app.UpdateMatch(r.Context(), id, req)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, match)
}

// AdjustScore handles POST /api/matches/{id}/score. A failed change still
// returns the current row when it could be read.
func (s *Service) AdjustScore(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	var req AdjustScoreRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, r, err)
		return
	}

	match, err := s.app.AdjustScore(r.Context(), id, req.Side, req.Increment)
	if err != nil {
		if match == nil {
			httpjson.WriteError(w, r, err)
			return
		}
		status := httpjson.StatusFor(err)
		httpjson.Write(w, status, ScoreErrorResponse{Error: http.StatusText(status), Match: match})
		return
	}
	httpjson.Write(w, http.StatusOK, match)
}

func (s *Service) DeleteMatch(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	if err := s.app.DeleteMatch(r.Context(), id); err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
