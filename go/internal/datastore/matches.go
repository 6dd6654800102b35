package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/scoreboard/go/internal/models"
	"github.com/mcdev12/scoreboard/go/internal/sqlutil"
)

// MatchInput holds the fields for a new match
type MatchInput struct {
	TournamentID *uuid.UUID
	TeamAID      *uuid.UUID
	TeamBID      *uuid.UUID
	Status       models.MatchStatus
	MatchDate    *time.Time
}

// MatchUpdate patches a match. UpdatedAt must be set by the caller.
type MatchUpdate struct {
	TournamentID *uuid.UUID
	TeamAID      *uuid.UUID
	TeamBID      *uuid.UUID
	TeamAScore   *int
	TeamBScore   *int
	Status       *models.MatchStatus
	UpdatedAt    time.Time
}

const matchReturning = `RETURNING id, tournament_id, team_a_id, team_b_id, team_a_score, team_b_score,
          status, match_date, created_at, updated_at`

func scanMatch(row rowScanner) (models.Match, error) {
	var (
		m                          models.Match
		tournamentID, teamA, teamB uuid.NullUUID
		status                     string
	)
	err := row.Scan(&m.ID, &tournamentID, &teamA, &teamB, &m.TeamAScore, &m.TeamBScore,
		&status, &m.MatchDate, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return models.Match{}, err
	}
	m.TournamentID = sqlutil.FromNullUUID(tournamentID)
	m.TeamAID = sqlutil.FromNullUUID(teamA)
	m.TeamBID = sqlutil.FromNullUUID(teamB)
	m.Status = models.MatchStatus(status)
	return m, nil
}

func scanMatchView(row rowScanner) (models.MatchView, error) {
	var (
		v                          models.MatchView
		tournamentID, teamA, teamB uuid.NullUUID
		status                     string
		tName, tLogo               sql.NullString
		aName, aLogo               sql.NullString
		bName, bLogo               sql.NullString
	)
	err := row.Scan(&v.ID, &tournamentID, &teamA, &teamB, &v.TeamAScore, &v.TeamBScore,
		&status, &v.MatchDate, &v.CreatedAt, &v.UpdatedAt,
		&tName, &tLogo, &aName, &aLogo, &bName, &bLogo)
	if err != nil {
		return models.MatchView{}, err
	}
	v.TournamentID = sqlutil.FromNullUUID(tournamentID)
	v.TeamAID = sqlutil.FromNullUUID(teamA)
	v.TeamBID = sqlutil.FromNullUUID(teamB)
	v.Status = models.MatchStatus(status)
	v.Tournament = displayRef(tName, tLogo)
	v.TeamA = displayRef(aName, aLogo)
	v.TeamB = displayRef(bName, bLogo)
	return v, nil
}

func displayRef(name, logo sql.NullString) *models.DisplayRef {
	if !name.Valid {
		return nil
	}
	return &models.DisplayRef{Name: name.String, LogoURL: sqlutil.FromSqlStringPtr(logo)}
}

// ListMatches returns denormalized matches matching q
func (s *Store) ListMatches(ctx context.Context, q Query) ([]models.MatchView, error) {
	q.Table = TableMatches
	query, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []models.MatchView
	for rows.Next() {
		v, err := scanMatchView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// MaybeSingleMatch returns the first match of q, or ErrNoRows when nothing matched
func (s *Store) MaybeSingleMatch(ctx context.Context, q Query) (*models.MatchView, error) {
	q.Limit = 1
	matches, err := s.ListMatches(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNoRows
	}
	return &matches[0], nil
}

// GetMatch returns a denormalized match by ID or ErrNoRows
func (s *Store) GetMatch(ctx context.Context, id uuid.UUID) (*models.MatchView, error) {
	return s.MaybeSingleMatch(ctx, Query{Filters: []Filter{Eq("id", id)}})
}

// LockMatch reads a match row FOR UPDATE. Only meaningful inside RunInTx.
func (s *Store) LockMatch(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, tournament_id, team_a_id, team_b_id, team_a_score, team_b_score,
       status, match_date, created_at, updated_at
FROM matches WHERE id = $1 FOR UPDATE`, id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("lock match: %w", err)
	}
	return &m, nil
}

// InsertMatch creates a match with both scores at zero
func (s *Store) InsertMatch(ctx context.Context, in MatchInput) (*models.Match, error) {
	status := in.Status
	if status == "" {
		status = models.MatchStatusScheduled
	}

	row := s.db.QueryRowContext(ctx, `INSERT INTO matches
       (tournament_id, team_a_id, team_b_id, team_a_score, team_b_score, status, match_date)
VALUES ($1, $2, $3, 0, 0, $4, COALESCE($5, now()))
`+matchReturning,
		sqlutil.ToNullUUID(in.TournamentID),
		sqlutil.ToNullUUID(in.TeamAID),
		sqlutil.ToNullUUID(in.TeamBID),
		string(status),
		sqlutil.ToSqlTime(in.MatchDate),
	)
	m, err := scanMatch(row)
	if err != nil {
		return nil, fmt.Errorf("insert match: %w", err)
	}
	return &m, nil
}

// UpdateMatch applies upd to the match with the given ID
func (s *Store) UpdateMatch(ctx context.Context, id uuid.UUID, upd MatchUpdate) (*models.Match, error) {
	if upd.UpdatedAt.IsZero() {
		return nil, ErrMissingUpdatedAt
	}

	sets := []string{"updated_at = $1"}
	args := []any{upd.UpdatedAt}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.TournamentID != nil {
		add("tournament_id", *upd.TournamentID)
	}
	if upd.TeamAID != nil {
		add("team_a_id", *upd.TeamAID)
	}
	if upd.TeamBID != nil {
		add("team_b_id", *upd.TeamBID)
	}
	if upd.TeamAScore != nil {
		add("team_a_score", *upd.TeamAScore)
	}
	if upd.TeamBScore != nil {
		add("team_b_score", *upd.TeamBScore)
	}
	if upd.Status != nil {
		add("status", string(*upd.Status))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE matches SET %s WHERE id = $%d\n%s", strings.Join(sets, ", "), len(args), matchReturning)
	m, err := scanMatch(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("update match: %w", err)
	}
	return &m, nil
}

// DeleteMatch deletes a match
func (s *Store) DeleteMatch(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM matches WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	return checkAffected(res)
}
