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

// NamedInput holds the writable fields shared by tournaments and teams
type NamedInput struct {
	Name    string
	LogoURL *string
}

// NamedUpdate patches a tournament or team. An empty LogoURL clears the logo.
type NamedUpdate struct {
	Name      *string
	LogoURL   *string
	UpdatedAt time.Time
}

type namedRow struct {
	ID        uuid.UUID
	Name      string
	LogoURL   sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r namedRow) tournament() models.Tournament {
	return models.Tournament{
		ID:        r.ID,
		Name:      r.Name,
		LogoURL:   sqlutil.FromSqlStringPtr(r.LogoURL),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r namedRow) team() models.Team {
	return models.Team{
		ID:        r.ID,
		Name:      r.Name,
		LogoURL:   sqlutil.FromSqlStringPtr(r.LogoURL),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNamed(row rowScanner) (namedRow, error) {
	var r namedRow
	err := row.Scan(&r.ID, &r.Name, &r.LogoURL, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func listNamed[T any](ctx context.Context, db DBTX, q Query, conv func(namedRow) T) ([]T, error) {
	query, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		r, err := scanNamed(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Table, err)
		}
		out = append(out, conv(r))
	}
	return out, rows.Err()
}

func getNamed(ctx context.Context, db DBTX, table Table, id uuid.UUID) (namedRow, error) {
	query, args, err := buildSelect(Query{Table: table, Filters: []Filter{Eq("id", id)}, Limit: 1})
	if err != nil {
		return namedRow{}, err
	}
	r, err := scanNamed(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return namedRow{}, ErrNoRows
	}
	return r, err
}

func insertNamed(ctx context.Context, db DBTX, table Table, in NamedInput) (namedRow, error) {
	query := fmt.Sprintf(`INSERT INTO %s (name, logo_url) VALUES ($1, $2)
RETURNING id, name, logo_url, created_at, updated_at`, table)
	r, err := scanNamed(db.QueryRowContext(ctx, query, in.Name, sqlutil.ToSqlStringOrNull(in.LogoURL)))
	if err != nil {
		return namedRow{}, fmt.Errorf("insert %s: %w", table, err)
	}
	return r, nil
}

func updateNamed(ctx context.Context, db DBTX, table Table, id uuid.UUID, upd NamedUpdate) (namedRow, error) {
	if upd.UpdatedAt.IsZero() {
		return namedRow{}, ErrMissingUpdatedAt
	}

	sets := []string{"updated_at = $1"}
	args := []any{upd.UpdatedAt}
	if upd.Name != nil {
		args = append(args, *upd.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if upd.LogoURL != nil {
		args = append(args, sqlutil.ToSqlStringOrNull(upd.LogoURL))
		sets = append(sets, fmt.Sprintf("logo_url = $%d", len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d
RETURNING id, name, logo_url, created_at, updated_at`, table, strings.Join(sets, ", "), len(args))
	r, err := scanNamed(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return namedRow{}, ErrNoRows
	}
	if err != nil {
		return namedRow{}, fmt.Errorf("update %s: %w", table, err)
	}
	return r, nil
}

func deleteNamed(ctx context.Context, db DBTX, table Table, id uuid.UUID) error {
	res, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return checkAffected(res)
}

// ListTournaments returns tournaments matching q
func (s *Store) ListTournaments(ctx context.Context, q Query) ([]models.Tournament, error) {
	q.Table = TableTournaments
	return listNamed(ctx, s.db, q, namedRow.tournament)
}

// GetTournament returns a tournament by ID or ErrNoRows
func (s *Store) GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	r, err := getNamed(ctx, s.db, TableTournaments, id)
	if err != nil {
		return nil, err
	}
	t := r.tournament()
	return &t, nil
}

// InsertTournament creates a tournament
func (s *Store) InsertTournament(ctx context.Context, in NamedInput) (*models.Tournament, error) {
	r, err := insertNamed(ctx, s.db, TableTournaments, in)
	if err != nil {
		return nil, err
	}
	t := r.tournament()
	return &t, nil
}

// UpdateTournament patches a tournament
func (s *Store) UpdateTournament(ctx context.Context, id uuid.UUID, upd NamedUpdate) (*models.Tournament, error) {
	r, err := updateNamed(ctx, s.db, TableTournaments, id, upd)
	if err != nil {
		return nil, err
	}
	t := r.tournament()
	return &t, nil
}

// DeleteTournament deletes a tournament
func (s *Store) DeleteTournament(ctx context.Context, id uuid.UUID) error {
	return deleteNamed(ctx, s.db, TableTournaments, id)
}

// ListTeams returns teams matching q
func (s *Store) ListTeams(ctx context.Context, q Query) ([]models.Team, error) {
	q.Table = TableTeams
	return listNamed(ctx, s.db, q, namedRow.team)
}

// GetTeam returns a team by ID or ErrNoRows
func (s *Store) GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	r, err := getNamed(ctx, s.db, TableTeams, id)
	if err != nil {
		return nil, err
	}
	t := r.team()
	return &t, nil
}

// InsertTeam creates a team
func (s *Store) InsertTeam(ctx context.Context, in NamedInput) (*models.Team, error) {
	r, err := insertNamed(ctx, s.db, TableTeams, in)
	if err != nil {
		return nil, err
	}
	t := r.team()
	return &t, nil
}

// UpdateTeam patches a team
func (s *Store) UpdateTeam(ctx context.Context, id uuid.UUID, upd NamedUpdate) (*models.Team, error) {
	r, err := updateNamed(ctx, s.db, TableTeams, id, upd)
	if err != nil {
		return nil, err
	}
	t := r.team()
	return &t, nil
}

// DeleteTeam deletes a team
func (s *Store) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	return deleteNamed(ctx, s.db, TableTeams, id)
}
