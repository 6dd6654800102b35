package datastore

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoRows is returned by single-row reads that matched nothing. It marks a
// valid empty result rather than a backend failure.
var ErrNoRows = errors.New("datastore: no rows")

// ErrUnknownColumn is returned when a query names a column outside the table's allowlist
var ErrUnknownColumn = errors.New("datastore: unknown column")

// Table names one of the record types the store exposes
type Table string

const (
	TableTournaments Table = "tournaments"
	TableTeams       Table = "teams"
	TableMatches     Table = "matches"
)

// Filter is an equality predicate on a single column
type Filter struct {
	Column string
	Value  any
}

// Order is a sort key and direction
type Order struct {
	Column    string
	Ascending bool
}

// Query describes a read against one table
type Query struct {
	Table   Table
	Filters []Filter
	Order   Order
	Limit   int
}

// Eq is shorthand for an equality filter
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

var tableColumns = map[Table][]string{
	TableTournaments: {"id", "name", "logo_url", "created_at", "updated_at"},
	TableTeams:       {"id", "name", "logo_url", "created_at", "updated_at"},
	TableMatches: {
		"id", "tournament_id", "team_a_id", "team_b_id", "team_a_score", "team_b_score",
		"status", "match_date", "created_at", "updated_at",
	},
}

const matchSelect = `SELECT m.id, m.tournament_id, m.team_a_id, m.team_b_id, m.team_a_score, m.team_b_score,
       m.status, m.match_date, m.created_at, m.updated_at,
       t.name, t.logo_url, ta.name, ta.logo_url, tb.name, tb.logo_url
FROM matches m
LEFT JOIN tournaments t ON t.id = m.tournament_id
LEFT JOIN teams ta ON ta.id = m.team_a_id
LEFT JOIN teams tb ON tb.id = m.team_b_id`

func knownColumn(table Table, column string) bool {
	for _, c := range tableColumns[table] {
		if c == column {
			return true
		}
	}
	return false
}

// buildSelect renders q into SQL and positional args. Matches are selected
// with their tournament and team display columns joined in.
func buildSelect(q Query) (string, []any, error) {
	if _, ok := tableColumns[q.Table]; !ok {
		return "", nil, fmt.Errorf("unknown table %q", q.Table)
	}

	var sb strings.Builder
	prefix := ""
	if q.Table == TableMatches {
		sb.WriteString(matchSelect)
		prefix = "m."
	} else {
		fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(tableColumns[q.Table], ", "), q.Table)
	}

	args := make([]any, 0, len(q.Filters))
	for i, f := range q.Filters {
		if !knownColumn(q.Table, f.Column) {
			return "", nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, q.Table, f.Column)
		}
		if i == 0 {
			sb.WriteString("\nWHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&sb, "%s%s = $%d", prefix, f.Column, len(args))
	}

	if q.Order.Column != "" {
		if !knownColumn(q.Table, q.Order.Column) {
			return "", nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, q.Table, q.Order.Column)
		}
		dir := "DESC"
		if q.Order.Ascending {
			dir = "ASC"
		}
		fmt.Fprintf(&sb, "\nORDER BY %s%s %s", prefix, q.Order.Column, dir)
	}

	if q.Limit > 0 {
		fmt.Fprintf(&sb, "\nLIMIT %d", q.Limit)
	}

	return sb.String(), args, nil
}
