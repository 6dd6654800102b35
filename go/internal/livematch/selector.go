package livematch

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/scoreboard/go/internal/datastore"
	"github.com/mcdev12/scoreboard/go/internal/models"
)

// MatchSource is what the synchronizer needs from the data layer
type MatchSource interface {
	MaybeSingleMatch(ctx context.Context, q datastore.Query) (*models.MatchView, error)
}

var (
	liveMatchQuery = datastore.Query{
		Table:   datastore.TableMatches,
		Filters: []datastore.Filter{datastore.Eq("status", string(models.MatchStatusLive))},
		Order:   datastore.Order{Column: "updated_at"},
		Limit:   1,
	}
	recentMatchQuery = datastore.Query{
		Table: datastore.TableMatches,
		Order: datastore.Order{Column: "updated_at"},
		Limit: 1,
	}
)

// SelectCurrent picks the match to display: the most recently updated live
// match if there is one, otherwise the most recently updated match of any
// status. It returns nil when there are no matches at all.
func SelectCurrent(ctx context.Context, src MatchSource) (*models.MatchView, error) {
	live, err := src.MaybeSingleMatch(ctx, liveMatchQuery)
	if err != nil && !errors.Is(err, datastore.ErrNoRows) {
		return nil, fmt.Errorf("query live match: %w", err)
	}
	if live != nil {
		return live, nil
	}

	recent, err := src.MaybeSingleMatch(ctx, recentMatchQuery)
	if errors.Is(err, datastore.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query recent match: %w", err)
	}
	return recent, nil
}

// matchChanged reports whether next differs from prev in any field the
// overlay renders from. Absence counts as its own identity.
func matchChanged(prev, next *models.MatchView) bool {
	if prev == nil || next == nil {
		return prev != next
	}
	return prev.ID != next.ID ||
		prev.TeamAScore != next.TeamAScore ||
		prev.TeamBScore != next.TeamBScore ||
		prev.Status != next.Status ||
		!prev.UpdatedAt.Equal(next.UpdatedAt)
}
