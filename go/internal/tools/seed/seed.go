package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/scoreboard/go/internal/dbconfig"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML layout of the seed file. Matches refer to tournaments
// and teams by name.
type Fixture struct {
	Tournaments []Named        `yaml:"tournaments"`
	Teams       []Named        `yaml:"teams"`
	Matches     []FixtureMatch `yaml:"matches"`
}

type Named struct {
	Name    string `yaml:"name"`
	LogoURL string `yaml:"logo_url"`
}

type FixtureMatch struct {
	Tournament string     `yaml:"tournament"`
	TeamA      string     `yaml:"team_a"`
	TeamB      string     `yaml:"team_b"`
	ScoreA     int        `yaml:"score_a"`
	ScoreB     int        `yaml:"score_b"`
	Status     string     `yaml:"status"`
	Date       *time.Time `yaml:"date"`
}

var validStatus = map[string]bool{"scheduled": true, "live": true, "finished": true}

func parseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal fixture: %w", err)
	}

	tournaments := names(f.Tournaments)
	teams := names(f.Teams)
	for i, m := range f.Matches {
		if m.Tournament != "" && !tournaments[m.Tournament] {
			return nil, fmt.Errorf("match %d: unknown tournament %q", i, m.Tournament)
		}
		if !teams[m.TeamA] || !teams[m.TeamB] {
			return nil, fmt.Errorf("match %d: unknown team %q or %q", i, m.TeamA, m.TeamB)
		}
		if m.TeamA == m.TeamB {
			return nil, fmt.Errorf("match %d: team %q cannot play itself", i, m.TeamA)
		}
		if m.ScoreA < 0 || m.ScoreB < 0 {
			return nil, fmt.Errorf("match %d: negative score", i)
		}
		if m.Status == "" {
			f.Matches[i].Status = "scheduled"
		} else if !validStatus[m.Status] {
			return nil, fmt.Errorf("match %d: invalid status %q", i, m.Status)
		}
	}
	return &f, nil
}

func names(list []Named) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, n := range list {
		out[n.Name] = true
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ensureNamed returns the id of the row with name in table, inserting it when absent
func ensureNamed(ctx context.Context, tx pgx.Tx, table string, n Named) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE name = $1 LIMIT 1`, table), n.Name).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, err
	}
	err = tx.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (name, logo_url) VALUES ($1, $2) RETURNING id`, table),
		n.Name, nullable(n.LogoURL),
	).Scan(&id)
	return id, err == nil, err
}

func main() {
	ctx := context.Background()

	// 1) Load the fixture
	path := "go/internal/assets/scoreboard.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read fixture: %v\n", err)
		os.Exit(1)
	}
	fixture, err := parseFixture(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Seed everything in one transaction
	var inserted, skipped int
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		ids := map[string]uuid.UUID{}
		for table, list := range map[string][]Named{"tournaments": fixture.Tournaments, "teams": fixture.Teams} {
			for _, n := range list {
				id, created, err := ensureNamed(ctx, tx, table, n)
				if err != nil {
					return fmt.Errorf("seed %s %q: %w", table, n.Name, err)
				}
				ids[table+"/"+n.Name] = id
				if created {
					inserted++
				} else {
					skipped++
				}
			}
		}

		for _, m := range fixture.Matches {
			var tournamentID *uuid.UUID
			if m.Tournament != "" {
				id := ids["tournaments/"+m.Tournament]
				tournamentID = &id
			}
			_, err := tx.Exec(ctx, `
                INSERT INTO matches (
                  tournament_id, team_a_id, team_b_id, team_a_score, team_b_score, status, match_date
                ) VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))`,
				tournamentID, ids["teams/"+m.TeamA], ids["teams/"+m.TeamB],
				m.ScoreA, m.ScoreB, m.Status, m.Date,
			)
			if err != nil {
				return fmt.Errorf("seed match %s vs %s: %w", m.TeamA, m.TeamB, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	// 4) Print summary
	fmt.Printf("Scoreboard seed complete: %d inserted, %d already present\n", inserted, skipped)
}
