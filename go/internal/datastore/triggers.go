package datastore

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const notifyFunction = `CREATE OR REPLACE FUNCTION scoreboard_notify_change() RETURNS trigger AS $$
DECLARE
  rec RECORD;
BEGIN
  IF TG_OP = 'DELETE' THEN
    rec := OLD;
  ELSE
    rec := NEW;
  END IF;
  PERFORM pg_notify(TG_ARGV[0], json_build_object('table', TG_TABLE_NAME, 'op', TG_OP, 'id', rec.id)::text);
  RETURN rec;
END;
$$ LANGUAGE plpgsql`

// changeTriggerSQL returns the statements that attach the notify trigger to table
func changeTriggerSQL(table Table, notifyChannel string) []string {
	trigger := pq.QuoteIdentifier("scoreboard_notify_" + string(table))
	tbl := pq.QuoteIdentifier(string(table))
	return []string{
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", trigger, tbl),
		fmt.Sprintf(
			"CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s FOR EACH ROW EXECUTE FUNCTION scoreboard_notify_change(%s)",
			trigger, tbl, pq.QuoteLiteral(notifyChannel),
		),
	}
}

// InstallChangeTriggers attaches NOTIFY triggers to every table so that
// ChangeFeed subscribers see inserts, updates and deletes.
func (s *Store) InstallChangeTriggers(ctx context.Context, notifyChannel string) error {
	return s.RunInTx(ctx, func(tx *Store) error {
		if _, err := tx.db.ExecContext(ctx, notifyFunction); err != nil {
			return fmt.Errorf("create notify function: %w", err)
		}
		for _, table := range []Table{TableTournaments, TableTeams, TableMatches} {
			for _, stmt := range changeTriggerSQL(table, notifyChannel) {
				if _, err := tx.db.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("install trigger on %s: %w", table, err)
				}
			}
		}
		log.Info().Str("notify_channel", notifyChannel).Msg("change triggers installed")
		return nil
	})
}
