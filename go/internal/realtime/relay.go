package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scoreboard/go/internal/datastore"
	"github.com/rs/zerolog/log"
)

// ChangeSource is where the relay reads changes from, normally a *datastore.ChangeFeed
type ChangeSource interface {
	Subscribe(ctx context.Context, channel string, table datastore.Table) (datastore.Subscription, error)
}

type RelayConfig struct {
	Tables     []datastore.Table
	MaxRetries int
	RetryDelay time.Duration // grows linearly with each attempt
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Tables:     []datastore.Table{datastore.TableMatches},
		MaxRetries: 5,
		RetryDelay: 200 * time.Millisecond,
	}
}

// Relay copies database change notifications onto JetStream so overlay
// servers can follow changes without holding their own LISTEN connection.
type Relay struct {
	source    ChangeSource
	publisher Publisher
	cfg       RelayConfig
	clock     clockwork.Clock
}

func NewRelay(source ChangeSource, publisher Publisher, cfg RelayConfig) *Relay {
	return &Relay{
		source:    source,
		publisher: publisher,
		cfg:       cfg,
		clock:     clockwork.NewRealClock(),
	}
}

// Run relays changes until ctx is cancelled
func (r *Relay) Run(ctx context.Context) error {
	subs := make([]datastore.Subscription, 0, len(r.cfg.Tables))
	defer func() {
		for _, sub := range subs {
			if err := sub.Unsubscribe(); err != nil {
				log.Error().Err(err).Msg("failed to release relay subscription")
			}
		}
	}()

	for _, table := range r.cfg.Tables {
		sub, err := r.source.Subscribe(ctx, "relay-"+string(table), table)
		if err != nil {
			return fmt.Errorf("subscribe to %s changes: %w", table, err)
		}
		subs = append(subs, sub)
	}

	log.Info().Int("tables", len(subs)).Msg("relay started")

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub datastore.Subscription) {
			defer wg.Done()
			r.forward(ctx, sub)
		}(sub)
	}
	wg.Wait()

	log.Info().Msg("relay shutting down")
	return nil
}

func (r *Relay) forward(ctx context.Context, sub datastore.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := r.publishWithRetry(ctx, ev); err != nil {
				log.Error().
					Err(err).
					Str("table", string(ev.Table)).
					Str("record_id", ev.RecordID.String()).
					Msg("failed to relay change")
			}
		}
	}
}

// publishWithRetry attempts to publish ev with a linearly growing delay between attempts
func (r *Relay) publishWithRetry(ctx context.Context, ev datastore.ChangeEvent) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(delay):
			}
		}

		err := r.publisher.Publish(ctx, ev)
		if err == nil {
			if attempt > 0 {
				log.Info().Int("attempt", attempt+1).Msg("published change after retry")
			}
			return nil
		}
		lastErr = err

		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", r.cfg.MaxRetries+1).
			Msg("publish attempt failed")
	}

	return fmt.Errorf("failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}
