package main

import (
	"fmt"
	stdlog "log"

	"github.com/alexandrevicenzi/go-sse"
	"github.com/mcdev12/scoreboard/go/internal/datastore"
	"github.com/mcdev12/scoreboard/go/internal/livematch"
	"github.com/mcdev12/scoreboard/go/internal/matches"
	"github.com/mcdev12/scoreboard/go/internal/overlay"
	"github.com/mcdev12/scoreboard/go/internal/realtime"
	"github.com/mcdev12/scoreboard/go/internal/teams"
	"github.com/mcdev12/scoreboard/go/internal/tournaments"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Tournaments *tournaments.Service
	Teams       *teams.Service
	Matches     *matches.Service
}

func setupServices(store *datastore.Store) *Services {
	// Store → App layer → Service layer
	return &Services{
		Tournaments: tournaments.NewService(tournaments.NewApp(store)),
		Teams:       teams.NewService(teams.NewApp(store)),
		Matches:     matches.NewService(matches.NewApp(matches.NewRepository(store))),
	}
}

// setupChangeFeed picks the change notification transport for the overlay.
// The returned cleanup closes any connection it opened.
func setupChangeFeed(cfg *Config, dsn string) (livematch.ChangeFeed, func(), error) {
	switch cfg.Realtime.Driver {
	case DriverNATS:
		feedCfg := realtime.DefaultFeedConfig()
		feedCfg.JetStream.URL = getEnv("NATS_URL", feedCfg.JetStream.URL)
		feedCfg.EventsPerSecond = cfg.Realtime.EventsPerSecond

		nc, js, err := realtime.Connect(feedCfg.JetStream)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		return realtime.NewFeed(js, feedCfg), nc.Close, nil
	default:
		return datastore.NewChangeFeed(cfg.feedConfig(dsn)), func() {}, nil
	}
}

type Overlay struct {
	Synchronizer *livematch.Synchronizer
	Hub          *overlay.Hub
	Handler      *overlay.Handler
	Events       *sse.Server
}

func setupOverlay(store *datastore.Store, feed livematch.ChangeFeed, cfg *Config) *Overlay {
	opts := []livematch.Option{
		livematch.WithMetrics(livematch.NewPrometheusMetrics(prometheus.DefaultRegisterer)),
	}
	if feed != nil {
		opts = append(opts, livematch.WithChangeFeed(feed))
	}
	syncer := livematch.New(store, cfg.synchronizerConfig(), opts...)

	events := sse.NewServer(&sse.Options{
		Logger: stdlog.New(log.Logger.With().Str("component", "sse").Logger(), "", 0),
	})
	conns := overlay.NewConnectionManager(overlay.DefaultConnectionConfig())
	hub := overlay.NewHub(syncer, conns, events)

	return &Overlay{
		Synchronizer: syncer,
		Hub:          hub,
		Handler:      overlay.NewHandler(hub, conns, events),
		Events:       events,
	}
}
