package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/scoreboard/go/internal/datastore"
	"github.com/mcdev12/scoreboard/go/internal/dbconfig"
	"github.com/mcdev12/scoreboard/go/internal/realtime"
)

func main() {
	// load .env
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	cfg := dbconfig.NewConfigFromEnv()
	dsn := cfg.DSN()
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}
	log.Info().Str("dsn", cfg.Redacted()).Msg("connected to database")

	feedCfg := datastore.DefaultFeedConfig()
	feedCfg.DatabaseURL = dsn
	if ch := os.Getenv("NOTIFY_CHANNEL"); ch != "" {
		feedCfg.NotifyChannel = ch
	}
	// the relay forwards everything; consumers apply their own cap
	feedCfg.EventsPerSecond = 0

	if os.Getenv("INSTALL_TRIGGERS") == "true" {
		if err := datastore.New(db).InstallChangeTriggers(context.Background(), feedCfg.NotifyChannel); err != nil {
			log.Fatal().Err(err).Msg("install change triggers")
		}
	}

	jsCfg := realtime.DefaultJetStreamConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		jsCfg.URL = url
	}
	nc, js, err := realtime.Connect(jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to NATS")
	}
	defer nc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher, err := realtime.NewJetStreamPublisher(ctx, js, jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create JetStream publisher")
	}

	relay := realtime.NewRelay(datastore.NewChangeFeed(feedCfg), publisher, realtime.DefaultRelayConfig())
	if err := relay.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("relay stopped")
	}
}
