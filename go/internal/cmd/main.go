package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/scoreboard/go/internal/datastore"
	"github.com/mcdev12/scoreboard/go/internal/dbconfig"
	"github.com/mcdev12/scoreboard/go/internal/livematch"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	dbCfg := dbconfig.NewConfigFromEnv()
	db, err := setupDatabase(dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup database")
	}
	defer db.Close()

	store := datastore.New(db)
	if cfg.Realtime.InstallTriggers {
		if err := store.InstallChangeTriggers(context.Background(), cfg.Realtime.NotifyChannel); err != nil {
			log.Fatal().Err(err).Msg("failed to install change triggers")
		}
	}

	var feed livematch.ChangeFeed
	closeFeed := func() {}
	if cfg.Overlay.EnableRealtime {
		feed, closeFeed, err = setupChangeFeed(cfg, dbCfg.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to setup change feed")
		}
	}
	defer closeFeed()

	services := setupServices(store)
	ov := setupOverlay(store, feed, cfg)
	server := setupServer(services, ov.Handler, store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go ov.Hub.Run(ctx)
	if err := ov.Synchronizer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start live match synchronizer")
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("driver", cfg.Realtime.Driver).
			Bool("realtime", cfg.Overlay.EnableRealtime).
			Msg("scoreboard server listening")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	ov.Synchronizer.Stop()
	ov.Events.Shutdown()
}
