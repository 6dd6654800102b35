package main

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/mcdev12/scoreboard/go/internal/dbconfig"
	"github.com/rs/zerolog/log"
)

func setupDatabase(cfg dbconfig.Config) (*sql.DB, error) {
	database, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	database.SetMaxOpenConns(getEnvAsInt("DB_MAX_OPEN_CONNS", 10))
	database.SetConnMaxIdleTime(5 * time.Minute)

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("dsn", cfg.Redacted()).Msg("connected to database")
	return database, nil
}
