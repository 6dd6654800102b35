package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/scoreboard/go/internal/overlay"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Pinger reports whether the database is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

func setupServer(services *Services, overlayHandler *overlay.Handler, db Pinger) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	services.Tournaments.RegisterRoutes(mux)
	services.Teams.RegisterRoutes(mux)
	services.Matches.RegisterRoutes(mux)
	overlayHandler.RegisterRoutes(mux)

	mux.Handle("GET /metrics", promhttp.Handler())
	setupHealthCheck(mux, db)

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func setupHealthCheck(mux *http.ServeMux, db Pinger) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("health check failed")
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
