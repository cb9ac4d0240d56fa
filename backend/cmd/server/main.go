package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/BioHazard786/Questroom/backend/internal/config"
	"github.com/BioHazard786/Questroom/backend/internal/server"
	"github.com/BioHazard786/Questroom/backend/internal/signaling"
	"github.com/BioHazard786/Questroom/backend/internal/telemetry"
	"github.com/BioHazard786/Questroom/internal/directory"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "questroom-relay")
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}
	defer shutdownTracing(context.Background())

	// The hub owns the directory from its own goroutine.
	hub := signaling.NewHub(directory.New(directory.WithMaxCapacity(cfg.MaxCapacity)))
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Routes(hub, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Addr()).Int("max_capacity", cfg.MaxCapacity).Msg("starting relay server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("relay server stopped")
	}
}
