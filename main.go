package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/arijanluiken/quantcore/internal/supervisor"
	"github.com/arijanluiken/quantcore/pkg/config"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("database", cfg.Database.Path).
		Int("api_port", cfg.API.Port).
		Int("ui_port", cfg.UI.Port).
		Strs("providers", cfg.Providers.Enabled).
		Msg("Quantcore market analysis service starting")

	sup := supervisor.New()
	if err := sup.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start supervisor")
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down")
}