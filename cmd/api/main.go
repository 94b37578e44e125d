package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"carbid-backend/internal/app"
	"carbid-backend/internal/config"
	"carbid-backend/internal/sweeper"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Config load failed")
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("App create failed")
	}

	// Verify connections before serving.
	sqlDB, err := a.DB.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("Get DB failed")
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatal().Err(err).Msg("Postgres connection failed")
	}
	log.Info().Msg("Postgres connected")
	if err := a.Rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	log.Info().Msg("Redis connected")

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sw := sweeper.New(a.Auctions, cfg.SweepInterval)
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sw.Run(sweepCtx)
	}()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info().Msg("Shutting down")
		if err := a.Fiber.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("Server running")
	if err := a.Fiber.Listen(":" + cfg.Port); err != nil {
		log.Error().Err(err).Msg("Server stopped")
	}

	// Let the in-flight sweep finish its current auction, then drain
	// pending notifications.
	stopSweeper()
	<-sweeperDone
	a.Dispatcher.Close()
}
