package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/storyteller/internal/app"
	"github.com/snappy-loop/storyteller/internal/config"
)

func main() {
	cfg := config.Load()
	app.ConfigureLogging(cfg.LogLevel)

	log.Info().Msg("Starting Storyteller API")

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storyteller")
	}
	defer a.Close()

	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     a.Router(),
		ReadTimeout: 15 * time.Second,
		// A story runs text, image and speech generation inline.
		WriteTimeout: 15 * time.Minute,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down API...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("API exited")
}
