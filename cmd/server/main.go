package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stwalsh4118/duet/internal/config"
	"github.com/stwalsh4118/duet/internal/db"
	"github.com/stwalsh4118/duet/internal/logger"
	"github.com/stwalsh4118/duet/internal/server"
)

const (
	migrationsPath  = "file://./migrations"
	shutdownTimeout = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "duet: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Watch(
		func(next *config.Config) {
			// Only the log level applies without a restart
			logger.SetLevel(next.Logging.Level)
			logger.Log.Info().
				Str("level", next.Logging.Level).
				Msg("Configuration reloaded")
		},
		func(err error) {
			logger.Log.Warn().Err(err).Msg("Ignoring invalid configuration change")
		},
	)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	logger.Log.Info().Msg("Duet playback service starting")

	database, err := db.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	sqlDB, err := database.GetSQLDB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	if err := db.RunMigrations(sqlDB, migrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	srv := server.New(cfg, database)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigCh:
		logger.Log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(ctx)
}
