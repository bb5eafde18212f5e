package main

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/config"
	"github.com/noah-isme/sekolah-go-api/internal/database"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "migrate").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info().Msg("schema is up to date")
}
