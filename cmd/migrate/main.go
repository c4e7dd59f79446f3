package main

import (
	"errors"
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"postdeck/internal/pkg/logger"
	"postdeck/internal/platform/config"
	"postdeck/internal/platform/database"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file (empty for env only)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.Logging)

	if *direction != "up" && *direction != "down" {
		log.Fatal().Str("direction", *direction).Msg("direction must be 'up' or 'down'")
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(db, *direction); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Str("direction", *direction).Msg("migration completed")
}
