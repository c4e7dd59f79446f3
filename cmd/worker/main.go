package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"postdeck/internal/engine/channels"
	"postdeck/internal/engine/oauth"
	"postdeck/internal/pkg/logger"
	"postdeck/internal/platform/audit"
	"postdeck/internal/platform/config"
	"postdeck/internal/platform/database"
	"postdeck/internal/platform/repositories"
	"postdeck/internal/workers"
)

func main() {
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

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	auditLogger := audit.NewLogger(repositories.NewAuditLogRepository(db))
	flow := oauth.NewFlow(cfg.OAuth, cfg.JWT,
		repositories.NewOAuthStateRepository(db),
		repositories.NewMembershipRepository(db),
		channels.NewService(repositories.NewChannelRepository(db), auditLogger),
		auditLogger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workers.Run(ctx, workers.PurgeOAuthStates(flow, cfg.Worker.PurgeInterval))
}
