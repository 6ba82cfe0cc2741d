package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/kinoshkola/filmschool-bot/internal/bot"
	"github.com/kinoshkola/filmschool-bot/internal/config"
	"github.com/kinoshkola/filmschool-bot/internal/logger"
	"github.com/kinoshkola/filmschool-bot/internal/repository/sqlstore"
	"github.com/kinoshkola/filmschool-bot/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("filmschool-bot", true)
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init("filmschool-bot", cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := sqlstore.Open(ctx, sqlstore.Options{
		PostgresDSN: cfg.DatabaseURL,
		SQLitePath:  cfg.DatabasePath,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}
	if err := db.EnsureAdmin(ctx, cfg.AdminID); err != nil {
		log.Fatal().Err(err).Msg("failed to seed administrator")
	}

	// Initialize repositories
	userRepo := sqlstore.NewUserRepository(db)
	pendingRepo := sqlstore.NewPendingUserRepository(db)
	logRepo := sqlstore.NewActionLogRepository(db)
	buttonRepo := sqlstore.NewButtonRepository(db)

	// Initialize services
	accessService := service.NewAccessService(userRepo, pendingRepo)
	auditService := service.NewAuditService(logRepo, userRepo)
	buttonService := service.NewButtonService(buttonRepo, service.DefaultButtons())
	if err := buttonService.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to load button config")
	}

	// Initialize bot
	telegramBot, err := bot.New(cfg.TelegramToken, accessService, auditService, buttonService, cfg.HandlerTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize bot")
	}

	log.Info().Msg("bot started")
	if err := telegramBot.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("bot stopped with error")
	}

	log.Info().Msg("shutting down")
}
