package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/avoevodin/debtbot/internal/api"
	"github.com/avoevodin/debtbot/internal/bot"
	"github.com/avoevodin/debtbot/internal/config"
	"github.com/avoevodin/debtbot/internal/db"
	"github.com/avoevodin/debtbot/internal/ledger"
	"github.com/avoevodin/debtbot/internal/registry"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Connect to database
	database, err := db.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	svc := ledger.NewService(database, log)

	reg := registry.New(svc, cfg.ScenarioTTL, log)
	reg.Start(time.Hour)
	defer reg.Stop()

	// Initialize Discord bot
	discordBot, err := bot.New(cfg.DiscordToken, svc, reg, cfg.DefaultEvent, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create discord bot")
	}

	// Initialize API server
	apiServer := api.New(cfg, svc, log)

	// Start Discord bot
	if err := discordBot.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start discord bot")
	}
	defer discordBot.Stop()

	// Start API server
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error().Err(err).Msg("api server error")
		}
	}()

	// Wait for signal to stop
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
}
