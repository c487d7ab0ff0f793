// Package main is the entry point for the Telegram Bingo Bot.
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

	"telegram-bingo-bot/internal/anticheat"
	"telegram-bingo-bot/internal/api"
	"telegram-bingo-bot/internal/bot"
	"telegram-bingo-bot/internal/config"
	"telegram-bingo-bot/internal/model"
	"telegram-bingo-bot/internal/notify"
	"telegram-bingo-bot/internal/pkg/db"
	"telegram-bingo-bot/internal/pkg/lock"
	"telegram-bingo-bot/internal/repository"
	"telegram-bingo-bot/internal/room"
	"telegram-bingo-bot/internal/service"
	"telegram-bingo-bot/internal/store"
)

// roomStore is a room.Store that can list rooms to resume after a restart.
type roomStore interface {
	room.Store
	ListByStatus(ctx context.Context, statuses ...model.RoomStatus) ([]string, error)
}

func main() {
	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.Log)

	log.Info().Str("storage", cfg.Storage.Driver).Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Users, the ledger and saved cards need PostgreSQL with either storage
	// driver; the driver only chooses where room state lives.
	dbPool, err := db.Open(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer dbPool.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	ledgerRepo := repository.NewLedgerRepository(dbPool.Pool)
	cardRepo := repository.NewCardRepository(dbPool.Pool)

	var rooms roomStore
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		rooms = store.NewMemoryStore()
		log.Warn().Msg("Rooms are kept in memory and will not survive a restart, users and cards stay in PostgreSQL")
	default:
		rooms = repository.NewRoomRepository(dbPool.Pool)
	}

	teleBot, err := bot.NewTeleBot(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Notification sinks
	telegramNotifier := notify.NewTelegramNotifier(teleBot, cfg.AntiCheat.MuteDuration)
	sinks := notify.Multi{telegramNotifier}

	var hub *notify.Hub
	if cfg.HTTP.Enabled {
		hub = notify.NewHub(nil)
		sinks = append(sinks, hub)
	}

	var publisher *notify.AMQPPublisher
	if cfg.AMQP.Enabled {
		publisher, err = notify.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
		}
		sinks = append(sinks, publisher)
	}

	detector := anticheat.New(antiCheatConfig(cfg.AntiCheat), userRepo, telegramNotifier)
	if err := detector.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load banned users")
	}

	// Initialize services
	userLock := lock.NewUserLock()
	accountService := service.NewAccountService(userRepo)
	historyService := service.NewHistoryService(ledgerRepo, time.Local)
	rankingService := service.NewRankingService(userRepo)
	rewardService := service.NewRewardService(userRepo, service.RewardConfig{
		WinnerCoins:   cfg.Rewards.WinnerCoins,
		WinnerXP:      cfg.Rewards.WinnerXP,
		ParticipantXP: cfg.Rewards.ParticipantXP,
	})
	cardService := service.NewCardService(cardRepo, service.CardConfig{
		MaxSaved: cfg.Cards.MaxSaved,
		Cost:     cfg.Cards.Cost,
	}, userLock)

	manager := room.New(roomConfig(cfg.Game), room.Dependencies{
		Store:    rooms,
		Notifier: sinks,
		Rewarder: rewardService,
		Cheats:   detector,
	})

	codes, err := rooms.ListByStatus(ctx, model.RoomActive, model.RoomInProgress)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list running rooms")
	} else {
		manager.Resume(ctx, codes)
	}

	telegramBot := bot.New(teleBot, &bot.Dependencies{
		Config:         cfg,
		Manager:        manager,
		AccountService: accountService,
		HistoryService: historyService,
		RankingService: rankingService,
		CardService:    cardService,
		Detector:       detector,
	})

	var server *http.Server
	if cfg.HTTP.Enabled {
		server = &http.Server{
			Addr: cfg.HTTP.Addr,
			Handler: api.NewRouter(api.Dependencies{
				Rooms:       manager,
				Leaderboard: rankingService,
				Stream:      hub,
				Health:      dbPool.HealthCheck,
				CORSOrigins: cfg.HTTP.CORSOrigins,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP server failed")
			}
		}()
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	telegramBot.Stop()
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown failed")
		}
		shutdownCancel()
	}
	manager.Close()
	if hub != nil {
		hub.Close()
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close AMQP connection")
		}
	}
	log.Info().Msg("Bot stopped gracefully")
}

func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func roomConfig(g config.GameConfig) room.Config {
	return room.Config{
		MinPlayers:        g.MinPlayers,
		MaxPlayersLimit:   g.MaxPlayers,
		DefaultMaxPlayers: g.DefaultMaxPlayers,
		CodeLength:        g.CodeLength,
		CodeRetries:       g.CodeRetries,
		AutoCallInterval:  g.AutoCallInterval,
	}
}

func antiCheatConfig(a config.AntiCheatConfig) anticheat.Config {
	return anticheat.Config{
		InvalidNumberWeight: a.InvalidNumberWeight,
		FakeBingoWeight:     a.FakeBingoWeight,
		TooFastWinWeight:    a.TooFastWinWeight,
		WarnAt:              a.WarnAt,
		MuteAt:              a.MuteAt,
		BanAt:               a.BanAt,
		MuteDuration:        a.MuteDuration,
		MinWinDuration:      a.MinWinDuration,
		RateLimits:          a.RateLimits,
		RateWindow:          a.RateWindow,
	}
}
