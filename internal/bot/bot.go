// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-bingo-bot/internal/anticheat"
	"telegram-bingo-bot/internal/config"
	"telegram-bingo-bot/internal/handler"
	"telegram-bingo-bot/internal/room"
	"telegram-bingo-bot/internal/service"
	"telegram-bingo-bot/internal/view"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot   *tele.Bot
	cfg   *config.Config
	guard *anticheat.Detector

	// Handlers
	accountHandler *handler.AccountHandler
	rankingHandler *handler.RankingHandler
	roomHandler    *handler.RoomHandler
	cardHandler    *handler.CardHandler
	adminHandler   *handler.AdminHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config         *config.Config
	Manager        *room.Manager
	AccountService *service.AccountService
	HistoryService *service.HistoryService
	RankingService *service.RankingService
	CardService    *service.CardService
	Detector       *anticheat.Detector
}

// NewTeleBot creates the telebot instance. It is separate from New because
// the notifiers need the instance before the room manager exists.
func NewTeleBot(cfg *config.Config) (*tele.Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Bot.PollTimeout},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Handler failed")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return teleBot, nil
}

// New registers middleware and handlers on teleBot.
func New(teleBot *tele.Bot, deps *Dependencies) *Bot {
	tracker := handler.NewRoomTracker()

	b := &Bot{
		bot:   teleBot,
		cfg:   deps.Config,
		guard: deps.Detector,

		accountHandler: handler.NewAccountHandler(deps.AccountService, deps.HistoryService),
		rankingHandler: handler.NewRankingHandler(deps.RankingService),
		roomHandler:    handler.NewRoomHandler(deps.Manager, tracker, teleBot, deps.AccountService),
		cardHandler:    handler.NewCardHandler(deps.CardService, deps.Manager, tracker),
		adminHandler:   handler.NewAdminHandler(deps.AccountService, deps.Detector, deps.Manager),
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(BanMiddleware(b.guard))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	// Account handlers
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/help", b.accountHandler.HandleHelp)
	b.bot.Handle("/profile", b.accountHandler.HandleProfile)
	b.bot.Handle("/history", b.accountHandler.HandleHistory)
	b.bot.Handle("/leaderboard", b.rankingHandler.HandleLeaderboard)

	// Room lifecycle
	b.bot.Handle("/newroom", b.roomHandler.HandleNewRoom, RateLimitMiddleware(b.guard, anticheat.LimitCreateRoom))
	b.bot.Handle("/join", b.roomHandler.HandleJoin, RateLimitMiddleware(b.guard, anticheat.LimitJoinRoom))
	b.bot.Handle("/leave", b.roomHandler.HandleLeave)
	b.bot.Handle("/cancel", b.roomHandler.HandleCancel)
	b.bot.Handle("/room", b.roomHandler.HandleRoom)
	b.bot.Handle("/card", b.roomHandler.HandleCard)

	// Round play
	b.bot.Handle("/startgame", b.roomHandler.HandleStartGame)
	b.bot.Handle("/call", b.roomHandler.HandleCall, RateLimitMiddleware(b.guard, anticheat.LimitCall))
	b.bot.Handle("/mark", b.roomHandler.HandleMark,
		MuteMiddleware(b.guard), RateLimitMiddleware(b.guard, anticheat.LimitMark))
	b.bot.Handle("/bingo", b.roomHandler.HandleBingo, MuteMiddleware(b.guard))

	// Custom cards
	b.bot.Handle("/savecard", b.cardHandler.HandleSaveCard)
	b.bot.Handle("/mycards", b.cardHandler.HandleMyCards)
	b.bot.Handle("/usecard", b.cardHandler.HandleUseCard)
	b.bot.Handle("/deletecard", b.cardHandler.HandleDeleteCard)

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/admin_add", b.adminHandler.HandleAdminAdd)
	adminGroup.Handle("/admin_ban", b.adminHandler.HandleAdminBan)
	adminGroup.Handle("/admin_unban", b.adminHandler.HandleAdminUnban)
	adminGroup.Handle("/admin_cancel", b.adminHandler.HandleAdminCancel)

	// Card keyboard presses
	b.bot.Handle(tele.OnCallback, b.handleCallback,
		MuteMiddleware(b.guard), RateLimitMiddleware(b.guard, anticheat.LimitMark))
}

// handleCallback routes callbacks to appropriate handlers
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	cb, ok := view.DecodeCallback(callback.Data)
	if !ok {
		log.Debug().Str("raw_data", callback.Data).Msg("Unknown callback")
		return c.Respond()
	}
	return b.roomHandler.HandleCallback(c, cb)
}

// Start starts the bot polling.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
