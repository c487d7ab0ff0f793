package handler

import (
	"context"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-bingo-bot/internal/service"
	"telegram-bingo-bot/internal/view"
)

// RankingHandler handles ranking-related commands.
type RankingHandler struct {
	rankingService *service.RankingService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(rankingService *service.RankingService) *RankingHandler {
	return &RankingHandler{
		rankingService: rankingService,
	}
}

// HandleLeaderboard handles the /leaderboard command.
// Displays the top players by XP.
func (h *RankingHandler) HandleLeaderboard(c tele.Context) error {
	entries, err := h.rankingService.Leaderboard(context.Background(), service.DefaultLeaderboardSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load leaderboard")
		return c.Reply("❌ Failed to load the leaderboard, please try again later")
	}
	return c.Reply(view.FormatLeaderboard(entries))
}
