package service

import (
	"context"
	"fmt"

	"telegram-bingo-bot/internal/model"
)

// DefaultLeaderboardSize is the number of users /leaderboard shows.
const DefaultLeaderboardSize = 10

// LeaderboardEntry is one row of the leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	Level       int64  `json:"level"`
	XP          int64  `json:"xp"`
	GamesPlayed int64  `json:"games_played"`
	GamesWon    int64  `json:"games_won"`
}

// RankingService handles leaderboard queries.
type RankingService struct {
	users UserStore
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(users UserStore) *RankingService {
	return &RankingService{users: users}
}

// Leaderboard returns the top users by XP. A non-positive limit uses
// DefaultLeaderboardSize.
func (s *RankingService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	users, err := s.users.GetTopByXP(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	return rankUsers(users), nil
}

// rankUsers numbers users in the order given.
func rankUsers(users []*model.User) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, len(users))
	for i, u := range users {
		entries[i] = LeaderboardEntry{
			Rank:        i + 1,
			UserID:      u.TelegramID,
			Username:    u.Username,
			Level:       u.Level(),
			XP:          u.XP,
			GamesPlayed: u.GamesPlayed,
			GamesWon:    u.GamesWon,
		}
	}
	return entries
}
