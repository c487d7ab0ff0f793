package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"telegram-bingo-bot/internal/model"
	"telegram-bingo-bot/internal/repository"
	"telegram-bingo-bot/internal/room"
)

// RewardConfig sets what a round pays out.
type RewardConfig struct {
	WinnerCoins   int64
	WinnerXP      int64
	ParticipantXP int64
}

// DefaultRewardConfig returns the standard payouts.
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{WinnerCoins: 30, WinnerXP: 50, ParticipantXP: 25}
}

// RewardService credits XP and coins when a round resolves.
type RewardService struct {
	users UserStore
	cfg   RewardConfig
}

// NewRewardService creates a new RewardService instance.
func NewRewardService(users UserStore, cfg RewardConfig) *RewardService {
	return &RewardService{users: users, cfg: cfg}
}

var _ room.Rewarder = (*RewardService)(nil)

// rewardsFor computes every participant's credits. A winner who somehow is
// not listed as a participant is still paid.
func rewardsFor(result room.RoundResult, cfg RewardConfig) []repository.RoundReward {
	participants := result.Participants
	if result.WinnerID != nil && !containsID(participants, *result.WinnerID) {
		participants = append(append([]int64(nil), participants...), *result.WinnerID)
	}

	rewards := make([]repository.RoundReward, 0, len(participants))
	for _, id := range participants {
		reward := repository.RoundReward{
			UserID:  id,
			RoundID: result.RoundID,
			Credits: []repository.Credit{
				{Currency: model.CurrencyXP, Amount: cfg.ParticipantXP, Reason: model.ReasonPlayGame},
			},
		}
		if result.WinnerID != nil && *result.WinnerID == id {
			reward.Won = true
			reward.Credits = append(reward.Credits,
				repository.Credit{Currency: model.CurrencyXP, Amount: cfg.WinnerXP, Reason: model.ReasonWinGame},
				repository.Credit{Currency: model.CurrencyCoins, Amount: cfg.WinnerCoins, Reason: model.ReasonWinMultiplayer},
			)
		}
		rewards = append(rewards, reward)
	}
	return rewards
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// AwardRound pays every participant. Each user is credited in its own
// transaction; a user already paid for this round is skipped.
func (s *RewardService) AwardRound(ctx context.Context, result room.RoundResult) error {
	var errs []error
	for _, reward := range rewardsFor(result, s.cfg) {
		user, err := s.users.ApplyRoundReward(ctx, reward)
		if errors.Is(err, repository.ErrAlreadyRewarded) {
			log.Debug().
				Int64("user_id", reward.UserID).
				Str("round_id", result.RoundID).
				Msg("Round already rewarded, skipping")
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", reward.UserID, err))
			continue
		}

		log.Info().
			Int64("user_id", user.TelegramID).
			Str("round_id", result.RoundID).
			Bool("won", reward.Won).
			Int64("xp", user.XP).
			Int64("coins", user.Coins).
			Msg("Round reward applied")
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to award round %s: %w", result.RoundID, errors.Join(errs...))
	}
	return nil
}
