// Package service provides business logic implementations.
// Property-based tests for RewardService.
package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"telegram-bingo-bot/internal/model"
	"telegram-bingo-bot/internal/room"
)

// TestRewardTotalsProperty checks that a round pays ParticipantXP to every
// participant and the winner bonus to exactly one user, or to nobody when the
// pool ran out.
func TestRewardTotalsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := RewardConfig{
			WinnerCoins:   rapid.Int64Range(0, 100).Draw(t, "winnerCoins"),
			WinnerXP:      rapid.Int64Range(0, 100).Draw(t, "winnerXP"),
			ParticipantXP: rapid.Int64Range(0, 100).Draw(t, "participantXP"),
		}
		participants := rapid.SliceOfNDistinct(rapid.Int64Range(1, 1000), 1, 10, rapid.ID[int64]).Draw(t, "participants")

		result := room.RoundResult{RoundID: "r", Participants: participants}
		hasWinner := rapid.Bool().Draw(t, "hasWinner")
		if hasWinner {
			w := rapid.SampledFrom(participants).Draw(t, "winner")
			result.WinnerID = &w
		}

		rewards := rewardsFor(result, cfg)
		if len(rewards) != len(participants) {
			t.Fatalf("expected %d rewards, got %d", len(participants), len(rewards))
		}

		var xp, coins int64
		winners := 0
		for _, r := range rewards {
			if r.Won {
				winners++
			}
			for _, c := range r.Credits {
				switch c.Currency {
				case model.CurrencyXP:
					xp += c.Amount
				case model.CurrencyCoins:
					coins += c.Amount
				}
			}
		}

		wantXP := int64(len(participants)) * cfg.ParticipantXP
		var wantCoins int64
		wantWinners := 0
		if hasWinner {
			wantXP += cfg.WinnerXP
			wantCoins = cfg.WinnerCoins
			wantWinners = 1
		}
		if xp != wantXP || coins != wantCoins || winners != wantWinners {
			t.Fatalf("got xp=%d coins=%d winners=%d, want xp=%d coins=%d winners=%d",
				xp, coins, winners, wantXP, wantCoins, wantWinners)
		}
	})
}

func TestAwardRound(t *testing.T) {
	users := newFakeUsers()
	svc := NewRewardService(users, DefaultRewardConfig())
	ctx := context.Background()

	winner := int64(1)
	result := room.RoundResult{RoundID: "round-1", WinnerID: &winner, Participants: []int64{1, 2}}

	require.NoError(t, svc.AwardRound(ctx, result))

	w, err := users.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(75), w.XP)
	assert.Equal(t, int64(30), w.Coins)
	assert.Equal(t, int64(1), w.GamesWon)
	assert.Equal(t, int64(1), w.GamesPlayed)

	l, err := users.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(25), l.XP)
	assert.Equal(t, int64(0), l.Coins)
	assert.Equal(t, int64(0), l.GamesWon)
	assert.Len(t, users.ledger, 4, "one ledger row per credit")

	// A retried award pays nothing twice.
	require.NoError(t, svc.AwardRound(ctx, result))
	w, err = users.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(75), w.XP)
	assert.Len(t, users.ledger, 4)
}

func TestAwardRoundExhaustedPaysParticipation(t *testing.T) {
	users := newFakeUsers()
	svc := NewRewardService(users, DefaultRewardConfig())
	ctx := context.Background()

	require.NoError(t, svc.AwardRound(ctx, room.RoundResult{RoundID: "r2", Participants: []int64{4, 5}}))
	for _, id := range []int64{4, 5} {
		u, err := users.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(25), u.XP)
		assert.Equal(t, int64(0), u.GamesWon)
	}
}

func TestAwardRoundContinuesPastFailures(t *testing.T) {
	users := newFakeUsers()
	users.failFor[2] = errBoom
	svc := NewRewardService(users, DefaultRewardConfig())
	ctx := context.Background()

	err := svc.AwardRound(ctx, room.RoundResult{RoundID: "r3", Participants: []int64{1, 2, 3}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)

	for _, id := range []int64{1, 3} {
		u, err := users.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(25), u.XP)
	}
}
