package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"telegram-bingo-bot/internal/game/bingo"
	"telegram-bingo-bot/internal/model"
	"telegram-bingo-bot/internal/pkg/lock"
)

func TestAccountService(t *testing.T) {
	users := newFakeUsers()
	svc := NewAccountService(users)
	ctx := context.Background()

	user, created, err := svc.EnsureUser(ctx, 10, "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alice", user.Username)

	user, created, err = svc.EnsureUser(ctx, 10, "alice_renamed")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "alice_renamed", user.Username)
	stored, _ := users.GetByID(ctx, 10)
	assert.Equal(t, "alice_renamed", stored.Username)

	_, err = svc.GetProfile(ctx, 99)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.AddCoins(ctx, 10, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.AddCoins(ctx, 99, 5, 1)
	assert.ErrorIs(t, err, ErrUserNotFound)
	user, err = svc.AddCoins(ctx, 10, 15, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(15), user.Coins)
	assert.Equal(t, model.ReasonAdminAdd, users.ledger[len(users.ledger)-1].Reason)

	banned, err := svc.IsBanned(ctx, 10)
	require.NoError(t, err)
	assert.False(t, banned)
	require.NoError(t, svc.SetBanned(ctx, 10, true))
	banned, err = svc.IsBanned(ctx, 10)
	require.NoError(t, err)
	assert.True(t, banned)

	banned, err = svc.IsBanned(ctx, 12345)
	require.NoError(t, err)
	assert.False(t, banned, "unknown users are not banned")
}

// TestProfileLevelProperty checks level and progress are consistent with XP.
func TestProfileLevelProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		xp := rapid.Int64Range(0, 1_000_000).Draw(t, "xp")
		p := NewProfile(&model.User{XP: xp})

		if p.Level != 1+xp/model.XPPerLevel {
			t.Fatalf("level %d for xp %d", p.Level, xp)
		}
		if p.XPIntoLevel+p.XPToNext != model.XPPerLevel {
			t.Fatalf("progress %d + %d != %d", p.XPIntoLevel, p.XPToNext, model.XPPerLevel)
		}
		if (p.Level-1)*model.XPPerLevel+p.XPIntoLevel != xp {
			t.Fatalf("level %d and progress %d do not add up to xp %d", p.Level, p.XPIntoLevel, xp)
		}
	})
}

func TestLeaderboard(t *testing.T) {
	users := newFakeUsers()
	ctx := context.Background()
	for id, xp := range map[int64]int64{1: 10, 2: 500, 3: 250, 4: 999} {
		users.get(id).XP = xp
	}
	users.get(4).Banned = true

	svc := NewRankingService(users)
	board, err := svc.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, int64(2), board[0].UserID)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, int64(6), board[0].Level)
	assert.Equal(t, int64(3), board[1].UserID)
	assert.Equal(t, 3, board[2].Rank)

	board, err = svc.Leaderboard(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, board, 1)
}

// TestRankUsersProperty checks ranks are 1..n in input order.
func TestRankUsersProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		users := make([]*model.User, n)
		for i := range users {
			users[i] = &model.User{TelegramID: int64(i), XP: rapid.Int64Range(0, 10000).Draw(t, "xp")}
		}
		entries := rankUsers(users)
		for i, e := range entries {
			if e.Rank != i+1 || e.UserID != users[i].TelegramID {
				t.Fatalf("entry %d: rank %d user %d", i, e.Rank, e.UserID)
			}
		}
	})
}

const validCardText = "1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16 17 18 19 20 21 22 23 24 25"

func TestCardService(t *testing.T) {
	users := newFakeUsers()
	cards := newFakeCards(users)
	svc := NewCardService(cards, DefaultCardConfig(), lock.NewUserLock())
	ctx := context.Background()

	_, _, err := users.GetOrCreate(ctx, 1, "alice")
	require.NoError(t, err)
	users.get(1).Coins = 12

	_, err = svc.SaveCard(ctx, 1, "bad name!", validCardText)
	assert.ErrorIs(t, err, ErrInvalidCardName)

	_, err = svc.SaveCard(ctx, 1, "dup", "1 1 3 4 5 6 7 8 9 10 11 12 13 14 15 16 17 18 19 20 21 22 23 24 25")
	assert.ErrorIs(t, err, bingo.ErrInvalidCard)
	assert.Equal(t, 0, cards.calls, "invalid cards never reach the store")

	saved, err := svc.SaveCard(ctx, 1, "lucky", validCardText)
	require.NoError(t, err)
	assert.True(t, saved.Card.Valid())

	_, err = svc.SaveCard(ctx, 1, "lucky", validCardText)
	assert.ErrorIs(t, err, ErrCardNameTaken)

	_, err = svc.SaveCard(ctx, 1, "second", validCardText)
	require.NoError(t, err)
	_, err = svc.SaveCard(ctx, 1, "third", validCardText)
	assert.ErrorIs(t, err, ErrInsufficientCoins)

	got, err := svc.GetCard(ctx, 1, "second")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Name)

	require.NoError(t, svc.DeleteCard(ctx, 1, "second"))
	assert.ErrorIs(t, svc.DeleteCard(ctx, 1, "second"), ErrCardNotFound)

	list, err := svc.ListCards(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCardServiceLimitUnderConcurrency(t *testing.T) {
	users := newFakeUsers()
	cards := newFakeCards(users)
	svc := NewCardService(cards, DefaultCardConfig(), lock.NewUserLock())
	ctx := context.Background()

	users.get(1).Coins = 1000

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = svc.SaveCard(ctx, 1, string(rune('a'+i)), validCardText)
		}(i)
	}
	wg.Wait()

	list, err := svc.ListCards(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, bingo.MaxSavedCards)
	u, _ := users.GetByID(ctx, 1)
	assert.Equal(t, int64(1000-5*bingo.MaxSavedCards), u.Coins)
}
