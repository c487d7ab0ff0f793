package handler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"telegram-bingo-bot/internal/model"
	"telegram-bingo-bot/internal/room"
	"telegram-bingo-bot/internal/store"
	"telegram-bingo-bot/internal/view"
)

// fakeContext implements the parts of tele.Context the handlers use.
type fakeContext struct {
	tele.Context
	sender    *tele.User
	chat      *tele.Chat
	args      []string
	message   *tele.Message
	replies   []string
	responses []*tele.CallbackResponse
}

func (f *fakeContext) Sender() *tele.User { return f.sender }

func (f *fakeContext) Chat() *tele.Chat { return f.chat }

func (f *fakeContext) Args() []string { return f.args }

func (f *fakeContext) Message() *tele.Message { return f.message }

func (f *fakeContext) Reply(what interface{}, _ ...interface{}) error {
	f.replies = append(f.replies, fmt.Sprint(what))
	return nil
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	f.responses = append(f.responses, resp...)
	return nil
}

func (f *fakeContext) lastReply() string {
	if len(f.replies) == 0 {
		return ""
	}
	return f.replies[len(f.replies)-1]
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []*tele.ReplyMarkup
	edited  []*tele.ReplyMarkup
	sendErr error
}

func (f *fakeMessenger) Send(_ tele.Recipient, _ interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	for _, opt := range opts {
		if m, ok := opt.(*tele.ReplyMarkup); ok {
			f.sent = append(f.sent, m)
		}
	}
	return &tele.Message{}, nil
}

func (f *fakeMessenger) EditReplyMarkup(_ tele.Editable, markup *tele.ReplyMarkup) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, markup)
	return &tele.Message{}, nil
}

var (
	alice = &tele.User{ID: 1, Username: "alice"}
	bob   = &tele.User{ID: 2, FirstName: "Bob"}
)

func privateChat(u *tele.User) *tele.Chat {
	return &tele.Chat{ID: u.ID, Type: tele.ChatPrivate}
}

type env struct {
	manager   *room.Manager
	tracker   *RoomTracker
	messenger *fakeMessenger
	rooms     *RoomHandler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg := room.DefaultConfig()
	cfg.AutoCallInterval = 0
	m := room.New(cfg, room.Dependencies{
		Store: store.NewMemoryStore(),
		Rand:  rand.New(rand.NewSource(7)),
	})
	t.Cleanup(m.Close)

	e := &env{manager: m, tracker: NewRoomTracker(), messenger: &fakeMessenger{}}
	e.rooms = NewRoomHandler(m, e.tracker, e.messenger, nil)
	return e
}

func (e *env) run(t *testing.T, h tele.HandlerFunc, u *tele.User, args ...string) *fakeContext {
	t.Helper()
	c := &fakeContext{sender: u, chat: privateChat(u), args: args}
	require.NoError(t, h(c))
	return c
}

// startedRoom creates a two player room through the commands and starts it.
func (e *env) startedRoom(t *testing.T) string {
	t.Helper()
	e.run(t, e.rooms.HandleNewRoom, alice, "2")
	code, ok := e.tracker.Get(alice.ID)
	require.True(t, ok)

	c := e.run(t, e.rooms.HandleJoin, bob, code)
	require.Empty(t, c.replies)
	c = e.run(t, e.rooms.HandleStartGame, alice)
	require.Empty(t, c.replies)
	return code
}

func (e *env) snapshot(t *testing.T, code string) *model.RoomSnapshot {
	t.Helper()
	snap, err := e.manager.Snapshot(context.Background(), code)
	require.NoError(t, err)
	return snap
}

func TestRoomTrackerResolve(t *testing.T) {
	tr := NewRoomTracker()

	_, _, ok := tr.Resolve(1, []string{"12"}, 6)
	assert.False(t, ok, "no current room and no code")

	code, rest, ok := tr.Resolve(1, []string{"abcdef", "12"}, 6)
	require.True(t, ok)
	assert.Equal(t, "ABCDEF", code)
	assert.Equal(t, []string{"12"}, rest)

	tr.Set(1, "ZZZZZZ")
	code, rest, ok = tr.Resolve(1, []string{"12"}, 6)
	require.True(t, ok)
	assert.Equal(t, "ZZZZZZ", code)
	assert.Equal(t, []string{"12"}, rest)

	// An all-digit argument of code length is still a number.
	code, _, _ = tr.Resolve(1, []string{"234567"}, 6)
	assert.Equal(t, "ZZZZZZ", code)

	tr.Forget(1, "OTHER1")
	_, ok = tr.Get(1)
	assert.True(t, ok, "forgetting another room keeps the current one")
	tr.Forget(1, "ZZZZZZ")
	_, ok = tr.Get(1)
	assert.False(t, ok)
}

func TestParseCreateArgs(t *testing.T) {
	opts, err := parseCreateArgs([]string{"4", "AUTO", "private"})
	require.NoError(t, err)
	assert.Equal(t, room.CreateOptions{MaxPlayers: 4, AutoCall: true, Private: true}, opts)

	opts, err = parseCreateArgs(nil)
	require.NoError(t, err)
	assert.Zero(t, opts.MaxPlayers)

	for _, bad := range [][]string{{"0"}, {"-3"}, {"fast"}} {
		_, err := parseCreateArgs(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewRoomRejectsBadArguments(t *testing.T) {
	e := newEnv(t)

	c := e.run(t, e.rooms.HandleNewRoom, alice, "lots")
	assert.Contains(t, c.lastReply(), "/newroom")

	c = e.run(t, e.rooms.HandleNewRoom, alice, "99")
	assert.Equal(t, view.RejectionMessage(room.ReasonInvalidMaxPlayers), c.lastReply())
	assert.Equal(t, 0, e.manager.ActiveRooms())
}

func TestRoomCommandFlow(t *testing.T) {
	e := newEnv(t)
	code := e.startedRoom(t)

	snap := e.snapshot(t, code)
	assert.Equal(t, model.RoomActive, snap.Room.Status)

	// Only the host calls numbers.
	c := e.run(t, e.rooms.HandleCall, bob, code)
	assert.Equal(t, view.RejectionMessage(room.ReasonNotHost), c.lastReply())

	c = e.run(t, e.rooms.HandleCall, alice)
	assert.Empty(t, c.replies)
	snap = e.snapshot(t, code)
	require.NotNil(t, snap.Round)
	require.Len(t, snap.Round.Called, 1)
	called := snap.Round.Called[0]

	c = e.run(t, e.rooms.HandleMark, alice, fmt.Sprint(called))
	assert.Contains(t, c.lastReply(), fmt.Sprintf("Marked %d", called))

	c = e.run(t, e.rooms.HandleMark, alice, code, fmt.Sprint(called))
	assert.Contains(t, c.lastReply(), "already marked")

	uncalled := 1
	if uncalled == called {
		uncalled = 2
	}
	c = e.run(t, e.rooms.HandleMark, bob, fmt.Sprint(uncalled))
	assert.Equal(t, view.RejectionMessage(room.ReasonNumberNotCalled), c.lastReply())

	c = e.run(t, e.rooms.HandleMark, bob, code, "1", "2")
	assert.Contains(t, c.lastReply(), "Usage")

	c = e.run(t, e.rooms.HandleMark, alice, "x")
	assert.Contains(t, c.lastReply(), "valid number")

	c = e.run(t, e.rooms.HandleBingo, alice)
	assert.Equal(t, view.RejectionMessage(room.ReasonInvalidPattern), c.lastReply())

	c = e.run(t, e.rooms.HandleRoom, bob, code)
	assert.Contains(t, c.lastReply(), code)
	assert.Contains(t, c.lastReply(), "alice 👑")
}

func TestBingoAfterRoundWon(t *testing.T) {
	e := newEnv(t)
	code := e.startedRoom(t)
	ctx := context.Background()

	for {
		res, err := e.manager.CallNext(ctx, code)
		require.NoError(t, err)
		require.False(t, res.Ended)
		mark, err := e.manager.Mark(ctx, code, alice.ID, res.Number)
		require.NoError(t, err)
		if mark.Bingo {
			break
		}
	}
	_, err := e.manager.DeclareBingo(ctx, code, alice.ID)
	require.NoError(t, err)

	c := e.run(t, e.rooms.HandleBingo, bob, code)
	assert.Equal(t, view.RejectionMessage(room.ReasonInvalidPattern), c.lastReply())

	c = e.run(t, e.rooms.HandleBingo, alice, code)
	assert.Equal(t, "🏁 This round was already won by alice", c.lastReply())
}

func TestCommandsWithoutRoomShowUsage(t *testing.T) {
	e := newEnv(t)
	for _, h := range []tele.HandlerFunc{
		e.rooms.HandleLeave, e.rooms.HandleCancel, e.rooms.HandleStartGame,
		e.rooms.HandleCall, e.rooms.HandleBingo, e.rooms.HandleRoom, e.rooms.HandleCard,
	} {
		c := e.run(t, h, alice)
		assert.Contains(t, c.lastReply(), "Usage")
	}

	c := e.run(t, e.rooms.HandleJoin, alice)
	assert.Contains(t, c.lastReply(), "/join <code>")
	c = e.run(t, e.rooms.HandleJoin, alice, "NOPE99")
	assert.Equal(t, view.RejectionMessage(room.ReasonNotFound), c.lastReply())
}

func TestLeaveAndCancel(t *testing.T) {
	e := newEnv(t)
	e.run(t, e.rooms.HandleNewRoom, alice, "3")
	code, _ := e.tracker.Get(alice.ID)
	e.run(t, e.rooms.HandleJoin, bob, code)

	c := e.run(t, e.rooms.HandleLeave, bob)
	assert.Contains(t, c.lastReply(), "You left room "+code)
	_, ok := e.tracker.Get(bob.ID)
	assert.False(t, ok)

	c = e.run(t, e.rooms.HandleCancel, bob, code)
	assert.Equal(t, view.RejectionMessage(room.ReasonNotHost), c.lastReply())

	c = e.run(t, e.rooms.HandleCancel, alice)
	assert.Empty(t, c.replies)
	assert.Equal(t, model.RoomCancelled, e.snapshot(t, code).Room.Status)
}

func TestCardIsSentPrivately(t *testing.T) {
	e := newEnv(t)
	e.run(t, e.rooms.HandleNewRoom, alice, "2")
	code, _ := e.tracker.Get(alice.ID)

	c := e.run(t, e.rooms.HandleCard, alice)
	assert.Contains(t, c.lastReply(), "dealt when the round starts")

	e.run(t, e.rooms.HandleJoin, bob, code)
	e.run(t, e.rooms.HandleStartGame, alice)

	c = &fakeContext{sender: alice, chat: &tele.Chat{ID: -100, Type: tele.ChatGroup}}
	require.NoError(t, e.rooms.HandleCard(c))
	assert.Empty(t, c.replies, "the card never goes to the group")
	require.Len(t, e.messenger.sent, 1)
	assert.Len(t, e.messenger.sent[0].InlineKeyboard, 6)

	e.messenger.sendErr = fmt.Errorf("bot was blocked by the user")
	require.NoError(t, e.rooms.HandleCard(c))
	assert.Contains(t, c.lastReply(), "private chat")
}

func TestCallbackMarksAndRefreshes(t *testing.T) {
	e := newEnv(t)
	code := e.startedRoom(t)
	e.run(t, e.rooms.HandleCall, alice)
	called := e.snapshot(t, code).Round.Called[0]

	c := &fakeContext{sender: alice, message: &tele.Message{ID: 10, Chat: privateChat(alice)}}
	require.NoError(t, e.rooms.HandleCallback(c, view.Callback{Action: view.ActionMark, RoomCode: code, Number: called}))
	require.Len(t, c.responses, 1)
	assert.Equal(t, fmt.Sprintf("✅ %d", called), c.responses[0].Text)

	require.Len(t, e.messenger.edited, 1)
	var checked int
	for _, row := range e.messenger.edited[0].InlineKeyboard {
		for _, btn := range row {
			if btn.Text == fmt.Sprintf("✅%d", called) {
				checked++
			}
		}
	}
	assert.Equal(t, 1, checked, "the marked cell shows a check")

	require.NoError(t, e.rooms.HandleCallback(c, view.Callback{Action: view.ActionBingo, RoomCode: code}))
	assert.Equal(t, view.RejectionMessage(room.ReasonInvalidPattern), c.responses[1].Text)
	assert.True(t, c.responses[1].ShowAlert)

	require.NoError(t, e.rooms.HandleCallback(c, view.Callback{Action: view.ActionRefresh, RoomCode: code}))
	assert.Len(t, e.messenger.edited, 2)

	// Strangers are rejected without touching the keyboard.
	stranger := &fakeContext{sender: &tele.User{ID: 99}, message: &tele.Message{ID: 11}}
	require.NoError(t, e.rooms.HandleCallback(stranger, view.Callback{Action: view.ActionMark, RoomCode: code, Number: called}))
	assert.Equal(t, view.RejectionMessage(room.ReasonNotMember), stranger.responses[0].Text)
	assert.Len(t, e.messenger.edited, 2)
}

func TestParseAdminArgs(t *testing.T) {
	id, amount, err := parseAdminArgs([]string{"42", "100"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int64(100), amount)

	for _, bad := range [][]string{nil, {"42"}, {"x", "1"}, {"42", "1.5"}} {
		_, _, err := parseAdminArgs(bad)
		assert.Error(t, err, bad)
	}
}

func TestRoomErrorText(t *testing.T) {
	assert.Equal(t, view.RejectionMessage(room.ReasonFull), roomErrorText(room.ErrRoomFull))
	assert.Contains(t, roomErrorText(fmt.Errorf("%w: timeout", room.ErrStore)), "temporarily unavailable")
	assert.Contains(t, roomErrorText(fmt.Errorf("boom")), "Something went wrong")
}
