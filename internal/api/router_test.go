package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-bingo-bot/internal/model"
	"telegram-bingo-bot/internal/room"
	"telegram-bingo-bot/internal/service"
	"telegram-bingo-bot/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLeaderboard struct {
	entries []service.LeaderboardEntry
	limit   int
	err     error
}

func (f *fakeLeaderboard) Leaderboard(_ context.Context, limit int) ([]service.LeaderboardEntry, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	if len(f.entries) > limit {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

type fakeStream struct {
	code string
}

func (f *fakeStream) ServeRoom(w http.ResponseWriter, _ *http.Request, code string) {
	f.code = code
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"streaming":true}`))
}

type env struct {
	router  *gin.Engine
	manager *room.Manager
	store   *store.MemoryStore
	board   *fakeLeaderboard
	stream  *fakeStream
}

func newEnv(t *testing.T, health func(context.Context) error) *env {
	t.Helper()
	cfg := room.DefaultConfig()
	cfg.AutoCallInterval = 0
	st := store.NewMemoryStore()
	m := room.New(cfg, room.Dependencies{Store: st})
	t.Cleanup(m.Close)

	e := &env{manager: m, store: st, board: &fakeLeaderboard{}, stream: &fakeStream{}}
	e.router = NewRouter(Dependencies{
		Rooms:       m,
		Leaderboard: e.board,
		Stream:      e.stream,
		Health:      health,
	})
	return e
}

func (e *env) get(t *testing.T, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	e.router.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, nil)
	w, body := e.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	e = newEnv(t, func(context.Context) error { return errors.New("database unreachable") })
	w, body = e.get(t, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", body["status"])
}

func TestGetRoom(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	r, err := e.manager.Create(ctx, room.Player{ID: 1, Name: "alice"}, room.CreateOptions{MaxPlayers: 2})
	require.NoError(t, err)
	_, err = e.manager.Join(ctx, r.Code, room.Player{ID: 2, Name: "bob"})
	require.NoError(t, err)
	_, err = e.manager.StartRound(ctx, r.Code, 1)
	require.NoError(t, err)

	w, body := e.get(t, "/api/rooms/"+r.Code)
	require.Equal(t, http.StatusOK, w.Code)

	rm := body["room"].(map[string]any)
	assert.Equal(t, r.Code, rm["code"])
	assert.Equal(t, "ACTIVE", rm["status"])

	members := body["members"].([]any)
	require.Len(t, members, 2)
	first := members[0].(map[string]any)
	assert.Equal(t, "alice", first["username"])
	assert.NotContains(t, first, "card", "cards are never exposed")

	// Codes are normalised.
	w, _ = e.get(t, "/api/rooms/"+strings.ToLower(r.Code))
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = e.get(t, "/api/rooms/NOPE99")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["error"])
}

func TestPrivateRoomsAreHidden(t *testing.T) {
	e := newEnv(t, nil)
	r, err := e.manager.Create(context.Background(), room.Player{ID: 1}, room.CreateOptions{MaxPlayers: 2, Private: true})
	require.NoError(t, err)

	w, _ := e.get(t, "/api/rooms/"+r.Code)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = e.get(t, "/api/rooms/"+r.Code+"/ws")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, e.stream.code)
}

func TestStoreFailureIsUnavailable(t *testing.T) {
	e := newEnv(t, nil)
	r, err := e.manager.Create(context.Background(), room.Player{ID: 1}, room.CreateOptions{MaxPlayers: 2})
	require.NoError(t, err)

	e.router = NewRouter(Dependencies{Rooms: failingRooms{e.manager}, Leaderboard: e.board})
	w, body := e.get(t, "/api/rooms/"+r.Code)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "internal error", body["error"])
}

type failingRooms struct {
	*room.Manager
}

func (failingRooms) Snapshot(context.Context, string) (*model.RoomSnapshot, error) {
	return nil, fmt.Errorf("%w: failed to load room: connection reset", room.ErrStore)
}

func TestStreamRoom(t *testing.T) {
	e := newEnv(t, nil)
	r, err := e.manager.Create(context.Background(), room.Player{ID: 1}, room.CreateOptions{MaxPlayers: 2})
	require.NoError(t, err)

	w, body := e.get(t, "/api/rooms/"+strings.ToLower(r.Code)+"/ws")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["streaming"])
	assert.Equal(t, r.Code, e.stream.code)

	noStream := NewRouter(Dependencies{Rooms: e.manager, Leaderboard: e.board})
	rec := httptest.NewRecorder()
	noStream.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/"+r.Code+"/ws", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestLeaderboard(t *testing.T) {
	e := newEnv(t, nil)
	for i := 1; i <= 15; i++ {
		e.board.entries = append(e.board.entries, service.LeaderboardEntry{Rank: i, UserID: int64(i)})
	}

	w, body := e.get(t, "/api/leaderboard")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["entries"], service.DefaultLeaderboardSize)

	w, body = e.get(t, "/api/leaderboard?limit=3")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["entries"], 3)

	w, _ = e.get(t, "/api/leaderboard?limit=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.board.entries = nil
	w, body = e.get(t, "/api/leaderboard")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, body["entries"])

	e.board.err = errors.New("boom")
	w, _ = e.get(t, "/api/leaderboard")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
