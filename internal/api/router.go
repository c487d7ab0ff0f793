// Package api serves the read-only HTTP API: health, room snapshots, the
// leaderboard and a live event stream per room.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"telegram-bingo-bot/internal/model"
	"telegram-bingo-bot/internal/room"
	"telegram-bingo-bot/internal/service"
)

// RoomReader reads room snapshots. *room.Manager satisfies it.
type RoomReader interface {
	Snapshot(ctx context.Context, code string) (*model.RoomSnapshot, error)
	ActiveRooms() int
}

// Leaderboard reads the ranking. *service.RankingService satisfies it.
type Leaderboard interface {
	Leaderboard(ctx context.Context, limit int) ([]service.LeaderboardEntry, error)
}

// Streamer serves a room's live events over a websocket. *notify.Hub
// satisfies it.
type Streamer interface {
	ServeRoom(w http.ResponseWriter, r *http.Request, code string)
}

// Dependencies are the router's collaborators. Stream and Health are
// optional.
type Dependencies struct {
	Rooms       RoomReader
	Leaderboard Leaderboard
	Stream      Streamer
	Health      func(ctx context.Context) error
	CORSOrigins []string
}

type handler struct {
	deps Dependencies
}

// NewRouter builds the gin engine.
func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(deps.CORSOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = deps.CORSOrigins
	}
	r.Use(cors.New(corsCfg))

	h := &handler{deps: deps}
	r.GET("/healthz", h.health)

	api := r.Group("/api")
	api.GET("/rooms/:code", h.getRoom)
	api.GET("/rooms/:code/ws", h.streamRoom)
	api.GET("/leaderboard", h.leaderboard)

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}

func (h *handler) health(c *gin.Context) {
	body := gin.H{
		"status":       "ok",
		"active_rooms": h.deps.Rooms.ActiveRooms(),
		"timestamp":    time.Now().UTC(),
	}
	if h.deps.Health != nil {
		if err := h.deps.Health(c.Request.Context()); err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			body["status"] = "degraded"
			body["error"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}

// memberView hides cards so spectators cannot read other players' grids.
type memberView struct {
	UserID        int64  `json:"user_id"`
	Username      string `json:"username"`
	Seq           int    `json:"seq"`
	Marked        int    `json:"marked"`
	DeclaredBingo bool   `json:"declared_bingo"`
}

type roomView struct {
	Room    *model.Room  `json:"room"`
	Members []memberView `json:"members"`
	Round   *model.Round `json:"round,omitempty"`
}

func newRoomView(snap *model.RoomSnapshot) roomView {
	members := make([]memberView, len(snap.Members))
	for i, m := range snap.Members {
		members[i] = memberView{
			UserID:        m.UserID,
			Username:      m.DisplayName(),
			Seq:           m.Seq,
			Marked:        m.Mask.Count(),
			DeclaredBingo: m.DeclaredBingo,
		}
	}
	return roomView{Room: snap.Room, Members: members, Round: snap.Round}
}

// publicRoom loads a room and writes the error response if it cannot be
// shown. Private rooms are reported as not found.
func (h *handler) publicRoom(c *gin.Context) (*model.RoomSnapshot, bool) {
	snap, err := h.deps.Rooms.Snapshot(c.Request.Context(), c.Param("code"))
	if err == nil && snap.Room.Private {
		err = room.ErrRoomNotFound
	}
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return snap, true
}

func (h *handler) getRoom(c *gin.Context) {
	snap, ok := h.publicRoom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newRoomView(snap))
}

func (h *handler) streamRoom(c *gin.Context) {
	if h.deps.Stream == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "live events are disabled"})
		return
	}
	snap, ok := h.publicRoom(c)
	if !ok {
		return
	}
	h.deps.Stream.ServeRoom(c.Writer, c.Request, snap.Room.Code)
}

func (h *handler) leaderboard(c *gin.Context) {
	limit := service.DefaultLeaderboardSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	entries, err := h.deps.Leaderboard.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if entries == nil {
		entries = []service.LeaderboardEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func writeError(c *gin.Context, err error) {
	if reason, ok := room.IsRejection(err); ok {
		status := http.StatusConflict
		if reason == room.ReasonNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": string(reason)})
		return
	}

	status := http.StatusInternalServerError
	if errors.Is(err, room.ErrStore) {
		status = http.StatusServiceUnavailable
	}
	log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	c.JSON(status, gin.H{"error": "internal error"})
}
