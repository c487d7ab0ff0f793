package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"telegram-bingo-bot/internal/room"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.send)
	})
}

// Hub streams room events to websocket subscribers. Subscribers only receive
// public events; dealt cards are never broadcast.
type Hub struct {
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	rooms  map[string]map[*subscriber]struct{}
	closed bool
}

var _ room.Notifier = (*Hub)(nil)

// NewHub creates a Hub. checkOrigin may be nil to accept any origin.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		rooms:    make(map[string]map[*subscriber]struct{}),
	}
}

// Notify implements room.Notifier. Subscribers whose buffer is full are
// dropped rather than blocking the caller.
func (h *Hub) Notify(_ context.Context, e room.Event) {
	if e.Direct() {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("event", string(e.Type)).Msg("Failed to encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.rooms[e.RoomCode] {
		select {
		case s.send <- payload:
		default:
			log.Warn().Str("room_code", e.RoomCode).Msg("Dropping slow websocket subscriber")
			h.removeLocked(e.RoomCode, s)
		}
	}
}

// ServeRoom upgrades the request and streams the room's events until the
// client disconnects or the hub is closed.
func (h *Hub) ServeRoom(w http.ResponseWriter, r *http.Request, code string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("room_code", code).Msg("Failed to upgrade websocket")
		return
	}

	s := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.add(code, s) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	log.Debug().Str("room_code", code).Msg("Websocket subscriber connected")

	go h.writePump(s)
	h.readPump(code, s)
}

// Subscribers returns the number of subscribers of a room.
func (h *Hub) Subscribers(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for code, subs := range h.rooms {
		for s := range subs {
			h.removeLocked(code, s)
		}
	}
}

func (h *Hub) add(code string, s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	subs, ok := h.rooms[code]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.rooms[code] = subs
	}
	subs[s] = struct{}{}
	return true
}

func (h *Hub) remove(code string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(code, s)
}

func (h *Hub) removeLocked(code string, s *subscriber) {
	subs, ok := h.rooms[code]
	if !ok {
		return
	}
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.rooms, code)
	}
	s.close()
}

// readPump discards client messages and watches for disconnects.
func (h *Hub) readPump(code string, s *subscriber) {
	defer func() {
		h.remove(code, s)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("room_code", code).Msg("Websocket read failed")
			}
			return
		}
	}
}

func (h *Hub) writePump(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
