package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub pushes lobby snapshots to every websocket subscribed to a lobby code.
// Delivery is fire and forget; a failed write drops the connection and the
// client is expected to rejoin.
type Hub struct {
	mu       sync.Mutex
	logger   *zap.Logger
	lobbies  map[string]map[*client]bool
	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	code string
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		lobbies: make(map[string]map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Subscribe upgrades the request and registers the connection under the
// lobby code. It blocks reading the connection until the peer goes away.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, code string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, code: code}
	h.add(c)
	defer h.remove(c)

	// Drain control frames and detect disconnects; clients never send data
	// over this socket.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lobbies[c.code] == nil {
		h.lobbies[c.code] = make(map[*client]bool)
	}
	h.lobbies[c.code][c] = true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lobbies[c.code], c)
	if len(h.lobbies[c.code]) == 0 {
		delete(h.lobbies, c.code)
	}
	c.conn.Close()
}

// NotifyLobbyUpdate pushes a snapshot after a lobby-level change.
func (h *Hub) NotifyLobbyUpdate(code string, snapshot map[string]interface{}) {
	h.send(code, "lobbyUpdate", snapshot)
}

// NotifyGameUpdate pushes a snapshot after an in-game change.
func (h *Hub) NotifyGameUpdate(code string, snapshot map[string]interface{}) {
	h.send(code, "gameUpdate", snapshot)
}

// NotifyLobbyClosed tells subscribers the lobby is gone and disconnects them.
func (h *Hub) NotifyLobbyClosed(code string) {
	h.send(code, "lobbyClosed", nil)

	h.mu.Lock()
	clients := h.lobbies[code]
	delete(h.lobbies, code)
	h.mu.Unlock()
	for c := range clients {
		c.conn.Close()
	}
}

func (h *Hub) send(code, kind string, snapshot map[string]interface{}) {
	message := map[string]interface{}{"type": kind}
	if snapshot != nil {
		message["lobby"] = snapshot
	}
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal broadcast", zap.String("lobby", code), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.lobbies[code] {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warn("dropping broadcast subscriber",
				zap.String("lobby", code),
				zap.Error(err),
			)
			delete(h.lobbies[code], c)
			c.conn.Close()
		}
	}
}
