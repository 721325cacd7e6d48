package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/CageChen/finderhub/internal/metrics"
	"github.com/CageChen/finderhub/internal/session"
	"github.com/CageChen/finderhub/internal/watcher"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// DirectoryChange is the payload of a "directoryChange" message. Sessions
// lists the sessions whose view was refreshed by the change.
type DirectoryChange struct {
	Event    string   `json:"event"`
	Dir      string   `json:"dir"`
	Sessions []string `json:"sessions"`
}

// WSHandler pushes directory changes to connected browsers
type WSHandler struct {
	sessions *session.Manager
	logger   *zap.Logger
	clients  map[*websocket.Conn]*sync.Mutex
	mu       sync.RWMutex
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(sessions *session.Manager, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		logger:   logger.Named("ws"),
		clients:  make(map[*websocket.Conn]*sync.Mutex),
	}
}

// HandleWS handles WebSocket upgrade and connection
func (h *WSHandler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", zap.Error(err))
		return
	}
	defer func() {
		h.removeClient(conn)
		_ = conn.Close()
	}()

	h.addClient(conn)

	// Keep connection alive until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// OnDirectoryChange refreshes the sessions showing the changed directory
// and tells every client about it.
func (h *WSHandler) OnDirectoryChange(event watcher.Event) {
	ids := h.sessions.Invalidate(context.Background(), event.Dir)
	if ids == nil {
		ids = []string{}
	}
	h.broadcast(WSMessage{
		Type: "directoryChange",
		Payload: DirectoryChange{
			Event:    event.Type.String(),
			Dir:      event.Dir,
			Sessions: ids,
		},
	})
}

func (h *WSHandler) addClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &sync.Mutex{}
	metrics.AddWSConnections(1)
}

func (h *WSHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		metrics.AddWSConnections(-1)
	}
}

// Clients returns the number of connected clients.
func (h *WSHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WSHandler) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode message", zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for client, lock := range h.clients {
		clients[client] = lock
	}
	h.mu.RUnlock()

	for client, lock := range clients {
		// gorilla connections allow one concurrent writer
		lock.Lock()
		_ = client.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := client.WriteMessage(websocket.TextMessage, data)
		lock.Unlock()
		if err != nil {
			h.removeClient(client)
		}
	}
}
