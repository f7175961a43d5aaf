package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"MarketForge/internal/domain/models"
	applogger "MarketForge/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const writeWait = 5 * time.Second

// LiveHub pushes run summaries to connected websocket clients. Slow or dead
// clients are dropped on write failure instead of blocking the broadcast.
type LiveHub struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	l        *applogger.Logger
}

func NewLiveHub() *LiveHub {
	return &LiveHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// SetLogger injects a structured logger.
func (h *LiveHub) SetLogger(l *applogger.Logger) { h.l = l }

// Serve upgrades the request and holds the connection until the client
// disconnects. Incoming frames are read and discarded.
func (h *LiveHub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		if h.l != nil {
			h.l.Warn("websocket upgrade failed", applogger.Error(err))
		}
		return err
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	if h.l != nil {
		h.l.Debug("live client connected", applogger.Int("clients", n))
	}

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

// Broadcast sends the summary to every connected client.
func (h *LiveHub) Broadcast(s models.RunSummary) {
	b, err := json.Marshal(s)
	if err != nil {
		if h.l != nil {
			h.l.Error("summary marshal failed", applogger.Error(err))
		}
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			delete(h.clients, conn)
			conn.Close()
			if h.l != nil {
				h.l.Debug("live client dropped", applogger.Error(err))
			}
		}
	}
}

// Close disconnects all clients.
func (h *LiveHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
		conn.Close()
		delete(h.clients, conn)
	}
}
