package services

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Event names broadcast over the hub.
const (
	EventResultRecorded      = "result.recorded"
	EventSessionFinalized    = "session.finalized"
	EventTournamentCompleted = "tournament.completed"
)

// Event is one live update pushed to connected clients.
type Event struct {
	Type         string      `json:"type"`
	TournamentID uint        `json:"tournament_id"`
	SessionID    uint        `json:"session_id,omitempty"`
	Payload      interface{} `json:"payload,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// WebSocketHub fans tournament events out to every connected client.
type WebSocketHub struct {
	mu        sync.RWMutex
	clients   map[*websocket.Conn]bool
	broadcast chan Event
	upgrader  websocket.Upgrader
}

func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Event, 64),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run pumps broadcast events to clients; start it in a goroutine.
func (h *WebSocketHub) Run() {
	for event := range h.broadcast {
		data, err := json.Marshal(event)
		if err != nil {
			logrus.Errorf("Failed to marshal hub event: %v", err)
			continue
		}
		h.mu.RLock()
		for conn := range h.clients {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logrus.Debugf("Dropping websocket client: %v", err)
				conn.Close()
				// Deferred removal under the write lock below.
				go h.remove(conn)
			}
		}
		h.mu.RUnlock()
	}
}

func (h *WebSocketHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// Broadcast queues an event without blocking callers; slow consumers drop.
func (h *WebSocketHub) Broadcast(event Event) {
	if h == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	select {
	case h.broadcast <- event:
	default:
		logrus.Warn("WebSocket broadcast buffer full, dropping event")
	}
}

// Serve upgrades an HTTP request and registers the connection.
func (h *WebSocketHub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	// Reader loop only to detect disconnects; clients never send commands.
	go func() {
		defer func() {
			h.remove(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
