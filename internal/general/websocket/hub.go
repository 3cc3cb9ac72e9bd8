// Package websocket broadcasts fan-out events to attached admin consoles.
// It is a second adapter behind the same narrow publish interface as the
// RabbitMQ publisher; consoles receive the identical payloads.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/general/logger"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 5 * time.Second
	readLimitBytes = 1 << 16
)

// Frame is the message shape written to every attached console.
type Frame struct {
	Channel   string    `json:"channel"`
	EventType string    `json:"event_type"`
	SentAt    time.Time `json:"sent_at"`
	Payload   any       `json:"payload"`
}

// Hub stores all active console connections and fans frames out to them.
type Hub struct {
	logger   *logger.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[*websocket.Conn]*sync.Mutex
}

// NewHub creates an empty console hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// consoles connect cross-origin from the admin dashboard
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: map[*websocket.Conn]*sync.Mutex{},
	}
}

// HandleConsole upgrades an admin console connection and keeps it
// registered until it closes. Inbound frames are drained and discarded;
// the stream is publish-only.
func (h *Hub) HandleConsole(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error(r.Context(), "ws_upgrade_failed", "Failed to upgrade console connection", err, nil)
		return
	}
	conn.SetReadLimit(readLimitBytes)

	h.mu.Lock()
	h.conns[conn] = &sync.Mutex{}
	total := len(h.conns)
	h.mu.Unlock()

	h.logger.Info(r.Context(), "ws_console_attached", "Admin console attached", map[string]any{"consoles": total})

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish implements ports.EventPublisher by broadcasting the frame to all
// attached consoles. A console that cannot be written to is dropped.
func (h *Hub) Publish(ctx context.Context, channel string, eventType ride.EventType, payload any) error {
	frame := Frame{
		Channel:   channel,
		EventType: eventType.String(),
		SentAt:    time.Now().UTC(),
		Payload:   payload,
	}

	h.mu.RLock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.conns))
	for conn, mu := range h.conns {
		targets[conn] = mu
	}
	h.mu.RUnlock()

	for conn, mu := range targets {
		mu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		err := conn.WriteJSON(frame)
		mu.Unlock()
		if err != nil {
			h.logger.Debug(ctx, "ws_console_dropped", "Dropping unwritable console connection", map[string]any{"event_type": eventType.String()})
			h.drop(conn)
		}
	}
	return nil
}

// ConsoleCount returns the number of attached consoles.
func (h *Hub) ConsoleCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		_ = conn.Close()
	}
	h.mu.Unlock()
}
