package handler

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourorg/gatehouse/internal/featureflags"
	"github.com/yourorg/gatehouse/internal/service"
)

// ActivityHub fans gate events out to connected dashboard clients over
// websockets. It implements service.EventPublisher; a slow client drops
// events rather than stalling the gate.
type ActivityHub struct {
	mu             sync.Mutex
	clients        map[*websocket.Conn]chan service.Event
	logger         *slog.Logger
	allowedOrigins []string
}

func NewActivityHub(allowedOrigins []string, logger *slog.Logger) *ActivityHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityHub{
		clients:        make(map[*websocket.Conn]chan service.Event),
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
}

// Publish implements service.EventPublisher. Never blocks.
func (h *ActivityHub) Publish(event service.Event) {
	if featureflags.Enabled(featureflags.ActivityFeedDisabled) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- event:
		default:
			h.logger.Warn("activity client too slow, dropping event",
				slog.String("remote", conn.RemoteAddr().String()),
			)
		}
	}
}

// upgrader is initialized per-request to use instance's allowed origins
func (h *ActivityHub) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/activity requests
func (h *ActivityHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	ch := make(chan service.Event, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	h.logger.Info("activity client connected", slog.String("remote", conn.RemoteAddr().String()))

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
		h.logger.Info("activity client disconnected", slog.String("remote", conn.RemoteAddr().String()))
	}()

	// Reader goroutine detects disconnects; the feed is one-way.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case event := <-ch:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
