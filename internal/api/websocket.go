package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultStreamInterval is how often the hub pushes a status snapshot.
const DefaultStreamInterval = 5 * time.Second

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	readLimit  = 512
	queueDepth = 16
)

// StreamMessage is the frame format of the live status stream.
type StreamMessage struct {
	Type      string          `json:"type"`
	Data      *StatusResponse `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// StreamHub pushes status snapshots to every connected stream client. All
// writes happen on the Run goroutine.
type StreamHub struct {
	snapshot func() StatusResponse
	interval time.Duration

	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex
}

// NewStreamHub creates a hub that pushes snapshot() every interval.
func NewStreamHub(snapshot func() StatusResponse, interval time.Duration) *StreamHub {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	return &StreamHub{
		snapshot:   snapshot,
		interval:   interval,
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn, queueDepth),
		unregister: make(chan *websocket.Conn, queueDepth),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and pushes snapshots until ctx is cancelled.
func (h *StreamHub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()

			// New clients get a snapshot right away instead of waiting a tick.
			h.send(conn, h.message())
			go h.readPump(conn)

		case conn := <-h.unregister:
			h.mu.Lock()
			if h.clients[conn] {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case <-ticker.C:
			h.broadcast()
		}
	}
}

// Register hands an upgraded connection to the hub.
func (h *StreamHub) Register(conn *websocket.Conn) {
	h.register <- conn
}

// Clients returns the number of connected clients.
func (h *StreamHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *StreamHub) message() []byte {
	status := h.snapshot()
	data, err := json.Marshal(StreamMessage{
		Type:      "status",
		Data:      &status,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		slog.Warn("stream_encode_failed", "error", err)
		return nil
	}
	return data
}

func (h *StreamHub) broadcast() {
	h.mu.RLock()
	empty := len(h.clients) == 0
	h.mu.RUnlock()
	if empty {
		return
	}

	data := h.message()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		h.send(conn, data)
	}
}

func (h *StreamHub) send(conn *websocket.Conn, data []byte) {
	if data == nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// readPump sees the broken connection and unregisters it.
		slog.Debug("stream_write_failed", "error", err)
		return
	}
	// The pong refreshes the read deadline of idle clients.
	conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (h *StreamHub) readPump(conn *websocket.Conn) {
	defer func() {
		select {
		case h.unregister <- conn:
		case <-h.done:
		}
	}()

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
