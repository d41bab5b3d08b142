// Package live serves a websocket feed of scan progress frames, adapted
// from the teacher's repo-change broadcast server: the same upgrader and
// write-pump discipline, simplified to a one-way server-to-client stream
// (progress has no client-to-server messages to read back).
package live

import (
	"compress/flate"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
)

// upgrader allows any origin; the live feed is intended for localhost
// dashboards, the same trust model the teacher's local-mode upgrader uses.
var upgrader = websocket.Upgrader{
	CheckOrigin:       func(*http.Request) bool { return true },
	EnableCompression: true,
}

// Progress is one frame broadcast to every connected client: a meter
// sample plus the count of files currently in flight.
type Progress struct {
	BytesPerSec   float64 `json:"bytes_per_sec"`
	FilesPerSec   float64 `json:"files_per_sec"`
	FilesInFlight int     `json:"files_in_flight"`
	FilesDone     int64   `json:"files_done"`
}

// Hub tracks connected clients and fans Progress frames out to all of
// them. The zero value is not usable; construct with NewHub.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	send    chan Progress
}

// NewHub constructs an empty Hub. logger defaults to slog.Default() when
// nil.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, clients: make(map[*client]struct{})}
}

// Broadcast sends p to every currently connected client, dropping it for
// any client whose send buffer is full rather than blocking the scan
// pipeline on a slow dashboard.
func (h *Hub) Broadcast(p Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- p:
		default:
			h.logger.Warn("live: client send buffer full, dropping frame")
		}
	}
}

// ServeHTTP upgrades the connection to a websocket and registers it for
// Broadcast frames until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("live: websocket upgrade failed", "error", err)
		return
	}
	conn.EnableWriteCompression(true)
	_ = conn.SetCompressionLevel(flate.BestSpeed)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &client{conn: conn, send: make(chan Progress, 16)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("live: client connected", "addr", conn.RemoteAddr())

	done := make(chan struct{})
	go h.readPump(c, done)
	h.writePump(c, done)
}

// readPump only exists to notice the connection closing (we never act on
// client messages); it exits and closes done once the peer disconnects.
func (h *Hub) readPump(c *client, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case p := <-c.send:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteJSON(p)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
