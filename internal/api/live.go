package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/ips-core/internal/infrastructure/logging"
	"github.com/nerrad567/ips-core/internal/reading"
)

// Live feed connection settings.
const (
	// liveSendBuffer is the per-client outbound reading buffer.
	liveSendBuffer = 16

	livePingInterval = 30 * time.Second
	livePongWait     = 60 * time.Second
	liveWriteWait    = 10 * time.Second

	// liveReadLimit caps inbound frames. Clients only send control frames.
	liveReadLimit = 512
)

// LiveFeed pushes every stored reading to WebSocket clients connected on
// GET /live. Each message is one reading in the GET /sensor-data shape.
//
// It implements reading.Publisher. A client whose buffer is full misses
// that reading rather than stalling the upload.
type LiveFeed struct {
	logger  *logging.Logger
	mu      sync.RWMutex
	clients map[*liveClient]struct{}
	closed  bool
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewLiveFeed creates an empty feed.
func NewLiveFeed(logger *logging.Logger) *LiveFeed {
	return &LiveFeed{
		logger:  logger,
		clients: make(map[*liveClient]struct{}),
	}
}

// PublishReading queues r for every connected client.
func (f *LiveFeed) PublishReading(_ context.Context, r reading.Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding reading: %w", err)
	}

	// Channels are only closed under the write lock.
	f.mu.RLock()
	defer f.mu.RUnlock()

	dropped := 0
	for c := range f.clients {
		select {
		case c.send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		f.logger.Warn("live feed clients lagging, reading dropped", "clients", dropped)
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (f *LiveFeed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Close disconnects every client and refuses new ones.
func (f *LiveFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	for c := range f.clients {
		close(c.send)
		delete(f.clients, c)
	}
}

func (f *LiveFeed) register(c *liveClient) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.clients[c] = struct{}{}
	f.logger.Debug("live feed client connected", "clients", len(f.clients))
	return true
}

// unregister closes the send channel only if c was still registered, so a
// concurrent Close cannot close it twice.
func (f *LiveFeed) unregister(c *liveClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
	}
	f.logger.Debug("live feed client disconnected", "clients", len(f.clients))
}

// offer queues data for c if it is still registered.
func (f *LiveFeed) offer(c *liveClient, data []byte) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if _, ok := f.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// readPump discards client frames and detects disconnects.
func (f *LiveFeed) readPump(c *liveClient) {
	defer func() {
		f.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(liveReadLimit)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.logger.Warn("live feed read error", "error", err)
			}
			return
		}
	}
}

// writePump is the only writer on c.conn.
func (f *LiveFeed) writePump(c *liveClient) {
	ticker := time.NewTicker(livePingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleLive upgrades GET /live and starts streaming. The newest stored
// reading, if any, is sent first.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Warn("live feed upgrade failed", "error", err, "request_id", requestIDFrom(r.Context()))
		return
	}

	c := &liveClient{conn: conn, send: make(chan []byte, liveSendBuffer)}
	if !s.live.register(c) {
		conn.Close()
		return
	}

	if rd, err := s.readings.Latest(r.Context()); err == nil {
		if data, err := json.Marshal(rd); err == nil {
			s.live.offer(c, data)
		}
	}

	go s.live.writePump(c)
	go s.live.readPump(c)
}

func (s *Server) newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.isAllowedOrigin(origin)
		},
	}
}
