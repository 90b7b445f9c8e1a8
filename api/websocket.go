package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fraudwatch/metrics"
	"fraudwatch/util/goroutine"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket configuration constants
const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum message size allowed from peer.
	maxMessageSize = 512

	sendChannelSize = 256

	broadcastTimeout = time.Second
)

// MessageDashboard is the type of the periodic dashboard update
const MessageDashboard = "dashboard"

// WebSocketMessage is the envelope of every frame sent to clients
type WebSocketMessage struct {
	Type        string      `json:"type" msgpack:"type"`
	Data        interface{} `json:"data" msgpack:"data"`
	TimestampMs int64       `json:"timestamp_ms" msgpack:"timestamp_ms"`
}

// client represents a single WebSocket client connection
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the set of active WebSocket clients and broadcasts messages
// to them. Run Start in its own goroutine; Stop shuts it down.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex

	encoding Encoding
	logger   *zap.SugaredLogger

	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	done    chan struct{}
}

// upgrader configures WebSocket connection upgrades. Origins are checked by
// corsMiddleware.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewHub creates a hub whose lifetime is bounded by ctx
func NewHub(ctx context.Context, encoding Encoding, logger *zap.SugaredLogger) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		encoding:   encoding,
		logger:     logger,
		ctx:        hubCtx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start runs the hub's event loop until Stop is called.
// Must be called at most once per Hub.
func (h *Hub) Start() {
	h.started.Store(true)
	defer close(h.done)

	h.logger.Info("WebSocket hub started")

	for {
		select {
		case <-h.ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				c.conn.Close()
			}
			h.clients = make(map[*client]bool)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(0)
			h.logger.Info("WebSocket hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))
			h.logger.Debugw("WebSocket client registered", "total_clients", total)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))
			h.logger.Debugw("WebSocket client unregistered", "total_clients", total)

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// A slow client is disconnected rather than allowed to block the others
					delete(h.clients, c)
					close(c.send)
					c.conn.Close()
					h.logger.Debugw("WebSocket client too slow, disconnected")
				}
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))
		}
	}
}

// BroadcastMessage sends a message to all connected WebSocket clients.
// It gives up after a short timeout rather than block the caller.
func (h *Hub) BroadcastMessage(msgType string, data interface{}) error {
	msg := WebSocketMessage{
		Type:        msgType,
		Data:        data,
		TimestampMs: time.Now().UnixMilli(),
	}

	payload, err := h.encoding.Marshal(msg)
	if err != nil {
		h.logger.Errorw("Failed to encode WebSocket message", "type", msgType, "error", err)
		return err
	}

	timer := time.NewTimer(broadcastTimeout)
	defer timer.Stop()

	select {
	case h.broadcast <- payload:
		return nil
	case <-h.ctx.Done():
		return nil
	case <-timer.C:
		h.logger.Warnw("WebSocket broadcast timeout", "type", msgType)
		return nil
	}
}

// ClientCount returns the number of connected WebSocket clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop shuts the hub down, closing every client connection
func (h *Hub) Stop() {
	h.cancel()
	if h.started.Load() {
		<-h.done
	}
}

// readPump discards client messages and detects disconnection
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debugw("WebSocket unexpected close", "error", err)
			}
			return
		}
	}
}

// writePump sends queued frames and keeps the connection alive with pings
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	frameType := c.hub.encoding.frameType()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(frameType, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveWs upgrades the request and registers the client with the hub
func (a *API) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:  a.hub,
		conn: conn,
		send: make(chan []byte, sendChannelSize),
	}

	select {
	case a.hub.register <- c:
	case <-a.hub.ctx.Done():
		conn.Close()
		return
	}

	goroutine.Go(nil, "websocket-writer", a.logger, c.writePump)
	goroutine.Go(nil, "websocket-reader", a.logger, c.readPump)
}
