package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

// Client is one connected editor UI, scoped to a single website.
type Client struct {
	conn      *websocket.Conn
	websiteID string
	send      chan []byte
}

// Hub relays bus events to connected editor sessions over websockets.
// Clients only receive events for the website they are editing.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]bool // websiteID -> clients
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run exits
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// NewHub creates a hub and wires it to the bus: every published event
// is forwarded to the clients watching that website.
func NewHub(bus *Bus, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	bus.SubscribeAll(h.broadcast)
	return h
}

// Run processes client registration until the context is cancelled.
// Run it as a goroutine. On exit the done channel is closed so pumps
// waiting to register or unregister are released instead of blocking
// on a channel nothing drains anymore.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.websiteID] == nil {
				h.clients[client.websiteID] = make(map[*Client]bool)
			}
			h.clients[client.websiteID][client] = true
			h.mu.Unlock()
			h.logger.Debug("Editor client connected", "websiteID", client.websiteID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.websiteID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.websiteID)
					}
				}
			}
			h.mu.Unlock()
			h.logger.Debug("Editor client disconnected", "websiteID", client.websiteID)
		}
	}
}

// broadcast fans an event out to every client editing the event's
// website. Slow clients drop messages rather than block the publisher.
func (h *Hub) broadcast(event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal event for broadcast", "eventType", event.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[event.WebsiteID] {
		select {
		case client.send <- message:
		default:
			h.logger.Warn("Client send buffer full, event dropped", "websiteID", event.WebsiteID, "eventType", event.Type)
		}
	}
}

// ConnectionCount reports how many clients are watching a website.
func (h *Hub) ConnectionCount(websiteID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[websiteID])
}

// ServeWS upgrades an HTTP request to a websocket and attaches the
// client to the given website's event feed.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, websiteID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Websocket upgrade failed", "websiteID", websiteID, "error", err)
		return
	}

	client := &Client{
		conn:      conn,
		websiteID: websiteID,
		send:      make(chan []byte, sendBufferSize),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump(h)
	go client.readPump(h)
}

// writePump pushes queued events to the peer and keeps the connection
// alive with pings.
func (c *Client) writePump(h *Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pings/pongs and close frames are
// processed; the editor feed is one-directional otherwise.
func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
