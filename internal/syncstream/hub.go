// Package syncstream broadcasts SyncJob status transitions to connected
// WebSocket clients — an additive real-time view onto SyncEngine (C7), not
// itself a spec'd component. Scaled down from the donor's
// internal/websocket hub (no per-client repository/session filtering, no
// heartbeat subscription protocol) to the one thing this domain needs:
// "tell me when a document's sync job changes state."
package syncstream

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/docindex/internal/relstore"
)

// Event is one SyncJob transition pushed to subscribers.
type Event struct {
	DocID     string                 `json:"docId"`
	Status    relstore.SyncJobStatus `json:"status"`
	Error     string                 `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Client is one connected WebSocket subscriber.
type Client struct {
	conn   *websocket.Conn
	send   chan Event
	closed bool
	mu     sync.Mutex
}

func (c *Client) safeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.send)
		c.closed = true
	}
}

// WritePump relays events to the client and pings it to keep the connection
// alive, following the donor's ticker-driven heartbeat shape.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Hub fans out sync-status events to every connected client, following the
// donor Hub's register/unregister/broadcast channel trio.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
	}
}

// Notify implements syncengine.Notifier, so a Hub can be attached directly
// via Engine.SetNotifier without this package importing syncengine.
func (h *Hub) Notify(docID string, status relstore.SyncJobStatus, errMsg string) {
	h.Broadcast(Event{DocID: docID, Status: status, Error: errMsg, Timestamp: time.Now()})
}

// NewClient wraps an upgraded connection and registers it with the hub.
func (h *Hub) NewClient(conn *websocket.Conn) *Client {
	c := &Client{conn: conn, send: make(chan Event, 64)}
	h.register <- c
	return c
}

// Broadcast publishes a sync-status transition to every connected client,
// dropping it (with a log line) if the broadcast buffer is saturated —
// this stream is a best-effort view, never load-bearing for SyncEngine's
// own correctness.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("syncstream: broadcast buffer full, dropping event for doc %s", event.DocID)
	}
}

// ClientCount reports the number of currently connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run drives the hub's main loop until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for c := range h.clients {
			c.safeClose()
			_ = c.conn.Close()
		}
		h.mu.Unlock()
	}()

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.safeClose()
				_ = c.conn.Close()
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- event:
				default:
					go h.Unregister(c) // slow consumer; drop it without blocking the loop
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			return
		}
	}
}

// Unregister removes a client, e.g. after the connection's read loop
// observes it close.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}
