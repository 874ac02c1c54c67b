package main

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/example/docindex/internal/syncstream"
)

// upgrader follows the donor's permissive-origin WebSocket upgrade
// (internal/websocket/server.go's CheckOrigin): this stream carries no
// sensitive data, only sync-status transitions already visible via the
// REST API.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// newSyncStreamHandler upgrades a connection and relays it into the hub
// until the client disconnects, mirroring the donor's
// WebSocketHandler.HandleUpgrade → Hub.RegisterClient → WritePump/ReadPump
// split.
func newSyncStreamHandler(hub *syncstream.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := hub.NewClient(conn)
		go client.WritePump(r.Context())
		drainClient(hub, client, conn)
	}
}

// drainClient reads (and discards) incoming frames until the client closes
// the connection, then unregisters it — this stream is publish-only, so
// inbound messages only matter as a liveness signal.
func drainClient(hub *syncstream.Hub, client *syncstream.Client, conn *websocket.Conn) {
	defer hub.Unregister(client)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
