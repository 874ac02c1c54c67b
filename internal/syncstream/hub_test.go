package syncstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/docindex/internal/relstore"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// newTestServer wires a Hub behind a real HTTP server, since httptest's
// ResponseRecorder can't hijack a connection for the WebSocket upgrade.
func newTestServer(t *testing.T, hub *Hub) (*httptest.Server, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		client := hub.NewClient(conn)
		go client.WritePump(ctx)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				hub.Unregister(client)
				return
			}
		}
	}))

	return server, cancel
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHub_BroadcastReachesConnectedClient(t *testing.T) {
	hub := NewHub()
	server, cancel := newTestServer(t, hub)
	defer server.Close()
	defer cancel()

	conn := dial(t, server)
	defer conn.Close()

	// give the register channel a moment to land before broadcasting.
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(Event{DocID: "doc-1", Status: relstore.StatusSynced})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "doc-1", got.DocID)
	assert.Equal(t, relstore.StatusSynced, got.Status)
}

func TestHub_NotifyWrapsEventFields(t *testing.T) {
	hub := NewHub()
	server, cancel := newTestServer(t, hub)
	defer server.Close()
	defer cancel()

	conn := dial(t, server)
	defer conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Notify("doc-2", relstore.StatusFailed, "embedding timed out")

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "doc-2", got.DocID)
	assert.Equal(t, relstore.StatusFailed, got.Status)
	assert.Equal(t, "embedding timed out", got.Error)
	assert.False(t, got.Timestamp.IsZero())
}

func TestHub_UnregisterDropsClientFromCount(t *testing.T) {
	hub := NewHub()
	server, cancel := newTestServer(t, hub)
	defer server.Close()
	defer cancel()

	conn := dial(t, server)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastWithNoClientsDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(Event{DocID: "doc-3", Status: relstore.StatusSynced})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked with no subscribers")
	}
}
