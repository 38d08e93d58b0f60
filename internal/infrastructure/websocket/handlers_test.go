package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-portal/internal/domain"
	"marketplace-portal/internal/realtime"
	"marketplace-portal/pkg/logger"
)

type wsFixture struct {
	server     *httptest.Server
	registry   *realtime.Registry
	dispatcher *realtime.LocalDispatcher
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	log := logger.NewNop()
	registry := realtime.NewRegistry(log)
	registry.Initialize()
	handler := NewWebSocketHandler(registry, realtime.NewHandshake(registry, nil, log),
		HandlerConfig{SendBuffer: 8, WriteTimeout: time.Second}, log)

	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		registry.Shutdown()
		server.Close()
	})
	return &wsFixture{server: server, registry: registry, dispatcher: realtime.NewLocalDispatcher(registry, log)}
}

func wsDial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u, _ := url.Parse(server.URL)
	u.Scheme = "ws"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := readFrame(t, conn)
	require.Equal(t, "connection", msg["type"])
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func authenticate(t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "userId": userID}))
	msg := readFrame(t, conn)
	require.Equal(t, "auth_success", msg["type"])
}

func TestWebSocketAuthAndAddressedDelivery(t *testing.T) {
	f := newWSFixture(t)
	conn := wsDial(t, f.server)
	authenticate(t, conn, "supplier-1")

	require.Len(t, f.registry.ConnectionsFor("supplier-1"), 1)

	f.dispatcher.NotifyUser(context.Background(), "supplier-1", domain.EventBidStatusChanged,
		map[string]string{"bidId": "b1", "status": "accepted"})

	msg := readFrame(t, conn)
	assert.Equal(t, "bid_status_changed", msg["type"])
	assert.Equal(t, "accepted", msg["data"].(map[string]interface{})["status"])
}

func TestWebSocketPingPong(t *testing.T) {
	f := newWSFixture(t)
	conn := wsDial(t, f.server)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	msg := readFrame(t, conn)
	assert.Equal(t, "pong", msg["type"])
}

func TestWebSocketUnauthenticatedGetsNoBroadcast(t *testing.T) {
	f := newWSFixture(t)
	anon := wsDial(t, f.server)
	member := wsDial(t, f.server)
	authenticate(t, member, "u1")

	f.dispatcher.Broadcast(context.Background(), domain.EventBroadcast, "hello", "")

	assert.Equal(t, "broadcast", readFrame(t, member)["type"])

	require.NoError(t, anon.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := anon.ReadMessage()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "timeout"), err.Error())
}

func TestWebSocketCloseUnregisters(t *testing.T) {
	f := newWSFixture(t)
	conn := wsDial(t, f.server)
	authenticate(t, conn, "u1")

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool {
		return f.registry.Count() == 0
	}, 2*time.Second, 20*time.Millisecond)
	assert.Empty(t, f.registry.ConnectionsFor("u1"))
}

func TestWebSocketEvictionClosesPeer(t *testing.T) {
	f := newWSFixture(t)
	conn := wsDial(t, f.server)
	authenticate(t, conn, "u1")

	ids := f.registry.ConnectionsFor("u1")
	require.Len(t, ids, 1)
	require.True(t, f.registry.Evict(ids[0]))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
