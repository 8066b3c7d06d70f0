package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain"
)

func setupTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	logger := zap.NewNop()
	hub := NewHub(time.Minute, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws/progress", func(c echo.Context) error {
		return HandleProgress(hub, c, logger)
	})
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/progress" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &out))
	return out
}

func waitForSubscribers(t *testing.T, hub *Hub, requestID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Subscribers(requestID) == n },
		2*time.Second, 10*time.Millisecond)
}

func gateEvent(requestID, eventType, gate string) domain.GateEventMessage {
	return domain.GateEventMessage{
		Type:      eventType,
		RequestID: requestID,
		Gate:      gate,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func TestHub_StreamsEventsForSubscribedRequest(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := dial(t, server, "?request_id=req-1")
	waitForSubscribers(t, hub, "req-1", 1)

	hub.Publish(gateEvent("req-2", domain.EventGateStarted, "validity"))
	hub.Publish(gateEvent("req-1", domain.EventGateStarted, "image_ingestion"))

	msg := readJSON(t, conn)
	assert.Equal(t, domain.EventGateStarted, msg["type"])
	assert.Equal(t, "req-1", msg["request_id"])
	assert.Equal(t, "image_ingestion", msg["gate"])
}

func TestHub_ReplaysBacklogOnSubscribe(t *testing.T) {
	hub, server := setupTestHub(t)

	hub.Publish(gateEvent("req-1", domain.EventGateStarted, "image_ingestion"))
	hub.Publish(gateEvent("req-1", domain.EventGateCompleted, "image_ingestion"))

	conn := dial(t, server, "")
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "request_id": "req-1"}))

	ack := readJSON(t, conn)
	assert.Equal(t, string(MessageTypeSubscribed), ack["type"])

	first := readJSON(t, conn)
	second := readJSON(t, conn)
	assert.Equal(t, domain.EventGateStarted, first["type"])
	assert.Equal(t, domain.EventGateCompleted, second["type"])
}

func TestHub_PingPong(t *testing.T) {
	_, server := setupTestHub(t)
	conn := dial(t, server, "")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping", "data": "hello"}))
	msg := readJSON(t, conn)
	assert.Equal(t, string(MessageTypePong), msg["type"])
	assert.Equal(t, "hello", msg["data"])
}

func TestHub_InvalidMessageGetsError(t *testing.T) {
	_, server := setupTestHub(t)
	conn := dial(t, server, "")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe"}))
	msg := readJSON(t, conn)
	assert.Equal(t, string(MessageTypeError), msg["type"])
	assert.Equal(t, "invalid_message", msg["error_code"])
}

func TestHub_UnsubscribeAndDisconnect(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := dial(t, server, "?request_id=req-1")
	waitForSubscribers(t, hub, "req-1", 1)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "unsubscribe", "request_id": "req-1"}))
	waitForSubscribers(t, hub, "req-1", 0)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "request_id": "req-3"}))
	waitForSubscribers(t, hub, "req-3", 1)

	conn.Close()
	waitForSubscribers(t, hub, "req-3", 0)
}

func TestHub_PublishIgnoresEventsWithoutRequest(t *testing.T) {
	hub := NewHub(time.Minute, zap.NewNop())
	hub.Publish(domain.GateEventMessage{Type: domain.EventGateStarted})
	assert.Empty(t, hub.backlog)
}

func TestHub_BacklogIsBounded(t *testing.T) {
	hub := NewHub(time.Minute, zap.NewNop())
	for i := 0; i < backlogSize+10; i++ {
		hub.Publish(gateEvent("req-1", domain.EventGateStarted, "gate"))
	}
	assert.Len(t, hub.backlog["req-1"].events, backlogSize)
}

func TestHub_PruneBacklog(t *testing.T) {
	hub := NewHub(time.Minute, zap.NewNop())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	hub.now = func() time.Time { return now }

	hub.Publish(gateEvent("old", domain.EventAnalysisDone, ""))
	now = now.Add(50 * time.Second)
	hub.Publish(gateEvent("fresh", domain.EventGateStarted, "validity"))
	now = now.Add(20 * time.Second)

	assert.Equal(t, 1, hub.PruneBacklog())
	assert.NotContains(t, hub.backlog, "old")
	assert.Contains(t, hub.backlog, "fresh")

	// unfinished requests are kept for twice the TTL
	now = now.Add(80 * time.Second)
	assert.Equal(t, 0, hub.PruneBacklog())
	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, hub.PruneBacklog())
	assert.Empty(t, hub.backlog)
}

func TestHub_SlowClientDropsEvents(t *testing.T) {
	hub := NewHub(time.Minute, zap.NewNop())
	client := &Client{hub: hub, send: make(chan WriteData, 1), logger: zap.NewNop()}
	hub.Subscribe(client, "req-1")

	hub.Publish(gateEvent("req-1", domain.EventGateStarted, "a"))
	hub.Publish(gateEvent("req-1", domain.EventGateStarted, "b"))

	assert.Len(t, client.send, 1)
}
