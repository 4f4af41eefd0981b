package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/technosupport/hikbridge/internal/api"
	"github.com/technosupport/hikbridge/internal/notifications"
)

func dialHub(t *testing.T, hub *api.Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	assert.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 1, hub.ClientCount())
	return conn
}

func TestHubBroadcastRoundtrip(t *testing.T) {
	hub := api.NewHub()
	conn := dialHub(t, hub)

	hub.Broadcast(&notifications.BridgeEvent{
		DeviceSerialNo: "DS-TEST-1",
		ChannelID:      1,
		EventType:      "motiondetection",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	assert.NoError(t, err)
	assert.Contains(t, string(msg), "motiondetection")
	assert.Contains(t, string(msg), "DS-TEST-1")
}

// A client that stops reading must not stall the broadcast path; its
// queue absorbs the burst and overflow disconnects it.
func TestHubBroadcastDoesNotBlockOnSlowClient(t *testing.T) {
	hub := api.NewHub()
	dialHub(t, hub)

	ev := &notifications.BridgeEvent{
		DeviceSerialNo: "DS-TEST-1",
		EventType:      "motiondetection",
	}

	start := time.Now()
	for i := 0; i < 200; i++ {
		hub.Broadcast(ev)
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestHubDropsClosedClient(t *testing.T) {
	hub := api.NewHub()
	conn := dialHub(t, hub)

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() > 0 && time.Now().Before(deadline) {
		hub.Broadcast(&notifications.BridgeEvent{EventType: "motiondetection"})
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, hub.ClientCount())
}
