package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/heartrisk/api/middleware"
	"github.com/OldStager01/heartrisk/pkg/config"
	"github.com/OldStager01/heartrisk/pkg/models"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(&config.WebSocketConfig{ClientBuffer: 4})
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func fakeClient(hub *Hub, userID int) *Client {
	return &Client{hub: hub, send: make(chan []byte, hub.settings.ClientBuffer), userID: userID}
}

func receive(t *testing.T, c *Client) *OutgoingMessage {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "client channel closed")
		var msg OutgoingMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestNewWebSocketSettings_Defaults(t *testing.T) {
	s := NewWebSocketSettings(nil)
	assert.Equal(t, 60*time.Second, s.PongWait)
	assert.Equal(t, 54*time.Second, s.PingPeriod)
	assert.Equal(t, int64(512), s.MaxMessageSize)

	s = NewWebSocketSettings(&config.WebSocketConfig{PongTimeout: 10 * time.Second, PingInterval: 30 * time.Second})
	assert.Equal(t, 9*time.Second, s.PingPeriod, "ping period must stay below pong wait")
}

func TestEventBridge_RoutesToOwner(t *testing.T) {
	hub := newTestHub(t)
	owner := fakeClient(hub, 1)
	other := fakeClient(hub, 2)
	require.True(t, hub.Register(owner))
	require.True(t, hub.Register(other))

	events := make(chan *models.Event, 4)
	bridge := NewEventBridge(hub, events)
	bridge.Start()
	defer bridge.Stop()

	events <- models.NewEvent(models.EventTypeUserLoggedIn, 1, "ignored")
	events <- models.NewEvent(models.EventTypePredictionCreated, 1, "Cluster prediction").
		WithData(map[string]interface{}{"record_id": 5})

	msg := receive(t, owner)
	assert.Equal(t, MessageTypePrediction, msg.Type)
	assert.Equal(t, 1, msg.UserID)
	assert.Equal(t, "Cluster prediction", msg.Message)

	select {
	case <-other.send:
		t.Fatal("event leaked to another user")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConvertToWSMessage(t *testing.T) {
	assert.Nil(t, convertToWSMessage(models.NewEvent(models.EventTypePredictionFailed, 0, "anonymous")))
	assert.Nil(t, convertToWSMessage(models.NewEvent(models.EventTypeUserRegistered, 3, "registered")))

	msg := convertToWSMessage(models.NewEvent(models.EventTypeRecordDeleted, 3, "deleted").WithTraceID("abc"))
	require.NotNil(t, msg)
	assert.Equal(t, MessageTypeRecordDeleted, msg.Type)
	assert.Equal(t, "abc", msg.TraceID)
}

func TestHub_DisconnectsSlowClient(t *testing.T) {
	hub := newTestHub(t)
	slow := fakeClient(hub, 9)
	require.True(t, hub.Register(slow))

	for i := 0; i < hub.settings.ClientBuffer+1; i++ {
		hub.BroadcastToUser(9, []byte(`{}`))
	}

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWebSocket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := newTestHub(t)

	router := gin.New()
	router.GET("/ws", func(c *gin.Context) {
		c.Set(middleware.UserIDKey, 7)
		c.Next()
	}, ServeWebSocket(hub))

	srv := httptest.NewServer(router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg OutgoingMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeConnected, msg.Type)
	assert.Equal(t, 7, msg.UserID)

	hub.BroadcastToUser(7, NewMessage(MessageTypePrediction, 7, map[string]int{"cluster": 2}).JSON())
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypePrediction, msg.Type)

	require.NoError(t, conn.WriteJSON(IncomingMessage{Type: "ping"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypePong, msg.Type)
}
