package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/OldStager01/heartrisk/api/middleware"
	"github.com/OldStager01/heartrisk/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID int

	mu     sync.Mutex
	closed bool
}

type IncomingMessage struct {
	Type string `json:"type"`
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, hub.settings.ClientBuffer),
		userID: userID,
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	s := c.hub.settings
	c.conn.SetReadLimit(s.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(s.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(s.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.WithUser(c.userID).Errorf("WebSocket error: %v", err)
			}
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err == nil && msg.Type == "ping" {
			c.enqueue(NewMessage(MessageTypePong, c.userID, nil).JSON())
		}
	}
}

func (c *Client) WritePump() {
	s := c.hub.settings
	ticker := time.NewTicker(s.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(s.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(s.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue reports false when the client is closed or its buffer is full.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ServeWebSocket upgrades an authenticated request into a live feed of the
// caller's own prediction events.
func ServeWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  hub.settings.ReadBufferSize,
		WriteBufferSize: hub.settings.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return func(c *gin.Context) {
		if hub.Full() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many live connections"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Errorf("WebSocket upgrade failed: %v", err)
			return
		}

		userID := middleware.GetUserID(c)
		client := NewClient(hub, conn, userID)
		if !hub.Register(client) {
			conn.Close()
			return
		}
		client.enqueue(NewMessage(MessageTypeConnected, userID, nil).JSON())

		go client.WritePump()
		go client.ReadPump()
	}
}
