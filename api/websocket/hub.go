package websocket

import (
	"sync"

	"github.com/OldStager01/heartrisk/internal/logger"
	"github.com/OldStager01/heartrisk/pkg/config"
)

const defaultBroadcastBuffer = 256

type userMessage struct {
	userID int
	data   []byte
}

// Hub tracks connected clients and fans messages out to the clients of one
// user. All client set mutations happen on the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan userMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	settings   *WebSocketSettings
}

func NewHub(cfg *config.WebSocketConfig) *Hub {
	broadcastBuffer := defaultBroadcastBuffer
	if cfg != nil && cfg.BroadcastBuffer > 0 {
		broadcastBuffer = cfg.BroadcastBuffer
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan userMessage, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		settings:   NewWebSocketSettings(cfg),
	}
}

func (h *Hub) Settings() *WebSocketSettings {
	return h.settings
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			logger.WithUser(client.userID).Infof("WebSocket client connected (total: %d)", n)

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			var slow []*Client
			h.mu.RLock()
			for client := range h.clients {
				if client.userID != msg.userID {
					continue
				}
				if !client.enqueue(msg.data) {
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				logger.WithUser(client.userID).Warn("WebSocket client too slow, disconnecting")
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		client.close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		logger.WithUser(client.userID).Infof("WebSocket client disconnected (total: %d)", n)
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// BroadcastToUser queues data for every connection of userID. It drops the
// message when the hub is backed up.
func (h *Hub) BroadcastToUser(userID int, data []byte) {
	select {
	case h.broadcast <- userMessage{userID: userID, data: data}:
	default:
		logger.Warn("Broadcast channel full, dropping message")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Full reports whether the connection limit is reached.
func (h *Hub) Full() bool {
	return h.settings.MaxConnections > 0 && h.ClientCount() >= h.settings.MaxConnections
}

// Register returns false once the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
