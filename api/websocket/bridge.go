package websocket

import (
	"encoding/json"
	"sync"

	"github.com/OldStager01/heartrisk/internal/logger"
	"github.com/OldStager01/heartrisk/pkg/models"
)

// EventBridge forwards orchestrator events to the owning user's clients.
type EventBridge struct {
	hub        *Hub
	eventsChan <-chan *models.Event
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewEventBridge(hub *Hub, eventsChan <-chan *models.Event) *EventBridge {
	return &EventBridge{
		hub:        hub,
		eventsChan: eventsChan,
		done:       make(chan struct{}),
	}
}

func (b *EventBridge) Start() {
	b.wg.Add(1)
	go b.run()
	logger.Info("WebSocket event bridge started")
}

func (b *EventBridge) Stop() {
	b.stopOnce.Do(func() { close(b.done) })
	b.wg.Wait()
	logger.Info("WebSocket event bridge stopped")
}

func (b *EventBridge) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case event, ok := <-b.eventsChan:
			if !ok {
				logger.Info("Event channel closed, stopping bridge")
				return
			}
			b.forwardEvent(event)
		}
	}
}

func (b *EventBridge) forwardEvent(event *models.Event) {
	msg := convertToWSMessage(event)
	if msg == nil {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}
	b.hub.BroadcastToUser(event.UserID, data)
}

// convertToWSMessage returns nil for events that are not sent to clients,
// including anything without an owning user.
func convertToWSMessage(event *models.Event) *OutgoingMessage {
	if event.UserID <= 0 {
		return nil
	}
	wsType := mapEventType(event.Type)
	if wsType == "" {
		return nil
	}

	return &OutgoingMessage{
		Type:      wsType,
		UserID:    event.UserID,
		Timestamp: event.Timestamp,
		Severity:  string(event.Severity),
		Message:   event.Message,
		TraceID:   event.TraceID,
		Data:      event.Data,
	}
}

func mapEventType(eventType models.EventType) MessageType {
	switch eventType {
	case models.EventTypePredictionCreated:
		return MessageTypePrediction
	case models.EventTypePredictionFailed:
		return MessageTypePredictionFailed
	case models.EventTypeRecordDeleted:
		return MessageTypeRecordDeleted
	default:
		return ""
	}
}
