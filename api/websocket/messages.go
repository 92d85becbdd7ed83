package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	MessageTypeConnected        MessageType = "connected"
	MessageTypePong             MessageType = "pong"
	MessageTypePrediction       MessageType = "prediction"
	MessageTypePredictionFailed MessageType = "prediction_failed"
	MessageTypeRecordDeleted    MessageType = "record_deleted"
)

type OutgoingMessage struct {
	Type      MessageType `json:"type"`
	UserID    int         `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Severity  string      `json:"severity,omitempty"`
	Message   string      `json:"message,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func NewMessage(msgType MessageType, userID int, data interface{}) *OutgoingMessage {
	return &OutgoingMessage{
		Type:      msgType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

func (m *OutgoingMessage) JSON() []byte {
	data, _ := json.Marshal(m)
	return data
}
