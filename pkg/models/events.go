package models

import "time"

type EventType string

const (
	EventTypePredictionCreated EventType = "prediction_created"
	EventTypePredictionFailed  EventType = "prediction_failed"
	EventTypeRecordDeleted     EventType = "record_deleted"
	EventTypeUserRegistered    EventType = "user_registered"
	EventTypeUserLoggedIn      EventType = "user_logged_in"
)

var EventTypes = []EventType{
	EventTypePredictionCreated,
	EventTypePredictionFailed,
	EventTypeRecordDeleted,
	EventTypeUserRegistered,
	EventTypeUserLoggedIn,
}

type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityCritical EventSeverity = "critical"
)

// Event represents an internal system event
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Severity  EventSeverity `json:"severity"`
	UserID    int           `json:"user_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Message   string        `json:"message"`
	Data      interface{}   `json:"data,omitempty"`
	TraceID   string        `json:"trace_id,omitempty"`
}

func NewEvent(eventType EventType, userID int, message string) *Event {
	return &Event{
		ID:        NewUUID(),
		Type:      eventType,
		Severity:  SeverityInfo,
		UserID:    userID,
		Timestamp: time.Now(),
		Message:   message,
	}
}

func (e *Event) WithSeverity(severity EventSeverity) *Event {
	e.Severity = severity
	return e
}

func (e *Event) WithData(data interface{}) *Event {
	e.Data = data
	return e
}

func (e *Event) WithTraceID(traceID string) *Event {
	e.TraceID = traceID
	return e
}
