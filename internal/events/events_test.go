package events

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/heartrisk/internal/logger"
	"github.com/OldStager01/heartrisk/pkg/models"
)

func receive(t *testing.T, ch <-chan *models.Event) *models.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestEventBus_SubscribeByType(t *testing.T) {
	bus := NewEventBus(4)
	defer bus.Close()

	deleted := bus.Subscribe(models.EventTypeRecordDeleted)
	all := bus.SubscribeAll()

	pub := NewPublisher(bus).WithTraceID("trace-1")
	pub.UserRegistered(&models.User{ID: 3, Username: "drsmith"})
	pub.RecordDeleted(3, 17)

	e := receive(t, all)
	assert.Equal(t, models.EventTypeUserRegistered, e.Type)
	assert.Equal(t, "trace-1", e.TraceID)
	assert.Equal(t, 3, e.UserID)

	e = receive(t, all)
	assert.Equal(t, models.EventTypeRecordDeleted, e.Type)

	e = receive(t, deleted)
	assert.Equal(t, models.EventTypeRecordDeleted, e.Type)
	assert.Equal(t, map[string]interface{}{"record_id": int64(17)}, e.Data)

	select {
	case extra := <-deleted:
		t.Fatalf("unexpected event %s", extra.Type)
	default:
	}
}

func TestEventBus_FullSubscriberDoesNotBlock(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()
	ch := bus.SubscribeAll()

	pub := NewPublisher(bus)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			pub.RecordDeleted(1, int64(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, 1)
}

func TestEventBus_CloseIsIdempotent(t *testing.T) {
	bus := NewEventBus(0)
	ch := bus.SubscribeAll()
	typed := bus.Subscribe(models.EventTypePredictionCreated, models.EventTypePredictionFailed)

	bus.Close()
	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)
	_, ok = <-typed
	assert.False(t, ok)

	// Publishing after close is a no-op.
	NewPublisher(bus).RecordDeleted(1, 1)
}

func TestPublisher_PredictionFailedSeverity(t *testing.T) {
	bus := NewEventBus(4)
	defer bus.Close()
	ch := bus.Subscribe(models.EventTypePredictionFailed)
	pub := NewPublisher(bus)

	pub.PredictionFailed(5, "persist", errors.New("db down"))
	pub.PredictionFailed(5, "inference", errors.New("nan"))

	assert.Equal(t, models.SeverityWarning, receive(t, ch).Severity)
	assert.Equal(t, models.SeverityCritical, receive(t, ch).Severity)
}

func TestPublisher_NilIsNoop(t *testing.T) {
	var pub *Publisher
	assert.NotPanics(t, func() { pub.RecordDeleted(1, 1) })
}

func TestEventLogger_WritesEvents(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	ch := make(chan *models.Event, 1)
	l := NewEventLogger(ch)
	l.Start()

	ch <- models.NewEvent(models.EventTypeUserLoggedIn, 9, "User logged in: drsmith")
	close(ch)

	require.Eventually(t, func() bool {
		select {
		case <-l.done:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
	l.Stop()

	assert.Contains(t, buf.String(), "User logged in: drsmith")
	assert.Contains(t, buf.String(), `"user_id":9`)
}
