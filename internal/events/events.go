package events

import (
	"sync"

	"github.com/OldStager01/heartrisk/internal/logger"
	"github.com/OldStager01/heartrisk/pkg/models"
)

// EventBus fans events out to buffered subscriber channels. Publishing never
// blocks: a full subscriber misses the event.
type EventBus struct {
	subscribers map[models.EventType][]chan *models.Event
	mu          sync.RWMutex
	bufferSize  int
	closed      bool
}

func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &EventBus{
		subscribers: make(map[models.EventType][]chan *models.Event),
		bufferSize:  bufferSize,
	}
}

func (b *EventBus) Subscribe(types ...models.EventType) <-chan *models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *models.Event, b.bufferSize)
	for _, t := range types {
		b.subscribers[t] = append(b.subscribers[t], ch)
	}
	return ch
}

func (b *EventBus) SubscribeAll() <-chan *models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *models.Event, b.bufferSize)
	for _, t := range models.EventTypes {
		b.subscribers[t] = append(b.subscribers[t], ch)
	}
	return ch
}

func (b *EventBus) Publish(event *models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subscribers[event.Type] {
		select {
		case ch <- event:
		default:
			logger.Warnf("Event channel full, dropping event: %s", event.Type)
		}
	}
}

// Close closes every subscriber channel exactly once.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	seen := make(map[chan *models.Event]bool)
	for _, subs := range b.subscribers {
		for _, ch := range subs {
			if !seen[ch] {
				close(ch)
				seen[ch] = true
			}
		}
	}

	b.subscribers = make(map[models.EventType][]chan *models.Event)
}
