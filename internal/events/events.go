// Package events fans agent lifecycle events out to subscribers. Each
// subscriber owns a bounded channel; a slow consumer loses its oldest
// events rather than blocking the agent loop.
package events

import (
	"sync"
	"time"

	"mcpinspect/pkg/logging"
)

// EventType identifies an agent lifecycle event.
type EventType string

const (
	EventStatusChange     EventType = "status_change"
	EventAnalysisComplete EventType = "analysis_complete"
	EventToolStart        EventType = "tool_start"
	EventToolComplete     EventType = "tool_complete"
	EventToolFailed       EventType = "tool_failed"
	EventToolSkipped      EventType = "tool_skipped"
	EventAgentComplete    EventType = "agent_complete"
	EventError            EventType = "error"

	// EventState is the synthetic snapshot event delivered to new
	// subscribers that requested replay.
	EventState EventType = "state"
)

// AgentEvent is one published lifecycle event.
type AgentEvent struct {
	Type      EventType              `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// DefaultBufferSize bounds each subscriber channel.
const DefaultBufferSize = 64

// Bus is a fan-out publisher of agent events.
type Bus struct {
	mu      sync.Mutex
	subs    map[int]chan AgentEvent
	nextID  int
	bufSize int
}

// NewBus creates a Bus. A non-positive buffer falls back to
// DefaultBufferSize.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Bus{
		subs:    make(map[int]chan AgentEvent),
		bufSize: buffer,
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. Optional initial events (e.g. a state snapshot) are
// queued before anything published later.
func (b *Bus) Subscribe(initial ...AgentEvent) (<-chan AgentEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan AgentEvent, b.bufSize)
	for _, event := range initial {
		b.deliver(ch, event)
	}
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Publish sends an event to every subscriber in publication order.
func (b *Bus) Publish(eventType EventType, data map[string]interface{}) {
	event := AgentEvent{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		b.deliver(ch, event)
	}
}

// deliver enqueues without blocking: when the subscriber buffer is full the
// oldest event is dropped to make room. Callers must hold b.mu.
func (b *Bus) deliver(ch chan AgentEvent, event AgentEvent) {
	for {
		select {
		case ch <- event:
			return
		default:
		}
		select {
		case dropped := <-ch:
			logging.Warn("Events", "Subscriber fell behind, dropping %s event", dropped.Type)
		default:
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
