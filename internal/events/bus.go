// Package events fans match lifecycle events out to subscribed clients.
package events

import (
	"sync"
	"time"
)

type Event struct {
	MatchID   string         `json:"match_id"`
	Phase     string         `json:"phase"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type Bus struct {
	mu   sync.Mutex
	subs map[string]chan Event
}

func NewBus() *Bus {
	return &Bus{subs: map[string]chan Event{}}
}

// Subscribe registers a client and returns its event channel. The channel
// is closed on Unsubscribe, on bus Close, or when the client falls behind.
func (b *Bus) Subscribe(clientID string, buffer int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.subs[clientID]; ok {
		close(old)
	}
	ch := make(chan Event, buffer)
	b.subs[clientID] = ch
	return ch
}

func (b *Bus) Unsubscribe(clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[clientID]; ok {
		close(ch)
		delete(b.subs, clientID)
	}
}

// Publish delivers to every subscriber without blocking. A subscriber
// whose buffer is full is dropped.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			close(ch)
			delete(b.subs, id)
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
