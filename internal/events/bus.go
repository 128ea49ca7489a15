// Package events provides a publish-subscribe bus for player status updates.
package events

import (
	"sync"

	"github.com/eist-radio/streamd/internal/player"
)

const subBufferSize = 8

// Bus is a non-blocking publish-subscribe bus. Slow subscribers have updates
// dropped rather than blocking publishers.
type Bus struct {
	mu   sync.Mutex
	subs map[string]chan player.Status
}

// NewBus creates a new bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan player.Status),
	}
}

// Subscribe creates a subscription under the given ID. Call Unsubscribe when
// done to clean up.
func (b *Bus) Subscribe(id string) <-chan player.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan player.Status, subBufferSize)
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish sends a status update to all subscribers without blocking.
func (b *Bus) Publish(status player.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- status:
		default:
			// Drop if subscriber is slow
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
