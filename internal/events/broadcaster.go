// Package events fans exchange boundary events out to live subscribers.
package events

import (
	"sync"

	"github.com/forkguard/dexsim/internal/domain"
)

// Broadcaster fans out events to subscribers via buffered channels.
// Subscriptions may be narrowed to specific event kinds so a consumer
// interested only in liquidity changes never sees swap traffic.
type Broadcaster struct {
	mu sync.RWMutex
	// subs maps a subscriber channel to its kind filter; a nil filter
	// receives every kind.
	subs   map[chan domain.Event]map[domain.EventKind]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[chan domain.Event]map[domain.EventKind]struct{}),
		buffer: buffer,
	}
}

// Publish sends the event to every subscriber whose filter matches,
// dropping it for readers that have fallen behind.
func (b *Broadcaster) Publish(event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, filter := range b.subs {
		if filter != nil {
			if _, ok := filter[event.EventKind()]; !ok {
				continue
			}
		}
		select {
		case ch <- event:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel receiving events of the named kinds, or
// every kind when none are given. The channel stays open until
// Unsubscribe.
func (b *Broadcaster) Subscribe(kinds ...domain.EventKind) chan domain.Event {
	var filter map[domain.EventKind]struct{}
	if len(kinds) > 0 {
		filter = make(map[domain.EventKind]struct{}, len(kinds))
		for _, kind := range kinds {
			filter[kind] = struct{}{}
		}
	}

	ch := make(chan domain.Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = filter
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan domain.Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
