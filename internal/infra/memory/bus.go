package memory

import (
	"context"
	"sync"

	"quizroom-service/internal/app"
)

const subscriberBuffer = 16

// Bus is an in-process fan-out of room events. Slow subscribers lose their
// oldest pending event rather than blocking publishers.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan app.Event
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]chan app.Event)}
}

func (b *Bus) Publish(_ context.Context, roomID string, event app.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[roomID] {
		select {
		case ch <- event:
		default:
			// drop the oldest so the latest invalidation always lands
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
	}
	return nil
}

func (b *Bus) Subscribe(_ context.Context, roomID string) (<-chan app.Event, func(), error) {
	ch := make(chan app.Event, subscriberBuffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[int]chan app.Event)
	}
	b.subs[roomID][id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subs[roomID]; ok {
			if _, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
			if len(subs) == 0 {
				delete(b.subs, roomID)
			}
		}
	}
	return ch, cancel, nil
}
