package redis

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"quizroom-service/internal/app"
)

const channelPrefix = "room-events:"

// Bus fans room events out over Redis pub/sub so every instance serving the
// same room sees the same invalidation stream.
type Bus struct {
	client *redis.Client
}

func NewBus(client *redis.Client) *Bus {
	return &Bus{client: client}
}

func (b *Bus) Publish(ctx context.Context, roomID string, event app.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelPrefix+roomID, payload).Err()
}

// Subscribe opens a per-room subscription. The returned channel closes when
// cancel is called or the underlying connection drops.
func (b *Bus) Subscribe(ctx context.Context, roomID string) (<-chan app.Event, func(), error) {
	sub := b.client.Subscribe(ctx, channelPrefix+roomID)
	// wait for the subscription ack so no events published right after
	// this call are missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan app.Event, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var event app.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("redis bus: drop malformed event on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case out <- event:
			default:
				// subscriber is stalled; events are refetch triggers,
				// so losing one is safe as long as a later one arrives
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}
