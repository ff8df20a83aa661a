package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestBusDeliversEventsPerRoom(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(newTestClient(t))

	events, cancel, err := bus.Subscribe(ctx, "room-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	otherEvents, cancelOther, err := bus.Subscribe(ctx, "room-2")
	if err != nil {
		t.Fatalf("subscribe other: %v", err)
	}
	defer cancelOther()

	if err := bus.Publish(ctx, "room-1", app.Event{Kind: app.EventParticipants, RoomID: "room-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != app.EventParticipants || ev.RoomID != "room-1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case ev := <-otherEvents:
		t.Fatalf("room-2 subscriber received %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBusCarriesReactionPayload(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(newTestClient(t))

	events, cancel, err := bus.Subscribe(ctx, "room-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	sent := app.Event{
		Kind:     app.EventReaction,
		RoomID:   "room-1",
		Reaction: &domain.Reaction{Emoji: "🎉", Sender: "Ana"},
	}
	if err := bus.Publish(ctx, "room-1", sent); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Reaction == nil || ev.Reaction.Emoji != "🎉" || ev.Reaction.Sender != "Ana" {
			t.Fatalf("reaction payload lost: %+v", ev.Reaction)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reaction")
	}
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(newTestClient(t))

	events, cancel, err := bus.Subscribe(ctx, "room-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed channel after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}
