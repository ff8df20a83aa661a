package memory

import (
	"context"
	"testing"
	"time"

	"quizroom-service/internal/app"
)

func TestBusFanOut(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	ch1, cancel1, err := bus.Subscribe(ctx, "r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel1()
	ch2, cancel2, err := bus.Subscribe(ctx, "r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel2()
	other, cancelOther, err := bus.Subscribe(ctx, "r2")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancelOther()

	if err := bus.Publish(ctx, "r1", app.Event{Kind: app.EventRoom, RoomID: "r1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, ch := range []<-chan app.Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Kind != app.EventRoom {
				t.Fatalf("unexpected event kind %q", ev.Kind)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	select {
	case ev := <-other:
		t.Fatalf("room r2 subscriber received %+v", ev)
	default:
	}
}

func TestBusDropsOldestWhenSubscriberLags(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	ch, cancel, err := bus.Subscribe(ctx, "r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	// overflow the buffer without reading; publishes must not block
	for i := 0; i < subscriberBuffer+5; i++ {
		if err := bus.Publish(ctx, "r1", app.Event{Kind: app.EventParticipants, RoomID: "r1"}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if err := bus.Publish(ctx, "r1", app.Event{Kind: app.EventAnswers, RoomID: "r1"}); err != nil {
		t.Fatalf("final publish: %v", err)
	}

	var last app.Event
	for {
		select {
		case ev := <-ch:
			last = ev
			continue
		default:
		}
		break
	}
	if last.Kind != app.EventAnswers {
		t.Fatalf("latest event should survive, got %q", last.Kind)
	}
}

func TestBusCancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	_, cancel, err := bus.Subscribe(ctx, "r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()
	cancel() // must not panic on double close

	if err := bus.Publish(ctx, "r1", app.Event{Kind: app.EventRoom, RoomID: "r1"}); err != nil {
		t.Fatalf("publish after cancel: %v", err)
	}
}
