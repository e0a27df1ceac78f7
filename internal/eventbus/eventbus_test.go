package eventbus

import (
	"context"
	"testing"
)

func TestPublishStageProgressDeliversToSubscriber(t *testing.T) {
	bus := NewInMemoryBus()
	ctx := context.Background()

	received := make(chan StageProgress, 1)
	_, err := bus.Subscribe(ctx, StageEventTopic, func(e Event) {
		received <- e.Data.(StageProgress)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	want := StageProgress{JobID: "job-1", Stage: "candidate", RowsDone: 3, RowsTotal: 10}
	if err := PublishStageProgress(ctx, bus, want); err != nil {
		t.Fatalf("PublishStageProgress: %v", err)
	}

	select {
	case got := <-received:
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	default:
		t.Fatal("handler was not invoked synchronously")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewInMemoryBus()
	ctx := context.Background()

	calls := 0
	id, err := bus.Subscribe(ctx, StageEventTopic, func(Event) { calls++ })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := bus.Unsubscribe(ctx, id); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if err := PublishStageProgress(ctx, bus, StageProgress{}); err != nil {
		t.Fatalf("PublishStageProgress: %v", err)
	}
	if calls != 0 {
		t.Errorf("handler invoked %d times after unsubscribe, want 0", calls)
	}
}
