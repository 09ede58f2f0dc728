package api

import (
	"os"
	"testing"
	"time"
)

func redisBroker(t *testing.T) *RedisBroker {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	b, err := NewRedisBroker(url)
	if err != nil {
		t.Fatalf("NewRedisBroker: %v", err)
	}
	return b
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
	b := redisBroker(t)
	ch := b.Subscribe("p1")
	defer b.Unsubscribe("p1", ch)

	b.Publish("p1", SSEEvent{Type: "plan.completed", Data: map[string]any{"objective": 12.5}})
	select {
	case got := <-ch:
		if got.Type != "plan.completed" {
			t.Fatalf("got type %s", got.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestRedisBrokerUnsubscribeStopsForwarding(t *testing.T) {
	b := redisBroker(t)
	ch := b.Subscribe("p2")
	b.Unsubscribe("p2", ch)

	// the forwarder owns ch and closes it once the subscription is gone;
	// late publishes must be silently dropped, never a send on a closed
	// channel
	b.Publish("p2", SSEEvent{Type: "plan.completed"})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				// second unsubscribe for the same channel is a no-op
				b.Unsubscribe("p2", ch)
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after unsubscribe")
		}
	}
}
