package api

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	pid := "p1"
	ch := b.Subscribe(pid)

	evt := SSEEvent{Type: "plan.completed", Data: map[string]any{"objective": 12.5}}
	b.Publish(pid, evt)

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["objective"].(float64) != 12.5 {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(pid, ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("channel should be closed after unsubscribe")
		}
	case <-time.After(50 * time.Millisecond):
		// acceptable if already drained and closed
	}

	// publishing to a plan with no subscribers must not panic
	b.Publish("p2", evt)
}

func TestBrokerDropsWhenSlow(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("p1")
	defer b.Unsubscribe("p1", ch)
	// channel buffer is 8; extra events are dropped, not blocking
	for i := 0; i < 20; i++ {
		b.Publish("p1", SSEEvent{Type: "tick", Data: map[string]any{"i": i}})
	}
	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			if n == 0 || n > 8 {
				t.Fatalf("buffered events: %d", n)
			}
			return
		}
	}
}
