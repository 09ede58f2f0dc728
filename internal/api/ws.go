package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket bridge for plan events, speaking a small
// graphql-transport-ws like protocol: connection_init, subscribe with a
// planId variable, next frames per event, complete on unsubscribe.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsSubscribePayload struct {
	PlanID string `json:"planId"`
}

// PlanWSHandler handles /v1/ws
func (s *Server) PlanWSHandler(w http.ResponseWriter, r *http.Request) {
	_, tenant := s.withTenant(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	type sub struct {
		planID string
		ch     chan SSEEvent
		done   chan struct{}
	}
	subs := map[string]sub{}
	defer func() {
		for _, sb := range subs {
			close(sb.done)
			s.Broker.Unsubscribe(sb.planID, sb.ch)
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// gorilla allows one concurrent writer; serialize frames from the
	// read loop and the per-subscription goroutines
	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl wsSubscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			if pl.PlanID == "" || msg.ID == "" {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: json.RawMessage(`{"message":"planId required"}`)})
				continue
			}
			if _, dup := subs[msg.ID]; dup {
				continue
			}
			ch := s.Broker.Subscribe(pl.PlanID)
			done := make(chan struct{})
			subs[msg.ID] = sub{planID: pl.PlanID, ch: ch, done: done}
			// replay the current state so late subscribers see the plan
			if p, err := s.Store.GetPlan(r.Context(), tenant, pl.PlanID); err == nil {
				data, _ := json.Marshal(map[string]any{"type": "plan.snapshot", "data": p})
				_ = write(wsMessage{Type: "next", ID: msg.ID, Payload: data})
			}
			go func(id string) {
				for {
					select {
					case <-done:
						return
					case evt, ok := <-ch:
						if !ok {
							return
						}
						data, _ := json.Marshal(map[string]any{"type": evt.Type, "data": evt.Data})
						if err := write(wsMessage{Type: "next", ID: id, Payload: data}); err != nil {
							return
						}
					}
				}
			}(msg.ID)
		case "complete":
			if sb, ok := subs[msg.ID]; ok {
				close(sb.done)
				s.Broker.Unsubscribe(sb.planID, sb.ch)
				delete(subs, msg.ID)
			}
		}
	}
}
