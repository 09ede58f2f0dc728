// Package main runs a demo WebSocket client for plan events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Seed a demand batch and solve a plan for a full-day shift
	post := func(path string, body []byte, out any) {
		req, _ := http.NewRequest(http.MethodPost, base+path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-Id", "t_demo")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Fatal(err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= 300 {
			log.Fatalf("%s: status %d", path, resp.StatusCode)
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				log.Fatal(err)
			}
		}
	}

	post("/v1/requests/generate", []byte(`{"count":12,"seed":7}`), nil)

	var zonesResp struct {
		Zones []struct {
			ID string `json:"id"`
		} `json:"zones"`
	}
	zreq, _ := http.NewRequest(http.MethodGet, base+"/v1/zones", nil)
	zresp, err := http.DefaultClient.Do(zreq)
	if err != nil {
		log.Fatal(err)
	}
	if err := json.NewDecoder(zresp.Body).Decode(&zonesResp); err != nil {
		log.Fatal(err)
	}
	_ = zresp.Body.Close()
	if len(zonesResp.Zones) == 0 {
		log.Fatal("no zones")
	}
	depot := zonesResp.Zones[0].ID

	var planResp struct {
		ID        string  `json:"id"`
		Status    string  `json:"status"`
		Objective float64 `json:"objective"`
	}
	planBody := fmt.Sprintf(`{"shift":{"startTime":480,"endTime":1380,"startZone":"%s","endZone":"%s"}}`, depot, depot)
	post("/v1/plan", []byte(planBody), &planResp)
	log.Printf("Plan %s: %s objective=%.2f", planResp.ID, planResp.Status, planResp.Objective)

	// Connect WS and subscribe to the plan's event stream
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	pl, _ := json.Marshal(map[string]any{"planId": planResp.ID})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// The subscription replays a plan.snapshot immediately; wait briefly
	// for it and any follow-up events
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
