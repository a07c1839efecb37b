package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/mcp-training/satmissions/game/engine"
)

func newTestClient(hub *Hub, sessionID string) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}
}

func readMessage(t *testing.T, ch <-chan []byte) Message {
	t.Helper()
	select {
	case data := <-ch:
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		return message
	case <-time.After(time.Second):
		t.Fatal("No message received within timeout")
	}
	return Message{}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub.sessions == nil || hub.latest == nil {
		t.Error("Hub maps are nil")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels are nil")
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered in session")
	}
	if hub.ClientCount("test-session") != 1 {
		t.Errorf("Expected 1 client in session, got %d", hub.ClientCount("test-session"))
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
	if _, open := <-client.send; open {
		t.Error("Client send channel should be closed")
	}

	// A second unregister is a no-op
	hub.unregisterClient(client)
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := NewHub()
	client1 := newTestClient(hub, "multi")
	client2 := newTestClient(hub, "multi")

	hub.registerClient(client1)
	hub.registerClient(client2)
	if hub.ClientCount("multi") != 2 {
		t.Errorf("Expected 2 clients in session, got %d", hub.ClientCount("multi"))
	}

	hub.unregisterClient(client1)
	if hub.ClientCount("multi") != 1 || !hub.sessions["multi"][client2] {
		t.Error("client2 should still be registered")
	}
}

func TestHubBroadcastIsolatesSessions(t *testing.T) {
	hub := NewHub()
	mine := newTestClient(hub, "a1b2")
	other := newTestClient(hub, "ffff")
	hub.registerClient(mine)
	hub.registerClient(other)

	hub.broadcastMessage(&Message{
		SessionID: "a1b2",
		Type:      TypeEvent,
		Event:     &engine.Event{Type: engine.EventAnomalyFound, Seq: 4, Data: map[string]any{"index": 1}},
	})

	message := readMessage(t, mine.send)
	if message.Type != TypeEvent || message.Event == nil || message.Event.Type != engine.EventAnomalyFound {
		t.Errorf("Unexpected message %+v", message)
	}
	if message.Event.Seq != 4 {
		t.Errorf("Expected seq 4, got %d", message.Event.Seq)
	}

	select {
	case <-other.send:
		t.Error("Client of another session should not receive the message")
	default:
	}
}

func TestHubSlowClientDropped(t *testing.T) {
	hub := NewHub()
	slow := &Client{hub: hub, sessionID: "slow", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{SessionID: "slow", Type: TypeSnapshot, Snapshot: &engine.Snapshot{}})

	if hub.ClientCount("slow") != 0 {
		t.Error("Client with a full send buffer should be unregistered")
	}
}

func TestHubReplaysLatestSnapshot(t *testing.T) {
	hub := startHub(t)

	hub.PublishSnapshot("late", engine.Snapshot{Kind: engine.Deployment, Phase: engine.PhaseConfiguring, NowMs: 3000})

	// Give the loop time to cache it
	time.Sleep(20 * time.Millisecond)

	client := newTestClient(hub, "late")
	hub.register <- client

	message := readMessage(t, client.send)
	if message.Type != TypeSnapshot || message.Snapshot == nil {
		t.Fatalf("Expected snapshot replay, got %+v", message)
	}
	if message.Snapshot.NowMs != 3000 || message.Snapshot.Phase != engine.PhaseConfiguring {
		t.Errorf("Unexpected snapshot %+v", message.Snapshot)
	}

	hub.DropSession("late")
	time.Sleep(20 * time.Millisecond)

	another := newTestClient(hub, "late")
	hub.register <- another
	select {
	case <-another.send:
		t.Error("Dropped session should not replay a snapshot")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRunStopsOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	client := newTestClient(hub, "bye")
	hub.register <- client
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if hub.ClientCount("bye") != 0 {
		t.Error("Expected clients to be closed on shutdown")
	}
}

func TestWebSocketUpgrade(t *testing.T) {
	hub := startHub(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=ws-test"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if hub.ClientCount("ws-test") != 1 {
		t.Errorf("Expected 1 client in session, got %d", hub.ClientCount("ws-test"))
	}

	conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount("ws-test") != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount("ws-test") != 0 {
		t.Error("Session should have been cleaned up after WebSocket close")
	}
}

func TestWebSocketMessageReceive(t *testing.T) {
	hub := startHub(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=msg-test"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)

	hub.PublishEvent("msg-test", engine.Event{Type: engine.EventQualityChanged, Data: map[string]any{"quality": 42}})
	hub.PublishSnapshot("msg-test", engine.Snapshot{Kind: engine.Alignment, Phase: engine.PhaseTuning})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var first, second Message
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("Failed to read first message: %v", err)
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("Failed to read second message: %v", err)
	}

	if first.Type != TypeEvent || first.Event.Type != engine.EventQualityChanged {
		t.Errorf("Expected quality_changed event first, got %+v", first)
	}
	if first.Event.Data["quality"] != float64(42) {
		t.Errorf("Expected quality 42, got %v", first.Event.Data["quality"])
	}
	if second.Type != TypeSnapshot || second.Snapshot.Kind != engine.Alignment {
		t.Errorf("Expected alignment snapshot second, got %+v", second)
	}
}
