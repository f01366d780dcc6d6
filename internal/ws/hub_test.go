package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/darkden-lab/ozone/internal/events"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func addClient(h *Hub, id string, topics ...string) *Client {
	c := &Client{
		ID:            id,
		User:          "user-" + id,
		subscriptions: make(map[string]bool),
		send:          make(chan []byte, 4),
		hub:           h,
	}
	for _, topic := range topics {
		c.subscriptions[topic] = true
	}
	// Register directly to avoid a race with the buffered channel.
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	return c
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := startHub(t)

	c := &Client{
		ID:   "test-client",
		User: "user-1",
		send: make(chan []byte, 4),
		hub:  h,
	}

	h.Register(c)
	time.Sleep(50 * time.Millisecond)
	if h.Len() != 1 {
		t.Fatal("client should be registered in hub")
	}

	h.Unregister(c)
	time.Sleep(50 * time.Millisecond)
	if h.Len() != 0 {
		t.Fatal("client should have been removed from hub")
	}
	if _, ok := <-c.send; ok {
		t.Fatal("send channel should be closed on unregister")
	}
}

func TestHub_BroadcastToSubscribers(t *testing.T) {
	h := startHub(t)
	c := addClient(h, "subscriber-1", events.TopicPluginLoaded)

	h.Broadcast(events.NewEvent(events.TopicPluginLoaded, events.SeverityInfo, "widgets loaded", map[string]string{"plugin": "widgets"}))

	select {
	case msg := <-c.send:
		var received events.Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal broadcast message: %v", err)
		}
		if received.Topic != events.TopicPluginLoaded {
			t.Errorf("expected topic %q, got %q", events.TopicPluginLoaded, received.Topic)
		}
		if received.Title != "widgets loaded" {
			t.Errorf("unexpected title %q", received.Title)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for broadcast message")
	}
}

func TestHub_ClientIsolation(t *testing.T) {
	h := startHub(t)
	loaded := addClient(h, "client-1", events.TopicPluginLoaded)
	failed := addClient(h, "client-2", events.TopicRequestFailed)
	all := addClient(h, "client-3", AllTopics)

	h.Broadcast(events.NewEvent(events.TopicPluginLoaded, events.SeverityInfo, "loaded", nil))
	time.Sleep(100 * time.Millisecond)

	if len(loaded.send) != 1 {
		t.Error("client-1 should have received the message")
	}
	if len(failed.send) != 0 {
		t.Error("client-2 received a message for a topic it is not subscribed to")
	}
	if len(all.send) != 1 {
		t.Error("wildcard subscriber should have received the message")
	}
}

func TestHub_SlowConsumerDoesNotBlock(t *testing.T) {
	h := startHub(t)

	slow := &Client{ID: "slow", subscriptions: map[string]bool{AllTopics: true}, send: make(chan []byte), hub: h}
	fast := addClient(h, "fast", AllTopics)
	h.mu.Lock()
	h.clients[slow.ID] = slow
	h.mu.Unlock()

	h.Broadcast(events.NewEvent(events.TopicGatewayReady, events.SeverityInfo, "ready", nil))

	select {
	case <-fast.send:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("fast client starved by slow consumer")
	}
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	c := addClient(h, "c")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-c.send; ok {
		t.Fatal("client send channel should be closed on shutdown")
	}
}

func TestBridgeForwardsBrokerEvents(t *testing.T) {
	broker := events.NewInMemoryBroker()
	defer broker.Close()
	h := startHub(t)
	c := addClient(h, "bridge", events.TopicRequestCompleted)

	if err := Bridge(broker, h); err != nil {
		t.Fatalf("Bridge: %v", err)
	}
	if err := broker.Publish(events.TopicRequestCompleted, events.NewEvent(events.TopicRequestCompleted, events.SeverityInfo, "GET /api/widgets/v1/list/", nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-c.send:
	case <-time.After(time.Second):
		t.Fatal("bridged event never reached the client")
	}
}

func TestClientApply(t *testing.T) {
	c := &Client{subscriptions: make(map[string]bool), subMu: sync.RWMutex{}}

	cases := []struct {
		msg  controlMessage
		want bool
	}{
		{controlMessage{}, false},
		{controlMessage{Action: "subscribe"}, false},
		{controlMessage{Action: "explode", Topic: "plugin.loaded"}, false},
		{controlMessage{Action: "subscribe", Topic: "plugin.loaded"}, true},
	}
	for _, tc := range cases {
		if got := c.apply(tc.msg); got != tc.want {
			t.Errorf("apply(%+v) = %v, want %v", tc.msg, got, tc.want)
		}
	}
	if !c.IsSubscribed("plugin.loaded") {
		t.Fatal("should be subscribed after subscribe")
	}
	c.apply(controlMessage{Action: "unsubscribe", Topic: "plugin.loaded"})
	if c.IsSubscribed("plugin.loaded") {
		t.Fatal("should not be subscribed after unsubscribe")
	}
}

func TestConstants(t *testing.T) {
	if pingPeriod >= pongWait {
		t.Errorf("pingPeriod %v must be shorter than pongWait %v", pingPeriod, pongWait)
	}
	if maxMessageSize > 64*1024 {
		t.Errorf("maxMessageSize too large: %d", maxMessageSize)
	}
}
