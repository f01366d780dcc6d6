package events

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestInMemoryBroker_PublishSubscribe(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	var received Event
	done := make(chan struct{})

	_, err := broker.Subscribe(TopicPluginLoaded, func(e Event) {
		received = e
		close(done)
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	event := NewEvent(TopicPluginLoaded, SeverityInfo, "Plugin widgets loaded", map[string]any{"plugin": "widgets", "routes": 3})
	if err := broker.Publish(TopicPluginLoaded, event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	if received.ID != event.ID {
		t.Errorf("expected event ID %s, got %s", event.ID, received.ID)
	}
	var meta map[string]any
	if err := json.Unmarshal(received.Metadata, &meta); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if meta["plugin"] != "widgets" {
		t.Errorf("expected plugin widgets, got %v", meta["plugin"])
	}
}

func TestInMemoryBroker_MultipleSubscribers(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	for i := 0; i < 3; i++ {
		_, err := broker.Subscribe(TopicRequestFailed, func(e Event) {
			count.Add(1)
			wg.Done()
		})
		if err != nil {
			t.Fatalf("subscribe %d failed: %v", i, err)
		}
	}

	if err := broker.Publish(TopicRequestFailed, NewEvent(TopicRequestFailed, SeverityError, "boom", nil)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all subscribers")
	}

	if got := count.Load(); got != 3 {
		t.Errorf("expected 3 handler calls, got %d", got)
	}
}

func TestInMemoryBroker_TopicFiltering(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	var readyCount, failedCount atomic.Int32
	readyDone := make(chan struct{}, 1)

	if _, err := broker.Subscribe(TopicGatewayReady, func(e Event) {
		readyCount.Add(1)
		select {
		case readyDone <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if _, err := broker.Subscribe(TopicPluginFailed, func(e Event) {
		failedCount.Add(1)
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := broker.Publish(TopicGatewayReady, NewEvent(TopicGatewayReady, SeverityInfo, "ready", nil)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case <-readyDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ready event")
	}

	// Give a moment for any erroneous delivery.
	time.Sleep(100 * time.Millisecond)

	if got := readyCount.Load(); got != 1 {
		t.Errorf("expected 1 ready event, got %d", got)
	}
	if got := failedCount.Load(); got != 0 {
		t.Errorf("expected 0 failed events, got %d", got)
	}
}

func TestInMemoryBroker_ClosePreventsFurtherUse(t *testing.T) {
	broker := NewInMemoryBroker()
	broker.Close()

	if err := broker.Publish(TopicGatewayReady, Event{}); err == nil {
		t.Error("expected error publishing after close")
	}
	if _, err := broker.Subscribe(TopicGatewayReady, func(e Event) {}); err == nil {
		t.Error("expected error subscribing after close")
	}
	if err := broker.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(TopicRequestCompleted, SeverityInfo, "GET /api/w/", nil)
	if e.ID == "" {
		t.Error("expected non-empty ID")
	}
	if e.Timestamp.IsZero() {
		t.Error("expected non-zero timestamp")
	}
	if e.Metadata != nil {
		t.Errorf("expected no metadata, got %s", e.Metadata)
	}
}

func TestPublisher_NilIsNoop(t *testing.T) {
	var p *Publisher
	p.Emit(TopicGatewayReady, SeverityInfo, "ready", nil)

	NewPublisher(nil, nil).Emit(TopicGatewayReady, SeverityInfo, "ready", nil)
}

func TestInMemoryBroker_CloseDeliversQueuedEvents(t *testing.T) {
	broker := NewInMemoryBroker()

	entered := make(chan struct{})
	release := make(chan struct{})
	var got []string
	var mu sync.Mutex
	if _, err := broker.Subscribe(TopicRequestCompleted, func(e Event) {
		mu.Lock()
		got = append(got, e.Title)
		first := len(got) == 1
		mu.Unlock()
		if first {
			close(entered)
			<-release
		}
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	for _, title := range []string{"first", "second"} {
		if err := broker.Publish(TopicRequestCompleted, NewEvent(TopicRequestCompleted, SeverityInfo, title, nil)); err != nil {
			t.Fatalf("publish %s failed: %v", title, err)
		}
	}
	<-entered

	closed := make(chan error, 1)
	go func() { closed <- broker.Close() }()

	// Close must not block the handler holding the first event.
	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("close failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return with an event still queued")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[1] != "second" {
		t.Errorf("expected both events delivered before Close returned, got %v", got)
	}
	if err := broker.Publish(TopicRequestCompleted, Event{}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
}

func TestPublisher_EmitKeyed(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	received := make(chan Event, 1)
	if _, err := broker.Subscribe(TopicRequestFailed, func(e Event) { received <- e }); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	NewPublisher(broker, nil).EmitKeyed("widgets", TopicRequestFailed, SeverityError, "GET /api/widgets/", nil)

	select {
	case e := <-received:
		if e.Key != "widgets" || e.Topic != TopicRequestFailed {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
