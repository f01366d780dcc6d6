package events

import (
	"sync"

	"github.com/google/uuid"
)

type subscription struct {
	id      string
	handler Handler
}

// InMemoryBroker is a single-process Broker backed by a channel. Events
// still queued when Close is called are delivered before it returns.
type InMemoryBroker struct {
	mu      sync.RWMutex
	subs    map[string][]subscription
	closed  bool
	eventCh chan topicEvent
	quit    chan struct{}
	done    chan struct{}
}

type topicEvent struct {
	topic string
	event Event
}

// NewInMemoryBroker creates the broker and starts its dispatch goroutine;
// call Close to stop it.
func NewInMemoryBroker() *InMemoryBroker {
	b := &InMemoryBroker{
		subs:    make(map[string][]subscription),
		eventCh: make(chan topicEvent, 1024),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Publish queues event for delivery. It blocks while the queue is full and
// fails once the broker is closed.
func (b *InMemoryBroker) Publish(topic string, event Event) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	select {
	case b.eventCh <- topicEvent{topic: topic, event: event}:
		return nil
	case <-b.quit:
		return ErrClosed
	}
}

func (b *InMemoryBroker) Subscribe(topic string, handler Handler) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", ErrClosed
	}

	id := uuid.New().String()
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	return id, nil
}

// Close stops accepting events and waits for the queue to drain.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return nil
	}
	b.closed = true
	close(b.quit)
	b.mu.Unlock()

	<-b.done
	return nil
}

func (b *InMemoryBroker) dispatch() {
	defer close(b.done)

	for {
		select {
		case te := <-b.eventCh:
			b.deliver(te)
		case <-b.quit:
			for {
				select {
				case te := <-b.eventCh:
					b.deliver(te)
				default:
					return
				}
			}
		}
	}
}

func (b *InMemoryBroker) deliver(te topicEvent) {
	b.mu.RLock()
	subs := b.subs[te.topic]
	handlers := make([]Handler, len(subs))
	for i, s := range subs {
		handlers[i] = s.handler
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(te.event)
	}
}
