// Package ws streams gateway events to websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/darkden-lab/ozone/internal/events"
	"github.com/darkden-lab/ozone/internal/logging"
)

// AllTopics subscribes a client to every topic.
const AllTopics = "*"

// Hub manages the lifecycle of websocket clients and fans events out to
// those subscribed to the event's topic. It is safe for concurrent use.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	mu         sync.RWMutex
	logger     *slog.Logger
}

type broadcastMsg struct {
	topic string
	data  []byte
}

// NewHub allocates a Hub. Call Run in a goroutine to start the event loop.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan broadcastMsg, 256),
		logger:     logging.OrDiscard(logger).With("component", "ws"),
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, closing
// every client still registered.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Debug("client registered", "client", client.ID, "user", client.User)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client", client.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				if client.IsSubscribed(msg.topic) {
					select {
					case client.send <- msg.data:
					default:
						// Slow consumer: drop the message to avoid blocking.
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast encodes event as JSON and enqueues it for every client
// subscribed to event.Topic.
func (h *Hub) Broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("failed to marshal event", "error", err)
		return
	}
	select {
	case h.broadcast <- broadcastMsg{topic: event.Topic, data: data}:
	default:
		h.logger.Warn("broadcast queue full, dropping event", "topic", event.Topic)
	}
}

// Register enqueues a new client for addition to the hub.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister enqueues a client for removal from the hub.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Bridge subscribes the hub to every gateway topic on broker.
func Bridge(broker events.Broker, h *Hub) error {
	for _, topic := range events.Topics {
		if _, err := broker.Subscribe(topic, h.Broadcast); err != nil {
			return err
		}
	}
	return nil
}
