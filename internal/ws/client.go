package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the maximum time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// pongWait is the maximum time to wait for a pong reply from the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize is the maximum inbound message size in bytes.
	maxMessageSize = 4096
)

// controlMessage subscribes or unsubscribes the client from a topic.
type controlMessage struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	Topic  string `json:"topic"`  // e.g. "plugin.loaded", or "*"
}

// Client represents a single websocket connection.
type Client struct {
	ID            string
	User          string
	conn          *websocket.Conn
	subscriptions map[string]bool
	subMu         sync.RWMutex
	send          chan []byte
	hub           *Hub
}

// NewClient creates a Client; the caller registers it with the hub.
func NewClient(hub *Hub, conn *websocket.Conn, user string) *Client {
	return &Client{
		ID:            uuid.New().String(),
		User:          user,
		conn:          conn,
		subscriptions: make(map[string]bool),
		send:          make(chan []byte, 256),
		hub:           hub,
	}
}

// IsSubscribed reports whether this client receives events of topic.
func (c *Client) IsSubscribed(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions[topic] || c.subscriptions[AllTopics]
}

// apply handles one control message and reports whether it was understood.
func (c *Client) apply(cm controlMessage) bool {
	if cm.Topic == "" {
		return false
	}
	switch cm.Action {
	case "subscribe":
		c.subMu.Lock()
		c.subscriptions[cm.Topic] = true
		c.subMu.Unlock()
	case "unsubscribe":
		c.subMu.Lock()
		delete(c.subscriptions, cm.Topic)
		c.subMu.Unlock()
	default:
		return false
	}
	return true
}

// ReadPump reads control messages until the connection fails. It runs in its
// own goroutine per client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("client read error", "client", c.ID, "error", err)
			}
			break
		}

		var cm controlMessage
		if err := json.Unmarshal(msg, &cm); err != nil {
			c.hub.logger.Debug("invalid control message", "client", c.ID, "error", err)
			continue
		}
		if !c.apply(cm) {
			c.hub.logger.Debug("ignored control message", "client", c.ID, "action", cm.Action, "topic", cm.Topic)
		}
	}
}

// WritePump drains the send channel onto the connection. It runs in its own
// goroutine per client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
