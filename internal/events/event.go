package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Topics published by the gateway.
const (
	TopicPluginLoaded     = "plugin.loaded"
	TopicPluginFailed     = "plugin.failed"
	TopicGatewayReady     = "gateway.ready"
	TopicRequestCompleted = "request.completed"
	TopicRequestFailed    = "request.failed"
)

// Topics lists every topic, e.g. for the websocket bridge.
var Topics = []string{
	TopicPluginLoaded,
	TopicPluginFailed,
	TopicGatewayReady,
	TopicRequestCompleted,
	TopicRequestFailed,
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one published occurrence.
type Event struct {
	ID       string   `json:"id"`
	Topic    string   `json:"topic"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	// Key orders related events; the Kafka broker partitions on it.
	Key       string          `json:"key,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates an Event with a generated UUID and the current time.
// metadata is JSON encoded; values that fail to encode are dropped.
func NewEvent(topic string, severity Severity, title string, metadata any) Event {
	e := Event{
		ID:        uuid.New().String(),
		Topic:     topic,
		Severity:  severity,
		Title:     title,
		Timestamp: time.Now().UTC(),
	}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			e.Metadata = raw
		}
	}
	return e
}

// Handler is called for every event of a subscribed topic.
type Handler func(event Event)
