// Package events publishes gateway lifecycle and request events to
// in-process or Kafka subscribers.
package events

import "errors"

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("broker is closed")

// Broker publishes events to topics and fans them out to subscribers.
// Implementations are InMemoryBroker for a single gateway and KafkaBroker
// for several gateways sharing one stream.
type Broker interface {
	// Publish sends an event to the given topic. Subscribers of that topic
	// receive it asynchronously.
	Publish(topic string, event Event) error

	// Subscribe registers a handler called for every event published to
	// topic and returns a subscription ID.
	Subscribe(topic string, handler Handler) (string, error)

	// Close releases connections and goroutines. Publish and Subscribe fail
	// afterwards.
	Close() error
}
