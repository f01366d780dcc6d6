package events

import (
	"log/slog"

	"github.com/darkden-lab/ozone/internal/config"
	"github.com/darkden-lab/ozone/internal/logging"
)

// NewBroker returns a KafkaBroker when brokers are configured and an
// InMemoryBroker otherwise.
func NewBroker(cfg config.EventsConfig, logger *slog.Logger) (Broker, error) {
	logger = logging.OrDiscard(logger)
	if len(cfg.KafkaBrokers) > 0 {
		logger.Info("events: using kafka broker", "brokers", cfg.KafkaBrokers, "group", cfg.ConsumerGroup)
		return NewKafkaBroker(KafkaConfig{
			Brokers:       cfg.KafkaBrokers,
			ConsumerGroup: cfg.ConsumerGroup,
			TopicPrefix:   cfg.TopicPrefix,
			Logger:        logger,
		})
	}

	logger.Info("events: using in-memory broker")
	return NewInMemoryBroker(), nil
}

// Publisher publishes without surfacing errors to request paths. A nil
// Publisher drops everything.
type Publisher struct {
	broker Broker
	logger *slog.Logger
}

func NewPublisher(b Broker, logger *slog.Logger) *Publisher {
	return &Publisher{broker: b, logger: logging.OrDiscard(logger)}
}

// Emit builds and publishes an event, logging failures.
func (p *Publisher) Emit(topic string, severity Severity, title string, metadata any) {
	p.EmitKeyed("", topic, severity, title, metadata)
}

// EmitKeyed is Emit for events that must stay ordered relative to others
// with the same key, e.g. every request event of one plugin.
func (p *Publisher) EmitKeyed(key, topic string, severity Severity, title string, metadata any) {
	if p == nil || p.broker == nil {
		return
	}
	e := NewEvent(topic, severity, title, metadata)
	e.Key = key
	if err := p.broker.Publish(topic, e); err != nil {
		p.logger.Warn("failed to publish event", "topic", topic, "key", key, "error", err)
	}
}
