package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/darkden-lab/ozone/internal/logging"
)

// DefaultConsumerGroup is used when KafkaConfig leaves the group empty.
const DefaultConsumerGroup = "ozone-gateway"

const severityHeader = "ozone-severity"

type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	// TopicPrefix is prepended to every gateway topic on the cluster, so
	// "request.completed" is written to "ozone.request.completed".
	TopicPrefix string
	Logger      *slog.Logger
}

// KafkaBroker implements Broker on segmentio/kafka-go. Messages are keyed by
// Event.Key (the plugin for plugin and request events) and hashed onto
// partitions, so one plugin's events are consumed in publish order. Each
// subscription gets its own reader in the shared consumer group.
type KafkaBroker struct {
	config  KafkaConfig
	logger  *slog.Logger
	writer  *kafka.Writer
	mu      sync.Mutex
	readers map[string]*kafkaSubscription
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
}

type kafkaSubscription struct {
	id      string
	topic   string
	reader  *kafka.Reader
	handler Handler
	cancel  context.CancelFunc
}

func NewKafkaBroker(config KafkaConfig) (*KafkaBroker, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker address is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = DefaultConsumerGroup
	}

	ctx, cancel := context.WithCancel(context.Background())

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &KafkaBroker{
		config:  config,
		logger:  logging.OrDiscard(config.Logger).With("component", "kafka"),
		writer:  writer,
		readers: make(map[string]*kafkaSubscription),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// wireTopic maps a gateway topic to its name on the cluster.
func (b *KafkaBroker) wireTopic(topic string) string {
	return b.config.TopicPrefix + topic
}

// messageKey picks the partition key: the event key when set, the topic
// otherwise, so unkeyed events of one topic still stay together.
func messageKey(topic string, event Event) []byte {
	if event.Key != "" {
		return []byte(event.Key)
	}
	return []byte(topic)
}

func (b *KafkaBroker) message(topic string, event Event) (kafka.Message, error) {
	if event.Topic == "" {
		event.Topic = topic
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{
		Topic: b.wireTopic(topic),
		Key:   messageKey(topic, event),
		Value: value,
		Headers: []kafka.Header{
			{Key: severityHeader, Value: []byte(event.Severity)},
		},
		Time: event.Timestamp,
	}, nil
}

func (b *KafkaBroker) Publish(topic string, event Event) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	msg, err := b.message(topic, event)
	if err != nil {
		return err
	}
	if err := b.writer.WriteMessages(b.ctx, msg); err != nil {
		return fmt.Errorf("write %s to kafka: %w", msg.Topic, err)
	}
	return nil
}

func (b *KafkaBroker) Subscribe(topic string, handler Handler) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", ErrClosed
	}

	id := uuid.New().String()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.config.Brokers,
		Topic:    b.wireTopic(topic),
		GroupID:  b.config.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})

	subCtx, subCancel := context.WithCancel(b.ctx)
	sub := &kafkaSubscription{
		id:      id,
		topic:   topic,
		reader:  reader,
		handler: handler,
		cancel:  subCancel,
	}
	b.readers[id] = sub

	go b.consumeLoop(subCtx, sub)

	return id, nil
}

// Close stops every reader and flushes the writer.
func (b *KafkaBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*kafkaSubscription, 0, len(b.readers))
	for _, sub := range b.readers {
		subs = append(subs, sub)
	}
	b.readers = map[string]*kafkaSubscription{}
	b.mu.Unlock()

	var errs []string
	for _, sub := range subs {
		sub.cancel()
		if err := sub.reader.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("reader %s: %v", sub.topic, err))
		}
	}
	// The writer flushes pending batches before the context is cancelled.
	if err := b.writer.Close(); err != nil {
		errs = append(errs, "writer: "+err.Error())
	}
	b.cancel()
	if len(errs) > 0 {
		return fmt.Errorf("closing kafka broker: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (b *KafkaBroker) consumeLoop(ctx context.Context, sub *kafkaSubscription) {
	logger := b.logger.With("subscription", sub.id, "topic", sub.topic)
	for {
		msg, err := sub.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("kafka consumer error", "error", err)
			continue
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Warn("dropping undecodable event", "offset", msg.Offset, "error", err)
			continue
		}
		if event.Topic == "" {
			event.Topic = sub.topic
		}

		sub.handler(event)
	}
}
