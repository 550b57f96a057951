package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/alert"
)

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes each alert as one message keyed by session id, so a
// session's alerts land on one partition in order.
type Kafka struct {
	w     MessageWriter
	topic string
}

// NewKafka creates a Kafka publisher.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka sink: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka sink: topic is required")
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			slog.Error(fmt.Sprintf(msg, args...), "component", "kafka-sink")
		}),
	}
	slog.Info("kafka sink initialized", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return NewKafkaWithWriter(w, cfg.Topic), nil
}

// NewKafkaWithWriter wraps an existing writer.
func NewKafkaWithWriter(w MessageWriter, topic string) *Kafka {
	return &Kafka{w: w, topic: topic}
}

func (s *Kafka) Name() string { return "kafka" }

func (s *Kafka) Publish(ctx context.Context, alerts []alert.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	now := time.Now()
	msgs := make([]kafka.Message, 0, len(alerts))
	for _, a := range alerts {
		value, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("kafka sink: marshal alert: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(a.SessionID),
			Value: value,
			Time:  now,
			Headers: []kafka.Header{
				{Key: "rule_id", Value: []byte(a.RuleID)},
				{Key: "severity", Value: []byte(a.Severity)},
			},
		})
	}
	err := s.w.WriteMessages(ctx, msgs...)
	observe(s.Name(), len(alerts), err)
	if err != nil {
		return fmt.Errorf("kafka sink: write to %s: %w", s.topic, err)
	}
	return nil
}

func (s *Kafka) Close() error { return s.w.Close() }
