package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	apperrors "github.com/Creeper5261/Rikki-sub002/internal/errors"
)

// KafkaConfig configures the Kafka transport.
type KafkaConfig struct {
	Brokers []string
	GroupID string

	// WriteTimeout bounds a single publish.
	WriteTimeout time.Duration
}

// KafkaPublisher writes messages with a hash balancer so one key always
// lands on the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher. Connections are opened lazily.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "kafka brokers are required", nil)
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			WriteTimeout:           cfg.WriteTimeout,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: value})
	if err != nil {
		return apperrors.New(apperrors.ErrCodeBrokerUnavailable, "kafka publish to "+topic+" failed", err)
	}
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads one topic as a member of a consumer group. Offsets
// are committed after the handler returns, so delivery is at least once.
type KafkaConsumer struct {
	reader *kafka.Reader
	topic  string
}

var _ Consumer = (*KafkaConsumer)(nil)

// NewKafkaConsumer creates a group consumer for topic.
func NewKafkaConsumer(cfg KafkaConfig, topic string) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "kafka brokers are required", nil)
	}
	if cfg.GroupID == "" {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "kafka group id is required", nil)
	}
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       topic,
			MinBytes:    1,
			MaxBytes:    10e6,
			StartOffset: kafka.FirstOffset,
		}),
		topic: topic,
	}, nil
}

// Consume implements Consumer.
func (c *KafkaConsumer) Consume(ctx context.Context, handler Handler) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return ErrClosed
			}
			return fmt.Errorf("kafka fetch from %s: %w", c.topic, err)
		}

		msg := Message{Topic: m.Topic, Key: m.Key, Value: m.Value}
		if err := handler(ctx, msg); err != nil {
			slog.Warn("broker_handler_failed",
				slog.String("topic", m.Topic),
				slog.Int("partition", m.Partition),
				slog.Int64("offset", m.Offset),
				slog.String("error", err.Error()))
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka commit on %s: %w", c.topic, err)
		}
	}
}

// Close leaves the group.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
