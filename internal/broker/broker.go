// Package broker moves file-change and scan messages between producers and
// the indexing worker.
//
// Kafka is the production transport. Memory is an in-process stand-in used
// when no brokers are configured and in tests.
package broker

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed publisher or consumer.
var ErrClosed = errors.New("broker closed")

// Message is one record on a topic.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Publisher sends messages to topics.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
	Close() error
}

// Handler processes one message. A returned error is logged by the consumer
// and the message is still acknowledged.
type Handler func(ctx context.Context, msg Message) error

// Consumer delivers the messages of one topic to a handler.
type Consumer interface {
	// Consume blocks until ctx is done or the consumer is closed.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}
