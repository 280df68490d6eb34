package broker

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultMemoryBuffer is the per-topic queue depth of a Memory broker.
const DefaultMemoryBuffer = 1024

// Memory is an in-process broker. Each topic is a buffered queue shared by
// all of its consumers, so a message reaches exactly one of them.
type Memory struct {
	mu     sync.Mutex
	topics map[string]chan Message
	buffer int
	closed chan struct{}
	once   sync.Once
}

var _ Publisher = (*Memory)(nil)

// NewMemory creates a broker whose topic queues hold buffer messages.
func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = DefaultMemoryBuffer
	}
	return &Memory{
		topics: make(map[string]chan Message),
		buffer: buffer,
		closed: make(chan struct{}),
	}
}

func (m *Memory) queue(topic string) chan Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.topics[topic]
	if !ok {
		q = make(chan Message, m.buffer)
		m.topics[topic] = q
	}
	return q
}

// Publish implements Publisher. It blocks while the topic queue is full.
func (m *Memory) Publish(ctx context.Context, topic string, key, value []byte) error {
	msg := Message{
		Topic: topic,
		Key:   append([]byte(nil), key...),
		Value: append([]byte(nil), value...),
	}
	select {
	case <-m.closed:
		return ErrClosed
	default:
	}
	select {
	case m.queue(topic) <- msg:
		return nil
	case <-m.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued messages on topic.
func (m *Memory) Pending(topic string) int {
	return len(m.queue(topic))
}

// Consumer returns a consumer for topic.
func (m *Memory) Consumer(topic string) Consumer {
	return &memoryConsumer{broker: m, topic: topic, done: make(chan struct{})}
}

// Close stops every consumer. Queued messages are dropped.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

type memoryConsumer struct {
	broker *Memory
	topic  string
	done   chan struct{}
	once   sync.Once
}

func (c *memoryConsumer) Consume(ctx context.Context, handler Handler) error {
	q := c.broker.queue(c.topic)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case <-c.broker.closed:
			return nil
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				slog.Warn("broker_handler_failed",
					slog.String("topic", msg.Topic),
					slog.String("error", err.Error()))
			}
		}
	}
}

func (c *memoryConsumer) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
