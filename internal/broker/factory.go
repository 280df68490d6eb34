package broker

import "log/slog"

// Transport bundles a publisher with a way to open consumers.
type Transport struct {
	Publisher Publisher
	open      func(topic string) (Consumer, error)
}

// Consumer opens a consumer on topic.
func (t *Transport) Consumer(topic string) (Consumer, error) {
	return t.open(topic)
}

// Close releases the publisher.
func (t *Transport) Close() error {
	return t.Publisher.Close()
}

// NewTransport returns a Kafka transport when brokers are configured and an
// in-process one otherwise.
func NewTransport(cfg KafkaConfig) (*Transport, error) {
	if len(cfg.Brokers) == 0 {
		slog.Info("broker_transport", slog.String("kind", "memory"))
		mem := NewMemory(DefaultMemoryBuffer)
		return &Transport{
			Publisher: mem,
			open:      func(topic string) (Consumer, error) { return mem.Consumer(topic), nil },
		}, nil
	}

	pub, err := NewKafkaPublisher(cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("broker_transport",
		slog.String("kind", "kafka"),
		slog.Any("brokers", cfg.Brokers),
		slog.String("group", cfg.GroupID))
	return &Transport{
		Publisher: pub,
		open: func(topic string) (Consumer, error) {
			return NewKafkaConsumer(cfg, topic)
		},
	}, nil
}
