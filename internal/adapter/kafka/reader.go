package kafka

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/storm-radar-loop/internal/config"
	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Reader consumes commands from a Kafka topic as part of a consumer group.
// It implements pipeline.Extractor.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a Kafka consumer for the configured commands topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaCommandsTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	return &Reader{reader: r, logger: logger}
}

// Extract blocks until the next message arrives. The offset is committed
// only when the returned message's Commit is called.
func (r *Reader) Extract(ctx context.Context) (domain.InboundMessage, error) {
	msg, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return domain.InboundMessage{}, err
	}
	in := mapMessageToInbound(msg)
	in.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return in, nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

func mapMessageToInbound(msg kafkago.Message) domain.InboundMessage {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.InboundMessage{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
