package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"salon-discovery/internal/config"
	"salon-discovery/internal/domain"
	"salon-discovery/internal/observability"
)

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

// Writer produces routed selections to a Kafka topic.
// It implements domain.SelectionPublisher.
type Writer struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured handoff topic.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaHandoffTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, metrics: metrics, logger: logger}
}

// PublishSelection serializes and publishes a single selection. Messages
// are keyed by session so one session's selections stay in partition order.
func (w *Writer) PublishSelection(ctx context.Context, sel domain.Selection) error {
	msg, err := serializeToMessage(sel)
	if err != nil {
		w.metrics.HandoffPublishes.WithLabelValues(outcomeError).Inc()
		return err
	}

	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		w.metrics.HandoffPublishes.WithLabelValues(outcomeError).Inc()
		return err
	}

	w.metrics.HandoffPublishes.WithLabelValues(outcomeSuccess).Inc()
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Selection into a Kafka message.
func serializeToMessage(sel domain.Selection) (kafkago.Message, error) {
	data, err := json.Marshal(sel)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize selection: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(sel.SessionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "route", Value: []byte(sel.Route)},
			{Key: "occurred_at", Value: []byte(sel.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
