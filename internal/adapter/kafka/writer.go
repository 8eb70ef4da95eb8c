// Package kafka publishes heatmap notifications to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces heatmap-rendered events.
// It implements pipeline.Notifier.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Notify publishes one event keyed by city, so a city's events stay ordered.
func (w *Writer) Notify(ctx context.Context, event domain.HeatmapRendered) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish heatmap event: %w", err)
	}
	w.logger.Debug("heatmap event published", "city", event.City, "run_id", event.RunID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a HeatmapRendered event into a Kafka message.
func serializeToMessage(event domain.HeatmapRendered) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize heatmap event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.City),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte("heatmap.rendered")},
			{Key: "run_id", Value: []byte(event.RunID)},
			{Key: "rendered_at", Value: []byte(event.RenderedAt.Format(time.RFC3339))},
		},
	}, nil
}

// DecodeMessage parses a message produced by Writer.
func DecodeMessage(msg kafkago.Message) (domain.HeatmapRendered, error) {
	var event domain.HeatmapRendered
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return domain.HeatmapRendered{}, fmt.Errorf("decode heatmap event: %w", err)
	}
	return event, nil
}
