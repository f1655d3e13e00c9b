// Package kafka publishes classified station snapshots to a sink topic for
// downstream consumers (alerting, widgets). The sink is optional; the
// engine runs fine without brokers configured.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/riverwatch/station-engine/internal/domain"
)

// Writer produces classified stations to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishSnapshot serializes and publishes a refreshed classified snapshot
// in a single WriteMessages call.
func (w *Writer) PublishSnapshot(ctx context.Context, stations []domain.ClassifiedStation) error {
	if len(stations) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(stations))
	for i := range stations {
		msg, err := serializeToMessage(stations[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals one classified station into a Kafka message,
// keyed by station id so a compacted topic retains the latest state per
// station.
func serializeToMessage(s domain.ClassifiedStation) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize classified station: %w", err)
	}

	key := s.StationID
	if key == "" {
		key = s.Name
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(s.Status)},
			{Key: "measured_at", Value: []byte(s.MeasuredAt.Format(time.RFC3339))},
		},
	}, nil
}
