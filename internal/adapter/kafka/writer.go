// Package kafka adapts kafka-go readers and writers to the pipeline stages.
package kafka

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/sffd-incident-etl/internal/config"
	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces cleaned incidents to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	runID  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic. Every
// message carries a run_id header identifying this producer instance.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, runID: uuid.NewString(), logger: logger}
}

// LoadBatch serializes and publishes incidents in a single WriteMessages call.
// Messages are keyed by incident ID so replays land on the same partition.
func (w *Writer) LoadBatch(ctx context.Context, incidents []domain.Incident) error {
	if len(incidents) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(incidents))
	for i := range incidents {
		msg, err := serializeToMessage(incidents[i], w.runID)
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

// serializeToMessage marshals an incident into a Kafka message. Headers are
// emitted in a fixed order: call_type, processed_at, then run_id when set.
func serializeToMessage(inc domain.Incident, runID string) (kafkago.Message, error) {
	out, err := domain.SerializeIncident(inc)
	if err != nil {
		return kafkago.Message{}, err
	}
	headers := []kafkago.Header{
		{Key: "call_type", Value: []byte(out.Headers["call_type"])},
		{Key: "processed_at", Value: []byte(out.Headers["processed_at"])},
	}
	if runID != "" {
		headers = append(headers, kafkago.Header{Key: "run_id", Value: []byte(runID)})
	}
	return kafkago.Message{Key: out.Key, Value: out.Value, Headers: headers}, nil
}
