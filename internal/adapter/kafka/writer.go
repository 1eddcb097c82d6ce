// Package kafka publishes per-borough combined summaries for downstream
// consumers. Publishing is optional; the relational store remains the primary
// output of a run.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/stoopdata/nyc-collision-etl/internal/config"
	"github.com/stoopdata/nyc-collision-etl/internal/domain"
)

// Writer produces borough summary messages to a Kafka topic.
// It implements pipeline.SummaryPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured summary topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishSummaries serializes and publishes all borough summaries in a single
// WriteMessages call.
func (w *Writer) PublishSummaries(ctx context.Context, summaries []domain.CombinedSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	generatedAt := domain.Now()
	msgs := make([]kafkago.Message, len(summaries))
	for i := range summaries {
		msg, err := serializeToMessage(summaries[i], generatedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	w.logger.Info("published borough summaries", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a CombinedSummary into a Kafka message keyed by
// borough.
func serializeToMessage(summary domain.CombinedSummary, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize borough summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(summary.Borough),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "borough", Value: []byte(summary.Borough)},
			{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
		},
	}, nil
}
