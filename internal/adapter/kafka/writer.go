package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/crop-advisor-service/internal/config"
	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes recommendations to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured recommendation topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes every recommendation in the batch and writes them in a
// single WriteMessages call. Failed crops are not published.
func (w *Writer) Publish(ctx context.Context, batch domain.BatchResult) error {
	if len(batch.Recommendations) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(batch.Recommendations))
	for i := range batch.Recommendations {
		msg, err := serializeToMessage(batch.Recommendations[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka: write %d recommendations for %s: %w", len(msgs), batch.Place.Key(), err)
	}
	w.logger.Debug("recommendations published", "place", batch.Place.Key(), "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Recommendation into a Kafka message keyed by crop ID.
func serializeToMessage(rec domain.Recommendation) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize recommendation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Crop.ID().String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "place", Value: []byte(rec.Place.Key())},
			{Key: "recommended", Value: []byte(strconv.FormatBool(rec.Recommended))},
			{Key: "confidence", Value: []byte(strings.ToLower(rec.Confidence.String()))},
			{Key: "generated_at", Value: []byte(rec.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
