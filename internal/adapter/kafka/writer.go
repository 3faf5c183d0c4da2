package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/LubangaD/lorowandatapipiline/internal/config"
	"github.com/LubangaD/lorowandatapipiline/internal/domain"
)

// Writer republishes finalized daily aggregates to a Kafka topic for
// downstream consumers (forecasting, dashboards). It implements
// pipeline.AggregatePublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured aggregate topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAggregateTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishAggregate serializes one finalized aggregate, keyed by
// device_id|date so replays overwrite rather than duplicate on compacted
// topics.
func (w *Writer) PublishAggregate(ctx context.Context, agg domain.DailyAggregate) error {
	msg, err := serializeToMessage(agg)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

// serializeToMessage marshals a DailyAggregate into a Kafka message.
func serializeToMessage(agg domain.DailyAggregate) (kafkago.Message, error) {
	data, err := json.Marshal(agg)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize daily aggregate: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(agg.DeviceID + "|" + agg.Date),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "device_id", Value: []byte(agg.DeviceID)},
			{Key: "date", Value: []byte(agg.Date)},
			{Key: "is_anomaly", Value: []byte(strconv.FormatBool(agg.IsAnomaly))},
			{Key: "processed_at", Value: []byte(agg.ProcessingTimestamp.Format(time.RFC3339))},
		},
	}, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}
