package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/LubangaD/lorowandatapipiline/internal/config"
	"github.com/LubangaD/lorowandatapipiline/internal/domain"
)

// drainWait bounds how long ExtractBatch waits for additional messages once
// it has at least one, keeping batches snappy under light traffic.
const drainWait = 100 * time.Millisecond

// Reader consumes raw telemetry from the source topic. It implements
// pipeline.BatchExtractor. Offsets are committed explicitly through each
// event's Commit callback, after the pipeline has persisted the reading.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a Kafka consumer for the configured source topic. The
// collector keys messages by device_id, so one device's readings stay on one
// partition and arrive in order.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaSourceTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &Reader{reader: r, logger: logger}
}

// ExtractBatch blocks for the first available message, then drains whatever
// else is immediately available up to batchSize.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	events := make([]domain.RawEvent, 0, batchSize)

	for len(events) < batchSize {
		fetchCtx := ctx
		var cancel context.CancelFunc
		if len(events) > 0 {
			fetchCtx, cancel = context.WithTimeout(ctx, drainWait)
		}

		msg, err := r.reader.FetchMessage(fetchCtx)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			if len(events) > 0 && (errors.Is(err, context.DeadlineExceeded) || ctx.Err() == nil) {
				break
			}
			return nil, err
		}

		event := mapMessageToRawEvent(msg)
		event.Commit = func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, msg)
		}
		events = append(events, event)
	}

	return events, nil
}

// mapMessageToRawEvent converts a Kafka message into the domain raw event.
// The commit callback is attached by the reader.
func mapMessageToRawEvent(msg kafkago.Message) domain.RawEvent {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawEvent{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}

func (r *Reader) Close() error {
	return r.reader.Close()
}
