package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/LubangaD/lorowandatapipiline/internal/domain"
	"github.com/LubangaD/lorowandatapipiline/internal/observability"
)

// RetrySink decorates a Sink with bounded exponential-backoff retries per
// operation. Exhausting the budget returns the last error wrapped with the
// operation name; the caller decides how to surface it.
type RetrySink struct {
	inner      Sink
	maxRetries uint64
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewRetrySink wraps a sink with maxRetries retries per write.
func NewRetrySink(inner Sink, maxRetries int, logger *slog.Logger, metrics *observability.Metrics) *RetrySink {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetrySink{
		inner:      inner,
		maxRetries: uint64(maxRetries),
		logger:     logger,
		metrics:    metrics,
	}
}

func (s *RetrySink) UpsertCleanReading(ctx context.Context, r domain.CleanReading) error {
	return s.retry(ctx, "upsert clean reading", func() error {
		return s.inner.UpsertCleanReading(ctx, r)
	})
}

func (s *RetrySink) AppendAuditRecord(ctx context.Context, a domain.AuditRecord) error {
	return s.retry(ctx, "append audit record", func() error {
		return s.inner.AppendAuditRecord(ctx, a)
	})
}

func (s *RetrySink) UpsertDailyAggregate(ctx context.Context, agg domain.DailyAggregate) error {
	return s.retry(ctx, "upsert daily aggregate", func() error {
		return s.inner.UpsertDailyAggregate(ctx, agg)
	})
}

func (s *RetrySink) RecentAggregates(ctx context.Context, deviceID string, n int) ([]domain.DailyAggregate, error) {
	var out []domain.DailyAggregate
	err := s.retry(ctx, "load recent aggregates", func() error {
		var err error
		out, err = s.inner.RecentAggregates(ctx, deviceID, n)
		return err
	})
	return out, err
}

func (s *RetrySink) retry(ctx context.Context, op string, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	err := backoff.RetryNotify(fn,
		backoff.WithMaxRetries(backoff.WithContext(policy, ctx), s.maxRetries),
		func(err error, next time.Duration) {
			s.metrics.SinkRetries.Inc()
			s.logger.Warn("sink write retrying", "op", op, "error", err, "next_attempt_in", next)
		},
	)
	if err != nil {
		s.metrics.SinkWriteFailures.Inc()
		return fmt.Errorf("%s: retries exhausted: %w", op, err)
	}
	return nil
}
