package pipeline

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LubangaD/lorowandatapipiline/internal/domain"
	"github.com/LubangaD/lorowandatapipiline/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Sink persists QC output. All writes are idempotent: clean readings and
// audit records are keyed by reading_id, aggregates by (device_id, date), so
// at-least-once redelivery never duplicates rows.
type Sink interface {
	UpsertCleanReading(ctx context.Context, r domain.CleanReading) error
	AppendAuditRecord(ctx context.Context, a domain.AuditRecord) error
	UpsertDailyAggregate(ctx context.Context, agg domain.DailyAggregate) error

	// RecentAggregates returns up to n of the device's most recent finalized
	// aggregates, oldest first. Used to rehydrate anomaly baselines after a
	// restart.
	RecentAggregates(ctx context.Context, deviceID string, n int) ([]domain.DailyAggregate, error)
}

// AggregatePublisher republishes finalized aggregates for downstream
// consumers. Optional; a nil publisher disables it.
type AggregatePublisher interface {
	PublishAggregate(ctx context.Context, agg domain.DailyAggregate) error
}

// Options carries the QC policy the pipeline applies.
type Options struct {
	Thresholds     domain.Thresholds
	Location       *time.Location
	LatenessWindow time.Duration
	HistoryDepth   int
	WorkerCount    int
	BatchSize      int
	Scorer         *domain.Scorer
}

// Pipeline runs the streaming QC loop: extract raw events, decode, validate
// against per-device history, aggregate valid readings into device-days, and
// persist everything through the sink.
//
// Per-device state lives in one of WorkerCount shards selected by hashing
// device_id. Within a batch each shard runs on its own goroutine and
// processes its events in arrival order, so a device's gap and step checks
// and accumulator updates are never raced.
type Pipeline struct {
	extractor BatchExtractor
	sink      Sink
	publisher AggregatePublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options

	shards []*shard
	ready  atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, sink Sink, publisher AggregatePublisher, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.WorkerCount < 1 {
		opts.WorkerCount = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}

	p := &Pipeline{
		extractor: e,
		sink:      sink,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
	p.shards = make([]*shard, opts.WorkerCount)
	for i := range p.shards {
		p.shards[i] = newShard(i, p)
	}
	return p
}

// CheckReadiness returns nil if the pipeline has processed at least one
// reading, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any readings yet")
	}
	return nil
}

// Run executes the QC loop until the context is cancelled, then flushes all
// open device-day accumulators.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started",
		"workers", p.opts.WorkerCount,
		"batch_size", p.opts.BatchSize,
		"lateness_window", p.opts.LatenessWindow,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Keeps retry storms short while avoiding tight loops during Kafka outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			p.Flush(context.WithoutCancel(ctx))
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			p.Flush(context.WithoutCancel(ctx))
			return nil
		}
	}
}

// Flush finalizes every open device-day across all shards. Called on
// shutdown; the explicit end-of-stream flush closes days the watermark has
// not reached yet.
func (p *Pipeline) Flush(ctx context.Context) {
	p.logger.Info("flushing open aggregates")
	for _, s := range p.shards {
		s.flush(ctx)
	}
}

// processBatch runs one extract-validate-aggregate-persist cycle. Returns
// false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.opts.BatchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.ReadingsConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	processed := p.dispatchBatch(ctx, rawBatch)

	if processed > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return ctx.Err() == nil
}

// dispatchBatch decodes the batch and fans it out to the shards. Events for
// the same device always land on the same shard and keep their arrival
// order; shards run concurrently. Returns the number of readings processed.
func (p *Pipeline) dispatchBatch(ctx context.Context, rawBatch []domain.RawEvent) int {
	perShard := make([][]shardItem, len(p.shards))

	for _, raw := range rawBatch {
		reading, err := domain.DecodeReading(raw.Value)
		if err != nil {
			// Malformed payloads are dropped, never retried.
			p.logger.Warn("decode failed, dropping payload",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.DecodeErrors.Inc()
			p.commitOffset(ctx, raw)
			continue
		}

		i := p.shardFor(reading.DeviceID)
		perShard[i] = append(perShard[i], shardItem{raw: raw, reading: reading})
	}

	var processed atomic.Int64
	var wg sync.WaitGroup
	for i, items := range perShard {
		if len(items) == 0 {
			continue
		}
		wg.Add(1)
		go func(s *shard, items []shardItem) {
			defer wg.Done()
			processed.Add(int64(s.process(ctx, items)))
		}(p.shards[i], items)
	}
	wg.Wait()

	return int(processed.Load())
}

func (p *Pipeline) shardFor(deviceID string) int {
	h := fnv.New32a()
	h.Write([]byte(deviceID))
	return int(h.Sum32() % uint32(len(p.shards)))
}

// backoffOrStop checks for context cancellation, sleeps with the current
// backoff, and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
