package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/LubangaD/lorowandatapipiline/internal/domain"
)

// shardItem pairs a raw event with its decoded reading so the shard can
// commit the offset once the reading's sink writes are done.
type shardItem struct {
	raw     domain.RawEvent
	reading domain.SensorReading
}

// deviceState is everything the pipeline tracks for one device. Owned
// exclusively by the shard the device hashes to; no locking needed.
type deviceState struct {
	history *domain.DeviceHistory

	// accs holds the open day accumulators keyed by date. Around a day
	// boundary two can be open at once: the old day stays open until the
	// watermark passes its end plus the lateness window.
	accs map[string]*domain.DayAccumulator

	// watermark is the newest event time seen for the device. A day-date is
	// finalized once the watermark passes its midnight plus the lateness
	// window; readings behind the watermark by more than the window are
	// flagged late.
	watermark time.Time

	// lastFinalized is the most recent date (ISO key, so lexically ordered)
	// already closed for this device. Late readings for it or earlier days
	// are validated and persisted but no longer aggregated.
	lastFinalized string

	// baseline is the trailing window of finalized aggregates feeding the
	// anomaly scorer, oldest first. Lazily rehydrated from the sink.
	baseline       []domain.DailyAggregate
	baselineLoaded bool
}

// shard owns the state of every device that hashes to it.
type shard struct {
	id      int
	p       *Pipeline
	devices map[string]*deviceState
}

func newShard(id int, p *Pipeline) *shard {
	return &shard{id: id, p: p, devices: make(map[string]*deviceState)}
}

func (s *shard) device(id string) *deviceState {
	st, ok := s.devices[id]
	if !ok {
		st = &deviceState{
			history: domain.NewDeviceHistory(s.p.opts.HistoryDepth),
			accs:    make(map[string]*domain.DayAccumulator),
		}
		s.devices[id] = st
	}
	return st
}

// process handles the shard's slice of a batch in arrival order. Returns the
// number of readings that received a verdict.
func (s *shard) process(ctx context.Context, items []shardItem) int {
	processed := 0
	for _, item := range items {
		if ctx.Err() != nil {
			// Context gone; leave remaining offsets uncommitted so the
			// messages are redelivered after restart.
			return processed
		}
		if s.handleReading(ctx, item) {
			processed++
		}
	}
	return processed
}

// handleReading runs one reading through dedup, validation, persistence, and
// aggregation, then commits its offset. Returns false when the reading was
// dropped as a duplicate.
func (s *shard) handleReading(ctx context.Context, item shardItem) bool {
	r := item.reading
	st := s.device(r.DeviceID)
	opts := s.p.opts

	// Exact duplicate delivery of a device+timestamp sample. Redelivery can
	// replay a reading after newer ones have arrived, so membership is
	// checked against the whole retained window, not just the newest entry;
	// counting the replay again would inflate the open day's accumulator.
	if st.history.Contains(r.Timestamp) {
		s.p.metrics.DuplicatesDropped.Inc()
		s.p.commitOffset(ctx, item.raw)
		return false
	}

	last := st.history.Last()

	// Per-device ordering normally comes from Kafka partitioning by
	// device_id, so an out-of-order arrival means the upstream replayed or
	// reshuffled; "previous reading" is then ill-defined and the
	// history-dependent checks report not_applicable.
	prev := last
	outOfOrder := last != nil && r.Timestamp.Before(last.Timestamp)
	if outOfOrder {
		prev = nil
	}
	late := outOfOrder ||
		(!st.watermark.IsZero() && r.Timestamp.Before(st.watermark.Add(-opts.LatenessWindow)))

	verdict := domain.Validate(r, prev, opts.Thresholds)
	if late {
		verdict.MarkLate()
		s.p.metrics.LateReadings.Inc()
	}

	for _, name := range verdict.FailedChecks {
		s.p.metrics.CheckFailures.WithLabelValues(name).Inc()
	}
	for _, name := range verdict.WarningChecks {
		s.p.metrics.CheckWarnings.WithLabelValues(name).Inc()
	}
	if !verdict.Valid {
		s.p.metrics.ReadingsRejected.Inc()
	}

	date := domain.DateKey(r.Timestamp, opts.Location)

	// Persist before aggregating so the audit trail never lags the
	// aggregates. Retry budget exhaustion is surfaced per record and must
	// not stall the device's partition.
	if err := s.p.sink.UpsertCleanReading(ctx, domain.NewCleanReading(r, verdict)); err != nil {
		s.p.logger.Error("clean reading write failed permanently",
			"error", err, "reading_id", r.ReadingID, "device_id", r.DeviceID)
	}
	if err := s.p.sink.AppendAuditRecord(ctx, domain.NewAuditRecord(r, verdict, date)); err != nil {
		s.p.logger.Error("audit record write failed permanently",
			"error", err, "reading_id", r.ReadingID, "device_id", r.DeviceID)
	}

	// Aggregate valid readings unless their day was already finalized; a
	// reading can only miss its day by arriving past the lateness window,
	// in which case it is already flagged late above.
	if verdict.Valid && date > st.lastFinalized {
		acc, ok := st.accs[date]
		if !ok {
			acc = domain.NewDayAccumulator(r.DeviceID, date, domain.DayStart(r.Timestamp, opts.Location))
			st.accs[date] = acc
			s.p.metrics.OpenAccumulators.Inc()
		}
		acc.Add(r)
	}

	// History tracks what was seen, valid or not. Append keeps the ordering
	// invariant by refusing out-of-order entries.
	st.history.Append(r)

	if r.Timestamp.After(st.watermark) {
		st.watermark = r.Timestamp
	}

	s.closeExpiredDays(ctx, r.DeviceID, st)

	s.p.commitOffset(ctx, item.raw)
	return true
}

// closeExpiredDays finalizes every open day the device's watermark has moved
// past, midnight plus the lateness window. Watermark-driven closing, rather
// than closing on the first reading with a newer date, keeps a day open for
// stragglers around the boundary.
func (s *shard) closeExpiredDays(ctx context.Context, deviceID string, st *deviceState) {
	for date, acc := range st.accs {
		dayEnd := acc.DayStart.AddDate(0, 0, 1)
		if st.watermark.After(dayEnd.Add(s.p.opts.LatenessWindow)) {
			s.finalizeDay(ctx, deviceID, st, date)
		}
	}
}

// finalizeDay closes one device-day: finalize the accumulator, score it
// against the trailing baseline, persist, and optionally republish. A
// device-day with zero valid readings closes without producing an aggregate.
func (s *shard) finalizeDay(ctx context.Context, deviceID string, st *deviceState, date string) {
	acc := st.accs[date]
	delete(st.accs, date)
	s.p.metrics.OpenAccumulators.Dec()
	if date > st.lastFinalized {
		st.lastFinalized = date
	}

	agg, ok := acc.Finalize(s.p.opts.Thresholds)
	if !ok {
		return
	}

	s.ensureBaseline(ctx, deviceID, st)
	agg = s.p.opts.Scorer.Score(agg, st.baseline)

	s.p.metrics.AggregatesFinalized.Inc()
	if agg.IsAnomaly {
		s.p.metrics.AnomaliesDetected.Inc()
	}
	if agg.Degraded {
		s.p.metrics.DegradedDays.Inc()
	}

	if err := s.p.sink.UpsertDailyAggregate(ctx, agg); err != nil {
		s.p.logger.Error("daily aggregate write failed permanently",
			"error", err, "device_id", deviceID, "date", date)
	}
	if s.p.publisher != nil {
		if err := s.p.publisher.PublishAggregate(ctx, agg); err != nil {
			s.p.logger.Warn("aggregate publish failed",
				"error", err, "device_id", deviceID, "date", date)
		}
	}

	st.baseline = domain.AppendTrailing(st.baseline, agg, s.p.opts.Scorer.WindowDays)

	s.p.logger.Info("device-day finalized",
		"device_id", deviceID,
		"date", date,
		"valid_count", agg.ValidCount,
		"degraded", agg.Degraded,
		"anomaly_score", agg.AnomalyScore,
		"is_anomaly", agg.IsAnomaly,
	)
}

// ensureBaseline lazily rehydrates the device's trailing aggregates from the
// sink. A failed load is logged and retried at the next finalization; until
// then scoring runs on whatever baseline exists, and too short a baseline
// scores as not-anomalous.
func (s *shard) ensureBaseline(ctx context.Context, deviceID string, st *deviceState) {
	if st.baselineLoaded {
		return
	}
	window := s.p.opts.Scorer.WindowDays
	prior, err := s.p.sink.RecentAggregates(ctx, deviceID, window)
	if err != nil {
		s.p.logger.Warn("baseline rehydration failed", "error", err, "device_id", deviceID)
		return
	}
	// Merge: anything finalized since startup is already in st.baseline, and
	// a day finalized before a retried load succeeds shows up on both sides.
	// Dedupe by date so the merged window never double-counts a day.
	if len(st.baseline) > 0 {
		have := make(map[string]bool, len(st.baseline))
		for _, agg := range st.baseline {
			have[agg.Date] = true
		}
		merged := prior[:0]
		for _, agg := range prior {
			if !have[agg.Date] {
				merged = append(merged, agg)
			}
		}
		prior = append(merged, st.baseline...)
		if len(prior) > window {
			prior = prior[len(prior)-window:]
		}
	}
	st.baseline = prior
	st.baselineLoaded = true
}

// flush finalizes every open day on this shard, devices and dates in
// deterministic order.
func (s *shard) flush(ctx context.Context) {
	deviceIDs := make([]string, 0, len(s.devices))
	for id := range s.devices {
		deviceIDs = append(deviceIDs, id)
	}
	sort.Strings(deviceIDs)

	for _, id := range deviceIDs {
		st := s.devices[id]
		dates := make([]string, 0, len(st.accs))
		for date := range st.accs {
			dates = append(dates, date)
		}
		sort.Strings(dates)
		for _, date := range dates {
			s.finalizeDay(ctx, id, st, date)
		}
	}
}
