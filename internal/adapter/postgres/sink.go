// Package postgres persists QC output to the relational store. Schema
// management lives with the deployment tooling; this adapter assumes the
// clean_readings, qc_audit, and daily_aggregates tables exist.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LubangaD/lorowandatapipiline/internal/domain"
)

// Sink writes clean readings, audit records, and daily aggregates to
// Postgres. All writes are idempotent upserts so Kafka redelivery never
// duplicates rows. It implements pipeline.Sink.
type Sink struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewSink connects to Postgres and verifies the connection.
func NewSink(ctx context.Context, url string, logger *slog.Logger) (*Sink, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Sink{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Sink) Close() {
	s.pool.Close()
}

// UpsertCleanReading writes one quality-controlled reading, keyed by
// reading_id.
func (s *Sink) UpsertCleanReading(ctx context.Context, r domain.CleanReading) error {
	const query = `
INSERT INTO clean_readings (
	reading_id, device_id, ts, valid,
	uv_index, rain_gauge, wind_speed, air_humidity, peak_wind_gust,
	air_temperature, light_intensity, rain_accumulation,
	barometric_pressure, wind_direction_sensor,
	processing_timestamp
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
)
ON CONFLICT (reading_id) DO UPDATE SET
	valid = EXCLUDED.valid,
	processing_timestamp = EXCLUDED.processing_timestamp`

	_, err := s.pool.Exec(ctx, query,
		r.ReadingID, r.DeviceID, r.Timestamp, r.Valid,
		r.UVIndex, r.RainGauge, r.WindSpeed, r.AirHumidity, r.PeakWindGust,
		r.AirTemperature, r.LightIntensity, r.RainAccumulation,
		r.BarometricPressure, r.WindDirection,
		r.ProcessingTimestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert clean reading %s: %w", r.ReadingID, err)
	}
	return nil
}

// AppendAuditRecord writes one verdict to the audit trail. The trail is
// append-only; a replayed reading_id is skipped rather than rewritten.
func (s *Sink) AppendAuditRecord(ctx context.Context, a domain.AuditRecord) error {
	checks, err := json.Marshal(a.Checks)
	if err != nil {
		return fmt.Errorf("serialize check outcomes for %s: %w", a.ReadingID, err)
	}

	const query = `
INSERT INTO qc_audit (
	reading_id, device_id, date, ts,
	uv_index, rain_gauge, wind_speed, air_humidity, peak_wind_gust,
	air_temperature, light_intensity, rain_accumulation,
	barometric_pressure, wind_direction_sensor,
	checks, time_gap_minutes, tair_step,
	valid, failed_checks, warning_checks, late,
	processing_timestamp
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
	$15, $16, $17, $18, $19, $20, $21, $22
)
ON CONFLICT (reading_id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		a.ReadingID, a.DeviceID, a.Date, a.Timestamp,
		a.UVIndex, a.RainGauge, a.WindSpeed, a.AirHumidity, a.PeakWindGust,
		a.AirTemperature, a.LightIntensity, a.RainAccumulation,
		a.BarometricPressure, a.WindDirection,
		checks, a.TimeGapMinutes, a.TairStep,
		a.Valid, a.FailedChecks, a.WarningChecks, a.Late,
		a.ProcessingTimestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit record %s: %w", a.ReadingID, err)
	}
	return nil
}

// UpsertDailyAggregate writes one finalized device-day, keyed by
// (device_id, date).
func (s *Sink) UpsertDailyAggregate(ctx context.Context, agg domain.DailyAggregate) error {
	const query = `
INSERT INTO daily_aggregates (
	device_id, date, date_epoch,
	maxtemp, mintemp, avgtemp, maxwind, totalprecip, avghumidity,
	rain_occurred, rain_chance,
	valid_count, valid_fraction, degraded, qc_rain_daily,
	anomaly_score, is_anomaly,
	processing_timestamp
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
)
ON CONFLICT (device_id, date) DO UPDATE SET
	date_epoch = EXCLUDED.date_epoch,
	maxtemp = EXCLUDED.maxtemp,
	mintemp = EXCLUDED.mintemp,
	avgtemp = EXCLUDED.avgtemp,
	maxwind = EXCLUDED.maxwind,
	totalprecip = EXCLUDED.totalprecip,
	avghumidity = EXCLUDED.avghumidity,
	rain_occurred = EXCLUDED.rain_occurred,
	rain_chance = EXCLUDED.rain_chance,
	valid_count = EXCLUDED.valid_count,
	valid_fraction = EXCLUDED.valid_fraction,
	degraded = EXCLUDED.degraded,
	qc_rain_daily = EXCLUDED.qc_rain_daily,
	anomaly_score = EXCLUDED.anomaly_score,
	is_anomaly = EXCLUDED.is_anomaly,
	processing_timestamp = EXCLUDED.processing_timestamp`

	_, err := s.pool.Exec(ctx, query,
		agg.DeviceID, agg.Date, agg.DateEpoch,
		agg.MaxTemp, agg.MinTemp, agg.AvgTemp, agg.MaxWind, agg.TotalPrecip, agg.AvgHumidity,
		agg.RainOccurred, agg.RainChance,
		agg.ValidCount, agg.ValidFraction, agg.Degraded, string(agg.RainDailyQC),
		agg.AnomalyScore, agg.IsAnomaly,
		agg.ProcessingTimestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert daily aggregate %s/%s: %w", agg.DeviceID, agg.Date, err)
	}
	return nil
}

// RecentAggregates returns up to n of the device's most recent finalized
// aggregates, oldest first.
func (s *Sink) RecentAggregates(ctx context.Context, deviceID string, n int) ([]domain.DailyAggregate, error) {
	const query = `
SELECT
	device_id, date, date_epoch,
	maxtemp, mintemp, avgtemp, maxwind, totalprecip, avghumidity,
	rain_occurred, rain_chance,
	valid_count, valid_fraction, degraded, qc_rain_daily,
	anomaly_score, is_anomaly,
	processing_timestamp
FROM daily_aggregates
WHERE device_id = $1
ORDER BY date DESC
LIMIT $2`

	rows, err := s.pool.Query(ctx, query, deviceID, n)
	if err != nil {
		return nil, fmt.Errorf("load recent aggregates for %s: %w", deviceID, err)
	}
	defer rows.Close()

	var out []domain.DailyAggregate
	for rows.Next() {
		var agg domain.DailyAggregate
		var rainDaily string
		if err := rows.Scan(
			&agg.DeviceID, &agg.Date, &agg.DateEpoch,
			&agg.MaxTemp, &agg.MinTemp, &agg.AvgTemp, &agg.MaxWind, &agg.TotalPrecip, &agg.AvgHumidity,
			&agg.RainOccurred, &agg.RainChance,
			&agg.ValidCount, &agg.ValidFraction, &agg.Degraded, &rainDaily,
			&agg.AnomalyScore, &agg.IsAnomaly,
			&agg.ProcessingTimestamp,
		); err != nil {
			return nil, fmt.Errorf("scan aggregate row for %s: %w", deviceID, err)
		}
		agg.RainDailyQC = domain.Outcome(rainDaily)
		out = append(out, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read aggregate rows for %s: %w", deviceID, err)
	}

	// Newest-first from the query; the scorer wants oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
