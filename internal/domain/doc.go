// Package domain models LoRaWAN weather-station telemetry and the level-1
// quality-control (QC) rules applied to it.
//
// # Data Source
//
// Readings originate from Afrisense LoRaWAN weather stations. The upstream
// collector service polls the vendor API, flattens each sample to JSON
// (reading_id, device_id, processing_timestamp plus the numeric sensor
// columns), and publishes it to the Kafka source topic keyed by device_id so
// that a device's readings arrive in order on one partition.
//
// # Sensor Conventions
//
// Stations report on a 15-minute cadence. Units as delivered:
//
//	air_temperature        °C
//	air_humidity           % relative humidity
//	wind_speed             m/s
//	peak_wind_gust         m/s
//	wind_direction_sensor  degrees, 0–360
//	rain_gauge             mm accumulated since the previous report
//	rain_accumulation      mm running total since the station's last reset
//	barometric_pressure    hPa; some firmware revisions report Pa, detected
//	                       by magnitude (> 2000) and divided by 100
//	uv_index               dimensionless
//	light_intensity        lux
//
// Negative rain increments occur when a gauge resets mid-interval; they are
// clamped to zero during decoding rather than flagged.
//
// # QC Encoding
//
// Each check produces one of three outcomes: ok, warning, fail. The upstream
// notebook encoded these as 1 / 0 / -2; this service keeps the same check
// names (QC_time_gap, QC_Tair_range, ...) so audit records line up with the
// historical dataset. A check that cannot be evaluated, such as a gap or step
// check on a device's first reading, reports not_applicable and never rejects.
//
// A reading is invalid iff a hard-class check fails. Warning-class checks
// (QC_WindDir_requires_wind, QC_Tair_step) are recorded but never reject.
//
// Default thresholds are the Busia station profile; see DefaultThresholds.
//
// # Daily Aggregation
//
// Valid readings roll into one DailyAggregate per device-day. Two day-scoped
// checks run at finalization: QC_Daily_Availability (valid fraction of the 96
// expected readings, degraded below 0.8) and QC_Rain_Daily (daily total,
// warning above 150 mm, fail above 300 mm). Finalized aggregates are scored
// against the device's trailing window of prior days; see Scorer.
//
// # ID Conventions
//
// reading_id is assigned by the collector and is the idempotency key for
// clean readings and audit records downstream. Aggregates are keyed by
// (device_id, date).
package domain
