package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// SensorReading is one normalized telemetry sample. Immutable after decoding.
type SensorReading struct {
	ReadingID string    `json:"reading_id"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"processing_timestamp"`

	UVIndex            float64 `json:"uv_index"`
	RainGauge          float64 `json:"rain_gauge"` // mm since previous report
	WindSpeed          float64 `json:"wind_speed"`
	AirHumidity        float64 `json:"air_humidity"`
	PeakWindGust       float64 `json:"peak_wind_gust"`
	AirTemperature     float64 `json:"air_temperature"`
	LightIntensity     float64 `json:"light_intensity"`
	RainAccumulation   float64 `json:"rain_accumulation"`
	BarometricPressure float64 `json:"barometric_pressure"`
	WindDirection      float64 `json:"wind_direction_sensor"`
}

// DecodeError reports a payload that could not be turned into a SensorReading.
// Such payloads are dropped, never retried.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode reading: %s: %v", e.Reason, e.Err)
	}
	return "decode reading: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// wireReading is the flat JSON shape published by the collector. The
// timestamp arrives as a string in either RFC 3339 or the collector's
// "2006-01-02 15:04:05" layout.
type wireReading struct {
	ReadingID string `json:"reading_id"`
	DeviceID  string `json:"device_id"`
	Timestamp string `json:"processing_timestamp"`

	UVIndex            float64 `json:"uv_index"`
	RainGauge          float64 `json:"rain_gauge"`
	WindSpeed          float64 `json:"wind_speed"`
	AirHumidity        float64 `json:"air_humidity"`
	PeakWindGust       float64 `json:"peak_wind_gust"`
	AirTemperature     float64 `json:"air_temperature"`
	LightIntensity     float64 `json:"light_intensity"`
	RainAccumulation   float64 `json:"rain_accumulation"`
	BarometricPressure float64 `json:"barometric_pressure"`
	WindDirection      float64 `json:"wind_direction_sensor"`
}

// DecodeReading parses a raw payload into a normalized SensorReading.
// It fails with a *DecodeError when the payload is not JSON, a numeric field
// carries a non-numeric value, or reading_id / device_id / timestamp are
// missing. Normalization applied here, per the level-1 preprocessing rules:
// negative rain increments are clamped to zero, and pressure reported in Pa
// (magnitude > 2000) is converted to hPa.
func DecodeReading(payload []byte) (SensorReading, error) {
	var w wireReading
	if err := json.Unmarshal(payload, &w); err != nil {
		return SensorReading{}, &DecodeError{Reason: "malformed payload", Err: err}
	}

	if w.DeviceID == "" {
		return SensorReading{}, &DecodeError{Reason: "missing device_id"}
	}
	if w.ReadingID == "" {
		return SensorReading{}, &DecodeError{Reason: "missing reading_id"}
	}
	if w.Timestamp == "" {
		return SensorReading{}, &DecodeError{Reason: "missing processing_timestamp"}
	}

	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return SensorReading{}, &DecodeError{Reason: "unparseable processing_timestamp", Err: err}
	}

	r := SensorReading{
		ReadingID: w.ReadingID,
		DeviceID:  w.DeviceID,
		Timestamp: ts,

		UVIndex:            w.UVIndex,
		RainGauge:          w.RainGauge,
		WindSpeed:          w.WindSpeed,
		AirHumidity:        w.AirHumidity,
		PeakWindGust:       w.PeakWindGust,
		AirTemperature:     w.AirTemperature,
		LightIntensity:     w.LightIntensity,
		RainAccumulation:   w.RainAccumulation,
		BarometricPressure: w.BarometricPressure,
		WindDirection:      w.WindDirection,
	}

	// Gauge resets report negative increments; treat as no rain.
	if r.RainGauge < 0 {
		r.RainGauge = 0
	}
	// Firmware reporting Pa instead of hPa.
	if r.BarometricPressure > 2000 {
		r.BarometricPressure /= 100.0
	}

	return r, nil
}

// timestampLayouts are tried in order when parsing the collector timestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// DateKey returns the calendar date of t in loc as "2006-01-02", the date
// half of a device-day key.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// DayStart returns midnight of t's calendar date in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
