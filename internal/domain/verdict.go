package domain

import "time"

// QCVerdict is the audited result of running the check chain on one reading.
// Created once per reading and persisted as-is; never updated in place.
type QCVerdict struct {
	ReadingID string `json:"reading_id"`
	DeviceID  string `json:"device_id"`

	// Checks maps check name to outcome for every rule in the chain.
	Checks map[string]Outcome `json:"checks"`

	// Derived diagnostics; nil when the device had no previous reading.
	TimeGapMinutes *float64 `json:"time_gap_minutes,omitempty"`
	TairStep       *float64 `json:"tair_step,omitempty"`

	Valid         bool     `json:"valid"`
	FailedChecks  []string `json:"failed_checks"`
	WarningChecks []string `json:"warning_checks"`

	// Late marks a reading that arrived behind the device's watermark.
	Late bool `json:"late,omitempty"`

	ProcessingTimestamp time.Time `json:"processing_timestamp"`
}

// Validate runs the full check chain against a reading and folds the results
// into a verdict. prev is the most recent reading previously seen for the
// device, nil for the device's first: history-dependent checks then report
// not_applicable, so a first reading is never rejected for lack of history.
//
// Valid is false iff a hard-class check fails. Warning-class checks land in
// FailedChecks when they fail but do not reject.
func Validate(r SensorReading, prev *SensorReading, thr Thresholds) QCVerdict {
	v := QCVerdict{
		ReadingID:           r.ReadingID,
		DeviceID:            r.DeviceID,
		Checks:              make(map[string]Outcome),
		Valid:               true,
		FailedChecks:        []string{},
		WarningChecks:       []string{},
		TimeGapMinutes:      GapMinutes(r, prev),
		TairStep:            TempStep(r, prev),
		ProcessingTimestamp: clock.Now().UTC(),
	}

	for _, c := range Checks() {
		outcome := c.Eval(r, prev, thr)
		v.Checks[c.Name] = outcome

		switch outcome {
		case OutcomeFail:
			v.FailedChecks = append(v.FailedChecks, c.Name)
			if c.Class == ClassHard {
				v.Valid = false
			}
		case OutcomeWarning:
			v.WarningChecks = append(v.WarningChecks, c.Name)
		}
	}

	return v
}

// MarkLate records the late-arrival diagnostic on a verdict before it is
// persisted. Late readings stay valid or invalid on their own merits.
func (v *QCVerdict) MarkLate() {
	if v.Late {
		return
	}
	v.Late = true
	v.WarningChecks = append(v.WarningChecks, WarnLateArrival)
}

// CleanReading is the persisted record shape for a quality-controlled reading.
type CleanReading struct {
	ReadingID string    `json:"reading_id"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Valid     bool      `json:"valid"`

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

	ProcessingTimestamp time.Time `json:"processing_timestamp"`
}

// NewCleanReading pairs a reading with its verdict into the clean-reading
// record, keyed by reading_id for idempotent upserts.
func NewCleanReading(r SensorReading, v QCVerdict) CleanReading {
	return CleanReading{
		ReadingID: r.ReadingID,
		DeviceID:  r.DeviceID,
		Timestamp: r.Timestamp,
		Valid:     v.Valid,

		UVIndex:            r.UVIndex,
		RainGauge:          r.RainGauge,
		WindSpeed:          r.WindSpeed,
		AirHumidity:        r.AirHumidity,
		PeakWindGust:       r.PeakWindGust,
		AirTemperature:     r.AirTemperature,
		LightIntensity:     r.LightIntensity,
		RainAccumulation:   r.RainAccumulation,
		BarometricPressure: r.BarometricPressure,
		WindDirection:      r.WindDirection,

		ProcessingTimestamp: v.ProcessingTimestamp,
	}
}

// AuditRecord is the persisted audit-trail shape: the reading's sensor
// fields, every per-check outcome, and the derived diagnostics.
type AuditRecord struct {
	ReadingID string `json:"reading_id"`
	DeviceID  string `json:"device_id"`
	Date      string `json:"date"`

	Timestamp time.Time `json:"timestamp"`

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

	Checks         map[string]Outcome `json:"checks"`
	TimeGapMinutes *float64           `json:"time_gap_minutes,omitempty"`
	TairStep       *float64           `json:"tair_step,omitempty"`
	Valid          bool               `json:"valid"`
	FailedChecks   []string           `json:"failed_checks"`
	WarningChecks  []string           `json:"warning_checks"`
	Late           bool               `json:"late,omitempty"`

	ProcessingTimestamp time.Time `json:"processing_timestamp"`
}

// NewAuditRecord flattens a reading and its verdict into the audit-trail
// record. date is the device-day the reading was assigned to.
func NewAuditRecord(r SensorReading, v QCVerdict, date string) AuditRecord {
	return AuditRecord{
		ReadingID: r.ReadingID,
		DeviceID:  r.DeviceID,
		Date:      date,
		Timestamp: r.Timestamp,

		UVIndex:            r.UVIndex,
		RainGauge:          r.RainGauge,
		WindSpeed:          r.WindSpeed,
		AirHumidity:        r.AirHumidity,
		PeakWindGust:       r.PeakWindGust,
		AirTemperature:     r.AirTemperature,
		LightIntensity:     r.LightIntensity,
		RainAccumulation:   r.RainAccumulation,
		BarometricPressure: r.BarometricPressure,
		WindDirection:      r.WindDirection,

		Checks:         v.Checks,
		TimeGapMinutes: v.TimeGapMinutes,
		TairStep:       v.TairStep,
		Valid:          v.Valid,
		FailedChecks:   v.FailedChecks,
		WarningChecks:  v.WarningChecks,
		Late:           v.Late,

		ProcessingTimestamp: v.ProcessingTimestamp,
	}
}
