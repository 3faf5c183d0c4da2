package domain

import "time"

// DayAccumulator holds the running statistics for one open device-day.
// Only valid readings are added. Owned by a single worker until finalized.
type DayAccumulator struct {
	DeviceID string
	Date     string
	DayStart time.Time

	ValidCount int
	WetCount   int // valid readings with a nonzero rain increment

	TempMin float64
	TempMax float64
	TempSum float64

	WindMax     float64
	RainSum     float64
	HumiditySum float64
}

// NewDayAccumulator opens an accumulator for a device-day. dayStart is
// midnight of the date in the configured zone.
func NewDayAccumulator(deviceID, date string, dayStart time.Time) *DayAccumulator {
	return &DayAccumulator{
		DeviceID: deviceID,
		Date:     date,
		DayStart: dayStart,
	}
}

// Add folds one valid reading into the running statistics.
func (a *DayAccumulator) Add(r SensorReading) {
	if a.ValidCount == 0 || r.AirTemperature < a.TempMin {
		a.TempMin = r.AirTemperature
	}
	if a.ValidCount == 0 || r.AirTemperature > a.TempMax {
		a.TempMax = r.AirTemperature
	}
	a.TempSum += r.AirTemperature

	if r.WindSpeed > a.WindMax {
		a.WindMax = r.WindSpeed
	}
	a.RainSum += r.RainGauge
	a.HumiditySum += r.AirHumidity

	if r.RainGauge > 0 {
		a.WetCount++
	}
	a.ValidCount++
}

// DailyAggregate is the finalized, immutable summary of one device-day.
type DailyAggregate struct {
	DeviceID  string `json:"device_id"`
	Date      string `json:"date"`
	DateEpoch int64  `json:"date_epoch"`

	MaxTemp     float64 `json:"maxtemp"`
	MinTemp     float64 `json:"mintemp"`
	AvgTemp     float64 `json:"avgtemp"`
	MaxWind     float64 `json:"maxwind"`
	TotalPrecip float64 `json:"totalprecip"`
	AvgHumidity float64 `json:"avghumidity"`

	RainOccurred bool    `json:"rain_occurred"`
	RainChance   float64 `json:"rain_chance"`

	// Day-scoped QC, folded in at finalization.
	ValidCount    int     `json:"valid_count"`
	ValidFraction float64 `json:"valid_fraction"`
	Degraded      bool    `json:"degraded"`
	RainDailyQC   Outcome `json:"qc_rain_daily"`

	AnomalyScore float64 `json:"anomaly_score"`
	IsAnomaly    bool    `json:"is_anomaly"`

	ProcessingTimestamp time.Time `json:"processing_timestamp"`
}

// Finalize closes the accumulator into a DailyAggregate and runs the
// day-scoped checks: QC_Daily_Availability marks the day degraded below the
// coverage threshold, QC_Rain_Daily classifies the rain total. Returns false
// when the day saw no valid readings; such a device-day produces no aggregate
// at all rather than a zeroed record. Anomaly fields are left for the Scorer.
func (a *DayAccumulator) Finalize(thr Thresholds) (DailyAggregate, bool) {
	if a.ValidCount == 0 {
		return DailyAggregate{}, false
	}

	n := float64(a.ValidCount)
	validFrac := n / thr.ExpectedReadingsPerDay
	if validFrac > 1 {
		validFrac = 1
	}

	return DailyAggregate{
		DeviceID:  a.DeviceID,
		Date:      a.Date,
		DateEpoch: a.DayStart.Unix(),

		MaxTemp:     a.TempMax,
		MinTemp:     a.TempMin,
		AvgTemp:     a.TempSum / n,
		MaxWind:     a.WindMax,
		TotalPrecip: a.RainSum,
		AvgHumidity: a.HumiditySum / n,

		RainOccurred: a.RainSum > 0,
		RainChance:   float64(a.WetCount) / n,

		ValidCount:    a.ValidCount,
		ValidFraction: validFrac,
		Degraded:      validFrac < thr.MinDailyAvail,
		RainDailyQC:   rainDailyOutcome(a.RainSum, thr),

		ProcessingTimestamp: clock.Now().UTC(),
	}, true
}
