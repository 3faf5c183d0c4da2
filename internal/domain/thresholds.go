package domain

// Thresholds holds the QC bounds for one station profile. Field names mirror
// the threshold keys used by the historical level-1 notebook so profiles can
// be reviewed against the original dataset documentation.
type Thresholds struct {
	// Air temperature, °C. The warn band sits inside the physical band:
	// readings between the two are warnings, outside the physical band fail.
	TairMinPhy      float64 `yaml:"tair_min_phy"`
	TairMaxPhy      float64 `yaml:"tair_max_phy"`
	TairWarnMinClim float64 `yaml:"tair_warn_min_clim"`
	TairWarnMaxClim float64 `yaml:"tair_warn_max_clim"`

	// Temperature step between consecutive readings, °C.
	TairMaxStepWarn float64 `yaml:"tair_max_step_warn"`
	TairMaxStepFail float64 `yaml:"tair_max_step_fail"`

	// Relative humidity, %.
	RHMinPhy      float64 `yaml:"rh_min_phy"`
	RHMaxPhy      float64 `yaml:"rh_max_phy"`
	RHWarnMinClim float64 `yaml:"rh_warn_min_clim"`

	// Rain increment per 15-minute report, mm.
	RainMinInc    float64 `yaml:"rain_min_inc"`
	RainWarn15Min float64 `yaml:"rain_warn_15min"`
	RainMax15Min  float64 `yaml:"rain_max_15min"`

	// Daily rain total, mm.
	RainWarnDaily float64 `yaml:"rain_warn_daily"`
	RainMaxDaily  float64 `yaml:"rain_max_daily"`

	// Wind speed, m/s.
	WindMinPhy      float64 `yaml:"wind_min_phy"`
	WindWarnMaxClim float64 `yaml:"wind_warn_max_clim"`
	WindMaxPhy      float64 `yaml:"wind_max_phy"`

	// Wind direction, degrees. Direction is only meaningful above
	// WindDirRequiresWind m/s of wind.
	WindDirMinPhy       float64 `yaml:"winddir_min_phy"`
	WindDirMaxPhy       float64 `yaml:"winddir_max_phy"`
	WindDirRequiresWind float64 `yaml:"winddir_requires_wind"`

	// Sampling cadence. A gap between consecutive readings outside
	// [TimeGapMinMinutes, TimeGapMaxMinutes] fails QC_time_gap.
	TimeGapMinMinutes float64 `yaml:"time_gap_min_minutes"`
	TimeGapMaxMinutes float64 `yaml:"time_gap_max_minutes"`

	// Daily availability: valid readings over ExpectedReadingsPerDay.
	// Below MinDailyAvail the day's aggregate is marked degraded.
	ExpectedReadingsPerDay float64 `yaml:"expected_readings_per_day"`
	MinDailyAvail          float64 `yaml:"min_daily_avail"`
}

// DefaultThresholds returns the Busia station profile.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TairMinPhy:      10.0,
		TairMaxPhy:      45.0,
		TairWarnMinClim: 12.0,
		TairWarnMaxClim: 36.0,

		TairMaxStepWarn: 3.0,
		TairMaxStepFail: 5.0,

		RHMinPhy:      0.0,
		RHMaxPhy:      100.0,
		RHWarnMinClim: 20.0,

		RainMinInc:    0.0,
		RainWarn15Min: 20.0,
		RainMax15Min:  40.0,

		RainWarnDaily: 150.0,
		RainMaxDaily:  300.0,

		WindMinPhy:      0.0,
		WindWarnMaxClim: 20.0,
		WindMaxPhy:      40.0,

		WindDirMinPhy:       0.0,
		WindDirMaxPhy:       360.0,
		WindDirRequiresWind: 0.3,

		TimeGapMinMinutes: 14.0,
		TimeGapMaxMinutes: 16.0,

		ExpectedReadingsPerDay: 96.0,
		MinDailyAvail:          0.8,
	}
}
