package domain

import "math"

// Outcome is the result of one QC check.
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeWarning       Outcome = "warning"
	OutcomeFail          Outcome = "fail"
	OutcomeNotApplicable Outcome = "not_applicable"
)

// CheckClass decides whether a failing check rejects the reading.
type CheckClass int

const (
	// ClassHard checks reject the reading when they fail.
	ClassHard CheckClass = iota
	// ClassWarning checks are recorded but never reject.
	ClassWarning
)

// Canonical check names, kept aligned with the historical level-1 dataset.
const (
	CheckTimeGap             = "QC_time_gap"
	CheckTairRange           = "QC_Tair_range"
	CheckRHRange             = "QC_RH_range"
	CheckWindSpeedRange      = "QC_WindSpeed_range"
	CheckWindDirRange        = "QC_WindDir_range"
	CheckWindDirRequiresWind = "QC_WindDir_requires_wind"
	CheckRain15Min           = "QC_Rain_15min"
	CheckTairStep            = "QC_Tair_step"

	// Day-scoped checks, evaluated at aggregate finalization.
	CheckDailyAvailability = "QC_Daily_Availability"
	CheckRainDaily         = "QC_Rain_Daily"

	// WarnLateArrival is a pipeline-level diagnostic, not a rule: readings
	// arriving behind the device's watermark carry it in warning_checks.
	WarnLateArrival = "late_arrival"
)

// Check is one QC rule: a pure function of the reading, the previous reading
// seen for the device (nil for a device's first), and the threshold profile.
type Check struct {
	Name  string
	Class CheckClass
	Eval  func(r SensorReading, prev *SensorReading, thr Thresholds) Outcome
}

// Checks returns the fixed, ordered level-1 check chain. Order matches the
// historical pipeline and only matters for diagnostic readability.
func Checks() []Check {
	return []Check{
		{Name: CheckTimeGap, Class: ClassHard, Eval: checkTimeGap},
		{Name: CheckTairRange, Class: ClassHard, Eval: checkTairRange},
		{Name: CheckRHRange, Class: ClassHard, Eval: checkRHRange},
		{Name: CheckWindSpeedRange, Class: ClassHard, Eval: checkWindSpeedRange},
		{Name: CheckWindDirRange, Class: ClassHard, Eval: checkWindDirRange},
		{Name: CheckWindDirRequiresWind, Class: ClassWarning, Eval: checkWindDirRequiresWind},
		{Name: CheckRain15Min, Class: ClassHard, Eval: checkRain15Min},
		{Name: CheckTairStep, Class: ClassWarning, Eval: checkTairStep},
	}
}

// bandedOutcome classifies v against a warn band nested inside a fail band.
// Outside [failLo, failHi] fails; outside [okLo, okHi] but inside the fail
// band warns. Precedence fail > warning > ok, as in the original encoding.
func bandedOutcome(v, okLo, okHi, failLo, failHi float64) Outcome {
	if v < failLo || v > failHi {
		return OutcomeFail
	}
	if v < okLo || v > okHi {
		return OutcomeWarning
	}
	return OutcomeOK
}

// GapMinutes returns the elapsed minutes between prev and r, or nil when no
// previous reading exists.
func GapMinutes(r SensorReading, prev *SensorReading) *float64 {
	if prev == nil {
		return nil
	}
	m := r.Timestamp.Sub(prev.Timestamp).Minutes()
	return &m
}

// TempStep returns the signed temperature change from prev to r, or nil when
// no previous reading exists.
func TempStep(r SensorReading, prev *SensorReading) *float64 {
	if prev == nil {
		return nil
	}
	d := r.AirTemperature - prev.AirTemperature
	return &d
}

func checkTimeGap(r SensorReading, prev *SensorReading, thr Thresholds) Outcome {
	gap := GapMinutes(r, prev)
	if gap == nil {
		return OutcomeNotApplicable
	}
	if *gap < thr.TimeGapMinMinutes || *gap > thr.TimeGapMaxMinutes {
		return OutcomeFail
	}
	return OutcomeOK
}

func checkTairRange(r SensorReading, _ *SensorReading, thr Thresholds) Outcome {
	return bandedOutcome(r.AirTemperature,
		thr.TairWarnMinClim, thr.TairWarnMaxClim,
		thr.TairMinPhy, thr.TairMaxPhy)
}

func checkRHRange(r SensorReading, _ *SensorReading, thr Thresholds) Outcome {
	return bandedOutcome(r.AirHumidity,
		thr.RHWarnMinClim, thr.RHMaxPhy,
		thr.RHMinPhy, thr.RHMaxPhy)
}

func checkWindSpeedRange(r SensorReading, _ *SensorReading, thr Thresholds) Outcome {
	return bandedOutcome(r.WindSpeed,
		thr.WindMinPhy, thr.WindWarnMaxClim,
		thr.WindMinPhy, thr.WindMaxPhy)
}

func checkWindDirRange(r SensorReading, _ *SensorReading, thr Thresholds) Outcome {
	if r.WindDirection < thr.WindDirMinPhy || r.WindDirection > thr.WindDirMaxPhy {
		return OutcomeFail
	}
	return OutcomeOK
}

// checkWindDirRequiresWind flags a reported direction under near-calm wind:
// vanes drift when there is nothing to orient them.
func checkWindDirRequiresWind(r SensorReading, _ *SensorReading, thr Thresholds) Outcome {
	if r.WindSpeed < thr.WindDirRequiresWind {
		return OutcomeWarning
	}
	return OutcomeOK
}

func checkRain15Min(r SensorReading, _ *SensorReading, thr Thresholds) Outcome {
	return bandedOutcome(r.RainGauge,
		thr.RainMinInc, thr.RainWarn15Min,
		thr.RainMinInc, thr.RainMax15Min)
}

// checkTairStep is warning-class: even a step past the fail threshold is
// recorded without rejecting the reading, since a genuine front can move
// temperature faster than the climatological bound.
func checkTairStep(r SensorReading, prev *SensorReading, thr Thresholds) Outcome {
	step := TempStep(r, prev)
	if step == nil {
		return OutcomeNotApplicable
	}
	abs := math.Abs(*step)
	switch {
	case abs <= thr.TairMaxStepWarn:
		return OutcomeOK
	case abs <= thr.TairMaxStepFail:
		return OutcomeWarning
	default:
		return OutcomeFail
	}
}

// rainDailyOutcome classifies a day's rain total. Day-scoped counterpart to
// checkRain15Min, run at aggregate finalization.
func rainDailyOutcome(totalPrecip float64, thr Thresholds) Outcome {
	switch {
	case totalPrecip > thr.RainMaxDaily:
		return OutcomeFail
	case totalPrecip > thr.RainWarnDaily:
		return OutcomeWarning
	default:
		return OutcomeOK
	}
}
