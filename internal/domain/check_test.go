package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goodReading returns a reading that passes every check when it follows
// prevOf(goodReading) at the nominal 15-minute cadence.
func goodReading() SensorReading {
	return SensorReading{
		ReadingID:          "rd-good",
		DeviceID:           "afrisense-busia-001",
		Timestamp:          time.Date(2024, 3, 11, 6, 15, 0, 0, time.UTC),
		AirTemperature:     21.5,
		AirHumidity:        78.0,
		WindSpeed:          3.2,
		WindDirection:      140.0,
		RainGauge:          0.2,
		BarometricPressure: 881.0,
	}
}

// prevOf returns a previous reading one nominal interval before r.
func prevOf(r SensorReading) *SensorReading {
	p := r
	p.ReadingID = "rd-prev"
	p.Timestamp = r.Timestamp.Add(-15 * time.Minute)
	return &p
}

func TestCheckTimeGap(t *testing.T) {
	thr := DefaultThresholds()
	r := goodReading()

	t.Run("no previous reading", func(t *testing.T) {
		assert.Equal(t, OutcomeNotApplicable, checkTimeGap(r, nil, thr))
	})

	t.Run("nominal cadence", func(t *testing.T) {
		assert.Equal(t, OutcomeOK, checkTimeGap(r, prevOf(r), thr))
	})

	t.Run("gap too long", func(t *testing.T) {
		prev := prevOf(r)
		prev.Timestamp = r.Timestamp.Add(-61 * time.Minute)
		assert.Equal(t, OutcomeFail, checkTimeGap(r, prev, thr))
	})

	t.Run("gap too short", func(t *testing.T) {
		prev := prevOf(r)
		prev.Timestamp = r.Timestamp.Add(-5 * time.Minute)
		assert.Equal(t, OutcomeFail, checkTimeGap(r, prev, thr))
	})

	t.Run("tolerance edges pass", func(t *testing.T) {
		prev := prevOf(r)
		prev.Timestamp = r.Timestamp.Add(-14 * time.Minute)
		assert.Equal(t, OutcomeOK, checkTimeGap(r, prev, thr))

		prev.Timestamp = r.Timestamp.Add(-16 * time.Minute)
		assert.Equal(t, OutcomeOK, checkTimeGap(r, prev, thr))
	})
}

func TestCheckTairRange(t *testing.T) {
	thr := DefaultThresholds()

	cases := []struct {
		name string
		temp float64
		want Outcome
	}{
		{"nominal", 21.5, OutcomeOK},
		{"physically impossible high", 150.0, OutcomeFail},
		{"physically impossible low", -10.0, OutcomeFail},
		{"above climatology, within physics", 40.0, OutcomeWarning},
		{"below climatology, within physics", 11.0, OutcomeWarning},
		{"climatology edge", 36.0, OutcomeOK},
		{"physical edge", 45.0, OutcomeWarning},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := goodReading()
			r.AirTemperature = tc.temp
			assert.Equal(t, tc.want, checkTairRange(r, nil, thr))
		})
	}
}

func TestCheckRHRange(t *testing.T) {
	thr := DefaultThresholds()

	cases := []struct {
		name string
		rh   float64
		want Outcome
	}{
		{"nominal", 78.0, OutcomeOK},
		{"negative humidity", -1.0, OutcomeFail},
		{"above saturation", 105.0, OutcomeFail},
		{"implausibly dry", 10.0, OutcomeWarning},
		{"saturation edge", 100.0, OutcomeOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := goodReading()
			r.AirHumidity = tc.rh
			assert.Equal(t, tc.want, checkRHRange(r, nil, thr))
		})
	}
}

func TestCheckWindSpeedRange(t *testing.T) {
	thr := DefaultThresholds()

	cases := []struct {
		name string
		wind float64
		want Outcome
	}{
		{"nominal", 3.2, OutcomeOK},
		{"negative speed", -0.5, OutcomeFail},
		{"over physical limit", 45.0, OutcomeFail},
		{"storm-strength but plausible", 25.0, OutcomeWarning},
		{"calm", 0.0, OutcomeOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := goodReading()
			r.WindSpeed = tc.wind
			assert.Equal(t, tc.want, checkWindSpeedRange(r, nil, thr))
		})
	}
}

func TestCheckWindDirRange(t *testing.T) {
	thr := DefaultThresholds()

	r := goodReading()
	assert.Equal(t, OutcomeOK, checkWindDirRange(r, nil, thr))

	r.WindDirection = 361.0
	assert.Equal(t, OutcomeFail, checkWindDirRange(r, nil, thr))

	r.WindDirection = -1.0
	assert.Equal(t, OutcomeFail, checkWindDirRange(r, nil, thr))

	r.WindDirection = 360.0
	assert.Equal(t, OutcomeOK, checkWindDirRange(r, nil, thr))
}

func TestCheckWindDirRequiresWind(t *testing.T) {
	thr := DefaultThresholds()

	r := goodReading()
	assert.Equal(t, OutcomeOK, checkWindDirRequiresWind(r, nil, thr))

	r.WindSpeed = 0.1
	assert.Equal(t, OutcomeWarning, checkWindDirRequiresWind(r, nil, thr))
}

func TestCheckRain15Min(t *testing.T) {
	thr := DefaultThresholds()

	cases := []struct {
		name string
		rain float64
		want Outcome
	}{
		{"dry interval", 0.0, OutcomeOK},
		{"light rain", 2.5, OutcomeOK},
		{"intense but plausible", 25.0, OutcomeWarning},
		{"over physical limit", 50.0, OutcomeFail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := goodReading()
			r.RainGauge = tc.rain
			assert.Equal(t, tc.want, checkRain15Min(r, nil, thr))
		})
	}
}

func TestCheckTairStep(t *testing.T) {
	thr := DefaultThresholds()
	r := goodReading()

	t.Run("no previous reading", func(t *testing.T) {
		assert.Equal(t, OutcomeNotApplicable, checkTairStep(r, nil, thr))
	})

	t.Run("small step", func(t *testing.T) {
		prev := prevOf(r)
		prev.AirTemperature = r.AirTemperature - 1.0
		assert.Equal(t, OutcomeOK, checkTairStep(r, prev, thr))
	})

	t.Run("suspicious step warns", func(t *testing.T) {
		prev := prevOf(r)
		prev.AirTemperature = r.AirTemperature - 4.0
		assert.Equal(t, OutcomeWarning, checkTairStep(r, prev, thr))
	})

	t.Run("implausible step fails", func(t *testing.T) {
		prev := prevOf(r)
		prev.AirTemperature = r.AirTemperature + 8.0
		assert.Equal(t, OutcomeFail, checkTairStep(r, prev, thr))
	})
}

func TestRainDailyOutcome(t *testing.T) {
	thr := DefaultThresholds()

	assert.Equal(t, OutcomeOK, rainDailyOutcome(12.0, thr))
	assert.Equal(t, OutcomeWarning, rainDailyOutcome(200.0, thr))
	assert.Equal(t, OutcomeFail, rainDailyOutcome(301.0, thr))
}

func TestChecksOrderAndClasses(t *testing.T) {
	chain := Checks()
	require.Len(t, chain, 8)

	classes := map[string]CheckClass{}
	for _, c := range chain {
		classes[c.Name] = c.Class
	}
	assert.Equal(t, ClassWarning, classes[CheckTairStep])
	assert.Equal(t, ClassWarning, classes[CheckWindDirRequiresWind])
	assert.Equal(t, ClassHard, classes[CheckTimeGap])
	assert.Equal(t, ClassHard, classes[CheckTairRange])
	assert.Equal(t, ClassHard, classes[CheckRain15Min])
}
