package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// baselineDays builds n near-identical mild days with a touch of spread so
// the z-score denominator is nonzero.
func baselineDays(n int) []DailyAggregate {
	days := make([]DailyAggregate, n)
	for i := range days {
		jitter := float64(i%5) - 2.0 // -2..+2
		days[i] = DailyAggregate{
			DeviceID:    "afrisense-busia-001",
			Date:        fmt.Sprintf("2024-02-%02d", i+1),
			AvgTemp:     20.0 + jitter*0.5,
			TotalPrecip: 2.0 + jitter*0.2,
			MaxWind:     4.0 + jitter*0.3,
		}
	}
	return days
}

func TestScorerScore(t *testing.T) {
	scorer := NewScorer(3.0, 5, 30)

	t.Run("extreme day against stable baseline is anomalous", func(t *testing.T) {
		day := DailyAggregate{AvgTemp: 35.0, TotalPrecip: 2.0, MaxWind: 4.0}
		scored := scorer.Score(day, baselineDays(10))

		assert.True(t, scored.IsAnomaly)
		assert.Greater(t, scored.AnomalyScore, 3.0)
	})

	t.Run("typical day is not anomalous", func(t *testing.T) {
		day := DailyAggregate{AvgTemp: 20.5, TotalPrecip: 2.1, MaxWind: 4.1}
		scored := scorer.Score(day, baselineDays(10))

		assert.False(t, scored.IsAnomaly)
		assert.Less(t, scored.AnomalyScore, 3.0)
	})

	t.Run("short baseline never flags", func(t *testing.T) {
		day := DailyAggregate{AvgTemp: 35.0, TotalPrecip: 2.0, MaxWind: 4.0}
		scored := scorer.Score(day, baselineDays(3))

		assert.False(t, scored.IsAnomaly)
		assert.Equal(t, 0.0, scored.AnomalyScore)
	})

	t.Run("zero-spread baseline contributes nothing", func(t *testing.T) {
		flat := make([]DailyAggregate, 8)
		for i := range flat {
			flat[i] = DailyAggregate{AvgTemp: 20.0, TotalPrecip: 0.0, MaxWind: 4.0}
		}
		day := DailyAggregate{AvgTemp: 20.0, TotalPrecip: 0.0, MaxWind: 4.0}
		scored := scorer.Score(day, flat)

		assert.False(t, scored.IsAnomaly)
		assert.Equal(t, 0.0, scored.AnomalyScore)
	})

	t.Run("window bounds the baseline", func(t *testing.T) {
		// Old scorching history outside the window must not normalize a hot day.
		history := make([]DailyAggregate, 0, 40)
		for i := 0; i < 20; i++ {
			history = append(history, DailyAggregate{AvgTemp: 35.0 + float64(i%3), TotalPrecip: 2.0, MaxWind: 4.0})
		}
		history = append(history, baselineDays(30)...)

		day := DailyAggregate{AvgTemp: 35.0, TotalPrecip: 2.0, MaxWind: 4.0}
		scored := scorer.Score(day, history)
		assert.True(t, scored.IsAnomaly)
	})

	t.Run("precip spike alone flags", func(t *testing.T) {
		day := DailyAggregate{AvgTemp: 20.0, TotalPrecip: 80.0, MaxWind: 4.0}
		scored := scorer.Score(day, baselineDays(10))
		assert.True(t, scored.IsAnomaly)
	})
}

func TestScorerDeterministic(t *testing.T) {
	scorer := NewScorer(3.0, 5, 30)
	day := DailyAggregate{AvgTemp: 26.0, TotalPrecip: 5.0, MaxWind: 7.0}
	history := baselineDays(12)

	first := scorer.Score(day, history)
	second := scorer.Score(day, history)
	assert.Equal(t, first.AnomalyScore, second.AnomalyScore)
	assert.Equal(t, first.IsAnomaly, second.IsAnomaly)
}

func TestAppendTrailing(t *testing.T) {
	var history []DailyAggregate
	for i := 0; i < 35; i++ {
		history = AppendTrailing(history, DailyAggregate{Date: fmt.Sprintf("d%02d", i)}, 30)
	}

	assert.Len(t, history, 30)
	assert.Equal(t, "d05", history[0].Date)
	assert.Equal(t, "d34", history[29].Date)
}
