package domain

import "math"

// Scorer flags daily aggregates that deviate from a device's trailing
// baseline. Scoring is deterministic given the same history.
type Scorer struct {
	// Threshold is the score above which a day is flagged anomalous.
	Threshold float64
	// MinBaselineDays is the minimum history length required to score at
	// all. Below it the day is marked not-anomalous: an insufficient
	// baseline is not an anomaly.
	MinBaselineDays int
	// WindowDays bounds the trailing history considered.
	WindowDays int
}

// NewScorer creates a Scorer with the given threshold, minimum baseline, and
// trailing window length.
func NewScorer(threshold float64, minBaselineDays, windowDays int) *Scorer {
	return &Scorer{
		Threshold:       threshold,
		MinBaselineDays: minBaselineDays,
		WindowDays:      windowDays,
	}
}

// Score computes the anomaly score of agg against the device's prior
// finalized aggregates and stamps anomaly_score / is_anomaly on the returned
// copy. The score is the largest absolute z-score of average temperature,
// total precipitation, and max wind against the trailing window. A metric
// with zero spread in the baseline contributes nothing.
func (s *Scorer) Score(agg DailyAggregate, history []DailyAggregate) DailyAggregate {
	if len(history) > s.WindowDays {
		history = history[len(history)-s.WindowDays:]
	}
	if len(history) < s.MinBaselineDays {
		agg.AnomalyScore = 0
		agg.IsAnomaly = false
		return agg
	}

	score := 0.0
	for _, m := range []struct {
		value  float64
		sample func(DailyAggregate) float64
	}{
		{agg.AvgTemp, func(d DailyAggregate) float64 { return d.AvgTemp }},
		{agg.TotalPrecip, func(d DailyAggregate) float64 { return d.TotalPrecip }},
		{agg.MaxWind, func(d DailyAggregate) float64 { return d.MaxWind }},
	} {
		if z := math.Abs(zScore(m.value, history, m.sample)); z > score {
			score = z
		}
	}

	agg.AnomalyScore = score
	agg.IsAnomaly = score > s.Threshold
	return agg
}

// zScore standardizes value against the sampled metric of the history.
// Returns 0 when the history has no spread.
func zScore(value float64, history []DailyAggregate, sample func(DailyAggregate) float64) float64 {
	n := float64(len(history))

	var sum float64
	for _, d := range history {
		sum += sample(d)
	}
	mean := sum / n

	var variance float64
	for _, d := range history {
		diff := sample(d) - mean
		variance += diff * diff
	}
	variance /= n

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return (value - mean) / std
}

// AppendTrailing adds agg to a device's trailing history, evicting the oldest
// entries past max. The slice stays ordered oldest first.
func AppendTrailing(history []DailyAggregate, agg DailyAggregate, max int) []DailyAggregate {
	history = append(history, agg)
	if len(history) > max {
		history = history[len(history)-max:]
	}
	return history
}
