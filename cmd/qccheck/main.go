// Command qccheck runs the full QC chain offline against a JSON file of
// readings and reports per-phase results: decoding, per-reading validation,
// and daily aggregation with anomaly scoring. It exits nonzero when any
// phase finds an integrity violation, which makes it usable as a fixture
// sanity gate in CI and as a field-debugging tool for exported device data.
//
// Usage:
//
//	go run ./cmd/qccheck -readings data/mock/raw_readings.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/LubangaD/lorowandatapipiline/internal/domain"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	readingsPath := flag.String("readings", "", "path to JSON file containing an array of raw readings")
	timezone := flag.String("timezone", "UTC", "IANA zone assigning calendar dates")
	flag.Parse()

	if *readingsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*readingsPath, *timezone); code != 0 {
		os.Exit(code)
	}
}

func run(readingsPath, timezone string) int {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: invalid timezone %q: %v\n", timezone, err)
		return 1
	}

	fmt.Println("=== Weather Telemetry QC Check ===")
	fmt.Println()

	payloads, err := loadPayloads(readingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load readings: %v\n", err)
		return 1
	}
	fmt.Printf("loaded %d payloads from %s\n\n", len(payloads), readingsPath)

	thr := domain.DefaultThresholds()

	decode := &phase{name: "decode"}
	readings := decodeAll(decode, payloads)

	validation := &phase{name: "validation"}
	verdicts := validateAll(validation, readings, thr)

	aggregation := &phase{name: "aggregation"}
	aggregateAll(aggregation, readings, verdicts, thr, loc)

	code := 0
	for _, p := range []*phase{decode, validation, aggregation} {
		if p.passed() {
			fmt.Printf("PASS  %s\n", p.name)
			continue
		}
		code = 1
		fmt.Printf("FAIL  %s (%d errors)\n", p.name, len(p.errors))
		for _, e := range p.errors {
			fmt.Printf("      - %s\n", e)
		}
	}
	return code
}

func loadPayloads(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payloads []json.RawMessage
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return payloads, nil
}

func decodeAll(p *phase, payloads []json.RawMessage) []domain.SensorReading {
	var readings []domain.SensorReading
	seen := make(map[string]bool)

	for i, raw := range payloads {
		r, err := domain.DecodeReading(raw)
		if err != nil {
			p.errorf("payload %d: %v", i, err)
			continue
		}
		if seen[r.ReadingID] {
			p.errorf("payload %d: duplicate reading_id %s", i, r.ReadingID)
			continue
		}
		seen[r.ReadingID] = true
		readings = append(readings, r)
	}
	return readings
}

// validateAll runs the check chain per device in timestamp order and
// cross-checks the verdict invariants: valid iff no hard check failed, and
// first readings never failing history-dependent checks.
func validateAll(p *phase, readings []domain.SensorReading, thr domain.Thresholds) map[string]domain.QCVerdict {
	byDevice := make(map[string][]domain.SensorReading)
	for _, r := range readings {
		byDevice[r.DeviceID] = append(byDevice[r.DeviceID], r)
	}

	hard := make(map[string]bool)
	for _, c := range domain.Checks() {
		if c.Class == domain.ClassHard {
			hard[c.Name] = true
		}
	}

	verdicts := make(map[string]domain.QCVerdict, len(readings))
	for device, rs := range byDevice {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Timestamp.Before(rs[j].Timestamp) })

		var prev *domain.SensorReading
		for i := range rs {
			v := domain.Validate(rs[i], prev, thr)

			hardFailed := false
			for _, name := range v.FailedChecks {
				if hard[name] {
					hardFailed = true
				}
			}
			if v.Valid == hardFailed {
				p.errorf("%s %s: valid=%v contradicts hard failures %v",
					device, v.ReadingID, v.Valid, v.FailedChecks)
			}
			if prev == nil {
				if v.Checks[domain.CheckTimeGap] == domain.OutcomeFail ||
					v.Checks[domain.CheckTairStep] == domain.OutcomeFail {
					p.errorf("%s %s: first reading failed a history-dependent check", device, v.ReadingID)
				}
			}

			verdicts[v.ReadingID] = v
			prev = &rs[i]
		}
	}
	return verdicts
}

// aggregateAll folds valid readings into device-days and reports the
// resulting aggregates, flagging impossible statistics.
func aggregateAll(p *phase, readings []domain.SensorReading, verdicts map[string]domain.QCVerdict, thr domain.Thresholds, loc *time.Location) {
	accs := make(map[string]*domain.DayAccumulator)
	for _, r := range readings {
		v, ok := verdicts[r.ReadingID]
		if !ok || !v.Valid {
			continue
		}
		date := domain.DateKey(r.Timestamp, loc)
		key := r.DeviceID + "|" + date
		acc, ok := accs[key]
		if !ok {
			acc = domain.NewDayAccumulator(r.DeviceID, date, domain.DayStart(r.Timestamp, loc))
			accs[key] = acc
		}
		acc.Add(r)
	}

	keys := make([]string, 0, len(accs))
	for k := range accs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	scorer := domain.NewScorer(3.0, 5, 30)
	baselines := make(map[string][]domain.DailyAggregate)

	for _, k := range keys {
		acc := accs[k]
		agg, ok := acc.Finalize(thr)
		if !ok {
			p.errorf("%s: accumulator with zero valid readings was created", k)
			continue
		}
		if agg.MinTemp > agg.MaxTemp {
			p.errorf("%s: mintemp %.2f > maxtemp %.2f", k, agg.MinTemp, agg.MaxTemp)
		}
		if agg.AvgTemp < agg.MinTemp || agg.AvgTemp > agg.MaxTemp {
			p.errorf("%s: avgtemp %.2f outside [min,max]", k, agg.AvgTemp)
		}
		if agg.RainChance < 0 || agg.RainChance > 1 {
			p.errorf("%s: rain_chance %.3f outside [0,1]", k, agg.RainChance)
		}
		if agg.RainOccurred != (agg.TotalPrecip > 0) {
			p.errorf("%s: rain_occurred inconsistent with totalprecip %.2f", k, agg.TotalPrecip)
		}

		agg = scorer.Score(agg, baselines[acc.DeviceID])
		baselines[acc.DeviceID] = domain.AppendTrailing(baselines[acc.DeviceID], agg, scorer.WindowDays)

		marker := " "
		if agg.Degraded {
			marker = "D"
		}
		if agg.IsAnomaly {
			marker = "A"
		}
		fmt.Printf("%s %-40s valid=%3d frac=%.2f rain=%6.1fmm score=%.2f\n",
			marker, k, agg.ValidCount, agg.ValidFraction, agg.TotalPrecip, agg.AnomalyScore)
	}
	fmt.Println()
}
