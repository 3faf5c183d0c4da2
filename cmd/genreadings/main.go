// Command genreadings generates deterministic mock telemetry fixtures for
// the QC test suites and for seeding a local Kafka topic. It uses the actual
// domain package so expected verdicts match real pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genreadings \
//	  -devices 3 -days 2 -seed 42 \
//	  -raw-out data/mock/raw_readings.json \
//	  -verdicts-out data/mock/expected_verdicts.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/LubangaD/lorowandatapipiline/internal/domain"
)

var baseDate = time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)

// readingIDSpace namespaces the deterministic reading UUIDs.
var readingIDSpace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	devices := flag.Int("devices", 3, "number of mock devices")
	days := flag.Int("days", 2, "number of days of readings per device")
	seed := flag.Int64("seed", 42, "random seed")
	faultRate := flag.Float64("fault-rate", 0.05, "fraction of readings with an injected QC fault")
	rawOut := flag.String("raw-out", "", "output path for raw JSON payload fixture")
	verdictsOut := flag.String("verdicts-out", "", "output path for expected verdict fixture")
	flag.Parse()

	if *rawOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -raw-out")
	}

	// Fix the clock for reproducible processing timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(baseDate.AddDate(0, 0, *days).Add(6 * time.Hour)))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewSource(*seed))
	thr := domain.DefaultThresholds()

	var readings []domain.SensorReading
	var verdicts []domain.QCVerdict

	for d := 0; d < *devices; d++ {
		deviceID := fmt.Sprintf("afrisense-busia-%03d", d+1)
		var prev *domain.SensorReading

		for step := 0; step < *days*96; step++ {
			ts := baseDate.Add(time.Duration(step) * 15 * time.Minute)
			r := mockReading(rng, deviceID, ts)
			if rng.Float64() < *faultRate {
				injectFault(rng, &r)
			}

			verdicts = append(verdicts, domain.Validate(r, prev, thr))
			readings = append(readings, r)
			rcopy := r
			prev = &rcopy
		}
		log.Printf("%s: %d readings", deviceID, *days*96)
	}

	if err := writeJSON(*rawOut, readings); err != nil {
		return fmt.Errorf("writing raw fixture: %w", err)
	}
	log.Printf("wrote raw fixture: %s (%d readings)", *rawOut, len(readings))

	if *verdictsOut != "" {
		if err := writeJSON(*verdictsOut, verdicts); err != nil {
			return fmt.Errorf("writing verdict fixture: %w", err)
		}
		log.Printf("wrote verdict fixture: %s", *verdictsOut)
	}

	printStats(verdicts)
	return nil
}

// mockReading produces a plausible Busia reading: a diurnal temperature
// curve with noise, humidity inverse to temperature, light calm wind.
func mockReading(rng *rand.Rand, deviceID string, ts time.Time) domain.SensorReading {
	hour := float64(ts.Hour()) + float64(ts.Minute())/60.0
	diurnal := math.Sin((hour - 6) / 24 * 2 * math.Pi)

	temp := 24.0 + 6.0*diurnal + rng.NormFloat64()*0.4
	humidity := 70.0 - 15.0*diurnal + rng.NormFloat64()*2.0
	wind := math.Abs(rng.NormFloat64() * 2.5)

	rain := 0.0
	if rng.Float64() < 0.04 {
		rain = rng.Float64() * 8.0
	}

	return domain.SensorReading{
		ReadingID: uuid.NewSHA1(readingIDSpace, []byte(deviceID+ts.Format(time.RFC3339))).String(),
		DeviceID:  deviceID,
		Timestamp: ts,

		UVIndex:            math.Max(0, 8.0*diurnal) + rng.Float64()*0.5,
		RainGauge:          rain,
		WindSpeed:          wind,
		AirHumidity:        clamp(humidity, 0, 100),
		PeakWindGust:       wind * (1.2 + rng.Float64()*0.5),
		AirTemperature:     temp,
		LightIntensity:     math.Max(0, 60000*diurnal) + rng.Float64()*500,
		RainAccumulation:   rain,
		BarometricPressure: 880.0 + rng.NormFloat64()*2.0,
		WindDirection:      rng.Float64() * 360.0,
	}
}

// injectFault perturbs one field far enough to trip a QC check.
func injectFault(rng *rand.Rand, r *domain.SensorReading) {
	switch rng.Intn(4) {
	case 0:
		r.AirTemperature = 60.0 + rng.Float64()*40
	case 1:
		r.AirHumidity = 105.0 + rng.Float64()*20
	case 2:
		r.WindSpeed = 45.0 + rng.Float64()*20
	case 3:
		r.RainGauge = 50.0 + rng.Float64()*30
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStats(verdicts []domain.QCVerdict) {
	valid, failed, warned := 0, 0, 0
	for _, v := range verdicts {
		if v.Valid {
			valid++
		}
		if len(v.FailedChecks) > 0 {
			failed++
		}
		if len(v.WarningChecks) > 0 {
			warned++
		}
	}
	log.Printf("verdicts: %d total, %d valid, %d with failures, %d with warnings",
		len(verdicts), valid, failed, warned)
}
