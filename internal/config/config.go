package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LubangaD/lorowandatapipiline/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers        []string
	KafkaSourceTopic    string
	KafkaAggregateTopic string // empty disables aggregate publishing
	KafkaGroupID        string

	PostgresURL string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BatchSize    int
	WorkerCount  int
	HistoryDepth int

	// Timezone assigns each reading's calendar date for daily aggregation.
	Timezone string
	Location *time.Location

	// LatenessWindow is how far behind a device's newest event time a
	// reading may arrive before it is flagged late; it also delays day
	// finalization past midnight by the same amount.
	LatenessWindow time.Duration

	AnomalyThreshold       float64
	AnomalyMinBaselineDays int
	AnomalyWindowDays      int

	SinkMaxRetries int

	// ThresholdsFile optionally overrides the built-in Busia QC profile.
	ThresholdsFile string
	Thresholds     domain.Thresholds
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	latenessWindow, err := parseDuration("LATENESS_WINDOW", "1h")
	if err != nil {
		return nil, err
	}

	batchSize, err := parseInt("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	workerCount, err := parseInt("WORKER_COUNT", 8)
	if err != nil {
		return nil, err
	}
	historyDepth, err := parseInt("HISTORY_DEPTH", 16)
	if err != nil {
		return nil, err
	}
	minBaseline, err := parseInt("ANOMALY_MIN_BASELINE_DAYS", 5)
	if err != nil {
		return nil, err
	}
	windowDays, err := parseInt("ANOMALY_WINDOW_DAYS", 30)
	if err != nil {
		return nil, err
	}
	maxRetries, err := parseInt("SINK_MAX_RETRIES", 5)
	if err != nil {
		return nil, err
	}
	anomalyThreshold, err := parseFloat("ANOMALY_THRESHOLD", 3.0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:        parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:    envOrDefault("KAFKA_SOURCE_TOPIC", "raw-weather-telemetry"),
		KafkaAggregateTopic: os.Getenv("KAFKA_AGGREGATE_TOPIC"),
		KafkaGroupID:        envOrDefault("KAFKA_GROUP_ID", "weather-qc"),

		PostgresURL: os.Getenv("POSTGRES_URL"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BatchSize:    batchSize,
		WorkerCount:  workerCount,
		HistoryDepth: historyDepth,

		Timezone:       envOrDefault("TIMEZONE", "UTC"),
		LatenessWindow: latenessWindow,

		AnomalyThreshold:       anomalyThreshold,
		AnomalyMinBaselineDays: minBaseline,
		AnomalyWindowDays:      windowDays,

		SinkMaxRetries: maxRetries,

		ThresholdsFile: os.Getenv("QC_THRESHOLDS_FILE"),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.PostgresURL == "" {
		return nil, errors.New("POSTGRES_URL is required")
	}
	if cfg.WorkerCount < 1 {
		return nil, errors.New("WORKER_COUNT must be at least 1")
	}

	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	cfg.Thresholds, err = loadThresholds(cfg.ThresholdsFile)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadThresholds returns the built-in Busia profile, overlaid with values
// from a YAML profile file when one is configured. Keys absent from the file
// keep their defaults.
func loadThresholds(path string) (domain.Thresholds, error) {
	thr := domain.DefaultThresholds()
	if path == "" {
		return thr, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return thr, fmt.Errorf("read thresholds file: %w", err)
	}
	if err := yaml.Unmarshal(data, &thr); err != nil {
		return thr, fmt.Errorf("parse thresholds file %s: %w", path, err)
	}

	if thr.TimeGapMinMinutes >= thr.TimeGapMaxMinutes {
		return thr, fmt.Errorf("thresholds file %s: time gap bounds inverted", path)
	}
	if thr.ExpectedReadingsPerDay <= 0 {
		return thr, fmt.Errorf("thresholds file %s: expected_readings_per_day must be positive", path)
	}
	return thr, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}
