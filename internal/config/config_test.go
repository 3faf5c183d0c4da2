package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_URL", "postgres://qc:qc@localhost:5432/weather")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "raw-weather-telemetry", cfg.KafkaSourceTopic)
	assert.Empty(t, cfg.KafkaAggregateTopic)
	assert.Equal(t, "weather-qc", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, 16, cfg.HistoryDepth)
	assert.Equal(t, time.Hour, cfg.LatenessWindow)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 3.0, cfg.AnomalyThreshold)
	assert.Equal(t, 5, cfg.AnomalyMinBaselineDays)
	assert.Equal(t, 30, cfg.AnomalyWindowDays)
	assert.Equal(t, 5, cfg.SinkMaxRetries)

	// Built-in Busia profile.
	assert.Equal(t, 45.0, cfg.Thresholds.TairMaxPhy)
	assert.Equal(t, 96.0, cfg.Thresholds.ExpectedReadingsPerDay)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "telemetry.level0")
	t.Setenv("KAFKA_AGGREGATE_TOPIC", "telemetry.daily")
	t.Setenv("TIMEZONE", "Africa/Nairobi")
	t.Setenv("LATENESS_WINDOW", "30m")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("ANOMALY_THRESHOLD", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "telemetry.level0", cfg.KafkaSourceTopic)
	assert.Equal(t, "telemetry.daily", cfg.KafkaAggregateTopic)
	assert.Equal(t, "Africa/Nairobi", cfg.Location.String())
	assert.Equal(t, 30*time.Minute, cfg.LatenessWindow)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 2.5, cfg.AnomalyThreshold)
}

func TestLoadValidation(t *testing.T) {
	t.Run("missing postgres url", func(t *testing.T) {
		t.Setenv("POSTGRES_URL", "")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "POSTGRES_URL")
	})

	t.Run("zero workers", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("WORKER_COUNT", "0")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "WORKER_COUNT")
	})

	t.Run("bad lateness window", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("LATENESS_WINDOW", "soon")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("negative batch size", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("BATCH_SIZE", "-5")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("unknown timezone", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("TIMEZONE", "Mars/Olympus_Mons")
		_, err := Load()
		require.Error(t, err)
	})
}

func TestLoadThresholdsFile(t *testing.T) {
	writeProfile := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "thresholds.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	t.Run("partial overlay keeps defaults", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("QC_THRESHOLDS_FILE", writeProfile(t, "tair_max_phy: 50.0\nrain_max_15min: 60.0\n"))

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 50.0, cfg.Thresholds.TairMaxPhy)
		assert.Equal(t, 60.0, cfg.Thresholds.RainMax15Min)
		// Untouched keys keep the Busia defaults.
		assert.Equal(t, 10.0, cfg.Thresholds.TairMinPhy)
		assert.Equal(t, 0.8, cfg.Thresholds.MinDailyAvail)
	})

	t.Run("inverted gap bounds rejected", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("QC_THRESHOLDS_FILE", writeProfile(t, "time_gap_min_minutes: 20\ntime_gap_max_minutes: 10\n"))

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "time gap bounds")
	})

	t.Run("missing file", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("QC_THRESHOLDS_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("QC_THRESHOLDS_FILE", writeProfile(t, "tair_max_phy: [not a number\n"))

		_, err := Load()
		require.Error(t, err)
	})
}
