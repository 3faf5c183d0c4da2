package kafka

import (
	"encoding/json"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LubangaD/lorowandatapipiline/internal/domain"
)

func TestMapMessageToRawEvent(t *testing.T) {
	msgTime := time.Date(2024, 3, 11, 6, 15, 2, 0, time.UTC)
	msg := kafkago.Message{
		Topic:     "raw-weather-telemetry",
		Partition: 3,
		Offset:    42,
		Key:       []byte("afrisense-busia-001"),
		Value:     []byte(`{"reading_id":"rd-1"}`),
		Time:      msgTime,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("lorawan-collector")},
			{Key: "schema", Value: []byte("v1")},
		},
	}

	event := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("afrisense-busia-001"), event.Key)
	assert.Equal(t, []byte(`{"reading_id":"rd-1"}`), event.Value)
	assert.Equal(t, "raw-weather-telemetry", event.Topic)
	assert.Equal(t, 3, event.Partition)
	assert.Equal(t, int64(42), event.Offset)
	assert.Equal(t, msgTime, event.Timestamp)
	assert.Equal(t, map[string]string{"source": "lorawan-collector", "schema": "v1"}, event.Headers)
	assert.Nil(t, event.Commit)
}

func TestMapMessageToRawEventNoHeaders(t *testing.T) {
	event := mapMessageToRawEvent(kafkago.Message{Value: []byte("{}")})
	assert.Empty(t, event.Headers)
}

func TestSerializeToMessage(t *testing.T) {
	processedAt := time.Date(2024, 3, 12, 1, 5, 0, 0, time.UTC)
	agg := domain.DailyAggregate{
		DeviceID:            "afrisense-busia-001",
		Date:                "2024-03-11",
		DateEpoch:           1710115200,
		MaxTemp:             27.4,
		MinTemp:             17.1,
		AvgTemp:             21.8,
		MaxWind:             6.2,
		TotalPrecip:         4.6,
		AvgHumidity:         74.0,
		RainOccurred:        true,
		RainChance:          0.25,
		ValidCount:          92,
		ValidFraction:       0.9583,
		RainDailyQC:         domain.OutcomeOK,
		AnomalyScore:        1.2,
		IsAnomaly:           false,
		ProcessingTimestamp: processedAt,
	}

	msg, err := serializeToMessage(agg)
	require.NoError(t, err)

	assert.Equal(t, []byte("afrisense-busia-001|2024-03-11"), msg.Key)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "afrisense-busia-001", headers["device_id"])
	assert.Equal(t, "2024-03-11", headers["date"])
	assert.Equal(t, "false", headers["is_anomaly"])
	assert.Equal(t, "2024-03-12T01:05:00Z", headers["processed_at"])

	var decoded domain.DailyAggregate
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, agg, decoded)
}

func TestSerializeToMessageAnomalyHeader(t *testing.T) {
	msg, err := serializeToMessage(domain.DailyAggregate{
		DeviceID:  "afrisense-busia-002",
		Date:      "2024-03-11",
		IsAnomaly: true,
	})
	require.NoError(t, err)

	found := false
	for _, h := range msg.Headers {
		if h.Key == "is_anomaly" {
			found = true
			assert.Equal(t, "true", string(h.Value))
		}
	}
	assert.True(t, found)
}
