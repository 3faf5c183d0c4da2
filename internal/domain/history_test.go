package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyReading(id int, ts time.Time) SensorReading {
	return SensorReading{
		ReadingID: fmt.Sprintf("rd-%03d", id),
		DeviceID:  "afrisense-busia-001",
		Timestamp: ts,
	}
}

func TestDeviceHistory(t *testing.T) {
	base := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	t.Run("empty history", func(t *testing.T) {
		h := NewDeviceHistory(4)
		assert.Nil(t, h.Last())
		assert.Equal(t, 0, h.Len())
	})

	t.Run("append and last", func(t *testing.T) {
		h := NewDeviceHistory(4)
		require.True(t, h.Append(historyReading(1, base)))
		require.True(t, h.Append(historyReading(2, base.Add(15*time.Minute))))

		last := h.Last()
		require.NotNil(t, last)
		assert.Equal(t, "rd-002", last.ReadingID)
		assert.Equal(t, 2, h.Len())
	})

	t.Run("last returns a copy", func(t *testing.T) {
		h := NewDeviceHistory(4)
		require.True(t, h.Append(historyReading(1, base)))

		last := h.Last()
		last.ReadingID = "mutated"
		assert.Equal(t, "rd-001", h.Last().ReadingID)
	})

	t.Run("rejects duplicate timestamp", func(t *testing.T) {
		h := NewDeviceHistory(4)
		require.True(t, h.Append(historyReading(1, base)))
		assert.False(t, h.Append(historyReading(2, base)))
		assert.Equal(t, 1, h.Len())
	})

	t.Run("rejects out-of-order timestamp", func(t *testing.T) {
		h := NewDeviceHistory(4)
		require.True(t, h.Append(historyReading(1, base.Add(time.Hour))))
		assert.False(t, h.Append(historyReading(2, base)))
		assert.Equal(t, "rd-001", h.Last().ReadingID)
	})

	t.Run("contains scans the whole window", func(t *testing.T) {
		h := NewDeviceHistory(4)
		require.True(t, h.Append(historyReading(1, base)))
		require.True(t, h.Append(historyReading(2, base.Add(15*time.Minute))))

		assert.True(t, h.Contains(base), "older retained entry")
		assert.True(t, h.Contains(base.Add(15*time.Minute)), "newest entry")
		assert.False(t, h.Contains(base.Add(30*time.Minute)))
	})

	t.Run("contains forgets evicted entries", func(t *testing.T) {
		h := NewDeviceHistory(2)
		for i := 1; i <= 3; i++ {
			require.True(t, h.Append(historyReading(i, base.Add(time.Duration(i)*15*time.Minute))))
		}

		assert.False(t, h.Contains(base.Add(15*time.Minute)))
		assert.True(t, h.Contains(base.Add(30*time.Minute)))
	})

	t.Run("ring evicts oldest at capacity", func(t *testing.T) {
		h := NewDeviceHistory(3)
		for i := 1; i <= 5; i++ {
			require.True(t, h.Append(historyReading(i, base.Add(time.Duration(i)*15*time.Minute))))
		}

		assert.Equal(t, 3, h.Len())
		got := h.Readings()
		require.Len(t, got, 3)
		assert.Equal(t, "rd-003", got[0].ReadingID)
		assert.Equal(t, "rd-004", got[1].ReadingID)
		assert.Equal(t, "rd-005", got[2].ReadingID)
		assert.Equal(t, "rd-005", h.Last().ReadingID)
	})
}
