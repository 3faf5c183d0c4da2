package domain

import "time"

// DeviceHistory is a bounded ring buffer of the most recent readings seen for
// one device, in strictly increasing timestamp order. It backs the gap and
// step checks. History tracks what was seen, not only what was accepted, so
// readings are appended whether or not they passed QC. Not safe for
// concurrent use; each device's history is owned by exactly one worker.
type DeviceHistory struct {
	buf   []SensorReading
	start int // index of oldest entry
	size  int
}

// NewDeviceHistory creates a history retaining at most capacity readings.
// Older entries are evicted in O(1) as new ones arrive.
func NewDeviceHistory(capacity int) *DeviceHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &DeviceHistory{buf: make([]SensorReading, capacity)}
}

// Append adds a reading. It returns false without mutating the history when
// the reading's timestamp is not strictly after the newest entry: duplicates
// and out-of-order arrivals must not corrupt the ordering invariant.
func (h *DeviceHistory) Append(r SensorReading) bool {
	if last := h.Last(); last != nil && !r.Timestamp.After(last.Timestamp) {
		return false
	}

	idx := (h.start + h.size) % len(h.buf)
	h.buf[idx] = r
	if h.size < len(h.buf) {
		h.size++
	} else {
		h.start = (h.start + 1) % len(h.buf)
	}
	return true
}

// Contains reports whether a reading with the given timestamp is retained.
// Kafka redelivery can replay a reading after newer ones have arrived, so
// duplicate detection must look at the whole window, not just the newest
// entry.
func (h *DeviceHistory) Contains(ts time.Time) bool {
	for i := 0; i < h.size; i++ {
		if h.buf[(h.start+i)%len(h.buf)].Timestamp.Equal(ts) {
			return true
		}
	}
	return false
}

// Last returns the newest reading, or nil when the history is empty. The
// returned pointer references a copy; mutating it does not affect the buffer.
func (h *DeviceHistory) Last() *SensorReading {
	if h.size == 0 {
		return nil
	}
	r := h.buf[(h.start+h.size-1)%len(h.buf)]
	return &r
}

// Len returns the number of retained readings.
func (h *DeviceHistory) Len() int { return h.size }

// Readings returns the retained readings oldest first.
func (h *DeviceHistory) Readings() []SensorReading {
	out := make([]SensorReading, 0, h.size)
	for i := 0; i < h.size; i++ {
		out = append(out, h.buf[(h.start+i)%len(h.buf)])
	}
	return out
}
