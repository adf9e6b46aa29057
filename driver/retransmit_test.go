package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type retransmitRecord struct {
	termID     int32
	termOffset int32
	length     int32
}

func newRecordingHandler(delay, linger time.Duration, max int) (*RetransmitHandler, *[]retransmitRecord) {
	sent := &[]retransmitRecord{}
	h := NewRetransmitHandler(delay, linger, max, func(termID, termOffset, length int32) {
		*sent = append(*sent, retransmitRecord{termID, termOffset, length})
	})
	return h, sent
}

func TestRetransmitImmediateWhenNoDelay(t *testing.T) {
	h, sent := newRecordingHandler(0, 60*time.Millisecond, 16)
	now := time.Now()

	h.OnNak(7, 1024, 256, now)

	assert.Equal(t, []retransmitRecord{{7, 1024, 256}}, *sent)
}

func TestRetransmitDelayedUntilDeadline(t *testing.T) {
	h, sent := newRecordingHandler(60*time.Millisecond, 60*time.Millisecond, 16)
	now := time.Now()

	h.OnNak(7, 1024, 256, now)
	assert.Empty(t, *sent)

	h.Poll(now.Add(30 * time.Millisecond))
	assert.Empty(t, *sent)

	h.Poll(now.Add(61 * time.Millisecond))
	assert.Equal(t, []retransmitRecord{{7, 1024, 256}}, *sent)
}

func TestRetransmitNakIgnoredWhileLingering(t *testing.T) {
	h, sent := newRecordingHandler(0, 60*time.Millisecond, 16)
	now := time.Now()

	h.OnNak(7, 1024, 256, now)
	h.OnNak(7, 1024, 256, now.Add(10*time.Millisecond))
	h.OnNak(7, 1024, 256, now.Add(20*time.Millisecond))

	assert.Len(t, *sent, 1)
}

func TestRetransmitNakHonoredAfterLingerExpires(t *testing.T) {
	h, sent := newRecordingHandler(0, 60*time.Millisecond, 16)
	now := time.Now()

	h.OnNak(7, 1024, 256, now)
	h.Poll(now.Add(61 * time.Millisecond))
	h.OnNak(7, 1024, 256, now.Add(70*time.Millisecond))

	assert.Len(t, *sent, 2)
}

func TestRetransmitCapsConcurrentGaps(t *testing.T) {
	h, sent := newRecordingHandler(0, time.Minute, 2)
	now := time.Now()

	h.OnNak(7, 0, 256, now)
	h.OnNak(7, 512, 256, now)
	h.OnNak(7, 1024, 256, now)

	assert.Len(t, *sent, 2)
}

func TestRetransmitDistinctGapsTrackedIndependently(t *testing.T) {
	h, sent := newRecordingHandler(60*time.Millisecond, 60*time.Millisecond, 16)
	now := time.Now()

	h.OnNak(7, 0, 256, now)
	h.OnNak(8, 0, 256, now)
	h.Poll(now.Add(61 * time.Millisecond))

	assert.Len(t, *sent, 2)
}

func TestRetransmitPollReportsWork(t *testing.T) {
	h, _ := newRecordingHandler(10*time.Millisecond, 10*time.Millisecond, 16)
	now := time.Now()

	h.OnNak(7, 0, 256, now)
	assert.Equal(t, 0, h.Poll(now))
	assert.Equal(t, 1, h.Poll(now.Add(11*time.Millisecond)))
	assert.Equal(t, 1, h.Poll(now.Add(22*time.Millisecond)))
	assert.Equal(t, 0, h.Poll(now.Add(33*time.Millisecond)))
}
