package idle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDefaults(t *testing.T) {
	b := NewBackoff(0, 0, 0, 0)
	assert.Equal(t, int64(100), b.maxSpins)
	assert.Equal(t, int64(100), b.maxYields)
	assert.Equal(t, 10*time.Nanosecond, b.minPark)
	assert.Equal(t, 100*time.Microsecond, b.maxPark)
}

func TestBackoffEscalatesThroughStates(t *testing.T) {
	b := NewBackoff(2, 2, time.Nanosecond, 8*time.Nanosecond)

	b.Idle(0)
	b.Idle(0)
	assert.Equal(t, stateSpinning, b.state)

	b.Idle(0)
	b.Idle(0)
	assert.Equal(t, stateYielding, b.state)

	b.Idle(0)
	assert.Equal(t, stateParking, b.state)
}

func TestBackoffParkDoublesAndCaps(t *testing.T) {
	b := NewBackoff(1, 1, time.Nanosecond, 4*time.Nanosecond)
	for i := 0; i < 10; i++ {
		b.Idle(0)
	}
	assert.Equal(t, stateParking, b.state)
	assert.LessOrEqual(t, b.park, 4*time.Nanosecond)
}

func TestBackoffResetsOnWork(t *testing.T) {
	b := NewBackoff(1, 1, time.Nanosecond, time.Microsecond)
	for i := 0; i < 5; i++ {
		b.Idle(0)
	}
	assert.Equal(t, stateParking, b.state)

	b.Idle(3)
	assert.Equal(t, stateNotIdle, b.state)
}

func TestSleepingIdlesOnlyWhenNoWork(t *testing.T) {
	s := &Sleeping{Period: time.Millisecond}

	begin := time.Now()
	s.Idle(1)
	assert.Less(t, time.Since(begin), time.Millisecond)

	begin = time.Now()
	s.Idle(0)
	assert.GreaterOrEqual(t, time.Since(begin), time.Millisecond)
}

func TestBusyNeverSleeps(t *testing.T) {
	var b Busy
	begin := time.Now()
	for i := 0; i < 1000; i++ {
		b.Idle(0)
	}
	assert.Less(t, time.Since(begin), 100*time.Millisecond)
}
