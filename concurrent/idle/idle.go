// Package idle provides the strategies agents use to burn off empty duty
// cycles without pinning a core.
package idle

import (
	"runtime"
	"time"
)

// Strategy decides what to do between duty cycles. Idle is called with the
// work count of the last cycle; zero work escalates the strategy, any work
// resets it.
type Strategy interface {
	Idle(workCount int)
	Reset()
}

// Backoff escalates from spinning through yielding to a doubling park. It is
// the default strategy for all three driver agents.
type Backoff struct {
	maxSpins  int64
	maxYields int64
	minPark   time.Duration
	maxPark   time.Duration

	state  backoffState
	spins  int64
	yields int64
	park   time.Duration
}

type backoffState int

const (
	stateNotIdle backoffState = iota
	stateSpinning
	stateYielding
	stateParking
)

// NewBackoff builds a backoff strategy. Zero arguments select the driver
// defaults of 100 spins, 100 yields and a 10ns to 100us park range.
func NewBackoff(maxSpins, maxYields int64, minPark, maxPark time.Duration) *Backoff {
	if maxSpins <= 0 {
		maxSpins = 100
	}
	if maxYields <= 0 {
		maxYields = 100
	}
	if minPark <= 0 {
		minPark = 10 * time.Nanosecond
	}
	if maxPark <= 0 {
		maxPark = 100 * time.Microsecond
	}
	return &Backoff{
		maxSpins:  maxSpins,
		maxYields: maxYields,
		minPark:   minPark,
		maxPark:   maxPark,
	}
}

func (b *Backoff) Idle(workCount int) {
	if workCount > 0 {
		b.Reset()
		return
	}

	switch b.state {
	case stateNotIdle:
		b.state = stateSpinning
		b.spins = 0
		fallthrough
	case stateSpinning:
		if b.spins < b.maxSpins {
			b.spins++
			return
		}
		b.state = stateYielding
		b.yields = 0
		fallthrough
	case stateYielding:
		if b.yields < b.maxYields {
			b.yields++
			runtime.Gosched()
			return
		}
		b.state = stateParking
		b.park = b.minPark
		fallthrough
	default:
		time.Sleep(b.park)
		b.park *= 2
		if b.park > b.maxPark {
			b.park = b.maxPark
		}
	}
}

func (b *Backoff) Reset() {
	b.state = stateNotIdle
	b.spins = 0
	b.yields = 0
	b.park = b.minPark
}

// Sleeping parks for a fixed period on every empty cycle.
type Sleeping struct {
	Period time.Duration
}

func (s *Sleeping) Idle(workCount int) {
	if workCount == 0 {
		time.Sleep(s.Period)
	}
}

func (s *Sleeping) Reset() {}

// Yielding hands the scheduler a chance on every empty cycle.
type Yielding struct{}

func (Yielding) Idle(workCount int) {
	if workCount == 0 {
		runtime.Gosched()
	}
}

func (Yielding) Reset() {}

// Busy never idles. Useful in tests and latency-critical deployments.
type Busy struct{}

func (Busy) Idle(int) {}
func (Busy) Reset()   {}
