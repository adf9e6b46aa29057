// Package timerwheel implements a hashed timing wheel for single threaded
// deadline scheduling. Resolution is fixed at construction; expiry handlers
// run on the polling goroutine.
package timerwheel

import (
	"fmt"
	"time"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/errors"
)

// TimerHandler is invoked on the polling goroutine when a timer expires.
type TimerHandler func(id int64)

type timer struct {
	id       int64
	deadline int64
	rounds   int64
	active   bool
}

// Wheel schedules deadline callbacks with tick granularity. It is not safe
// for concurrent use; the owning agent schedules and polls from one
// goroutine.
type Wheel struct {
	tickDuration int64
	startTime    int64
	currentTick  int64
	tickMask     int64

	slots  [][]*timer
	byID   map[int64]*timer
	nextID int64

	handler TimerHandler
}

// NewWheel creates a wheel of numSlots entries spinning at tickDuration.
// numSlots must be a power of two.
func NewWheel(startTime time.Time, tickDuration time.Duration, numSlots int, handler TimerHandler) (*Wheel, error) {
	if !concurrent.IsPowerOfTwo(int64(numSlots)) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("slot count %d must be a power of two", numSlots),
			"timerwheel", "NewWheel", "validate slots")
	}
	if tickDuration <= 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("tick duration %v must be positive", tickDuration),
			"timerwheel", "NewWheel", "validate tick")
	}

	return &Wheel{
		tickDuration: tickDuration.Nanoseconds(),
		startTime:    startTime.UnixNano(),
		tickMask:     int64(numSlots - 1),
		slots:        make([][]*timer, numSlots),
		byID:         make(map[int64]*timer),
		handler:      handler,
	}, nil
}

// ScheduleAt registers a timer that expires at deadline and returns its id.
// Deadlines in the past fire on the next poll.
func (w *Wheel) ScheduleAt(deadline time.Time) int64 {
	deadlineNanos := deadline.UnixNano()
	ticksToGo := (deadlineNanos - w.currentTickTime()) / w.tickDuration
	if ticksToGo < 0 {
		ticksToGo = 0
	}

	w.nextID++
	t := &timer{
		id:       w.nextID,
		deadline: deadlineNanos,
		rounds:   ticksToGo / int64(len(w.slots)),
		active:   true,
	}
	slot := (w.currentTick + ticksToGo) & w.tickMask
	w.slots[slot] = append(w.slots[slot], t)
	w.byID[t.id] = t
	return t.id
}

// Cancel deactivates a timer. Cancelling an unknown or expired id is a no-op
// and returns false.
func (w *Wheel) Cancel(id int64) bool {
	t, ok := w.byID[id]
	if !ok || !t.active {
		return false
	}
	t.active = false
	delete(w.byID, id)
	return true
}

// Poll advances the wheel up to now, firing expired timers. It returns the
// number of timers fired.
func (w *Wheel) Poll(now time.Time) int {
	nowNanos := now.UnixNano()
	expired := 0

	for w.currentTickTime() <= nowNanos {
		slot := w.currentTick & w.tickMask
		entries := w.slots[slot]
		remaining := entries[:0]

		for _, t := range entries {
			switch {
			case !t.active:
				// dropped by Cancel
			case t.rounds > 0:
				t.rounds--
				remaining = append(remaining, t)
			default:
				t.active = false
				delete(w.byID, t.id)
				w.handler(t.id)
				expired++
			}
		}
		for i := len(remaining); i < len(entries); i++ {
			entries[i] = nil
		}
		w.slots[slot] = remaining
		w.currentTick++
	}

	return expired
}

// TimerCount returns the number of scheduled, unexpired timers.
func (w *Wheel) TimerCount() int {
	return len(w.byID)
}

// TickDuration returns the wheel resolution.
func (w *Wheel) TickDuration() time.Duration {
	return time.Duration(w.tickDuration)
}

func (w *Wheel) currentTickTime() int64 {
	return w.startTime + (w.currentTick+1)*w.tickDuration
}
