package driver

import (
	"net"
	"time"

	"github.com/chris-numeus/aeron/protocol"
)

// ReceiverTimeout evicts a multicast receiver that has not sent a status
// message recently.
const ReceiverTimeout = 2 * time.Second

// FlowControl computes the position limit a publication may send up to,
// from the status messages its receivers report.
type FlowControl interface {
	// OnStatusMessage folds one receiver report into the limit.
	OnStatusMessage(sm *protocol.StatusMessage, src *net.UDPAddr, initialTermID int32, bitsToShift uint, now time.Time) int64

	// OnIdle re-evaluates the limit when no status messages arrive, so
	// eviction of dead receivers still lowers it.
	OnIdle(now time.Time) int64

	// HasReceivers reports whether any receiver is currently tracked.
	HasReceivers() bool
}

// UnicastFlowControl tracks the single receiver of a unicast channel. The
// limit is its consumption position plus the window it advertised.
type UnicastFlowControl struct {
	limit        int64
	receiverSeen bool
}

func NewUnicastFlowControl() *UnicastFlowControl {
	return &UnicastFlowControl{}
}

func (fc *UnicastFlowControl) OnStatusMessage(sm *protocol.StatusMessage, _ *net.UDPAddr, initialTermID int32, bitsToShift uint, _ time.Time) int64 {
	position := computePosition(sm.ConsumptionTermID(), sm.ConsumptionTermOffset(), initialTermID, bitsToShift)
	proposed := position + int64(sm.ReceiverWindow())
	if proposed > fc.limit {
		fc.limit = proposed
	}
	fc.receiverSeen = true
	return fc.limit
}

func (fc *UnicastFlowControl) OnIdle(time.Time) int64 { return fc.limit }

func (fc *UnicastFlowControl) HasReceivers() bool { return fc.receiverSeen }

type trackedReceiver struct {
	lastPosition int64
	lastLimit    int64
	lastSeen     time.Time
}

// MinMulticastFlowControl tracks every receiver reporting on a multicast
// channel and limits the publication to the slowest one. Receivers silent
// past ReceiverTimeout are evicted so one dead subscriber does not stall
// the group forever.
type MinMulticastFlowControl struct {
	receivers map[string]*trackedReceiver
	timeout   time.Duration
}

func NewMinMulticastFlowControl() *MinMulticastFlowControl {
	return &MinMulticastFlowControl{
		receivers: make(map[string]*trackedReceiver),
		timeout:   ReceiverTimeout,
	}
}

func (fc *MinMulticastFlowControl) OnStatusMessage(sm *protocol.StatusMessage, src *net.UDPAddr, initialTermID int32, bitsToShift uint, now time.Time) int64 {
	position := computePosition(sm.ConsumptionTermID(), sm.ConsumptionTermOffset(), initialTermID, bitsToShift)
	key := src.String()

	r, ok := fc.receivers[key]
	if !ok {
		r = &trackedReceiver{}
		fc.receivers[key] = r
	}
	if position > r.lastPosition {
		r.lastPosition = position
	}
	r.lastLimit = position + int64(sm.ReceiverWindow())
	r.lastSeen = now

	return fc.minLimit(now)
}

func (fc *MinMulticastFlowControl) OnIdle(now time.Time) int64 {
	return fc.minLimit(now)
}

func (fc *MinMulticastFlowControl) HasReceivers() bool { return len(fc.receivers) > 0 }

func (fc *MinMulticastFlowControl) minLimit(now time.Time) int64 {
	min := int64(-1)
	for key, r := range fc.receivers {
		if now.Sub(r.lastSeen) > fc.timeout {
			delete(fc.receivers, key)
			continue
		}
		if min < 0 || r.lastLimit < min {
			min = r.lastLimit
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

// flowControlFor selects the strategy for a channel at publication creation.
func flowControlFor(multicast bool) FlowControl {
	if multicast {
		return NewMinMulticastFlowControl()
	}
	return NewUnicastFlowControl()
}
