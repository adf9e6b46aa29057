package driver

import (
	"math"
	"math/rand"
	"time"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/concurrent/logbuffer"
)

// NakHandler sends a NAK for the gap [termOffset, termOffset+length) in
// the given term.
type NakHandler func(termID, termOffset, length int32)

// FeedbackDelayGenerator picks the delay before NAKing a detected gap.
type FeedbackDelayGenerator interface {
	Generate() time.Duration
}

// StaticDelayGenerator returns a fixed delay. Used on unicast channels
// where only one receiver can NAK.
type StaticDelayGenerator struct {
	Delay time.Duration
}

func (g StaticDelayGenerator) Generate() time.Duration { return g.Delay }

// OptimalMulticastDelayGenerator spreads NAKs from a receiver group over
// a randomized backoff so the whole group does not NAK the same gap at
// once. The mean shrinks as the expected group grows.
type OptimalMulticastDelayGenerator struct {
	maxBackoff time.Duration
	mean       time.Duration
	rng        *rand.Rand
}

func NewOptimalMulticastDelayGenerator(maxBackoff time.Duration, groupSize int) *OptimalMulticastDelayGenerator {
	if groupSize < 2 {
		groupSize = 2
	}
	return &OptimalMulticastDelayGenerator{
		maxBackoff: maxBackoff,
		mean:       time.Duration(float64(maxBackoff) / math.Log(float64(groupSize))),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *OptimalMulticastDelayGenerator) Generate() time.Duration {
	d := time.Duration(g.rng.ExpFloat64() * float64(g.mean))
	if d > g.maxBackoff {
		d = g.maxBackoff
	}
	return d
}

type trackedGap struct {
	termID     int32
	termOffset int32
	length     int32
}

// LossDetector scans the rebuild window of an image for gaps and NAKs
// the first one found once its feedback delay expires. A gap that fills
// or changes before the deadline cancels the pending NAK.
type LossDetector struct {
	delayGenerator FeedbackDelayGenerator
	nakHandler     NakHandler

	activeGap trackedGap
	gapActive bool
	deadline  time.Time
}

func NewLossDetector(delayGenerator FeedbackDelayGenerator, nakHandler NakHandler) *LossDetector {
	return &LossDetector{
		delayGenerator: delayGenerator,
		nakHandler:     nakHandler,
	}
}

// Scan looks for the first gap between rebuildOffset and hwmOffset in the
// term and arms or fires the NAK timer. It returns the offset rebuilding
// can advance to, the contiguous prefix before any gap.
func (d *LossDetector) Scan(termBuffer *concurrent.AtomicBuffer, termID, rebuildOffset, hwmOffset int32, now time.Time) int32 {
	var found *trackedGap
	gapStart := logbuffer.ScanForGap(termBuffer, termID, rebuildOffset, hwmOffset,
		func(gapTermID, gapOffset, gapLength int32) {
			found = &trackedGap{termID: gapTermID, termOffset: gapOffset, length: gapLength}
		})

	if found == nil {
		d.gapActive = false
		return hwmOffset
	}
	limit := gapStart

	if !d.gapActive || *found != d.activeGap {
		d.activeGap = *found
		d.gapActive = true
		d.deadline = now.Add(d.delayGenerator.Generate())
		return limit
	}

	if !now.Before(d.deadline) {
		d.nakHandler(d.activeGap.termID, d.activeGap.termOffset, d.activeGap.length)
		d.deadline = now.Add(d.delayGenerator.Generate())
	}
	return limit
}

// OnRebuildAdvance clears any pending NAK once rebuilding moves past the
// tracked gap.
func (d *LossDetector) OnRebuildAdvance(termID, rebuildOffset int32) {
	if d.gapActive && (termID != d.activeGap.termID || rebuildOffset > d.activeGap.termOffset) {
		d.gapActive = false
	}
}
