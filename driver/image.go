package driver

import (
	"net"
	"time"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/concurrent/logbuffer"
	"github.com/chris-numeus/aeron/counters"
	"github.com/chris-numeus/aeron/driver/media"
	"github.com/chris-numeus/aeron/metric"
	"github.com/chris-numeus/aeron/protocol"
)

// ImageState is the lifecycle of a publication image. The Receiver moves
// an image to inactive on liveness timeout; the Conductor lingers it so
// subscribers can drain, then deletes it.
type ImageState int32

const (
	ImageInit ImageState = iota
	ImageActive
	ImageInactive
	ImageLinger
)

// ImageParams collects everything needed to stand up a publication image.
type ImageParams struct {
	CorrelationID int64
	SessionID     int32
	StreamID      int32
	InitialTermID int32
	ActiveTermID  int32
	TermOffset    int32

	Log         *RawLog
	Endpoint    *media.ReceiveChannelEndpoint
	ControlAddr *net.UDPAddr

	HwmPosition         *counters.Position
	SubscriberPositions []*counters.Position

	InitialWindowLength  int32
	StatusMessageTimeout time.Duration
	DelayGenerator       FeedbackDelayGenerator

	Metrics *metric.Metrics
}

// PublicationImage is the receive side of one remote stream: it rebuilds
// the term log from incoming data frames, tracks the high-water mark,
// NAKs gaps and reports consumption back with status messages. Only the
// Receiver agent touches its mutable state.
type PublicationImage struct {
	correlationID int64
	sessionID     int32
	streamID      int32
	initialTermID int32
	termLength    int32
	bitsToShift   uint

	log         *RawLog
	endpoint    *media.ReceiveChannelEndpoint
	controlAddr *net.UDPAddr

	hwmPosition         *counters.Position
	subscriberPositions []*counters.Position
	rebuildPosition     int64

	lossDetector *LossDetector

	windowLength   int32
	smTimeout      time.Duration
	lastSMTime     time.Time
	lastSMPosition int64

	state         ImageState
	lastFrameTime time.Time
	inactiveSince time.Time

	frame   [media.ReceiveBufferLength]byte
	metrics *metric.Metrics
}

func NewPublicationImage(p ImageParams) *PublicationImage {
	termLength := p.Log.TermLength()

	window := p.InitialWindowLength
	if half := termLength / 2; window > half {
		window = half
	}

	startPosition := computePosition(p.ActiveTermID, p.TermOffset, p.InitialTermID,
		positionBitsToShift(termLength))
	p.HwmPosition.Set(startPosition)
	for _, sub := range p.SubscriberPositions {
		sub.Set(startPosition)
	}

	img := &PublicationImage{
		correlationID:       p.CorrelationID,
		sessionID:           p.SessionID,
		streamID:            p.StreamID,
		initialTermID:       p.InitialTermID,
		termLength:          termLength,
		bitsToShift:         positionBitsToShift(termLength),
		log:                 p.Log,
		endpoint:            p.Endpoint,
		controlAddr:         p.ControlAddr,
		hwmPosition:         p.HwmPosition,
		subscriberPositions: p.SubscriberPositions,
		rebuildPosition:     startPosition,
		windowLength:        window,
		smTimeout:           p.StatusMessageTimeout,
		lastSMPosition:      startPosition,
		state:               ImageInit,
		metrics:             p.Metrics,
	}
	img.lossDetector = NewLossDetector(p.DelayGenerator, img.sendNak)
	return img
}

func (img *PublicationImage) CorrelationID() int64 { return img.correlationID }

func (img *PublicationImage) SessionID() int32 { return img.sessionID }

func (img *PublicationImage) StreamID() int32 { return img.streamID }

func (img *PublicationImage) State() ImageState { return img.state }

// LastFrameTime returns when data was last heard from the publisher.
func (img *PublicationImage) LastFrameTime() time.Time { return img.lastFrameTime }

// InactiveSince returns when the image left the active state.
func (img *PublicationImage) InactiveSince() time.Time { return img.inactiveSince }

// HwmPosition returns the highest position observed on the wire.
func (img *PublicationImage) HwmPosition() int64 { return img.hwmPosition.Get() }

// RebuildPosition returns the contiguously rebuilt position.
func (img *PublicationImage) RebuildPosition() int64 { return img.rebuildPosition }

// Activate marks the image live once its resources are wired.
func (img *PublicationImage) Activate(now time.Time) {
	img.state = ImageActive
	img.lastFrameTime = now
	img.lastSMTime = time.Time{}
}

// Deactivate marks the image inactive; the Conductor lingers and removes
// it.
func (img *PublicationImage) Deactivate(now time.Time) {
	if img.state == ImageActive || img.state == ImageInit {
		img.state = ImageInactive
		img.inactiveSince = now
	}
}

// BeginLinger holds a dead image so subscribers can drain the rebuilt
// frames before the log is deleted.
func (img *PublicationImage) BeginLinger(now time.Time) {
	img.state = ImageLinger
	img.inactiveSince = now
}

// OnDataFrame folds one data or padding frame into the log. A zero frame
// length is a heartbeat: it refreshes liveness and the high-water mark
// without inserting anything.
func (img *PublicationImage) OnDataFrame(frame []byte, now time.Time) {
	var h protocol.DataHeader
	h.Wrap(frame, 0)

	termID := h.TermID()
	termOffset := h.TermOffset()
	frameLength := h.FrameLength()

	position := computePosition(termID, termOffset, img.initialTermID, img.bitsToShift)
	img.lastFrameTime = now

	if frameLength <= 0 {
		img.hwmPosition.ProposeMax(position)
		return
	}

	index := logbuffer.IndexByTermCount(termID - img.initialTermID)
	logbuffer.Insert(img.log.Term(index), termOffset, frame)

	alignedLength := concurrent.AlignInt32(frameLength, protocol.FrameAlignment)
	img.hwmPosition.ProposeMax(position + int64(alignedLength))

	if img.metrics != nil {
		img.metrics.RecordFrameReceived(protocol.TypeName(h.Type()), len(frame))
	}
}

// Poll advances the rebuild scan and sends a status message when the
// cadence calls for one. The Receiver invokes it every duty cycle.
func (img *PublicationImage) Poll(now time.Time) int {
	if img.state != ImageActive {
		return 0
	}
	workCount := img.rebuild(now)
	workCount += img.sendStatusMessageIfNeeded(now)
	return workCount
}

// rebuild scans [rebuildPosition, hwm) of the current term for gaps,
// advancing past the contiguous prefix. Reaching the end of a term moves
// the scan into the next partition.
func (img *PublicationImage) rebuild(now time.Time) int {
	hwm := img.hwmPosition.Get()
	if hwm <= img.rebuildPosition {
		return 0
	}

	termID := termIDFromPosition(img.rebuildPosition, img.initialTermID, img.bitsToShift)
	termOffset := termOffsetFromPosition(img.rebuildPosition, img.termLength)

	hwmOffset := int64(termOffset) + (hwm - img.rebuildPosition)
	if hwmOffset > int64(img.termLength) {
		hwmOffset = int64(img.termLength)
	}

	index := logbuffer.IndexByTermCount(termID - img.initialTermID)
	newOffset := img.lossDetector.Scan(img.log.Term(index), termID, termOffset, int32(hwmOffset), now)

	advanced := newOffset - termOffset
	if advanced <= 0 {
		return 0
	}
	img.rebuildPosition += int64(advanced)
	img.lossDetector.OnRebuildAdvance(termID, newOffset)
	return 1
}

// sendStatusMessageIfNeeded reports consumption when the timeout expires
// or a quarter of the window has been consumed since the last report.
func (img *PublicationImage) sendStatusMessageIfNeeded(now time.Time) int {
	position := img.minSubscriberPosition()
	threshold := int64(img.windowLength / 4)

	if now.Sub(img.lastSMTime) < img.smTimeout && position-img.lastSMPosition < threshold {
		return 0
	}

	img.sendStatusMessage(position)
	img.lastSMTime = now
	img.lastSMPosition = position
	return 1
}

func (img *PublicationImage) minSubscriberPosition() int64 {
	if len(img.subscriberPositions) == 0 {
		return img.rebuildPosition
	}
	min := img.subscriberPositions[0].Get()
	for _, p := range img.subscriberPositions[1:] {
		if v := p.Get(); v < min {
			min = v
		}
	}
	return min
}

func (img *PublicationImage) sendStatusMessage(position int64) {
	var sm protocol.StatusMessage
	sm.Wrap(img.frame[:protocol.SMFrameLength], 0)
	sm.SetFrameLength(protocol.SMFrameLength)
	sm.SetVersion(protocol.CurrentVersion)
	sm.SetFlags(0)
	sm.SetType(protocol.TypeSM)
	sm.SetTermOffset(0)
	sm.SetSessionID(img.sessionID)
	sm.SetStreamID(img.streamID)
	sm.SetTermID(0)
	sm.SetConsumptionTermID(termIDFromPosition(position, img.initialTermID, img.bitsToShift))
	sm.SetConsumptionTermOffset(termOffsetFromPosition(position, img.termLength))
	sm.SetReceiverWindow(img.windowLength)

	if n, err := img.endpoint.SendTo(img.frame[:protocol.SMFrameLength], img.controlAddr); err == nil && img.metrics != nil {
		img.metrics.RecordFrameSent(protocol.TypeName(protocol.TypeSM), n)
	}
}

func (img *PublicationImage) sendNak(termID, termOffset, length int32) {
	var nak protocol.NakHeader
	nak.Wrap(img.frame[:protocol.NakFrameLength], 0)
	nak.SetFrameLength(protocol.NakFrameLength)
	nak.SetVersion(protocol.CurrentVersion)
	nak.SetFlags(0)
	nak.SetType(protocol.TypeNak)
	nak.SetTermOffset(0)
	nak.SetSessionID(img.sessionID)
	nak.SetStreamID(img.streamID)
	nak.SetTermID(termID)
	nak.SetGapOffset(termOffset)
	nak.SetGapLength(length)

	if _, err := img.endpoint.SendTo(img.frame[:protocol.NakFrameLength], img.controlAddr); err == nil && img.metrics != nil {
		img.metrics.RecordNakSent()
	}
}

// Close unmaps the image's log.
func (img *PublicationImage) Close() error {
	return img.log.Close()
}
