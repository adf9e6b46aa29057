package driver

import (
	"net"
	"time"

	"github.com/chris-numeus/aeron/concurrent/logbuffer"
	"github.com/chris-numeus/aeron/counters"
	"github.com/chris-numeus/aeron/driver/media"
	"github.com/chris-numeus/aeron/metric"
	"github.com/chris-numeus/aeron/protocol"
)

// PublicationParams collects everything needed to stand up a network
// publication. The Conductor fills it and hands the publication to the
// Sender over the command queue.
type PublicationParams struct {
	RegistrationID int64
	SessionID      int32
	StreamID       int32
	InitialTermID  int32
	MTU            int32

	Log      *RawLog
	Endpoint *media.SendChannelEndpoint

	SenderPosition *counters.Position
	PublisherLimit *counters.Position

	FlowControl      FlowControl
	RetransmitDelay  time.Duration
	RetransmitLinger time.Duration
	MaxRetransmits   int

	SetupInterval     time.Duration
	HeartbeatInterval time.Duration
	ReceiverGrace     time.Duration

	Metrics *metric.Metrics
}

// NetworkPublication drives one stream's outbound side: scanning the
// shared term log from the sender position, pacing against the flow
// control limit, and answering SETUP, heartbeat and retransmit duties.
// Only the Sender agent touches its mutable state.
type NetworkPublication struct {
	registrationID int64
	sessionID      int32
	streamID       int32
	initialTermID  int32
	termLength     int32
	mtu            int32
	bitsToShift    uint

	log      *RawLog
	endpoint *media.SendChannelEndpoint

	senderPosition *counters.Position
	publisherLimit *counters.Position

	flowControl FlowControl
	retransmits *RetransmitHandler

	setupInterval     time.Duration
	heartbeatInterval time.Duration
	receiverGrace     time.Duration

	connected         bool
	closed            bool
	setupDeadline     time.Time
	heartbeatDeadline time.Time
	lastReceiverSeen  time.Time

	frame   [media.ReceiveBufferLength]byte
	metrics *metric.Metrics
}

func NewNetworkPublication(p PublicationParams) *NetworkPublication {
	termLength := p.Log.TermLength()
	pub := &NetworkPublication{
		registrationID: p.RegistrationID,
		sessionID:      p.SessionID,
		streamID:       p.StreamID,
		initialTermID:  p.InitialTermID,
		termLength:     termLength,
		mtu:            p.MTU,
		bitsToShift:    positionBitsToShift(termLength),
		log:            p.Log,
		endpoint:       p.Endpoint,
		senderPosition: p.SenderPosition,
		publisherLimit: p.PublisherLimit,
		flowControl:    p.FlowControl,

		setupInterval:     p.SetupInterval,
		heartbeatInterval: p.HeartbeatInterval,
		receiverGrace:     p.ReceiverGrace,
		metrics:           p.Metrics,
	}
	pub.retransmits = NewRetransmitHandler(
		p.RetransmitDelay, p.RetransmitLinger, p.MaxRetransmits, pub.retransmitGap)
	return pub
}

func (p *NetworkPublication) RegistrationID() int64 { return p.registrationID }

func (p *NetworkPublication) SessionID() int32 { return p.sessionID }

func (p *NetworkPublication) StreamID() int32 { return p.streamID }

// SenderPosition returns the position sent up to.
func (p *NetworkPublication) SenderPosition() int64 { return p.senderPosition.Get() }

// IsConnected reports whether a receiver has been heard from and not yet
// timed out.
func (p *NetworkPublication) IsConnected() bool { return p.connected }

// Send performs one duty cycle of outbound work: setup while unconnected,
// data up to the flow control limit, heartbeat when idle, and pending
// retransmits.
func (p *NetworkPublication) Send(now time.Time) int {
	workCount := 0

	senderPos := p.senderPosition.Get()
	activeTermID := termIDFromPosition(senderPos, p.initialTermID, p.bitsToShift)
	termOffset := termOffsetFromPosition(senderPos, p.termLength)

	if !p.connected && !now.Before(p.setupDeadline) {
		p.sendSetup(activeTermID, termOffset)
		p.setupDeadline = now.Add(p.setupInterval)
		workCount++
	}

	available := p.flowControl.OnIdle(now) - senderPos
	if available > 0 {
		maxLength := p.mtu
		if available < int64(maxLength) {
			maxLength = int32(available)
		}

		term := p.log.Term(logbuffer.IndexByTermCount(activeTermID - p.initialTermID))
		batch := logbuffer.ScanOutboundBatch(term, termOffset, maxLength)
		if batch > 0 {
			n, err := p.endpoint.Send(term.Slice(termOffset, batch))
			if err == nil && int32(n) == batch {
				p.senderPosition.Set(senderPos + int64(batch))
				p.heartbeatDeadline = now.Add(p.heartbeatInterval)
				if p.metrics != nil {
					p.metrics.RecordFrameSent(protocol.TypeName(protocol.TypeData), n)
				}
				workCount++
			} else if p.metrics != nil {
				p.metrics.RecordShortSend()
			}
		}
	} else if p.connected && p.metrics != nil {
		p.metrics.RecordFlowControlStall()
	}

	if p.connected && workCount == 0 && !now.Before(p.heartbeatDeadline) {
		p.sendHeartbeat(activeTermID, termOffset)
		p.heartbeatDeadline = now.Add(p.heartbeatInterval)
		workCount++
	}

	workCount += p.retransmits.Poll(now)
	return workCount
}

// OnStatusMessage folds a receiver report into flow control, raises the
// publisher limit and marks the publication connected.
func (p *NetworkPublication) OnStatusMessage(sm *protocol.StatusMessage, src *net.UDPAddr, now time.Time) {
	limit := p.flowControl.OnStatusMessage(sm, src, p.initialTermID, p.bitsToShift, now)
	if limit > p.publisherLimit.Get() {
		p.publisherLimit.Set(limit)
	}
	p.connected = true
	p.lastReceiverSeen = now
}

// OnNak queues a retransmission of the reported gap.
func (p *NetworkPublication) OnNak(nak *protocol.NakHeader, now time.Time) {
	p.retransmits.OnNak(nak.TermID(), nak.GapOffset(), nak.GapLength(), now)
}

// UpdatePublisherLimit re-evaluates the limit so receiver eviction is
// reflected. When every receiver has been silent past the grace period
// the limit is clamped to the sender position and setup frames resume.
func (p *NetworkPublication) UpdatePublisherLimit(now time.Time) int {
	if p.connected && now.Sub(p.lastReceiverSeen) > p.receiverGrace {
		p.connected = false
		p.setupDeadline = now
		senderPos := p.senderPosition.Get()
		if p.publisherLimit.Get() != senderPos {
			p.publisherLimit.Set(senderPos)
		}
		return 1
	}

	limit := p.flowControl.OnIdle(now)
	if p.flowControl.HasReceivers() && limit > p.publisherLimit.Get() {
		p.publisherLimit.Set(limit)
		return 1
	}
	return 0
}

// CleanLog zeroes retired term partitions, at most one pass over the
// partitions, and returns how many were cleaned.
func (p *NetworkPublication) CleanLog() int {
	return p.log.CleanDirtyPartitions()
}

// Close releases the endpoint and unmaps the log. Both the Sender (on
// shutdown) and the Conductor (on linger expiry) may reach here; only the
// first call does the work.
func (p *NetworkPublication) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.endpoint.Close(); err != nil {
		return err
	}
	return p.log.Close()
}

func (p *NetworkPublication) sendSetup(activeTermID, termOffset int32) {
	var h protocol.SetupHeader
	h.Wrap(p.frame[:protocol.SetupFrameLength], 0)
	h.SetFrameLength(protocol.SetupFrameLength)
	h.SetVersion(protocol.CurrentVersion)
	h.SetFlags(0)
	h.SetType(protocol.TypeSetup)
	h.SetTermOffset(termOffset)
	h.SetSessionID(p.sessionID)
	h.SetStreamID(p.streamID)
	h.SetTermID(activeTermID)
	h.SetInitialTermID(p.initialTermID)
	h.SetActiveTermID(activeTermID)
	h.SetTermLength(p.termLength)
	h.SetMTU(p.mtu)

	if n, err := p.endpoint.Send(p.frame[:protocol.SetupFrameLength]); err == nil && p.metrics != nil {
		p.metrics.RecordFrameSent(protocol.TypeName(protocol.TypeSetup), n)
	}
}

// sendHeartbeat emits a header-only data frame at the current position so
// receivers keep their high-water mark and liveness fresh.
func (p *NetworkPublication) sendHeartbeat(activeTermID, termOffset int32) {
	var h protocol.DataHeader
	h.Wrap(p.frame[:protocol.DataHeaderLength], 0)
	h.SetFrameLength(0)
	h.SetVersion(protocol.CurrentVersion)
	h.SetFlags(protocol.FlagsUnfragmented)
	h.SetType(protocol.TypeData)
	h.SetTermOffset(termOffset)
	h.SetSessionID(p.sessionID)
	h.SetStreamID(p.streamID)
	h.SetTermID(activeTermID)
	h.SetReservedValue(0)

	if n, err := p.endpoint.Send(p.frame[:protocol.DataHeaderLength]); err == nil && p.metrics != nil {
		p.metrics.RecordFrameSent(protocol.TypeName(protocol.TypeData), n)
	}
}

// retransmitGap resends committed frames covering [termOffset,
// termOffset+length) in MTU-bounded batches.
func (p *NetworkPublication) retransmitGap(termID, termOffset, length int32) {
	index := logbuffer.IndexByTermCount(termID - p.initialTermID)
	term := p.log.Term(index)

	end := termOffset + length
	if end > p.termLength {
		end = p.termLength
	}

	offset := termOffset
	for offset < end {
		remaining := end - offset
		maxLength := p.mtu
		if remaining < maxLength {
			maxLength = remaining
		}
		batch := logbuffer.ScanOutboundBatch(term, offset, maxLength)
		if batch <= 0 {
			break
		}
		n, err := p.endpoint.Send(term.Slice(offset, batch))
		if err != nil || int32(n) != batch {
			if p.metrics != nil {
				p.metrics.RecordShortSend()
			}
			break
		}
		offset += batch
	}

	if p.metrics != nil {
		p.metrics.RecordRetransmit()
	}
}
