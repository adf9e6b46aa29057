package driver

import (
	"log/slog"
	"net"

	"github.com/chris-numeus/aeron/concurrent/spsc"
	"github.com/chris-numeus/aeron/driver/media"
)

// Cross-agent command queue depth when none is configured. Control plane
// traffic is sparse; a full queue means an agent has stalled and the
// command is dropped with a log.
const defaultCommandQueueCapacity = 1024

func queueCapacity(capacity int) int {
	if capacity <= 0 {
		return defaultCommandQueueCapacity
	}
	return capacity
}

type senderCmdOp int

const (
	senderAddPublication senderCmdOp = iota
	senderRemovePublication
)

type senderCommand struct {
	op             senderCmdOp
	publication    *NetworkPublication
	registrationID int64
}

// SenderProxy posts commands from the Conductor onto the Sender's queue.
type SenderProxy struct {
	commands *spsc.Queue[senderCommand]
	logger   *slog.Logger
}

func NewSenderProxy(capacity int, logger *slog.Logger) *SenderProxy {
	return &SenderProxy{
		commands: spsc.NewQueue[senderCommand](queueCapacity(capacity)),
		logger:   logger,
	}
}

func (p *SenderProxy) AddPublication(pub *NetworkPublication) {
	p.offer(&senderCommand{op: senderAddPublication, publication: pub})
}

func (p *SenderProxy) RemovePublication(registrationID int64) {
	p.offer(&senderCommand{op: senderRemovePublication, registrationID: registrationID})
}

func (p *SenderProxy) offer(cmd *senderCommand) {
	if err := p.commands.Offer(cmd); err != nil {
		p.logger.Error("sender command dropped", "error", err)
	}
}

type receiverCmdOp int

const (
	receiverAddSubscription receiverCmdOp = iota
	receiverRemoveSubscription
	receiverNewImage
	receiverRemoveImage
)

type receiverCommand struct {
	op          receiverCmdOp
	destination *media.Destination
	streamID    int32
	sessionID   int32
	image       *PublicationImage
}

// ReceiverProxy posts commands from the Conductor onto the Receiver's queue.
type ReceiverProxy struct {
	commands *spsc.Queue[receiverCommand]
	logger   *slog.Logger
}

func NewReceiverProxy(capacity int, logger *slog.Logger) *ReceiverProxy {
	return &ReceiverProxy{
		commands: spsc.NewQueue[receiverCommand](queueCapacity(capacity)),
		logger:   logger,
	}
}

func (p *ReceiverProxy) AddSubscription(d *media.Destination, streamID int32) {
	p.offer(&receiverCommand{op: receiverAddSubscription, destination: d, streamID: streamID})
}

func (p *ReceiverProxy) RemoveSubscription(d *media.Destination, streamID int32) {
	p.offer(&receiverCommand{op: receiverRemoveSubscription, destination: d, streamID: streamID})
}

func (p *ReceiverProxy) NewImage(d *media.Destination, image *PublicationImage) {
	p.offer(&receiverCommand{
		op:          receiverNewImage,
		destination: d,
		streamID:    image.StreamID(),
		sessionID:   image.SessionID(),
		image:       image,
	})
}

func (p *ReceiverProxy) RemoveImage(d *media.Destination, sessionID, streamID int32) {
	p.offer(&receiverCommand{
		op:          receiverRemoveImage,
		destination: d,
		streamID:    streamID,
		sessionID:   sessionID,
	})
}

func (p *ReceiverProxy) offer(cmd *receiverCommand) {
	if err := p.commands.Offer(cmd); err != nil {
		p.logger.Error("receiver command dropped", "error", err)
	}
}

type conductorEventOp int

const (
	conductorCreateImage conductorEventOp = iota
	conductorImageInactive
	conductorReleaseImage
)

// conductorEvent is an elicitation from the Receiver: a SETUP frame arrived
// for an unknown session, or an image changed liveness state.
type conductorEvent struct {
	op          conductorEventOp
	destination *media.Destination
	endpoint    *media.ReceiveChannelEndpoint
	srcAddr     *net.UDPAddr

	sessionID     int32
	streamID      int32
	initialTermID int32
	activeTermID  int32
	termOffset    int32
	termLength    int32
	mtu           int32

	image *PublicationImage
}

// ConductorProxy posts events from the Receiver onto the Conductor's queue.
type ConductorProxy struct {
	events *spsc.Queue[conductorEvent]
	logger *slog.Logger
}

func NewConductorProxy(capacity int, logger *slog.Logger) *ConductorProxy {
	return &ConductorProxy{
		events: spsc.NewQueue[conductorEvent](queueCapacity(capacity)),
		logger: logger,
	}
}

func (p *ConductorProxy) CreateImage(
	d *media.Destination, endpoint *media.ReceiveChannelEndpoint, srcAddr *net.UDPAddr,
	sessionID, streamID, initialTermID, activeTermID, termOffset, termLength, mtu int32,
) {
	p.offer(&conductorEvent{
		op:            conductorCreateImage,
		destination:   d,
		endpoint:      endpoint,
		srcAddr:       srcAddr,
		sessionID:     sessionID,
		streamID:      streamID,
		initialTermID: initialTermID,
		activeTermID:  activeTermID,
		termOffset:    termOffset,
		termLength:    termLength,
		mtu:           mtu,
	})
}

func (p *ConductorProxy) ImageInactive(image *PublicationImage) {
	p.offer(&conductorEvent{op: conductorImageInactive, image: image})
}

// ReleaseImage hands an image back once the Receiver no longer references
// it, so the Conductor can unmap the log safely.
func (p *ConductorProxy) ReleaseImage(image *PublicationImage) {
	p.offer(&conductorEvent{op: conductorReleaseImage, image: image})
}

func (p *ConductorProxy) offer(event *conductorEvent) {
	if err := p.events.Offer(event); err != nil {
		p.logger.Error("conductor event dropped", "error", err)
	}
}
