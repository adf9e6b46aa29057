package driver

import (
	"log/slog"
	"net"
	"time"

	"github.com/chris-numeus/aeron/concurrent/spsc"
	"github.com/chris-numeus/aeron/driver/media"
	"github.com/chris-numeus/aeron/event"
	"github.com/chris-numeus/aeron/metric"
	"github.com/chris-numeus/aeron/protocol"
)

const (
	receiverCommandLimit = 10
	dataPollLimit        = 64
)

// streamInterest is one subscribed stream on a receive endpoint: the images
// rebuilding traffic for each publisher session, and the sessions a SETUP
// has been forwarded for while the Conductor wires their buffers.
type streamInterest struct {
	refCount int
	images   map[int32]*PublicationImage
	pending  map[int32]bool
}

// receiveEndpoint pairs a channel's socket with the dispatch state for its
// subscribed streams.
type receiveEndpoint struct {
	destination *media.Destination
	endpoint    *media.ReceiveChannelEndpoint
	streams     map[int32]*streamInterest
}

// Receiver owns the inbound sockets: it drains datagrams, routes data
// frames into images, elicits image creation from the Conductor when a new
// session appears, and retires images whose publisher has gone silent.
// Subscriptions and images arrive and leave over the command queue; no
// other agent touches the Receiver's state.
type Receiver struct {
	commands  *spsc.Queue[receiverCommand]
	conductor *ConductorProxy
	endpoints map[string]*receiveEndpoint

	imageLiveness time.Duration
	now           time.Time

	logger  *slog.Logger
	events  *event.Logger
	metrics *metric.Metrics
}

func NewReceiver(
	proxy *ReceiverProxy, conductor *ConductorProxy, imageLiveness time.Duration,
	logger *slog.Logger, events *event.Logger, metrics *metric.Metrics,
) *Receiver {
	return &Receiver{
		commands:      proxy.commands,
		conductor:     conductor,
		endpoints:     make(map[string]*receiveEndpoint),
		imageLiveness: imageLiveness,
		now:           time.Now(),
		logger:        logger.With("agent", "receiver"),
		events:        events,
		metrics:       metrics,
	}
}

func (r *Receiver) Name() string { return "receiver" }

// DoWork runs one duty cycle: drain commands, poll sockets, advance every
// image's rebuild and status machinery, retire silent images.
func (r *Receiver) DoWork(now time.Time) int {
	r.now = now
	workCount := r.commands.Drain(r.onCommand, receiverCommandLimit)

	for _, re := range r.endpoints {
		n, err := re.endpoint.Poll(dataPollLimit)
		if err != nil {
			r.logger.Error("datagram poll failed", "channel", re.destination.URI(), "error", err)
		}
		workCount += n

		for _, si := range re.streams {
			for _, img := range si.images {
				workCount += img.Poll(now)
				if img.State() == ImageActive && now.Sub(img.LastFrameTime()) > r.imageLiveness {
					img.Deactivate(now)
					r.conductor.ImageInactive(img)
					workCount++
				}
			}
		}
	}
	return workCount
}

func (r *Receiver) OnClose() {
	for _, re := range r.endpoints {
		if err := re.endpoint.Close(); err != nil {
			r.logger.Error("endpoint close failed", "channel", re.destination.URI(), "error", err)
		}
	}
	r.endpoints = nil
}

func (r *Receiver) onCommand(cmd *receiverCommand) {
	switch cmd.op {
	case receiverAddSubscription:
		r.addSubscription(cmd.destination, cmd.streamID)
	case receiverRemoveSubscription:
		r.removeSubscription(cmd.destination, cmd.streamID)
	case receiverNewImage:
		r.newImage(cmd.destination, cmd.image)
	case receiverRemoveImage:
		r.removeImage(cmd.destination, cmd.sessionID, cmd.streamID)
	}
}

// addSubscription opens the channel's socket on first interest and records
// the stream. Socket failures stay inside the Receiver; the Conductor has
// already answered the client.
func (r *Receiver) addSubscription(d *media.Destination, streamID int32) {
	re, ok := r.endpoints[d.URI()]
	if !ok {
		re = &receiveEndpoint{
			destination: d,
			streams:     make(map[int32]*streamInterest),
		}
		endpoint, err := media.NewReceiveChannelEndpoint(d,
			func(frame []byte, srcAddr *net.UDPAddr) { r.onDataFrame(re, frame, srcAddr) },
			func(frame []byte, srcAddr *net.UDPAddr) { r.onSetupFrame(re, frame, srcAddr) })
		if err != nil {
			r.logger.Error("receive endpoint bind failed", "channel", d.URI(), "error", err)
			return
		}
		re.endpoint = endpoint
		r.endpoints[d.URI()] = re
		if r.events.Enabled(event.CodeReceiveChannelCreation) {
			r.logger.Info("receive channel created", "channel", d.URI())
		}
	}

	si, ok := re.streams[streamID]
	if !ok {
		si = &streamInterest{
			images:  make(map[int32]*PublicationImage),
			pending: make(map[int32]bool),
		}
		re.streams[streamID] = si
	}
	si.refCount++
}

func (r *Receiver) removeSubscription(d *media.Destination, streamID int32) {
	re, ok := r.endpoints[d.URI()]
	if !ok {
		return
	}
	si, ok := re.streams[streamID]
	if !ok {
		return
	}

	si.refCount--
	if si.refCount > 0 {
		return
	}

	for _, img := range si.images {
		img.Deactivate(r.now)
		r.conductor.ReleaseImage(img)
	}
	delete(re.streams, streamID)

	if len(re.streams) == 0 {
		if err := re.endpoint.Close(); err != nil {
			r.logger.Error("endpoint close failed", "channel", d.URI(), "error", err)
		}
		delete(r.endpoints, d.URI())
		if r.events.Enabled(event.CodeReceiveChannelClose) {
			r.logger.Info("receive channel closed", "channel", d.URI())
		}
	}
}

func (r *Receiver) newImage(d *media.Destination, image *PublicationImage) {
	re, ok := r.endpoints[d.URI()]
	if !ok {
		// Subscription removed while the Conductor was wiring buffers.
		r.conductor.ReleaseImage(image)
		return
	}
	si, ok := re.streams[image.StreamID()]
	if !ok {
		r.conductor.ReleaseImage(image)
		return
	}

	delete(si.pending, image.SessionID())
	si.images[image.SessionID()] = image
	image.Activate(r.now)
}

func (r *Receiver) removeImage(d *media.Destination, sessionID, streamID int32) {
	re, ok := r.endpoints[d.URI()]
	if !ok {
		return
	}
	si, ok := re.streams[streamID]
	if !ok {
		return
	}
	if img, ok := si.images[sessionID]; ok {
		delete(si.images, sessionID)
		r.conductor.ReleaseImage(img)
	}
}

func (r *Receiver) onDataFrame(re *receiveEndpoint, frame []byte, _ *net.UDPAddr) {
	var h protocol.Header
	h.Wrap(frame, 0)

	si, ok := re.streams[h.StreamID()]
	if !ok {
		if r.metrics != nil {
			r.metrics.RecordFrameDropped("unknown_stream")
		}
		return
	}
	img, ok := si.images[h.SessionID()]
	if !ok {
		if r.metrics != nil {
			r.metrics.RecordFrameDropped("unknown_session")
		}
		return
	}
	if r.events.Enabled(event.CodeFrameIn) {
		r.logger.Debug("frame in",
			"type", protocol.TypeName(h.Type()), "session", h.SessionID(),
			"stream", h.StreamID(), "length", h.FrameLength())
	}
	img.OnDataFrame(frame, r.now)
}

// onSetupFrame elicits image creation for a new session. Repeated SETUP
// frames while the Conductor is wiring buffers are absorbed by the pending
// mark.
func (r *Receiver) onSetupFrame(re *receiveEndpoint, frame []byte, srcAddr *net.UDPAddr) {
	var h protocol.SetupHeader
	h.Wrap(frame, 0)

	si, ok := re.streams[h.StreamID()]
	if !ok {
		if r.metrics != nil {
			r.metrics.RecordFrameDropped("unknown_stream")
		}
		return
	}
	sessionID := h.SessionID()
	if _, known := si.images[sessionID]; known || si.pending[sessionID] {
		return
	}

	si.pending[sessionID] = true
	r.conductor.CreateImage(re.destination, re.endpoint, srcAddr,
		sessionID, h.StreamID(), h.InitialTermID(), h.ActiveTermID(),
		h.TermOffset(), h.TermLength(), h.MTU())
}
