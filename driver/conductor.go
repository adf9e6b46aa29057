package driver

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"path/filepath"
	"time"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/concurrent/broadcast"
	"github.com/chris-numeus/aeron/concurrent/ringbuffer"
	"github.com/chris-numeus/aeron/concurrent/spsc"
	"github.com/chris-numeus/aeron/concurrent/timerwheel"
	"github.com/chris-numeus/aeron/config"
	"github.com/chris-numeus/aeron/control"
	"github.com/chris-numeus/aeron/counters"
	"github.com/chris-numeus/aeron/driver/media"
	"github.com/chris-numeus/aeron/errors"
	"github.com/chris-numeus/aeron/event"
	"github.com/chris-numeus/aeron/metric"
	"github.com/chris-numeus/aeron/protocol"
	"github.com/chris-numeus/aeron/shm"
)

const (
	conductorCommandLimit = 10
	conductorEventLimit   = 10
	cleanJobsPerCycle     = 2

	// Cadence of setup frames while a publication is unconnected, of
	// heartbeats while it idles, and the silence after which every
	// receiver is considered gone and the publisher limit is clamped.
	publicationSetupInterval     = 100 * time.Millisecond
	publicationHeartbeatInterval = 100 * time.Millisecond
	publicationReceiverGrace     = 5 * time.Second

	responseBufferLength = 4096
)

type pubKey struct {
	channel   string
	sessionID int32
	streamID  int32
}

type publicationEntry struct {
	registrationID int64
	clientID       int64
	destination    *media.Destination
	sessionID      int32
	streamID       int32

	pub            *NetworkPublication
	log            *RawLog
	senderPosition *counters.Position
	publisherLimit *counters.Position

	removed bool
}

type imageEntry struct {
	correlationID int64
	destination   *media.Destination
	sessionID     int32
	streamID      int32

	image     *PublicationImage
	log       *RawLog
	positions []*counters.Position

	inactiveSent bool
}

type clientSession struct {
	clientID      int64
	lastKeepalive time.Time
}

// ConductorParams wires the Conductor to its buffers and peer agents.
type ConductorParams struct {
	Context *config.Context

	ToDriverRing *ringbuffer.ManyToOneRingBuffer
	ToClients    *broadcast.Transmitter
	Counters     *counters.Manager
	CounterValues *concurrent.AtomicBuffer

	SenderProxy   *SenderProxy
	ReceiverProxy *ReceiverProxy
	FromReceiver  *ConductorProxy

	Logger  *slog.Logger
	Events  *event.Logger
	Metrics *metric.Metrics
}

// Conductor is the driver's control plane. It consumes client commands
// from the to-driver ring, owns the registries of publications,
// subscriptions, images and clients, answers over the to-clients
// broadcast, and schedules liveness and cleanup work on the timer wheel.
type Conductor struct {
	ctx *config.Context

	ring          *ringbuffer.ManyToOneRingBuffer
	clients       *broadcast.Transmitter
	counters      *counters.Manager
	counterValues *concurrent.AtomicBuffer

	senderProxy   *SenderProxy
	receiverProxy *ReceiverProxy
	fromReceiver  *spsc.Queue[conductorEvent]

	wheel         *timerwheel.Wheel
	timerHandlers map[int64]func(now time.Time)

	publications  map[int64]*publicationEntry
	publicationBy map[pubKey]*publicationEntry
	subscriptions map[int64]*SubscriptionLink
	images        []*imageEntry
	sessions      map[int64]*clientSession

	cleanIndex int
	now        time.Time

	response *concurrent.AtomicBuffer

	logger  *slog.Logger
	events  *event.Logger
	metrics *metric.Metrics
}

func NewConductor(p ConductorParams) (*Conductor, error) {
	c := &Conductor{
		ctx:           p.Context,
		ring:          p.ToDriverRing,
		clients:       p.ToClients,
		counters:      p.Counters,
		counterValues: p.CounterValues,
		senderProxy:   p.SenderProxy,
		receiverProxy: p.ReceiverProxy,
		fromReceiver:  p.FromReceiver.events,
		timerHandlers: make(map[int64]func(time.Time)),
		publications:  make(map[int64]*publicationEntry),
		publicationBy: make(map[pubKey]*publicationEntry),
		subscriptions: make(map[int64]*SubscriptionLink),
		sessions:      make(map[int64]*clientSession),
		now:           time.Now(),
		response:      concurrent.MakeAtomicBuffer(make([]byte, responseBufferLength)),
		logger:        p.Logger.With("agent", "conductor"),
		events:        p.Events,
		metrics:       p.Metrics,
	}

	wheel, err := timerwheel.NewWheel(c.now, p.Context.TimerWheelTick, p.Context.TimerWheelSlots, c.onTimer)
	if err != nil {
		return nil, err
	}
	c.wheel = wheel

	c.scheduleTimer(p.Context.TimerInterval, c.checkClientLiveness)
	return c, nil
}

func (c *Conductor) Name() string { return "conductor" }

// DoWork runs one duty cycle: client commands, receiver events, expired
// timers, a bounded slice of term cleaning, then the consumer heartbeat
// clients watch for driver liveness.
func (c *Conductor) DoWork(now time.Time) int {
	c.now = now

	workCount := c.ring.Read(c.onCommand, conductorCommandLimit)
	workCount += c.fromReceiver.Drain(c.onEvent, conductorEventLimit)
	workCount += c.wheel.Poll(now)
	workCount += c.cleanLogs()

	c.ring.UpdateConsumerHeartbeatTime(now.UnixMilli())
	return workCount
}

func (c *Conductor) OnClose() {
	for _, entry := range c.publications {
		c.closePublication(entry)
	}
	for _, entry := range c.images {
		c.closeImage(entry)
	}
	c.images = nil
}

// ---- command plane ----

func (c *Conductor) onCommand(msgTypeID int32, buffer *concurrent.AtomicBuffer, index, length int32) {
	var err error
	correlationID := int64(-1)

	switch msgTypeID {
	case control.AddPublication:
		var msg control.PublicationMessage
		msg.Wrap(buffer, index)
		correlationID = msg.CorrelationID()
		c.logCommand(event.CodeCmdInAddPublication, msgTypeID, correlationID)
		err = c.onAddPublication(&msg)

	case control.RemovePublication:
		var msg control.RemoveMessage
		msg.Wrap(buffer, index)
		correlationID = msg.CorrelationID()
		c.logCommand(event.CodeCmdInRemovePublication, msgTypeID, correlationID)
		err = c.onRemovePublication(&msg)

	case control.AddSubscription:
		var msg control.SubscriptionMessage
		msg.Wrap(buffer, index)
		correlationID = msg.CorrelationID()
		c.logCommand(event.CodeCmdInAddSubscription, msgTypeID, correlationID)
		err = c.onAddSubscription(&msg)

	case control.RemoveSubscription:
		var msg control.RemoveMessage
		msg.Wrap(buffer, index)
		correlationID = msg.CorrelationID()
		c.logCommand(event.CodeCmdInRemoveSubscription, msgTypeID, correlationID)
		err = c.onRemoveSubscription(&msg)

	case control.ClientKeepalive:
		var msg control.CorrelatedMessage
		msg.Wrap(buffer, index)
		c.logCommand(event.CodeCmdInKeepalive, msgTypeID, msg.CorrelationID())
		c.ensureClient(msg.ClientID())

	default:
		c.logger.Warn("unknown command", "type", msgTypeID)
	}

	if err != nil {
		c.errorResponse(correlationID, err)
	}
}

func (c *Conductor) onAddPublication(msg *control.PublicationMessage) error {
	c.ensureClient(msg.ClientID())

	channel := msg.Channel()
	sessionID := msg.SessionID()
	streamID := msg.StreamID()
	correlationID := msg.CorrelationID()

	dest, err := c.parseChannel(channel)
	if err != nil {
		return err
	}

	key := pubKey{channel: dest.URI(), sessionID: sessionID, streamID: streamID}
	if _, exists := c.publicationBy[key]; exists {
		return errors.NewDriverError(errors.CodePublicationChannelAlreadyExists,
			"publication already exists: %s session %d stream %d", channel, sessionID, streamID)
	}

	initialTermID := rand.Int31()
	dir := filepath.Join(c.ctx.PublicationsDir(), channelDirName(dest.URI()),
		StreamDirName(sessionID, streamID))
	if err := shm.EnsureDir(dir, true); err != nil {
		return err
	}

	log, err := NewRawLog(dir, c.ctx.TermBufferLength, c.ctx.MTULength,
		initialTermID, sessionID, streamID)
	if err != nil {
		return err
	}

	senderPos, err := c.allocatePosition(counters.TypeSenderPosition, "snd-pos", dest.URI(), sessionID, streamID)
	if err != nil {
		log.Close()
		return err
	}
	pubLimit, err := c.allocatePosition(counters.TypePublisherLimit, "pub-lmt", dest.URI(), sessionID, streamID)
	if err != nil {
		c.counters.Free(senderPos.ID())
		log.Close()
		return err
	}

	var pub *NetworkPublication
	endpoint, err := media.NewSendChannelEndpoint(dest,
		func(frame []byte, srcAddr *net.UDPAddr) {
			var sm protocol.StatusMessage
			sm.Wrap(frame, 0)
			pub.OnStatusMessage(&sm, srcAddr, time.Now())
		},
		func(frame []byte, _ *net.UDPAddr) {
			var nak protocol.NakHeader
			nak.Wrap(frame, 0)
			pub.OnNak(&nak, time.Now())
		})
	if err != nil {
		c.counters.Free(senderPos.ID())
		c.counters.Free(pubLimit.ID())
		log.Close()
		return errors.NewDriverError(errors.CodeInvalidDestination,
			"cannot open send channel %q: %v", channel, err)
	}

	pub = NewNetworkPublication(PublicationParams{
		RegistrationID:    correlationID,
		SessionID:         sessionID,
		StreamID:          streamID,
		InitialTermID:     initialTermID,
		MTU:               c.ctx.MTULength,
		Log:               log,
		Endpoint:          endpoint,
		SenderPosition:    senderPos,
		PublisherLimit:    pubLimit,
		FlowControl:       flowControlFor(dest.IsMulticast()),
		RetransmitDelay:   c.ctx.RetransmitDelay,
		RetransmitLinger:  c.ctx.RetransmitLinger,
		MaxRetransmits:    c.ctx.MaxRetransmits,
		SetupInterval:     publicationSetupInterval,
		HeartbeatInterval: publicationHeartbeatInterval,
		ReceiverGrace:     publicationReceiverGrace,
		Metrics:           c.metrics,
	})

	entry := &publicationEntry{
		registrationID: correlationID,
		clientID:       msg.ClientID(),
		destination:    dest,
		sessionID:      sessionID,
		streamID:       streamID,
		pub:            pub,
		log:            log,
		senderPosition: senderPos,
		publisherLimit: pubLimit,
	}
	c.publications[correlationID] = entry
	c.publicationBy[key] = entry

	c.senderProxy.AddPublication(pub)
	c.publicationReady(entry)
	return nil
}

func (c *Conductor) onRemovePublication(msg *control.RemoveMessage) error {
	c.ensureClient(msg.ClientID())

	entry, ok := c.publications[msg.RegistrationID()]
	if !ok || entry.removed {
		return errors.NewDriverError(errors.CodePublicationChannelUnknown,
			"unknown publication registration id %d", msg.RegistrationID())
	}

	c.removePublication(entry)
	c.operationSucceeded(msg.CorrelationID())
	return nil
}

// removePublication takes the publication off the Sender and schedules the
// linger that keeps the log mapped while in-flight frames drain.
func (c *Conductor) removePublication(entry *publicationEntry) {
	entry.removed = true
	c.senderProxy.RemovePublication(entry.registrationID)

	c.scheduleTimer(c.ctx.PublicationLinger, func(time.Time) {
		if c.events.Enabled(event.CodeRemovePublicationCleanup) {
			c.logger.Info("publication cleanup", "registration", entry.registrationID)
		}
		c.closePublication(entry)
		delete(c.publications, entry.registrationID)
		delete(c.publicationBy, pubKey{
			channel:   entry.destination.URI(),
			sessionID: entry.sessionID,
			streamID:  entry.streamID,
		})
	})
}

func (c *Conductor) closePublication(entry *publicationEntry) {
	if err := entry.pub.Close(); err != nil {
		c.logger.Error("publication close failed", "registration", entry.registrationID, "error", err)
	}
	c.counters.Free(entry.senderPosition.ID())
	c.counters.Free(entry.publisherLimit.ID())
}

func (c *Conductor) onAddSubscription(msg *control.SubscriptionMessage) error {
	c.ensureClient(msg.ClientID())

	dest, err := c.parseChannel(msg.Channel())
	if err != nil {
		return err
	}

	link := &SubscriptionLink{
		RegistrationID: msg.CorrelationID(),
		ClientID:       msg.ClientID(),
		StreamID:       msg.StreamID(),
		Destination:    dest,
	}
	c.subscriptions[link.RegistrationID] = link
	c.receiverProxy.AddSubscription(dest, link.StreamID)
	c.operationSucceeded(msg.CorrelationID())
	return nil
}

func (c *Conductor) onRemoveSubscription(msg *control.RemoveMessage) error {
	c.ensureClient(msg.ClientID())

	link, ok := c.subscriptions[msg.RegistrationID()]
	if !ok {
		return errors.NewDriverError(errors.CodeGeneric,
			"unknown subscription registration id %d", msg.RegistrationID())
	}

	c.removeSubscription(link)
	c.operationSucceeded(msg.CorrelationID())
	return nil
}

func (c *Conductor) removeSubscription(link *SubscriptionLink) {
	delete(c.subscriptions, link.RegistrationID)
	c.receiverProxy.RemoveSubscription(link.Destination, link.StreamID)
}

// parseChannel resolves a channel URI, filling the configured default
// interface for multicast channels that name none.
func (c *Conductor) parseChannel(channel string) (*media.Destination, error) {
	dest, err := media.ParseDestination(channel)
	if err != nil {
		return nil, errors.NewDriverError(errors.CodeInvalidDestination,
			"invalid channel %q: %v", channel, err)
	}
	if err := dest.ApplyDefaultInterface(c.ctx.MulticastInterface); err != nil {
		return nil, errors.NewDriverError(errors.CodeInvalidDestination,
			"invalid channel %q: %v", channel, err)
	}
	return dest, nil
}

func (c *Conductor) ensureClient(clientID int64) {
	session, ok := c.sessions[clientID]
	if !ok {
		session = &clientSession{clientID: clientID}
		c.sessions[clientID] = session
	}
	session.lastKeepalive = c.now
}

// checkClientLiveness reclaims every resource of clients that stopped
// sending keepalives. Reschedules itself each interval.
func (c *Conductor) checkClientLiveness(now time.Time) {
	for clientID, session := range c.sessions {
		if now.Sub(session.lastKeepalive) <= c.ctx.ClientLivenessTimeout {
			continue
		}

		c.logger.Warn("client timed out", "client", clientID)
		for _, entry := range c.publications {
			if entry.clientID == clientID && !entry.removed {
				c.removePublication(entry)
			}
		}
		for _, link := range c.subscriptions {
			if link.ClientID == clientID {
				c.removeSubscription(link)
			}
		}
		delete(c.sessions, clientID)
	}

	c.scheduleTimer(c.ctx.TimerInterval, c.checkClientLiveness)
}

// ---- receiver events ----

func (c *Conductor) onEvent(ev *conductorEvent) {
	switch ev.op {
	case conductorCreateImage:
		c.onCreateImage(ev)
	case conductorImageInactive:
		c.onImageInactive(ev.image)
	case conductorReleaseImage:
		c.onReleaseImage(ev.image)
	}
}

// onCreateImage wires the log buffers and counters for a session the
// Receiver heard a SETUP from, hands the image back, and announces the
// connected subscription to clients.
func (c *Conductor) onCreateImage(ev *conductorEvent) {
	links := c.matchingLinks(ev.destination.URI(), ev.streamID)
	if len(links) == 0 {
		return
	}

	correlationID := c.ring.NextCorrelationID()
	dir := filepath.Join(c.ctx.ImagesDir(), channelDirName(ev.destination.URI()),
		StreamDirName(ev.sessionID, ev.streamID))
	if err := shm.EnsureDir(dir, true); err != nil {
		c.logger.Error("image dir create failed", "dir", dir, "error", err)
		return
	}

	log, err := NewRawLog(dir, ev.termLength, ev.mtu, ev.initialTermID, ev.sessionID, ev.streamID)
	if err != nil {
		c.logger.Error("image log create failed", "dir", dir, "error", err)
		return
	}

	hwm, err := c.allocatePosition(counters.TypeReceiverHwm, "rcv-hwm", ev.destination.URI(), ev.sessionID, ev.streamID)
	if err != nil {
		c.logger.Error("image counter allocation failed", "error", err)
		log.Close()
		return
	}

	positions := []*counters.Position{hwm}
	subscriberPositions := make([]*counters.Position, 0, len(links))
	for range links {
		sub, err := c.allocatePosition(counters.TypeSubscriberPosition, "sub-pos", ev.destination.URI(), ev.sessionID, ev.streamID)
		if err != nil {
			c.logger.Error("image counter allocation failed", "error", err)
			for _, p := range positions {
				c.counters.Free(p.ID())
			}
			log.Close()
			return
		}
		positions = append(positions, sub)
		subscriberPositions = append(subscriberPositions, sub)
	}

	var delayGenerator FeedbackDelayGenerator
	if ev.destination.IsMulticast() {
		delayGenerator = NewOptimalMulticastDelayGenerator(
			c.ctx.NakMulticastMaxBackoff, c.ctx.NakMulticastGroupSize)
	} else {
		delayGenerator = StaticDelayGenerator{Delay: c.ctx.NakUnicastDelay}
	}

	image := NewPublicationImage(ImageParams{
		CorrelationID:        correlationID,
		SessionID:            ev.sessionID,
		StreamID:             ev.streamID,
		InitialTermID:        ev.initialTermID,
		ActiveTermID:         ev.activeTermID,
		TermOffset:           ev.termOffset,
		Log:                  log,
		Endpoint:             ev.endpoint,
		ControlAddr:          ev.srcAddr,
		HwmPosition:          hwm,
		SubscriberPositions:  subscriberPositions,
		InitialWindowLength:  c.ctx.InitialWindowLength,
		StatusMessageTimeout: c.ctx.StatusMessageTimeout,
		DelayGenerator:       delayGenerator,
		Metrics:              c.metrics,
	})

	entry := &imageEntry{
		correlationID: correlationID,
		destination:   ev.destination,
		sessionID:     ev.sessionID,
		streamID:      ev.streamID,
		image:         image,
		log:           log,
		positions:     positions,
	}
	c.images = append(c.images, entry)

	c.receiverProxy.NewImage(ev.destination, image)
	c.connectedSubscriptionReady(entry, ev.srcAddr, subscriberPositions[0].ID())
}

// onImageInactive lingers a silent image so subscribers can drain, then
// tells the Receiver to drop it.
func (c *Conductor) onImageInactive(image *PublicationImage) {
	entry := c.imageEntry(image)
	if entry == nil {
		return
	}
	image.BeginLinger(c.now)

	c.scheduleTimer(c.ctx.ImageLivenessTimeout, func(time.Time) {
		c.inactiveConnection(entry)
		c.receiverProxy.RemoveImage(entry.destination, entry.sessionID, entry.streamID)
	})
}

// onReleaseImage reclaims an image's resources after the Receiver dropped
// its last reference.
func (c *Conductor) onReleaseImage(image *PublicationImage) {
	entry := c.imageEntry(image)
	if entry == nil {
		return
	}
	if c.events.Enabled(event.CodeRemoveImageCleanup) {
		c.logger.Info("image cleanup", "correlation", entry.correlationID)
	}

	c.inactiveConnection(entry)
	c.closeImage(entry)
	for i, e := range c.images {
		if e == entry {
			c.images = append(c.images[:i], c.images[i+1:]...)
			break
		}
	}
}

func (c *Conductor) closeImage(entry *imageEntry) {
	if err := entry.image.Close(); err != nil {
		c.logger.Error("image close failed", "correlation", entry.correlationID, "error", err)
	}
	for _, p := range entry.positions {
		c.counters.Free(p.ID())
	}
}

func (c *Conductor) imageEntry(image *PublicationImage) *imageEntry {
	for _, entry := range c.images {
		if entry.image == image {
			return entry
		}
	}
	return nil
}

func (c *Conductor) matchingLinks(channelURI string, streamID int32) []*SubscriptionLink {
	var links []*SubscriptionLink
	for _, link := range c.subscriptions {
		if link.Matches(channelURI, streamID) {
			links = append(links, link)
		}
	}
	return links
}

// ---- timers and cleanup ----

func (c *Conductor) scheduleTimer(delay time.Duration, fn func(now time.Time)) {
	id := c.wheel.ScheduleAt(c.now.Add(delay))
	c.timerHandlers[id] = fn
}

func (c *Conductor) onTimer(id int64) {
	fn, ok := c.timerHandlers[id]
	if !ok {
		return
	}
	delete(c.timerHandlers, id)
	fn(c.now)
}

// cleanLogs zeroes retired term partitions, a bounded number of logs per
// cycle so cleaning never starves the command loop.
func (c *Conductor) cleanLogs() int {
	logs := make([]*RawLog, 0, len(c.publications)+len(c.images))
	for _, entry := range c.publications {
		logs = append(logs, entry.log)
	}
	for _, entry := range c.images {
		logs = append(logs, entry.log)
	}
	if len(logs) == 0 {
		return 0
	}

	cleaned := 0
	for i := 0; i < cleanJobsPerCycle && i < len(logs); i++ {
		c.cleanIndex = (c.cleanIndex + 1) % len(logs)
		cleaned += logs[c.cleanIndex].CleanDirtyPartitions()
	}
	return cleaned
}

// ---- responses to clients ----

func (c *Conductor) operationSucceeded(correlationID int64) {
	var msg control.CorrelatedMessage
	msg.Wrap(c.response, 0)
	msg.SetClientID(0)
	msg.SetCorrelationID(correlationID)

	c.transmit(control.OnOperationSucceeded, msg.Length(), event.CodeCmdOutOnOperationSuccess)
}

func (c *Conductor) errorResponse(correlationID int64, err error) {
	code := errors.CodeOf(err)

	var msg control.ErrorResponse
	msg.Wrap(c.response, 0)
	msg.SetOffendingCorrelationID(correlationID)
	msg.SetErrorCode(int32(code))
	msg.SetErrorMessage(err.Error())

	c.logger.Warn("command failed", "correlation", correlationID, "code", code.String(), "error", err)
	c.transmit(control.OnError, msg.Length(), event.CodeCmdOutError)
}

func (c *Conductor) publicationReady(entry *publicationEntry) {
	var msg control.BuffersReadyMessage
	msg.Wrap(c.response, 0)
	msg.SetCorrelationID(entry.registrationID)
	msg.SetRegistrationID(entry.registrationID)
	msg.SetSessionID(entry.sessionID)
	msg.SetStreamID(entry.streamID)
	msg.SetInitialTermID(entry.pub.initialTermID)
	msg.SetPositionCounterID(entry.publisherLimit.ID())
	msg.SetLogDir(entry.log.Dir())
	msg.SetSourceIdentity("")

	c.transmit(control.OnNewPublication, msg.Length(), event.CodeCmdOutPublicationReady)
}

func (c *Conductor) connectedSubscriptionReady(entry *imageEntry, srcAddr *net.UDPAddr, positionCounterID int32) {
	var msg control.BuffersReadyMessage
	msg.Wrap(c.response, 0)
	msg.SetCorrelationID(entry.correlationID)
	msg.SetRegistrationID(entry.correlationID)
	msg.SetSessionID(entry.sessionID)
	msg.SetStreamID(entry.streamID)
	msg.SetInitialTermID(entry.image.initialTermID)
	msg.SetPositionCounterID(positionCounterID)
	msg.SetLogDir(entry.log.Dir())
	msg.SetSourceIdentity(srcAddr.String())

	c.transmit(control.OnNewConnectedSubscription, msg.Length(), event.CodeCmdOutAvailableImage)
}

func (c *Conductor) inactiveConnection(entry *imageEntry) {
	if entry.inactiveSent {
		return
	}
	entry.inactiveSent = true

	var msg control.InactiveConnectionMessage
	msg.Wrap(c.response, 0)
	msg.SetCorrelationID(entry.correlationID)
	msg.SetSessionID(entry.sessionID)
	msg.SetStreamID(entry.streamID)

	c.transmit(control.OnInactiveConnection, msg.Length(), event.CodeCmdOutUnavailableImage)
}

func (c *Conductor) transmit(msgTypeID, length int32, code event.Code) {
	if err := c.clients.Transmit(msgTypeID, c.response.Slice(0, length)); err != nil {
		c.logger.Error("broadcast transmit failed",
			"type", control.TypeName(msgTypeID), "error", err)
		return
	}
	if c.events.Enabled(code) {
		c.logger.Debug("event out", "type", control.TypeName(msgTypeID))
	}
}

func (c *Conductor) logCommand(code event.Code, msgTypeID int32, correlationID int64) {
	if c.events.Enabled(code) {
		c.logger.Debug("command in",
			"type", control.TypeName(msgTypeID), "correlation", correlationID)
	}
}

func (c *Conductor) allocatePosition(typeID int32, prefix, channel string, sessionID, streamID int32) (*counters.Position, error) {
	label := fmt.Sprintf("%s: %s %d %d", prefix, channel, sessionID, streamID)
	id, err := c.counters.Allocate(typeID, nil, label)
	if err != nil {
		return nil, err
	}
	return counters.NewPosition(c.counterValues, id), nil
}
