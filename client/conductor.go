package client

import (
	"log/slog"
	"time"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/concurrent/broadcast"
	"github.com/chris-numeus/aeron/concurrent/ringbuffer"
	"github.com/chris-numeus/aeron/control"
	"github.com/chris-numeus/aeron/errors"
)

// BuffersReady describes a term log the driver has mapped on behalf of
// this client, either for a new publication or a newly connected
// subscription image.
type BuffersReady struct {
	CorrelationID     int64
	RegistrationID    int64
	SessionID         int32
	StreamID          int32
	InitialTermID     int32
	PositionCounterID int32
	LogDir            string
	SourceIdentity    string
}

// ImageHandlers receives connection events that are not tied to a pending
// operation: images appearing for a subscribed stream and images going
// silent.
type ImageHandlers struct {
	OnAvailableImage   func(image BuffersReady)
	OnUnavailableImage func(correlationID int64, sessionID, streamID int32)
}

// Conductor is the client's control plane: it serializes commands to the
// driver, awaits the matching response off the broadcast, fans connection
// events out to listeners, keeps the driver informed this client is alive,
// and watches the driver's consumer heartbeat for the reverse.
type Conductor struct {
	proxy  *DriverProxy
	ring   *ringbuffer.ManyToOneRingBuffer
	events *broadcast.CopyReceiver

	driverTimeout     time.Duration
	keepaliveInterval time.Duration
	lastKeepalive     time.Time

	listeners []ImageHandlers

	// State of the one in-flight operation. Commands are issued one at a
	// time from the caller's goroutine.
	activeCorrelationID int64
	opDone              bool
	opErr               error
	opResult            BuffersReady

	logger *slog.Logger
}

func NewConductor(
	proxy *DriverProxy, ring *ringbuffer.ManyToOneRingBuffer, events *broadcast.CopyReceiver,
	driverTimeout, keepaliveInterval time.Duration, logger *slog.Logger,
) *Conductor {
	return &Conductor{
		proxy:             proxy,
		ring:              ring,
		events:            events,
		driverTimeout:     driverTimeout,
		keepaliveInterval: keepaliveInterval,
		lastKeepalive:     time.Now(),
		logger:            logger.With("component", "client-conductor"),
	}
}

// AddListener registers handlers for connection events.
func (c *Conductor) AddListener(handlers ImageHandlers) {
	c.listeners = append(c.listeners, handlers)
}

// AddPublication registers a publication with the driver and blocks until
// its buffers are ready.
func (c *Conductor) AddPublication(channel string, sessionID, streamID int32) (*BuffersReady, error) {
	correlationID, err := c.proxy.AddPublication(channel, sessionID, streamID)
	if err != nil {
		return nil, err
	}
	return c.awaitResponse(correlationID)
}

// RemovePublication releases a publication and blocks until the driver
// acknowledges.
func (c *Conductor) RemovePublication(registrationID int64) error {
	correlationID, err := c.proxy.RemovePublication(registrationID)
	if err != nil {
		return err
	}
	_, err = c.awaitResponse(correlationID)
	return err
}

// AddSubscription registers interest in a stream and blocks until the
// driver acknowledges. Images arrive later through the listeners as
// publishers appear. The returned registration id releases the
// subscription.
func (c *Conductor) AddSubscription(channel string, streamID int32) (int64, error) {
	correlationID, err := c.proxy.AddSubscription(channel, streamID)
	if err != nil {
		return 0, err
	}
	if _, err := c.awaitResponse(correlationID); err != nil {
		return 0, err
	}
	return correlationID, nil
}

// RemoveSubscription releases a subscription and blocks until the driver
// acknowledges.
func (c *Conductor) RemoveSubscription(registrationID int64) error {
	correlationID, err := c.proxy.RemoveSubscription(registrationID)
	if err != nil {
		return err
	}
	_, err = c.awaitResponse(correlationID)
	return err
}

// Poll drains pending driver events, dispatching connection events to
// listeners, and sends a keepalive when due. Applications call this
// between operations to stay current.
func (c *Conductor) Poll() int {
	workCount := 0
	for c.events.Receive(c.onEvent) > 0 {
		workCount++
	}

	if now := time.Now(); now.Sub(c.lastKeepalive) >= c.keepaliveInterval {
		if err := c.proxy.SendClientKeepalive(); err != nil {
			c.logger.Warn("keepalive send failed", "error", err)
		}
		c.lastKeepalive = now
		workCount++
	}
	return workCount
}

// CheckDriverHeartbeat reports ErrDriverTimeout when the driver has not
// consumed from the command ring within the driver timeout.
func (c *Conductor) CheckDriverHeartbeat() error {
	age := time.Now().UnixMilli() - c.ring.ConsumerHeartbeatTime()
	if time.Duration(age)*time.Millisecond > c.driverTimeout {
		return errors.Wrap(errors.ErrDriverTimeout, "client", "CheckDriverHeartbeat", "check driver liveness")
	}
	return nil
}

// awaitResponse spins on the broadcast until the driver answers the given
// correlation id, subject to the driver timeout.
func (c *Conductor) awaitResponse(correlationID int64) (*BuffersReady, error) {
	c.activeCorrelationID = correlationID
	c.opDone = false
	c.opErr = nil
	defer func() { c.activeCorrelationID = 0 }()

	deadline := time.Now().Add(c.driverTimeout)
	for !c.opDone {
		if time.Now().After(deadline) {
			return nil, errors.Wrap(errors.ErrDriverTimeout,
				"client", "awaitResponse", "await driver response")
		}
		if c.events.Receive(c.onEvent) == 0 {
			if err := c.CheckDriverHeartbeat(); err != nil {
				return nil, err
			}
			time.Sleep(time.Millisecond)
		}
	}

	if c.opErr != nil {
		return nil, c.opErr
	}
	result := c.opResult
	return &result, nil
}

func (c *Conductor) onEvent(msgTypeID int32, buffer *concurrent.AtomicBuffer, index, length int32) {
	switch msgTypeID {
	case control.OnNewPublication:
		var msg control.BuffersReadyMessage
		msg.Wrap(buffer, index)
		if msg.CorrelationID() == c.activeCorrelationID {
			c.opResult = buffersReadyFrom(&msg)
			c.opDone = true
		}

	case control.OnNewConnectedSubscription:
		var msg control.BuffersReadyMessage
		msg.Wrap(buffer, index)
		image := buffersReadyFrom(&msg)
		for _, l := range c.listeners {
			if l.OnAvailableImage != nil {
				l.OnAvailableImage(image)
			}
		}

	case control.OnOperationSucceeded:
		var msg control.CorrelatedMessage
		msg.Wrap(buffer, index)
		if msg.CorrelationID() == c.activeCorrelationID {
			c.opDone = true
		}

	case control.OnError:
		var msg control.ErrorResponse
		msg.Wrap(buffer, index)
		if msg.OffendingCorrelationID() == c.activeCorrelationID {
			c.opErr = errors.NewDriverError(
				errors.ErrorCode(msg.ErrorCode()), "%s", msg.ErrorMessage())
			c.opDone = true
		}

	case control.OnInactiveConnection:
		var msg control.InactiveConnectionMessage
		msg.Wrap(buffer, index)
		for _, l := range c.listeners {
			if l.OnUnavailableImage != nil {
				l.OnUnavailableImage(msg.CorrelationID(), msg.SessionID(), msg.StreamID())
			}
		}

	default:
		c.logger.Warn("unknown driver event", "type", msgTypeID)
	}
}

func buffersReadyFrom(msg *control.BuffersReadyMessage) BuffersReady {
	return BuffersReady{
		CorrelationID:     msg.CorrelationID(),
		RegistrationID:    msg.RegistrationID(),
		SessionID:         msg.SessionID(),
		StreamID:          msg.StreamID(),
		InitialTermID:     msg.InitialTermID(),
		PositionCounterID: msg.PositionCounterID(),
		LogDir:            msg.LogDir(),
		SourceIdentity:    msg.SourceIdentity(),
	}
}
