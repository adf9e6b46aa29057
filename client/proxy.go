package client

import (
	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/concurrent/ringbuffer"
	"github.com/chris-numeus/aeron/control"
)

const proxyScratchLength = 4096

// DriverProxy serializes client commands into the to-driver ring. Each
// command carries a fresh correlation id drawn from the shared counter so
// ids are unique across every client of the driver. Not safe for
// concurrent use; the client Conductor is the only caller.
type DriverProxy struct {
	ring     *ringbuffer.ManyToOneRingBuffer
	clientID int64
	scratch  *concurrent.AtomicBuffer
}

func NewDriverProxy(ring *ringbuffer.ManyToOneRingBuffer) *DriverProxy {
	return &DriverProxy{
		ring:     ring,
		clientID: ring.NextCorrelationID(),
		scratch:  concurrent.MakeAtomicBuffer(make([]byte, proxyScratchLength)),
	}
}

// ClientID identifies this client in keepalives and commands.
func (p *DriverProxy) ClientID() int64 { return p.clientID }

// AddPublication requests a publication, returning the correlation id the
// driver will answer with.
func (p *DriverProxy) AddPublication(channel string, sessionID, streamID int32) (int64, error) {
	correlationID := p.ring.NextCorrelationID()

	var msg control.PublicationMessage
	msg.Wrap(p.scratch, 0)
	msg.SetClientID(p.clientID)
	msg.SetCorrelationID(correlationID)
	msg.SetSessionID(sessionID)
	msg.SetStreamID(streamID)
	msg.SetChannel(channel)

	if err := p.write(control.AddPublication, msg.Length()); err != nil {
		return 0, err
	}
	return correlationID, nil
}

// RemovePublication releases a publication by its registration id.
func (p *DriverProxy) RemovePublication(registrationID int64) (int64, error) {
	return p.remove(control.RemovePublication, registrationID)
}

// AddSubscription requests a subscription, returning the correlation id
// the driver will answer with.
func (p *DriverProxy) AddSubscription(channel string, streamID int32) (int64, error) {
	correlationID := p.ring.NextCorrelationID()

	var msg control.SubscriptionMessage
	msg.Wrap(p.scratch, 0)
	msg.SetClientID(p.clientID)
	msg.SetCorrelationID(correlationID)
	msg.SetStreamID(streamID)
	msg.SetChannel(channel)

	if err := p.write(control.AddSubscription, msg.Length()); err != nil {
		return 0, err
	}
	return correlationID, nil
}

// RemoveSubscription releases a subscription by its registration id.
func (p *DriverProxy) RemoveSubscription(registrationID int64) (int64, error) {
	return p.remove(control.RemoveSubscription, registrationID)
}

// SendClientKeepalive tells the driver this client is still alive.
func (p *DriverProxy) SendClientKeepalive() error {
	var msg control.CorrelatedMessage
	msg.Wrap(p.scratch, 0)
	msg.SetClientID(p.clientID)
	msg.SetCorrelationID(0)

	return p.write(control.ClientKeepalive, msg.Length())
}

func (p *DriverProxy) remove(msgTypeID int32, registrationID int64) (int64, error) {
	correlationID := p.ring.NextCorrelationID()

	var msg control.RemoveMessage
	msg.Wrap(p.scratch, 0)
	msg.SetClientID(p.clientID)
	msg.SetCorrelationID(correlationID)
	msg.SetRegistrationID(registrationID)

	if err := p.write(msgTypeID, msg.Length()); err != nil {
		return 0, err
	}
	return correlationID, nil
}

func (p *DriverProxy) write(msgTypeID, length int32) error {
	return p.ring.Write(msgTypeID, p.scratch.Slice(0, length))
}
