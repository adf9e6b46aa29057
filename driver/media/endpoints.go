package media

import (
	"net"

	"github.com/chris-numeus/aeron/protocol"
)

// DataFrameHandler receives DATA and PAD frames from a receive endpoint.
type DataFrameHandler func(frame []byte, srcAddr *net.UDPAddr)

// SetupFrameHandler receives SETUP frames from a receive endpoint.
type SetupFrameHandler func(frame []byte, srcAddr *net.UDPAddr)

// StatusFrameHandler receives SM frames on a send endpoint.
type StatusFrameHandler func(frame []byte, srcAddr *net.UDPAddr)

// NakFrameHandler receives NAK frames on a send endpoint.
type NakFrameHandler func(frame []byte, srcAddr *net.UDPAddr)

// ReceiveChannelEndpoint is the Receiver's socket for one channel. It binds
// the channel's endpoint address, joins the group for multicast, and
// dispatches inbound frames by type.
type ReceiveChannelEndpoint struct {
	destination *Destination
	transport   *transport

	onData  DataFrameHandler
	onSetup SetupFrameHandler
}

// NewReceiveChannelEndpoint opens the receive socket for a channel.
func NewReceiveChannelEndpoint(d *Destination, onData DataFrameHandler, onSetup SetupFrameHandler) (*ReceiveChannelEndpoint, error) {
	bindAddr := d.RemoteAddr()
	conn, err := net.ListenUDP("udp", bindAddr)
	if err != nil {
		return nil, wrapSocket(err, "NewReceiveChannelEndpoint")
	}

	e := &ReceiveChannelEndpoint{
		destination: d,
		transport:   newTransport(conn),
		onData:      onData,
		onSetup:     onSetup,
	}

	if d.IsMulticast() {
		if err := e.transport.joinGroup(d); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return e, nil
}

// Destination returns the channel this endpoint serves.
func (e *ReceiveChannelEndpoint) Destination() *Destination { return e.destination }

// LocalAddr returns the bound socket address.
func (e *ReceiveChannelEndpoint) LocalAddr() *net.UDPAddr {
	return e.transport.conn.LocalAddr().(*net.UDPAddr)
}

// Poll reads and dispatches up to limit datagrams. It returns the number of
// frames dispatched.
func (e *ReceiveChannelEndpoint) Poll(limit int) (int, error) {
	work := 0
	for work < limit {
		frame, addr, err := e.transport.pollFrame()
		if err != nil {
			return work, err
		}
		if frame == nil {
			break
		}
		if len(frame) < protocol.HeaderLength {
			continue
		}

		var h protocol.Header
		h.Wrap(frame, 0)
		switch h.Type() {
		case protocol.TypeData, protocol.TypePad:
			e.onData(frame, addr)
		case protocol.TypeSetup:
			e.onSetup(frame, addr)
		}
		work++
	}
	return work, nil
}

// SendTo transmits a control frame (SM or NAK) toward a source.
func (e *ReceiveChannelEndpoint) SendTo(frame []byte, addr *net.UDPAddr) (int, error) {
	return e.transport.sendTo(frame, addr)
}

// Close shuts the socket.
func (e *ReceiveChannelEndpoint) Close() error {
	return e.transport.close()
}

// SendChannelEndpoint is the Sender's socket for one channel. Data frames
// flow out; SM and NAK frames from receivers flow back in on the same
// socket.
type SendChannelEndpoint struct {
	destination *Destination
	transport   *transport

	onStatus StatusFrameHandler
	onNak    NakFrameHandler
}

// NewSendChannelEndpoint opens the send socket for a channel.
func NewSendChannelEndpoint(d *Destination, onStatus StatusFrameHandler, onNak NakFrameHandler) (*SendChannelEndpoint, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, wrapSocket(err, "NewSendChannelEndpoint")
	}

	e := &SendChannelEndpoint{
		destination: d,
		transport:   newTransport(conn),
		onStatus:    onStatus,
		onNak:       onNak,
	}

	if d.IsMulticast() {
		if err := e.transport.configureMulticastSend(d); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return e, nil
}

// Destination returns the channel this endpoint serves.
func (e *SendChannelEndpoint) Destination() *Destination { return e.destination }

// LocalAddr returns the bound socket address.
func (e *SendChannelEndpoint) LocalAddr() *net.UDPAddr {
	return e.transport.conn.LocalAddr().(*net.UDPAddr)
}

// Send transmits a data frame to the channel endpoint. Short sends are
// reported by the returned byte count.
func (e *SendChannelEndpoint) Send(frame []byte) (int, error) {
	return e.transport.sendTo(frame, e.destination.RemoteAddr())
}

// PollStatus reads and dispatches up to limit control datagrams from
// receivers.
func (e *SendChannelEndpoint) PollStatus(limit int) (int, error) {
	work := 0
	for work < limit {
		frame, addr, err := e.transport.pollFrame()
		if err != nil {
			return work, err
		}
		if frame == nil {
			break
		}
		if len(frame) < protocol.HeaderLength {
			continue
		}

		var h protocol.Header
		h.Wrap(frame, 0)
		switch h.Type() {
		case protocol.TypeSM:
			e.onStatus(frame, addr)
		case protocol.TypeNak:
			e.onNak(frame, addr)
		}
		work++
	}
	return work, nil
}

// Close shuts the socket.
func (e *SendChannelEndpoint) Close() error {
	return e.transport.close()
}
