package media

import (
	"net"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/chris-numeus/aeron/errors"
)

// ReceiveBufferLength is the datagram read buffer size. One read never
// returns more than one datagram, which the MTU bounds well below this.
const ReceiveBufferLength = 4096

// MulticastTTL is applied to outbound multicast sockets.
const MulticastTTL = 8

// transport wraps a UDP socket polled without blocking. A read with the
// deadline set to now drains whatever datagrams the kernel has buffered; the
// agent's idle strategy handles the empty case.
type transport struct {
	conn    *net.UDPConn
	pktConn *ipv4.PacketConn
	buffer  []byte
}

func newTransport(conn *net.UDPConn) *transport {
	return &transport{
		conn:   conn,
		buffer: make([]byte, ReceiveBufferLength),
	}
}

// pollFrame reads one datagram if available. It returns nil without error
// when the socket is dry.
func (t *transport) pollFrame() ([]byte, *net.UDPAddr, error) {
	if err := t.conn.SetReadDeadline(time.Now()); err != nil {
		return nil, nil, errors.WrapFatal(err, "media", "pollFrame", "set deadline")
	}

	n, addr, err := t.conn.ReadFromUDP(t.buffer)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, nil, nil
		}
		return nil, nil, errors.WrapTransient(err, "media", "pollFrame", "read datagram")
	}
	return t.buffer[:n], addr, nil
}

// sendTo writes one frame as a single datagram.
func (t *transport) sendTo(frame []byte, addr *net.UDPAddr) (int, error) {
	n, err := t.conn.WriteToUDP(frame, addr)
	if err != nil {
		return 0, errors.WrapTransient(err, "media", "sendTo", "write datagram")
	}
	return n, nil
}

func wrapSocket(err error, op string) error {
	return errors.WrapFatal(err, "media", op, "open socket")
}

func (t *transport) close() error {
	if err := t.conn.Close(); err != nil {
		return errors.WrapTransient(err, "media", "close", "close socket")
	}
	return nil
}

// joinGroup configures multicast reception on the destination's interface.
func (t *transport) joinGroup(d *Destination) error {
	t.pktConn = ipv4.NewPacketConn(t.conn)

	iface, err := d.InterfaceFor()
	if err != nil {
		return err
	}
	if err := t.pktConn.JoinGroup(iface, &net.UDPAddr{IP: d.RemoteAddr().IP}); err != nil {
		return errors.WrapFatal(err, "media", "joinGroup", "join multicast group")
	}
	return nil
}

// configureMulticastSend sets TTL and loopback so a subscriber on the same
// host observes the publisher's traffic.
func (t *transport) configureMulticastSend(d *Destination) error {
	t.pktConn = ipv4.NewPacketConn(t.conn)

	if iface, err := d.InterfaceFor(); err == nil && iface != nil {
		if err := t.pktConn.SetMulticastInterface(iface); err != nil {
			return errors.WrapFatal(err, "media", "configureMulticastSend", "set interface")
		}
	}
	if err := t.pktConn.SetMulticastTTL(MulticastTTL); err != nil {
		return errors.WrapFatal(err, "media", "configureMulticastSend", "set ttl")
	}
	if err := t.pktConn.SetMulticastLoopback(true); err != nil {
		return errors.WrapFatal(err, "media", "configureMulticastSend", "set loopback")
	}
	return nil
}
