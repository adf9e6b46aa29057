// Package media owns the driver's UDP transports: channel URI parsing, the
// send and receive channel endpoints, and frame dispatch to the streams
// registered on them.
package media

import (
	"fmt"
	"net"
	"strings"

	"github.com/chris-numeus/aeron/errors"
)

// Destination is a parsed channel URI. Channels use the form
// udp://host:port for unicast and udp://interface@group:port for multicast,
// where interface selects the local NIC joining the group.
type Destination struct {
	uri       string
	remote    *net.UDPAddr
	local     *net.UDPAddr
	multicast bool
}

// ParseDestination resolves a channel URI.
func ParseDestination(uri string) (*Destination, error) {
	rest, ok := strings.CutPrefix(uri, "udp://")
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q is not a udp:// channel", errors.ErrInvalidChannel, uri),
			"media", "ParseDestination", "parse scheme")
	}

	var ifaceSpec string
	if at := strings.IndexByte(rest, '@'); at >= 0 {
		ifaceSpec = rest[:at]
		rest = rest[at+1:]
	}

	remote, err := net.ResolveUDPAddr("udp", rest)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: cannot resolve %q: %v", errors.ErrInvalidChannel, rest, err),
			"media", "ParseDestination", "resolve endpoint")
	}

	d := &Destination{
		uri:       uri,
		remote:    remote,
		multicast: remote.IP.IsMulticast(),
	}

	if ifaceSpec != "" {
		if !d.multicast {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: interface given for unicast %q", errors.ErrInvalidChannel, uri),
				"media", "ParseDestination", "validate interface")
		}
		local, err := net.ResolveUDPAddr("udp", net.JoinHostPort(ifaceSpec, "0"))
		if err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: cannot resolve interface %q: %v", errors.ErrInvalidChannel, ifaceSpec, err),
				"media", "ParseDestination", "resolve interface")
		}
		d.local = local
	}

	return d, nil
}

// URI returns the channel string exactly as it was parsed.
func (d *Destination) URI() string { return d.uri }

// RemoteAddr is the unicast peer or multicast group address.
func (d *Destination) RemoteAddr() *net.UDPAddr { return d.remote }

// LocalAddr is the interface address for multicast channels, nil otherwise.
func (d *Destination) LocalAddr() *net.UDPAddr { return d.local }

// IsMulticast reports whether the channel addresses a multicast group.
func (d *Destination) IsMulticast() bool { return d.multicast }

// ApplyDefaultInterface fills in the local interface address for a
// multicast destination whose URI did not name one. No-op for unicast or
// when the URI already chose an interface.
func (d *Destination) ApplyDefaultInterface(ifaceSpec string) error {
	if !d.multicast || d.local != nil || ifaceSpec == "" {
		return nil
	}
	local, err := net.ResolveUDPAddr("udp", net.JoinHostPort(ifaceSpec, "0"))
	if err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: cannot resolve default interface %q: %v", errors.ErrInvalidChannel, ifaceSpec, err),
			"media", "ApplyDefaultInterface", "resolve interface")
	}
	d.local = local
	return nil
}

// InterfaceFor finds the NIC owning the destination's local address. Used to
// join multicast groups on the right interface.
func (d *Destination) InterfaceFor() (*net.Interface, error) {
	if d.local == nil {
		return nil, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, errors.WrapTransient(err, "media", "InterfaceFor", "list interfaces")
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if ok && ipNet.IP.Equal(d.local.IP) {
				return &ifaces[i], nil
			}
		}
	}
	return nil, errors.WrapInvalid(
		fmt.Errorf("%w: no interface has address %s", errors.ErrInvalidChannel, d.local.IP),
		"media", "InterfaceFor", "match interface")
}
