package media

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-numeus/aeron/protocol"
)

type endpointPair struct {
	recv *ReceiveChannelEndpoint
	send *SendChannelEndpoint

	dataFrames  [][]byte
	setupFrames [][]byte
	smFrames    [][]byte
	nakFrames   [][]byte
}

func newEndpointPair(t *testing.T) *endpointPair {
	t.Helper()
	p := &endpointPair{}

	recvDest, err := ParseDestination("udp://127.0.0.1:0")
	require.NoError(t, err)
	p.recv, err = NewReceiveChannelEndpoint(recvDest,
		func(frame []byte, _ *net.UDPAddr) {
			p.dataFrames = append(p.dataFrames, append([]byte(nil), frame...))
		},
		func(frame []byte, _ *net.UDPAddr) {
			p.setupFrames = append(p.setupFrames, append([]byte(nil), frame...))
		})
	require.NoError(t, err)
	t.Cleanup(func() { p.recv.Close() })

	sendDest, err := ParseDestination(
		fmt.Sprintf("udp://127.0.0.1:%d", p.recv.LocalAddr().Port))
	require.NoError(t, err)
	p.send, err = NewSendChannelEndpoint(sendDest,
		func(frame []byte, _ *net.UDPAddr) {
			p.smFrames = append(p.smFrames, append([]byte(nil), frame...))
		},
		func(frame []byte, _ *net.UDPAddr) {
			p.nakFrames = append(p.nakFrames, append([]byte(nil), frame...))
		})
	require.NoError(t, err)
	t.Cleanup(func() { p.send.Close() })
	return p
}

func frame(frameType uint16, length int) []byte {
	b := make([]byte, length)
	var h protocol.Header
	h.Wrap(b, 0)
	h.SetFrameLength(int32(length))
	h.SetVersion(protocol.CurrentVersion)
	h.SetType(frameType)
	h.SetSessionID(7)
	h.SetStreamID(10)
	h.SetTermID(100)
	return b
}

func pollUntil(t *testing.T, poll func() (int, error), count func() int) {
	t.Helper()
	for i := 0; i < 200 && count() == 0; i++ {
		_, err := poll()
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
	require.Greater(t, count(), 0, "expected frames did not arrive")
}

func TestReceiveEndpointDispatchesByType(t *testing.T) {
	p := newEndpointPair(t)

	_, err := p.send.Send(frame(protocol.TypeData, 64))
	require.NoError(t, err)
	pollUntil(t, func() (int, error) { return p.recv.Poll(8) },
		func() int { return len(p.dataFrames) })

	_, err = p.send.Send(frame(protocol.TypePad, 64))
	require.NoError(t, err)
	pollUntil(t, func() (int, error) { return p.recv.Poll(8) },
		func() int { return len(p.dataFrames) - 1 })

	_, err = p.send.Send(frame(protocol.TypeSetup, protocol.SetupFrameLength))
	require.NoError(t, err)
	pollUntil(t, func() (int, error) { return p.recv.Poll(8) },
		func() int { return len(p.setupFrames) })

	var h protocol.Header
	h.Wrap(p.setupFrames[0], 0)
	assert.Equal(t, protocol.TypeSetup, h.Type())
	assert.Equal(t, int32(7), h.SessionID())
}

func TestSendEndpointDispatchesControlFrames(t *testing.T) {
	p := newEndpointPair(t)
	senderAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: p.send.LocalAddr().Port}

	_, err := p.recv.SendTo(frame(protocol.TypeSM, protocol.SMFrameLength), senderAddr)
	require.NoError(t, err)
	pollUntil(t, func() (int, error) { return p.send.PollStatus(8) },
		func() int { return len(p.smFrames) })

	_, err = p.recv.SendTo(frame(protocol.TypeNak, protocol.NakFrameLength), senderAddr)
	require.NoError(t, err)
	pollUntil(t, func() (int, error) { return p.send.PollStatus(8) },
		func() int { return len(p.nakFrames) })

	assert.Empty(t, p.dataFrames)
}

func TestReceiveEndpointIgnoresRuntFrames(t *testing.T) {
	p := newEndpointPair(t)

	_, err := p.send.Send([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	_, err = p.send.Send(frame(protocol.TypeData, 64))
	require.NoError(t, err)

	pollUntil(t, func() (int, error) { return p.recv.Poll(8) },
		func() int { return len(p.dataFrames) })
	assert.Len(t, p.dataFrames, 1)
}

func TestEndpointLocalAddrIsConcrete(t *testing.T) {
	p := newEndpointPair(t)

	assert.NotZero(t, p.recv.LocalAddr().Port)
	assert.NotZero(t, p.send.LocalAddr().Port)
	assert.NotEqual(t, p.recv.LocalAddr().Port, p.send.LocalAddr().Port)
}
