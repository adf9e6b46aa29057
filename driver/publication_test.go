package driver

import (
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/concurrent/logbuffer"
	"github.com/chris-numeus/aeron/counters"
	"github.com/chris-numeus/aeron/driver/media"
	"github.com/chris-numeus/aeron/protocol"
)

type pubHarness struct {
	pub            *NetworkPublication
	recv           *media.ReceiveChannelEndpoint
	log            *RawLog
	senderPosition *counters.Position
	publisherLimit *counters.Position

	dataFrames  [][]byte
	setupFrames [][]byte
}

func newPubHarness(t *testing.T) *pubHarness {
	t.Helper()
	h := &pubHarness{}

	recvDest, err := media.ParseDestination("udp://127.0.0.1:0")
	require.NoError(t, err)
	h.recv, err = media.NewReceiveChannelEndpoint(recvDest,
		func(frame []byte, _ *net.UDPAddr) {
			h.dataFrames = append(h.dataFrames, append([]byte(nil), frame...))
		},
		func(frame []byte, _ *net.UDPAddr) {
			h.setupFrames = append(h.setupFrames, append([]byte(nil), frame...))
		})
	require.NoError(t, err)
	t.Cleanup(func() { h.recv.Close() })

	sendDest, err := media.ParseDestination(
		fmt.Sprintf("udp://127.0.0.1:%d", h.recv.LocalAddr().Port))
	require.NoError(t, err)
	endpoint, err := media.NewSendChannelEndpoint(sendDest,
		func([]byte, *net.UDPAddr) {}, func([]byte, *net.UDPAddr) {})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), StreamDirName(7, 10))
	h.log, err = NewRawLog(dir, logbuffer.TermMinLength, 1408, 100, 7, 10)
	require.NoError(t, err)

	values := concurrent.MakeAtomicBuffer(make([]byte, 4*counters.ValueLength))
	h.senderPosition = counters.NewPosition(values, 0)
	h.publisherLimit = counters.NewPosition(values, 1)

	h.pub = NewNetworkPublication(PublicationParams{
		RegistrationID: 1,
		SessionID:      7,
		StreamID:       10,
		InitialTermID:  100,
		MTU:            1408,
		Log:            h.log,
		Endpoint:       endpoint,
		SenderPosition: h.senderPosition,
		PublisherLimit: h.publisherLimit,
		FlowControl:    NewUnicastFlowControl(),

		RetransmitDelay:  0,
		RetransmitLinger: 60 * time.Millisecond,
		MaxRetransmits:   16,

		SetupInterval:     100 * time.Millisecond,
		HeartbeatInterval: 100 * time.Millisecond,
		ReceiverGrace:     ReceiverTimeout,
	})
	t.Cleanup(func() { h.pub.Close() })
	return h
}

// drain polls the receive socket until the condition holds or attempts
// run out.
func (h *pubHarness) drain(t *testing.T, until func() bool) {
	t.Helper()
	for i := 0; i < 200 && !until(); i++ {
		_, err := h.recv.Poll(8)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
	require.True(t, until(), "expected frames did not arrive")
}

func (h *pubHarness) appendMessage(t *testing.T, payload []byte) {
	t.Helper()
	appender, err := logbuffer.NewAppender(h.log.Term(0), h.log.MetaData(), 0)
	require.NoError(t, err)

	var claim logbuffer.BufferClaim
	offset, err := appender.Claim(int32(len(payload)), &claim)
	require.NoError(t, err)
	require.NotEqual(t, int32(logbuffer.AppendTripped), offset)
	copy(claim.Buffer(), payload)
	claim.Commit()
}

func (h *pubHarness) connect(t *testing.T, window int32) {
	t.Helper()
	h.pub.OnStatusMessage(statusMessage(100, 0, window),
		&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9999}, time.Now())
}

func TestPublicationSendsSetupUntilConnected(t *testing.T) {
	h := newPubHarness(t)
	now := time.Now()

	h.pub.Send(now)
	h.drain(t, func() bool { return len(h.setupFrames) > 0 })

	var setup protocol.SetupHeader
	setup.Wrap(h.setupFrames[0], 0)
	assert.Equal(t, protocol.TypeSetup, setup.Type())
	assert.Equal(t, int32(100), setup.InitialTermID())
	assert.Equal(t, int32(100), setup.ActiveTermID())
	assert.Equal(t, int32(logbuffer.TermMinLength), setup.TermLength())
	assert.Equal(t, int32(1408), setup.MTU())

	// within the setup interval, no repeat
	sent := len(h.setupFrames)
	h.pub.Send(now.Add(10 * time.Millisecond))
	h.pub.Send(now.Add(101 * time.Millisecond))
	h.drain(t, func() bool { return len(h.setupFrames) > sent })
}

func TestPublicationSendsNothingWithoutWindow(t *testing.T) {
	h := newPubHarness(t)
	h.appendMessage(t, []byte("hello"))

	h.pub.Send(time.Now())
	time.Sleep(10 * time.Millisecond)
	h.recv.Poll(8)

	assert.Empty(t, h.dataFrames)
	assert.Equal(t, int64(0), h.pub.SenderPosition())
}

func TestPublicationSendsDataWithinWindow(t *testing.T) {
	h := newPubHarness(t)
	h.appendMessage(t, []byte("hello aeron"))
	h.connect(t, 4096)

	h.pub.Send(time.Now())
	h.drain(t, func() bool { return len(h.dataFrames) > 0 })

	var data protocol.DataHeader
	data.Wrap(h.dataFrames[0], 0)
	assert.Equal(t, protocol.TypeData, data.Type())
	assert.Equal(t, int32(100), data.TermID())
	assert.Equal(t, int32(7), data.SessionID())
	assert.Equal(t, []byte("hello aeron"), data.Payload()[:11])

	aligned := concurrent.AlignInt32(protocol.DataHeaderLength+11, protocol.FrameAlignment)
	assert.Equal(t, int64(aligned), h.pub.SenderPosition())
	assert.True(t, h.pub.IsConnected())
}

func TestPublicationRaisesPublisherLimitOnStatus(t *testing.T) {
	h := newPubHarness(t)
	assert.Equal(t, int64(0), h.publisherLimit.Get())

	h.connect(t, 4096)
	assert.Equal(t, int64(4096), h.publisherLimit.Get())
}

func TestPublicationRetransmitsOnNak(t *testing.T) {
	h := newPubHarness(t)
	h.appendMessage(t, []byte("payload one"))
	h.connect(t, 4096)

	h.pub.Send(time.Now())
	h.drain(t, func() bool { return len(h.dataFrames) == 1 })

	var nak protocol.NakHeader
	nak.Wrap(make([]byte, protocol.NakFrameLength), 0)
	nak.SetTermID(100)
	nak.SetGapOffset(0)
	nak.SetGapLength(concurrent.AlignInt32(protocol.DataHeaderLength+11, protocol.FrameAlignment))

	h.pub.OnNak(&nak, time.Now())
	h.drain(t, func() bool { return len(h.dataFrames) == 2 })

	assert.Equal(t, h.dataFrames[0], h.dataFrames[1])
}

func TestPublicationHeartbeatsWhenIdle(t *testing.T) {
	h := newPubHarness(t)
	h.appendMessage(t, []byte("x"))
	h.connect(t, 4096)

	now := time.Now()
	h.pub.Send(now)
	h.drain(t, func() bool { return len(h.dataFrames) == 1 })

	h.pub.Send(now.Add(101 * time.Millisecond))
	h.drain(t, func() bool { return len(h.dataFrames) == 2 })

	var hb protocol.DataHeader
	hb.Wrap(h.dataFrames[1], 0)
	assert.Equal(t, protocol.TypeData, hb.Type())
	assert.Equal(t, int32(0), hb.FrameLength())
	assert.Len(t, h.dataFrames[1], protocol.DataHeaderLength)
}

func TestPublicationClampsLimitWhenReceiversVanish(t *testing.T) {
	h := newPubHarness(t)
	h.appendMessage(t, []byte("x"))
	h.connect(t, 4096)
	now := time.Now()
	h.pub.Send(now)
	h.drain(t, func() bool { return len(h.dataFrames) == 1 })

	h.pub.UpdatePublisherLimit(now.Add(3 * ReceiverTimeout))

	assert.False(t, h.pub.IsConnected())
	assert.Equal(t, h.pub.SenderPosition(), h.publisherLimit.Get())
}
