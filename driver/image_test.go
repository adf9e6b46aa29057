package driver

import (
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

type imageHarness struct {
	img        *PublicationImage
	endpoint   *media.ReceiveChannelEndpoint
	control    *net.UDPConn
	hwm        *counters.Position
	subscriber *counters.Position
}

func newImageHarness(t *testing.T) *imageHarness {
	t.Helper()
	h := &imageHarness{}

	dest, err := media.ParseDestination("udp://127.0.0.1:0")
	require.NoError(t, err)
	h.endpoint, err = media.NewReceiveChannelEndpoint(dest,
		func([]byte, *net.UDPAddr) {}, func([]byte, *net.UDPAddr) {})
	require.NoError(t, err)
	t.Cleanup(func() { h.endpoint.Close() })

	// stands in for the publisher's socket, catching SM and NAK frames
	h.control, err = net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { h.control.Close() })

	dir := filepath.Join(t.TempDir(), StreamDirName(7, 10))
	log, err := NewRawLog(dir, logbuffer.TermMinLength, 1408, 100, 7, 10)
	require.NoError(t, err)

	values := concurrent.MakeAtomicBuffer(make([]byte, 4*counters.ValueLength))
	h.hwm = counters.NewPosition(values, 0)
	h.subscriber = counters.NewPosition(values, 1)

	h.img = NewPublicationImage(ImageParams{
		CorrelationID:       1,
		SessionID:           7,
		StreamID:            10,
		InitialTermID:       100,
		ActiveTermID:        100,
		TermOffset:          0,
		Log:                 log,
		Endpoint:            h.endpoint,
		ControlAddr:         h.control.LocalAddr().(*net.UDPAddr),
		HwmPosition:         h.hwm,
		SubscriberPositions: []*counters.Position{h.subscriber},

		InitialWindowLength:  4096,
		StatusMessageTimeout: 200 * time.Millisecond,
		DelayGenerator:       StaticDelayGenerator{Delay: 10 * time.Millisecond},
	})
	t.Cleanup(func() { h.img.Close() })
	return h
}

// dataFrame builds a committed wire frame for the stream at termOffset.
func dataFrame(termID, termOffset int32, payload []byte) []byte {
	frame := make([]byte, protocol.DataHeaderLength+len(payload))
	var h protocol.DataHeader
	h.Wrap(frame, 0)
	h.SetFrameLength(int32(len(frame)))
	h.SetVersion(protocol.CurrentVersion)
	h.SetFlags(protocol.FlagsUnfragmented)
	h.SetType(protocol.TypeData)
	h.SetTermOffset(termOffset)
	h.SetSessionID(7)
	h.SetStreamID(10)
	h.SetTermID(termID)
	copy(frame[protocol.DataHeaderLength:], payload)
	return frame
}

func heartbeatFrame(termID, termOffset int32) []byte {
	frame := dataFrame(termID, termOffset, nil)
	var h protocol.DataHeader
	h.Wrap(frame, 0)
	h.SetFrameLength(0)
	return frame
}

// readControlFrame blocks briefly for one SM or NAK from the image.
func (h *imageHarness) readControlFrame(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, 256)
	require.NoError(t, h.control.SetReadDeadline(time.Now().Add(time.Second)))
	n, _, err := h.control.ReadFromUDP(buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestImageInsertsDataAndAdvancesHwm(t *testing.T) {
	h := newImageHarness(t)
	now := time.Now()
	h.img.Activate(now)

	h.img.OnDataFrame(dataFrame(100, 0, []byte("hello")), now)

	aligned := concurrent.AlignInt32(protocol.DataHeaderLength+5, protocol.FrameAlignment)
	assert.Equal(t, int64(aligned), h.img.HwmPosition())
	assert.Equal(t, now, h.img.LastFrameTime())
}

func TestImageHeartbeatRefreshesWithoutInsert(t *testing.T) {
	h := newImageHarness(t)
	now := time.Now()
	h.img.Activate(now)

	h.img.OnDataFrame(heartbeatFrame(100, 128), now)

	assert.Equal(t, int64(128), h.img.HwmPosition())
	assert.Equal(t, int64(0), h.img.RebuildPosition())
}

func TestImageRebuildAdvancesOverContiguousFrames(t *testing.T) {
	h := newImageHarness(t)
	now := time.Now()
	h.img.Activate(now)

	h.img.OnDataFrame(dataFrame(100, 0, make([]byte, 32)), now)
	h.img.OnDataFrame(dataFrame(100, 64, make([]byte, 32)), now)
	h.img.Poll(now)

	assert.Equal(t, int64(128), h.img.RebuildPosition())
}

func TestImageRebuildStopsAtGap(t *testing.T) {
	h := newImageHarness(t)
	now := time.Now()
	h.img.Activate(now)

	h.img.OnDataFrame(dataFrame(100, 0, make([]byte, 32)), now)
	h.img.OnDataFrame(dataFrame(100, 128, make([]byte, 32)), now)
	h.img.Poll(now)

	assert.Equal(t, int64(64), h.img.RebuildPosition())
	assert.Equal(t, int64(192), h.img.HwmPosition())
}

func TestImageNaksPersistentGap(t *testing.T) {
	h := newImageHarness(t)
	now := time.Now()
	h.img.Activate(now)

	// drain the initial status message so the control read sees the NAK
	h.img.Poll(now)
	h.readControlFrame(t)

	h.img.OnDataFrame(dataFrame(100, 0, make([]byte, 32)), now)
	h.img.OnDataFrame(dataFrame(100, 128, make([]byte, 32)), now)
	h.img.Poll(now)
	h.img.Poll(now.Add(11 * time.Millisecond))

	frame := h.readControlFrame(t)
	var nak protocol.NakHeader
	nak.Wrap(frame, 0)
	assert.Equal(t, protocol.TypeNak, nak.Type())
	assert.Equal(t, int32(100), nak.TermID())
	assert.Equal(t, int32(64), nak.GapOffset())
	assert.Equal(t, int32(64), nak.GapLength())
}

func TestImageSendsInitialStatusMessage(t *testing.T) {
	h := newImageHarness(t)
	now := time.Now()
	h.img.Activate(now)

	h.img.Poll(now)

	frame := h.readControlFrame(t)
	var sm protocol.StatusMessage
	sm.Wrap(frame, 0)
	assert.Equal(t, protocol.TypeSM, sm.Type())
	assert.Equal(t, int32(100), sm.ConsumptionTermID())
	assert.Equal(t, int32(0), sm.ConsumptionTermOffset())
	assert.Equal(t, int32(4096), sm.ReceiverWindow())
}

func TestImageSendsStatusOnConsumptionProgress(t *testing.T) {
	h := newImageHarness(t)
	now := time.Now()
	h.img.Activate(now)

	h.img.Poll(now)
	h.readControlFrame(t)

	// a quarter of the window consumed forces a report before the timeout
	h.subscriber.Set(1024)
	h.img.Poll(now.Add(time.Millisecond))

	frame := h.readControlFrame(t)
	var sm protocol.StatusMessage
	sm.Wrap(frame, 0)
	assert.Equal(t, protocol.TypeSM, sm.Type())
	assert.Equal(t, int32(1024), sm.ConsumptionTermOffset())
}

func TestImageWindowCappedAtHalfTerm(t *testing.T) {
	h := newImageHarness(t)

	dir := filepath.Join(t.TempDir(), StreamDirName(8, 11))
	log, err := NewRawLog(dir, logbuffer.TermMinLength, 1408, 0, 8, 11)
	require.NoError(t, err)
	defer log.Close()

	values := concurrent.MakeAtomicBuffer(make([]byte, 2*counters.ValueLength))
	img := NewPublicationImage(ImageParams{
		Log:                  log,
		Endpoint:             h.endpoint,
		ControlAddr:          h.control.LocalAddr().(*net.UDPAddr),
		HwmPosition:          counters.NewPosition(values, 0),
		InitialWindowLength:  logbuffer.TermMinLength,
		StatusMessageTimeout: 200 * time.Millisecond,
		DelayGenerator:       StaticDelayGenerator{Delay: 0},
	})
	defer img.Close()

	assert.Equal(t, int32(logbuffer.TermMinLength/2), img.windowLength)
}

func TestImageLifecycleTransitions(t *testing.T) {
	h := newImageHarness(t)
	now := time.Now()

	assert.Equal(t, ImageInit, h.img.State())

	h.img.Activate(now)
	assert.Equal(t, ImageActive, h.img.State())

	h.img.Deactivate(now)
	assert.Equal(t, ImageInactive, h.img.State())
	assert.Equal(t, now, h.img.InactiveSince())

	h.img.BeginLinger(now.Add(time.Second))
	assert.Equal(t, ImageLinger, h.img.State())

	assert.Zero(t, h.img.Poll(now), "non-active image does no work")
}
