package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-numeus/aeron/concurrent"
)

func newPair(t *testing.T, capacity int32) (*Transmitter, *Receiver) {
	t.Helper()
	buf := concurrent.MakeAtomicBuffer(make([]byte, capacity+TrailerLength))
	tx, err := NewTransmitter(buf)
	require.NoError(t, err)
	rx, err := NewReceiver(buf)
	require.NoError(t, err)
	return tx, rx
}

func TestNewTransmitterRejectsNonPowerOfTwo(t *testing.T) {
	_, err := NewTransmitter(concurrent.MakeAtomicBuffer(make([]byte, 1000+TrailerLength)))
	assert.Error(t, err)
}

func TestTransmitReceiveSingleMessage(t *testing.T) {
	tx, rx := newPair(t, 1024)

	require.NoError(t, tx.Transmit(42, []byte("hello")))

	require.True(t, rx.ReceiveNext())
	assert.Equal(t, int32(42), rx.TypeID())
	assert.Equal(t, int32(5), rx.Length())

	got := make([]byte, rx.Length())
	rx.Buffer().GetBytes(rx.Offset(), got)
	assert.Equal(t, "hello", string(got))
	assert.True(t, rx.Validate())

	assert.False(t, rx.ReceiveNext())
}

func TestReceiveInOrder(t *testing.T) {
	tx, rx := newPair(t, 1024)

	require.NoError(t, tx.Transmit(1, []byte("a")))
	require.NoError(t, tx.Transmit(2, []byte("bb")))

	require.True(t, rx.ReceiveNext())
	assert.Equal(t, int32(1), rx.TypeID())
	require.True(t, rx.ReceiveNext())
	assert.Equal(t, int32(2), rx.TypeID())
}

func TestSlowReceiverLapsToLatest(t *testing.T) {
	tx, rx := newPair(t, 128)

	// Flood well past one capacity without the receiver draining.
	payload := make([]byte, 24)
	for i := 0; i < 50; i++ {
		payload[0] = byte(i)
		require.NoError(t, tx.Transmit(1, payload))
	}

	require.True(t, rx.ReceiveNext())
	assert.Positive(t, rx.LappedCount())

	// After the lap reset the receiver can drain to the head.
	drained := 1
	for rx.ReceiveNext() {
		drained++
	}
	assert.Positive(t, drained)
}

func TestCopyReceiverDeliversCopies(t *testing.T) {
	buf := concurrent.MakeAtomicBuffer(make([]byte, 1024+TrailerLength))
	tx, err := NewTransmitter(buf)
	require.NoError(t, err)
	rx, err := NewReceiver(buf)
	require.NoError(t, err)
	copyRx := NewCopyReceiver(rx)

	require.NoError(t, tx.Transmit(9, []byte("payload")))

	var gotType int32
	var got string
	n := copyRx.Receive(func(msgTypeID int32, buffer *concurrent.AtomicBuffer, index, length int32) {
		gotType = msgTypeID
		got = string(buffer.Slice(index, length))
	})

	assert.Equal(t, 1, n)
	assert.Equal(t, int32(9), gotType)
	assert.Equal(t, "payload", got)

	assert.Zero(t, copyRx.Receive(func(int32, *concurrent.AtomicBuffer, int32, int32) {}))
}

func TestCopyReceiverSkipsBacklogAtConstruction(t *testing.T) {
	buf := concurrent.MakeAtomicBuffer(make([]byte, 1024+TrailerLength))
	tx, err := NewTransmitter(buf)
	require.NoError(t, err)
	require.NoError(t, tx.Transmit(1, []byte("old")))

	rx, err := NewReceiver(buf)
	require.NoError(t, err)
	copyRx := NewCopyReceiver(rx)

	assert.Zero(t, copyRx.Receive(func(int32, *concurrent.AtomicBuffer, int32, int32) {}))

	require.NoError(t, tx.Transmit(2, []byte("new")))
	var gotType int32
	copyRx.Receive(func(msgTypeID int32, _ *concurrent.AtomicBuffer, _, _ int32) {
		gotType = msgTypeID
	})
	assert.Equal(t, int32(2), gotType)
}

func TestTransmitRejectsOversizeMessage(t *testing.T) {
	tx, _ := newPair(t, 128)
	assert.Error(t, tx.Transmit(1, make([]byte, 1024)))
}
