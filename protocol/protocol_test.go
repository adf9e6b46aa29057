package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chris-numeus/aeron/concurrent"
)

func TestHeaderFieldsAreBigEndian(t *testing.T) {
	b := make([]byte, HeaderLength)
	var h Header
	h.Wrap(b, 0)

	h.SetFrameLength(0x01020304)
	h.SetVersion(CurrentVersion)
	h.SetFlags(FlagsUnfragmented)
	h.SetType(TypeData)
	h.SetTermOffset(4096)
	h.SetSessionID(7)
	h.SetStreamID(10)
	h.SetTermID(99)

	assert.Equal(t, uint32(0x01020304), binary.BigEndian.Uint32(b[0:4]))
	assert.Equal(t, uint16(TypeData), binary.BigEndian.Uint16(b[6:8]))
	assert.Equal(t, uint32(4096), binary.BigEndian.Uint32(b[8:12]))
	assert.Equal(t, uint32(7), binary.BigEndian.Uint32(b[12:16]))
	assert.Equal(t, uint32(10), binary.BigEndian.Uint32(b[16:20]))
	assert.Equal(t, uint32(99), binary.BigEndian.Uint32(b[20:24]))

	assert.Equal(t, int32(0x01020304), h.FrameLength())
	assert.Equal(t, TypeData, h.Type())
	assert.Equal(t, int32(4096), h.TermOffset())
	assert.Equal(t, int32(7), h.SessionID())
	assert.Equal(t, int32(10), h.StreamID())
	assert.Equal(t, int32(99), h.TermID())
}

func TestAtomicFrameLengthMatchesWireEncoding(t *testing.T) {
	buf := concurrent.MakeAtomicBuffer(make([]byte, 64))

	SetFrameLengthOrdered(buf, 0, 256)

	raw := make([]byte, 4)
	buf.GetBytes(0, raw)
	assert.Equal(t, uint32(256), binary.BigEndian.Uint32(raw))
	assert.Equal(t, int32(256), FrameLengthVolatile(buf, 0))
}

func TestFrameTypeAndFlagsAccessors(t *testing.T) {
	buf := concurrent.MakeAtomicBuffer(make([]byte, 64))

	var h Header
	h.Wrap(buf.Slice(0, HeaderLength), 0)
	h.SetType(TypePad)
	h.SetFlags(FlagsPadding)
	h.SetTermID(42)

	assert.Equal(t, TypePad, FrameType(buf, 0))
	assert.Equal(t, FlagsPadding, FrameFlags(buf, 0))
	assert.Equal(t, int32(42), FrameTermID(buf, 0))
}

func TestDataHeaderPayload(t *testing.T) {
	b := make([]byte, 64)
	var h DataHeader
	h.Wrap(b, 0)
	h.SetFrameLength(DataHeaderLength + 5)
	h.SetReservedValue(0xDEADBEEF)

	copy(h.Payload(), "data!")
	assert.Equal(t, uint64(0xDEADBEEF), h.ReservedValue())
	assert.Equal(t, "data!", string(b[DataHeaderLength:DataHeaderLength+5]))
}

func TestNakHeaderRoundTrip(t *testing.T) {
	b := make([]byte, NakFrameLength)
	var h NakHeader
	h.Wrap(b, 0)
	h.SetType(TypeNak)
	h.SetGapOffset(4096)
	h.SetGapLength(1024)

	var r NakHeader
	r.Wrap(b, 0)
	assert.Equal(t, TypeNak, r.Type())
	assert.Equal(t, int32(4096), r.GapOffset())
	assert.Equal(t, int32(1024), r.GapLength())
}

func TestStatusMessageRoundTrip(t *testing.T) {
	b := make([]byte, SMFrameLength)
	var h StatusMessage
	h.Wrap(b, 0)
	h.SetConsumptionTermID(55)
	h.SetConsumptionTermOffset(8192)
	h.SetReceiverWindow(128 * 1024)

	var r StatusMessage
	r.Wrap(b, 0)
	assert.Equal(t, int32(55), r.ConsumptionTermID())
	assert.Equal(t, int32(8192), r.ConsumptionTermOffset())
	assert.Equal(t, int32(128*1024), r.ReceiverWindow())
}

func TestSetupHeaderRoundTrip(t *testing.T) {
	b := make([]byte, SetupFrameLength)
	var h SetupHeader
	h.Wrap(b, 0)
	h.SetInitialTermID(100)
	h.SetActiveTermID(103)
	h.SetTermLength(1 << 20)
	h.SetMTU(1408)

	var r SetupHeader
	r.Wrap(b, 0)
	assert.Equal(t, int32(100), r.InitialTermID())
	assert.Equal(t, int32(103), r.ActiveTermID())
	assert.Equal(t, int32(1<<20), r.TermLength())
	assert.Equal(t, int32(1408), r.MTU())
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, "DATA", TypeName(TypeData))
	assert.Equal(t, "PAD", TypeName(TypePad))
	assert.Equal(t, "NAK", TypeName(TypeNak))
	assert.Equal(t, "SM", TypeName(TypeSM))
	assert.Equal(t, "SETUP", TypeName(TypeSetup))
}
