// Package protocol defines the wire format shared by drivers: frame types,
// header layout, and flyweights for encoding and decoding frames in place.
// All multi-byte fields are big-endian and frames are laid out on 32-byte
// boundaries within term buffers.
package protocol

import (
	"encoding/binary"
	"math/bits"
	"unsafe"

	"github.com/chris-numeus/aeron/concurrent"
)

// Frame types carried in the common header.
const (
	TypePad   uint16 = 0x00
	TypeData  uint16 = 0x01
	TypeNak   uint16 = 0x02
	TypeSM    uint16 = 0x03
	TypeSetup uint16 = 0x05
)

// TypeName returns a label for a frame type, for logs and metrics.
func TypeName(frameType uint16) string {
	switch frameType {
	case TypePad:
		return "PAD"
	case TypeData:
		return "DATA"
	case TypeNak:
		return "NAK"
	case TypeSM:
		return "SM"
	case TypeSetup:
		return "SETUP"
	default:
		return "UNKNOWN"
	}
}

// Header flags.
const (
	FlagsBegin   uint8 = 0x80
	FlagsEnd     uint8 = 0x40
	FlagsPadding uint8 = 0x20

	FlagsUnfragmented = FlagsBegin | FlagsEnd
)

// CurrentVersion is the protocol version stamped in every header.
const CurrentVersion uint8 = 0

// Common header field offsets. The common header is 32 bytes; bytes 24..32
// are type-specific (the reserved value for DATA frames).
const (
	frameLengthOffset = 0
	versionOffset     = 4
	flagsOffset       = 5
	typeOffset        = 6
	termOffsetOffset  = 8
	sessionIDOffset   = 12
	streamIDOffset    = 16
	termIDOffset      = 20

	// HeaderLength is the length of the common frame header.
	HeaderLength = 32

	// DataHeaderLength is the header length preceding a DATA payload.
	DataHeaderLength = 32
	reservedOffset   = 24

	// NAK-specific fields.
	nakGapOffsetOffset = 24
	nakGapLengthOffset = 28
	// NakFrameLength is the full length of a NAK frame.
	NakFrameLength = 32

	// Status message fields.
	smConsumptionTermIDOffset     = 24
	smConsumptionTermOffsetOffset = 28
	smReceiverWindowOffset        = 32
	// SMFrameLength is the full length of a status message frame.
	SMFrameLength = 36

	// Setup frame fields.
	setupInitialTermIDOffset = 24
	setupActiveTermIDOffset  = 28
	setupTermLengthOffset    = 32
	setupMTUOffset           = 36
	// SetupFrameLength is the full length of a setup frame.
	SetupFrameLength = 40
)

// FrameAlignment is the boundary frames start on within term buffers.
const FrameAlignment = 32

var hostLittleEndian = func() bool {
	var probe uint16 = 1
	return *(*byte)(unsafe.Pointer(&probe)) == 1
}()

// FrameLengthVolatile reads the frame length at frameOffset with acquire
// ordering, converting from wire byte order. A zero return means the frame
// has not been committed yet.
func FrameLengthVolatile(buf *concurrent.AtomicBuffer, frameOffset int32) int32 {
	raw := uint32(buf.GetInt32Volatile(frameOffset + frameLengthOffset))
	if hostLittleEndian {
		raw = bits.ReverseBytes32(raw)
	}
	return int32(raw)
}

// SetFrameLengthOrdered writes the frame length at frameOffset with release
// ordering, converting to wire byte order. Writing the length last is what
// commits a frame to consumers.
func SetFrameLengthOrdered(buf *concurrent.AtomicBuffer, frameOffset, length int32) {
	raw := uint32(length)
	if hostLittleEndian {
		raw = bits.ReverseBytes32(raw)
	}
	buf.PutInt32Ordered(frameOffset+frameLengthOffset, int32(raw))
}

// FrameType reads the type field of the frame at frameOffset.
func FrameType(buf *concurrent.AtomicBuffer, frameOffset int32) uint16 {
	return binary.BigEndian.Uint16(buf.Slice(frameOffset+typeOffset, 2))
}

// FrameFlags reads the flags field of the frame at frameOffset.
func FrameFlags(buf *concurrent.AtomicBuffer, frameOffset int32) uint8 {
	return buf.GetUint8(frameOffset + flagsOffset)
}

// FrameTermID reads the term id field of the frame at frameOffset.
func FrameTermID(buf *concurrent.AtomicBuffer, frameOffset int32) int32 {
	return int32(binary.BigEndian.Uint32(buf.Slice(frameOffset+termIDOffset, 4)))
}

// Header is a flyweight over the common frame header.
type Header struct {
	buf []byte
}

// Wrap points the flyweight at a frame starting at offset within b.
func (h *Header) Wrap(b []byte, offset int) *Header {
	h.buf = b[offset:]
	return h
}

// FrameLength reads the frame length without ordering.
func (h *Header) FrameLength() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[frameLengthOffset:]))
}

// SetFrameLength writes the frame length without ordering.
func (h *Header) SetFrameLength(length int32) {
	binary.BigEndian.PutUint32(h.buf[frameLengthOffset:], uint32(length))
}

// Version reads the protocol version.
func (h *Header) Version() uint8 { return h.buf[versionOffset] }

// SetVersion writes the protocol version.
func (h *Header) SetVersion(v uint8) { h.buf[versionOffset] = v }

// Flags reads the header flags.
func (h *Header) Flags() uint8 { return h.buf[flagsOffset] }

// SetFlags writes the header flags.
func (h *Header) SetFlags(f uint8) { h.buf[flagsOffset] = f }

// Type reads the frame type.
func (h *Header) Type() uint16 {
	return binary.BigEndian.Uint16(h.buf[typeOffset:])
}

// SetType writes the frame type.
func (h *Header) SetType(t uint16) {
	binary.BigEndian.PutUint16(h.buf[typeOffset:], t)
}

// TermOffset reads the offset of the frame within its term.
func (h *Header) TermOffset() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[termOffsetOffset:]))
}

// SetTermOffset writes the offset of the frame within its term.
func (h *Header) SetTermOffset(offset int32) {
	binary.BigEndian.PutUint32(h.buf[termOffsetOffset:], uint32(offset))
}

// SessionID reads the session id.
func (h *Header) SessionID() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[sessionIDOffset:]))
}

// SetSessionID writes the session id.
func (h *Header) SetSessionID(id int32) {
	binary.BigEndian.PutUint32(h.buf[sessionIDOffset:], uint32(id))
}

// StreamID reads the stream id.
func (h *Header) StreamID() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[streamIDOffset:]))
}

// SetStreamID writes the stream id.
func (h *Header) SetStreamID(id int32) {
	binary.BigEndian.PutUint32(h.buf[streamIDOffset:], uint32(id))
}

// TermID reads the term id.
func (h *Header) TermID() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[termIDOffset:]))
}

// SetTermID writes the term id.
func (h *Header) SetTermID(id int32) {
	binary.BigEndian.PutUint32(h.buf[termIDOffset:], uint32(id))
}

// DataHeader is a flyweight over DATA and PAD frames.
type DataHeader struct {
	Header
}

// Wrap points the flyweight at a frame starting at offset within b.
func (h *DataHeader) Wrap(b []byte, offset int) *DataHeader {
	h.Header.Wrap(b, offset)
	return h
}

// ReservedValue reads the application-reserved field.
func (h *DataHeader) ReservedValue() uint64 {
	return binary.BigEndian.Uint64(h.buf[reservedOffset:])
}

// SetReservedValue writes the application-reserved field.
func (h *DataHeader) SetReservedValue(v uint64) {
	binary.BigEndian.PutUint64(h.buf[reservedOffset:], v)
}

// Payload returns the frame payload given the frame length.
func (h *DataHeader) Payload() []byte {
	return h.buf[DataHeaderLength:h.FrameLength()]
}

// NakHeader is a flyweight over NAK frames.
type NakHeader struct {
	Header
}

// Wrap points the flyweight at a frame starting at offset within b.
func (h *NakHeader) Wrap(b []byte, offset int) *NakHeader {
	h.Header.Wrap(b, offset)
	return h
}

// GapOffset reads the term offset where the gap starts.
func (h *NakHeader) GapOffset() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[nakGapOffsetOffset:]))
}

// SetGapOffset writes the term offset where the gap starts.
func (h *NakHeader) SetGapOffset(offset int32) {
	binary.BigEndian.PutUint32(h.buf[nakGapOffsetOffset:], uint32(offset))
}

// GapLength reads the length of the missing range.
func (h *NakHeader) GapLength() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[nakGapLengthOffset:]))
}

// SetGapLength writes the length of the missing range.
func (h *NakHeader) SetGapLength(length int32) {
	binary.BigEndian.PutUint32(h.buf[nakGapLengthOffset:], uint32(length))
}

// StatusMessage is a flyweight over status message frames.
type StatusMessage struct {
	Header
}

// Wrap points the flyweight at a frame starting at offset within b.
func (h *StatusMessage) Wrap(b []byte, offset int) *StatusMessage {
	h.Header.Wrap(b, offset)
	return h
}

// ConsumptionTermID reads the term id of the receiver's consumption point.
func (h *StatusMessage) ConsumptionTermID() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[smConsumptionTermIDOffset:]))
}

// SetConsumptionTermID writes the term id of the consumption point.
func (h *StatusMessage) SetConsumptionTermID(id int32) {
	binary.BigEndian.PutUint32(h.buf[smConsumptionTermIDOffset:], uint32(id))
}

// ConsumptionTermOffset reads the term offset of the consumption point.
func (h *StatusMessage) ConsumptionTermOffset() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[smConsumptionTermOffsetOffset:]))
}

// SetConsumptionTermOffset writes the term offset of the consumption point.
func (h *StatusMessage) SetConsumptionTermOffset(offset int32) {
	binary.BigEndian.PutUint32(h.buf[smConsumptionTermOffsetOffset:], uint32(offset))
}

// ReceiverWindow reads the bytes the receiver will accept past the
// consumption point.
func (h *StatusMessage) ReceiverWindow() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[smReceiverWindowOffset:]))
}

// SetReceiverWindow writes the receiver window.
func (h *StatusMessage) SetReceiverWindow(window int32) {
	binary.BigEndian.PutUint32(h.buf[smReceiverWindowOffset:], uint32(window))
}

// SetupHeader is a flyweight over setup frames.
type SetupHeader struct {
	Header
}

// Wrap points the flyweight at a frame starting at offset within b.
func (h *SetupHeader) Wrap(b []byte, offset int) *SetupHeader {
	h.Header.Wrap(b, offset)
	return h
}

// InitialTermID reads the first term id of the stream.
func (h *SetupHeader) InitialTermID() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[setupInitialTermIDOffset:]))
}

// SetInitialTermID writes the first term id of the stream.
func (h *SetupHeader) SetInitialTermID(id int32) {
	binary.BigEndian.PutUint32(h.buf[setupInitialTermIDOffset:], uint32(id))
}

// ActiveTermID reads the term id the sender is currently appending.
func (h *SetupHeader) ActiveTermID() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[setupActiveTermIDOffset:]))
}

// SetActiveTermID writes the current term id.
func (h *SetupHeader) SetActiveTermID(id int32) {
	binary.BigEndian.PutUint32(h.buf[setupActiveTermIDOffset:], uint32(id))
}

// TermLength reads the term buffer length for the stream.
func (h *SetupHeader) TermLength() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[setupTermLengthOffset:]))
}

// SetTermLength writes the term buffer length for the stream.
func (h *SetupHeader) SetTermLength(length int32) {
	binary.BigEndian.PutUint32(h.buf[setupTermLengthOffset:], uint32(length))
}

// MTU reads the largest frame the sender will emit.
func (h *SetupHeader) MTU() int32 {
	return int32(binary.BigEndian.Uint32(h.buf[setupMTUOffset:]))
}

// SetMTU writes the largest frame the sender will emit.
func (h *SetupHeader) SetMTU(mtu int32) {
	binary.BigEndian.PutUint32(h.buf[setupMTUOffset:], uint32(mtu))
}
