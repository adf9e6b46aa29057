package logbuffer

import (
	"fmt"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/errors"
	"github.com/chris-numeus/aeron/protocol"
)

// Claim results. Non-negative values are the term offset of the claimed
// frame.
const (
	// AppendTripped reports the term filled during the claim; the caller
	// must rotate to the next partition and retry.
	AppendTripped int32 = -1
)

// BufferClaim is a zero-copy window over a claimed frame. The producer writes
// the payload through Buffer and publishes it with Commit, or retracts it
// with Abort which turns the frame into padding.
type BufferClaim struct {
	termBuffer  *concurrent.AtomicBuffer
	frameOffset int32
	frameLength int32
}

func (bc *BufferClaim) wrap(termBuffer *concurrent.AtomicBuffer, frameOffset, frameLength int32) {
	bc.termBuffer = termBuffer
	bc.frameOffset = frameOffset
	bc.frameLength = frameLength
}

// Buffer returns the payload region of the claimed frame.
func (bc *BufferClaim) Buffer() []byte {
	return bc.termBuffer.Slice(
		bc.frameOffset+protocol.DataHeaderLength,
		bc.frameLength-protocol.DataHeaderLength)
}

// Offset returns the term offset of the claimed frame.
func (bc *BufferClaim) Offset() int32 {
	return bc.frameOffset
}

// Commit publishes the frame. The length write carries release ordering and
// is the only store consumers synchronize on.
func (bc *BufferClaim) Commit() {
	protocol.SetFrameLengthOrdered(bc.termBuffer, bc.frameOffset, bc.frameLength)
}

// Abort turns the claimed frame into padding and publishes it so scanners
// skip the region.
func (bc *BufferClaim) Abort() {
	var h protocol.DataHeader
	h.Wrap(bc.termBuffer.Slice(bc.frameOffset, protocol.DataHeaderLength), 0)
	h.SetType(protocol.TypePad)
	h.SetFlags(protocol.FlagsPadding)
	protocol.SetFrameLengthOrdered(bc.termBuffer, bc.frameOffset, bc.frameLength)
}

// Appender claims space in the active term partition. Claims are wait-free: a
// single fetch-and-add on the raw tail both reserves the space and records
// which term it belongs to.
type Appender struct {
	termBuffer     *concurrent.AtomicBuffer
	meta           *MetaData
	partitionIndex int32

	sessionID int32
	streamID  int32

	maxFrameLength   int32
	maxPayloadLength int32
}

// NewAppender creates an appender for one partition of a stream's log.
func NewAppender(termBuffer *concurrent.AtomicBuffer, meta *MetaData, partitionIndex int32) (*Appender, error) {
	if err := CheckTermLength(termBuffer.Capacity()); err != nil {
		return nil, err
	}

	mtu := meta.MTULength()
	return &Appender{
		termBuffer:       termBuffer,
		meta:             meta,
		partitionIndex:   partitionIndex,
		sessionID:        meta.SessionID(),
		streamID:         meta.StreamID(),
		maxFrameLength:   mtu,
		maxPayloadLength: mtu - protocol.DataHeaderLength,
	}, nil
}

// MaxPayloadLength returns the largest payload a single claim accepts.
func (a *Appender) MaxPayloadLength() int32 {
	return a.maxPayloadLength
}

// RawTailVolatile reads this partition's raw tail.
func (a *Appender) RawTailVolatile() int64 {
	return a.meta.RawTailVolatile(a.partitionIndex)
}

// Claim reserves a frame for length payload bytes and wraps claim around it.
// On success it returns the term offset of the frame. AppendTripped means the
// term filled and the caller must rotate.
func (a *Appender) Claim(length int32, claim *BufferClaim) (int32, error) {
	if length < 0 || length > a.maxPayloadLength {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: length=%d max=%d", errors.ErrMessageTooLong, length, a.maxPayloadLength),
			"Appender", "Claim", "validate length")
	}

	frameLength := length + protocol.DataHeaderLength
	alignedLength := concurrent.AlignInt32(frameLength, protocol.FrameAlignment)
	termLength := a.termBuffer.Capacity()

	rawTail := a.meta.GetAndAddRawTail(a.partitionIndex, alignedLength)
	termOffset := int64(uint32(rawTail))
	termID := TermID(rawTail)

	resultingOffset := termOffset + int64(alignedLength)
	if resultingOffset > int64(termLength) {
		a.handleEndOfLog(int32(termOffset), termID, termLength)
		return AppendTripped, nil
	}

	frameOffset := int32(termOffset)
	a.writeHeader(frameOffset, termID)
	claim.wrap(a.termBuffer, frameOffset, frameLength)
	return frameOffset, nil
}

// writeHeader fills every header field except the frame length, which stays
// zero until Commit publishes the frame.
func (a *Appender) writeHeader(frameOffset, termID int32) {
	var h protocol.DataHeader
	h.Wrap(a.termBuffer.Slice(frameOffset, protocol.DataHeaderLength), 0)
	h.SetVersion(protocol.CurrentVersion)
	h.SetFlags(protocol.FlagsUnfragmented)
	h.SetType(protocol.TypeData)
	h.SetTermOffset(frameOffset)
	h.SetSessionID(a.sessionID)
	h.SetStreamID(a.streamID)
	h.SetTermID(termID)
	h.SetReservedValue(0)
}

// handleEndOfLog pads the remainder of the term so scanners see a fully
// committed tail. Only the producer whose claim first crossed the boundary
// observes a termOffset inside the term.
func (a *Appender) handleEndOfLog(termOffset, termID, termLength int32) {
	if termOffset < termLength {
		paddingLength := termLength - termOffset
		var h protocol.DataHeader
		h.Wrap(a.termBuffer.Slice(termOffset, protocol.DataHeaderLength), 0)
		h.SetVersion(protocol.CurrentVersion)
		h.SetFlags(protocol.FlagsPadding)
		h.SetType(protocol.TypePad)
		h.SetTermOffset(termOffset)
		h.SetSessionID(a.sessionID)
		h.SetStreamID(a.streamID)
		h.SetTermID(termID)
		h.SetReservedValue(0)
		protocol.SetFrameLengthOrdered(a.termBuffer, termOffset, paddingLength)
	}
}
