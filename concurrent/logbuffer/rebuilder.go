package logbuffer

import (
	"encoding/binary"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/protocol"
)

// Insert copies a received frame into the term at termOffset. The body is
// written first and the frame length last with release ordering, so a
// concurrent subscriber scanning the term never observes a partial frame.
// Re-delivery of a frame already present is harmless: the same bytes land in
// the same place.
func Insert(termBuffer *concurrent.AtomicBuffer, termOffset int32, frame []byte) {
	if len(frame) < protocol.DataHeaderLength {
		return
	}

	frameLength := int32(binary.BigEndian.Uint32(frame[:4]))
	if frameLength <= 0 || termOffset+frameLength > termBuffer.Capacity() {
		return
	}

	termBuffer.PutBytes(termOffset+4, frame[4:])
	protocol.SetFrameLengthOrdered(termBuffer, termOffset, frameLength)
}

// GapHandler is called with each detected gap in a term.
type GapHandler func(termID, termOffset, gapLength int32)

// ScanForGap searches [rebuildOffset, hwmOffset) for the first run of
// unrebuilt bytes. When a gap is found, handler is invoked once and the gap
// start offset is returned. It returns -1 when the range is fully rebuilt.
func ScanForGap(termBuffer *concurrent.AtomicBuffer, termID, rebuildOffset, hwmOffset int32, handler GapHandler) int32 {
	offset := rebuildOffset
	for offset < hwmOffset {
		frameLength := protocol.FrameLengthVolatile(termBuffer, offset)
		if frameLength <= 0 {
			break
		}
		offset += concurrent.AlignInt32(frameLength, protocol.FrameAlignment)
	}

	if offset >= hwmOffset {
		return -1
	}

	gapBegin := offset
	gapEnd := gapBegin
	for gapEnd < hwmOffset && protocol.FrameLengthVolatile(termBuffer, gapEnd) <= 0 {
		gapEnd += protocol.FrameAlignment
	}

	handler(termID, gapBegin, gapEnd-gapBegin)
	return gapBegin
}
