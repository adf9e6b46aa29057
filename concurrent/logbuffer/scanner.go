package logbuffer

import (
	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/protocol"
)

// FrameHandler is called for each committed data frame found by a scan. The
// offset and length describe the whole frame including its header.
type FrameHandler func(termBuffer *concurrent.AtomicBuffer, frameOffset, frameLength int32)

// ScanTerm walks committed frames from offset, invoking handler for each data
// frame and silently stepping over padding. It stops at the first
// uncommitted (zero length) frame, after frameCountLimit frames, or at the
// end of the term. The scan never mutates the term. It returns the offset
// after the last consumed frame and the number of data frames delivered.
func ScanTerm(termBuffer *concurrent.AtomicBuffer, offset int32, handler FrameHandler, frameCountLimit int) (int32, int) {
	capacity := termBuffer.Capacity()
	framesRead := 0

	for framesRead < frameCountLimit && offset < capacity {
		frameLength := protocol.FrameLengthVolatile(termBuffer, offset)
		if frameLength <= 0 {
			break
		}

		alignedLength := concurrent.AlignInt32(frameLength, protocol.FrameAlignment)

		if protocol.FrameType(termBuffer, offset) != protocol.TypePad {
			handler(termBuffer, offset, frameLength)
			framesRead++
		}

		offset += alignedLength
	}

	return offset, framesRead
}

// ScanOutboundBatch finds the largest contiguous run of committed frames
// starting at offset whose total aligned length does not exceed maxLength.
// The Sender uses it to emit MTU-bounded transmissions without re-reading
// frame headers. It returns the total aligned bytes available, capped so a
// frame is never split.
func ScanOutboundBatch(termBuffer *concurrent.AtomicBuffer, offset, maxLength int32) int32 {
	capacity := termBuffer.Capacity()
	available := int32(0)

	for offset+available < capacity {
		frameOffset := offset + available
		frameLength := protocol.FrameLengthVolatile(termBuffer, frameOffset)
		if frameLength <= 0 {
			break
		}

		alignedLength := concurrent.AlignInt32(frameLength, protocol.FrameAlignment)
		if available+alignedLength > maxLength {
			break
		}
		available += alignedLength
	}

	return available
}
