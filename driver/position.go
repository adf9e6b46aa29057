package driver

import "math/bits"

// positionBitsToShift returns log2 of a power-of-two term length.
func positionBitsToShift(termLength int32) uint {
	return uint(bits.TrailingZeros32(uint32(termLength)))
}

// computePosition maps (termID, termOffset) to a byte position on the
// stream.
func computePosition(termID, termOffset, initialTermID int32, bitsToShift uint) int64 {
	return int64(termID-initialTermID)<<bitsToShift + int64(termOffset)
}

// termIDFromPosition recovers the term id holding a position.
func termIDFromPosition(position int64, initialTermID int32, bitsToShift uint) int32 {
	return initialTermID + int32(position>>bitsToShift)
}

// termOffsetFromPosition recovers the offset within the term.
func termOffsetFromPosition(position int64, termLength int32) int32 {
	return int32(position & int64(termLength-1))
}
