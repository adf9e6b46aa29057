// Package logbuffer implements the term log primitives: the partitioned term
// descriptor, the wait-free appender, the frame scanner used by the Sender,
// and the rebuilder and gap scanner used on the receive path.
package logbuffer

import (
	"fmt"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/errors"
)

// PartitionCount is the number of term buffers rotated through per stream.
const PartitionCount = 3

// Term length bounds. Lengths must be powers of two so positions can be
// composed with shifts and masks.
const (
	TermMinLength = 64 * 1024
	TermMaxLength = 1024 * 1024 * 1024
)

// Partition lifecycle. Exactly one partition is active at a time; a retired
// partition is dirty until the background cleaner zeroes it.
const (
	StatusClean int32 = iota
	StatusActive
	StatusDirty
)

// StatusName returns a label for a partition status.
func StatusName(status int32) string {
	switch status {
	case StatusClean:
		return "CLEAN"
	case StatusActive:
		return "ACTIVE"
	case StatusDirty:
		return "DIRTY"
	default:
		return "UNKNOWN"
	}
}

// Log metadata layout. Raw tails carry the term id in the upper 32 bits and
// the unclamped tail offset in the lower 32 so a single fetch-and-add both
// claims space and identifies the term written.
const (
	termTailCounterOffset = 0 // 3 * int64
	activeTermCountOffset = 24

	statusSectionOffset = 1 * concurrent.CacheLineLength // 3 * int32

	staticSectionOffset   = 2 * concurrent.CacheLineLength
	initialTermIDOffset   = staticSectionOffset + 0
	mtuLengthOffset       = staticSectionOffset + 4
	termLengthFieldOffset = staticSectionOffset + 8
	sessionIDFieldOffset  = staticSectionOffset + 12
	streamIDFieldOffset   = staticSectionOffset + 16

	// LogMetaDataLength is the size of the metadata file for a stream.
	LogMetaDataLength = 3 * concurrent.CacheLineLength
)

func tailCounterOffset(partitionIndex int32) int32 {
	return termTailCounterOffset + partitionIndex*8
}

func statusOffset(partitionIndex int32) int32 {
	return statusSectionOffset + partitionIndex*4
}

// CheckTermLength validates a term length against the required bounds.
func CheckTermLength(termLength int32) error {
	if termLength < TermMinLength || termLength > TermMaxLength ||
		!concurrent.IsPowerOfTwo(int64(termLength)) {
		return errors.WrapInvalid(
			fmt.Errorf("term length %d must be a power of two in [%d, %d]",
				termLength, TermMinLength, TermMaxLength),
			"logbuffer", "CheckTermLength", "validate term length")
	}
	return nil
}

// IndexByTermCount maps a term count to its partition index.
func IndexByTermCount(termCount int32) int32 {
	return termCount % PartitionCount
}

// PackTail composes a raw tail from a term id and tail offset.
func PackTail(termID, termOffset int32) int64 {
	return int64(termID)<<32 | int64(uint32(termOffset))
}

// TermID extracts the term id from a raw tail.
func TermID(rawTail int64) int32 {
	return int32(rawTail >> 32)
}

// TermOffset extracts the tail offset from a raw tail, clamped to the term
// length since producers may overshoot on rotation.
func TermOffset(rawTail int64, termLength int32) int32 {
	offset := rawTail & 0xFFFFFFFF
	if offset > int64(termLength) {
		return termLength
	}
	return int32(offset)
}

// ComputePosition returns the stream position for a term count and offset.
func ComputePosition(termCount, termOffset, termLength int32) int64 {
	return int64(termCount)*int64(termLength) + int64(termOffset)
}

// MetaData wraps the shared log metadata buffer for a stream.
type MetaData struct {
	buf *concurrent.AtomicBuffer
}

// WrapMetaData wraps buf, which must be at least LogMetaDataLength bytes.
func WrapMetaData(buf *concurrent.AtomicBuffer) (*MetaData, error) {
	if buf.Capacity() < LogMetaDataLength {
		return nil, errors.WrapInvalid(
			fmt.Errorf("metadata buffer %d shorter than %d", buf.Capacity(), LogMetaDataLength),
			"logbuffer", "WrapMetaData", "validate capacity")
	}
	return &MetaData{buf: buf}, nil
}

// RawTailVolatile reads the raw tail of a partition with acquire ordering.
func (m *MetaData) RawTailVolatile(partitionIndex int32) int64 {
	return m.buf.GetInt64Volatile(tailCounterOffset(partitionIndex))
}

// GetAndAddRawTail claims alignedLength bytes in the partition tail.
func (m *MetaData) GetAndAddRawTail(partitionIndex int32, alignedLength int32) int64 {
	return m.buf.GetAndAddInt64(tailCounterOffset(partitionIndex), int64(alignedLength))
}

// SetRawTail initializes a partition's raw tail.
func (m *MetaData) SetRawTail(partitionIndex int32, rawTail int64) {
	m.buf.PutInt64Ordered(tailCounterOffset(partitionIndex), rawTail)
}

// CasRawTail moves a partition's raw tail only if unchanged since it was read.
func (m *MetaData) CasRawTail(partitionIndex int32, expected, updated int64) bool {
	return m.buf.CompareAndSetInt64(tailCounterOffset(partitionIndex), expected, updated)
}

// ActiveTermCount reads the count of terms begun with acquire ordering.
func (m *MetaData) ActiveTermCount() int32 {
	return m.buf.GetInt32Volatile(activeTermCountOffset)
}

// CasActiveTermCount advances the active term count during rotation.
func (m *MetaData) CasActiveTermCount(expected, updated int32) bool {
	return m.buf.CompareAndSetInt32(activeTermCountOffset, expected, updated)
}

// SetActiveTermCount initializes the active term count.
func (m *MetaData) SetActiveTermCount(count int32) {
	m.buf.PutInt32Ordered(activeTermCountOffset, count)
}

// Status reads a partition's lifecycle status with acquire ordering.
func (m *MetaData) Status(partitionIndex int32) int32 {
	return m.buf.GetInt32Volatile(statusOffset(partitionIndex))
}

// SetStatusOrdered publishes a partition's lifecycle status.
func (m *MetaData) SetStatusOrdered(partitionIndex int32, status int32) {
	m.buf.PutInt32Ordered(statusOffset(partitionIndex), status)
}

// InitialTermID reads the stream's first term id.
func (m *MetaData) InitialTermID() int32 {
	return m.buf.GetInt32(initialTermIDOffset)
}

// SetInitialTermID writes the stream's first term id.
func (m *MetaData) SetInitialTermID(id int32) {
	m.buf.PutInt32(initialTermIDOffset, id)
}

// MTULength reads the stream's MTU.
func (m *MetaData) MTULength() int32 {
	return m.buf.GetInt32(mtuLengthOffset)
}

// SetMTULength writes the stream's MTU.
func (m *MetaData) SetMTULength(mtu int32) {
	m.buf.PutInt32(mtuLengthOffset, mtu)
}

// TermLength reads the stream's term length.
func (m *MetaData) TermLength() int32 {
	return m.buf.GetInt32(termLengthFieldOffset)
}

// SetTermLength writes the stream's term length.
func (m *MetaData) SetTermLength(length int32) {
	m.buf.PutInt32(termLengthFieldOffset, length)
}

// SessionID reads the stream's session id.
func (m *MetaData) SessionID() int32 {
	return m.buf.GetInt32(sessionIDFieldOffset)
}

// SetSessionID writes the stream's session id.
func (m *MetaData) SetSessionID(id int32) {
	m.buf.PutInt32(sessionIDFieldOffset, id)
}

// StreamID reads the stream id.
func (m *MetaData) StreamID() int32 {
	return m.buf.GetInt32(streamIDFieldOffset)
}

// SetStreamID writes the stream id.
func (m *MetaData) SetStreamID(id int32) {
	m.buf.PutInt32(streamIDFieldOffset, id)
}

// InitForTermID prepares metadata for a stream starting at initialTermID:
// partition 0 active at the initial term, the rest clean.
func (m *MetaData) InitForTermID(initialTermID int32) {
	m.SetInitialTermID(initialTermID)
	m.SetActiveTermCount(0)
	m.SetRawTail(0, PackTail(initialTermID, 0))
	m.SetStatusOrdered(0, StatusActive)
	for i := int32(1); i < PartitionCount; i++ {
		m.SetRawTail(i, 0)
		m.SetStatusOrdered(i, StatusClean)
	}
}

// ActivePartitionIndex returns the partition currently appending.
func (m *MetaData) ActivePartitionIndex() int32 {
	return IndexByTermCount(m.ActiveTermCount())
}

// RotateLog retires the active partition and activates the next, which must
// be clean. It returns false without side effects when the next partition is
// still dirty, which producers surface as back-pressure.
func (m *MetaData) RotateLog(currentTermCount, currentTermID int32) bool {
	nextIndex := IndexByTermCount(currentTermCount + 1)
	if m.Status(nextIndex) != StatusClean {
		return false
	}

	currentIndex := IndexByTermCount(currentTermCount)
	m.SetRawTail(nextIndex, PackTail(currentTermID+1, 0))
	m.SetStatusOrdered(currentIndex, StatusDirty)
	m.SetStatusOrdered(nextIndex, StatusActive)
	m.CasActiveTermCount(currentTermCount, currentTermCount+1)
	return true
}
