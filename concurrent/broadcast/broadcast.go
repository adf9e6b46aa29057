// Package broadcast implements the one-to-many event channel the driver uses
// to publish control responses and connection events to every client. The
// channel is lossy: a receiver that falls more than a buffer length behind is
// lapped and resynchronizes at the latest record.
package broadcast

import (
	"fmt"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/errors"
)

// Record layout:
//
//	0: record length (int32, includes header)
//	4: message type id (int32, PaddingMsgTypeID for wrap filler)
//	8: encoded message
const (
	// RecordHeaderLength is the bytes of bookkeeping before each message.
	RecordHeaderLength = 8
	// RecordAlignment keeps record starts on 8-byte boundaries.
	RecordAlignment = 8
	// PaddingMsgTypeID marks a filler record at the end of the buffer.
	PaddingMsgTypeID int32 = -1
)

// Trailer field offsets relative to the end of the data region.
const (
	tailIntentCounterOffset = 0 * concurrent.CacheLineLength
	tailCounterOffset       = 1 * concurrent.CacheLineLength
	latestCounterOffset     = 2 * concurrent.CacheLineLength

	// TrailerLength is the bookkeeping area appended after the data region.
	TrailerLength = 3 * concurrent.CacheLineLength
)

func lengthOffset(recordOffset int32) int32 { return recordOffset }
func typeOffset(recordOffset int32) int32   { return recordOffset + 4 }
func msgOffset(recordOffset int32) int32    { return recordOffset + RecordHeaderLength }

func checkCapacity(buffer *concurrent.AtomicBuffer) (int32, error) {
	capacity := buffer.Capacity() - TrailerLength
	if !concurrent.IsPowerOfTwo(int64(capacity)) {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: data capacity %d", errors.ErrBufferNotPowerOfTwo, capacity),
			"broadcast", "checkCapacity", "validate capacity")
	}
	return capacity, nil
}

// Transmitter is the single-producer side of the broadcast channel.
type Transmitter struct {
	buffer       *concurrent.AtomicBuffer
	capacity     int32
	mask         int64
	maxMsgLength int32

	tailIntentCounter int32
	tailCounter       int32
	latestCounter     int32
}

// NewTransmitter wraps buffer as the transmit side. The buffer length must be
// a power of two plus TrailerLength.
func NewTransmitter(buffer *concurrent.AtomicBuffer) (*Transmitter, error) {
	capacity, err := checkCapacity(buffer)
	if err != nil {
		return nil, err
	}

	return &Transmitter{
		buffer:            buffer,
		capacity:          capacity,
		mask:              int64(capacity) - 1,
		maxMsgLength:      capacity / 8,
		tailIntentCounter: capacity + tailIntentCounterOffset,
		tailCounter:       capacity + tailCounterOffset,
		latestCounter:     capacity + latestCounterOffset,
	}, nil
}

// Capacity returns the usable data capacity in bytes.
func (t *Transmitter) Capacity() int32 {
	return t.capacity
}

// MaxMsgLength returns the largest message body the channel accepts.
func (t *Transmitter) MaxMsgLength() int32 {
	return t.maxMsgLength
}

// Transmit appends a message. The transmitter never blocks on receivers; slow
// receivers observe the tail intent pass them and reset.
func (t *Transmitter) Transmit(msgTypeID int32, src []byte) error {
	if msgTypeID < 1 {
		return errors.WrapInvalid(
			fmt.Errorf("message type id %d is reserved", msgTypeID),
			"Transmitter", "Transmit", "validate type")
	}
	length := int32(len(src))
	if length > t.maxMsgLength {
		return errors.WrapInvalid(
			fmt.Errorf("%w: length=%d max=%d", errors.ErrMessageTooLong, length, t.maxMsgLength),
			"Transmitter", "Transmit", "validate length")
	}

	tail := t.buffer.GetInt64(t.tailCounter)
	recordOffset := int32(tail & t.mask)
	recordLength := length + RecordHeaderLength
	alignedLength := concurrent.AlignInt32(recordLength, RecordAlignment)
	newTail := tail + int64(alignedLength)

	toEndOfBuffer := t.capacity - recordOffset
	if toEndOfBuffer < alignedLength {
		// Pad out the end so the record starts at offset zero. The tail
		// intent is raised first so receivers in the pad region detect
		// the overwrite.
		t.buffer.PutInt64Ordered(t.tailIntentCounter, newTail+int64(toEndOfBuffer))
		t.buffer.PutInt32(lengthOffset(recordOffset), toEndOfBuffer)
		t.buffer.PutInt32(typeOffset(recordOffset), PaddingMsgTypeID)
		tail += int64(toEndOfBuffer)
		recordOffset = 0
	} else {
		t.buffer.PutInt64Ordered(t.tailIntentCounter, newTail)
	}

	t.buffer.PutInt32(lengthOffset(recordOffset), recordLength)
	t.buffer.PutInt32(typeOffset(recordOffset), msgTypeID)
	t.buffer.PutBytes(msgOffset(recordOffset), src)

	t.buffer.PutInt64Ordered(t.latestCounter, tail)
	t.buffer.PutInt64Ordered(t.tailCounter, tail+int64(alignedLength))

	return nil
}

// Receiver tracks one consumer's cursor over the broadcast channel. Receivers
// are independent; each gets every message it is fast enough to observe.
type Receiver struct {
	buffer       *concurrent.AtomicBuffer
	capacity     int32
	mask         int64
	recordOffset int32
	cursor       int64
	nextRecord   int64
	lappedCount  int64

	tailIntentCounter int32
	tailCounter       int32
	latestCounter     int32
}

// NewReceiver wraps buffer as one consumer cursor.
func NewReceiver(buffer *concurrent.AtomicBuffer) (*Receiver, error) {
	capacity, err := checkCapacity(buffer)
	if err != nil {
		return nil, err
	}

	r := &Receiver{
		buffer:            buffer,
		capacity:          capacity,
		mask:              int64(capacity) - 1,
		tailIntentCounter: capacity + tailIntentCounterOffset,
		tailCounter:       capacity + tailCounterOffset,
		latestCounter:     capacity + latestCounterOffset,
	}
	latest := buffer.GetInt64Volatile(r.latestCounter)
	r.cursor = latest
	r.nextRecord = latest
	r.recordOffset = int32(latest & r.mask)
	return r, nil
}

// LappedCount returns how many times this receiver has been overrun and
// forced to resynchronize.
func (r *Receiver) LappedCount() int64 {
	return r.lappedCount
}

// TypeID returns the message type of the record at the cursor.
func (r *Receiver) TypeID() int32 {
	return r.buffer.GetInt32(typeOffset(r.recordOffset))
}

// Offset returns the buffer offset of the current message body.
func (r *Receiver) Offset() int32 {
	return msgOffset(r.recordOffset)
}

// Length returns the length of the current message body.
func (r *Receiver) Length() int32 {
	return r.buffer.GetInt32(lengthOffset(r.recordOffset)) - RecordHeaderLength
}

// Buffer returns the underlying buffer for reading the current message.
func (r *Receiver) Buffer() *concurrent.AtomicBuffer {
	return r.buffer
}

// ReceiveNext advances to the next record if one is available. After reading
// the message the caller must confirm it with Validate before trusting the
// bytes.
func (r *Receiver) ReceiveNext() bool {
	tail := r.buffer.GetInt64Volatile(r.tailCounter)
	cursor := r.nextRecord

	if tail <= cursor {
		return false
	}

	recordOffset := int32(cursor & r.mask)
	if !r.validate(cursor) {
		r.lappedCount++
		cursor = r.buffer.GetInt64(r.latestCounter)
		recordOffset = int32(cursor & r.mask)
	}

	r.cursor = cursor
	length := r.buffer.GetInt32(lengthOffset(recordOffset))
	r.nextRecord = cursor + int64(concurrent.AlignInt32(length, RecordAlignment))

	if r.buffer.GetInt32(typeOffset(recordOffset)) == PaddingMsgTypeID {
		// Padding consumed silently; the caller polls again for the
		// record at the start of the buffer.
		return false
	}

	r.recordOffset = recordOffset
	return true
}

// Validate confirms the record read since ReceiveNext was not overwritten by
// the transmitter while it was being consumed.
func (r *Receiver) Validate() bool {
	// The acquire load orders the record reads before the intent check.
	return r.validate(r.cursor)
}

func (r *Receiver) validate(cursor int64) bool {
	return cursor+int64(r.capacity) > r.buffer.GetInt64Volatile(r.tailIntentCounter)
}
