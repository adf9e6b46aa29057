// Package ringbuffer implements the many-to-one ring buffer used to carry
// commands from clients to the driver Conductor over shared memory.
package ringbuffer

import (
	"fmt"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/errors"
)

// RecordDescriptor describes the layout of a single record:
//
//	0: record length (int32, includes header, committed last with release)
//	4: message type id (int32, PaddingMsgTypeID for wrap filler)
//	8: encoded message
const (
	// RecordHeaderLength is the bytes of bookkeeping before each message.
	RecordHeaderLength = 8
	// RecordAlignment keeps record starts on 8-byte boundaries so the
	// length field can be accessed atomically.
	RecordAlignment = 8
	// PaddingMsgTypeID marks a filler record inserted when a message would
	// straddle the end of the buffer.
	PaddingMsgTypeID int32 = -1
)

// Trailer field offsets, each on its own cache line to keep producers and the
// consumer from invalidating each other.
const (
	tailPositionOffset       = 0 * concurrent.CacheLineLength
	headCachePositionOffset  = 1 * concurrent.CacheLineLength
	headPositionOffset       = 2 * concurrent.CacheLineLength
	correlationCounterOffset = 3 * concurrent.CacheLineLength
	consumerHeartbeatOffset  = 4 * concurrent.CacheLineLength

	// TrailerLength is the bookkeeping area appended after the data region.
	TrailerLength = 5 * concurrent.CacheLineLength
)

func lengthOffset(recordOffset int32) int32 { return recordOffset }
func typeOffset(recordOffset int32) int32   { return recordOffset + 4 }

// EncodedMsgOffset returns the offset of the message body within a record.
func EncodedMsgOffset(recordOffset int32) int32 { return recordOffset + RecordHeaderLength }

// Handler is called for each message read from the ring buffer. The bytes are
// only valid for the duration of the call.
type Handler func(msgTypeID int32, buffer *concurrent.AtomicBuffer, index, length int32)

// ManyToOneRingBuffer is a multi-producer single-consumer ring buffer over an
// AtomicBuffer whose data region capacity is a power of two.
type ManyToOneRingBuffer struct {
	buffer       *concurrent.AtomicBuffer
	capacity     int32
	maxMsgLength int32

	tailPosition       int32
	headCachePosition  int32
	headPosition       int32
	correlationCounter int32
	consumerHeartbeat  int32
}

// New wraps buffer as a many-to-one ring. The buffer length must be a power
// of two plus TrailerLength.
func New(buffer *concurrent.AtomicBuffer) (*ManyToOneRingBuffer, error) {
	capacity := buffer.Capacity() - TrailerLength
	if !concurrent.IsPowerOfTwo(int64(capacity)) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: data capacity %d", errors.ErrBufferNotPowerOfTwo, capacity),
			"ManyToOneRingBuffer", "New", "validate capacity")
	}

	return &ManyToOneRingBuffer{
		buffer:             buffer,
		capacity:           capacity,
		maxMsgLength:       capacity / 8,
		tailPosition:       capacity + tailPositionOffset,
		headCachePosition:  capacity + headCachePositionOffset,
		headPosition:       capacity + headPositionOffset,
		correlationCounter: capacity + correlationCounterOffset,
		consumerHeartbeat:  capacity + consumerHeartbeatOffset,
	}, nil
}

// Capacity returns the usable data capacity in bytes.
func (rb *ManyToOneRingBuffer) Capacity() int32 {
	return rb.capacity
}

// MaxMsgLength returns the largest message body the ring accepts.
func (rb *ManyToOneRingBuffer) MaxMsgLength() int32 {
	return rb.maxMsgLength
}

// Write copies the message into the ring. It returns
// errors.ErrInsufficientCapacity when the consumer has not freed enough space,
// which callers treat as back-pressure rather than failure.
func (rb *ManyToOneRingBuffer) Write(msgTypeID int32, src []byte) error {
	if msgTypeID < 1 {
		return errors.WrapInvalid(
			fmt.Errorf("message type id %d is reserved", msgTypeID),
			"ManyToOneRingBuffer", "Write", "validate type")
	}
	length := int32(len(src))
	if length > rb.maxMsgLength {
		return errors.WrapInvalid(
			fmt.Errorf("%w: length=%d max=%d", errors.ErrMessageTooLong, length, rb.maxMsgLength),
			"ManyToOneRingBuffer", "Write", "validate length")
	}

	recordLength := length + RecordHeaderLength
	requiredCapacity := concurrent.AlignInt32(recordLength, RecordAlignment)
	recordOffset, err := rb.claimCapacity(requiredCapacity)
	if err != nil {
		return err
	}

	rb.buffer.PutInt32(typeOffset(recordOffset), msgTypeID)
	rb.buffer.PutBytes(EncodedMsgOffset(recordOffset), src)
	// Committing the length last publishes the whole record.
	rb.buffer.PutInt32Ordered(lengthOffset(recordOffset), recordLength)

	return nil
}

func (rb *ManyToOneRingBuffer) claimCapacity(requiredCapacity int32) (int32, error) {
	mask := int64(rb.capacity) - 1
	head := rb.buffer.GetInt64Volatile(rb.headCachePosition)

	for {
		tail := rb.buffer.GetInt64Volatile(rb.tailPosition)
		available := int64(rb.capacity) - (tail - head)

		if int64(requiredCapacity) > available {
			head = rb.buffer.GetInt64Volatile(rb.headPosition)
			if int64(requiredCapacity) > int64(rb.capacity)-(tail-head) {
				return 0, errors.ErrInsufficientCapacity
			}
			rb.buffer.PutInt64Ordered(rb.headCachePosition, head)
		}

		padding := int64(0)
		tailIndex := tail & mask
		toBufferEnd := int64(rb.capacity) - tailIndex

		if int64(requiredCapacity) > toBufferEnd {
			// The record will not fit before the wrap, so claim to the
			// end and fill it with a padding record.
			headIndex := head & mask
			if int64(requiredCapacity) > headIndex {
				head = rb.buffer.GetInt64Volatile(rb.headPosition)
				headIndex = head & mask
				if int64(requiredCapacity) > headIndex {
					return 0, errors.ErrInsufficientCapacity
				}
				rb.buffer.PutInt64Ordered(rb.headCachePosition, head)
			}
			padding = toBufferEnd
		}

		if rb.buffer.CompareAndSetInt64(rb.tailPosition, tail, tail+int64(requiredCapacity)+padding) {
			if padding != 0 {
				rb.buffer.PutInt32(typeOffset(int32(tailIndex)), PaddingMsgTypeID)
				rb.buffer.PutInt32Ordered(lengthOffset(int32(tailIndex)), int32(padding))
				return 0, nil
			}
			return int32(tailIndex), nil
		}
	}
}

// Read drains up to messageCountLimit committed messages, invoking handler for
// each, and returns the number consumed. Only the single consumer may call it.
func (rb *ManyToOneRingBuffer) Read(handler Handler, messageCountLimit int) int {
	messagesRead := 0
	head := rb.buffer.GetInt64(rb.headPosition)
	headIndex := int32(head & (int64(rb.capacity) - 1))
	contiguousBlockLength := rb.capacity - headIndex
	bytesRead := int32(0)

	defer func() {
		if bytesRead > 0 {
			// Zeroing behind the consumer keeps uncommitted regions
			// reading as zero length for producers that wrap.
			rb.buffer.SetMemory(headIndex, bytesRead, 0)
			rb.buffer.PutInt64Ordered(rb.headPosition, head+int64(bytesRead))
		}
	}()

	for bytesRead < contiguousBlockLength && messagesRead < messageCountLimit {
		recordOffset := headIndex + bytesRead
		recordLength := rb.buffer.GetInt32Volatile(lengthOffset(recordOffset))
		if recordLength <= 0 {
			break
		}

		bytesRead += concurrent.AlignInt32(recordLength, RecordAlignment)

		msgTypeID := rb.buffer.GetInt32(typeOffset(recordOffset))
		if msgTypeID == PaddingMsgTypeID {
			continue
		}

		messagesRead++
		handler(msgTypeID, rb.buffer, EncodedMsgOffset(recordOffset), recordLength-RecordHeaderLength)
	}

	return messagesRead
}

// NextCorrelationID returns a unique, monotonically increasing id shared by
// all producers on the ring.
func (rb *ManyToOneRingBuffer) NextCorrelationID() int64 {
	return rb.buffer.GetAndAddInt64(rb.correlationCounter, 1)
}

// ConsumerHeartbeatTime returns the last heartbeat the consumer recorded.
func (rb *ManyToOneRingBuffer) ConsumerHeartbeatTime() int64 {
	return rb.buffer.GetInt64Volatile(rb.consumerHeartbeat)
}

// UpdateConsumerHeartbeatTime records consumer liveness in the trailer.
func (rb *ManyToOneRingBuffer) UpdateConsumerHeartbeatTime(timeMillis int64) {
	rb.buffer.PutInt64Ordered(rb.consumerHeartbeat, timeMillis)
}

// Size returns the bytes currently queued between consumer and producers.
func (rb *ManyToOneRingBuffer) Size() int32 {
	var tail, head int64
	headBefore := rb.buffer.GetInt64Volatile(rb.headPosition)
	for {
		tail = rb.buffer.GetInt64Volatile(rb.tailPosition)
		head = rb.buffer.GetInt64Volatile(rb.headPosition)
		if head == headBefore {
			break
		}
		headBefore = head
	}
	size := tail - head
	if size < 0 {
		return 0
	}
	return int32(size)
}
