// Package concurrent provides the lock-free building blocks shared by the
// driver agents: atomic access over byte buffers, ring buffers, broadcast
// transmission, and the term log primitives.
package concurrent

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// CacheLineLength is the padding unit used to keep hot fields on separate
// cache lines. 128 covers adjacent-line prefetching on current x86 parts.
const CacheLineLength = 128

// AtomicBuffer provides scalar access with memory ordering over a region of
// bytes, typically a memory-mapped file shared with other processes. Offsets
// for atomic operations must be naturally aligned for the accessed width.
type AtomicBuffer struct {
	ptr      unsafe.Pointer
	capacity int32
}

// MakeAtomicBuffer wraps buf. The wrapped slice must not be moved or freed
// while the buffer is in use.
func MakeAtomicBuffer(buf []byte) *AtomicBuffer {
	b := &AtomicBuffer{}
	b.Wrap(buf)
	return b
}

// Wrap points the buffer at a new byte region.
func (b *AtomicBuffer) Wrap(buf []byte) {
	if len(buf) == 0 {
		b.ptr = nil
		b.capacity = 0
		return
	}
	b.ptr = unsafe.Pointer(&buf[0])
	b.capacity = int32(len(buf))
}

// Capacity returns the length of the wrapped region in bytes.
func (b *AtomicBuffer) Capacity() int32 {
	return b.capacity
}

func (b *AtomicBuffer) boundsCheck(offset, size int32) {
	if offset < 0 || size < 0 || offset+size > b.capacity {
		panic(fmt.Sprintf("atomic buffer access out of range: offset=%d size=%d capacity=%d",
			offset, size, b.capacity))
	}
}

func (b *AtomicBuffer) at(offset int32) unsafe.Pointer {
	return unsafe.Pointer(uintptr(b.ptr) + uintptr(offset))
}

// GetUint8 reads a byte without ordering.
func (b *AtomicBuffer) GetUint8(offset int32) uint8 {
	b.boundsCheck(offset, 1)
	return *(*uint8)(b.at(offset))
}

// PutUint8 writes a byte without ordering.
func (b *AtomicBuffer) PutUint8(offset int32, value uint8) {
	b.boundsCheck(offset, 1)
	*(*uint8)(b.at(offset)) = value
}

// GetInt32 reads a 32-bit value without ordering.
func (b *AtomicBuffer) GetInt32(offset int32) int32 {
	b.boundsCheck(offset, 4)
	return *(*int32)(b.at(offset))
}

// PutInt32 writes a 32-bit value without ordering.
func (b *AtomicBuffer) PutInt32(offset int32, value int32) {
	b.boundsCheck(offset, 4)
	*(*int32)(b.at(offset)) = value
}

// GetInt64 reads a 64-bit value without ordering.
func (b *AtomicBuffer) GetInt64(offset int32) int64 {
	b.boundsCheck(offset, 8)
	return *(*int64)(b.at(offset))
}

// PutInt64 writes a 64-bit value without ordering.
func (b *AtomicBuffer) PutInt64(offset int32, value int64) {
	b.boundsCheck(offset, 8)
	*(*int64)(b.at(offset)) = value
}

// GetInt32Volatile reads a 32-bit value with acquire ordering.
func (b *AtomicBuffer) GetInt32Volatile(offset int32) int32 {
	b.boundsCheck(offset, 4)
	return atomic.LoadInt32((*int32)(b.at(offset)))
}

// PutInt32Ordered writes a 32-bit value with release ordering.
func (b *AtomicBuffer) PutInt32Ordered(offset int32, value int32) {
	b.boundsCheck(offset, 4)
	atomic.StoreInt32((*int32)(b.at(offset)), value)
}

// GetInt64Volatile reads a 64-bit value with acquire ordering.
func (b *AtomicBuffer) GetInt64Volatile(offset int32) int64 {
	b.boundsCheck(offset, 8)
	return atomic.LoadInt64((*int64)(b.at(offset)))
}

// PutInt64Ordered writes a 64-bit value with release ordering.
func (b *AtomicBuffer) PutInt64Ordered(offset int32, value int64) {
	b.boundsCheck(offset, 8)
	atomic.StoreInt64((*int64)(b.at(offset)), value)
}

// CompareAndSetInt32 atomically replaces the value at offset if it equals
// expected.
func (b *AtomicBuffer) CompareAndSetInt32(offset int32, expected, updated int32) bool {
	b.boundsCheck(offset, 4)
	return atomic.CompareAndSwapInt32((*int32)(b.at(offset)), expected, updated)
}

// CompareAndSetInt64 atomically replaces the value at offset if it equals
// expected.
func (b *AtomicBuffer) CompareAndSetInt64(offset int32, expected, updated int64) bool {
	b.boundsCheck(offset, 8)
	return atomic.CompareAndSwapInt64((*int64)(b.at(offset)), expected, updated)
}

// GetAndAddInt64 atomically adds delta and returns the previous value.
func (b *AtomicBuffer) GetAndAddInt64(offset int32, delta int64) int64 {
	b.boundsCheck(offset, 8)
	return atomic.AddInt64((*int64)(b.at(offset)), delta) - delta
}

// GetAndAddInt32 atomically adds delta and returns the previous value.
func (b *AtomicBuffer) GetAndAddInt32(offset int32, delta int32) int32 {
	b.boundsCheck(offset, 4)
	return atomic.AddInt32((*int32)(b.at(offset)), delta) - delta
}

// GetBytes copies length bytes starting at offset into dst.
func (b *AtomicBuffer) GetBytes(offset int32, dst []byte) {
	b.boundsCheck(offset, int32(len(dst)))
	src := unsafe.Slice((*byte)(b.at(offset)), len(dst))
	copy(dst, src)
}

// PutBytes copies src into the buffer starting at offset.
func (b *AtomicBuffer) PutBytes(offset int32, src []byte) {
	b.boundsCheck(offset, int32(len(src)))
	dst := unsafe.Slice((*byte)(b.at(offset)), len(src))
	copy(dst, src)
}

// Slice returns a view of [offset, offset+length) sharing the underlying
// memory. Reads through the view carry no ordering.
func (b *AtomicBuffer) Slice(offset, length int32) []byte {
	b.boundsCheck(offset, length)
	return unsafe.Slice((*byte)(b.at(offset)), length)
}

// SetMemory fills [offset, offset+length) with value.
func (b *AtomicBuffer) SetMemory(offset, length int32, value byte) {
	b.boundsCheck(offset, length)
	s := unsafe.Slice((*byte)(b.at(offset)), length)
	for i := range s {
		s[i] = value
	}
}

// IsPowerOfTwo reports whether v is a positive power of two.
func IsPowerOfTwo(v int64) bool {
	return v > 0 && (v&(v-1)) == 0
}

// AlignInt32 rounds value up to the next multiple of alignment, which must be
// a power of two.
func AlignInt32(value, alignment int32) int32 {
	return (value + alignment - 1) &^ (alignment - 1)
}
