package concurrent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainAccessors(t *testing.T) {
	b := MakeAtomicBuffer(make([]byte, 64))

	b.PutInt32(0, 42)
	assert.Equal(t, int32(42), b.GetInt32(0))

	b.PutInt64(8, -7)
	assert.Equal(t, int64(-7), b.GetInt64(8))

	b.PutUint8(16, 0xAB)
	assert.Equal(t, uint8(0xAB), b.GetUint8(16))
}

func TestVolatileAndOrderedAccessors(t *testing.T) {
	b := MakeAtomicBuffer(make([]byte, 64))

	b.PutInt32Ordered(0, 100)
	assert.Equal(t, int32(100), b.GetInt32Volatile(0))
	assert.Equal(t, int32(100), b.GetInt32(0))

	b.PutInt64Ordered(8, 1<<40)
	assert.Equal(t, int64(1<<40), b.GetInt64Volatile(8))
}

func TestCompareAndSet(t *testing.T) {
	b := MakeAtomicBuffer(make([]byte, 64))

	b.PutInt64(0, 10)
	assert.True(t, b.CompareAndSetInt64(0, 10, 20))
	assert.False(t, b.CompareAndSetInt64(0, 10, 30))
	assert.Equal(t, int64(20), b.GetInt64(0))

	b.PutInt32(8, 1)
	assert.True(t, b.CompareAndSetInt32(8, 1, 2))
	assert.False(t, b.CompareAndSetInt32(8, 1, 3))
}

func TestGetAndAdd(t *testing.T) {
	b := MakeAtomicBuffer(make([]byte, 64))

	assert.Equal(t, int64(0), b.GetAndAddInt64(0, 5))
	assert.Equal(t, int64(5), b.GetAndAddInt64(0, 3))
	assert.Equal(t, int64(8), b.GetInt64(0))
}

func TestBytesAndSlice(t *testing.T) {
	b := MakeAtomicBuffer(make([]byte, 32))

	b.PutBytes(4, []byte("hello"))
	dst := make([]byte, 5)
	b.GetBytes(4, dst)
	assert.Equal(t, "hello", string(dst))

	s := b.Slice(4, 5)
	assert.Equal(t, "hello", string(s))
	s[0] = 'j'
	b.GetBytes(4, dst)
	assert.Equal(t, "jello", string(dst))
}

func TestSetMemory(t *testing.T) {
	b := MakeAtomicBuffer([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	b.SetMemory(2, 4, 0)
	assert.Equal(t, []byte{1, 2, 0, 0, 0, 0, 7, 8}, b.Slice(0, 8))
}

func TestBoundsCheckPanics(t *testing.T) {
	b := MakeAtomicBuffer(make([]byte, 8))
	assert.Panics(t, func() { b.GetInt64(4) })
	assert.Panics(t, func() { b.GetInt32(-1) })
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, v := range []int64{1, 2, 64 * 1024, 1 << 30} {
		assert.True(t, IsPowerOfTwo(v), v)
	}
	for _, v := range []int64{0, 3, 65535, -2} {
		assert.False(t, IsPowerOfTwo(v), v)
	}
}

func TestAlignInt32(t *testing.T) {
	assert.Equal(t, int32(0), AlignInt32(0, 32))
	assert.Equal(t, int32(32), AlignInt32(1, 32))
	assert.Equal(t, int32(32), AlignInt32(32, 32))
	assert.Equal(t, int32(64), AlignInt32(33, 32))
}
