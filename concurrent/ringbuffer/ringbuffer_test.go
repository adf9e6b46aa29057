package ringbuffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-numeus/aeron/concurrent"
)

func newRing(t *testing.T, capacity int32) *ManyToOneRingBuffer {
	t.Helper()
	rb, err := New(concurrent.MakeAtomicBuffer(make([]byte, capacity+TrailerLength)))
	require.NoError(t, err)
	return rb
}

func TestNewRejectsNonPowerOfTwoCapacity(t *testing.T) {
	_, err := New(concurrent.MakeAtomicBuffer(make([]byte, 1000+TrailerLength)))
	assert.Error(t, err)
}

func TestWriteThenRead(t *testing.T) {
	rb := newRing(t, 1024)

	require.NoError(t, rb.Write(7, []byte("first")))
	require.NoError(t, rb.Write(8, []byte("second")))

	var types []int32
	var payloads []string
	n := rb.Read(func(msgTypeID int32, buffer *concurrent.AtomicBuffer, index, length int32) {
		types = append(types, msgTypeID)
		payloads = append(payloads, string(buffer.Slice(index, length)))
	}, 10)

	assert.Equal(t, 2, n)
	assert.Equal(t, []int32{7, 8}, types)
	assert.Equal(t, []string{"first", "second"}, payloads)
}

func TestReadHonorsLimit(t *testing.T) {
	rb := newRing(t, 1024)
	for i := 0; i < 5; i++ {
		require.NoError(t, rb.Write(1, []byte{byte(i)}))
	}

	assert.Equal(t, 2, rb.Read(func(int32, *concurrent.AtomicBuffer, int32, int32) {}, 2))
	assert.Equal(t, 3, rb.Read(func(int32, *concurrent.AtomicBuffer, int32, int32) {}, 10))
}

func TestWriteBackPressureWhenFull(t *testing.T) {
	rb := newRing(t, 64)

	// Four maximum-length records (8 byte body + 8 byte header) fill the ring.
	payload := make([]byte, rb.MaxMsgLength())
	for i := 0; i < 4; i++ {
		require.NoError(t, rb.Write(1, payload))
	}

	err := rb.Write(1, payload)
	assert.Error(t, err)
}

func TestSpaceReclaimedAfterRead(t *testing.T) {
	rb := newRing(t, 64)
	payload := make([]byte, rb.MaxMsgLength())

	for i := 0; i < 4; i++ {
		require.NoError(t, rb.Write(1, payload))
	}
	rb.Read(func(int32, *concurrent.AtomicBuffer, int32, int32) {}, 1)
	require.NoError(t, rb.Write(1, payload))
}

func TestWrapInsertsPaddingRecord(t *testing.T) {
	rb := newRing(t, 128)

	// Fill to near the end, consume, then write a message that cannot fit in
	// the space before the wrap point.
	require.NoError(t, rb.Write(1, make([]byte, 80)))
	rb.Read(func(int32, *concurrent.AtomicBuffer, int32, int32) {}, 1)
	require.NoError(t, rb.Write(2, make([]byte, 60)))

	var got []int32
	rb.Read(func(msgTypeID int32, _ *concurrent.AtomicBuffer, _, length int32) {
		got = append(got, msgTypeID)
		assert.Equal(t, int32(60), length)
	}, 10)
	assert.Equal(t, []int32{2}, got)
}

func TestNextCorrelationIDMonotonic(t *testing.T) {
	rb := newRing(t, 64)
	a := rb.NextCorrelationID()
	b := rb.NextCorrelationID()
	assert.Equal(t, a+1, b)
}

func TestConsumerHeartbeat(t *testing.T) {
	rb := newRing(t, 64)
	rb.UpdateConsumerHeartbeatTime(12345)
	assert.Equal(t, int64(12345), rb.ConsumerHeartbeatTime())
}

func TestConcurrentProducersSingleConsumer(t *testing.T) {
	rb := newRing(t, 64*1024)

	const producers = 4
	const perProducer = 1000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			msg := []byte{byte(p)}
			for i := 0; i < perProducer; {
				if err := rb.Write(1, msg); err == nil {
					i++
				}
			}
		}(p)
	}

	counts := make(map[byte]int)
	total := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for total < producers*perProducer {
			total += rb.Read(func(_ int32, buffer *concurrent.AtomicBuffer, index, length int32) {
				counts[buffer.GetUint8(index)]++
			}, 64)
		}
	}()

	wg.Wait()
	<-done

	for p := 0; p < producers; p++ {
		assert.Equal(t, perProducer, counts[byte(p)])
	}
}
