package spsc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferPollSingleThreaded(t *testing.T) {
	q := NewQueue[int](8)

	v := 42
	require.NoError(t, q.Offer(&v))
	assert.Equal(t, 1, q.Size())

	got := q.Poll()
	require.NotNil(t, got)
	assert.Equal(t, 42, *got)
	assert.Nil(t, q.Poll())
}

func TestCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	q := NewQueue[int](10)
	assert.Equal(t, 16, q.Capacity())
}

func TestOfferFailsWhenFull(t *testing.T) {
	q := NewQueue[int](4)
	vals := [5]int{1, 2, 3, 4, 5}

	for i := 0; i < 4; i++ {
		require.NoError(t, q.Offer(&vals[i]))
	}
	assert.Error(t, q.Offer(&vals[4]))

	q.Poll()
	assert.NoError(t, q.Offer(&vals[4]))
}

func TestDrain(t *testing.T) {
	q := NewQueue[int](8)
	vals := [5]int{10, 20, 30, 40, 50}
	for i := range vals {
		require.NoError(t, q.Offer(&vals[i]))
	}

	var got []int
	n := q.Drain(func(v *int) { got = append(got, *v) }, 3)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{10, 20, 30}, got)

	n = q.Drain(func(v *int) { got = append(got, *v) }, 10)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{10, 20, 30, 40, 50}, got)
}

func TestProducerConsumerOrdering(t *testing.T) {
	q := NewQueue[int](1024)
	const count = 100000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < count; {
			v := i
			if err := q.Offer(&v); err == nil {
				i++
			}
		}
	}()

	next := 0
	for next < count {
		if v := q.Poll(); v != nil {
			assert.Equal(t, next, *v)
			next++
		}
	}
	wg.Wait()
}
