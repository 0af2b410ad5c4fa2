package pullsub

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"

	"github.com/mirror520/pullsub/keyexpr"
	"github.com/mirror520/pullsub/sample"
)

func newTestSample(key string) *sample.Sample {
	s, err := sample.New(keyexpr.MustParse(key), []byte(key), ulid.Make())
	if err != nil {
		panic(err)
	}
	return s
}

func TestSampleQueueFIFO(t *testing.T) {
	assert := assert.New(t)

	q := newSampleQueue(3)
	ctx := context.Background()

	// wrap around the ring a few times
	for round := 0; round < 3; round++ {
		for i := 0; i < 3; i++ {
			dropped, err := q.push(ctx, newTestSample("k/"+strconv.Itoa(i)), Reliable)
			assert.NoError(err)
			assert.False(dropped)
		}

		assert.Equal(3, q.len())

		for i := 0; i < 3; i++ {
			s, err := q.pop()
			if assert.NoError(err) && assert.NotNil(s) {
				assert.Equal("k/"+strconv.Itoa(i), s.Key.String())
			}
		}

		s, err := q.pop()
		assert.NoError(err)
		assert.Nil(s)
	}
}

func TestSampleQueueBestEffortDropsOldest(t *testing.T) {
	assert := assert.New(t)

	q := newSampleQueue(2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		dropped, err := q.push(ctx, newTestSample("k/"+strconv.Itoa(i)), BestEffort)
		assert.NoError(err)
		assert.Equal(i >= 2, dropped)
	}

	assert.Equal(uint64(3), q.droppedCount())
	assert.Equal(2, q.len())

	s, _ := q.pop()
	assert.Equal("k/3", s.Key.String())

	s, _ = q.pop()
	assert.Equal("k/4", s.Key.String())
}

func TestSampleQueueMinimumCapacity(t *testing.T) {
	assert.Equal(t, 1, newSampleQueue(0).cap())
	assert.Equal(t, 1, newSampleQueue(-3).cap())
}

func TestSampleQueueReliableWaitsForSpace(t *testing.T) {
	assert := assert.New(t)

	q := newSampleQueue(1)
	ctx := context.Background()

	q.push(ctx, newTestSample("k/0"), Reliable)

	done := make(chan error, 1)
	go func() {
		_, err := q.push(ctx, newTestSample("k/1"), Reliable)
		done <- err
	}()

	select {
	case <-done:
		assert.Fail("push did not wait for space")
		return
	case <-time.After(50 * time.Millisecond):
	}

	s, _ := q.pop()
	assert.Equal("k/0", s.Key.String())

	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(time.Second):
		assert.Fail("push not woken")
		return
	}

	s, _ = q.pop()
	assert.Equal("k/1", s.Key.String())
}

func TestSampleQueueReliableContextDone(t *testing.T) {
	assert := assert.New(t)

	q := newSampleQueue(1)
	q.push(context.Background(), newTestSample("k/0"), Reliable)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.push(ctx, newTestSample("k/1"), Reliable)
	assert.ErrorIs(err, context.DeadlineExceeded)
	assert.Equal(1, q.len())
	assert.Zero(q.waiters)
}

func TestSampleQueueCloseWakesProducers(t *testing.T) {
	assert := assert.New(t)

	q := newSampleQueue(1)
	ctx := context.Background()
	q.push(ctx, newTestSample("k/0"), Reliable)

	done := make(chan error, 1)
	go func() {
		_, err := q.push(ctx, newTestSample("k/1"), Reliable)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.close()

	select {
	case err := <-done:
		assert.ErrorIs(err, errQueueClosed)
	case <-time.After(time.Second):
		assert.Fail("push not woken by close")
		return
	}

	assert.Zero(q.len())

	_, err := q.pop()
	assert.ErrorIs(err, errQueueClosed)
}
