package pullsub

import (
	"context"
	"errors"
	"sync"

	"github.com/mirror520/pullsub/sample"
)

var errQueueClosed = errors.New("queue closed")

// sampleQueue is a bounded ring of samples in arrival order.
type sampleQueue struct {
	buf     []*sample.Sample
	head    int // oldest sample
	count   int
	dropped uint64
	closed  bool

	// space is closed and replaced when a slot frees up while reliable
	// producers are waiting.
	space   chan struct{}
	waiters int

	sync.Mutex
}

func newSampleQueue(capacity int) *sampleQueue {
	if capacity < 1 {
		capacity = 1
	}

	return &sampleQueue{
		buf:   make([]*sample.Sample, capacity),
		space: make(chan struct{}),
	}
}

// push appends s. When the queue is full a BestEffort push evicts the oldest
// sample and reports it as dropped; a Reliable push waits for a free slot
// until ctx is done.
func (q *sampleQueue) push(ctx context.Context, s *sample.Sample, reliability Reliability) (bool, error) {
	waiting := false
	for {
		q.Lock()
		if waiting {
			q.waiters--
			waiting = false
		}

		if q.closed {
			q.Unlock()
			return false, errQueueClosed
		}

		if q.count < len(q.buf) {
			q.append(s)
			q.Unlock()
			return false, nil
		}

		if reliability == BestEffort {
			q.evict()
			q.append(s)
			q.dropped++
			q.Unlock()
			return true, nil
		}

		q.waiters++
		waiting = true
		space := q.space
		q.Unlock()

		select {
		case <-ctx.Done():
			q.Lock()
			q.waiters--
			q.Unlock()
			return false, ctx.Err()

		case <-space:
		}
	}
}

func (q *sampleQueue) append(s *sample.Sample) {
	tail := (q.head + q.count) % len(q.buf)
	q.buf[tail] = s
	q.count++
}

func (q *sampleQueue) evict() *sample.Sample {
	s := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return s
}

// pop never blocks; it returns nil when the queue is empty.
func (q *sampleQueue) pop() (*sample.Sample, error) {
	q.Lock()
	defer q.Unlock()

	if q.closed {
		return nil, errQueueClosed
	}

	if q.count == 0 {
		return nil, nil
	}

	s := q.evict()

	if q.waiters > 0 {
		close(q.space)
		q.space = make(chan struct{})
	}

	return s, nil
}

// close discards pending samples and wakes waiting producers.
func (q *sampleQueue) close() {
	q.Lock()
	defer q.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	for i := range q.buf {
		q.buf[i] = nil
	}
	q.head = 0
	q.count = 0

	close(q.space)
}

func (q *sampleQueue) len() int {
	q.Lock()
	defer q.Unlock()
	return q.count
}

func (q *sampleQueue) cap() int {
	return len(q.buf)
}

func (q *sampleQueue) droppedCount() uint64 {
	q.Lock()
	defer q.Unlock()
	return q.dropped
}
