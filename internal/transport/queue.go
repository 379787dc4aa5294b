package transport

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Next once the queue is closed and drained.
var ErrQueueClosed = errors.New("transport: queue closed")

// DefaultQueueCapacity bounds a queue created with a non-positive capacity.
const DefaultQueueCapacity = 1024

// Queue is a bounded, thread-safe FIFO of bus messages.
//
// Producers (bus callbacks) never block: when the queue is full the oldest
// message is discarded and reported to the drop handler. The signal channel
// has a buffer of one so that bursts of pushes coalesce into one wake-up.
type Queue struct {
	mu       sync.Mutex
	messages []Message
	capacity int
	closed   bool
	dropped  uint64
	onDrop   func(Message)
	signal   chan struct{}
}

// NewQueue creates an empty queue holding at most capacity messages.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		messages: make([]Message, 0, min(capacity, 64)),
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// OnDrop registers a callback invoked (under the queue lock) for each message
// discarded because the queue was full.
func (q *Queue) OnDrop(fn func(Message)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDrop = fn
}

// Push appends m. Returns false if the queue is closed.
func (q *Queue) Push(m Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	if len(q.messages) >= q.capacity {
		oldest := q.messages[0]
		q.messages[0] = Message{}
		q.messages = q.messages[1:]
		q.dropped++
		if q.onDrop != nil {
			q.onDrop(oldest)
		}
	}
	q.messages = append(q.messages, m)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryPop removes and returns the oldest message without waiting.
func (q *Queue) TryPop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.messages) == 0 {
		return Message{}, false
	}

	m := q.messages[0]
	// Release the payload reference held by the backing array.
	q.messages[0] = Message{}
	if len(q.messages) == 1 {
		q.messages = q.messages[:0]
	} else {
		q.messages = q.messages[1:]
	}
	return m, true
}

// Next implements Subscription.
func (q *Queue) Next(ctx context.Context, maxWait time.Duration) (Message, bool, error) {
	if m, ok := q.TryPop(); ok {
		return m, true, nil
	}
	if err := ctx.Err(); err != nil {
		return Message{}, false, err
	}
	if q.isClosed() {
		return Message{}, false, ErrQueueClosed
	}
	if maxWait <= 0 {
		return Message{}, false, nil
	}

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Message{}, false, ctx.Err()
		case <-timer.C:
			m, ok := q.TryPop()
			return m, ok, nil
		case _, open := <-q.signal:
			if m, ok := q.TryPop(); ok {
				return m, true, nil
			}
			if !open {
				return Message{}, false, ErrQueueClosed
			}
		}
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Dropped returns how many messages were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close stops accepting messages and wakes waiters. Queued messages can still
// be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
