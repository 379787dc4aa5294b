package store

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/ioseq/internal/transport"
)

// Replay yields a recorded run as a transport.Subscription. Messages are
// delivered immediately in recorded order; once exhausted, Next reports
// nothing without waiting.
type Replay struct {
	mu       sync.Mutex
	messages []transport.Message
	next     int
}

// NewReplay returns a Replay over msgs.
func NewReplay(msgs []transport.Message) *Replay {
	return &Replay{messages: msgs}
}

// Replay loads a run for replay.
func (s *Store) Replay(ctx context.Context, runID string) (*Replay, error) {
	msgs, err := s.ReadMessages(ctx, runID)
	if err != nil {
		return nil, err
	}
	return NewReplay(msgs), nil
}

// Next implements transport.Subscription.
func (r *Replay) Next(ctx context.Context, _ time.Duration) (transport.Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return transport.Message{}, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.messages) {
		return transport.Message{}, false, nil
	}
	m := r.messages[r.next]
	r.next++
	return m, true, nil
}

// Remaining returns how many messages have not been delivered.
func (r *Replay) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages) - r.next
}

// Start returns the received time of the first message, or the zero time
// for an empty run.
func (r *Replay) Start() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return time.Time{}
	}
	return r.messages[0].Received
}
