package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/roach88/ioseq/internal/transport"
)

// Delivery is a message scheduled to arrive at a fake-clock instant.
type Delivery struct {
	At      time.Time
	Topic   string
	Payload any
}

// Feed is a transport.Subscription driven by a FakeClock.
//
// Next hands out deliveries whose At falls within the wait window, moving the
// clock to At; when none does, it advances the clock by the full wait and
// reports nothing. This mirrors a real bus without real waiting.
type Feed struct {
	mu      sync.Mutex
	clock   *FakeClock
	pending []Delivery
	pulls   int
	err     error
}

// NewFeed creates a feed over clock.
func NewFeed(clock *FakeClock, deliveries ...Delivery) *Feed {
	f := &Feed{clock: clock}
	f.Add(deliveries...)
	return f
}

// Add schedules deliveries, keeping arrival order by At (stable for ties).
func (f *Feed) Add(deliveries ...Delivery) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, deliveries...)
	sort.SliceStable(f.pending, func(i, j int) bool {
		return f.pending[i].At.Before(f.pending[j].At)
	})
}

// FailWith makes every later Next return err.
func (f *Feed) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Pending returns the number of undelivered messages.
func (f *Feed) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Pulls returns how many times Next was called.
func (f *Feed) Pulls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pulls
}

// Next implements transport.Subscription.
func (f *Feed) Next(ctx context.Context, maxWait time.Duration) (transport.Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return transport.Message{}, false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++

	if f.err != nil {
		return transport.Message{}, false, f.err
	}

	now := f.clock.Now()
	if len(f.pending) > 0 {
		d := f.pending[0]
		if !d.At.After(now.Add(maxWait)) {
			f.pending = f.pending[1:]
			f.clock.Set(d.At)
			return transport.Message{Topic: d.Topic, Payload: d.Payload, Received: f.clock.Now()}, true, nil
		}
	}

	f.clock.Advance(maxWait)
	return transport.Message{}, false, nil
}
