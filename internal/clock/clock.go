// Package clock abstracts wall time for deadline arithmetic.
//
// Deadlines are absolute values computed once at the start of an operation;
// every sub-wait recomputes the remaining time from Now. Tests substitute a
// fake so deadline behavior is exercised without sleeping.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock supplies the current time and bounded sleeps.
type Clock interface {
	Now() time.Time
	// Sleep pauses for d or until ctx ends, returning ctx.Err() in the latter
	// case.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// Sleep implements Clock.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Remaining returns how long until deadline, never negative.
func Remaining(c Clock, deadline time.Time) time.Duration {
	d := deadline.Sub(c.Now())
	if d < 0 {
		return 0
	}
	return d
}

// Virtual is a clock that only moves when slept on. Offline verification
// uses it so that a plan replayed against a recording reaches its deadline
// without waiting in real time.
type Virtual struct {
	mu  sync.Mutex
	now time.Time
}

// NewVirtual returns a Virtual clock reading start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

// Now implements Clock.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Sleep advances the clock by d unless ctx has already ended.
func (v *Virtual) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d > 0 {
		v.mu.Lock()
		v.now = v.now.Add(d)
		v.mu.Unlock()
	}
	return nil
}
