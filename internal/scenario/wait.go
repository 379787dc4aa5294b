package scenario

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/ioseq/internal/clock"
	"github.com/roach88/ioseq/internal/snapshot"
)

// WaitOutputBit waits until the last state of entity has output bit equal
// to value.
func (s *Scenario) WaitOutputBit(ctx context.Context, entity string, bit, value int, timeout time.Duration) error {
	return s.WaitBit(ctx, snapshot.KindOutput, entity, bit, value, timeout)
}

// WaitInputBit waits until the last state of entity has input bit equal to
// value.
func (s *Scenario) WaitInputBit(ctx context.Context, entity string, bit, value int, timeout time.Duration) error {
	return s.WaitBit(ctx, snapshot.KindInput, entity, bit, value, timeout)
}

// WaitBit waits until the last state of entity has bit of the kind buffer
// equal to value. A snapshot without data for that buffer never matches.
func (s *Scenario) WaitBit(ctx context.Context, kind snapshot.Kind, entity string, bit, value int, timeout time.Duration) error {
	return s.waitUntil(ctx, entity, fmt.Sprintf("%s bit %d == %d", kind, bit, value), s.deadline(timeout),
		bitCheck(kind, bit, value))
}

// WaitOutputs waits until the leading outputs of entity, in human order
// (highest bit first), equal expected.
func (s *Scenario) WaitOutputs(ctx context.Context, entity string, expected []int, timeout time.Duration) error {
	return s.waitUntil(ctx, entity, fmt.Sprintf("outputs == %v", expected), s.deadline(timeout),
		prefixCheck(snapshot.KindOutput, expected))
}

// WaitInputs waits until the leading inputs of entity, in human order,
// equal expected.
func (s *Scenario) WaitInputs(ctx context.Context, entity string, expected []int, timeout time.Duration) error {
	return s.waitUntil(ctx, entity, fmt.Sprintf("inputs == %v", expected), s.deadline(timeout),
		prefixCheck(snapshot.KindInput, expected))
}

func bitCheck(kind snapshot.Kind, bit, value int) func(snapshot.Snapshot) bool {
	return func(st snapshot.Snapshot) bool {
		return st.Has(kind) && st.Bit(kind, bit) == value
	}
}

func prefixCheck(kind snapshot.Kind, expected []int) func(snapshot.Snapshot) bool {
	return func(st snapshot.Snapshot) bool {
		if !st.Has(kind) {
			return false
		}
		got := st.OutputBits()
		if kind == snapshot.KindInput {
			got = st.InputBits()
		}
		return len(got) >= len(expected) && slices.Equal(got[:len(expected)], expected)
	}
}

// waitUntil checks the last state immediately, then drains and polls until
// check holds or deadline passes.
func (s *Scenario) waitUntil(ctx context.Context, entity, want string, deadline time.Time, check func(snapshot.Snapshot) bool) error {
	holds := func() bool {
		last, ok := s.cache.Last(entity)
		return ok && check(last)
	}

	if holds() {
		return nil
	}

	for ctx.Err() == nil && s.clock.Now().Before(deadline) {
		if err := s.router.DrainUntil(ctx, deadline); err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
		}
		if holds() {
			return nil
		}
		_ = s.clock.Sleep(ctx, min(s.pollInterval, clock.Remaining(s.clock, deadline)))
	}

	werr := &WaitError{EntityID: entity, Want: want, Deadline: deadline}
	if last, ok := s.cache.Last(entity); ok {
		werr.Last = &last
	}
	if s.cache.HistoryEnabled() {
		werr.Recent = s.cache.Tail(entity, waitTail)
	}
	s.logger.Info("wait timed out", "entity", entity, "want", want)
	return werr
}
