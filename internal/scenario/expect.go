package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/ioseq/internal/snapshot"
)

// Expectation is a bit value an entity should settle into after setup.
type Expectation struct {
	Kind     snapshot.Kind
	EntityID string
	Bit      int
	Value    int
}

// Expect records an expected state for WaitForExpected.
func (s *Scenario) Expect(kind snapshot.Kind, entity string, bit, value int) *Scenario {
	s.expected = append(s.expected, Expectation{Kind: kind, EntityID: entity, Bit: bit, Value: value})
	return s
}

// Expected returns the recorded expectations.
func (s *Scenario) Expected() []Expectation {
	out := make([]Expectation, len(s.expected))
	copy(out, s.expected)
	return out
}

// WaitForExpected waits for every recorded expectation, in the order they
// were recorded, sharing one deadline.
func (s *Scenario) WaitForExpected(ctx context.Context, timeout time.Duration) error {
	deadline := s.deadline(timeout)
	for _, e := range s.expected {
		want := fmt.Sprintf("%s bit %d == %d", e.Kind, e.Bit, e.Value)
		if err := s.waitUntil(ctx, e.EntityID, want, deadline, bitCheck(e.Kind, e.Bit, e.Value)); err != nil {
			return err
		}
	}
	return nil
}
