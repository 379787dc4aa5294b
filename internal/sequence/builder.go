package sequence

import (
	"strings"
	"time"

	"github.com/roach88/ioseq/internal/cache"
	"github.com/roach88/ioseq/internal/snapshot"
)

type entryKind int

const (
	entryStep entryKind = iota
	entryTiming
	entryNever
)

// entry is one recorded builder call. Nothing is interpreted until Build.
type entry struct {
	kind       entryKind
	step       Step
	constraint Constraint
}

// Builder records plan directives in call order. Validation and constraint
// attachment happen in Build, so a Builder never fails mid-chain.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	entries []entry
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Input appends a step expecting input bit of entity to be on or off.
func (b *Builder) Input(entity string, bit int, on bool) *Builder {
	return b.step(snapshot.KindInput, entity, bit, on)
}

// Output appends a step expecting output bit of entity to be on or off.
func (b *Builder) Output(entity string, bit int, on bool) *Builder {
	return b.step(snapshot.KindOutput, entity, bit, on)
}

// Step appends a fully specified step. Any Constraint on s is replaced by
// the pending one, and the entity ID is stored in the cache's NFC form.
func (b *Builder) Step(s Step) *Builder {
	s.Constraint = Constraint{}
	s.EntityID = cache.NormalizeEntity(s.EntityID)
	b.entries = append(b.entries, entry{kind: entryStep, step: s})
	return b
}

func (b *Builder) step(kind snapshot.Kind, entity string, bit int, on bool) *Builder {
	v := 0
	if on {
		v = 1
	}
	return b.Step(Step{Kind: kind, EntityID: entity, Bit: bit, Expected: v})
}

// After requires the next step to match at least d after the previous one.
func (b *Builder) After(d time.Duration) *Builder {
	return b.timing(Min(d))
}

// Before requires the next step to match at most d after the previous one.
func (b *Builder) Before(d time.Duration) *Builder {
	return b.timing(Max(d))
}

// Between requires the next step to match within [lo, hi] after the
// previous one.
func (b *Builder) Between(lo, hi time.Duration) *Builder {
	return b.timing(Between(lo, hi))
}

func (b *Builder) timing(c Constraint) *Builder {
	b.entries = append(b.entries, entry{kind: entryTiming, constraint: c})
	return b
}

// Never forbids the complement of the previous step's value on the same
// signal until the next step matches.
func (b *Builder) Never() *Builder {
	b.entries = append(b.entries, entry{kind: entryNever})
	return b
}

// Build validates the recorded calls and returns the plan. Misuse is
// reported as a *PlanError wrapping ErrInvalidPlan.
func (b *Builder) Build() (Plan, error) {
	var (
		steps      []Step
		pending    *Constraint
		pendingIdx int
	)

	for i, e := range b.entries {
		switch e.kind {
		case entryStep:
			s := e.step
			if err := validateStep(i, s); err != nil {
				return Plan{}, err
			}
			if pending != nil {
				if pending.Kind == ConstraintNever && !s.Signal(steps[len(steps)-1]) {
					return Plan{}, planErrorf(i, "step %q guarded by never() must watch the same signal as %q", s, steps[len(steps)-1])
				}
				s.Constraint = *pending
				pending = nil
			}
			steps = append(steps, s)

		case entryTiming:
			if err := validateTiming(i, e.constraint); err != nil {
				return Plan{}, err
			}
			if pending != nil {
				return Plan{}, planErrorf(i, "%s follows pending %s without a step in between", e.constraint, pending)
			}
			c := e.constraint
			pending, pendingIdx = &c, i

		case entryNever:
			if len(steps) == 0 {
				return Plan{}, planErrorf(i, "never() must follow a step")
			}
			if pending != nil {
				if pending.Kind == ConstraintNever {
					return Plan{}, planErrorf(i, "never() twice without a step in between")
				}
				return Plan{}, planErrorf(i, "never() follows pending %s without a step in between", pending)
			}
			c := Never(1 - steps[len(steps)-1].Expected)
			pending, pendingIdx = &c, i
		}
	}

	if pending != nil {
		return Plan{}, planErrorf(pendingIdx, "%s has no step to attach to", pending)
	}
	if len(steps) == 0 {
		return Plan{}, planErrorf(-1, "plan has no steps")
	}
	return Plan{steps: steps}, nil
}

func validateStep(i int, s Step) error {
	switch {
	case !s.Kind.Valid():
		return planErrorf(i, "unknown step kind %q", s.Kind)
	case strings.TrimSpace(s.EntityID) == "":
		return planErrorf(i, "entity is required")
	case s.Bit < 0:
		return planErrorf(i, "bit index %d is negative", s.Bit)
	case s.Expected != 0 && s.Expected != 1:
		return planErrorf(i, "expected value %d is not 0 or 1", s.Expected)
	}
	return nil
}

func validateTiming(i int, c Constraint) error {
	switch {
	case c.Min < 0:
		return planErrorf(i, "%s: negative duration", c)
	case c.Max < 0:
		return planErrorf(i, "%s: negative duration", c)
	case c.Kind == ConstraintBetween && c.Min > c.Max:
		return planErrorf(i, "%s: lower bound exceeds upper bound", c)
	}
	return nil
}
