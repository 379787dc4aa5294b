package sequence

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/ioseq/internal/snapshot"
)

// Tolerance absorbs rounding between wire timestamps and timing bounds.
const Tolerance = time.Microsecond

// ConstraintKind tags a Constraint.
type ConstraintKind string

const (
	ConstraintNone    ConstraintKind = ""
	ConstraintMin     ConstraintKind = "min"
	ConstraintMax     ConstraintKind = "max"
	ConstraintBetween ConstraintKind = "between"
	ConstraintNever   ConstraintKind = "never"
)

// Constraint restricts when a step may match, relative to the previous
// match. The zero value is no constraint.
type Constraint struct {
	Kind      ConstraintKind
	Min       time.Duration // min, between
	Max       time.Duration // max, between
	Forbidden int           // never
}

// Min requires at least d to elapse since the previous match.
func Min(d time.Duration) Constraint { return Constraint{Kind: ConstraintMin, Min: d} }

// Max requires at most d to elapse since the previous match.
func Max(d time.Duration) Constraint { return Constraint{Kind: ConstraintMax, Max: d} }

// Between requires the elapsed time to fall within [lo, hi].
func Between(lo, hi time.Duration) Constraint {
	return Constraint{Kind: ConstraintBetween, Min: lo, Max: hi}
}

// Never forbids value on the guarded signal until the step matches.
func Never(forbidden int) Constraint { return Constraint{Kind: ConstraintNever, Forbidden: forbidden} }

// IsZero reports whether c is no constraint.
func (c Constraint) IsZero() bool { return c.Kind == ConstraintNone }

// Guard returns the forbidden value when c is a Never constraint.
func (c Constraint) Guard() (forbidden int, ok bool) {
	if c.Kind != ConstraintNever {
		return 0, false
	}
	return c.Forbidden, true
}

// Allows reports whether elapsed satisfies the timing bound within
// Tolerance. Never and no constraint allow everything.
func (c Constraint) Allows(elapsed time.Duration) bool {
	switch c.Kind {
	case ConstraintMin:
		return elapsed+Tolerance >= c.Min
	case ConstraintMax:
		return elapsed-Tolerance <= c.Max
	case ConstraintBetween:
		return elapsed >= c.Min-Tolerance && elapsed <= c.Max+Tolerance
	default:
		return true
	}
}

func (c Constraint) String() string {
	switch c.Kind {
	case ConstraintMin:
		return "after " + c.Min.String()
	case ConstraintMax:
		return "before " + c.Max.String()
	case ConstraintBetween:
		return fmt.Sprintf("between %s and %s", c.Min, c.Max)
	case ConstraintNever:
		return fmt.Sprintf("never %d", c.Forbidden)
	default:
		return "none"
	}
}

// Step expects one bit of one entity to reach a value.
type Step struct {
	Kind       snapshot.Kind
	EntityID   string
	Bit        int
	Expected   int // 0 or 1
	Constraint Constraint
}

// Signal reports whether s and o watch the same bit of the same buffer.
func (s Step) Signal(o Step) bool {
	return s.Kind == o.Kind && s.EntityID == o.EntityID && s.Bit == o.Bit
}

func (s Step) String() string {
	str := fmt.Sprintf("%s %s bit %d = %d", s.Kind, s.EntityID, s.Bit, s.Expected)
	if !s.Constraint.IsZero() {
		str += " [" + s.Constraint.String() + "]"
	}
	return str
}

// Plan is an ordered, validated list of steps. Create one with a Builder.
type Plan struct {
	steps []Step
}

// Len returns the number of steps.
func (p Plan) Len() int { return len(p.steps) }

// Step returns step i.
func (p Plan) Step(i int) Step { return p.steps[i] }

// Steps returns a copy of the steps.
func (p Plan) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Entities returns the distinct entity IDs in step order.
func (p Plan) Entities() []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range p.steps {
		if !seen[s.EntityID] {
			seen[s.EntityID] = true
			out = append(out, s.EntityID)
		}
	}
	return out
}

func (p Plan) String() string {
	var buf strings.Builder
	for i, s := range p.steps {
		fmt.Fprintf(&buf, "%d: %s\n", i, s)
	}
	return buf.String()
}
