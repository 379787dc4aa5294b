package sequence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/ioseq/internal/snapshot"
)

var (
	// ErrInvalidPlan marks builder misuse. Build returns a *PlanError that
	// wraps it.
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrHistoryDisabled is returned by Verify when the cache is not
	// recording history.
	ErrHistoryDisabled = errors.New("state history is disabled")
)

// PlanError locates a builder mistake.
type PlanError struct {
	// Index is the position of the offending builder call, or -1 when the
	// plan as a whole is wrong.
	Index   int
	Message string
}

// Error implements the error interface.
func (e *PlanError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%v: %s", ErrInvalidPlan, e.Message)
	}
	return fmt.Sprintf("%v: call %d: %s", ErrInvalidPlan, e.Index, e.Message)
}

// Unwrap exposes ErrInvalidPlan.
func (e *PlanError) Unwrap() error { return ErrInvalidPlan }

func planErrorf(index int, format string, args ...any) *PlanError {
	return &PlanError{Index: index, Message: fmt.Sprintf(format, args...)}
}

// VerifyErrorCode categorizes verification failures.
type VerifyErrorCode string

const (
	// ErrCodeForbiddenValue indicates a Never guard saw the forbidden value.
	ErrCodeForbiddenValue VerifyErrorCode = "FORBIDDEN_VALUE_OBSERVED"

	// ErrCodeSequenceTimeout indicates a step did not match before the
	// deadline.
	ErrCodeSequenceTimeout VerifyErrorCode = "SEQUENCE_TIMEOUT"
)

// VerifyError carries enough state to diagnose a failed verification
// without re-running it.
type VerifyError struct {
	Code VerifyErrorCode

	// StepIndex is the failing step; StepCount the plan length.
	StepIndex int
	StepCount int
	Step      Step

	// PrevMatch is the timestamp that matched the previous step, zero if
	// none did.
	PrevMatch time.Time

	// At is the offending event's timestamp for a forbidden value, or the
	// deadline for a timeout.
	At time.Time

	// Observed is the snapshot that tripped a Never guard.
	Observed *snapshot.Snapshot

	// Recent is the tail of the step entity's history.
	Recent []snapshot.Snapshot
}

// Error implements the error interface.
func (e *VerifyError) Error() string {
	switch e.Code {
	case ErrCodeForbiddenValue:
		return fmt.Sprintf("%s: step %d (%s): %s %s bit %d was %d at %s",
			e.Code, e.StepIndex, e.Step, e.Step.EntityID, e.Step.Kind, e.Step.Bit,
			e.Step.Constraint.Forbidden, formatTime(e.At))
	default:
		return fmt.Sprintf("%s: step %d (%s) not matched by %s; previous match %s",
			e.Code, e.StepIndex, e.Step, formatTime(e.At), formatTime(e.PrevMatch))
	}
}

// Report renders a multi-line diagnosis.
func (e *VerifyError) Report() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "%s at step %d of %d\n", e.Code, e.StepIndex, e.StepCount)
	fmt.Fprintf(&buf, "  step:       %s\n", e.Step)
	fmt.Fprintf(&buf, "  prev match: %s\n", formatTime(e.PrevMatch))
	if e.Code == ErrCodeForbiddenValue {
		fmt.Fprintf(&buf, "  forbidden:  %s bit %d = %d\n", e.Step.Kind, e.Step.Bit, e.Step.Constraint.Forbidden)
		if e.Observed != nil {
			fmt.Fprintf(&buf, "  observed:   %s\n", e.Observed)
		}
	} else {
		fmt.Fprintf(&buf, "  deadline:   %s\n", formatTime(e.At))
	}

	fmt.Fprintf(&buf, "  recent events for %s (last %d):\n", e.Step.EntityID, len(e.Recent))
	if len(e.Recent) == 0 {
		fmt.Fprintf(&buf, "    (none)\n")
	}
	for _, s := range e.Recent {
		fmt.Fprintf(&buf, "    %s\n", s)
	}
	return buf.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.Format(snapshot.TimestampLayout)
}

// IsForbidden reports whether err is a tripped Never guard.
// Uses errors.As to handle wrapped errors.
func IsForbidden(err error) bool {
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ve.Code == ErrCodeForbiddenValue
	}
	return false
}

// IsTimeout reports whether err is a step that missed the deadline.
// Uses errors.As to handle wrapped errors.
func IsTimeout(err error) bool {
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ve.Code == ErrCodeSequenceTimeout
	}
	return false
}
