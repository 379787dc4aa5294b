package sequence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ioseq/internal/snapshot"
)

func TestBuilder_StepsInCallOrder(t *testing.T) {
	plan, err := NewBuilder().
		Input("io-a", 4, true).
		Output("io-b", 1, false).
		Build()
	require.NoError(t, err)

	require.Equal(t, 2, plan.Len())
	assert.Equal(t, Step{Kind: snapshot.KindInput, EntityID: "io-a", Bit: 4, Expected: 1}, plan.Step(0))
	assert.Equal(t, Step{Kind: snapshot.KindOutput, EntityID: "io-b", Bit: 1, Expected: 0}, plan.Step(1))
	assert.Equal(t, []string{"io-a", "io-b"}, plan.Entities())
}

func TestBuilder_PendingConstraintAttachesToNextStep(t *testing.T) {
	plan, err := NewBuilder().
		Input("io-a", 4, true).
		After(1500*time.Millisecond).
		Input("io-a", 4, false).
		Before(time.Second).
		Output("io-a", 2, true).
		Between(250*time.Millisecond, 750*time.Millisecond).
		Output("io-a", 2, false).
		Output("io-a", 3, true).
		Build()
	require.NoError(t, err)

	steps := plan.Steps()
	require.Len(t, steps, 5)
	assert.True(t, steps[0].Constraint.IsZero())
	assert.Equal(t, Min(1500*time.Millisecond), steps[1].Constraint)
	assert.Equal(t, Max(time.Second), steps[2].Constraint)
	assert.Equal(t, Between(250*time.Millisecond, 750*time.Millisecond), steps[3].Constraint)
	assert.True(t, steps[4].Constraint.IsZero(), "pending constraint clears after attaching")
}

func TestBuilder_NeverDerivesComplement(t *testing.T) {
	plan, err := NewBuilder().
		Output("io-a", 5, true).
		Never().
		Output("io-a", 5, false).
		Build()
	require.NoError(t, err)

	c := plan.Step(1).Constraint
	forbidden, ok := c.Guard()
	require.True(t, ok)
	assert.Equal(t, 0, forbidden)

	plan, err = NewBuilder().
		Input("io-a", 2, false).
		Never().
		Input("io-a", 2, true).
		Build()
	require.NoError(t, err)
	forbidden, _ = plan.Step(1).Constraint.Guard()
	assert.Equal(t, 1, forbidden)
}

func TestBuilder_NormalizesEntity(t *testing.T) {
	plan, err := NewBuilder().
		Output("cafe\u0301", 1, true).
		Never().
		Output("caf\u00e9", 1, false).
		Build()
	require.NoError(t, err, "both spellings name the same signal")
	assert.Equal(t, []string{"caf\u00e9"}, plan.Entities())
}

func TestBuilder_StepCopiesAreIndependent(t *testing.T) {
	plan, err := NewBuilder().Output("io-a", 1, true).Build()
	require.NoError(t, err)

	steps := plan.Steps()
	steps[0].Bit = 9
	assert.Equal(t, 1, plan.Step(0).Bit)
}

func TestBuilder_InvalidPlans(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *Builder
		index   int
		message string
	}{
		{
			name:    "never first",
			build:   func() *Builder { return NewBuilder().Never().Output("io-a", 1, false) },
			index:   0,
			message: "never() must follow a step",
		},
		{
			name:    "never twice",
			build:   func() *Builder { return NewBuilder().Output("io-a", 1, true).Never().Never().Output("io-a", 1, false) },
			index:   2,
			message: "never() twice without a step in between",
		},
		{
			name:    "never after timing",
			build:   func() *Builder { return NewBuilder().Output("io-a", 1, true).After(time.Second).Never() },
			index:   2,
			message: "never() follows pending after 1s without a step in between",
		},
		{
			name:    "timing after timing",
			build:   func() *Builder { return NewBuilder().Output("io-a", 1, true).After(time.Second).Before(2 * time.Second) },
			index:   2,
			message: "before 2s follows pending after 1s without a step in between",
		},
		{
			name:    "never guards another signal",
			build:   func() *Builder { return NewBuilder().Output("io-a", 1, true).Never().Output("io-a", 2, false) },
			index:   2,
			message: `step "output io-a bit 2 = 0" guarded by never() must watch the same signal as "output io-a bit 1 = 1"`,
		},
		{
			name:    "trailing constraint",
			build:   func() *Builder { return NewBuilder().Output("io-a", 1, true).Before(time.Second) },
			index:   1,
			message: "before 1s has no step to attach to",
		},
		{
			name:    "trailing never",
			build:   func() *Builder { return NewBuilder().Output("io-a", 1, true).Never() },
			index:   1,
			message: "never 0 has no step to attach to",
		},
		{
			name:    "negative min",
			build:   func() *Builder { return NewBuilder().Output("io-a", 1, true).After(-time.Second) },
			index:   1,
			message: "after -1s: negative duration",
		},
		{
			name:    "inverted between",
			build:   func() *Builder { return NewBuilder().Output("io-a", 1, true).Between(2*time.Second, time.Second) },
			index:   1,
			message: "between 2s and 1s: lower bound exceeds upper bound",
		},
		{
			name:    "empty entity",
			build:   func() *Builder { return NewBuilder().Output(" ", 1, true) },
			index:   0,
			message: "entity is required",
		},
		{
			name:    "negative bit",
			build:   func() *Builder { return NewBuilder().Input("io-a", -1, true) },
			index:   0,
			message: "bit index -1 is negative",
		},
		{
			name:    "bad expected",
			build:   func() *Builder { return NewBuilder().Step(Step{Kind: snapshot.KindInput, EntityID: "io-a", Expected: 2}) },
			index:   0,
			message: "expected value 2 is not 0 or 1",
		},
		{
			name:    "bad kind",
			build:   func() *Builder { return NewBuilder().Step(Step{Kind: "analog", EntityID: "io-a"}) },
			index:   0,
			message: `unknown step kind "analog"`,
		},
		{
			name:    "empty",
			build:   NewBuilder,
			index:   -1,
			message: "plan has no steps",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Build()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPlan))

			var pe *PlanError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.index, pe.Index)
			assert.Equal(t, tt.message, pe.Message)
		})
	}
}

func TestPlanError_Message(t *testing.T) {
	assert.Equal(t, "invalid plan: call 3: boom", (&PlanError{Index: 3, Message: "boom"}).Error())
	assert.Equal(t, "invalid plan: boom", (&PlanError{Index: -1, Message: "boom"}).Error())
}

func TestPlan_String(t *testing.T) {
	plan, err := NewBuilder().
		Input("io-a", 3, true).
		Between(500*time.Millisecond, 1500*time.Millisecond).
		Input("io-a", 3, false).
		Never().
		Input("io-a", 3, true).
		Build()
	require.NoError(t, err)

	want := "0: input io-a bit 3 = 1\n" +
		"1: input io-a bit 3 = 0 [between 500ms and 1.5s]\n" +
		"2: input io-a bit 3 = 1 [never 1]\n"
	assert.Equal(t, want, plan.String())
}
