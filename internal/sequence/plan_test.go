package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstraint_Allows(t *testing.T) {
	const us = time.Microsecond

	tests := []struct {
		name    string
		c       Constraint
		elapsed time.Duration
		want    bool
	}{
		{"none", Constraint{}, time.Hour, true},
		{"never ignores timing", Never(1), 0, true},

		{"min zero tie", Min(0), 0, true},
		{"min positive tie", Min(time.Second), 0, false},
		{"min exact", Min(time.Second), time.Second, true},
		{"min within tolerance", Min(time.Second), time.Second - us, true},
		{"min outside tolerance", Min(time.Second), time.Second - 2*us, false},

		{"max exact", Max(time.Second), time.Second, true},
		{"max within tolerance", Max(time.Second), time.Second + us, true},
		{"max outside tolerance", Max(time.Second), time.Second + 2*us, false},
		{"max tie", Max(time.Second), 0, true},

		{"between zero tie", Between(0, time.Second), 0, true},
		{"between inside", Between(500*time.Millisecond, 1500*time.Millisecond), 900 * time.Millisecond, true},
		{"between early", Between(500*time.Millisecond, 1500*time.Millisecond), 400 * time.Millisecond, false},
		{"between late", Between(500*time.Millisecond, 1500*time.Millisecond), 2 * time.Second, false},
		{"between low edge tolerance", Between(500*time.Millisecond, time.Second), 500*time.Millisecond - us, true},
		{"between high edge tolerance", Between(500*time.Millisecond, time.Second), time.Second + us, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Allows(tt.elapsed))
		})
	}
}

func TestConstraint_String(t *testing.T) {
	assert.Equal(t, "none", Constraint{}.String())
	assert.Equal(t, "after 1.5s", Min(1500*time.Millisecond).String())
	assert.Equal(t, "before 250ms", Max(250*time.Millisecond).String())
	assert.Equal(t, "between 0s and 2s", Between(0, 2*time.Second).String())
	assert.Equal(t, "never 0", Never(0).String())
}

func TestStep_Signal(t *testing.T) {
	a := Step{Kind: "output", EntityID: "io-a", Bit: 5, Expected: 1}
	b := Step{Kind: "output", EntityID: "io-a", Bit: 5, Expected: 0}
	c := Step{Kind: "input", EntityID: "io-a", Bit: 5, Expected: 0}

	assert.True(t, a.Signal(b))
	assert.False(t, a.Signal(c))
}
