package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReal_Sleep(t *testing.T) {
	start := time.Now()
	err := Real{}.Sleep(context.Background(), 5*time.Millisecond)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestReal_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Real{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)

	err = Real{}.Sleep(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemaining(t *testing.T) {
	c := Real{}
	assert.Equal(t, time.Duration(0), Remaining(c, time.Now().Add(-time.Second)))
	assert.Greater(t, Remaining(c, time.Now().Add(time.Hour)), 59*time.Minute)
}

func TestVirtual_SleepAdvancesInstantly(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := NewVirtual(start)

	assert.NoError(t, v.Sleep(context.Background(), time.Hour))
	assert.Equal(t, start.Add(time.Hour), v.Now())
	assert.Equal(t, time.Duration(0), Remaining(v, start.Add(30*time.Minute)))
}

func TestVirtual_SleepCancelled(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := NewVirtual(start)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, v.Sleep(ctx, time.Second), context.Canceled)
	assert.Equal(t, start, v.Now())
}
