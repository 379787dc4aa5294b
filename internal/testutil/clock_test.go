package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ioseq/internal/clock"
)

var _ clock.Clock = (*FakeClock)(nil)

func TestFakeClock_StartsAtStart(t *testing.T) {
	c := NewFakeClock(Epoch)
	assert.Equal(t, Epoch, c.Now())
}

func TestFakeClock_SleepAdvances(t *testing.T) {
	c := NewFakeClock(Epoch)

	require.NoError(t, c.Sleep(context.Background(), 10*time.Millisecond))
	require.NoError(t, c.Sleep(context.Background(), 5*time.Millisecond))

	assert.Equal(t, Epoch.Add(15*time.Millisecond), c.Now())
	slept, calls := c.Slept()
	assert.Equal(t, 15*time.Millisecond, slept)
	assert.Equal(t, 2, calls)
}

func TestFakeClock_SleepCancelled(t *testing.T) {
	c := NewFakeClock(Epoch)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Sleep(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Epoch, c.Now(), "cancelled sleep must not advance")
}

func TestFakeClock_SetIsMonotonic(t *testing.T) {
	c := NewFakeClock(Epoch)

	c.Set(Epoch.Add(time.Second))
	c.Set(Epoch)
	assert.Equal(t, Epoch.Add(time.Second), c.Now())

	c.Advance(time.Second)
	assert.Equal(t, Epoch.Add(2*time.Second), c.Now())
}

func TestFakeClock_ThreadSafe(t *testing.T) {
	c := NewFakeClock(Epoch)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(100*time.Millisecond), c.Now())
}

func TestFixedIDGenerator(t *testing.T) {
	assert.Equal(t, "run-1", NewFixedIDGenerator("run-1").Generate())
	assert.Equal(t, "test-run-default", NewFixedIDGenerator("").Generate())
}
