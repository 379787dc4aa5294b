package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ioseq/internal/cache"
	"github.com/roach88/ioseq/internal/clock"
	"github.com/roach88/ioseq/internal/router"
	"github.com/roach88/ioseq/internal/sequence"
	"github.com/roach88/ioseq/internal/testutil"
	"github.com/roach88/ioseq/internal/transport"
)

func TestReplay_DeliversInOrder(t *testing.T) {
	r := NewReplay([]transport.Message{
		stateMessage("io-a", 0),
		stateMessage("io-a", 1),
	})
	ctx := context.Background()

	assert.True(t, r.Start().Equal(testutil.At(0)))
	assert.Equal(t, 2, r.Remaining())

	m, ok, err := r.Next(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, m.Received.Equal(testutil.At(0)))

	_, ok, err = r.Next(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = r.Next(ctx, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "exhausted replay reports nothing without waiting")
	assert.Equal(t, 0, r.Remaining())
}

func TestReplay_Empty(t *testing.T) {
	r := NewReplay(nil)
	assert.True(t, r.Start().IsZero())
}

func TestReplay_ContextCancelled(t *testing.T) {
	r := NewReplay([]transport.Message{stateMessage("io-a", 0)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := r.Next(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, r.Remaining())
}

func TestReplay_VerifiesRecordedPulse(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithIDGenerator(testutil.NewFixedIDGenerator("run-1")))

	rec, err := s.StartRun(ctx, "uhn/#", started)
	require.NoError(t, err)
	for _, m := range []transport.Message{
		stateMessage("io-a", 0),
		stateMessage("io-a", 1, 5),
		stateMessage("io-a", 3.5),
	} {
		require.NoError(t, rec.Record(ctx, m))
	}

	replay, err := s.Replay(ctx, "run-1")
	require.NoError(t, err)

	c := cache.New()
	c.EnableHistory(true)
	vc := clock.NewVirtual(replay.Start())
	r := router.New(replay, c, router.WithClock(vc))

	plan, err := sequence.NewBuilder().
		Output("io-a", 5, true).
		Between(2*time.Second, 3*time.Second).
		Output("io-a", 5, false).
		Build()
	require.NoError(t, err)

	v := sequence.NewVerifier(c, r, sequence.WithClock(vc))
	res, err := v.Verify(ctx, plan, vc.Now().Add(8*time.Second))
	require.NoError(t, err)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, 2500*time.Millisecond, res.Steps[1].Elapsed)
}
