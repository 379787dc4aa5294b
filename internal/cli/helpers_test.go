package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ioseq/internal/snapshot"
	"github.com/roach88/ioseq/internal/store"
	"github.com/roach88/ioseq/internal/testutil"
	"github.com/roach88/ioseq/internal/transport"
)

// executeCLI runs the root command with args and returns stdout.
func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// pulseRecording writes a recording of io-a output 5 going high at 1s and
// low at 3.5s, as run "run-1".
func pulseRecording(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bench.db")
	st, err := store.Open(path, store.WithIDGenerator(testutil.NewFixedIDGenerator("run-1")))
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	rec, err := st.StartRun(ctx, "uhn/#", testutil.Epoch)
	require.NoError(t, err)

	for _, s := range []snapshot.Snapshot{
		testutil.OutputState("io-a", testutil.At(0)),
		testutil.OutputState("io-a", testutil.At(1), 5),
		testutil.OutputState("io-a", testutil.At(3.5)),
	} {
		d := testutil.StateDelivery("edge-1", s)
		require.NoError(t, rec.Record(ctx, transport.Message{Topic: d.Topic, Payload: d.Payload, Received: d.At}))
	}
	return path
}

// redisProfile starts miniredis and writes a profile pointing at it.
func redisProfile(t *testing.T) (*miniredis.Miniredis, string) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, writeRedisProfile(t, mr.Addr())
}

func writeRedisProfile(t *testing.T, addr string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	profile := fmt.Sprintf("transport:\n  kind: redis\n  url: redis://%s\n  root: uhn\n  connect_timeout: 1s\npoll_interval: 5ms\nmax_pull_wait: 50ms\n", addr)
	require.NoError(t, os.WriteFile(path, []byte(profile), 0o644))
	return path
}

// publishLoop publishes io-a with output 5 set every 10ms until the test
// ends.
func publishLoop(t *testing.T, mr *miniredis.Miniredis) {
	t.Helper()
	done := make(chan struct{})
	stopped := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		<-stopped
	})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				s := testutil.OutputState("io-a", now.UTC().Truncate(time.Microsecond), 5)
				payload, _ := json.Marshal(snapshot.Encode(s))
				mr.Publish(testutil.StateTopic("edge-1", "io-a"), string(payload))
			}
		}
	}()
}
