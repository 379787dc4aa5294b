package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ioseq/internal/store"
)

func TestRecord_ThenVerify(t *testing.T) {
	mr, profile := redisProfile(t)
	publishLoop(t, mr)
	db := filepath.Join(t.TempDir(), "capture.db")

	out, err := executeCLI(t, "--format", "json", "--config", profile, "record", db, "--duration", "300ms")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   RecordResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "uhn/*", resp.Data.Source)
	assert.NotEmpty(t, resp.Data.RunID)
	assert.Positive(t, resp.Data.Messages)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	msgs, err := st.ReadMessages(context.Background(), resp.Data.RunID)
	require.NoError(t, err)
	assert.Len(t, msgs, int(resp.Data.Messages))
	assert.Equal(t, "uhn/edge-1/device/io-a/state", msgs[0].Topic)

	out, err = executeCLI(t, "verify", "testdata/plans/relay_on.yaml", "--recording", db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ relay-on: 1 of 1 steps matched (run "+resp.Data.RunID+")")
}

func TestRecord_TransportUnreachable(t *testing.T) {
	profile := writeRedisProfile(t, "127.0.0.1:1")
	db := filepath.Join(t.TempDir(), "capture.db")

	_, err := executeCLI(t, "--config", profile, "record", db, "--duration", "100ms")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeTransport)
}

func TestRuns_ListsRecording(t *testing.T) {
	db := pulseRecording(t)

	out, err := executeCLI(t, "runs", db)
	require.NoError(t, err)
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "3.5s")

	out, err = executeCLI(t, "--format", "json", "runs", db)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   []RunOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, RunOutput{
		ID:        "run-1",
		Source:    "uhn/#",
		StartedAt: "2026-03-01T12:00:00.000000Z",
		Messages:  3,
		Span:      "3.5s",
	}, resp.Data[0])
}

func TestRuns_Empty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeCLI(t, "runs", db)
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded\n", out)
}

func TestRuns_MissingDatabase(t *testing.T) {
	_, err := executeCLI(t, "runs", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}
