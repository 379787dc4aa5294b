package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/ioseq/internal/testutil"
	"github.com/roach88/ioseq/internal/transport"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// stateMessage builds a message carrying an encoded output snapshot.
func stateMessage(entity string, seconds float64, set ...int) transport.Message {
	d := testutil.StateDelivery("edge-1", testutil.OutputState(entity, testutil.At(seconds), set...))
	return transport.Message{Topic: d.Topic, Payload: d.Payload, Received: d.At}
}

var started = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
