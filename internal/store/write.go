package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/ioseq/internal/transport"
)

// CreateRun inserts a new run and returns its ID.
func (s *Store) CreateRun(ctx context.Context, source string, startedAt time.Time) (string, error) {
	id := s.ids.Generate()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, source, started_at)
		VALUES (?, ?, ?)
	`, id, source, startedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// WriteMessage appends msg to run at seq. The payload is stored as JSON.
// Writing the same (run, seq) twice is an error.
func (s *Store) WriteMessage(ctx context.Context, runID string, seq int64, msg transport.Message) error {
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("write message: encode payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (run_id, seq, topic, payload, received_at)
		VALUES (?, ?, ?, ?, ?)
	`, runID, seq, msg.Topic, string(payload), msg.Received.UnixMicro())
	if err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	s.metrics.Recorded()
	return nil
}

// Recorder appends messages to one run, assigning consecutive seq values.
// Safe for concurrent use.
type Recorder struct {
	store *Store
	runID string

	mu  sync.Mutex
	seq int64
}

// StartRun creates a run and returns a Recorder for it.
func (s *Store) StartRun(ctx context.Context, source string, startedAt time.Time) (*Recorder, error) {
	id, err := s.CreateRun(ctx, source, startedAt)
	if err != nil {
		return nil, err
	}
	return &Recorder{store: s, runID: id}, nil
}

// RunID returns the run being recorded.
func (r *Recorder) RunID() string { return r.runID }

// Count returns the number of messages recorded so far.
func (r *Recorder) Count() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Record appends msg to the run.
func (r *Recorder) Record(ctx context.Context, msg transport.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.WriteMessage(ctx, r.runID, r.seq+1, msg); err != nil {
		return err
	}
	r.seq++
	return nil
}
