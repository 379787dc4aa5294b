package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/ioseq/internal/transport"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run summarises one recording.
type Run struct {
	ID        string
	Source    string
	StartedAt time.Time
	Messages  int64
	// First and Last are the received times of the first and last message;
	// zero when the run is empty.
	First time.Time
	Last  time.Time
}

// Runs lists all runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.source, r.started_at,
		       COUNT(m.seq), MIN(m.received_at), MAX(m.received_at)
		FROM runs r
		LEFT JOIN messages m ON m.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at ASC, r.id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.source, r.started_at,
		       COUNT(m.seq), MIN(m.received_at), MAX(m.received_at)
		FROM runs r
		LEFT JOIN messages m ON m.run_id = r.id
		WHERE r.id = ?
		GROUP BY r.id
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// ReadMessages returns the messages of a run in seq order.
func (s *Store) ReadMessages(ctx context.Context, runID string) ([]transport.Message, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT topic, payload, received_at
		FROM messages
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	defer rows.Close()

	var msgs []transport.Message
	for rows.Next() {
		var (
			topic    string
			payload  string
			received int64
		)
		if err := rows.Scan(&topic, &payload, &received); err != nil {
			return nil, fmt.Errorf("read messages: %w", err)
		}
		var v any
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return nil, fmt.Errorf("read messages: decode payload of %s: %w", topic, err)
		}
		msgs = append(msgs, transport.Message{
			Topic:    topic,
			Payload:  v,
			Received: time.UnixMicro(received).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	return msgs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run         Run
		startedAt   string
		first, last sql.NullInt64
	)
	if err := sc.Scan(&run.ID, &run.Source, &startedAt, &run.Messages, &first, &last); err != nil {
		return Run{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: started_at: %w", run.ID, err)
	}
	run.StartedAt = t
	if first.Valid {
		run.First = time.UnixMicro(first.Int64).UTC()
	}
	if last.Valid {
		run.Last = time.UnixMicro(last.Int64).UTC()
	}
	return run, nil
}
