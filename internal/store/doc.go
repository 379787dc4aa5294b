// Package store records bus traffic to SQLite and replays it.
//
// A recording is a run: an ID, the subscription filter and start time,
// followed by every message the router saw, in arrival order. Replaying a
// run yields the same messages as a transport.Subscription, so a sequence
// plan can be verified offline against traffic captured on a live bus.
//
// # Ordering
//
//   - Messages are keyed by (run_id, seq); seq starts at 1 per run
//   - Reads order by seq, never by received time
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: messages must belong to a run
package store
