// Package scenario is the driver-facing facade over the router, cache and
// verifier: last-state waits, initial-state expectations and sequence
// verification with one shared router.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/ioseq/internal/cache"
	"github.com/roach88/ioseq/internal/clock"
	"github.com/roach88/ioseq/internal/metrics"
	"github.com/roach88/ioseq/internal/router"
	"github.com/roach88/ioseq/internal/sequence"
	"github.com/roach88/ioseq/internal/snapshot"
)

// DefaultTimeout applies when a wait or verification is given no timeout.
const DefaultTimeout = 8 * time.Second

// waitTail is how many history entries a wait timeout reports.
const waitTail = 5

// Scenario drives one test scenario.
type Scenario struct {
	router       *router.Router
	cache        *cache.Cache
	clock        clock.Clock
	verifier     *sequence.Verifier
	logger       *slog.Logger
	pollInterval time.Duration
	expected     []Expectation
}

type options struct {
	logger       *slog.Logger
	metrics      *metrics.Metrics
	pollInterval time.Duration
	recentTail   int
}

// Option configures a Scenario.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink for verifications.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPollInterval sets the pause between drains while waiting.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithRecentTail sets how many events a sequence timeout reports.
func WithRecentTail(n int) Option {
	return func(o *options) { o.recentTail = n }
}

// New creates a scenario over r. The router's cache and clock are shared.
func New(r *router.Router, opts ...Option) *Scenario {
	o := options{
		logger:       slog.Default(),
		pollInterval: sequence.DefaultPollInterval,
		recentTail:   sequence.DefaultRecentTail,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Scenario{
		router: r,
		cache:  r.Cache(),
		clock:  r.Clock(),
		verifier: sequence.NewVerifier(r.Cache(), r,
			sequence.WithClock(r.Clock()),
			sequence.WithLogger(o.logger),
			sequence.WithMetrics(o.metrics),
			sequence.WithPollInterval(o.pollInterval),
			sequence.WithRecentTail(o.recentTail),
		),
		logger:       o.logger,
		pollInterval: o.pollInterval,
	}
}

// Cache returns the shared state cache.
func (s *Scenario) Cache() *cache.Cache { return s.cache }

// LogStateMessages switches history recording, required by sequences.
func (s *Scenario) LogStateMessages(on bool) *Scenario {
	s.cache.EnableHistory(on)
	return s
}

// ClearMessageLog drops recorded history. Last states are kept.
func (s *Scenario) ClearMessageLog() *Scenario {
	s.cache.ClearHistory()
	return s
}

// Sequence starts a plan builder.
func (s *Scenario) Sequence() *sequence.Builder {
	return sequence.NewBuilder()
}

// Verify builds b and verifies it within timeout.
func (s *Scenario) Verify(ctx context.Context, b *sequence.Builder, timeout time.Duration) (*sequence.Result, error) {
	plan, err := b.Build()
	if err != nil {
		return nil, err
	}
	return s.VerifyPlan(ctx, plan, timeout)
}

// VerifyPlan verifies plan within timeout (DefaultTimeout if non-positive).
func (s *Scenario) VerifyPlan(ctx context.Context, plan sequence.Plan, timeout time.Duration) (*sequence.Result, error) {
	return s.verifier.Verify(ctx, plan, s.deadline(timeout))
}

func (s *Scenario) deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return s.clock.Now().Add(timeout)
}

// ErrWaitTimeout marks a last-state wait that missed its deadline.
var ErrWaitTimeout = errors.New("timeout waiting for state")

// WaitError describes a missed last-state wait.
type WaitError struct {
	EntityID string
	Want     string
	Deadline time.Time

	// Last is the latest snapshot of the entity, nil if none arrived.
	Last *snapshot.Snapshot

	// Recent is the history tail when history is enabled.
	Recent []snapshot.Snapshot
}

// Error implements the error interface.
func (e *WaitError) Error() string {
	last := "none"
	if e.Last != nil {
		last = e.Last.String()
	}
	msg := fmt.Sprintf("%v: %s %s; last state: %s", ErrWaitTimeout, e.EntityID, e.Want, last)
	if len(e.Recent) > 0 {
		msg += fmt.Sprintf(" (%d recent events)", len(e.Recent))
	}
	return msg
}

// Unwrap exposes ErrWaitTimeout.
func (e *WaitError) Unwrap() error { return ErrWaitTimeout }
