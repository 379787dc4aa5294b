package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/ioseq/internal/cache"
	"github.com/roach88/ioseq/internal/clock"
	"github.com/roach88/ioseq/internal/metrics"
)

const (
	// DefaultPollInterval is the pause between drains while waiting for a
	// step.
	DefaultPollInterval = 10 * time.Millisecond

	// DefaultRecentTail is how many events a timeout report carries.
	DefaultRecentTail = 8
)

// Drainer pulls pending bus messages into the cache until deadline.
// *router.Router implements it.
type Drainer interface {
	DrainUntil(ctx context.Context, deadline time.Time) error
}

// StepResult describes how one step was satisfied.
type StepResult struct {
	Index int
	Step  Step

	// Matched is false only for a Never-guarded step that reached the
	// deadline without a match or a violation.
	Matched bool

	// At is the matching event's timestamp; Elapsed is measured from the
	// previous match (zero for the first match).
	At      time.Time
	Elapsed time.Duration
}

// Result is a passed verification.
type Result struct {
	Steps     []StepResult
	LastMatch time.Time
}

// Verifier checks plans against a cache.
type Verifier struct {
	cache        *cache.Cache
	drainer      Drainer
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *metrics.Metrics
	pollInterval time.Duration
	recentTail   int
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(v *Verifier) { v.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

// WithPollInterval sets the pause between drains. Non-positive keeps the
// default.
func WithPollInterval(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.pollInterval = d
		}
	}
}

// WithRecentTail sets how many events a timeout report carries.
func WithRecentTail(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.recentTail = n
		}
	}
}

// NewVerifier creates a verifier over c. d may be nil when something else
// keeps the cache fed.
func NewVerifier(c *cache.Cache, d Drainer, opts ...Option) *Verifier {
	v := &Verifier{
		cache:        c,
		drainer:      d,
		clock:        clock.Real{},
		logger:       slog.Default(),
		pollInterval: DefaultPollInterval,
		recentTail:   DefaultRecentTail,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// walk is the state carried across steps.
type walk struct {
	cursors  map[string]int
	epoch    uint64
	prev     time.Time
	hasPrev  bool
	deadline time.Time
}

// Verify walks plan over the cache history until every step is satisfied
// or deadline passes. A failed check returns a *VerifyError; decode and
// transport errors from draining are returned as is.
func (v *Verifier) Verify(ctx context.Context, plan Plan, deadline time.Time) (*Result, error) {
	start := v.clock.Now()

	res, err := v.verify(ctx, plan, deadline)

	outcome := metrics.OutcomePassed
	switch {
	case IsForbidden(err):
		outcome = metrics.OutcomeForbidden
	case IsTimeout(err):
		outcome = metrics.OutcomeTimeout
	case err != nil:
		outcome = metrics.OutcomeError
	}
	v.metrics.Verified(outcome, v.clock.Now().Sub(start))

	if err != nil {
		v.logger.Info("sequence failed", "outcome", outcome, "error", err)
		return nil, err
	}
	v.logger.Info("sequence passed", "steps", len(res.Steps), "last_match", res.LastMatch)
	return res, nil
}

func (v *Verifier) verify(ctx context.Context, plan Plan, deadline time.Time) (*Result, error) {
	if plan.Len() == 0 {
		return nil, planErrorf(-1, "plan has no steps")
	}
	if !v.cache.HistoryEnabled() {
		return nil, ErrHistoryDisabled
	}

	// Cancellation ends waiting the same way the deadline does; the walk
	// below still scans what is already cached.
	if err := v.drain(ctx, deadline); err != nil && !isContextErr(err) {
		return nil, err
	}

	w := &walk{
		cursors:  make(map[string]int),
		epoch:    v.cache.Epoch(),
		deadline: deadline,
	}
	res := &Result{Steps: make([]StepResult, 0, plan.Len())}

	for i := 0; i < plan.Len(); i++ {
		sr, err := v.verifyStep(ctx, plan, i, w)
		if err != nil {
			return nil, err
		}
		res.Steps = append(res.Steps, sr)
	}
	if w.hasPrev {
		res.LastMatch = w.prev
	}
	return res, nil
}

func (v *Verifier) verifyStep(ctx context.Context, plan Plan, i int, w *walk) (StepResult, error) {
	step := plan.Step(i)
	id := step.EntityID
	forbidden, guarded := step.Constraint.Guard()

	for {
		changed := v.cache.Changed()

		if e := v.cache.Epoch(); e != w.epoch {
			v.logger.Debug("history cleared, resetting cursors", "step", i)
			w.epoch = e
			clear(w.cursors)
		}

		// HistoryLen is re-read per event so growth mid-scan is seen.
		for w.cursors[id] < v.cache.HistoryLen(id) {
			idx := w.cursors[id]
			ev, ok := v.cache.HistoryAt(id, idx)
			if !ok {
				break
			}
			w.cursors[id] = idx + 1

			if w.hasPrev && ev.Timestamp.Before(w.prev.Add(-Tolerance)) {
				continue
			}

			bit := ev.Bit(step.Kind, step.Bit)
			if guarded && bit == forbidden {
				observed := ev
				return StepResult{}, &VerifyError{
					Code:      ErrCodeForbiddenValue,
					StepIndex: i,
					StepCount: plan.Len(),
					Step:      step,
					PrevMatch: w.prev,
					At:        ev.Timestamp,
					Observed:  &observed,
					Recent:    v.cache.Tail(id, v.recentTail),
				}
			}
			if bit != step.Expected {
				continue
			}

			var elapsed time.Duration
			if w.hasPrev {
				elapsed = ev.Timestamp.Sub(w.prev)
				if !step.Constraint.Allows(elapsed) {
					continue
				}
			}

			// The matched snapshot stays under the cursor: one snapshot may
			// satisfy consecutive steps on the same entity.
			w.cursors[id] = idx
			w.prev, w.hasPrev = ev.Timestamp, true
			v.metrics.StepMatched()
			v.logger.Debug("step matched", "step", i, "desc", step.String(), "at", ev.Timestamp, "elapsed", elapsed)
			return StepResult{Index: i, Step: step, Matched: true, At: ev.Timestamp, Elapsed: elapsed}, nil
		}

		if ctx.Err() != nil || !v.clock.Now().Before(w.deadline) {
			break
		}

		if err := v.drain(ctx, w.deadline); err != nil {
			if isContextErr(err) {
				continue
			}
			return StepResult{}, err
		}

		select {
		case <-changed:
			// New data arrived since the scan started; rescan without pausing.
		default:
			pause := min(v.pollInterval, clock.Remaining(v.clock, w.deadline))
			_ = v.clock.Sleep(ctx, pause)
		}
	}

	if guarded {
		v.logger.Debug("never guard held until deadline", "step", i, "desc", step.String())
		return StepResult{Index: i, Step: step}, nil
	}

	return StepResult{}, &VerifyError{
		Code:      ErrCodeSequenceTimeout,
		StepIndex: i,
		StepCount: plan.Len(),
		Step:      step,
		PrevMatch: w.prev,
		At:        w.deadline,
		Recent:    v.cache.Tail(id, v.recentTail),
	}
}

func (v *Verifier) drain(ctx context.Context, deadline time.Time) error {
	if v.drainer == nil {
		return nil
	}
	if err := v.drainer.DrainUntil(ctx, deadline); err != nil {
		if isContextErr(err) {
			return err
		}
		return fmt.Errorf("drain: %w", err)
	}
	return nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
