// Package sequence verifies ordered, timing-aware bit transitions against
// the cached snapshot history of one or more entities.
//
// A Plan is an ordered list of Steps built with a Builder:
//
//	plan, err := sequence.NewBuilder().
//		Input("io-kitchen", 4, true).
//		After(1500 * time.Millisecond).
//		Input("io-kitchen", 4, false).
//		Build()
//
// A timing call (After, Before, Between) attaches to the next step and is
// measured from the timestamp that matched the previous step. Never guards
// the window up to the next match: the complement of the previous step's
// value must not appear on that signal, and reaching the deadline without a
// match is not a failure for a guarded step.
//
// The Verifier walks the plan over the cache history with a per-entity
// cursor. Each step only matches events at or after the previous match
// (ties allowed). Events that fail a check are consumed. When history runs
// out the verifier drains the router and polls until the deadline.
package sequence
