// Package metrics holds the Prometheus collectors for routing and
// verification.
//
// A nil *Metrics is valid and records nothing, so components take one
// unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ioseq"

// Outcome labels for verifications and waits.
const (
	OutcomePassed    = "passed"
	OutcomeForbidden = "forbidden"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
)

// Metrics holds the collectors.
type Metrics struct {
	routed          *prometheus.CounterVec   // by kind (state/catalog/unrecognized)
	ingested        *prometheus.CounterVec   // by entity
	decodeErrors    *prometheus.CounterVec   // by error_type (snapshot/timestamp)
	dropped         prometheus.Counter       // queue overflow
	verifications   *prometheus.CounterVec   // by outcome
	verifyDuration  *prometheus.HistogramVec // by outcome
	stepsMatched    prometheus.Counter
	recordedWritten prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "messages_total",
			Help:      "Bus messages routed, by topic kind",
		}, []string{"kind"}),

		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "snapshots_ingested_total",
			Help:      "State snapshots ingested into the cache",
		}, []string{"entity"}),

		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "decode_errors_total",
			Help:      "State payloads rejected by the decoder",
		}, []string{"error_type"}),

		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "dropped_messages_total",
			Help:      "Messages discarded because the receive queue was full",
		}),

		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sequence",
			Name:      "verifications_total",
			Help:      "Sequence verifications, by outcome",
		}, []string{"outcome"}),

		verifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sequence",
			Name:      "verification_duration_seconds",
			Help:      "Wall time spent verifying a sequence",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"outcome"}),

		stepsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sequence",
			Name:      "steps_matched_total",
			Help:      "Sequence steps matched",
		}),

		recordedWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "messages_recorded_total",
			Help:      "Bus messages written to a recording",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.routed, m.ingested, m.decodeErrors, m.dropped,
		m.verifications, m.verifyDuration, m.stepsMatched, m.recordedWritten,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Routed counts one routed message of the given kind.
func (m *Metrics) Routed(kind string) {
	if m == nil {
		return
	}
	m.routed.WithLabelValues(kind).Inc()
}

// Ingested counts one snapshot ingested for entity.
func (m *Metrics) Ingested(entity string) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(entity).Inc()
}

// DecodeError counts one rejected payload.
func (m *Metrics) DecodeError(errorType string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(errorType).Inc()
}

// Dropped counts one queue overflow.
func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// StepMatched counts one matched sequence step.
func (m *Metrics) StepMatched() {
	if m == nil {
		return
	}
	m.stepsMatched.Inc()
}

// Recorded counts one message written to a recording.
func (m *Metrics) Recorded() {
	if m == nil {
		return
	}
	m.recordedWritten.Inc()
}

// Verified records a finished verification.
func (m *Metrics) Verified(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
	m.verifyDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
