// Package router drains bus messages into the entity state cache.
//
// The router is a cooperative consumer: it pulls from a transport
// subscription with bounded waits on the caller's goroutine. Malformed state
// payloads are returned to the caller instead of being dropped, since they
// mean the producer or the wire format is broken.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/ioseq/internal/cache"
	"github.com/roach88/ioseq/internal/clock"
	"github.com/roach88/ioseq/internal/metrics"
	"github.com/roach88/ioseq/internal/snapshot"
	"github.com/roach88/ioseq/internal/transport"
)

// DefaultMaxPullWait caps a single pull so a caller's deadline is never
// overshot by more than this.
const DefaultMaxPullWait = 500 * time.Millisecond

// Observer sees every pulled message before it is routed.
type Observer func(msg transport.Message, route Route)

// Router moves messages from a Subscription into a Cache.
type Router struct {
	sub         transport.Subscription
	cache       *cache.Cache
	root        string
	maxPullWait time.Duration
	clock       clock.Clock
	logger      *slog.Logger
	metrics     *metrics.Metrics
	observers   []Observer

	mu       sync.RWMutex
	catalogs map[string]any
}

// Option configures a Router.
type Option func(*Router)

// WithRoot sets the expected first topic segment. Empty accepts any.
func WithRoot(root string) Option {
	return func(r *Router) { r.root = root }
}

// WithMaxPullWait caps each pull. Non-positive values keep the default.
func WithMaxPullWait(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.maxPullWait = d
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(r *Router) { r.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithObserver registers fn to see each pulled message.
func WithObserver(fn Observer) Option {
	return func(r *Router) { r.observers = append(r.observers, fn) }
}

// New creates a router feeding c from sub.
func New(sub transport.Subscription, c *cache.Cache, opts ...Option) *Router {
	r := &Router{
		sub:         sub,
		cache:       c,
		root:        DefaultRoot,
		maxPullWait: DefaultMaxPullWait,
		clock:       clock.Real{},
		logger:      slog.Default(),
		catalogs:    make(map[string]any),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the cache the router feeds.
func (r *Router) Cache() *cache.Cache { return r.cache }

// Clock returns the router's clock.
func (r *Router) Clock() clock.Clock { return r.clock }

// DrainUntil routes messages until deadline passes or a pull of
// min(remaining, MaxPullWait) yields nothing. Decode and transport errors are
// returned immediately; everything ingested before them stays ingested.
func (r *Router) DrainUntil(ctx context.Context, deadline time.Time) error {
	for {
		remaining := clock.Remaining(r.clock, deadline)
		if remaining <= 0 {
			return nil
		}

		msg, ok, err := r.sub.Next(ctx, min(remaining, r.maxPullWait))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("pull: %w", err)
		}
		if !ok {
			return nil
		}

		if err := r.Route(msg); err != nil {
			return err
		}
	}
}

// Route classifies and applies one message.
func (r *Router) Route(msg transport.Message) error {
	route := Classify(r.root, msg.Topic)
	for _, obs := range r.observers {
		obs(msg, route)
	}
	r.metrics.Routed(string(route.Kind))

	switch route.Kind {
	case TopicState:
		s, err := snapshot.Decode(msg.Payload)
		if err != nil {
			r.metrics.DecodeError(decodeErrorType(err))
			r.logger.Error("decode state", "topic", msg.Topic, "error", err)
			return fmt.Errorf("topic %s: %w", msg.Topic, err)
		}
		if s.EntityID != route.EntityID {
			r.logger.Debug("payload name differs from topic", "topic", msg.Topic, "name", s.EntityID)
			s.EntityID = route.EntityID
		}
		r.cache.Ingest(s)
		r.metrics.Ingested(s.EntityID)
		r.logger.Debug("ingested", "entity", s.EntityID, "snapshot", s)

	case TopicCatalog:
		r.mu.Lock()
		r.catalogs[route.Scope] = msg.Payload
		r.mu.Unlock()
		r.logger.Debug("catalog", "scope", route.Scope)

	default:
		r.logger.Debug("ignored topic", "topic", msg.Topic)
	}
	return nil
}

// Catalog returns the latest raw catalog payload published for scope.
func (r *Router) Catalog(scope string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.catalogs[scope]
	return p, ok
}

func decodeErrorType(err error) string {
	if errors.Is(err, snapshot.ErrMalformedTimestamp) {
		return "timestamp"
	}
	return "snapshot"
}
